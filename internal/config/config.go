// Package config loads codecounter settings. Defaults are overlaid by a
// codecounter.toml found at or above the working directory, then by
// CODECOUNTER_* environment variables (a .env file may supply them). Command
// line flags are applied last by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// FileName is the config file looked up by Find.
const FileName = "codecounter.toml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CODECOUNTER_"

// Config holds every setting of a run.
type Config struct {
	Ignore      []string `toml:"ignore"`
	Langs       []string `toml:"langs"`
	Tree        bool     `toml:"tree"`
	Verbose     bool     `toml:"verbose"`
	Graph       int      `toml:"graph"`
	Unprefix    string   `toml:"unprefix"`
	Format      string   `toml:"format"`
	Top         int      `toml:"top"`
	Match       string   `toml:"match"`
	Cache       string   `toml:"cache"`
	Jobs        int      `toml:"jobs"`
	MaxFileSize int64    `toml:"max_file_size"`
	Gitignore   bool     `toml:"gitignore"`
	Color       string   `toml:"color"`
	LogLevel    string   `toml:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Format:      "text",
		MaxFileSize: 1_000_000,
		Gitignore:   true,
		Color:       "auto",
		LogLevel:    "warn",
	}
}

// Find looks for FileName in startDir and its parents.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("resolving start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// LoadFile overlays the TOML file at path onto cfg. Unknown keys are an
// error.
func LoadFile(path string, cfg *Config) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// LoadDotEnv loads dir/.env into the process environment if it exists.
// Variables already set are kept.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays CODECOUNTER_* variables onto cfg. lookup is usually
// os.LookupEnv.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	list := func(name string, dst *[]string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = splitList(v)
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	integer := func(name string, dst *int64) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}

	graph, top, jobs := int64(cfg.Graph), int64(cfg.Top), int64(cfg.Jobs)

	list("IGNORE", &cfg.Ignore)
	list("LANGS", &cfg.Langs)
	boolean("TREE", &cfg.Tree)
	boolean("VERBOSE", &cfg.Verbose)
	integer("GRAPH", &graph)
	str("UNPREFIX", &cfg.Unprefix)
	str("FORMAT", &cfg.Format)
	integer("TOP", &top)
	str("MATCH", &cfg.Match)
	str("CACHE", &cfg.Cache)
	integer("JOBS", &jobs)
	integer("MAX_FILE_SIZE", &cfg.MaxFileSize)
	boolean("GITIGNORE", &cfg.Gitignore)
	str("COLOR", &cfg.Color)
	str("LOG_LEVEL", &cfg.LogLevel)

	cfg.Graph, cfg.Top, cfg.Jobs = int(graph), int(top), int(jobs)
	return errors.Join(errs...)
}

// Validate checks the values that have a fixed set of choices or a range.
func (c *Config) Validate() error {
	switch c.Format {
	case "text", "json", "toon":
	default:
		return fmt.Errorf("unknown format %q (want text, json or toon)", c.Format)
	}
	switch c.Color {
	case "auto", "on", "off":
	default:
		return fmt.Errorf("unknown color mode %q (want auto, on or off)", c.Color)
	}
	if c.Graph < 0 || c.Graph > 2 {
		return fmt.Errorf("graph level %d out of range 0-2", c.Graph)
	}
	if c.Top < 0 {
		return fmt.Errorf("top must not be negative, got %d", c.Top)
	}
	if c.Jobs < 0 {
		return fmt.Errorf("jobs must not be negative, got %d", c.Jobs)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return l, nil
}

// Encode renders cfg as TOML.
func Encode(cfg Config) (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode TOML: %w", err)
	}
	return buf.String(), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
