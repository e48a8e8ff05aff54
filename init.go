package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/codecounter/internal/config"
)

const (
	sentinelStart = "# codecounter:start"
	sentinelEnd   = "# codecounter:end"
)

type initOptions struct {
	dryRun bool
	force  bool
}

func newInitCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts initOptions
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a codecounter.toml with the default settings",
		Long: `Write the default settings to a codecounter.toml. In an existing file the
defaults are added as a commented block between sentinel comments, so the
block can be refreshed on later runs without touching the settings around
it. With --force the file is replaced by the defaults.

path defaults to ./` + config.FileName + `.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(args, opts, stdout, stderr)
		},
	}
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print what would be written without modifying the file")
	cmd.Flags().BoolVar(&opts.force, "force", false, "replace the whole file with the defaults")
	return cmd
}

// runInit implements the `codecounter init` subcommand.
func runInit(args []string, opts initOptions, stdout, stderr io.Writer) error {
	// --dry-run with no path: just print the section itself.
	if opts.dryRun && len(args) == 0 && !opts.force {
		section, err := generateSection(true)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(stdout, section)
		return nil
	}

	path := config.FileName
	if len(args) > 0 {
		path = args[0]
	}

	var updated string
	if opts.force {
		body, err := config.Encode(config.Default())
		if err != nil {
			return err
		}
		updated = body
	} else {
		existing, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		section, err := generateSection(hasSettings(string(existing)))
		if err != nil {
			return err
		}
		updated = applySection(string(existing), section)
	}

	if opts.dryRun {
		_, _ = fmt.Fprint(stdout, updated)
		return nil
	}

	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	_, _ = fmt.Fprintf(stderr, "wrote codecounter defaults to %s\n", path)
	return nil
}

// generateSection returns the sentinel-wrapped default settings. Commented
// settings leave the keys of an existing file in charge.
func generateSection(commented bool) (string, error) {
	body, err := config.Encode(config.Default())
	if err != nil {
		return "", err
	}
	body = strings.TrimRight(body, "\n")
	if commented {
		lines := strings.Split(body, "\n")
		for i, line := range lines {
			if line != "" {
				lines[i] = "# " + line
			}
		}
		body = strings.Join(lines, "\n")
	}
	header := "# Defaults written by `codecounter init`. Run `codecounter --help` for every flag."
	return sentinelStart + "\n" + header + "\n" + body + "\n" + sentinelEnd, nil
}

// hasSettings reports whether content has anything outside the sentinel
// block.
func hasSettings(content string) bool {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)
	if start >= 0 && end > start {
		content = content[:start] + content[end+len(sentinelEnd):]
	}
	return strings.TrimSpace(content) != ""
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	if content == "" {
		return section + "\n"
	}
	// Append, ensuring a blank line separator.
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
