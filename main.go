// codecounter counts code, comment and blank lines in C++ and C# source
// trees and maps the dependencies between their projects.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/phobologic/codecounter/internal/cache"
	"github.com/phobologic/codecounter/internal/config"
	"github.com/phobologic/codecounter/internal/count"
	"github.com/phobologic/codecounter/internal/discover"
	"github.com/phobologic/codecounter/internal/graph"
	"github.com/phobologic/codecounter/internal/lang"
	"github.com/phobologic/codecounter/internal/model"
	"github.com/phobologic/codecounter/internal/namespace"
	"github.com/phobologic/codecounter/internal/project"
	"github.com/phobologic/codecounter/internal/ranking"
	"github.com/phobologic/codecounter/internal/report"
	"github.com/phobologic/codecounter/internal/stats"
	"github.com/phobologic/codecounter/internal/toon"
)

var version = "dev"

var errNoFiles = errors.New("no source files found")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return runContext(ctx, args, stdout, stderr)
}

func runContext(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// flagValues holds the raw command line. Only flags the user set override
// the loaded config.
type flagValues struct {
	ignore      []string
	langs       []string
	tree        bool
	verbose     bool
	graph       int
	unprefix    string
	out         string
	format      string
	top         int
	match       string
	cache       string
	jobs        int
	maxFileSize int64
	noGitignore bool
	color       string
	logLevel    string
	quiet       bool
	config      string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var f flagValues
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "codecounter [flags] [dirs...]",
		Short: "Count code, comment and blank lines in C++ and C# trees",
		Long: `codecounter walks directories of .cpp and .cs sources and reports how many
lines are code, comments, commented-out code or blank, with the classes and
methods it finds. Projects (.vcxproj, .csproj) group the sources into
modules whose references can be written as a Graphviz graph.

Settings are read from codecounter.toml in the first directory or above,
then CODECOUNTER_* environment variables (a .env file may set them), then
flags.

Counters:
` + counterHelp(),
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(cmd, args, &f, stdout)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	fl := cmd.Flags()
	fl.StringArrayVarP(&f.ignore, "ignore", "i", nil, "skip directories matching this regex (repeatable)")
	fl.StringSliceVarP(&f.langs, "langs", "l", nil, "languages to count ("+strings.Join(lang.Names(), ", ")+")")
	fl.BoolVarP(&f.tree, "tree", "t", false, "list directories and files as a tree")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "also list classes, methods and per-project totals")
	fl.IntVarP(&f.graph, "graph", "g", 0, "write the project graph as Graphviz markup (1 projects, 2 adds packages and namespace use)")
	fl.StringVarP(&f.unprefix, "unprefix", "u", "", "strip this prefix from graph node names")
	fl.StringVarP(&f.out, "out", "o", "", "write the report to this file")
	fl.StringVarP(&f.format, "format", "f", defaults.Format, "output format (text, json, toon)")
	fl.IntVar(&f.top, "top", 0, "list the N largest files")
	fl.StringVar(&f.match, "match", "", "only list largest files whose path contains this text")
	fl.StringVar(&f.cache, "cache", "", "keep per-file results in this directory")
	fl.IntVar(&f.jobs, "jobs", 0, "files counted in parallel (0 uses every CPU)")
	fl.Int64Var(&f.maxFileSize, "max-file-size", defaults.MaxFileSize, "skip files larger than this many bytes (0 disables)")
	fl.BoolVar(&f.noGitignore, "no-gitignore", false, "count files ignored by git")
	fl.StringVar(&f.color, "color", defaults.Color, "colorize output (auto, on, off)")
	fl.StringVar(&f.logLevel, "log-level", defaults.LogLevel, "log level (debug, info, warn, error)")
	fl.BoolVarP(&f.quiet, "quiet", "q", false, "only log errors")
	fl.StringVar(&f.config, "config", "", "config file (default: codecounter.toml found from the first directory up)")

	cmd.AddCommand(newInitCmd(stdout, stderr))
	return cmd
}

// counterHelp describes the summary counters.
func counterHelp() string {
	var b strings.Builder
	var s stats.Stats
	for _, f := range s.Fields() {
		fmt.Fprintf(&b, "  %-15s %s\n", f.Name, f.Desc)
	}
	return b.String()
}

// loadConfig layers the config file, the environment and the flags the
// user set.
func loadConfig(cmd *cobra.Command, f *flagValues, startDir string) (config.Config, error) {
	cfg := config.Default()

	path := f.config
	if path == "" {
		found, ok, err := config.Find(startDir)
		if err != nil {
			return cfg, err
		}
		if ok {
			path = found
		}
	}
	if path != "" {
		if err := config.LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := config.LoadDotEnv(startDir); err != nil {
		return cfg, err
	}
	if err := config.ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}

	fl := cmd.Flags()
	if fl.Changed("ignore") {
		cfg.Ignore = f.ignore
	}
	if fl.Changed("langs") {
		cfg.Langs = f.langs
	}
	if fl.Changed("tree") {
		cfg.Tree = f.tree
	}
	if fl.Changed("verbose") {
		cfg.Verbose = f.verbose
	}
	if fl.Changed("graph") {
		cfg.Graph = f.graph
	}
	if fl.Changed("unprefix") {
		cfg.Unprefix = f.unprefix
	}
	if fl.Changed("format") {
		cfg.Format = f.format
	}
	if fl.Changed("top") {
		cfg.Top = f.top
	}
	if fl.Changed("match") {
		cfg.Match = f.match
	}
	if fl.Changed("cache") {
		cfg.Cache = f.cache
	}
	if fl.Changed("jobs") {
		cfg.Jobs = f.jobs
	}
	if fl.Changed("max-file-size") {
		cfg.MaxFileSize = f.maxFileSize
	}
	if fl.Changed("no-gitignore") {
		cfg.Gitignore = !f.noGitignore
	}
	if fl.Changed("color") {
		cfg.Color = f.color
	}
	if fl.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if f.quiet {
		cfg.LogLevel = "error"
	}

	return cfg, cfg.Validate()
}

// source is one file to count.
type source struct {
	abs     string // absolute path
	name    string // path shown in the report
	lang    string
	project string // owning project as shown in the report
	size    int64
	mtime   time.Time
}

// walkDir is a directory of the walk with the indexes of its sources.
type walkDir struct {
	dir     discover.Dir // paths rewritten for the report
	project string       // absolute path of its own project file, if any
	sources []int
}

func runCount(cmd *cobra.Command, args []string, f *flagValues, stdout io.Writer) error {
	roots := args
	if len(roots) == 0 {
		roots = []string{"."}
	}

	cfg, err := loadConfig(cmd, f, roots[0])
	if err != nil {
		return err
	}
	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	for _, name := range cfg.Langs {
		if _, ok := lang.Languages[name]; !ok {
			return fmt.Errorf("unsupported language %q", name)
		}
	}
	ignores, err := discover.CompileIgnores(cfg.Ignore)
	if err != nil {
		return err
	}
	c, err := cache.Open(cfg.Cache)
	if err != nil {
		return err
	}

	opts := discover.Options{Languages: cfg.Langs, Ignore: ignores, Gitignore: cfg.Gitignore}
	var (
		dirs    []walkDir
		sources []source
	)
	for _, arg := range roots {
		d, s, err := walkRoot(arg, len(roots) > 1, len(sources), opts, cfg.MaxFileSize, logger)
		if err != nil {
			return err
		}
		dirs = append(dirs, d...)
		sources = append(sources, s...)
	}
	if len(sources) == 0 {
		return errNoFiles
	}

	jobs := cfg.Jobs
	if jobs == 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	results, err := countFiles(cmd.Context(), sources, jobs, c, logger)
	if err != nil {
		return err
	}

	rep, reg := aggregate(dirs, results, cfg.Unprefix, logger)
	rep.Roots = roots

	counted := make([]*model.FileResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			counted = append(counted, r)
		}
	}
	rep.TopFiles = ranking.TopFiles(ranking.FilterByPath(counted, cfg.Match), cfg.Top)
	if cfg.Graph > 0 {
		rep.Graph = graph.Build(reg)
	}

	if f.out == "" {
		return writeReport(stdout, rep, cfg)
	}
	if err := writeReportFile(f.out, rep, cfg); err != nil {
		return err
	}
	logger.Info("wrote report", "path", f.out, "files", rep.Total.Files, "lines", rep.Total.Lines)
	return nil
}

func writeReportFile(path string, rep *report.Report, cfg config.Config) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := writeReport(file, rep, cfg); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing output: %w", err)
	}
	return nil
}

// walkRoot finds the sources under one root. first is the index the
// root's first source will have in the run.
func walkRoot(arg string, multi bool, first int, opts discover.Options, maxSize int64, logger *slog.Logger) ([]walkDir, []source, error) {
	root, err := filepath.Abs(arg)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%s: not a directory", root)
	}

	found, err := discover.Files(root, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("discovering files: %w", err)
	}
	logger.Debug("walked root", "root", arg, "dirs", len(found), "files", len(discover.AllFiles(found)))

	show := func(rel string) string {
		if rel == "" || !multi {
			return rel
		}
		return filepath.ToSlash(filepath.Join(arg, rel))
	}

	var (
		dirs    []walkDir
		sources []source
	)
	for _, d := range found {
		wd := walkDir{dir: d}
		if d.OwnProject {
			wd.project = filepath.Join(root, filepath.FromSlash(d.Project))
		}
		wd.dir.Path = show(d.Path)
		wd.dir.Project = show(d.Project)

		for _, fe := range filterBySize(d.Files, maxSize, logger) {
			fi, err := os.Stat(filepath.Join(root, filepath.FromSlash(fe.Path)))
			if err != nil {
				logger.Warn("skipped", "path", fe.Path, "err", err)
				continue
			}
			wd.sources = append(wd.sources, first+len(sources))
			sources = append(sources, source{
				abs:     filepath.Join(root, filepath.FromSlash(fe.Path)),
				name:    show(fe.Path),
				lang:    fe.Language,
				project: wd.dir.Project,
				size:    fi.Size(),
				mtime:   fi.ModTime(),
			})
		}
		dirs = append(dirs, wd)
	}
	return dirs, sources, nil
}

func filterBySize(files []discover.FileEntry, maxSize int64, logger *slog.Logger) []discover.FileEntry {
	if maxSize <= 0 {
		return files
	}
	var kept []discover.FileEntry
	for _, f := range files {
		if f.Size > maxSize {
			logger.Warn("skipped", "path", f.Path, "reason", fmt.Sprintf(">%d bytes", maxSize))
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

// countFiles counts the sources concurrently. Results are addressed by
// source index; a file that could not be read leaves a nil entry. A
// canceled ctx fails the count.
func countFiles(ctx context.Context, sources []source, jobs int, c *cache.Cache, logger *slog.Logger) ([]*model.FileResult, error) {
	results := make([]*model.FileResult, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, s := range sources {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := countSource(s, c, logger)
			if err != nil {
				logger.Warn("skipped", "path", s.name, "err", err)
				return nil
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func countSource(s source, c *cache.Cache, logger *slog.Logger) (*model.FileResult, error) {
	key, err := cache.Key(s.abs, s.size, s.mtime, version)
	if err != nil {
		return nil, err
	}
	if r, ok, err := c.Get(key); err != nil {
		logger.Warn("cache read failed", "path", s.name, "err", err)
	} else if ok {
		r.Path, r.Project = s.name, s.project
		return r, nil
	}

	r, err := count.File(lang.Languages[s.lang], s.abs, s.name)
	if err != nil {
		return nil, err
	}
	r.Project = s.project
	if err := c.Put(key, r); err != nil {
		logger.Warn("cache write failed", "path", s.name, "err", err)
	}
	return r, nil
}

// aggregate totals the results in walk order, reads the projects and
// resolves namespace use between them.
func aggregate(dirs []walkDir, results []*model.FileResult, unprefix string, logger *slog.Logger) (*report.Report, *project.Registry) {
	var (
		agg    = stats.New()
		reg    = project.NewRegistry(unprefix)
		ns     = namespace.New()
		owners = map[string]*project.Project{}
		rep    = &report.Report{}
	)

	for _, wd := range dirs {
		agg.AddDir(wd.dir)
		if wd.project != "" {
			p := reg.AddProject(wd.project)
			owners[wd.dir.Project] = p
			if p.Err != nil {
				logger.Warn("unreadable project", "path", wd.dir.Project, "err", p.Err)
				rep.Errors = append(rep.Errors, report.FileError{Path: wd.dir.Project, Message: p.Err.Error()})
			}
		}

		rd := report.Dir{Path: wd.dir.Path}
		for _, i := range wd.sources {
			r := results[i]
			if r == nil {
				continue
			}
			agg.AddFile(r)
			rd.Files = append(rd.Files, r)
			for _, msg := range r.Errors {
				rep.Errors = append(rep.Errors, report.FileError{Path: r.Path, Message: msg})
			}

			p := owners[r.Project]
			if p == nil || r.Generated {
				continue
			}
			if r.Counts.Lines > 0 {
				p.HasSources = true
			}
			for _, d := range r.Directives {
				switch d.Kind {
				case model.Using:
					ns.AddUsing(p.Key, d.Arg)
				case model.Namespace:
					if other := ns.AddDecl(p.Key, d.Arg); other != "" {
						logger.Debug("namespace declared twice", "namespace", namespace.Normalize(d.Arg), "project", p.Name, "owner", other)
					}
				}
			}
		}
		rep.Dirs = append(rep.Dirs, rd)
	}

	reg.FixupPackages()
	for _, p := range reg.Projects() {
		for _, key := range ns.DependsOn(p.Key) {
			reg.AddUse(p, reg.Lookup(key))
		}
	}

	ns.Walk(func(l *namespace.Level) {
		if p := reg.Lookup(l.Owner); p != nil {
			rep.Namespaces = append(rep.Namespaces, report.Namespace{Name: l.FullName(), Project: p.Name})
		}
	})

	rep.Total = agg.Total
	for _, path := range agg.ProjectPaths() {
		s, _ := agg.Project(path)
		ps := report.ProjectStats{Path: path, Stats: s}
		if p := owners[path]; p != nil {
			ps.Uses = ns.Uses(p.Key)
		}
		rep.Projects = append(rep.Projects, ps)
	}
	return rep, reg
}

func writeReport(w io.Writer, rep *report.Report, cfg config.Config) error {
	switch cfg.Format {
	case "json":
		return report.WriteJSON(w, rep)
	case "toon":
		_, err := fmt.Fprintln(w, toon.Encode(rep))
		return err
	}

	opts := report.Options{Tree: cfg.Tree, Verbose: cfg.Verbose}
	if file, ok := w.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		opts.Color = cfg.Color != "off"
		if width, _, err := term.GetSize(int(file.Fd())); err == nil {
			opts.Width = width
		}
	} else {
		opts.Color = cfg.Color == "on"
	}
	if err := report.WriteText(w, rep, opts); err != nil {
		return err
	}
	if rep.Graph != nil {
		return graph.WriteDot(w, rep.Graph, cfg.Graph)
	}
	return nil
}
