// Package discover finds countable source and project files in a tree.
package discover

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/codecounter/internal/lang"
)

// FileEntry represents a discovered source file.
type FileEntry struct {
	Path     string // Relative to the walk root
	Language string
	Size     int64
}

// Dir is a directory holding source or project files. Its files come
// before any of its subdirectories in the walk order.
type Dir struct {
	Path  string // Relative to the walk root, "." for the root itself
	Depth int

	// Project is the project file owning the directory, relative to the
	// walk root. It is declared here when OwnProject is set and inherited
	// from the nearest ancestor otherwise.
	Project    string
	OwnProject bool

	Files []FileEntry
}

// Options controls which files are found.
type Options struct {
	Languages []string         // only these languages; all when empty
	Ignore    []*regexp.Regexp // directory names to skip
	Gitignore bool             // honor git's view of ignored files
}

var skipDirs = map[string]struct{}{
	"bin":          {},
	"obj":          {},
	"packages":     {},
	"node_modules": {},
}

// CompileIgnores compiles directory ignore patterns.
func CompileIgnores(patterns []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		res = append(res, re)
	}
	return res, nil
}

type walker struct {
	root    string
	opts    Options
	langSet map[string]struct{}
	git     map[string]struct{}
	gi      *ignore.GitIgnore
	dirs    []Dir
}

// Files walks root and returns every directory that holds countable files,
// in walk order.
func Files(root string, opts Options) ([]Dir, error) {
	w := &walker{root: root, opts: opts, langSet: make(map[string]struct{}, len(opts.Languages))}
	for _, l := range opts.Languages {
		w.langSet[l] = struct{}{}
	}
	if opts.Gitignore {
		w.git = gitLsFiles(root)
		if w.git == nil {
			w.gi = loadGitignore(root)
		}
	}

	if _, err := os.Stat(root); err != nil {
		return nil, err
	}
	w.walk(root, ".", 0, "")
	return w.dirs, nil
}

// IgnoredDir reports whether a directory name is never descended into.
func IgnoredDir(name string, patterns []*regexp.Regexp) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return true
	}
	if _, skip := skipDirs[name]; skip {
		return true
	}
	for _, re := range patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

func (w *walker) walk(path, rel string, depth int, project string) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return // skip unreadable directories
	}

	dir := Dir{Path: rel, Depth: depth, Project: project}
	var subdirs []string
	var projects []string

	for _, d := range entries {
		name := d.Name()
		if d.IsDir() {
			if !IgnoredDir(name, w.opts.Ignore) {
				subdirs = append(subdirs, name)
			}
			continue
		}
		if strings.HasPrefix(name, ".") {
			continue
		}
		// Skip symlinks and other special files
		if !d.Type().IsRegular() {
			continue
		}

		fileRel := filepath.Join(rel, name)
		if w.ignored(fileRel) {
			continue
		}

		ext := filepath.Ext(name)
		if langName := lang.ForProject(ext); langName != "" && w.wanted(langName) {
			projects = append(projects, fileRel)
			continue
		}
		langName := lang.ForExtension(ext)
		if langName == "" || !w.wanted(langName) {
			continue
		}
		var size int64
		if info, err := d.Info(); err == nil {
			size = info.Size()
		}
		dir.Files = append(dir.Files, FileEntry{Path: fileRel, Language: langName, Size: size})
	}

	// Several project files in one directory are one project; the last
	// by name is taken to be the newest.
	if len(projects) > 0 {
		sort.Strings(projects)
		dir.Project = projects[len(projects)-1]
		dir.OwnProject = true
	}
	if len(dir.Files) > 0 || dir.OwnProject {
		w.dirs = append(w.dirs, dir)
	}

	for _, name := range subdirs {
		w.walk(filepath.Join(path, name), filepath.Join(rel, name), depth+1, dir.Project)
	}
}

func (w *walker) wanted(langName string) bool {
	if len(w.langSet) == 0 {
		return true
	}
	_, ok := w.langSet[langName]
	return ok
}

func (w *walker) ignored(rel string) bool {
	if w.git != nil {
		_, ok := w.git[filepath.ToSlash(rel)]
		return !ok
	}
	return w.gi != nil && w.gi.MatchesPath(rel)
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}

// AllFiles flattens dirs into their files in walk order.
func AllFiles(dirs []Dir) []FileEntry {
	var files []FileEntry
	for _, d := range dirs {
		files = append(files, d.Files...)
	}
	return files
}
