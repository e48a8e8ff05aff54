// Package stats aggregates per-file results into totals for a whole run and
// for each project.
package stats

import (
	"sort"

	"github.com/phobologic/codecounter/internal/discover"
	"github.com/phobologic/codecounter/internal/model"
)

// Stats holds the counters of a run or of one project.
type Stats struct {
	Directories int `json:"directories" msgpack:"directories"`
	Files       int `json:"files" msgpack:"files"`
	Errors      int `json:"errors" msgpack:"errors"`
	Projects    int `json:"projects" msgpack:"projects"`
	Generated   int `json:"generated" msgpack:"generated"`

	model.LineCounts
}

// Field is one named counter, in display order.
type Field struct {
	Name  string
	Value int64
	Desc  string
}

// Fields returns the counters in display order.
func (s *Stats) Fields() []Field {
	c := &s.LineCounts
	return []Field{
		{"Projects", int64(s.Projects), "project files, one per directory"},
		{"Directories", int64(s.Directories), "directories with source or project files"},
		{"Files", int64(s.Files), "non-empty source files read"},
		{"Generated", int64(s.Generated), "generated files skipped"},
		{"Chars", c.Chars, "characters read"},
		{"Errors", int64(s.Errors), "syntax errors found"},
		{"Lines", int64(c.Lines), "total lines, the sum of the next five"},
		{"Blank", int64(c.Blank), "empty or whitespace"},
		{"CommentBlank", int64(c.CommentBlank), "empty comments or continued literals"},
		{"CommentText", int64(c.CommentText), "comments that seem to contain text"},
		{"Code", int64(c.Code), "lines that just have code"},
		{"CodeAndComment", int64(c.CodeAndComment), "lines with code and a comment"},
		{"CommentedOut", int64(c.CommentedOut), "comment lines that look like disabled code"},
		{"Classes", int64(c.Classes), "class, struct, interface, union or enum"},
		{"ClassComments", int64(c.ClassComments), "types with a comment right before or after"},
		{"Methods", int64(c.Methods), "methods, not properties or lambdas"},
		{"MethodComments", int64(c.MethodComments), "methods with a comment right before or after"},
	}
}

// Add counts one file result. Generated files count only as generated and
// empty files do not count as files.
func (s *Stats) Add(r *model.FileResult) {
	s.Errors += len(r.Errors)
	if r.Generated {
		s.Generated++
		return
	}
	if r.Counts.Lines > 0 {
		s.Files++
	}
	s.LineCounts.Merge(r.Counts)
}

// Aggregator totals a run. It is not safe for concurrent use; results are
// added in walk order.
type Aggregator struct {
	Total    Stats
	projects map[string]*Stats
}

// New returns an empty aggregator.
func New() *Aggregator {
	return &Aggregator{projects: make(map[string]*Stats)}
}

// AddDir counts a directory found by the walker.
func (a *Aggregator) AddDir(d discover.Dir) {
	a.Total.Directories++
	p := a.project(d.Project)
	p.Directories++
	if d.OwnProject {
		a.Total.Projects++
		p.Projects++
	}
}

// AddFile counts a file result under its project.
func (a *Aggregator) AddFile(r *model.FileResult) {
	a.Total.Add(r)
	a.project(r.Project).Add(r)
}

// Project returns the stats of one project, "" for files outside any.
func (a *Aggregator) Project(path string) (Stats, bool) {
	p, ok := a.projects[path]
	if !ok {
		return Stats{}, false
	}
	return *p, true
}

// ProjectPaths returns the projects seen, sorted.
func (a *Aggregator) ProjectPaths() []string {
	paths := make([]string, 0, len(a.projects))
	for p := range a.projects {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (a *Aggregator) project(path string) *Stats {
	p, ok := a.projects[path]
	if !ok {
		p = &Stats{}
		a.projects[path] = p
	}
	return p
}
