// Package report renders the results of a run as a text summary, a
// directory tree or JSON.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"github.com/phobologic/codecounter/internal/graph"
	"github.com/phobologic/codecounter/internal/model"
	"github.com/phobologic/codecounter/internal/stats"
)

// Report is everything a run found.
type Report struct {
	Roots      []string           `json:"roots"`
	Total      stats.Stats        `json:"total"`
	Projects   []ProjectStats     `json:"projects,omitempty"`
	Namespaces []Namespace        `json:"namespaces,omitempty"`
	TopFiles   []model.FileResult `json:"top_files,omitempty"`
	Errors     []FileError        `json:"errors,omitempty"`
	Graph      *graph.Graph       `json:"graph,omitempty"`
	Dirs       []Dir              `json:"-"`
}

// ProjectStats are the totals of one project. Path is "" for sources
// outside any project. Uses lists the namespaces it uses but does not
// declare.
type ProjectStats struct {
	Path string   `json:"path"`
	Uses []string `json:"uses,omitempty"`
	stats.Stats
}

// Namespace is a declared namespace and the project declaring it first.
type Namespace struct {
	Name    string `json:"name"`
	Project string `json:"project"`
}

// FileError is one syntax or read error.
type FileError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Dir is a directory of the walk with its file results in order.
type Dir struct {
	Path  string
	Files []*model.FileResult
}

// Options control the text output.
type Options struct {
	Tree    bool // draw tree lines
	Verbose bool // list directories, files, classes and methods
	Color   bool
	Width   int // truncate tree lines to this many columns; 0 keeps them whole
}

type palette struct {
	name  *color.Color
	value *color.Color
	err   *color.Color
	label *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		name:  color.New(color.FgCyan),
		value: color.New(color.FgYellow, color.Bold),
		err:   color.New(color.FgRed),
		label: color.New(color.FgGreen, color.Bold),
	}
	for _, c := range []*color.Color{p.name, p.value, p.err, p.label} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// WriteText writes the listing (with Tree or Verbose), the error lines and
// the summary.
func WriteText(w io.Writer, r *Report, opts Options) error {
	bw := bufio.NewWriter(w)
	pal := newPalette(opts.Color)

	if opts.Tree || opts.Verbose {
		writeTree(bw, r.Dirs, opts, pal)
	} else {
		for _, e := range r.Errors {
			fmt.Fprintln(bw, pal.err.Sprintf("Error: %s: %s", e.Path, e.Message))
		}
	}

	writeFields(bw, "", r.Total.Fields(), pal)

	if opts.Verbose {
		for _, p := range r.Projects {
			name := p.Path
			if name == "" {
				name = "(no project)"
			}
			fmt.Fprintf(bw, "\n%s %s\n", pal.label.Sprint("Project:"), name)
			writeFields(bw, "  ", p.Fields(), pal)
			if len(p.Uses) > 0 {
				fmt.Fprintf(bw, "  %s %s\n", pal.name.Sprint("Uses:"), strings.Join(p.Uses, ", "))
			}
		}

		if len(r.Namespaces) > 0 {
			fmt.Fprintf(bw, "\n%s\n", pal.label.Sprint("Namespaces:"))
			for _, n := range r.Namespaces {
				fmt.Fprintf(bw, "  %s (%s)\n", n.Name, n.Project)
			}
		}
	}

	if len(r.TopFiles) > 0 {
		fmt.Fprintf(bw, "\n%s\n", pal.label.Sprint("Largest files:"))
		for _, f := range r.TopFiles {
			fmt.Fprintf(bw, "%8d %8d  %s\n", f.Counts.Lines, f.Counts.Code, f.Path)
		}
	}
	return bw.Flush()
}

func writeFields(w io.Writer, indent string, fields []stats.Field, pal palette) {
	for _, f := range fields {
		fmt.Fprintf(w, "%s%s = %s\n", indent, pal.name.Sprint(f.Name), pal.value.Sprint(f.Value))
	}
}

// treePrefix draws the tree lines for one entry. Level 0 is a directory,
// 1 a file, 2 a class and 3 a method.
type treePrefix struct {
	enabled bool
	last    []bool
}

func (t *treePrefix) at(level int, isLast bool) string {
	if !t.enabled || level == 0 {
		return ""
	}
	level--
	for len(t.last) <= level {
		t.last = append(t.last, false)
	}
	t.last[level] = isLast

	var b strings.Builder
	for j := 0; j < level; j++ {
		if t.last[j] {
			b.WriteString(" ")
		} else {
			b.WriteString("│")
		}
	}
	if isLast {
		b.WriteString("└ ")
	} else {
		b.WriteString("├ ")
	}
	return b.String()
}

func writeTree(w io.Writer, dirs []Dir, opts Options, pal palette) {
	t := &treePrefix{enabled: opts.Tree}
	line := func(s string) {
		fmt.Fprintln(w, truncate(s, opts.Width))
	}

	for _, d := range dirs {
		if len(d.Files) == 0 {
			continue
		}
		line(t.at(0, false) + "Dir: " + d.Path)

		for i, f := range d.Files {
			name := filepath.Base(f.Path)
			if f.Generated {
				name += " (generated)"
			} else if opts.Verbose && f.MaxDepth > 0 {
				name += fmt.Sprintf(" (depth %d)", f.MaxDepth)
			}
			line(t.at(1, i == len(d.Files)-1) + "File: " + name)
			for _, msg := range f.Errors {
				fmt.Fprintln(w, pal.err.Sprintf("Error: %s: %s", f.Path, msg))
			}
			if !opts.Verbose {
				continue
			}
			for j, c := range f.Classes {
				line(t.at(2, j == len(f.Classes)-1) + "Class: " + c.Name)
				for k, m := range c.Methods {
					line(t.at(3, k == len(c.Methods)-1) + "Method: " + m)
				}
			}
		}
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
