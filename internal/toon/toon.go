// Package toon implements TOON (Token-Oriented Object Notation) encoding
// of a run report.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/codecounter/internal/report"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a report into TOON format.
func Encode(r *report.Report) string {
	var parts []string

	roots := make([]string, len(r.Roots))
	for i, root := range r.Roots {
		roots[i] = encodeValue(root)
	}
	parts = append(parts, strings.TrimSpace(fmt.Sprintf("roots[%d]: %s", len(roots), strings.Join(roots, ","))))

	var totalRows [][]string
	for _, f := range r.Total.Fields() {
		totalRows = append(totalRows, []string{f.Name, strconv.FormatInt(f.Value, 10)})
	}
	parts = append(parts, formatTabular("totals", []string{"name", "value"}, totalRows))

	var projectRows [][]string
	for i := range r.Projects {
		p := &r.Projects[i]
		projectRows = append(projectRows, []string{
			p.Path,
			strconv.Itoa(p.Files),
			strconv.Itoa(p.Lines),
			strconv.Itoa(p.Code + p.CodeAndComment),
			strconv.Itoa(p.CommentText + p.CodeAndComment),
			strconv.Itoa(p.Blank),
			strconv.Itoa(p.Classes),
			strconv.Itoa(p.Methods),
		})
	}
	parts = append(parts, formatTabular("projects",
		[]string{"path", "files", "lines", "code", "comment", "blank", "classes", "methods"}, projectRows))

	var fileRows [][]string
	for i := range r.TopFiles {
		f := &r.TopFiles[i]
		fileRows = append(fileRows, []string{
			f.Path,
			f.Language,
			strconv.Itoa(f.Counts.Lines),
			strconv.Itoa(f.Counts.Code + f.Counts.CodeAndComment),
			strconv.Itoa(f.Counts.CommentText + f.Counts.CodeAndComment),
			strconv.Itoa(len(f.Errors)),
		})
	}
	parts = append(parts, formatTabular("files", []string{"path", "language", "lines", "code", "comment", "errors"}, fileRows))

	if r.Graph != nil {
		var moduleRows [][]string
		for i := range r.Graph.Modules {
			m := &r.Graph.Modules[i]
			moduleRows = append(moduleRows, []string{m.Name, m.Kind, fmt.Sprintf("%.4f", m.Rank)})
		}
		parts = append(parts, formatTabular("modules", []string{"name", "kind", "rank"}, moduleRows))

		var depRows [][]string
		for i := range r.Graph.Dependencies {
			d := &r.Graph.Dependencies[i]
			depRows = append(depRows, []string{d.Source, d.Target, d.Kind})
		}
		parts = append(parts, formatTabular("dependencies", []string{"source", "target", "kind"}, depRows))
	}

	var errorRows [][]string
	for _, e := range r.Errors {
		errorRows = append(errorRows, []string{e.Path, e.Message})
	}
	parts = append(parts, formatTabular("errors", []string{"file", "message"}, errorRows))

	return strings.Join(parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
