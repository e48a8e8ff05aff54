// Package count drives a dialect lexer over a source file and totals the
// classified lines.
package count

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/phobologic/codecounter/internal/lang"
	"github.com/phobologic/codecounter/internal/model"
)

const bom = "\uFEFF"

// File counts the source file at absPath. relPath is recorded in the result.
func File(l *lang.Language, absPath, relPath string) (*model.FileResult, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", relPath, err)
	}
	defer f.Close()

	res, err := Source(l, f, relPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", relPath, err)
	}
	return res, nil
}

// Source counts the lines read from r as language l. A file excluded by
// name, or found to be generated, comes back with Generated set and no
// counts.
func Source(l *lang.Language, r io.Reader, path string) (*model.FileResult, error) {
	res := &model.FileResult{Path: path, Language: l.Name}
	if l.Skip(path) {
		res.Generated = true
		return res, nil
	}

	lx := l.NewLexer()
	br := bufio.NewReader(r)
	first := true
	for {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		if line == "" && err != nil {
			break
		}

		line = strings.TrimRight(line, "\r\n")
		if first {
			line = strings.TrimPrefix(line, bom)
			first = false
		}
		res.Counts.Chars += int64(len(line))

		lc := lx.ProcessLine(line)
		res.Counts.Add(&lc)
		res.Errors = append(res.Errors, lc.Errors...)

		if err != nil {
			break
		}
	}
	res.Errors = append(res.Errors, lx.AtEOF()...)

	if g, ok := lx.(lang.Generator); ok && g.Generated() {
		return &model.FileResult{Path: path, Language: l.Name, Generated: true}, nil
	}

	if n, ok := lx.(lang.Nester); ok {
		res.MaxDepth = n.MaxDepth()
	}
	if d, ok := lx.(lang.Declarer); ok {
		for _, c := range d.Classes() {
			class := model.CodeClass{Name: lang.CollapseWhitespace(c.Name)}
			for _, m := range c.Methods {
				class.Methods = append(class.Methods, lang.CollapseWhitespace(m))
			}
			res.Classes = append(res.Classes, class)
		}
		res.Directives = d.Directives()
		res.Counts.ClassComments = d.ClassComments()
		res.Counts.MethodComments = d.MethodComments()
	}
	return res, nil
}
