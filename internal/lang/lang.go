// Package lang provides a dialect registry mapping file extensions to line
// lexers and to the project files that group sources into modules.
package lang

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/phobologic/codecounter/internal/model"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Lexer classifies the lines of one file in order. Implementations are not
// safe for concurrent use; make one per file.
type Lexer interface {
	ProcessLine(raw string) model.LineClass
	AtEOF() []string
}

// Declarer is implemented by lexers that also collect type declarations,
// namespace directives and comment attribution.
type Declarer interface {
	Classes() []model.CodeClass
	Directives() []model.Directive
	ClassComments() int
	MethodComments() int
}

// Nester is implemented by lexers that track how deeply code nests.
type Nester interface {
	MaxDepth() int
}

// Generator is implemented by lexers that can tell a file was produced by
// a tool and should not be counted.
type Generator interface {
	Generated() bool
}

// Language holds the configuration of a supported dialect.
type Language struct {
	Name              string
	Extensions        []string // source files
	ProjectExtensions []string // project files naming a module

	// NewLexer returns a fresh lexer for a single file.
	NewLexer func() Lexer

	// SkipFile reports whether a source file is never counted, by base name.
	SkipFile func(name string) bool
}

// Skip reports whether the file at path is excluded by name.
func (l *Language) Skip(path string) bool {
	return l.SkipFile != nil && l.SkipFile(filepath.Base(path))
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

// extension maps are built lazily after all init() functions have run.
var (
	extensionOnce sync.Once
	extensionMap  map[string]string
	projectMap    map[string]string
)

func buildExtensionMaps() {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		projectMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
			for _, ext := range l.ProjectExtensions {
				projectMap[ext] = l.Name
			}
		}
	})
}

// ForExtension returns the language name for a source file extension, or ""
// if unsupported. Matching is case-insensitive.
func ForExtension(ext string) string {
	buildExtensionMaps()
	return extensionMap[strings.ToLower(ext)]
}

// ForProject returns the language name for a project file extension, or "".
func ForProject(ext string) string {
	buildExtensionMaps()
	return projectMap[strings.ToLower(ext)]
}

// Names returns the registered language names in sorted order.
func Names() []string {
	names := make([]string, 0, len(Languages))
	for name := range Languages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
