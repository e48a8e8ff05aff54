package lang

import (
	"strings"

	"github.com/phobologic/codecounter/internal/csharp"
)

func init() {
	Languages["cs"] = &Language{
		Name:              "cs",
		Extensions:        []string{".cs"},
		ProjectExtensions: []string{".csproj"},
		NewLexer:          func() Lexer { return csharp.NewLexer() },
		SkipFile:          csSkipFile,
	}
}

// csSkipFile drops assembly metadata, which is always tool written.
func csSkipFile(name string) bool {
	return strings.HasSuffix(name, "AssemblyInfo.cs")
}
