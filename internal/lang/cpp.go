package lang

import "github.com/phobologic/codecounter/internal/cfamily"

func init() {
	Languages["cpp"] = &Language{
		Name:              "cpp",
		Extensions:        []string{".cpp"},
		ProjectExtensions: []string{".vcxproj"},
		NewLexer:          func() Lexer { return cfamily.NewLexer() },
	}
}
