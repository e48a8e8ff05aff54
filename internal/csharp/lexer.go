// Package csharp classifies the lines of C# source files and picks out
// type and method declarations along the way.
package csharp

import (
	"fmt"
	"strings"

	"github.com/phobologic/codecounter/internal/model"
)

// GeneratedMarker in a line before any code marks the whole file as tool
// generated.
const GeneratedMarker = "<auto-generated"

// typeKeywords introduce a type declaration.
var typeKeywords = []string{"class", "enum", "struct", "interface"}

// directiveKinds are matched as line prefixes followed by a space.
var directiveKinds = []model.DirectiveKind{model.Using, model.Namespace}

// Lexer classifies one C# file line by line. A Lexer must not be shared
// between files.
type Lexer struct {
	lineNum   int
	generated bool
	sawCode   bool

	braces      []int // line of each open brace
	classDepth  int   // brace depth of the members of the outermost open type, 0 if none
	openComment int   // line of an unclosed /* */, 0 if none
	openMethod  int   // line of an unfinished multi-line method signature, 0 if none
	verbatim    bool  // inside an @"" string spanning lines

	lastClass   bool
	lastMethod  bool
	lastComment bool

	class          *model.CodeClass
	classes        []model.CodeClass
	directives     []model.Directive
	classComments  int
	methodComments int
	maxDepth       int

	cur model.LineClass
}

// NewLexer returns a lexer positioned before the first line of a file.
func NewLexer() *Lexer {
	return &Lexer{}
}

// Generated reports whether a generated-file marker was seen.
func (lx *Lexer) Generated() bool {
	return lx.generated
}

// Classes returns the types declared so far. Call AtEOF first to include
// the last one.
func (lx *Lexer) Classes() []model.CodeClass {
	return lx.classes
}

// Directives returns the using and namespace declarations in file order.
func (lx *Lexer) Directives() []model.Directive {
	return lx.directives
}

// ClassComments returns the number of comment lines credited to types.
func (lx *Lexer) ClassComments() int {
	return lx.classComments
}

// MethodComments returns the number of comment lines credited to methods.
func (lx *Lexer) MethodComments() int {
	return lx.methodComments
}

// MaxDepth returns the deepest brace nesting seen.
func (lx *Lexer) MaxDepth() int {
	return lx.maxDepth
}

// ProcessLine classifies the next physical line of the file. Once the file
// is known to be generated every line comes back blank.
func (lx *Lexer) ProcessLine(raw string) model.LineClass {
	lx.lineNum++
	lx.cur = model.LineClass{}
	defer func() { lx.cur = model.LineClass{} }()

	if lx.generated {
		return lx.cur
	}
	if !lx.sawCode && strings.Contains(raw, GeneratedMarker) {
		lx.generated = true
		return lx.cur
	}

	line := strings.TrimSpace(raw)
	if strings.HasPrefix(line, "#") && lx.openComment == 0 && !lx.verbatim {
		// #if, #region, #pragma and friends count as code and nothing else.
		lx.cur.HasCode = true
		lx.cur.Code = line
		return lx.cur
	}

	depth := len(lx.braces)
	code := lx.strip(line)
	lx.sawCode = lx.sawCode || lx.cur.HasCode

	closing := false
	if lx.openMethod > 0 {
		k := strings.IndexAny(code, "{;")
		if k < 0 {
			lx.cur.Code = code
			return lx.cur
		}
		lx.openMethod = 0
		code = code[:k+1]
		closing = true
	}
	lx.cur.Code = code
	lx.directive(code)
	lx.declarations(code, depth, closing)
	return lx.cur
}

// AtEOF reports state left open at the end of the file and finalizes the
// last type.
func (lx *Lexer) AtEOF() []string {
	var errs []string
	if lx.openComment != 0 {
		errs = append(errs, fmt.Sprintf("incomplete comment opened on line %d.", lx.openComment))
	}
	if lx.openMethod != 0 {
		errs = append(errs, fmt.Sprintf("incomplete method opened on line %d.", lx.openMethod))
	}
	if n := len(lx.braces); n != 0 {
		errs = append(errs, fmt.Sprintf("%d unmatched braces from line %d.", n, lx.braces[n-1]))
	}
	lx.finishClass()
	return errs
}

func (lx *Lexer) addError(msg string) {
	lx.cur.Errors = append(lx.cur.Errors, fmt.Sprintf("%s (at line %d)", msg, lx.lineNum))
}

func (lx *Lexer) finishClass() {
	if lx.class != nil {
		lx.classes = append(lx.classes, *lx.class)
		lx.class = nil
	}
}

func (lx *Lexer) directive(code string) {
	for _, kind := range directiveKinds {
		prefix := string(kind) + " "
		if strings.HasPrefix(code, prefix) {
			lx.directives = append(lx.directives, model.Directive{
				Kind: kind,
				Arg:  strings.TrimSpace(code[len(prefix):]),
				Line: lx.lineNum,
			})
			return
		}
	}
}

// declarations looks for type and method declarations in the residual code
// and credits adjacent comment lines to them. depth is the brace depth at
// the start of the line.
func (lx *Lexer) declarations(code string, depth int, closing bool) {
	if !lx.cur.Counted() {
		return
	}

	if lx.cur.HasCommentText && !lx.cur.HasCode {
		lx.lastComment = true
		if lx.lastClass {
			lx.classComments++
			lx.lastClass = false
		}
		if lx.lastMethod {
			lx.methodComments++
			lx.lastMethod = false
		}
	}

	if !lx.cur.HasCode || code == "" {
		return
	}
	if closing {
		// Tail of a multi-line signature already counted as a method.
		lx.lastComment = false
		return
	}
	if code[0] == '[' && code[len(code)-1] == ']' {
		return // attribute
	}

	if !strings.HasPrefix(code, "{") && lx.lastClass {
		lx.lastClass = false
	}

	if isTypeDecl(code) {
		if lx.classDepth == 0 {
			lx.classDepth = depth + 1
		}
		lx.lastClass = true
		lx.cur.TypeDecls = 1
		lx.finishClass()
		lx.class = &model.CodeClass{Name: code}
		if lx.lastComment {
			lx.classComments++
			lx.lastComment = false
		}
	}

	switch {
	case lx.classDepth > 0 && lx.classDepth == depth:
		lx.lastMethod = false
		j := strings.IndexByte(code, '(')
		if j <= 0 || strings.ContainsAny(code[:j], "={;") {
			break // field initializer, property or statement
		}
		if !strings.ContainsAny(code[j:], "{;") {
			lx.openMethod = lx.lineNum
		}
		lx.lastMethod = true
		lx.cur.MethodDecl = true
		if lx.class != nil {
			lx.class.Methods = append(lx.class.Methods, code)
		}
		if lx.lastComment {
			lx.methodComments++
			lx.lastComment = false
		}
	case !strings.HasPrefix(code, "{"):
		lx.lastMethod = false
	}

	lx.lastComment = false
}

// isTypeDecl reports whether code declares a type: the first keyword found
// must be a whole word that is not a generic constraint (where T : struct).
func isTypeDecl(code string) bool {
	for _, kw := range typeKeywords {
		k := strings.Index(code, kw)
		if k < 0 {
			continue
		}
		if end := k + len(kw); end < len(code) && !isSpace(code[end]) {
			return false
		}
		if k > 0 {
			j := k - 1
			for j >= 0 && isSpace(code[j]) {
				j--
			}
			if j == k-1 || (j >= 0 && code[j] == ':') {
				return false
			}
		}
		return true
	}
	return false
}

// strip removes comments from line and returns the code that is left,
// updating the open comment and verbatim string state.
func (lx *Lexer) strip(line string) string {
	var out []string
	for {
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}

		if lx.verbatim {
			lx.cur.HasCode = true
			i := lx.quoteEnd(line, -1)
			if i < 0 {
				break
			}
			line = line[i+1:]
			continue
		}

		if lx.openComment > 0 {
			lx.cur.HasComment = true
			i := strings.Index(line, "*/")
			if i < 0 {
				// Comments spanning lines are taken to be disabled code.
				lx.cur.HasCommentCode = true
				break
			}
			if lx.openComment == lx.lineNum {
				lx.cur.HasCommentText = true
			}
			lx.openComment = 0
			line = line[i+2:]
			continue
		}

		if strings.HasPrefix(line, "//") {
			lx.cur.HasComment = true
			lx.cur.HasCommentText = lx.cur.HasCommentText || len(line) > 2
			break
		}
		if strings.HasPrefix(line, "/*") {
			lx.openComment = lx.lineNum
			line = line[2:]
			continue
		}

		lx.cur.HasCode = true
		code, rest := lx.scanCode(line)
		if code != "" {
			out = append(out, code)
		}
		line = rest
	}
	return strings.Join(out, " ")
}

// scanCode walks a line of code up to the first comment. It returns the
// code and whatever follows an opening /* for strip to continue with.
func (lx *Lexer) scanCode(line string) (code, rest string) {
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			lx.verbatim = i >= 1 && line[i-1] == '@'
			if i = lx.quoteEnd(line, i); i < 0 {
				return line, ""
			}

		case '\'':
			j := strings.IndexByte(line[i+1:], '\'')
			if j < 0 {
				lx.addError("No close of single quote")
				return line, ""
			}
			j += i + 1
			if isEscaped(line, j) {
				j-- // the escaped quote reopens the scan
			}
			i = j

		case '{':
			lx.braces = append(lx.braces, lx.lineNum)
			lx.maxDepth = max(lx.maxDepth, len(lx.braces))

		case '}':
			if lx.classDepth == len(lx.braces) {
				lx.classDepth = 0
			}
			if len(lx.braces) == 0 {
				lx.addError("No close of brace")
				return line, ""
			}
			lx.braces = lx.braces[:len(lx.braces)-1]

		case '/':
			if i+1 >= len(line) {
				return line, ""
			}
			switch line[i+1] {
			case '/':
				lx.cur.HasComment = true
				lx.cur.HasCommentText = lx.cur.HasCommentText || len(line) > i+2
				return strings.TrimRight(line[:i], " \t"), ""
			case '*':
				lx.cur.HasComment = true
				lx.openComment = lx.lineNum
				return strings.TrimRight(line[:i], " \t"), line[i+2:]
			}
		}
	}
	return line, ""
}

// quoteEnd returns the index of the quote closing the string opened at i,
// or -1. An unclosed verbatim string legally continues on the next line.
func (lx *Lexer) quoteEnd(line string, i int) int {
	for {
		j := strings.IndexByte(line[i+1:], '"')
		if j < 0 {
			if !lx.verbatim {
				lx.addError("No close quote")
			}
			return -1
		}
		j += i + 1

		if lx.verbatim {
			if j+1 < len(line) && line[j+1] == '"' {
				i = j + 1 // "" inside @""
				continue
			}
			lx.verbatim = false
		} else if isEscaped(line, j) {
			i = j
			continue
		}
		return j
	}
}

// isEscaped reports whether the quote at j is escaped by backslashes,
// telling \" and \\\" apart from \\".
func isEscaped(line string, j int) bool {
	switch {
	case j <= 0 || line[j-1] != '\\':
		return false
	case j <= 1 || line[j-2] != '\\':
		return true
	case j <= 2 || line[j-3] != '\\':
		return false
	}
	return true
}

func isSpace(ch byte) bool {
	switch ch {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
