// Package cfamily classifies the lines of C/C++ source files.
//
// The lexer is not a parser. It tracks just enough nesting (braces, parens,
// literals, comments, preprocessor blocks) to tell code from comments and to
// notice unbalanced syntax, one line at a time.
package cfamily

import (
	"fmt"
	"strings"

	"github.com/phobologic/codecounter/internal/model"
)

// directives are matched whole-word directly after '#'.
var directives = []string{"include", "if", "ifdef", "ifndef", "elif", "else", "endif"}

const (
	dirInclude = iota
	dirIf
	dirIfdef
	dirIfndef
	dirElif
	dirElse
	dirEndif
)

// deadIdioms are the #if forms taken to never compile. This is a fixed
// literal table, not expression evaluation.
var deadIdioms = []string{
	"if 0",
	"if(0)",
	"if (0)",
	"if defined(COMMENT)",
	"ifdef(0)",
	"ifdef (0)",
	"ifdef COMMENT",
}

type action int

const (
	next    action = iota // character consumed
	token                 // fall through to generic token handling
	endLine               // stop scanning and run end-of-line cleanup
	abort                 // give up on the rest of the line
)

// Lexer classifies one C-family file line by line. A Lexer must not be
// shared between files.
type Lexer struct {
	stack   *ModeStack
	preproc PreprocStack

	lineNum   int
	typeDecls int
	indent    int
	maxIndent int

	// per-line scan state
	text string
	pos  int
	lead int // leading whitespace on the current line
	mode Mode
	cur  model.LineClass
}

// NewLexer returns a lexer positioned before the first line of a file.
func NewLexer() *Lexer {
	return &Lexer{stack: &ModeStack{}}
}

// ProcessLine classifies the next physical line of the file.
func (lx *Lexer) ProcessLine(raw string) model.LineClass {
	lx.lineNum++
	lx.cur = model.LineClass{}
	lx.text = raw
	lx.scanLine()
	cur := lx.cur
	lx.cur = model.LineClass{}
	return cur
}

// AtEOF reports state left open at the end of the file.
func (lx *Lexer) AtEOF() []string {
	var errs []string
	if top, ok := lx.stack.TopMarker(); ok {
		errs = append(errs, fmt.Sprintf("Unclosed %s block type '%c' (at line %d)",
			top.Mode, top.Mode.Token(), top.Line))
	}
	if lx.preproc.Len() > 0 {
		errs = append(errs, fmt.Sprintf("Unclosed preprocessor block (at line %d)", lx.stack.Line))
	}
	return errs
}

// TypeDecls returns the number of struct/class/union/enum keywords seen so far.
func (lx *Lexer) TypeDecls() int {
	return lx.typeDecls
}

// MaxDepth returns the deepest nesting seen at the start of a line.
func (lx *Lexer) MaxDepth() int {
	return lx.maxIndent
}

// Depth returns the number of open modes and #if blocks.
func (lx *Lexer) Depth() (modes, preproc int) {
	return lx.stack.Len(), lx.preproc.Len()
}

func (lx *Lexer) addError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	lx.cur.Errors = append(lx.cur.Errors, fmt.Sprintf("%s (at line %d)", msg, lx.lineNum))
}

func (lx *Lexer) push(m Mode) {
	lx.mode = m
	if err := lx.stack.Push(m, lx.lineNum, lx.pos); err != nil {
		lx.addError("%v", err)
	}
}

func (lx *Lexer) pop(m Mode) Mode {
	top, err := lx.stack.Pop(m)
	if err != nil {
		lx.addError("%v", err)
	}
	return top
}

func (lx *Lexer) popStatement(m Mode) Mode {
	top, errs := lx.stack.PopStatement(m)
	for _, err := range errs {
		lx.addError("%v", err)
	}
	return top
}

func (lx *Lexer) lineEnd(i int) bool {
	return i < 0 || i >= len(lx.text) || isNL(lx.text[i])
}

func (lx *Lexer) charAt(i int) byte {
	if lx.lineEnd(i) {
		return 0
	}
	return lx.text[i]
}

func (lx *Lexer) isLabelEnd(k int) bool {
	return lx.charAt(k) == ':' && lx.charAt(k+1) != ':'
}

func (lx *Lexer) skipSpace(i int) int {
	for i < len(lx.text) && isSpace(lx.text[i]) {
		i++
	}
	return i
}

// nameEnd returns the index just past the identifier starting at i.
func (lx *Lexer) nameEnd(i int) int {
	j := i
	for ; j < len(lx.text); j++ {
		ch := lx.text[j]
		if isNameChar(ch) || (j != i && ch >= '0' && ch <= '9') {
			continue
		}
		break
	}
	return j
}

func (lx *Lexer) scanLine() {
	if strings.TrimSpace(lx.text) == "" {
		return
	}

	lx.pos = 0
	lx.lead = 0
	lx.mode = lx.stack.Top()
	startMode := lx.mode
	blank := true

scan:
	for ; lx.pos < len(lx.text); lx.pos++ {
		ch := lx.text[lx.pos]
		if isSpace(ch) {
			if isNL(ch) {
				break
			}
			if blank {
				lx.lead++
			}
			continue
		}

		if blank {
			if lx.stack.Dead && ch != '#' {
				// Not scanned; the whole line is commented-out code.
				lx.cur.HasComment = true
				lx.cur.HasCommentCode = true
				return
			}
			blank = false
			lx.indent = lx.indentFor(ch)
			lx.maxIndent = max(lx.maxIndent, lx.indent)
		}

		act := lx.scanMode(ch)
		if act == token {
			act = lx.scanToken(ch)
		}
		switch act {
		case endLine:
			break scan
		case abort:
			return
		}
	}

	lx.endOfLine(startMode)
}

func (lx *Lexer) indentFor(ch byte) int {
	n := lx.stack.Braces
	switch lx.mode {
	case Statement, Asm:
		if ch != '{' {
			n++
		}
	case Parenth, Bracket:
		n++
	case Brace, AsmBrace:
		if ch == '}' {
			n--
		}
	}
	return n
}

// scanMode handles ch according to the current mode.
func (lx *Lexer) scanMode(ch byte) action {
	switch lx.mode {
	case Global:
		return lx.scanStatement()

	case Statement:
		switch ch {
		case ';':
			lx.cur.HasCode = true
			lx.mode = lx.popStatement(Statement)
			return next
		case '}', ')':
			// Data definitions can end without ; e.g. x = { 1 } or call( a )
			lx.cur.HasCode = true
			lx.mode = lx.popStatement(Statement)
			if lx.mode != Brace && lx.mode != Parenth {
				lx.addError("unmatched ending '%c' block (no opening) at offset %d", ch, lx.pos)
				return abort
			}
			lx.mode = lx.popStatement(lx.mode)
			return next
		}
		return lx.scanStatement()

	case Asm:
		if ch == '/' {
			return token
		}
		lx.cur.HasCode = true
		lx.pop(Asm)
		if ch == '{' {
			lx.push(AsmBrace)
		} else {
			lx.push(AsmCmd)
		}
		return next

	case AsmBrace:
		if ch == '}' {
			lx.cur.HasCode = true
			lx.mode = lx.pop(AsmBrace)
			return next
		}
		return lx.scanAsmCmd(ch)

	case AsmCmd:
		return lx.scanAsmCmd(ch)

	case Brace:
		if ch == '}' {
			lx.mode = lx.popStatement(Brace)
			return next
		}
		return lx.scanStatement()

	case Parenth:
		if ch == ')' {
			lx.cur.HasCode = true
			lx.mode = lx.pop(Parenth)
			return next
		}
		return token

	case Bracket:
		if ch == ']' {
			lx.cur.HasCode = true
			lx.mode = lx.pop(Bracket)
			return next
		}
		return token

	case Comment:
		lx.cur.HasComment = true
		if ch == '*' && lx.charAt(lx.pos+1) == '/' {
			lx.mode = lx.pop(Comment)
			lx.pos++
			return next
		}
		lx.cur.HasCommentText = true
		return next

	case ConstQuote, ConstChar:
		end := byte('"')
		if lx.mode == ConstChar {
			end = '\''
		}
		if ch == '\\' {
			if lx.lineEnd(lx.pos + 1) {
				lx.pos++
				return endLine
			}
			lx.cur.HasCode = true
			lx.pos++
			return next
		}
		lx.cur.HasCode = true
		if ch == end {
			lx.mode = lx.pop(lx.mode)
		}
		return next

	case ConstQuoteRaw:
		lx.cur.HasCode = true
		if ch == '"' && lx.charAt(lx.pos-1) == ')' {
			lx.mode = lx.pop(ConstQuoteRaw)
		}
		return next

	case LineComment:
		lx.cur.HasComment = true
		lx.cur.HasCommentText = true
		return next

	case Preprocess:
		// Only comments are allowed to interrupt a directive.
		if ch == '/' {
			return token
		}
		if ch == '\\' && lx.lineEnd(lx.pos+1) {
			lx.pos++
			return endLine
		}
		lx.cur.HasCode = true
		return next
	}
	return token
}

func (lx *Lexer) scanAsmCmd(ch byte) action {
	switch ch {
	case '/':
		return token
	case ';':
		// ; starts a comment inside _asm.
		lx.push(LineComment)
		return next
	}
	lx.cur.HasCode = true
	return next
}

// scanStatement looks for an identifier or keyword at the current position.
func (lx *Lexer) scanStatement() action {
	i := lx.pos
	j := lx.nameEnd(i)
	if j <= i {
		return token
	}
	lx.cur.HasCode = true

	// __asm and friends are the same keyword as _asm.
	start := i
	for start+1 < j && lx.text[start] == '_' && lx.text[start+1] == '_' {
		start++
	}
	k := lx.skipSpace(j)

	switch kw := LookupKeyword(lx.text[start:j]); {
	case kw == KeyDefault, kw == KeyBreak, kw == KeyContinue:
		// no arguments
	case kw == KeyCase:
		lx.label(i)
	case kw == KeyAsm:
		lx.push(Asm)
	case kw.IsTypeDecl():
		lx.typeDecls++
		lx.cur.TypeDecls++
		lx.push(Statement)
	case kw == KeyNone:
		if lx.mode != Global && lx.isLabelEnd(k) {
			lx.label(i)
			break
		}
		if lx.mode != Statement {
			lx.push(Statement) // presumed declaration or call, must end with ;
		}
	default:
		lx.push(Statement)
	}

	lx.pos = k - 1
	return next
}

func (lx *Lexer) label(i int) {
	if lx.lead == i {
		lx.indent--
	}
}

// scanToken handles characters that open or close modes regardless of the
// current mode.
func (lx *Lexer) scanToken(ch byte) action {
	switch ch {
	case '"':
		lx.cur.HasCode = true
		if lx.charAt(lx.pos-1) == 'R' && lx.charAt(lx.pos+1) == '(' {
			lx.pos++
			lx.push(ConstQuoteRaw)
		} else {
			lx.push(ConstQuote)
		}
	case '\'':
		lx.cur.HasCode = true
		lx.push(ConstChar)
	case '{':
		lx.cur.HasCode = true
		lx.push(Brace)
	case '(':
		lx.cur.HasCode = true
		lx.push(Parenth)
	case '[':
		lx.cur.HasCode = true
		lx.push(Bracket)

	case '}', ')', ']':
		lx.addError("unmatched '%c', looking for '%c'", ch, lx.mode.Token())
		return abort

	case '/':
		switch lx.charAt(lx.pos + 1) {
		case '/':
			if lx.mode == Preprocess {
				lx.pop(Preprocess)
			}
			lx.pos++
			lx.cur.HasComment = true
			lx.push(LineComment)
		case '*':
			lx.pos++
			lx.cur.HasComment = true
			lx.push(Comment)
		}

	case '#':
		if lx.lead != lx.pos {
			return next // only whitespace may precede a directive
		}
		return lx.scanDirective()
	}
	return next
}

func (lx *Lexer) scanDirective() action {
	lx.indent = 0
	lx.cur.HasCode = true
	at := lx.pos + 1

	switch lx.findIn(at, directives) {
	case dirInclude:
		lx.pos += len("include")

	case dirIf, dirIfdef, dirIfndef:
		lx.preproc.Push(lx.stack)
		lx.stack = lx.stack.Clone(lx.lineNum, lx.findIn(at, deadIdioms) >= 0)
		if lx.stack.Dead {
			lx.cur.HasCommentCode = true
		}
		lx.pos += len("if")

	case dirElif, dirElse:
		// Each branch starts from the stack as it was at the #if.
		lx.pos += len("else")
		saved, ok := lx.preproc.Top()
		if !ok {
			lx.addError("Mismatched #%s", directives[lx.findIn(at, directives)])
			break
		}
		lx.stack = saved.Clone(lx.lineNum, false)

	case dirEndif:
		saved, ok := lx.preproc.Pop()
		if !ok {
			lx.addError("Mismatched #endif")
			return abort
		}
		lx.pos += len("endif")
		if lx.stack.Dead {
			lx.stack = saved
		}
	}

	lx.push(Preprocess)
	return next
}

// findIn returns the index of the table entry that matches whole-word at i.
func (lx *Lexer) findIn(i int, table []string) int {
	rest := ""
	if i < len(lx.text) {
		rest = lx.text[i:]
	}
	for j, word := range table {
		if !strings.HasPrefix(rest, word) {
			continue
		}
		if k := len(word); k >= len(rest) || !isNameChar(rest[k]) {
			return j
		}
	}
	return -1
}

func (lx *Lexer) endOfLine(startMode Mode) {
	switch lx.mode {
	case ConstQuote, ConstChar:
		if lx.charAt(lx.pos-1) == '\\' {
			break
		}
		// A plain literal must end on its own line.
		lx.addError("new line in constant")
		lx.mode = lx.pop(lx.mode)

	case AsmCmd:
		lx.mode = lx.popStatement(AsmCmd)

	case LineComment:
		lx.mode = lx.pop(LineComment)

	case Preprocess:
		if startMode == Preprocess {
			lx.indent = 1
		} else {
			lx.indent = 0
		}
		if lx.charAt(lx.pos-1) == '\\' {
			break
		}
		lx.mode = lx.pop(Preprocess)
	}
}

func isSpace(ch byte) bool {
	switch ch {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func isNL(ch byte) bool {
	return ch == '\n' || ch == '\r'
}

func isNameChar(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}
