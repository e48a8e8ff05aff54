package cfamily

import "fmt"

// Mode is the lexical context the C-family lexer is in.
type Mode uint8

const (
	Global    Mode = iota // file scope; implicit, never pushed
	Statement             // for() if() switch() etc. awaiting a following statement

	Asm
	AsmCmd
	AsmBrace

	Brace
	Parenth
	Bracket

	Comment     // /* */, does not nest
	LineComment // to end of line
	Preprocess  // #define, #if; whole line, may continue with a backslash

	ConstQuote
	ConstChar
	ConstQuoteRaw // R"(...)"
)

var modeTable = [...]struct {
	name  string
	token byte
}{
	Global:        {"Global", '.'},        // global code space (default)
	Statement:     {"Statement", ';'},     // for() if() switch(), must have a following statement
	Asm:           {"Asm", ';'},           // _asm block or command
	AsmCmd:        {"AsmCmd", ';'},        // _asm command, requires no ;
	AsmBrace:      {"AsmBrace", '}'},      // _asm { } contents are ignored
	Brace:         {"Brace", '}'},         // inside at least one set of braces
	Parenth:       {"Parenth", ')'},       // inside at least one set of parentheses
	Bracket:       {"Bracket", ']'},       // inside brackets
	Comment:       {"Comment", '/'},       // block comment, interrupts other modes
	LineComment:   {"LineComment", '/'},   // comment to the end of the line
	Preprocess:    {"Preprocess", '#'},    // preprocessor directive, takes the whole line
	ConstQuote:    {"ConstQuote", '"'},    // string literal
	ConstChar:     {"ConstChar", '\''},    // character literal
	ConstQuoteRaw: {"ConstQuoteRaw", '"'}, // raw string literal R"(...)"
}

func (m Mode) String() string {
	if int(m) >= len(modeTable) {
		return fmt.Sprintf("Mode(%d)", m)
	}
	return modeTable[m].name
}

// Token returns the character that closes the mode.
func (m Mode) Token() byte {
	if int(m) >= len(modeTable) {
		return '?'
	}
	return modeTable[m].token
}

// Marker records where a mode was opened.
type Marker struct {
	Mode Mode
	Line int // 1-based
	Col  int // 0-based
}

// UnmatchedError is returned when popping an empty stack.
type UnmatchedError struct {
	Want Mode
}

func (e *UnmatchedError) Error() string {
	return fmt.Sprintf("Unmatched %s block, mode=%s", e.Want, Global)
}

// MismatchError is returned when the popped mode is not the expected one.
// It indicates broken stack discipline; the pop still happens.
type MismatchError struct {
	Want, Got Mode
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("internal error: bad mode %s!=%s", e.Want, e.Got)
}

// OrderError is returned when a push is not strictly after the current top.
type OrderError struct {
	Push, Top Marker
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("internal error: %s at %d:%d not after %s at %d:%d",
		e.Push.Mode, e.Push.Line, e.Push.Col, e.Top.Mode, e.Top.Line, e.Top.Col)
}

// ModeStack is the nesting stack of the C-family lexer. The zero value is an
// empty stack in Global mode.
type ModeStack struct {
	markers []Marker

	Braces int // open Brace and AsmBrace markers
	Parens int // open Parenth markers

	Line int  // directive line that created this stack; 0 for the file start
	Dead bool // inside a preprocessor branch that never compiles
}

// Empty reports whether no mode is open.
func (s *ModeStack) Empty() bool {
	return len(s.markers) == 0
}

// Len returns the number of open modes.
func (s *ModeStack) Len() int {
	return len(s.markers)
}

// Top returns the current mode, Global when empty.
func (s *ModeStack) Top() Mode {
	if len(s.markers) == 0 {
		return Global
	}
	return s.markers[len(s.markers)-1].Mode
}

// TopMarker returns the innermost marker and false when empty.
func (s *ModeStack) TopMarker() (Marker, bool) {
	if len(s.markers) == 0 {
		return Marker{}, false
	}
	return s.markers[len(s.markers)-1], true
}

// Push opens mode m at line/col. An out-of-order push is still recorded and
// reported as an OrderError.
func (s *ModeStack) Push(m Mode, line, col int) error {
	var err error
	if top, ok := s.TopMarker(); ok {
		if line < top.Line || (line == top.Line && col <= top.Col) {
			err = &OrderError{Push: Marker{m, line, col}, Top: top}
		}
	}
	switch m {
	case Brace, AsmBrace:
		s.Braces++
	case Parenth:
		s.Parens++
	}
	s.markers = append(s.markers, Marker{Mode: m, Line: line, Col: col})
	return err
}

// Pop closes the expected mode m and returns the mode now on top.
func (s *ModeStack) Pop(m Mode) (Mode, error) {
	switch m {
	case Brace, AsmBrace:
		s.Braces--
	case Parenth:
		s.Parens--
	}
	if len(s.markers) == 0 {
		return Global, &UnmatchedError{Want: m}
	}
	var err error
	if top := s.Top(); top != m {
		err = &MismatchError{Want: m, Got: top}
	}
	s.markers = s.markers[:len(s.markers)-1]
	return s.Top(), err
}

// PopStatement pops m and then every Statement directly beneath it, so
// `if (x) for (;;) foo();` unwinds in one step.
func (s *ModeStack) PopStatement(m Mode) (Mode, []error) {
	var errs []error
	for {
		var err error
		m, err = s.Pop(m)
		if err != nil {
			errs = append(errs, err)
		}
		if m != Statement {
			return m, errs
		}
	}
}

// Clone returns an independent copy for a preprocessor branch. The copy is
// dead if s is dead or dead is set.
func (s *ModeStack) Clone(line int, dead bool) *ModeStack {
	c := &ModeStack{
		markers: make([]Marker, len(s.markers)),
		Braces:  s.Braces,
		Parens:  s.Parens,
		Line:    line,
		Dead:    s.Dead || dead,
	}
	copy(c.markers, s.markers)
	return c
}

// PreprocStack holds the mode stacks saved at each open #if.
type PreprocStack struct {
	saved []*ModeStack
}

// Push saves s. The caller must not mutate s afterwards.
func (p *PreprocStack) Push(s *ModeStack) {
	p.saved = append(p.saved, s)
}

// Top returns the innermost saved stack.
func (p *PreprocStack) Top() (*ModeStack, bool) {
	if len(p.saved) == 0 {
		return nil, false
	}
	return p.saved[len(p.saved)-1], true
}

// Pop removes and returns the innermost saved stack.
func (p *PreprocStack) Pop() (*ModeStack, bool) {
	s, ok := p.Top()
	if ok {
		p.saved = p.saved[:len(p.saved)-1]
	}
	return s, ok
}

// Len returns the number of open #if blocks.
func (p *PreprocStack) Len() int {
	return len(p.saved)
}
