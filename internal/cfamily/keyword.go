package cfamily

// Keyword identifies a C/C++ keyword that expects trailing syntax.
type Keyword int

const (
	KeyDefault Keyword = iota // takes no arguments
	KeyBreak
	KeyContinue

	KeyCase
	KeyAsm

	// Everything below takes arguments.
	KeyFor
	KeyIf
	KeySwitch
	KeyWhile
	KeyElse
	KeyDo
	KeyStruct
	KeyClass
	KeyUnion
	KeyEnum
	KeyReturn
	KeySizeof
	KeyGoto
	KeyTypedef

	KeyNone // not a keyword
)

// keywordTable is ordered by Keyword value.
var keywordTable = [...]string{
	KeyDefault:  "default",  // default: in switch
	KeyBreak:    "break",    // break; in switch, for or while
	KeyContinue: "continue", // continue;
	KeyCase:     "case",     // case x: label in switch
	KeyAsm:      "_asm",     // _asm x or _asm {;}
	KeyFor:      "for",      // for (;;) {;}
	KeyIf:       "if",       // if (x) {;}
	KeySwitch:   "switch",   // switch (x) { case: default: ;}
	KeyWhile:    "while",    // while (x) {;}
	KeyElse:     "else",     // else [if] {;}
	KeyDo:       "do",       // do {;} while (x);
	KeyStruct:   "struct",   // struct x {} ;
	KeyClass:    "class",    // class x {} ;
	KeyUnion:    "union",    // union x {} ;
	KeyEnum:     "enum",     // enum x {,} ;
	KeyReturn:   "return",   // return(;);
	KeySizeof:   "sizeof",   // sizeof(x) ;
	KeyGoto:     "goto",     // goto x;
	KeyTypedef:  "typedef",  // typedef xtype x;
}

// LookupKeyword returns the keyword spelled exactly by name, or KeyNone.
func LookupKeyword(name string) Keyword {
	for i := range keywordTable {
		if keywordTable[i] == name {
			return Keyword(i)
		}
	}
	return KeyNone
}

func (k Keyword) String() string {
	if k < 0 || int(k) >= len(keywordTable) {
		return "none"
	}
	return keywordTable[k]
}

// IsTypeDecl reports whether the keyword introduces an aggregate type.
func (k Keyword) IsTypeDecl() bool {
	switch k {
	case KeyStruct, KeyClass, KeyUnion, KeyEnum:
		return true
	}
	return false
}
