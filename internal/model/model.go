// Package model defines core data structures for codecounter.
package model

// Bucket is the mutually exclusive line classification consumed by the
// stats aggregator.
type Bucket string

const (
	Blank          Bucket = "blank"
	CommentBlank   Bucket = "comment-blank"
	CommentText    Bucket = "comment"
	Code           Bucket = "code"
	CodeAndComment Bucket = "code+comment"
)

// LineClass is the classification of a single physical line. Lexers reset
// it at the start of every line.
type LineClass struct {
	HasCode        bool // at least one non-whitespace, non-comment token
	HasComment     bool // touches a comment region, even an empty one
	HasCommentText bool // the comment region holds real text
	HasCommentCode bool // the comment region looks like commented-out code
	Errors         []string

	TypeDecls  int    // type declarations recognized on this line
	MethodDecl bool   // a method signature was recognized on this line
	Code       string // comment-stripped residual (C# only)
}

// Bucket returns the single bucket this line falls into.
func (lc *LineClass) Bucket() Bucket {
	switch {
	case lc.HasCode && lc.HasCommentText:
		return CodeAndComment
	case lc.HasCommentText:
		return CommentText
	case lc.HasCode:
		return Code
	case lc.HasComment:
		return CommentBlank
	default:
		return Blank
	}
}

// Counted reports whether the line carries code or comment text. Blank and
// empty-comment lines are not counted for declaration attribution.
func (lc *LineClass) Counted() bool {
	switch lc.Bucket() {
	case Blank, CommentBlank:
		return false
	}
	return true
}

// CodeClass is a type declaration and the method signatures captured while
// inside its body.
type CodeClass struct {
	Name    string   `json:"name" msgpack:"name"`
	Methods []string `json:"methods,omitempty" msgpack:"methods"`
}

// DirectiveKind distinguishes C# namespace directives.
type DirectiveKind string

const (
	Using     DirectiveKind = "using"
	Namespace DirectiveKind = "namespace"
)

// Directive is a raw `using` or `namespace` declaration found in code.
type Directive struct {
	Kind DirectiveKind `json:"kind" msgpack:"kind"`
	Arg  string        `json:"arg" msgpack:"arg"`
	Line int           `json:"line" msgpack:"line"`
}

// LineCounts holds the per-bucket line totals of one file or a whole tree.
type LineCounts struct {
	Lines          int   `json:"lines" msgpack:"lines"`
	Blank          int   `json:"blank" msgpack:"blank"`
	CommentBlank   int   `json:"comment_blank" msgpack:"comment_blank"`
	CommentedOut   int   `json:"commented_out" msgpack:"commented_out"`
	CommentText    int   `json:"comment" msgpack:"comment"`
	Code           int   `json:"code" msgpack:"code"`
	CodeAndComment int   `json:"code_and_comment" msgpack:"code_and_comment"`
	Classes        int   `json:"classes" msgpack:"classes"`
	ClassComments  int   `json:"class_comments" msgpack:"class_comments"`
	Methods        int   `json:"methods" msgpack:"methods"`
	MethodComments int   `json:"method_comments" msgpack:"method_comments"`
	Chars          int64 `json:"chars" msgpack:"chars"`
}

// Add counts one classified line.
func (c *LineCounts) Add(lc *LineClass) {
	c.Lines++
	switch lc.Bucket() {
	case CodeAndComment:
		c.CodeAndComment++
	case CommentText:
		c.CommentText++
	case Code:
		c.Code++
	case CommentBlank:
		c.CommentBlank++
	default:
		c.Blank++
	}
	if lc.HasCommentCode {
		c.CommentedOut++
	}
	c.Classes += lc.TypeDecls
	if lc.MethodDecl {
		c.Methods++
	}
}

// Merge adds other's totals into c.
func (c *LineCounts) Merge(other LineCounts) {
	c.Lines += other.Lines
	c.Blank += other.Blank
	c.CommentBlank += other.CommentBlank
	c.CommentedOut += other.CommentedOut
	c.CommentText += other.CommentText
	c.Code += other.Code
	c.CodeAndComment += other.CodeAndComment
	c.Classes += other.Classes
	c.ClassComments += other.ClassComments
	c.Methods += other.Methods
	c.MethodComments += other.MethodComments
	c.Chars += other.Chars
}

// FileResult is everything counted in a single source file.
type FileResult struct {
	Path       string      `json:"path" msgpack:"path"` // Relative to the walk root
	Language   string      `json:"language" msgpack:"language"`
	Project    string      `json:"project,omitempty" msgpack:"project"`
	Counts     LineCounts  `json:"counts" msgpack:"counts"`
	Classes    []CodeClass `json:"classes,omitempty" msgpack:"classes"`
	Directives []Directive `json:"-" msgpack:"directives"`
	Errors     []string    `json:"errors,omitempty" msgpack:"errors"`
	MaxDepth   int         `json:"max_depth,omitempty" msgpack:"max_depth"`
	Generated  bool        `json:"generated,omitempty" msgpack:"generated"`
}

// Dependency is an edge in the module graph: Source references Target.
type Dependency struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Kind   string `json:"kind"`
}

// Module is a project or package node of the module graph.
type Module struct {
	Name  string  `json:"name"`
	Show  string  `json:"show"`
	Kind  string  `json:"kind"`
	Color string  `json:"color"`
	Rank  float64 `json:"rank"`
}
