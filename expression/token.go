package expression

import "fmt"

// Kind classifies a scanned token
type Kind int

const (
	Number Kind = iota
	Operator
	Ident
	LeftParen
	RightParen
	Comma
	End
)

// String returns the token kind name used in error messages
func (k Kind) String() string {
	switch k {
	case Number:
		return "number"
	case Operator:
		return "operator"
	case Ident:
		return "identifier"
	case LeftParen:
		return "left-paren"
	case RightParen:
		return "right-paren"
	case Comma:
		return "comma"
	case End:
		return "end"
	}
	return "unknown"
}

// Token is a single lexical unit of an arithmetic expression.
// Num is set for Number tokens, Text holds the raw source text
// (lower-cased for Ident tokens).
type Token struct {
	Kind Kind
	Num  float64
	Text string
	Pos  int
}

func (t Token) String() string {
	if t.Kind == End {
		return "end of input"
	}
	return fmt.Sprintf("%s %q", t.Kind, t.Text)
}
