package expression

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalCharacter is returned when an expression contains a character
	// outside the arithmetic whitelist. Nothing is tokenized in that case.
	ErrIllegalCharacter = errors.New("expression contains characters outside the allowed set")

	// ErrNonFinite is returned when an expression evaluates to NaN or an infinity
	ErrNonFinite = errors.New("expression result is not a finite number")
)

// LexError reports a character or number literal the scanner cannot accept
type LexError struct {
	Pos int
	Msg string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at offset %d: %s", e.Pos, e.Msg)
}

// ParseError reports a token sequence that does not match the grammar
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Pos, e.Msg)
}

// UnknownFunctionError is returned for a call to a name outside the registry
type UnknownFunctionError struct {
	Name string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("unknown function %q", e.Name)
}

// ArityError is returned when a registered function receives the wrong number of arguments
type ArityError struct {
	Name string
	Got  int
	Min  int
	Max  int
}

func (e *ArityError) Error() string {
	switch {
	case e.Max == Variadic:
		return fmt.Sprintf("function %s expects at least %d argument(s), got %d", e.Name, e.Min, e.Got)
	case e.Min == e.Max:
		return fmt.Sprintf("function %s expects %d argument(s), got %d", e.Name, e.Min, e.Got)
	default:
		return fmt.Sprintf("function %s expects %d to %d arguments, got %d", e.Name, e.Min, e.Max, e.Got)
	}
}

// TrailingTokensError is returned when a complete expression is followed by more input
type TrailingTokensError struct {
	Token Token
}

func (e *TrailingTokensError) Error() string {
	return fmt.Sprintf("unexpected %s at offset %d after end of expression", e.Token, e.Token.Pos)
}
