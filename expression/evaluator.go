package expression

import (
	"fmt"
	"math"
	"regexp"
)

// allowedCharacters is the whitelist applied before any scanning takes place
var allowedCharacters = regexp.MustCompile(`^[0-9\s+\-*/().a-zA-Z_,]*$`)

// binding powers of the binary operators
var precedence = map[string]int{
	"+": 1,
	"-": 1,
	"*": 2,
	"/": 2,
}

// MaxDepth bounds the nesting of parentheses, unary minus and function
// calls. Deeper input is a parse error instead of unbounded recursion.
const MaxDepth = 256

// evaluator consumes a token slice and reduces it to a number as it parses.
// No syntax tree is built.
type evaluator struct {
	tokens []Token
	pos    int
	depth  int
}

// nest records one more level of recursion opened by tok
func (e *evaluator) nest(tok Token) error {
	e.depth++
	if e.depth > MaxDepth {
		return &ParseError{Pos: tok.Pos, Msg: fmt.Sprintf("nesting deeper than %d levels", MaxDepth)}
	}
	return nil
}

func (e *evaluator) peek() Token {
	return e.tokens[e.pos]
}

func (e *evaluator) advance() Token {
	tok := e.tokens[e.pos]
	if tok.Kind != End {
		e.pos++
	}
	return tok
}

func (e *evaluator) expect(kind Kind) (Token, error) {
	tok := e.advance()
	if tok.Kind != kind {
		return tok, &ParseError{Pos: tok.Pos, Msg: fmt.Sprintf("expected %s, found %s", kind, tok)}
	}
	return tok, nil
}

// expression evaluates operators whose precedence is at least minPrec.
// The right operand is evaluated with minPrec raised by one, which makes
// every operator left-associative.
func (e *evaluator) expression(minPrec int) (float64, error) {
	left, err := e.term()
	if err != nil {
		return 0, err
	}

	for {
		tok := e.peek()
		if tok.Kind != Operator {
			return left, nil
		}
		prec := precedence[tok.Text]
		if prec < minPrec {
			return left, nil
		}
		e.advance()

		right, err := e.expression(prec + 1)
		if err != nil {
			return 0, err
		}
		left = apply(tok.Text, left, right)
	}
}

func (e *evaluator) term() (float64, error) {
	tok := e.advance()
	if tok.Kind == Number {
		return tok.Num, nil
	}

	if err := e.nest(tok); err != nil {
		return 0, err
	}
	defer func() { e.depth-- }()

	switch tok.Kind {
	case Operator:
		if tok.Text != "-" {
			return 0, &ParseError{Pos: tok.Pos, Msg: fmt.Sprintf("unexpected %s", tok)}
		}
		v, err := e.term()
		if err != nil {
			return 0, err
		}
		return -v, nil

	case LeftParen:
		v, err := e.expression(0)
		if err != nil {
			return 0, err
		}
		if _, err := e.expect(RightParen); err != nil {
			return 0, err
		}
		return v, nil

	case Ident:
		return e.call(tok)
	}

	return 0, &ParseError{Pos: tok.Pos, Msg: fmt.Sprintf("unexpected %s", tok)}
}

// call evaluates the argument list of a function call and invokes the registry entry
func (e *evaluator) call(name Token) (float64, error) {
	fn, err := Lookup(name.Text)
	if err != nil {
		return 0, err
	}
	if _, err := e.expect(LeftParen); err != nil {
		return 0, err
	}

	var args []float64
	if e.peek().Kind == RightParen {
		e.advance()
	} else {
		for {
			v, err := e.expression(0)
			if err != nil {
				return 0, err
			}
			args = append(args, v)

			tok := e.advance()
			if tok.Kind == RightParen {
				break
			}
			if tok.Kind != Comma {
				return 0, &ParseError{Pos: tok.Pos, Msg: fmt.Sprintf("expected comma or right-paren, found %s", tok)}
			}
		}
	}

	if !fn.accepts(len(args)) {
		return 0, &ArityError{Name: fn.Name, Got: len(args), Min: fn.MinArgs, Max: fn.MaxArgs}
	}
	return fn.Call(args), nil
}

func apply(op string, left, right float64) float64 {
	switch op {
	case "+":
		return left + right
	case "-":
		return left - right
	case "*":
		return left * right
	default:
		return left / right
	}
}

// evaluateTokens parses a complete token stream and rejects leftover input
func evaluateTokens(tokens []Token) (float64, error) {
	e := &evaluator{tokens: tokens}
	v, err := e.expression(0)
	if err != nil {
		return 0, err
	}
	if tok := e.peek(); tok.Kind != End {
		return 0, &TrailingTokensError{Token: tok}
	}
	return v, nil
}

// Evaluate computes an arithmetic expression and reports why it failed when
// no value can be produced. It applies the character whitelist, scans,
// evaluates, and rejects non-finite results.
func Evaluate(expr string) (float64, error) {
	if !allowedCharacters.MatchString(expr) {
		return 0, ErrIllegalCharacter
	}

	tokens, err := Tokenize(expr)
	if err != nil {
		return 0, err
	}

	v, err := evaluateTokens(tokens)
	if err != nil {
		return 0, err
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNonFinite
	}
	return v, nil
}

// SafeEvaluate computes a calculated field value. It returns false instead of
// an error for every failure, including input outside the whitelist, syntax
// errors, unknown functions, and NaN or infinite results.
func SafeEvaluate(expr string) (value float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			value, ok = 0, false
		}
	}()

	v, err := Evaluate(expr)
	if err != nil {
		return 0, false
	}
	return v, true
}
