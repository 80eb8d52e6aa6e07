package expression

import (
	"fmt"
	"strconv"
	"strings"
)

// Scanner walks an expression string and produces tokens.
// It only understands numbers, identifiers, the four arithmetic
// operators, parentheses and commas.
type Scanner struct {
	src string
	pos int
}

// NewScanner creates a scanner positioned at the start of src
func NewScanner(src string) *Scanner {
	return &Scanner{src: src}
}

// Tokenize scans source completely and returns its tokens followed by an End token
func Tokenize(source string) ([]Token, error) {
	s := NewScanner(source)
	var tokens []Token
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == End {
			return tokens, nil
		}
	}
}

// Next returns the next token. Once the input is exhausted it keeps returning End.
func (s *Scanner) Next() (Token, error) {
	s.skipSpace()
	if s.pos >= len(s.src) {
		return Token{Kind: End, Pos: s.pos}, nil
	}

	start := s.pos
	c := s.src[s.pos]
	switch {
	case isDigit(c) || c == '.':
		return s.scanNumber()
	case isIdentStart(c):
		return s.scanIdentifier(), nil
	case c == '+' || c == '-' || c == '*' || c == '/':
		s.pos++
		return Token{Kind: Operator, Text: string(c), Pos: start}, nil
	case c == '(':
		s.pos++
		return Token{Kind: LeftParen, Text: "(", Pos: start}, nil
	case c == ')':
		s.pos++
		return Token{Kind: RightParen, Text: ")", Pos: start}, nil
	case c == ',':
		s.pos++
		return Token{Kind: Comma, Text: ",", Pos: start}, nil
	}

	return Token{}, &LexError{Pos: start, Msg: fmt.Sprintf("unexpected character %q", c)}
}

func (s *Scanner) skipSpace() {
	for s.pos < len(s.src) && isSpace(s.src[s.pos]) {
		s.pos++
	}
}

func (s *Scanner) scanNumber() (Token, error) {
	start := s.pos
	seenDot := false
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c == '.' {
			if seenDot {
				return Token{}, &LexError{Pos: s.pos, Msg: "malformed number: second decimal point"}
			}
			seenDot = true
		} else if !isDigit(c) {
			break
		}
		s.pos++
	}

	text := s.src[start:s.pos]
	if text == "." {
		return Token{}, &LexError{Pos: start, Msg: "malformed number: decimal point without digits"}
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Token{}, &LexError{Pos: start, Msg: fmt.Sprintf("malformed number %q", text)}
	}
	return Token{Kind: Number, Num: value, Text: text, Pos: start}, nil
}

func (s *Scanner) scanIdentifier() Token {
	start := s.pos
	for s.pos < len(s.src) && isIdentPart(s.src[s.pos]) {
		s.pos++
	}
	return Token{Kind: Ident, Text: strings.ToLower(s.src[start:s.pos]), Pos: start}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentStart(c byte) bool {
	return isLetter(c) || c == '_'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}
