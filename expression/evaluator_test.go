package expression

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestSafeEvaluate_Values(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"2+3*4", 14},
		{"(2+3)*4", 20},
		{"10-4-3", 3},
		{"64/4/2", 8},
		{"2*3+4*5", 26},
		{"-3+5", 2},
		{"2*-3", -6},
		{"--4", 4},
		{"-(1+2)*3", -9},
		{"avg(1,2,3)", 2},
		{"AVG(1, 2, 3)", 2},
		{"round(3.14159, 2)", 3.14},
		{"round(2.5)", 3},
		{"sum()", 0},
		{"sum(1, 2, 3) / 3", 2},
		{"max(1, min(8, 5), 2)", 5},
		{"pow(2, 3) + power(3, 2)", 17},
		{"index(30, 120)", 25},
		{"abs(-7.5)", 7.5},
		{"sqrt(2*8)", 4},
		{"  1 +\n\t2 ", 3},
		{"0.1 * 10", 1},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, ok := SafeEvaluate(tt.expr)
			if !ok {
				t.Fatalf("SafeEvaluate(%q) rejected the expression", tt.expr)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("SafeEvaluate(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestSafeEvaluate_Rejected(t *testing.T) {
	tests := []string{
		"sqrt(-1)",
		"1/0",
		"-1/0",
		"0/0",
		"index(5, 0)",
		"alert(1)",
		"1); DROP TABLE x; --",
		"constructor.constructor('return process')()",
		"a.b",
		"x[0]",
		"2^3",
		"1 == 1",
		"",
		"   ",
		"1 +",
		"(1 + 2",
		"1 + 2)",
		"2 3",
		"avg()",
		"abs(1, 2)",
		"round(1, 2, 3)",
		"sum(1,)",
		"sum(,1)",
		"avg",
		"pow 2, 3",
		"1..2",
		".",
		"*3",
		"min()",
		"pow(10, 400)",
		"1e5",
	}

	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			got, ok := SafeEvaluate(expr)
			if ok || got != 0 {
				t.Errorf("SafeEvaluate(%q) = (%v, %v), want (0, false)", expr, got, ok)
			}
		})
	}
}

func TestSafeEvaluate_Deterministic(t *testing.T) {
	exprs := []string{"2+3*4", "avg(1,2,3)", "round(2/3, 4)", "1/0", "alert(1)"}
	for _, expr := range exprs {
		first, firstOK := SafeEvaluate(expr)
		for i := 0; i < 10; i++ {
			got, ok := SafeEvaluate(expr)
			if ok != firstOK || got != first {
				t.Errorf("SafeEvaluate(%q) = (%v, %v), first call gave (%v, %v)", expr, got, ok, first, firstOK)
			}
		}
	}
}

func TestEvaluate_ErrorKinds(t *testing.T) {
	t.Run("illegal character", func(t *testing.T) {
		if _, err := Evaluate("1; 2"); !errors.Is(err, ErrIllegalCharacter) {
			t.Errorf("error = %v, want ErrIllegalCharacter", err)
		}
	})

	t.Run("non-finite", func(t *testing.T) {
		if _, err := Evaluate("1/0"); !errors.Is(err, ErrNonFinite) {
			t.Errorf("error = %v, want ErrNonFinite", err)
		}
	})

	t.Run("lex error", func(t *testing.T) {
		_, err := Evaluate("1.2.3")
		var lexErr *LexError
		if !errors.As(err, &lexErr) {
			t.Errorf("error = %v, want *LexError", err)
		}
	})

	t.Run("unknown function", func(t *testing.T) {
		_, err := Evaluate("alert(1)")
		var unknown *UnknownFunctionError
		if !errors.As(err, &unknown) {
			t.Fatalf("error = %v, want *UnknownFunctionError", err)
		}
		if unknown.Name != "alert" {
			t.Errorf("Name = %q, want alert", unknown.Name)
		}
	})

	t.Run("arity", func(t *testing.T) {
		_, err := Evaluate("sqrt(1, 2)")
		var arity *ArityError
		if !errors.As(err, &arity) {
			t.Fatalf("error = %v, want *ArityError", err)
		}
		if arity.Got != 2 {
			t.Errorf("Got = %d, want 2", arity.Got)
		}
		if !strings.Contains(err.Error(), "sqrt") {
			t.Errorf("error %q does not name the function", err)
		}
	})

	t.Run("trailing tokens", func(t *testing.T) {
		_, err := Evaluate("1 + 2 )")
		var trailing *TrailingTokensError
		if !errors.As(err, &trailing) {
			t.Fatalf("error = %v, want *TrailingTokensError", err)
		}
		if trailing.Token.Kind != RightParen {
			t.Errorf("trailing token kind = %v, want right-paren", trailing.Token.Kind)
		}
	})

	t.Run("parse error", func(t *testing.T) {
		_, err := Evaluate("(1 + 2")
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Errorf("error = %v, want *ParseError", err)
		}
	})
}

func nested(opening, inner, closing string, depth int) string {
	return strings.Repeat(opening, depth) + inner + strings.Repeat(closing, depth)
}

func TestEvaluate_NestingWithinLimit(t *testing.T) {
	tests := map[string]string{
		"parentheses": nested("(", "1", ")", MaxDepth),
		"unary minus": strings.Repeat("-", MaxDepth) + "1",
		"calls":       nested("abs(", "1", ")", MaxDepth),
	}

	for name, expr := range tests {
		t.Run(name, func(t *testing.T) {
			got, ok := SafeEvaluate(expr)
			if !ok {
				t.Fatalf("expression nested %d deep was rejected", MaxDepth)
			}
			if got != 1 {
				t.Errorf("got %v, want 1", got)
			}
		})
	}
}

func TestEvaluate_NestingTooDeep(t *testing.T) {
	_, err := Evaluate(nested("(", "1", ")", MaxDepth+1))
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error = %v, want *ParseError", err)
	}

	tests := map[string]string{
		"parentheses": nested("(", "1", ")", 1_000_000),
		"unary minus": strings.Repeat("-", 1_000_000) + "1",
		"calls":       nested("abs(", "1", ")", 100_000),
		"unbalanced":  strings.Repeat("(", 1_000_000),
	}
	for name, expr := range tests {
		t.Run(name, func(t *testing.T) {
			if got, ok := SafeEvaluate(expr); ok {
				t.Errorf("SafeEvaluate accepted deeply nested input, got %v", got)
			}
		})
	}
}

func FuzzSafeEvaluate(f *testing.F) {
	seeds := []string{
		"2+3*4", "avg(1,2,3)", "round(3.14159, 2)", "sqrt(-1)", "1/0",
		"alert(1)", "1); DROP TABLE x; --", "((((", "-(-(-1))", "sum(,)",
	}
	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, expr string) {
		first, ok := SafeEvaluate(expr)
		again, againOK := SafeEvaluate(expr)
		if ok != againOK || (ok && first != again) {
			t.Fatalf("SafeEvaluate(%q) is not deterministic", expr)
		}
	})
}
