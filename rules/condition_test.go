package rules

import "testing"

func TestEvaluateCondition(t *testing.T) {
	answers := AnswerMap{
		"age":     Num(30),
		"country": Str("US"),
		"comment": Str("great service"),
		"score":   Str("7"),
		"member":  Bool(true),
		"tags":    List(Str("a"), Str("b")),
	}

	tests := []struct {
		name string
		cond *Condition
		want bool
	}{
		{"nil condition", nil, false},
		{"equals", ptr(Compare(OpEquals, "country", Str("US"))), true},
		{"equals is strict", ptr(Compare(OpEquals, "age", Str("30"))), false},
		{"not_equals", ptr(Compare(OpNotEquals, "country", Str("CA"))), true},
		{"not_equals missing answer", ptr(Compare(OpNotEquals, "missing", Str("x"))), true},
		{"contains", ptr(Compare(OpContains, "comment", Str("great"))), true},
		{"contains stringifies numbers", ptr(Compare(OpContains, "age", Num(3))), true},
		{"contains on missing answer", ptr(Compare(OpContains, "missing", Str("x"))), false},
		{"greater", ptr(Compare(OpGreater, "age", Num(18))), true},
		{"greater coerces strings", ptr(Compare(OpGreater, "score", Num(5))), true},
		{"less", ptr(Compare(OpLess, "age", Num(18))), false},
		{"greater with NaN", ptr(Compare(OpGreater, "comment", Num(0))), false},
		{"less with NaN", ptr(Compare(OpLess, "comment", Num(0))), false},
		{"greater on missing answer", ptr(Compare(OpGreater, "missing", Num(0))), false},
		{"bool as number", ptr(Compare(OpGreater, "member", Num(0))), true},
		{"in", ptr(Compare(OpIn, "country", List(Str("US"), Str("CA")))), true},
		{"in without list", ptr(Compare(OpIn, "country", Str("US"))), false},
		{"not_in", ptr(Compare(OpNotIn, "country", List(Str("FR")))), true},
		{"not_in without list", ptr(Compare(OpNotIn, "country", Str("FR"))), false},
		{"list answer equals list", ptr(Compare(OpEquals, "tags", List(Str("a"), Str("b")))), true},
		{"missing field name", ptr(Compare(OpEquals, "", Null())), false},
		{"unknown operator", ptr(Compare("matches", "country", Str("US"))), false},
		{"and", ptr(And(Compare(OpEquals, "country", Str("US")), Compare(OpGreater, "age", Num(18)))), true},
		{"and with false child", ptr(And(Compare(OpEquals, "country", Str("US")), Compare(OpLess, "age", Num(18)))), false},
		{"empty and", ptr(And()), false},
		{"or", ptr(Or(Compare(OpEquals, "country", Str("CA")), Compare(OpGreater, "age", Num(18)))), true},
		{"empty or", ptr(Or()), false},
		{"nested", ptr(Or(And(), And(Compare(OpIn, "tags", List(List(Str("a"), Str("b"))))))), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvaluateCondition(tt.cond, answers); got != tt.want {
				t.Errorf("EvaluateCondition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateConditionNilAnswers(t *testing.T) {
	c := Compare(OpEquals, "x", Null())
	if !EvaluateCondition(&c, nil) {
		t.Error("a missing answer should equal null")
	}
}

func ptr[T any](v T) *T { return &v }
