package rules

import "strings"

// Operator is the tag of a condition node
type Operator string

// Comparison operators
const (
	OpEquals    Operator = "equals"
	OpNotEquals Operator = "not_equals"
	OpContains  Operator = "contains"
	OpGreater   Operator = "greater"
	OpLess      Operator = "less"
	OpIn        Operator = "in"
	OpNotIn     Operator = "not_in"
)

// Combinators
const (
	OpAnd Operator = "and"
	OpOr  Operator = "or"
)

// IsCombinator reports whether op joins child conditions
func (op Operator) IsCombinator() bool {
	return op == OpAnd || op == OpOr
}

// IsComparison reports whether op compares an answer with a literal
func (op Operator) IsComparison() bool {
	switch op {
	case OpEquals, OpNotEquals, OpContains, OpGreater, OpLess, OpIn, OpNotIn:
		return true
	}
	return false
}

// Condition is a node of a condition tree. Comparison nodes use Field and
// Value; combinator nodes (and/or) use Conditions.
type Condition struct {
	Type       Operator    `json:"type" yaml:"type"`
	Field      string      `json:"field,omitempty" yaml:"field,omitempty"`
	Value      Value       `json:"value,omitzero" yaml:"value,omitempty"`
	Conditions []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// Compare builds a comparison node
func Compare(op Operator, field string, value Value) Condition {
	return Condition{Type: op, Field: field, Value: value}
}

// And builds a node that holds when every child holds
func And(children ...Condition) Condition {
	return Condition{Type: OpAnd, Conditions: children}
}

// Or builds a node that holds when any child holds
func Or(children ...Condition) Condition {
	return Condition{Type: OpOr, Conditions: children}
}

// EvaluateCondition evaluates c against answers. Malformed nodes, unknown
// operators and a nil condition evaluate to false.
func EvaluateCondition(c *Condition, answers AnswerMap) bool {
	if c == nil {
		return false
	}

	switch c.Type {
	case OpAnd:
		if len(c.Conditions) == 0 {
			return false
		}
		for i := range c.Conditions {
			if !EvaluateCondition(&c.Conditions[i], answers) {
				return false
			}
		}
		return true

	case OpOr:
		for i := range c.Conditions {
			if EvaluateCondition(&c.Conditions[i], answers) {
				return true
			}
		}
		return false
	}

	if c.Field == "" {
		return false
	}
	return compare(c.Type, answers.Get(c.Field), c.Value)
}

func compare(op Operator, answer, literal Value) bool {
	switch op {
	case OpEquals:
		return answer.Equal(literal)
	case OpNotEquals:
		return !answer.Equal(literal)
	case OpContains:
		return strings.Contains(answer.Text(), literal.Text())
	case OpGreater:
		return answer.Float() > literal.Float()
	case OpLess:
		return answer.Float() < literal.Float()
	case OpIn:
		return literal.Kind() == KindList && contains(literal.list, answer)
	case OpNotIn:
		return literal.Kind() == KindList && !contains(literal.list, answer)
	}
	return false
}

func contains(items []Value, v Value) bool {
	for _, item := range items {
		if item.Equal(v) {
			return true
		}
	}
	return false
}
