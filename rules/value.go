package rules

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValueKind identifies which variant a Value holds
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindList
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	}
	return "unknown"
}

// Value is an answer or a condition literal: a string, number, boolean,
// list of values, or null for an absent value. The zero Value is null.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	list []Value
}

// Null returns the absent value
func Null() Value { return Value{} }

// Str returns a string value
func Str(s string) Value { return Value{kind: KindString, str: s} }

// Num returns a number value
func Num(n float64) Value { return Value{kind: KindNumber, num: n} }

// Bool returns a boolean value
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// List returns a list value holding a copy of items
func List(items ...Value) Value {
	return Value{kind: KindList, list: append([]Value{}, items...)}
}

// Kind returns the variant held by v
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether v is the absent value
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsZero reports whether v is null, so that absent literals are omitted when encoding
func (v Value) IsZero() bool { return v.kind == KindNull }

// Items returns the elements of a list value, or nil for other kinds
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	return append([]Value{}, v.list...)
}

// Equal compares strictly: values of different kinds are never equal,
// so Num(5) does not equal Str("5"). Lists are equal when their elements
// are pairwise equal. Two nulls are equal.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == other.str
	case KindNumber:
		return v.num == other.num
	case KindBool:
		return v.b == other.b
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Text is the textual form used by the contains operator.
// Null becomes the empty string and list elements are joined with ",".
func (v Value) Text() string {
	return v.join(",")
}

// PipeText is the textual form substituted into question text.
// List elements are joined with ", ".
func (v Value) PipeText() string {
	return v.join(", ")
}

func (v Value) join(sep string) string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return formatNumber(v.num)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.join(sep)
		}
		return strings.Join(parts, sep)
	}
	return ""
}

// Float is the numeric form used by the greater and less operators.
// Booleans become 1 or 0 and strings are parsed as decimals after trimming.
// Null, lists, and text that is empty or not a number become NaN.
func (v Value) Float() float64 {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindString:
		s := strings.TrimSpace(v.str)
		if s == "" {
			return math.NaN()
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return n
	}
	return math.NaN()
}

func (v Value) String() string {
	if v.kind == KindString {
		return strconv.Quote(v.str)
	}
	if v.kind == KindNull {
		return "null"
	}
	if v.kind == KindList {
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return v.Text()
}

func formatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// FromAny converts a decoded JSON or YAML value into a Value.
// Objects and other unsupported types are rejected.
func FromAny(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case string:
		return Str(x), nil
	case bool:
		return Bool(x), nil
	case float64:
		return Num(x), nil
	case float32:
		return Num(float64(x)), nil
	case int:
		return Num(float64(x)), nil
	case int64:
		return Num(float64(x)), nil
	case int32:
		return Num(float64(x)), nil
	case uint64:
		return Num(float64(x)), nil
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return Null(), fmt.Errorf("invalid number %q: %w", x, err)
		}
		return Num(n), nil
	case []string:
		items := make([]Value, len(x))
		for i, s := range x {
			items[i] = Str(s)
		}
		return Value{kind: KindList, list: items}, nil
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			v, err := FromAny(item)
			if err != nil {
				return Null(), fmt.Errorf("list element %d: %w", i, err)
			}
			items[i] = v
		}
		return Value{kind: KindList, list: items}, nil
	}
	return Null(), fmt.Errorf("unsupported value type %T", raw)
}

// Any converts v back into plain Go values (string, float64, bool, []any or nil)
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindList:
		items := make([]any, len(v.list))
		for i, item := range v.list {
			items[i] = item.Any()
		}
		return items
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindNumber && (math.IsNaN(v.num) || math.IsInf(v.num, 0)) {
		return []byte("null"), nil
	}
	return json.Marshal(v.Any())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) MarshalYAML() (any, error) {
	return v.Any(), nil
}

func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*v = parsed
	return nil
}

// AnswerMap holds the answers collected so far, keyed by field name or
// question code. It is only ever read.
type AnswerMap map[string]Value

// Get returns the answer stored under field, or Null when it is missing
func (a AnswerMap) Get(field string) Value {
	if a == nil {
		return Null()
	}
	return a[field]
}

// AnswersFromMap converts decoded JSON or YAML answers into an AnswerMap
func AnswersFromMap(raw map[string]any) (AnswerMap, error) {
	answers := make(AnswerMap, len(raw))
	for key, item := range raw {
		v, err := FromAny(item)
		if err != nil {
			return nil, fmt.Errorf("answer %q: %w", key, err)
		}
		answers[key] = v
	}
	return answers, nil
}
