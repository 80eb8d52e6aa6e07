package survey

import (
	"time"

	"github.com/liamcoop/surveylogic/rules"
)

// Definition is everything the logic engine knows about one survey
type Definition struct {
	ID            string              `json:"id" yaml:"id"`
	Name          string              `json:"name" yaml:"name"`
	Questions     []rules.Question    `json:"questions" yaml:"questions"`
	Rules         []rules.RoutingRule `json:"rules" yaml:"rules"`
	DerivedFields []DerivedField      `json:"derivedFields,omitempty" yaml:"derived_fields,omitempty"`
	CreatedAt     time.Time           `json:"createdAt,omitzero" yaml:"-"`
	UpdatedAt     time.Time           `json:"updatedAt,omitzero" yaml:"-"`
}

// DerivedField is a calculated value. Its expression may contain {CODE}
// placeholders, which are piped before the arithmetic is evaluated.
type DerivedField struct {
	Name       string `json:"name" yaml:"name"`
	Expression string `json:"expression" yaml:"expression"`
}

// DerivedResult is the outcome of one derived field. Value is nil when the
// expression could not be evaluated.
type DerivedResult struct {
	Name  string   `json:"name"`
	Value *float64 `json:"value"`
}

// Question returns the question with the given id
func (d *Definition) Question(id string) (rules.Question, bool) {
	for _, q := range d.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return rules.Question{}, false
}

// Rule returns the routing rule with the given id
func (d *Definition) Rule(id string) (rules.RoutingRule, bool) {
	for _, r := range d.Rules {
		if r.ID == id {
			return r, true
		}
	}
	return rules.RoutingRule{}, false
}

// Clone returns a deep copy of d, so stores and caches never share
// condition trees with their callers.
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}
	out := *d
	out.Questions = make([]rules.Question, len(d.Questions))
	for i, q := range d.Questions {
		q.DisplayLogic = cloneCondition(q.DisplayLogic)
		out.Questions[i] = q
	}
	out.Rules = make([]rules.RoutingRule, len(d.Rules))
	for i, r := range d.Rules {
		out.Rules[i] = cloneRule(r)
	}
	out.DerivedFields = append([]DerivedField(nil), d.DerivedFields...)
	return &out
}

func cloneRule(r rules.RoutingRule) rules.RoutingRule {
	r.Condition = cloneCondition(r.Condition)
	return r
}

func cloneCondition(c *rules.Condition) *rules.Condition {
	if c == nil {
		return nil
	}
	out := *c
	if c.Conditions != nil {
		out.Conditions = make([]rules.Condition, len(c.Conditions))
		for i := range c.Conditions {
			out.Conditions[i] = *cloneCondition(&c.Conditions[i])
		}
	}
	return &out
}
