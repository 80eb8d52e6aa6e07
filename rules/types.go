package rules

import "time"

// Action is what a routing rule does when its condition holds
type Action string

const (
	ActionSkipTo    Action = "skip_to"
	ActionShowIf    Action = "show_if"
	ActionHideIf    Action = "hide_if"
	ActionEndSurvey Action = "end_survey"
)

// Valid reports whether a is one of the four known actions
func (a Action) Valid() bool {
	switch a {
	case ActionSkipTo, ActionShowIf, ActionHideIf, ActionEndSurvey:
		return true
	}
	return false
}

// Question is the part of a survey question the logic engine needs
type Question struct {
	ID           string     `json:"id" yaml:"id"`
	Code         string     `json:"code" yaml:"code"`
	Order        int        `json:"order" yaml:"order"`
	Text         string     `json:"text,omitempty" yaml:"text,omitempty"`
	DisplayLogic *Condition `json:"displayLogic,omitempty" yaml:"display_logic,omitempty"`
}

// RoutingRule attaches conditional behavior to survey questions.
// Empty SourceQuestionID and TargetQuestionID mean the rule has none.
type RoutingRule struct {
	ID               string     `json:"id" yaml:"id"`
	Name             string     `json:"name,omitempty" yaml:"name,omitempty"`
	SourceQuestionID string     `json:"sourceQuestionId,omitempty" yaml:"source_question_id,omitempty"`
	Condition        *Condition `json:"condition" yaml:"condition"`
	TargetQuestionID string     `json:"targetQuestionId,omitempty" yaml:"target_question_id,omitempty"`
	Action           Action     `json:"action" yaml:"action"`
	Priority         int        `json:"priority" yaml:"priority"`
	IsActive         bool       `json:"isActive" yaml:"is_active"`
	CreatedAt        time.Time  `json:"createdAt,omitzero" yaml:"-"`
	UpdatedAt        time.Time  `json:"updatedAt,omitzero" yaml:"-"`
}

// Reason explains how a routing decision was reached
type Reason string

const (
	// ReasonRule means a skip_to rule chose the next question
	ReasonRule Reason = "rule"
	// ReasonEndRule means an end_survey rule ended the survey
	ReasonEndRule Reason = "end_rule"
	// ReasonLinear means no rule matched and the next question in order was chosen
	ReasonLinear Reason = "linear"
	// ReasonEndOfSurvey means no rule matched and no later question exists
	ReasonEndOfSurvey Reason = "end_of_survey"
)

// Decision is the outcome of routing from one question
type Decision struct {
	NextQuestionID string `json:"nextQuestionId,omitempty"`
	End            bool   `json:"end"`
	RuleID         string `json:"ruleId,omitempty"`
	Reason         Reason `json:"reason"`
}

// ValidationResult lists the problems found in a rule set.
// Warnings never make a rule set invalid.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}
