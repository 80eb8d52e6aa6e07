package main

import (
	"github.com/liamcoop/surveylogic/rules"
	"github.com/liamcoop/surveylogic/survey"
)

// API request and response models

// CreateTenantRequest is the body of POST /tenants
type CreateTenantRequest struct {
	Name string `json:"name" example:"Acme Research"`
}

// EvaluateExpressionRequest is the body of POST /expressions/evaluate
type EvaluateExpressionRequest struct {
	Expression string `json:"expression" example:"round(avg(3, 4, 5) * 1.5, 1)"`
}

// EvaluateExpressionResponse carries a null value when the expression is rejected
type EvaluateExpressionResponse struct {
	Value *float64 `json:"value"`
	Valid bool     `json:"valid"`
}

// FunctionsResponse lists the functions expressions may call
type FunctionsResponse struct {
	Functions []string `json:"functions"`
}

// EvaluateConditionRequest is the body of POST /conditions/evaluate
type EvaluateConditionRequest struct {
	Condition *rules.Condition `json:"condition"`
	Answers   rules.AnswerMap  `json:"answers"`
}

// EvaluateConditionResponse is the outcome of a condition
type EvaluateConditionResponse struct {
	Result bool `json:"result"`
}

// SurveysListResponse lists a tenant's surveys
type SurveysListResponse struct {
	Surveys []*survey.Definition `json:"surveys"`
}

// SaveSurveyResponse reports the stored survey and any rule warnings
type SaveSurveyResponse struct {
	Survey     *survey.Definition     `json:"survey"`
	Validation rules.ValidationResult `json:"validation"`
}

// NextQuestionRequest is the body of POST /surveys/{surveyId}/next
type NextQuestionRequest struct {
	CurrentQuestionID string          `json:"currentQuestionId" example:"q2"`
	Answers           rules.AnswerMap `json:"answers"`
}

// AnswersRequest carries only answers
type AnswersRequest struct {
	Answers rules.AnswerMap `json:"answers"`
}

// DisplayResponse tells whether a question is shown
type DisplayResponse struct {
	QuestionID string `json:"questionId"`
	Display    bool   `json:"display"`
}

// PipeRequest is the body of POST /surveys/{surveyId}/pipe
type PipeRequest struct {
	Text    string          `json:"text" example:"Thanks, {NAME}!"`
	Answers rules.AnswerMap `json:"answers"`
}

// PipeResponse is the piped text
type PipeResponse struct {
	Text string `json:"text"`
}

// CalculateRequest evaluates Expression when set, otherwise every derived field
type CalculateRequest struct {
	Expression string          `json:"expression,omitempty" example:"{SCORE} * 10"`
	Answers    rules.AnswerMap `json:"answers"`
}

// CalculateResponse holds either Value or Derived
type CalculateResponse struct {
	Value   *float64               `json:"value,omitempty"`
	Valid   *bool                  `json:"valid,omitempty"`
	Derived []survey.DerivedResult `json:"derived,omitempty"`
}

// RulesListResponse lists a survey's routing rules
type RulesListResponse struct {
	Rules []rules.RoutingRule `json:"rules"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error      string                  `json:"error"`
	Details    string                  `json:"details,omitempty"`
	Validation *rules.ValidationResult `json:"validation,omitempty"`
}
