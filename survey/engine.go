package survey

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/google/uuid"

	"github.com/liamcoop/surveylogic/expression"
	"github.com/liamcoop/surveylogic/rules"
)

// Engine answers routing, display, piping and calculation questions for the
// surveys in a Store. Definitions are read through a cache that every
// mutation invalidates.
type Engine struct {
	store Store
	cache DefinitionCache
}

// NewEngine creates an engine with a cache that never expires
func NewEngine(store Store) *Engine {
	return NewEngineWithCache(store, NewInMemoryDefinitionCache(DefaultCacheConfig()))
}

// NewEngineWithCache creates an engine with a caller-supplied cache
func NewEngineWithCache(store Store, cache DefinitionCache) *Engine {
	return &Engine{store: store, cache: cache}
}

// Store returns the engine's backing store
func (en *Engine) Store() Store { return en.store }

// SaveSurvey validates def and stores it. A definition with an invalid rule
// set is rejected with a *RuleSetError; warnings alone do not block.
func (en *Engine) SaveSurvey(def *Definition) (rules.ValidationResult, error) {
	if err := ValidateDefinition(def); err != nil {
		return rules.ValidationResult{}, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}

	result := rules.ValidateRuleSet(def.Rules, def.Questions)
	if !result.Valid {
		return result, &RuleSetError{Result: result}
	}

	if err := en.store.SaveSurvey(def); err != nil {
		return result, err
	}
	en.cache.Invalidate(def.ID)
	return result, nil
}

// Definition returns a survey, from the cache when possible
func (en *Engine) Definition(surveyID string) (*Definition, error) {
	if def := en.cache.Get(surveyID); def != nil {
		return def, nil
	}

	def, err := en.store.GetSurvey(surveyID)
	if err != nil {
		return nil, err
	}
	en.cache.Set(def)
	return def, nil
}

// ListSurveys returns every stored survey
func (en *Engine) ListSurveys() ([]*Definition, error) {
	return en.store.ListSurveys()
}

// NextQuestion routes a respondent from currentID
func (en *Engine) NextQuestion(surveyID, currentID string, answers rules.AnswerMap) (rules.Decision, error) {
	def, err := en.Definition(surveyID)
	if err != nil {
		return rules.Decision{}, err
	}
	return rules.ResolveNext(currentID, def.Questions, def.Rules, answers), nil
}

// ShouldDisplay decides whether a question of the survey is shown
func (en *Engine) ShouldDisplay(surveyID, questionID string, answers rules.AnswerMap) (bool, error) {
	def, err := en.Definition(surveyID)
	if err != nil {
		return false, err
	}
	q, ok := def.Question(questionID)
	if !ok {
		return false, fmt.Errorf("question %s: %w", questionID, ErrNotFound)
	}
	return rules.ShouldDisplay(q, answers, def.Rules), nil
}

// Pipe substitutes answers into text using the survey's question codes
func (en *Engine) Pipe(surveyID, text string, answers rules.AnswerMap) (string, error) {
	def, err := en.Definition(surveyID)
	if err != nil {
		return "", err
	}
	return rules.Pipe(text, answers, def.Questions), nil
}

// Validate re-runs rule-set validation over the stored survey
func (en *Engine) Validate(surveyID string) (rules.ValidationResult, error) {
	def, err := en.Definition(surveyID)
	if err != nil {
		return rules.ValidationResult{}, err
	}
	return rules.ValidateRuleSet(def.Rules, def.Questions), nil
}

// Calculate substitutes numeric answers into expr and evaluates the result.
// The bool is false when the expression cannot be evaluated.
func (en *Engine) Calculate(surveyID, expr string, answers rules.AnswerMap) (float64, bool, error) {
	def, err := en.Definition(surveyID)
	if err != nil {
		return 0, false, err
	}
	v, ok := Calculate(expr, answers, def.Questions)
	return v, ok, nil
}

// DerivedValues evaluates every derived field of the survey in order
func (en *Engine) DerivedValues(surveyID string, answers rules.AnswerMap) ([]DerivedResult, error) {
	def, err := en.Definition(surveyID)
	if err != nil {
		return nil, err
	}
	return DerivedValues(def, answers), nil
}

// Calculate replaces {CODE} placeholders with the numeric form of the
// answers and hands the text to the safe evaluator. A placeholder whose
// answer is missing or not a finite number leaves the expression without a
// value.
func Calculate(expr string, answers rules.AnswerMap, questions []rules.Question) (float64, bool) {
	return expression.SafeEvaluate(rules.Substitute(expr, answers, questions, operand))
}

// operand renders an answer as one parenthesised number. Answers without a
// finite numeric form become a character outside the evaluator's whitelist.
func operand(v rules.Value) string {
	f := v.Float()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "?"
	}
	return "(" + strconv.FormatFloat(f, 'f', -1, 64) + ")"
}

// DerivedValues evaluates def's derived fields in declaration order. Each
// field can pipe the fields declared before it by name.
func DerivedValues(def *Definition, answers rules.AnswerMap) []DerivedResult {
	scope := make(rules.AnswerMap, len(answers)+len(def.DerivedFields))
	for k, v := range answers {
		scope[k] = v
	}
	questions := append([]rules.Question(nil), def.Questions...)

	results := make([]DerivedResult, 0, len(def.DerivedFields))
	for _, f := range def.DerivedFields {
		result := DerivedResult{Name: f.Name}
		if v, ok := Calculate(f.Expression, scope, questions); ok {
			result.Value = &v
			scope[f.Name] = rules.Num(v)
		}
		questions = append(questions, rules.Question{ID: f.Name, Code: f.Name})
		results = append(results, result)
	}
	return results
}

// AddRule adds a rule to a survey, assigning an id when it has none.
// The rule is rejected if the survey's rule set would become invalid.
func (en *Engine) AddRule(surveyID string, rule *rules.RoutingRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}

	def, err := en.store.GetSurvey(surveyID)
	if err != nil {
		return err
	}
	if _, exists := def.Rule(rule.ID); exists {
		return fmt.Errorf("rule %s: %w", rule.ID, ErrAlreadyExists)
	}
	if err := checkRuleSet(append(def.Rules, *rule), def.Questions); err != nil {
		return err
	}

	if err := en.store.AddRule(surveyID, rule); err != nil {
		return err
	}
	en.cache.Invalidate(surveyID)
	return nil
}

// GetRule returns one rule of a survey
func (en *Engine) GetRule(surveyID, ruleID string) (*rules.RoutingRule, error) {
	return en.store.GetRule(surveyID, ruleID)
}

// UpdateRule replaces a rule, rejecting changes that invalidate the rule set
func (en *Engine) UpdateRule(surveyID string, rule *rules.RoutingRule) error {
	def, err := en.store.GetSurvey(surveyID)
	if err != nil {
		return err
	}

	replaced := false
	candidate := make([]rules.RoutingRule, len(def.Rules))
	for i, r := range def.Rules {
		if r.ID == rule.ID {
			r = *rule
			replaced = true
		}
		candidate[i] = r
	}
	if !replaced {
		return fmt.Errorf("rule %s: %w", rule.ID, ErrNotFound)
	}
	if err := checkRuleSet(candidate, def.Questions); err != nil {
		return err
	}

	if err := en.store.UpdateRule(surveyID, rule); err != nil {
		return err
	}
	en.cache.Invalidate(surveyID)
	return nil
}

// DeleteRule removes a rule from a survey
func (en *Engine) DeleteRule(surveyID, ruleID string) error {
	if err := en.store.DeleteRule(surveyID, ruleID); err != nil {
		return err
	}
	en.cache.Invalidate(surveyID)
	return nil
}

func checkRuleSet(list []rules.RoutingRule, questions []rules.Question) error {
	result := rules.ValidateRuleSet(list, questions)
	if !result.Valid {
		return &RuleSetError{Result: result}
	}
	return nil
}

// IsRuleSetError reports whether err rejected an invalid rule set and
// returns the validation result if so
func IsRuleSetError(err error) (rules.ValidationResult, bool) {
	var rse *RuleSetError
	if errors.As(err, &rse) {
		return rse.Result, true
	}
	return rules.ValidationResult{}, false
}
