package rules

import "fmt"

// ValidateRuleSet checks rules against the question list before they are
// used at runtime. It never fails; problems are reported in the result.
func ValidateRuleSet(rules []RoutingRule, questions []Question) ValidationResult {
	known := make(map[string]bool, len(questions))
	for _, q := range questions {
		known[q.ID] = true
	}

	result := ValidationResult{Errors: []string{}, Warnings: []string{}}
	errorf := func(format string, args ...any) {
		result.Errors = append(result.Errors, fmt.Sprintf(format, args...))
	}
	warnf := func(format string, args ...any) {
		result.Warnings = append(result.Warnings, fmt.Sprintf(format, args...))
	}

	seen := make(map[string]bool, len(rules))
	for _, rule := range rules {
		if seen[rule.ID] {
			warnf("rule %s: duplicate rule id", rule.ID)
		}
		seen[rule.ID] = true

		if rule.SourceQuestionID != "" && !known[rule.SourceQuestionID] {
			errorf("rule %s: source question %q does not exist", rule.ID, rule.SourceQuestionID)
		}
		if rule.TargetQuestionID != "" && !known[rule.TargetQuestionID] {
			errorf("rule %s: target question %q does not exist", rule.ID, rule.TargetQuestionID)
		}
		if rule.SourceQuestionID != "" && rule.SourceQuestionID == rule.TargetQuestionID {
			warnf("rule %s: source and target are the same question %q", rule.ID, rule.SourceQuestionID)
		}

		if rule.Condition == nil {
			errorf("rule %s: condition is missing", rule.ID)
		} else {
			for _, problem := range conditionProblems(rule.Condition, "condition") {
				warnf("rule %s: %s", rule.ID, problem)
			}
		}

		if !rule.Action.Valid() {
			errorf("rule %s: unknown action %q", rule.ID, rule.Action)
		} else if rule.Action == ActionSkipTo && rule.TargetQuestionID == "" {
			errorf("rule %s: skip_to requires a target question", rule.ID)
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// conditionProblems lists the nodes of c that can never evaluate to true
// the way the author probably intended.
func conditionProblems(c *Condition, path string) []string {
	var problems []string
	switch {
	case c.Type.IsCombinator():
		if len(c.Conditions) == 0 {
			problems = append(problems, fmt.Sprintf("%s: %s has no child conditions", path, c.Type))
		}
		for i := range c.Conditions {
			child := fmt.Sprintf("%s.conditions[%d]", path, i)
			problems = append(problems, conditionProblems(&c.Conditions[i], child)...)
		}
	case c.Type.IsComparison():
		if c.Field == "" {
			problems = append(problems, fmt.Sprintf("%s: %s has no field", path, c.Type))
		}
		if (c.Type == OpIn || c.Type == OpNotIn) && c.Value.Kind() != KindList {
			problems = append(problems, fmt.Sprintf("%s: %s needs a list value", path, c.Type))
		}
	default:
		problems = append(problems, fmt.Sprintf("%s: unknown operator %q", path, c.Type))
	}
	return problems
}
