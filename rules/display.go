package rules

// ShouldDisplay decides whether q is shown given the answers so far.
//
// Inline display logic gives a tentative answer that any active hide_if rule
// targeting q can overturn. Without inline logic, active show_if rules
// targeting q decide: q is shown if at least one holds. A question with
// neither is shown.
func ShouldDisplay(q Question, answers AnswerMap, rules []RoutingRule) bool {
	if q.DisplayLogic != nil {
		show := EvaluateCondition(q.DisplayLogic, answers)
		for _, rule := range targeting(q.ID, ActionHideIf, rules) {
			if EvaluateCondition(rule.Condition, answers) {
				return false
			}
		}
		return show
	}

	showRules := targeting(q.ID, ActionShowIf, rules)
	if len(showRules) == 0 {
		return true
	}
	for _, rule := range showRules {
		if EvaluateCondition(rule.Condition, answers) {
			return true
		}
	}
	return false
}

func targeting(questionID string, action Action, rules []RoutingRule) []RoutingRule {
	var matched []RoutingRule
	for _, rule := range rules {
		if rule.IsActive && rule.Action == action && rule.TargetQuestionID == questionID {
			matched = append(matched, rule)
		}
	}
	return matched
}
