package rules

import "sort"

// NextQuestion returns the id of the question that follows currentID.
// The second result is false when the survey ends.
func NextQuestion(currentID string, questions []Question, rules []RoutingRule, answers AnswerMap) (string, bool) {
	d := ResolveNext(currentID, questions, rules, answers)
	return d.NextQuestionID, !d.End
}

// ResolveNext routes from currentID and reports which rule, if any, decided.
//
// Active rules sourced at currentID are tried from highest to lowest
// priority, keeping the given order among equal priorities. The first rule
// whose condition holds wins: skip_to jumps to its target and end_survey ends
// the survey. show_if and hide_if rules do not route. Without a matching rule
// the question with the next higher order follows.
func ResolveNext(currentID string, questions []Question, rules []RoutingRule, answers AnswerMap) Decision {
	for _, rule := range candidateRules(currentID, rules) {
		switch rule.Action {
		case ActionSkipTo:
			if rule.TargetQuestionID == "" {
				continue
			}
			if EvaluateCondition(rule.Condition, answers) {
				return Decision{NextQuestionID: rule.TargetQuestionID, RuleID: rule.ID, Reason: ReasonRule}
			}
		case ActionEndSurvey:
			if EvaluateCondition(rule.Condition, answers) {
				return Decision{End: true, RuleID: rule.ID, Reason: ReasonEndRule}
			}
		}
	}

	if next, ok := nextInOrder(currentID, questions); ok {
		return Decision{NextQuestionID: next, Reason: ReasonLinear}
	}
	return Decision{End: true, Reason: ReasonEndOfSurvey}
}

// candidateRules returns the active rules for currentID sorted by descending
// priority. The caller's slice is left untouched.
func candidateRules(currentID string, rules []RoutingRule) []RoutingRule {
	var matched []RoutingRule
	for _, rule := range rules {
		if rule.IsActive && rule.SourceQuestionID != "" && rule.SourceQuestionID == currentID {
			matched = append(matched, rule)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Priority > matched[j].Priority
	})
	return matched
}

// nextInOrder finds the question with the smallest order greater than the
// order of currentID. An unknown currentID has no successor.
func nextInOrder(currentID string, questions []Question) (string, bool) {
	current := -1
	for i := range questions {
		if questions[i].ID == currentID {
			current = i
			break
		}
	}
	if current < 0 {
		return "", false
	}

	order := questions[current].Order
	best := -1
	for i := range questions {
		if questions[i].Order <= order {
			continue
		}
		if best < 0 || questions[i].Order < questions[best].Order {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return questions[best].ID, true
}
