package rules

import "regexp"

var placeholder = regexp.MustCompile(`\{([A-Z0-9_]+)\}`)

// Pipe substitutes {CODE} placeholders in text with the answers to the
// questions carrying those codes. Answers are looked up by code first and by
// question id second. Unknown codes and missing answers become the empty
// string; any other braces are left alone.
func Pipe(text string, answers AnswerMap, questions []Question) string {
	return Substitute(text, answers, questions, Value.PipeText)
}

// Substitute replaces every {CODE} placeholder with render applied to the
// answer it names. Unknown codes and missing answers are rendered as Null.
func Substitute(text string, answers AnswerMap, questions []Question, render func(Value) string) string {
	byCode := make(map[string]string, len(questions))
	for _, q := range questions {
		if q.Code != "" {
			if _, dup := byCode[q.Code]; !dup {
				byCode[q.Code] = q.ID
			}
		}
	}

	return placeholder.ReplaceAllStringFunc(text, func(match string) string {
		code := match[1 : len(match)-1]
		id, ok := byCode[code]
		if !ok {
			return render(Null())
		}
		if v, ok := answers[code]; ok && !v.IsNull() {
			return render(v)
		}
		return render(answers.Get(id))
	})
}
