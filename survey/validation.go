package survey

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/liamcoop/surveylogic/rules"
)

const (
	maxQuestions     = 1000
	maxIdentifierLen = 100
)

var codePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// ValidateDefinition checks the parts of a definition that the rule-set
// validator does not: ids, question codes and derived fields
func ValidateDefinition(def *Definition) error {
	if def == nil {
		return fmt.Errorf("definition is missing")
	}
	if err := validateIdentifier("survey id", def.ID); err != nil {
		return err
	}
	if err := ValidateQuestions(def.Questions); err != nil {
		return err
	}
	return validateDerivedFields(def.DerivedFields, def.Questions)
}

// ValidateQuestions rejects question lists that routing and piping cannot
// address unambiguously
func ValidateQuestions(questions []rules.Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("survey must contain at least one question")
	}
	if len(questions) > maxQuestions {
		return fmt.Errorf("survey contains %d questions, maximum allowed is %d", len(questions), maxQuestions)
	}

	ids := make(map[string]bool, len(questions))
	codes := make(map[string]string, len(questions))
	for _, q := range questions {
		if err := validateIdentifier("question id", q.ID); err != nil {
			return err
		}
		if ids[q.ID] {
			return fmt.Errorf("duplicate question id %q", q.ID)
		}
		ids[q.ID] = true

		if err := validateCode(q.Code); err != nil {
			return fmt.Errorf("question %s: %w", q.ID, err)
		}
		if other, dup := codes[q.Code]; dup {
			return fmt.Errorf("question %s: code %q is already used by question %s", q.ID, q.Code, other)
		}
		codes[q.Code] = q.ID
	}
	return nil
}

func validateDerivedFields(fields []DerivedField, questions []rules.Question) error {
	taken := make(map[string]bool, len(questions)+len(fields))
	for _, q := range questions {
		taken[q.Code] = true
	}
	for _, f := range fields {
		if err := validateCode(f.Name); err != nil {
			return fmt.Errorf("derived field %q: %w", f.Name, err)
		}
		if taken[f.Name] {
			return fmt.Errorf("derived field %q clashes with a question code or another derived field", f.Name)
		}
		taken[f.Name] = true
		if strings.TrimSpace(f.Expression) == "" {
			return fmt.Errorf("derived field %q has an empty expression", f.Name)
		}
	}
	return nil
}

func validateIdentifier(what, id string) error {
	if id == "" {
		return fmt.Errorf("%s cannot be empty", what)
	}
	if len(id) > maxIdentifierLen {
		return fmt.Errorf("%s length %d exceeds maximum of %d characters", what, len(id), maxIdentifierLen)
	}
	if strings.TrimSpace(id) != id {
		return fmt.Errorf("%s %q has leading or trailing whitespace", what, id)
	}
	return nil
}

func validateCode(code string) error {
	if code == "" {
		return fmt.Errorf("code cannot be empty")
	}
	if len(code) > maxIdentifierLen {
		return fmt.Errorf("code length %d exceeds maximum of %d characters", len(code), maxIdentifierLen)
	}
	if !codePattern.MatchString(code) {
		return fmt.Errorf("code %q must match %s", code, codePattern)
	}
	return nil
}
