package survey

import (
	"errors"
	"strings"

	"github.com/liamcoop/surveylogic/rules"
)

var (
	// ErrNotFound is returned when a survey, question or rule does not exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when an id is already taken
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidDefinition wraps structural problems found by ValidateDefinition
	ErrInvalidDefinition = errors.New("invalid survey definition")
)

// RuleSetError rejects a change that would leave a survey with an invalid
// rule set. Result carries every error and warning found.
type RuleSetError struct {
	Result rules.ValidationResult
}

func (e *RuleSetError) Error() string {
	return "invalid rule set: " + strings.Join(e.Result.Errors, "; ")
}
