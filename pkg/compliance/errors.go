package compliance

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRuleNotFound indicates no rule exists with the given id.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrInvalidRule indicates a rule failed structural validation.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrInvalidAction indicates a checked action failed structural validation.
	ErrInvalidAction = errors.New("invalid action")

	// ErrViolationNotFound indicates no violation exists with the given id.
	ErrViolationNotFound = errors.New("violation not found")
)

// ValidationError lists the structural problems of a rule or action.
type ValidationError struct {
	// Kind is "rule" or "action".
	Kind     string
	ID       string
	Problems []string
	Err      error
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	subject := e.Kind
	if e.ID != "" {
		subject = fmt.Sprintf("%s %q", e.Kind, e.ID)
	}
	return fmt.Sprintf("%s: %s", subject, strings.Join(e.Problems, "; "))
}

// Unwrap returns the sentinel error for the validated kind.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewRuleValidationError creates a ValidationError for a rule.
func NewRuleValidationError(id string, problems []string) *ValidationError {
	return &ValidationError{Kind: "rule", ID: id, Problems: problems, Err: ErrInvalidRule}
}

// NewActionValidationError creates a ValidationError for an action.
func NewActionValidationError(actionType string, problems []string) *ValidationError {
	return &ValidationError{Kind: "action", ID: actionType, Problems: problems, Err: ErrInvalidAction}
}

// ExecutionError indicates a response action failed for a violation.
type ExecutionError struct {
	ViolationID string
	ActionType  ResponseActionType
	Cause       error
}

// Error returns the error message.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("violation %s action %s: %v", e.ViolationID, e.ActionType, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}
