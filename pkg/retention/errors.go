package retention

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidPolicy is returned when a policy fails validation.
	ErrInvalidPolicy = errors.New("invalid retention policy")

	// ErrPolicyNotFound is returned for unknown policy ids.
	ErrPolicyNotFound = errors.New("retention policy not found")
)

// PolicyError reports a failure inside one policy.
type PolicyError struct {
	PolicyID string
	Problems []string
	Cause    error
}

// Error returns the error message.
func (e *PolicyError) Error() string {
	if len(e.Problems) > 0 {
		return fmt.Sprintf("retention policy %q: %s", e.PolicyID, strings.Join(e.Problems, "; "))
	}
	return fmt.Sprintf("retention policy %q: %v", e.PolicyID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *PolicyError) Unwrap() error {
	return e.Cause
}
