package dialogue

import (
	"errors"
	"fmt"
)

// Sentinel errors for the dialogue package.
var (
	// ErrNoAPIKey is returned when the LLM policy is missing credentials.
	ErrNoAPIKey = errors.New("dialogue: API key required")

	// ErrBadDecision is returned when the LLM produced an unusable decision.
	ErrBadDecision = errors.New("dialogue: unparseable policy decision")
)

// PolicyError wraps an error with policy context.
type PolicyError struct {
	Policy string
	Err    error
}

// Error implements the error interface.
func (e *PolicyError) Error() string {
	return fmt.Sprintf("dialogue [%s]: %v", e.Policy, e.Err)
}

// Unwrap returns the underlying error.
func (e *PolicyError) Unwrap() error {
	return e.Err
}

// wrapError wraps an error with policy context.
func wrapError(policy string, err error) error {
	if err == nil {
		return nil
	}
	return &PolicyError{Policy: policy, Err: err}
}
