// Package tool implements the tool registry and invocation contract: a
// name→descriptor mapping built once at startup, a metrics boundary around
// every call, and a uniform error taxonomy that lets callers decide on retry
// policy without knowing how a tool was implemented.
package tool

import (
	"errors"
	"fmt"
)

// Error kinds produced by the registry itself.
const (
	KindRuntime    = "runtime_error"
	KindValidation = "validation_error"
)

var (
	// ErrNotFound is returned (wrapped with the name) for unknown tools.
	ErrNotFound = errors.New("tool not found")
	// ErrDuplicateTool is returned when a name is registered twice.
	ErrDuplicateTool = errors.New("tool already registered")
	// ErrInvalidDescriptor is returned for descriptors missing a name or func.
	ErrInvalidDescriptor = errors.New("invalid tool descriptor")
)

// Error is the tagged failure a tool returns to signal an expected failure
// mode. The registry passes it through unchanged and normalizes every other
// failure into an Error of kind runtime_error.
type Error struct {
	Tool      string `json:"tool,omitempty"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`

	cause error
}

func (e *Error) Error() string {
	if e.Tool != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Kind, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error [%s]: %s", e.Kind, e.Message)
}

// Unwrap returns the original failure for normalized runtime errors.
func (e *Error) Unwrap() error { return e.cause }

// NewError creates a domain error with the given kind.
func NewError(kind, message string, retryable bool) *Error {
	return &Error{Kind: kind, Message: message, Retryable: retryable}
}

// IsRetryable reports whether err carries a retryable tool Error.
func IsRetryable(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Retryable
	}
	return false
}

func runtimeError(tool string, cause error) *Error {
	return &Error{Tool: tool, Kind: KindRuntime, Message: cause.Error(), cause: cause}
}
