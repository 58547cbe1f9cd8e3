package core

import (
	"errors"
	"fmt"
)

// ErrMissingSeed is returned when the first cycle of an agent runs without a
// seed input.
var ErrMissingSeed = errors.New("first cycle requires a seed input")

// UnknownActionError is returned by the acting phase for a plan whose action
// tag is not recognized. It is fatal for the cycle and never retried.
type UnknownActionError struct {
	Action string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action: %q", e.Action)
}

// OracleError reports an oracle operation that completed with success=false.
type OracleError struct {
	Op      string
	Message string
}

func (e *OracleError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("oracle %s failed", e.Op)
	}
	return fmt.Sprintf("oracle %s failed: %s", e.Op, e.Message)
}
