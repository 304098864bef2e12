package session

import (
	"errors"
	"fmt"
)

// Sentinel errors for session establishment and operation resolution.
var (
	// ErrDuplicateSession is returned when a session id is already
	// connected. The existing session is unaffected.
	ErrDuplicateSession = errors.New("session id already connected")

	// ErrUnsupportedExecutable is returned when the provider executable
	// type cannot be determined from its path. Only Python and
	// JavaScript providers have a launch strategy.
	ErrUnsupportedExecutable = errors.New("provider executable must be a .py or .js file")

	// ErrUnknownOperation is returned when no connected session
	// advertises the requested operation name.
	ErrUnknownOperation = errors.New("unknown operation")
)

// InvocationError carries a provider-reported invocation failure. The
// orchestrator surfaces it as the operation's result content so the
// reasoning engine can react; it is not treated as a crash.
type InvocationError struct {
	// Operation is the invoked operation name.
	Operation string

	// Text is the provider's error text.
	Text string
}

// Error implements the error interface.
func (e *InvocationError) Error() string {
	return fmt.Sprintf("operation %q failed: %s", e.Operation, e.Text)
}
