// Package aggregate holds the in-memory state machines rebuilt from the
// event log. Aggregates never touch storage: commands validate against
// current state and return the payloads to append, and the caller
// persists them.
package aggregate

import "errors"

var (
	// ErrStateConflict is returned when a command is not valid in the
	// aggregate's current state.
	ErrStateConflict = errors.New("aggregate: command not allowed in current state")
	// ErrUnexpectedEvent is returned when replay meets a payload that
	// does not belong to the aggregate's event stream.
	ErrUnexpectedEvent = errors.New("aggregate: unexpected event payload")
)
