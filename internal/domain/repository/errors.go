package repository

import "errors"

var (
	// ErrVersionConflict means an append's expected version did not match
	// the stream; the caller must reload and retry the command.
	ErrVersionConflict = errors.New("event store: version conflict")
	// ErrSagaNotFound means no saga instance exists for the given id.
	ErrSagaNotFound = errors.New("saga not found")
	// ErrDuplicateKey means a write-once row already exists.
	ErrDuplicateKey = errors.New("duplicate key")
)
