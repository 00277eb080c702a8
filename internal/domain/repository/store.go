package repository

import "context"

// Store exposes the shared durable store. WithTx runs fn inside one
// atomic unit of work; nested calls join the in-flight transaction so a
// use case and the orchestrator commit together.
type Store interface {
	Ping(ctx context.Context) error
	Close()
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
