package repository

import (
	"context"

	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/event"
)

// EventStore is the append-only, per-aggregate event log.
type EventStore interface {
	// Append persists envelopes atomically iff the stream's current max
	// version equals expectedVersion. Envelopes must carry versions
	// expectedVersion+1..+n; anything else is rejected wholesale.
	Append(ctx context.Context, aggType event.AggregateType, aggID string, envs []event.Envelope, expectedVersion int64) error
	// Load returns the stream ordered by version ascending. An unknown
	// aggregate yields an empty slice, not an error.
	Load(ctx context.Context, aggType event.AggregateType, aggID string) ([]event.Envelope, error)
}
