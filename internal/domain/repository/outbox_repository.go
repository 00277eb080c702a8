package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/entity"
)

type OutboxRepository interface {
	// Enqueue stages a message; callers invoke it inside the same
	// transaction as the state change the message reports.
	Enqueue(ctx context.Context, msg *entity.OutboxMessage) error
	// ClaimDue returns up to limit PENDING messages whose next_retry_at
	// has passed, oldest first, rescheduling each past the lease in the
	// same statement so concurrent relays cannot claim the same rows.
	ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]entity.OutboxMessage, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	// RecordFailure bumps retry_count, stores the error and reschedules.
	RecordFailure(ctx context.Context, id uuid.UUID, sendErr string, nextRetryAt time.Time) error
}
