package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/entity"
)

type SagaRepository interface {
	Create(ctx context.Context, saga *entity.SagaInstance) error
	GetByID(ctx context.Context, id uuid.UUID) (entity.SagaInstance, error)
	Update(ctx context.Context, saga *entity.SagaInstance) error
}

type TimeoutRepository interface {
	// Arm creates the unprocessed timeout for (sagaID, step).
	Arm(ctx context.Context, sagaID uuid.UUID, step int, executeAt time.Time) error
	// MarkProcessed flips the timeout to processed. Marking an already
	// processed (or absent) timeout is a no-op.
	MarkProcessed(ctx context.Context, sagaID uuid.UUID, step int) error
	// Due returns up to limit unprocessed timeouts whose deadline has
	// passed, oldest first.
	Due(ctx context.Context, now time.Time, limit int) ([]entity.SagaTimeout, error)
}
