package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/entity"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/repository"
	"gorm.io/gorm"
)

type OutboxRepository struct {
	db *DB
}

var _ repository.OutboxRepository = (*OutboxRepository)(nil)

func NewOutboxRepository(db *DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Enqueue(ctx context.Context, msg *entity.OutboxMessage) error {
	now := time.Now().UTC()
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.Status = entity.OutboxPending
	msg.CreatedAt = now
	if msg.NextRetryAt.IsZero() {
		msg.NextRetryAt = now
	}
	return r.db.Write(ctx).Create(msg).Error
}

// ClaimDue claims due PENDING rows oldest-first by pushing their
// next_retry_at past the lease in the same statement that selects them.
// SKIP LOCKED keeps concurrent claimers from blocking on each other;
// the bumped next_retry_at is what makes the claim stick after the
// statement commits, so another relay polling before MarkSent sees
// nothing due. A claimer that crashes mid-batch just forfeits its rows
// when the lease runs out.
func (r *OutboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]entity.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	if lease <= 0 {
		lease = time.Minute
	}

	query := `
WITH cte AS (
    SELECT id
    FROM outbox_messages
    WHERE status = ? AND next_retry_at <= ?
    ORDER BY next_retry_at, created_at
    LIMIT ?
    FOR UPDATE SKIP LOCKED
)
UPDATE outbox_messages
SET next_retry_at = ?
WHERE id IN (SELECT id FROM cte)
RETURNING id, destination, message_type, payload, status, retry_count, next_retry_at, last_error, created_at;
`

	var msgs []entity.OutboxMessage
	err := r.db.Write(ctx).
		Raw(query, entity.OutboxPending, now.UTC(), limit, now.UTC().Add(lease)).
		Scan(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	return r.db.Write(ctx).
		Model(&entity.OutboxMessage{}).
		Where("id = ?", id).
		Update("status", entity.OutboxSent).Error
}

func (r *OutboxRepository) RecordFailure(ctx context.Context, id uuid.UUID, sendErr string, nextRetryAt time.Time) error {
	return r.db.Write(ctx).
		Model(&entity.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"retry_count":   gorm.Expr("retry_count + 1"),
			"last_error":    sendErr,
			"next_retry_at": nextRetryAt.UTC(),
		}).Error
}
