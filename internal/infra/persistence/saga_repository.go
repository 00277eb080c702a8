package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/entity"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/repository"
	"gorm.io/gorm"
)

type SagaRepository struct {
	db *DB
}

var _ repository.SagaRepository = (*SagaRepository)(nil)

func NewSagaRepository(db *DB) *SagaRepository {
	return &SagaRepository{db: db}
}

func (r *SagaRepository) Create(ctx context.Context, saga *entity.SagaInstance) error {
	now := time.Now().UTC()
	saga.CreatedAt = now
	saga.UpdatedAt = now
	return r.db.Write(ctx).Create(saga).Error
}

func (r *SagaRepository) GetByID(ctx context.Context, id uuid.UUID) (entity.SagaInstance, error) {
	var saga entity.SagaInstance
	if err := r.db.Write(ctx).First(&saga, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entity.SagaInstance{}, repository.ErrSagaNotFound
		}
		return entity.SagaInstance{}, err
	}
	return saga, nil
}

func (r *SagaRepository) Update(ctx context.Context, saga *entity.SagaInstance) error {
	saga.UpdatedAt = time.Now().UTC()
	return r.db.Write(ctx).Save(saga).Error
}

type TimeoutRepository struct {
	db *DB
}

var _ repository.TimeoutRepository = (*TimeoutRepository)(nil)

func NewTimeoutRepository(db *DB) *TimeoutRepository {
	return &TimeoutRepository{db: db}
}

func (r *TimeoutRepository) Arm(ctx context.Context, sagaID uuid.UUID, step int, executeAt time.Time) error {
	timeout := entity.SagaTimeout{
		SagaID:    sagaID,
		Step:      step,
		ExecuteAt: executeAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	return r.db.Write(ctx).Create(&timeout).Error
}

func (r *TimeoutRepository) MarkProcessed(ctx context.Context, sagaID uuid.UUID, step int) error {
	return r.db.Write(ctx).
		Model(&entity.SagaTimeout{}).
		Where("saga_id = ? AND step = ?", sagaID, step).
		Update("processed", true).Error
}

func (r *TimeoutRepository) Due(ctx context.Context, now time.Time, limit int) ([]entity.SagaTimeout, error) {
	if limit <= 0 {
		limit = 100
	}
	var timeouts []entity.SagaTimeout
	err := r.db.Write(ctx).
		Where("processed = false AND execute_at <= ?", now.UTC()).
		Order("execute_at ASC").
		Limit(limit).
		Find(&timeouts).Error
	if err != nil {
		return nil, err
	}
	return timeouts, nil
}
