package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/entity"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/repository"
	"gorm.io/gorm"
)

type IdempotencyRepository struct {
	db *DB
}

var _ repository.IdempotencyRepository = (*IdempotencyRepository)(nil)

func NewIdempotencyRepository(db *DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

func (r *IdempotencyRepository) GetRequest(ctx context.Context, requestID string) (entity.ProcessedRequest, bool, error) {
	var rec entity.ProcessedRequest
	err := r.db.Read(ctx).First(&rec, "request_id = ?", requestID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entity.ProcessedRequest{}, false, nil
		}
		return entity.ProcessedRequest{}, false, err
	}
	return rec, true, nil
}

func (r *IdempotencyRepository) SaveRequest(ctx context.Context, rec *entity.ProcessedRequest) error {
	rec.CreatedAt = time.Now().UTC()
	if err := r.db.Write(ctx).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return repository.ErrDuplicateKey
		}
		return err
	}
	return nil
}

func (r *IdempotencyRepository) MarkMessageProcessed(ctx context.Context, messageID string) error {
	rec := entity.ProcessedMessage{
		MessageID: messageID,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.db.Write(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return repository.ErrDuplicateKey
		}
		return err
	}
	return nil
}
