package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/entity"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/event"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/repository"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventStore persists the per-aggregate event log with an optimistic
// version check on append.
type EventStore struct {
	db *DB
}

var _ repository.EventStore = (*EventStore)(nil)

func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db}
}

func (s *EventStore) Append(ctx context.Context, aggType event.AggregateType, aggID string, envs []event.Envelope, expectedVersion int64) error {
	if len(envs) == 0 {
		return nil
	}
	for i, env := range envs {
		want := expectedVersion + int64(i) + 1
		if env.Version != want {
			return fmt.Errorf("%w: envelope %d carries version %d, want %d", repository.ErrVersionConflict, i, env.Version, want)
		}
	}

	return s.db.WithTx(ctx, func(txCtx context.Context) error {
		var current int64
		err := s.db.Write(txCtx).
			Model(&entity.DomainEvent{}).
			Where("aggregate_type = ? AND aggregate_id = ?", aggType, aggID).
			Select("COALESCE(MAX(version), 0)").
			Scan(&current).Error
		if err != nil {
			return err
		}
		if current != expectedVersion {
			return fmt.Errorf("%w: aggregate %s/%s at version %d, expected %d", repository.ErrVersionConflict, aggType, aggID, current, expectedVersion)
		}

		rows := make([]entity.DomainEvent, 0, len(envs))
		for _, env := range envs {
			data, err := event.Marshal(env.Payload)
			if err != nil {
				return err
			}
			rows = append(rows, entity.DomainEvent{
				ID:            env.ID,
				AggregateType: string(env.AggregateType),
				AggregateID:   env.AggregateID,
				Version:       env.Version,
				EventType:     env.Type,
				Payload:       datatypes.JSON(data),
				CreatedAt:     env.OccurredAt,
			})
		}
		if err := s.db.Write(txCtx).Create(&rows).Error; err != nil {
			// A unique violation on (aggregate_type, aggregate_id,
			// version) means another writer appended first.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: concurrent append on %s/%s", repository.ErrVersionConflict, aggType, aggID)
			}
			return err
		}
		return nil
	})
}

func (s *EventStore) Load(ctx context.Context, aggType event.AggregateType, aggID string) ([]event.Envelope, error) {
	var rows []entity.DomainEvent
	err := s.db.Read(ctx).
		Where("aggregate_type = ? AND aggregate_id = ?", aggType, aggID).
		Order("version ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	envs := make([]event.Envelope, 0, len(rows))
	for _, row := range rows {
		payload, err := event.Unmarshal(row.EventType, row.Payload)
		if err != nil {
			return nil, fmt.Errorf("load %s/%s version %d: %w", aggType, aggID, row.Version, err)
		}
		envs = append(envs, event.Envelope{
			ID:            row.ID,
			AggregateType: event.AggregateType(row.AggregateType),
			AggregateID:   row.AggregateID,
			Version:       row.Version,
			Type:          row.EventType,
			OccurredAt:    row.CreatedAt.UTC(),
			Payload:       payload,
		})
	}
	return envs, nil
}
