package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DomainEvent is the stored form of one event-log entry. The unique
// index over (aggregate_type, aggregate_id, version) is what makes the
// optimistic append safe against racing writers.
type DomainEvent struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey"`
	AggregateType string         `gorm:"not null;uniqueIndex:idx_aggregate_version,priority:1"`
	AggregateID   string         `gorm:"not null;uniqueIndex:idx_aggregate_version,priority:2"`
	Version       int64          `gorm:"not null;uniqueIndex:idx_aggregate_version,priority:3"`
	EventType     string         `gorm:"not null"`
	Payload       datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt     time.Time      `gorm:"not null"`
}

func (DomainEvent) TableName() string {
	return "domain_events"
}
