package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Outbox statuses.
const (
	OutboxPending = "PENDING"
	OutboxSent    = "SENT"
)

// OutboxMessage is a durable outbound message staged in the same
// transaction as the state change it reports. Only the relay updates it.
type OutboxMessage struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Destination string         `gorm:"not null"`
	MessageType string         `gorm:"not null"`
	Payload     datatypes.JSON `gorm:"type:jsonb;not null"`
	Status      string         `gorm:"not null;index:idx_outbox_due,priority:1"`
	RetryCount  int            `gorm:"not null;default:0"`
	NextRetryAt time.Time      `gorm:"not null;index:idx_outbox_due,priority:2"`
	LastError   string         `gorm:""`
	CreatedAt   time.Time      `gorm:"not null"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}
