package entity

import (
	"time"

	"github.com/google/uuid"
)

// SagaTimeout is the deadline armed alongside each step dispatch. A step
// is dispatched at most once per saga, so (saga_id, step) is the key.
type SagaTimeout struct {
	SagaID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Step      int       `gorm:"primaryKey"`
	ExecuteAt time.Time `gorm:"not null;index"`
	Processed bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"not null"`
}

func (SagaTimeout) TableName() string {
	return "saga_timeouts"
}
