package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Saga statuses.
const (
	SagaRunning      = "RUNNING"
	SagaCompensating = "COMPENSATING"
	SagaCompleted    = "COMPLETED"
	SagaFailed       = "FAILED"
)

// SagaInstance tracks one in-flight multi-step operation. CurrentStep
// is 1-based and only moves forward on step success.
type SagaInstance struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey"`
	VNFID         string         `gorm:"not null;index"`
	OperationID   string         `gorm:""`
	SagaType      string         `gorm:"not null"`
	CurrentStep   int            `gorm:"not null;default:1"`
	StepResults   datatypes.JSON `gorm:"type:jsonb"`
	Status        string         `gorm:"not null;index"`
	FailureReason string         `gorm:""`
	CreatedAt     time.Time      `gorm:"not null"`
	UpdatedAt     time.Time      `gorm:"not null"`
}

func (SagaInstance) TableName() string {
	return "saga_instances"
}

// Terminal reports whether the saga has reached a final status.
func (s SagaInstance) Terminal() bool {
	return s.Status == SagaCompleted || s.Status == SagaFailed
}
