package entity

import "time"

// ProcessedRequest caches the response produced for a client-supplied
// request id at the synchronous edge. Write-once: a second insert for
// the same key must fail on the primary key, never overwrite.
type ProcessedRequest struct {
	RequestID string    `gorm:"primaryKey"`
	Status    int       `gorm:"not null"`
	Location  string    `gorm:""`
	Body      []byte    `gorm:""`
	CreatedAt time.Time `gorm:"not null"`
}

func (ProcessedRequest) TableName() string {
	return "processed_requests"
}

// ProcessedMessage marks a message id as handled at the asynchronous
// edge. Its existence is the whole signal.
type ProcessedMessage struct {
	MessageID string    `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
}

func (ProcessedMessage) TableName() string {
	return "processed_messages"
}
