// Package event defines the immutable domain events persisted in the
// per-aggregate event log, together with the codec that moves them
// to and from their stored JSON form.
package event

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// AggregateType identifies which event stream an envelope belongs to.
type AggregateType string

const (
	AggregateVNF   AggregateType = "VNF"
	AggregateOpOcc AggregateType = "OP_OCC"
)

// Event type identifiers, one per payload variant.
const (
	TypeInstantiationStarted   = "vnf.instantiation_started"
	TypeInstantiationCompleted = "vnf.instantiation_completed"
	TypeTerminationStarted     = "vnf.termination_started"
	TypeTerminationCompleted   = "vnf.termination_completed"
	TypeLifecycleFailed        = "vnf.lifecycle_failed"

	TypeOperationStarted    = "opocc.started"
	TypeOperationProcessing = "opocc.processing"
	TypeOperationCompleted  = "opocc.completed"
	TypeOperationFailed     = "opocc.failed"
)

var (
	// ErrUnknownEventType is returned when a stored event type has no
	// registered payload variant. Loads fail rather than skip.
	ErrUnknownEventType = errors.New("event: unknown event type")
	// ErrVersionGap is returned by replay when an envelope's version is
	// not exactly one past the aggregate's current version.
	ErrVersionGap = errors.New("event: version out of sequence")
)

// Envelope is one immutable entry in an aggregate's event stream.
// Version is 1-based and strictly sequential within the stream.
type Envelope struct {
	ID            uuid.UUID
	AggregateType AggregateType
	AggregateID   string
	Version       int64
	Type          string
	OccurredAt    time.Time
	Payload       Payload
}

// Payload is implemented by every event variant. The concrete types
// below form a closed set; aggregates apply them with an exhaustive
// type switch and treat anything else as corruption.
type Payload interface {
	EventType() string
}

// New builds an envelope for a freshly emitted payload. The caller
// supplies the version the event will occupy in the stream.
func New(aggType AggregateType, aggID string, version int64, p Payload) Envelope {
	return Envelope{
		ID:            uuid.New(),
		AggregateType: aggType,
		AggregateID:   aggID,
		Version:       version,
		Type:          p.EventType(),
		OccurredAt:    time.Now().UTC(),
		Payload:       p,
	}
}
