package aggregate

import (
	"fmt"

	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/event"
)

// OpOccState is the state of an operation occurrence.
type OpOccState string

const (
	OpOccStarting   OpOccState = "STARTING"
	OpOccProcessing OpOccState = "PROCESSING"
	OpOccCompleted  OpOccState = "COMPLETED"
	OpOccFailed     OpOccState = "FAILED"
)

// Operation types tracked by occurrences.
const (
	OpInstantiate = "INSTANTIATE"
	OpTerminate   = "TERMINATE"
)

// OperationOccurrence projects the progress of one lifecycle operation.
// It is the aggregate callers poll for the eventual outcome.
type OperationOccurrence struct {
	ID            string
	VNFID         string
	OperationType string
	State         OpOccState
	FailureReason string
	Version       int64
}

// NewOperationOccurrence returns the zero-state aggregate for id.
func NewOperationOccurrence(id string) *OperationOccurrence {
	return &OperationOccurrence{ID: id}
}

// ReplayOperationOccurrence folds a stored stream into a fresh aggregate.
func ReplayOperationOccurrence(id string, envs []event.Envelope) (*OperationOccurrence, error) {
	o := NewOperationOccurrence(id)
	if err := o.Replay(envs); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *OperationOccurrence) Replay(envs []event.Envelope) error {
	for _, env := range envs {
		if env.Version != o.Version+1 {
			return fmt.Errorf("%w: op %s got version %d, want %d", event.ErrVersionGap, o.ID, env.Version, o.Version+1)
		}
		if err := o.apply(env.Payload); err != nil {
			return err
		}
		o.Version = env.Version
	}
	return nil
}

// Record wraps emitted payloads into versioned envelopes and applies them.
func (o *OperationOccurrence) Record(payloads ...event.Payload) ([]event.Envelope, error) {
	envs := make([]event.Envelope, 0, len(payloads))
	for i, p := range payloads {
		envs = append(envs, event.New(event.AggregateOpOcc, o.ID, o.Version+int64(i)+1, p))
	}
	if err := o.Replay(envs); err != nil {
		return nil, err
	}
	return envs, nil
}

func (o *OperationOccurrence) terminal() bool {
	return o.State == OpOccCompleted || o.State == OpOccFailed
}

// Start creates the occurrence. Valid only before any event.
func (o *OperationOccurrence) Start(vnfID, operationType string) ([]event.Payload, error) {
	if o.Version != 0 || o.State != "" {
		return nil, fmt.Errorf("%w: op %s already started", ErrStateConflict, o.ID)
	}
	return []event.Payload{event.OperationStarted{VNFID: vnfID, OperationType: operationType}}, nil
}

// MarkProcessing moves STARTING -> PROCESSING on the first step success.
func (o *OperationOccurrence) MarkProcessing() ([]event.Payload, error) {
	if o.terminal() {
		return nil, fmt.Errorf("%w: op %s is terminal (%s)", ErrStateConflict, o.ID, o.State)
	}
	if o.State != OpOccStarting {
		return nil, fmt.Errorf("%w: mark processing op %s in state %s", ErrStateConflict, o.ID, o.State)
	}
	return []event.Payload{event.OperationProcessing{}}, nil
}

// Complete marks the occurrence terminal-successful.
func (o *OperationOccurrence) Complete() ([]event.Payload, error) {
	if o.terminal() {
		return nil, fmt.Errorf("%w: op %s is terminal (%s)", ErrStateConflict, o.ID, o.State)
	}
	if o.State != OpOccProcessing {
		return nil, fmt.Errorf("%w: complete op %s in state %s", ErrStateConflict, o.ID, o.State)
	}
	return []event.Payload{event.OperationCompleted{}}, nil
}

// Fail marks the occurrence terminal-failed with the given reason.
func (o *OperationOccurrence) Fail(reason string) ([]event.Payload, error) {
	if o.terminal() {
		return nil, fmt.Errorf("%w: op %s is terminal (%s)", ErrStateConflict, o.ID, o.State)
	}
	if o.State != OpOccStarting && o.State != OpOccProcessing {
		return nil, fmt.Errorf("%w: fail op %s in state %s", ErrStateConflict, o.ID, o.State)
	}
	return []event.Payload{event.OperationFailed{Reason: reason}}, nil
}

func (o *OperationOccurrence) apply(p event.Payload) error {
	switch e := p.(type) {
	case event.OperationStarted:
		o.State = OpOccStarting
		o.VNFID = e.VNFID
		o.OperationType = e.OperationType
	case event.OperationProcessing:
		o.State = OpOccProcessing
	case event.OperationCompleted:
		o.State = OpOccCompleted
	case event.OperationFailed:
		o.State = OpOccFailed
		o.FailureReason = e.Reason
	default:
		return fmt.Errorf("%w: %T on operation stream", ErrUnexpectedEvent, p)
	}
	return nil
}
