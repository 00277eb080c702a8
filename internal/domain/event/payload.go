package event

import (
	"encoding/json"
	"fmt"
)

// VNF lifecycle payloads.

// InstantiationStarted records that an instantiate command was accepted.
type InstantiationStarted struct {
	VNFID       string            `json:"vnf_id"`
	FlavourID   string            `json:"flavour_id"`
	OperationID string            `json:"operation_id"`
	Resources   map[string]string `json:"resources"`
}

func (InstantiationStarted) EventType() string { return TypeInstantiationStarted }

// InstantiationCompleted records the VNF reaching ACTIVE.
type InstantiationCompleted struct {
	ResourceIDs []string `json:"resource_ids"`
}

func (InstantiationCompleted) EventType() string { return TypeInstantiationCompleted }

// TerminationStarted records that a terminate command was accepted.
type TerminationStarted struct {
	OperationID string `json:"operation_id"`
}

func (TerminationStarted) EventType() string { return TypeTerminationStarted }

// TerminationCompleted records the VNF reaching TERMINATED.
type TerminationCompleted struct{}

func (TerminationCompleted) EventType() string { return TypeTerminationCompleted }

// LifecycleFailed records a lifecycle operation failing mid-flight.
type LifecycleFailed struct {
	Reason string `json:"reason"`
}

func (LifecycleFailed) EventType() string { return TypeLifecycleFailed }

// Operation occurrence payloads.

// OperationStarted records a new operation occurrence in STARTING.
type OperationStarted struct {
	VNFID         string `json:"vnf_id"`
	OperationType string `json:"operation_type"`
}

func (OperationStarted) EventType() string { return TypeOperationStarted }

// OperationProcessing records the first successful saga step.
type OperationProcessing struct{}

func (OperationProcessing) EventType() string { return TypeOperationProcessing }

// OperationCompleted marks the occurrence terminal-successful.
type OperationCompleted struct{}

func (OperationCompleted) EventType() string { return TypeOperationCompleted }

// OperationFailed marks the occurrence terminal-failed.
type OperationFailed struct {
	Reason string `json:"reason"`
}

func (OperationFailed) EventType() string { return TypeOperationFailed }

// Marshal serialises a payload to its stored JSON form.
func Marshal(p Payload) ([]byte, error) {
	return json.Marshal(p)
}

// Unmarshal decodes stored JSON into the payload variant registered for
// eventType. An unregistered type is a hard error: silently skipping a
// stored event would corrupt every replayed aggregate after it.
func Unmarshal(eventType string, data []byte) (Payload, error) {
	var p Payload
	switch eventType {
	case TypeInstantiationStarted:
		p = &InstantiationStarted{}
	case TypeInstantiationCompleted:
		p = &InstantiationCompleted{}
	case TypeTerminationStarted:
		p = &TerminationStarted{}
	case TypeTerminationCompleted:
		p = &TerminationCompleted{}
	case TypeLifecycleFailed:
		p = &LifecycleFailed{}
	case TypeOperationStarted:
		p = &OperationStarted{}
	case TypeOperationProcessing:
		p = &OperationProcessing{}
	case TypeOperationCompleted:
		p = &OperationCompleted{}
	case TypeOperationFailed:
		p = &OperationFailed{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("event: decode %q: %w", eventType, err)
	}
	return deref(p), nil
}

// deref returns the value form so replay switches can match on value types.
func deref(p Payload) Payload {
	switch v := p.(type) {
	case *InstantiationStarted:
		return *v
	case *InstantiationCompleted:
		return *v
	case *TerminationStarted:
		return *v
	case *TerminationCompleted:
		return *v
	case *LifecycleFailed:
		return *v
	case *OperationStarted:
		return *v
	case *OperationProcessing:
		return *v
	case *OperationCompleted:
		return *v
	case *OperationFailed:
		return *v
	}
	return p
}
