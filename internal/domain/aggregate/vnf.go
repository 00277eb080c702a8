package aggregate

import (
	"fmt"

	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/event"
)

// VNFState is the lifecycle state of a VNF instance.
type VNFState string

const (
	VNFInitial       VNFState = "INITIAL"
	VNFInstantiating VNFState = "INSTANTIATING"
	VNFActive        VNFState = "ACTIVE"
	VNFTerminating   VNFState = "TERMINATING"
	VNFTerminated    VNFState = "TERMINATED"
	VNFFailed        VNFState = "FAILED"
)

// VNF is the lifecycle aggregate. Version tracks the last applied event
// and doubles as the expected version for optimistic appends.
type VNF struct {
	ID            string
	State         VNFState
	FlavourID     string
	ResourceIDs   []string
	FailureReason string
	Version       int64
}

// NewVNF returns the zero-state aggregate for id.
func NewVNF(id string) *VNF {
	return &VNF{ID: id, State: VNFInitial}
}

// ReplayVNF folds a stored event stream into a fresh aggregate.
func ReplayVNF(id string, envs []event.Envelope) (*VNF, error) {
	v := NewVNF(id)
	if err := v.Replay(envs); err != nil {
		return nil, err
	}
	return v, nil
}

// Replay applies envelopes strictly in version order.
func (v *VNF) Replay(envs []event.Envelope) error {
	for _, env := range envs {
		if env.Version != v.Version+1 {
			return fmt.Errorf("%w: vnf %s got version %d, want %d", event.ErrVersionGap, v.ID, env.Version, v.Version+1)
		}
		if err := v.apply(env.Payload); err != nil {
			return err
		}
		v.Version = env.Version
	}
	return nil
}

// Record wraps freshly emitted payloads into versioned envelopes and
// applies them, leaving the aggregate at its new current version.
func (v *VNF) Record(payloads ...event.Payload) ([]event.Envelope, error) {
	envs := make([]event.Envelope, 0, len(payloads))
	for i, p := range payloads {
		envs = append(envs, event.New(event.AggregateVNF, v.ID, v.Version+int64(i)+1, p))
	}
	if err := v.Replay(envs); err != nil {
		return nil, err
	}
	return envs, nil
}

// InstantiateCommand asks an INITIAL VNF to begin instantiation.
type InstantiateCommand struct {
	FlavourID   string
	OperationID string
	Resources   map[string]string
}

func (v *VNF) Instantiate(cmd InstantiateCommand) ([]event.Payload, error) {
	if v.State != VNFInitial {
		return nil, fmt.Errorf("%w: instantiate vnf %s in state %s", ErrStateConflict, v.ID, v.State)
	}
	return []event.Payload{event.InstantiationStarted{
		VNFID:       v.ID,
		FlavourID:   cmd.FlavourID,
		OperationID: cmd.OperationID,
		Resources:   cmd.Resources,
	}}, nil
}

func (v *VNF) CompleteInstantiation(resourceIDs []string) ([]event.Payload, error) {
	if v.State != VNFInstantiating {
		return nil, fmt.Errorf("%w: complete instantiation of vnf %s in state %s", ErrStateConflict, v.ID, v.State)
	}
	return []event.Payload{event.InstantiationCompleted{ResourceIDs: resourceIDs}}, nil
}

// TerminateCommand asks an ACTIVE VNF to begin termination.
type TerminateCommand struct {
	OperationID string
}

func (v *VNF) Terminate(cmd TerminateCommand) ([]event.Payload, error) {
	if v.State != VNFActive {
		return nil, fmt.Errorf("%w: terminate vnf %s in state %s", ErrStateConflict, v.ID, v.State)
	}
	return []event.Payload{event.TerminationStarted{OperationID: cmd.OperationID}}, nil
}

func (v *VNF) CompleteTermination() ([]event.Payload, error) {
	if v.State != VNFTerminating {
		return nil, fmt.Errorf("%w: complete termination of vnf %s in state %s", ErrStateConflict, v.ID, v.State)
	}
	return []event.Payload{event.TerminationCompleted{}}, nil
}

// Fail records a lifecycle operation failing. Only an in-flight
// operation can fail.
func (v *VNF) Fail(reason string) ([]event.Payload, error) {
	if v.State != VNFInstantiating && v.State != VNFTerminating {
		return nil, fmt.Errorf("%w: fail vnf %s in state %s", ErrStateConflict, v.ID, v.State)
	}
	return []event.Payload{event.LifecycleFailed{Reason: reason}}, nil
}

func (v *VNF) apply(p event.Payload) error {
	switch e := p.(type) {
	case event.InstantiationStarted:
		v.State = VNFInstantiating
		v.FlavourID = e.FlavourID
	case event.InstantiationCompleted:
		v.State = VNFActive
		v.ResourceIDs = e.ResourceIDs
	case event.TerminationStarted:
		v.State = VNFTerminating
	case event.TerminationCompleted:
		v.State = VNFTerminated
		v.ResourceIDs = nil
	case event.LifecycleFailed:
		v.State = VNFFailed
		v.FailureReason = e.Reason
	default:
		return fmt.Errorf("%w: %T on vnf stream", ErrUnexpectedEvent, p)
	}
	return nil
}
