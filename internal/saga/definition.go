// Package saga coordinates multi-step lifecycle operations across
// remote participants. Forward steps and compensations travel through
// the transactional outbox; progress lives in the saga_instances table.
package saga

// Saga types.
const (
	TypeInstantiate = "INSTANTIATE"
	TypeTerminate   = "TERMINATE"
)

// Message types carried on outbox rows and VIM commands.
const (
	MsgReserveResources = "reserve_resources"
	MsgDeployVNF        = "deploy_vnf"
	MsgReleaseResources = "release_resources"
)

// Topics names the transport destinations for participant commands.
type Topics struct {
	Reserve string
	Deploy  string
	Release string
}

// Compensation undoes an already-succeeded forward step.
type Compensation struct {
	Destination string
	MessageType string
}

// Step is one forward action of a saga definition.
type Step struct {
	Name         string
	Destination  string
	MessageType  string
	Compensation *Compensation
}

// Definition is an ordered list of steps for one saga type.
type Definition struct {
	Type  string
	Steps []Step
}

// Definitions builds the two shipped saga types. Instantiate reserves
// then deploys, releasing the reservation if deploy fails; terminate is
// a single release with nothing to compensate.
func Definitions(t Topics) map[string]Definition {
	return map[string]Definition{
		TypeInstantiate: {
			Type: TypeInstantiate,
			Steps: []Step{
				{
					Name:        "reserve",
					Destination: t.Reserve,
					MessageType: MsgReserveResources,
					Compensation: &Compensation{
						Destination: t.Release,
						MessageType: MsgReleaseResources,
					},
				},
				{
					Name:        "deploy",
					Destination: t.Deploy,
					MessageType: MsgDeployVNF,
				},
			},
		},
		TypeTerminate: {
			Type: TypeTerminate,
			Steps: []Step{
				{
					Name:        "release",
					Destination: t.Release,
					MessageType: MsgReleaseResources,
				},
			},
		},
	}
}

// CommandMessage is the wire payload sent to a remote participant.
type CommandMessage struct {
	SagaID      string            `json:"sagaId"`
	VNFID       string            `json:"vnfId"`
	OperationID string            `json:"operationId,omitempty"`
	Step        int               `json:"step,omitempty"`
	Resources   map[string]string `json:"resources,omitempty"`
	Reason      string            `json:"reason,omitempty"`
}

// Reply is the wire payload the orchestrator consumes, whether produced
// by a real participant or synthesised by the timeout watchdog.
type Reply struct {
	SagaID  string            `json:"sagaId"`
	Step    int               `json:"step"`
	Success bool              `json:"success"`
	Result  map[string]string `json:"result,omitempty"`
	Reason  string            `json:"reason,omitempty"`
}
