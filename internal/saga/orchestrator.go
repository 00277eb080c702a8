package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/aggregate"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/entity"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/event"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/repository"
	"gorm.io/datatypes"
)

// ErrUnknownSagaType is returned by Start for an unregistered type.
var ErrUnknownSagaType = errors.New("saga: unknown saga type")

// StartParams carries the inputs for a new saga.
type StartParams struct {
	VNFID       string
	OperationID string
	Resources   map[string]string
}

// Orchestrator sequences saga steps and runs compensations. All of its
// mutations happen inside the caller-visible unit of work supplied by
// the store, so saga progress, outbox rows, timeouts and aggregate
// events commit together.
type Orchestrator struct {
	store       repository.Store
	sagas       repository.SagaRepository
	timeouts    repository.TimeoutRepository
	outbox      repository.OutboxRepository
	events      repository.EventStore
	defs        map[string]Definition
	stepTimeout time.Duration
	log         *logrus.Logger
}

func NewOrchestrator(
	store repository.Store,
	sagas repository.SagaRepository,
	timeouts repository.TimeoutRepository,
	outbox repository.OutboxRepository,
	events repository.EventStore,
	defs map[string]Definition,
	stepTimeout time.Duration,
	log *logrus.Logger,
) *Orchestrator {
	if stepTimeout <= 0 {
		stepTimeout = 2 * time.Minute
	}
	return &Orchestrator{
		store:       store,
		sagas:       sagas,
		timeouts:    timeouts,
		outbox:      outbox,
		events:      events,
		defs:        defs,
		stepTimeout: stepTimeout,
		log:         log,
	}
}

// Start persists a new saga at step 1, stages the first command on the
// outbox and arms the step timeout, all in one unit of work.
func (o *Orchestrator) Start(ctx context.Context, sagaType string, params StartParams) (uuid.UUID, error) {
	def, ok := o.defs[sagaType]
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrUnknownSagaType, sagaType)
	}

	sagaID := uuid.New()
	err := o.store.WithTx(ctx, func(txCtx context.Context) error {
		saga := entity.SagaInstance{
			ID:          sagaID,
			VNFID:       params.VNFID,
			OperationID: params.OperationID,
			SagaType:    sagaType,
			CurrentStep: 1,
			Status:      entity.SagaRunning,
		}
		if err := o.sagas.Create(txCtx, &saga); err != nil {
			return err
		}
		return o.dispatchStep(txCtx, &saga, def.Steps[0], params.Resources)
	})
	if err != nil {
		return uuid.Nil, err
	}

	o.log.WithFields(logrus.Fields{
		"saga_id":   sagaID,
		"saga_type": sagaType,
		"vnf_id":    params.VNFID,
	}).Info("saga started")
	return sagaID, nil
}

// HandleReply is the single entry point for participant replies and
// watchdog-forced timeouts. Duplicate, stale or late replies are logged
// and dropped, which makes the handler safe under at-least-once
// delivery.
func (o *Orchestrator) HandleReply(ctx context.Context, reply Reply) error {
	sagaID, err := uuid.Parse(reply.SagaID)
	if err != nil {
		return fmt.Errorf("saga: bad saga id %q: %w", reply.SagaID, err)
	}

	return o.store.WithTx(ctx, func(txCtx context.Context) error {
		saga, err := o.sagas.GetByID(txCtx, sagaID)
		if err != nil {
			if errors.Is(err, repository.ErrSagaNotFound) {
				o.log.WithField("saga_id", sagaID).Warn("reply for unknown saga ignored")
				return nil
			}
			return err
		}

		if saga.Terminal() {
			o.log.WithFields(logrus.Fields{
				"saga_id": sagaID,
				"status":  saga.Status,
			}).Info("reply for resolved saga ignored")
			return nil
		}

		// Settle the timeout first so a racing watchdog pass cannot
		// re-trigger this step.
		if err := o.timeouts.MarkProcessed(txCtx, sagaID, reply.Step); err != nil {
			return err
		}

		if reply.Step != saga.CurrentStep {
			o.log.WithFields(logrus.Fields{
				"saga_id":      sagaID,
				"reply_step":   reply.Step,
				"current_step": saga.CurrentStep,
			}).Warn("stale step reply ignored")
			return nil
		}

		if reply.Success {
			return o.advance(txCtx, &saga, reply)
		}
		return o.compensateAndFail(txCtx, &saga, reply.Reason)
	})
}

func (o *Orchestrator) advance(ctx context.Context, saga *entity.SagaInstance, reply Reply) error {
	def := o.defs[saga.SagaType]

	results, err := decodeResults(saga.StepResults)
	if err != nil {
		return err
	}
	results[strconv.Itoa(reply.Step)] = reply.Result
	encoded, err := json.Marshal(results)
	if err != nil {
		return err
	}
	saga.StepResults = datatypes.JSON(encoded)

	if reply.Step == 1 {
		if err := o.markOperationProcessing(ctx, saga.OperationID); err != nil {
			return err
		}
	}

	if reply.Step >= len(def.Steps) {
		saga.Status = entity.SagaCompleted
		if err := o.sagas.Update(ctx, saga); err != nil {
			return err
		}
		if err := o.completeOperation(ctx, saga.OperationID); err != nil {
			return err
		}
		if err := o.completeVNF(ctx, saga, results); err != nil {
			return err
		}
		o.log.WithField("saga_id", saga.ID).Info("saga completed")
		return nil
	}

	saga.CurrentStep = reply.Step + 1
	if err := o.sagas.Update(ctx, saga); err != nil {
		return err
	}
	// The next step consumes the result of the one that just finished
	// (e.g. deploy targets the reservation reserve returned).
	return o.dispatchStep(ctx, saga, def.Steps[saga.CurrentStep-1], reply.Result)
}

// compensateAndFail runs the failure path: compensations are staged for
// every earlier step that succeeded and declares one, then the saga and
// its operation occurrence go terminal-failed. The failed step itself is
// never compensated and never retried.
func (o *Orchestrator) compensateAndFail(ctx context.Context, saga *entity.SagaInstance, reason string) error {
	def := o.defs[saga.SagaType]
	failedStep := saga.CurrentStep

	saga.Status = entity.SagaCompensating
	if err := o.sagas.Update(ctx, saga); err != nil {
		return err
	}

	for i := failedStep - 2; i >= 0; i-- {
		step := def.Steps[i]
		if step.Compensation == nil {
			continue
		}
		cmd := CommandMessage{
			SagaID: saga.ID.String(),
			VNFID:  saga.VNFID,
			Reason: reason,
		}
		if err := o.enqueue(ctx, step.Compensation.Destination, step.Compensation.MessageType, cmd); err != nil {
			return err
		}
		o.log.WithFields(logrus.Fields{
			"saga_id": saga.ID,
			"step":    i + 1,
			"action":  step.Compensation.MessageType,
		}).Info("compensation enqueued")
	}

	if reason == "" {
		reason = "step failed"
	}
	saga.Status = entity.SagaFailed
	saga.FailureReason = reason
	if err := o.sagas.Update(ctx, saga); err != nil {
		return err
	}
	if err := o.failOperation(ctx, saga.OperationID, reason); err != nil {
		return err
	}
	if err := o.failVNF(ctx, saga.VNFID, reason); err != nil {
		return err
	}

	o.log.WithFields(logrus.Fields{
		"saga_id": saga.ID,
		"reason":  reason,
	}).Info("saga failed")
	return nil
}

func (o *Orchestrator) dispatchStep(ctx context.Context, saga *entity.SagaInstance, step Step, resources map[string]string) error {
	cmd := CommandMessage{
		SagaID:      saga.ID.String(),
		VNFID:       saga.VNFID,
		OperationID: saga.OperationID,
		Step:        saga.CurrentStep,
		Resources:   resources,
	}
	if err := o.enqueue(ctx, step.Destination, step.MessageType, cmd); err != nil {
		return err
	}
	return o.timeouts.Arm(ctx, saga.ID, saga.CurrentStep, time.Now().UTC().Add(o.stepTimeout))
}

func (o *Orchestrator) enqueue(ctx context.Context, destination, messageType string, cmd CommandMessage) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return o.outbox.Enqueue(ctx, &entity.OutboxMessage{
		Destination: destination,
		MessageType: messageType,
		Payload:     datatypes.JSON(payload),
	})
}

func (o *Orchestrator) markOperationProcessing(ctx context.Context, opID string) error {
	op, err := o.loadOperation(ctx, opID)
	if err != nil {
		return err
	}
	if op.State != aggregate.OpOccStarting {
		return nil
	}
	expected := op.Version
	payloads, err := op.MarkProcessing()
	if err != nil {
		return err
	}
	envs, err := op.Record(payloads...)
	if err != nil {
		return err
	}
	return o.events.Append(ctx, event.AggregateOpOcc, opID, envs, expected)
}

func (o *Orchestrator) completeOperation(ctx context.Context, opID string) error {
	op, err := o.loadOperation(ctx, opID)
	if err != nil {
		return err
	}
	expected := op.Version
	payloads, err := op.Complete()
	if err != nil {
		return err
	}
	envs, err := op.Record(payloads...)
	if err != nil {
		return err
	}
	return o.events.Append(ctx, event.AggregateOpOcc, opID, envs, expected)
}

func (o *Orchestrator) failOperation(ctx context.Context, opID, reason string) error {
	op, err := o.loadOperation(ctx, opID)
	if err != nil {
		return err
	}
	expected := op.Version
	payloads, err := op.Fail(reason)
	if err != nil {
		return err
	}
	envs, err := op.Record(payloads...)
	if err != nil {
		return err
	}
	return o.events.Append(ctx, event.AggregateOpOcc, opID, envs, expected)
}

func (o *Orchestrator) completeVNF(ctx context.Context, saga *entity.SagaInstance, results map[string]map[string]string) error {
	vnf, err := o.loadVNF(ctx, saga.VNFID)
	if err != nil {
		return err
	}
	expected := vnf.Version

	var payloads []event.Payload
	switch saga.SagaType {
	case TypeInstantiate:
		payloads, err = vnf.CompleteInstantiation(resourceIDs(results))
	case TypeTerminate:
		payloads, err = vnf.CompleteTermination()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSagaType, saga.SagaType)
	}
	if err != nil {
		return err
	}
	envs, err := vnf.Record(payloads...)
	if err != nil {
		return err
	}
	return o.events.Append(ctx, event.AggregateVNF, saga.VNFID, envs, expected)
}

func (o *Orchestrator) failVNF(ctx context.Context, vnfID, reason string) error {
	vnf, err := o.loadVNF(ctx, vnfID)
	if err != nil {
		return err
	}
	expected := vnf.Version
	payloads, err := vnf.Fail(reason)
	if err != nil {
		return err
	}
	envs, err := vnf.Record(payloads...)
	if err != nil {
		return err
	}
	return o.events.Append(ctx, event.AggregateVNF, vnfID, envs, expected)
}

func (o *Orchestrator) loadOperation(ctx context.Context, opID string) (*aggregate.OperationOccurrence, error) {
	envs, err := o.events.Load(ctx, event.AggregateOpOcc, opID)
	if err != nil {
		return nil, err
	}
	return aggregate.ReplayOperationOccurrence(opID, envs)
}

func (o *Orchestrator) loadVNF(ctx context.Context, vnfID string) (*aggregate.VNF, error) {
	envs, err := o.events.Load(ctx, event.AggregateVNF, vnfID)
	if err != nil {
		return nil, err
	}
	return aggregate.ReplayVNF(vnfID, envs)
}

func decodeResults(raw datatypes.JSON) (map[string]map[string]string, error) {
	results := make(map[string]map[string]string)
	if len(raw) == 0 {
		return results, nil
	}
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("saga: decode step results: %w", err)
	}
	return results, nil
}

func resourceIDs(results map[string]map[string]string) []string {
	var ids []string
	for step := 1; ; step++ {
		result, ok := results[strconv.Itoa(step)]
		if !ok {
			break
		}
		if id, ok := result["resource_id"]; ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
