package usecase

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/aggregate"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/event"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/repository"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/service"
	"github.com/telcoops/vnf-lifecycle-manager/internal/saga"
)

var (
	// ErrVNFNotFound means the VNF has no event stream yet.
	ErrVNFNotFound = errors.New("vnf not found")
	// ErrOperationNotFound means no occurrence exists for the id.
	ErrOperationNotFound = errors.New("operation not found")
)

// Lifecycle accepts northbound commands. Aggregate events, the new
// operation occurrence, the saga row, the first outbox command and the
// step timeout all commit in one transaction.
type Lifecycle struct {
	store  repository.Store
	events repository.EventStore
	orch   *saga.Orchestrator
	log    *logrus.Logger
}

var _ service.LifecycleService = (*Lifecycle)(nil)

func NewLifecycle(store repository.Store, events repository.EventStore, orch *saga.Orchestrator, log *logrus.Logger) *Lifecycle {
	return &Lifecycle{store: store, events: events, orch: orch, log: log}
}

func (l *Lifecycle) Instantiate(ctx context.Context, vnfID, flavourID string, resources map[string]string) (string, error) {
	operationID := uuid.NewString()

	err := l.store.WithTx(ctx, func(txCtx context.Context) error {
		vnf, err := l.loadVNF(txCtx, vnfID)
		if err != nil {
			return err
		}
		expected := vnf.Version
		payloads, err := vnf.Instantiate(aggregate.InstantiateCommand{
			FlavourID:   flavourID,
			OperationID: operationID,
			Resources:   resources,
		})
		if err != nil {
			return err
		}
		envs, err := vnf.Record(payloads...)
		if err != nil {
			return err
		}
		if err := l.events.Append(txCtx, event.AggregateVNF, vnfID, envs, expected); err != nil {
			return err
		}

		if err := l.startOperation(txCtx, operationID, vnfID, aggregate.OpInstantiate); err != nil {
			return err
		}

		_, err = l.orch.Start(txCtx, saga.TypeInstantiate, saga.StartParams{
			VNFID:       vnfID,
			OperationID: operationID,
			Resources:   resources,
		})
		return err
	})
	if err != nil {
		l.log.WithError(err).WithField("vnf_id", vnfID).Error("instantiate failed")
		return "", err
	}
	return operationID, nil
}

func (l *Lifecycle) Terminate(ctx context.Context, vnfID string) (string, error) {
	operationID := uuid.NewString()

	err := l.store.WithTx(ctx, func(txCtx context.Context) error {
		vnf, err := l.loadVNF(txCtx, vnfID)
		if err != nil {
			return err
		}
		if vnf.Version == 0 {
			return ErrVNFNotFound
		}
		expected := vnf.Version
		payloads, err := vnf.Terminate(aggregate.TerminateCommand{OperationID: operationID})
		if err != nil {
			return err
		}
		envs, err := vnf.Record(payloads...)
		if err != nil {
			return err
		}
		if err := l.events.Append(txCtx, event.AggregateVNF, vnfID, envs, expected); err != nil {
			return err
		}

		if err := l.startOperation(txCtx, operationID, vnfID, aggregate.OpTerminate); err != nil {
			return err
		}

		_, err = l.orch.Start(txCtx, saga.TypeTerminate, saga.StartParams{
			VNFID:       vnfID,
			OperationID: operationID,
		})
		return err
	})
	if err != nil {
		l.log.WithError(err).WithField("vnf_id", vnfID).Error("terminate failed")
		return "", err
	}
	return operationID, nil
}

func (l *Lifecycle) GetVNF(ctx context.Context, vnfID string) (*aggregate.VNF, error) {
	vnf, err := l.loadVNF(ctx, vnfID)
	if err != nil {
		return nil, err
	}
	if vnf.Version == 0 {
		return nil, ErrVNFNotFound
	}
	return vnf, nil
}

func (l *Lifecycle) GetOperation(ctx context.Context, operationID string) (*aggregate.OperationOccurrence, error) {
	envs, err := l.events.Load(ctx, event.AggregateOpOcc, operationID)
	if err != nil {
		return nil, err
	}
	if len(envs) == 0 {
		return nil, ErrOperationNotFound
	}
	return aggregate.ReplayOperationOccurrence(operationID, envs)
}

func (l *Lifecycle) loadVNF(ctx context.Context, vnfID string) (*aggregate.VNF, error) {
	envs, err := l.events.Load(ctx, event.AggregateVNF, vnfID)
	if err != nil {
		return nil, err
	}
	return aggregate.ReplayVNF(vnfID, envs)
}

func (l *Lifecycle) startOperation(ctx context.Context, operationID, vnfID, operationType string) error {
	op := aggregate.NewOperationOccurrence(operationID)
	payloads, err := op.Start(vnfID, operationType)
	if err != nil {
		return err
	}
	envs, err := op.Record(payloads...)
	if err != nil {
		return err
	}
	return l.events.Append(ctx, event.AggregateOpOcc, operationID, envs, 0)
}
