package saga

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/entity"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/repository"
)

// Watchdog resolves sagas stuck waiting on a reply that never arrived.
// It is the only path by which a stuck saga reaches a terminal state.
type Watchdog struct {
	timeouts repository.TimeoutRepository
	sagas    repository.SagaRepository
	orch     *Orchestrator
	interval time.Duration
	batch    int
	log      *logrus.Logger
}

func NewWatchdog(
	timeouts repository.TimeoutRepository,
	sagas repository.SagaRepository,
	orch *Orchestrator,
	interval time.Duration,
	batch int,
	log *logrus.Logger,
) *Watchdog {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &Watchdog{
		timeouts: timeouts,
		sagas:    sagas,
		orch:     orch,
		interval: interval,
		batch:    batch,
		log:      log,
	}
}

// Run ticks until ctx is cancelled.
func (w *Watchdog) Run(ctx context.Context) {
	w.log.Infof("watchdog: started (interval=%s, batch=%d)", w.interval, w.batch)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.Tick(ctx); err != nil {
			w.log.WithError(err).Warn("watchdog: tick failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick processes one batch of expired timeouts. Each timeout is visited
// to completion: a processing error is logged and the timeout is
// forcibly marked processed so one poisoned record cannot wedge the loop.
func (w *Watchdog) Tick(ctx context.Context) error {
	due, err := w.timeouts.Due(ctx, time.Now().UTC(), w.batch)
	if err != nil {
		return err
	}

	for _, timeout := range due {
		if err := w.expire(ctx, timeout); err != nil {
			w.log.WithError(err).WithFields(logrus.Fields{
				"saga_id": timeout.SagaID,
				"step":    timeout.Step,
			}).Error("watchdog: expire failed, dropping timeout")
			if err := w.timeouts.MarkProcessed(ctx, timeout.SagaID, timeout.Step); err != nil {
				w.log.WithError(err).Warn("watchdog: mark processed failed")
			}
		}
	}
	return nil
}

func (w *Watchdog) expire(ctx context.Context, timeout entity.SagaTimeout) error {
	saga, err := w.sagas.GetByID(ctx, timeout.SagaID)
	if err != nil {
		if errors.Is(err, repository.ErrSagaNotFound) {
			return w.timeouts.MarkProcessed(ctx, timeout.SagaID, timeout.Step)
		}
		return err
	}

	// Only a saga still waiting on exactly this step gets a synthetic
	// failure; anything else is stale cleanup.
	if saga.Status != entity.SagaRunning || saga.CurrentStep != timeout.Step {
		return w.timeouts.MarkProcessed(ctx, timeout.SagaID, timeout.Step)
	}

	w.log.WithFields(logrus.Fields{
		"saga_id": timeout.SagaID,
		"step":    timeout.Step,
	}).Warn("watchdog: step deadline passed, forcing failure")

	return w.orch.HandleReply(ctx, Reply{
		SagaID:  timeout.SagaID.String(),
		Step:    timeout.Step,
		Success: false,
		Reason:  "timeout",
	})
}
