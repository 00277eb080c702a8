package bootstrap

import (
	"context"

	"github.com/telcoops/vnf-lifecycle-manager/internal/config"
	"github.com/telcoops/vnf-lifecycle-manager/internal/infra/persistence"
	"github.com/telcoops/vnf-lifecycle-manager/internal/saga"
)

// RunWatchdog starts the saga timeout watchdog loop.
func RunWatchdog(ctx context.Context, cfg config.Config) error {
	log, err := buildLogger(cfg)
	if err != nil {
		return err
	}

	conn, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	sagas := persistence.NewSagaRepository(conn)
	timeouts := persistence.NewTimeoutRepository(conn)
	orch := saga.NewOrchestrator(
		conn,
		sagas,
		timeouts,
		persistence.NewOutboxRepository(conn),
		persistence.NewEventStore(conn),
		saga.Definitions(saga.Topics{
			Reserve: cfg.NATS.ReserveSubject,
			Deploy:  cfg.NATS.DeploySubject,
			Release: cfg.NATS.ReleaseSubject,
		}),
		cfg.Saga.StepTimeout,
		log,
	)

	w := saga.NewWatchdog(timeouts, sagas, orch, cfg.Saga.WatchdogInterval, cfg.Saga.WatchdogBatch, log)
	w.Run(ctx)
	return nil
}
