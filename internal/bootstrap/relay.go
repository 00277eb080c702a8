package bootstrap

import (
	"context"

	"github.com/telcoops/vnf-lifecycle-manager/internal/config"
	"github.com/telcoops/vnf-lifecycle-manager/internal/infra/messaging"
	"github.com/telcoops/vnf-lifecycle-manager/internal/infra/persistence"
	"github.com/telcoops/vnf-lifecycle-manager/internal/infra/relay"
)

// RunRelay starts the outbox relay loop.
func RunRelay(ctx context.Context, cfg config.Config) error {
	log, err := buildLogger(cfg)
	if err != nil {
		return err
	}

	conn, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	natsClient, err := messaging.NewNATS(ctx, cfg.NATS)
	if err != nil {
		return err
	}
	defer natsClient.Close()

	r := relay.New(
		persistence.NewOutboxRepository(conn),
		natsClient,
		relay.Config{
			BatchSize:      cfg.Outbox.BatchSize,
			PollInterval:   cfg.Outbox.PollInterval,
			BaseDelay:      cfg.Outbox.BaseDelay,
			MaxDelay:       cfg.Outbox.MaxDelay,
			PublishTimeout: cfg.Outbox.PublishTimeout,
			ClaimLease:     cfg.Outbox.ClaimLease,
		},
		log,
	)
	r.Run(ctx)
	return nil
}
