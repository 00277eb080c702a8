package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"github.com/telcoops/vnf-lifecycle-manager/internal/config"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/repository"
	"github.com/telcoops/vnf-lifecycle-manager/internal/infra/messaging"
	"github.com/telcoops/vnf-lifecycle-manager/internal/infra/persistence"
	"github.com/telcoops/vnf-lifecycle-manager/internal/saga"
)

// RunConsumer pulls saga replies off the transport and feeds them to the
// orchestrator. The processed-message marker is inserted in the same
// transaction as the reply's effects, so a redelivered message is
// acknowledged without re-running anything.
func RunConsumer(ctx context.Context, cfg config.Config) error {
	log, err := buildLogger(cfg)
	if err != nil {
		return err
	}

	conn, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := messaging.NewNATS(ctx, cfg.NATS)
	if err != nil {
		return err
	}
	defer client.Close()

	idemRepo := persistence.NewIdempotencyRepository(conn)
	orch := saga.NewOrchestrator(
		conn,
		persistence.NewSagaRepository(conn),
		persistence.NewTimeoutRepository(conn),
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

	sub, err := client.PullSubscribe(ctx, cfg.NATS.ReplySubject, cfg.NATS.ReplyDurable)
	if err != nil {
		return err
	}
	log.Infof("consumer: listening on %s (durable=%s)", cfg.NATS.ReplySubject, cfg.NATS.ReplyDurable)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msgs, err := sub.Fetch(50, nats.MaxWait(2*time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			log.WithError(err).Warn("consumer: fetch failed")
			continue
		}
		for _, msg := range msgs {
			handleReplyMessage(ctx, cfg, conn, idemRepo, orch, msg, log)
		}
	}
}

func handleReplyMessage(
	ctx context.Context,
	cfg config.Config,
	store repository.Store,
	idemRepo repository.IdempotencyRepository,
	orch *saga.Orchestrator,
	msg *nats.Msg,
	log *logrus.Logger,
) {
	msgID := msg.Header.Get(nats.MsgIdHdr)
	if msgID == "" {
		if md, err := msg.Metadata(); err == nil {
			msgID = fmt.Sprintf("%s-%d", msg.Subject, md.Sequence.Stream)
		}
	}
	if msgID == "" {
		log.Warn("consumer: reply without message id dropped")
		_ = msg.Ack()
		return
	}

	var reply saga.Reply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		log.WithError(err).Warn("consumer: malformed reply dropped")
		_ = msg.Ack()
		return
	}

	err := store.WithTx(ctx, func(txCtx context.Context) error {
		if err := idemRepo.MarkMessageProcessed(txCtx, msgID); err != nil {
			return err
		}
		return orch.HandleReply(txCtx, reply)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			log.WithField("message_id", msgID).Info("consumer: duplicate reply acknowledged")
			_ = msg.Ack()
			return
		}
		log.WithError(err).WithField("message_id", msgID).Warn("consumer: reply handling failed")
		nakWithBackoff(cfg, msg, log)
		return
	}
	_ = msg.Ack()
}

func nakWithBackoff(cfg config.Config, msg *nats.Msg, log *logrus.Logger) {
	md, err := msg.Metadata()
	if err != nil {
		log.WithError(err).Warn("consumer: metadata missing")
		_ = msg.Nak()
		return
	}
	delay := backoffForAttempt(cfg.NATS.ConsumerBackoff, md.NumDelivered)
	if delay > 0 {
		_ = msg.NakWithDelay(delay)
		return
	}
	_ = msg.Nak()
}

func backoffForAttempt(backoff []time.Duration, delivered uint64) time.Duration {
	if len(backoff) == 0 {
		return 0
	}
	idx := int(delivered) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(backoff) {
		idx = len(backoff) - 1
	}
	return backoff[idx]
}
