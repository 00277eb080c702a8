// Package relay drains the transactional outbox onto the message
// transport with retry and exponential backoff.
package relay

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/entity"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/repository"
)

// Publisher is the slice of the transport the relay needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte, msgID string) error
}

type Config struct {
	BatchSize      int
	PollInterval   time.Duration
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	PublishTimeout time.Duration
	ClaimLease     time.Duration
}

// Relay polls for due PENDING outbox rows and delivers them. A message
// is never dropped: a failed send only pushes its next attempt out.
type Relay struct {
	outbox    repository.OutboxRepository
	publisher Publisher
	cfg       Config
	log       *logrus.Logger
}

func New(outbox repository.OutboxRepository, publisher Publisher, cfg Config, log *logrus.Logger) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Minute
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = time.Minute
	}
	return &Relay{outbox: outbox, publisher: publisher, cfg: cfg, log: log}
}

// Run ticks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	r.log.Infof("relay: started (batch=%d, interval=%s)", r.cfg.BatchSize, r.cfg.PollInterval)
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := r.Tick(ctx); err != nil {
			r.log.WithError(err).Warn("relay: tick failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick claims one batch under the claim lease and sends each message
// with a bounded per-send timeout, so one stuck destination cannot
// stall the rest of the batch.
func (r *Relay) Tick(ctx context.Context) error {
	msgs, err := r.outbox.ClaimDue(ctx, time.Now().UTC(), r.cfg.BatchSize, r.cfg.ClaimLease)
	if err != nil {
		return err
	}

	for _, msg := range msgs {
		if err := r.send(ctx, msg); err != nil {
			next := time.Now().UTC().Add(Backoff(r.cfg.BaseDelay, r.cfg.MaxDelay, msg.RetryCount+1))
			r.log.WithError(err).WithFields(logrus.Fields{
				"message_id":  msg.ID,
				"destination": msg.Destination,
				"retry_count": msg.RetryCount + 1,
				"next_retry":  next,
			}).Warn("relay: publish failed")
			if err := r.outbox.RecordFailure(ctx, msg.ID, err.Error(), next); err != nil {
				r.log.WithError(err).Warn("relay: record failure")
			}
			continue
		}
		if err := r.outbox.MarkSent(ctx, msg.ID); err != nil {
			r.log.WithError(err).Warn("relay: mark sent")
		}
	}
	return nil
}

func (r *Relay) send(ctx context.Context, msg entity.OutboxMessage) error {
	sendCtx, cancel := context.WithTimeout(ctx, r.cfg.PublishTimeout)
	defer cancel()
	return r.publisher.Publish(sendCtx, msg.Destination, msg.Payload, msg.ID.String())
}

// Backoff returns base * 2^retryCount clamped to max, where retryCount
// is the message's count with the failing attempt included: the first
// failure waits 2*base.
func Backoff(base, max time.Duration, retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	delay := base
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
