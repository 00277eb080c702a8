package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"github.com/telcoops/vnf-lifecycle-manager/internal/config"
	"github.com/telcoops/vnf-lifecycle-manager/internal/infra/messaging"
	"github.com/telcoops/vnf-lifecycle-manager/internal/infra/vim"
	"github.com/telcoops/vnf-lifecycle-manager/internal/saga"
)

// RunSimulator plays the remote VIM participant for local end-to-end
// runs: it consumes the reserve/deploy/release commands and publishes
// replies, optionally injecting failures to exercise compensation.
func RunSimulator(ctx context.Context, cfg config.Config) error {
	log, err := buildLogger(cfg)
	if err != nil {
		return err
	}

	client, err := messaging.NewNATS(ctx, cfg.NATS)
	if err != nil {
		return err
	}
	defer client.Close()

	sim := &vimParticipant{
		client:         client,
		manager:        vim.NewSimulator(0),
		replyTo:        cfg.NATS.ReplySubject,
		reserveSubject: cfg.NATS.ReserveSubject,
		deploySubject:  cfg.NATS.DeploySubject,
		failureRate:    cfg.Simulator.FailureRate,
		workDelay:      cfg.Simulator.WorkDelay,
		log:            log,
	}

	subjects := map[string]string{
		cfg.NATS.ReserveSubject: cfg.NATS.SimulatorDurable + "-reserve",
		cfg.NATS.DeploySubject:  cfg.NATS.SimulatorDurable + "-deploy",
		cfg.NATS.ReleaseSubject: cfg.NATS.SimulatorDurable + "-release",
	}
	subs := make([]*nats.Subscription, 0, len(subjects))
	for subject, durable := range subjects {
		sub, err := client.PullSubscribe(ctx, subject, durable)
		if err != nil {
			return err
		}
		subs = append(subs, sub)
	}
	log.Infof("simulator: listening (failure_rate=%.2f)", cfg.Simulator.FailureRate)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		for _, sub := range subs {
			msgs, err := sub.Fetch(10, nats.MaxWait(time.Second))
			if err != nil {
				if errors.Is(err, nats.ErrTimeout) {
					continue
				}
				log.WithError(err).Warn("simulator: fetch failed")
				continue
			}
			for _, msg := range msgs {
				sim.handle(ctx, msg)
				_ = msg.Ack()
			}
		}
	}
}

type vimParticipant struct {
	client         *messaging.NATSClient
	manager        vim.Manager
	replyTo        string
	reserveSubject string
	deploySubject  string
	failureRate    float64
	workDelay      time.Duration
	log            *logrus.Logger
}

func (p *vimParticipant) handle(ctx context.Context, msg *nats.Msg) {
	var cmd saga.CommandMessage
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		p.log.WithError(err).Warn("simulator: malformed command dropped")
		return
	}
	if p.workDelay > 0 {
		time.Sleep(p.workDelay)
	}

	if p.failureRate > 0 && rand.Float64() < p.failureRate {
		p.reply(ctx, cmd, false, nil, "injected fault")
		return
	}

	switch msg.Subject {
	case p.reserveSubject:
		alloc, err := p.manager.Allocate(cmd.VNFID, cmd.Resources)
		if err != nil {
			p.reply(ctx, cmd, false, nil, err.Error())
			return
		}
		p.reply(ctx, cmd, true, map[string]string{
			"resource_id": alloc.ID,
			"node_addr":   alloc.NodeAddr,
			"zone":        alloc.Zone,
		}, "")
	case p.deploySubject:
		alloc, err := p.manager.Deploy(cmd.Resources["resource_id"])
		if err != nil {
			p.reply(ctx, cmd, false, nil, err.Error())
			return
		}
		p.reply(ctx, cmd, true, map[string]string{
			"resource_id": alloc.ID,
			"node_addr":   alloc.NodeAddr,
		}, "")
	default:
		// Release serves both the terminate step and the instantiate
		// compensation; a compensation reply carries step 0 and the
		// orchestrator drops it as stale.
		if err := p.manager.Release(cmd.VNFID); err != nil {
			p.reply(ctx, cmd, false, nil, err.Error())
			return
		}
		p.reply(ctx, cmd, true, nil, "")
	}
}

func (p *vimParticipant) reply(ctx context.Context, cmd saga.CommandMessage, success bool, result map[string]string, reason string) {
	reply := saga.Reply{
		SagaID:  cmd.SagaID,
		Step:    cmd.Step,
		Success: success,
		Result:  result,
		Reason:  reason,
	}
	data, err := json.Marshal(reply)
	if err != nil {
		p.log.WithError(err).Error("simulator: marshal reply")
		return
	}
	if err := p.client.Publish(ctx, p.replyTo, data, uuid.NewString()); err != nil {
		p.log.WithError(err).Warn("simulator: publish reply failed")
	}
}
