package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/telcoops/vnf-lifecycle-manager/internal/config"
)

// NATSClient wraps a JetStream connection provisioned with the saga
// stream: the VIM command subjects plus the reply subject.
type NATSClient struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	cfg  config.NATS
}

func NewNATS(ctx context.Context, cfg config.NATS) (*NATSClient, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats: url is required")
	}
	if cfg.Stream == "" || cfg.ReplySubject == "" {
		return nil, errors.New("nats: stream and reply_subject are required")
	}

	conn, err := nats.Connect(cfg.URL, nats.Name("vnf-lcm"))
	if err != nil {
		return nil, err
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ensureStream(ctx, js, cfg); err != nil {
		conn.Close()
		return nil, err
	}

	return &NATSClient{conn: conn, js: js, cfg: cfg}, nil
}

func (c *NATSClient) Close() {
	if c == nil || c.conn == nil {
		return
	}
	c.conn.Close()
}

func (c *NATSClient) JetStream() nats.JetStreamContext {
	if c == nil {
		return nil
	}
	return c.js
}

// Publish sends payload to subject. msgID becomes the Nats-Msg-Id
// header, giving broker-side dedup on top of the application shield.
func (c *NATSClient) Publish(ctx context.Context, subject string, payload []byte, msgID string) error {
	if c == nil || c.js == nil {
		return errors.New("nats: jetstream not initialized")
	}
	msg := nats.NewMsg(subject)
	msg.Data = payload
	if msgID != "" {
		msg.Header.Set(nats.MsgIdHdr, msgID)
	}
	_, err := c.js.PublishMsg(msg, nats.Context(ctx))
	return err
}

// PullSubscribe binds a durable pull consumer for subject, creating the
// consumer if needed.
func (c *NATSClient) PullSubscribe(ctx context.Context, subject, durable string) (*nats.Subscription, error) {
	if c == nil || c.js == nil {
		return nil, errors.New("nats: jetstream not initialized")
	}
	if err := c.ensureConsumer(ctx, subject, durable); err != nil {
		return nil, err
	}
	return c.js.PullSubscribe(subject, durable, nats.Bind(c.cfg.Stream, durable))
}

func (c *NATSClient) ensureConsumer(ctx context.Context, subject, durable string) error {
	if durable == "" {
		return errors.New("nats: durable name is required")
	}

	info, err := c.js.ConsumerInfo(c.cfg.Stream, durable, nats.Context(ctx))
	if err != nil && !errors.Is(err, nats.ErrConsumerNotFound) {
		return err
	}

	maxDeliver := c.cfg.ConsumerMaxDeliver
	if maxDeliver <= 0 {
		maxDeliver = -1
	}

	if info != nil {
		if info.Config.MaxDeliver != maxDeliver || !sameBackoff(info.Config.BackOff, c.cfg.ConsumerBackoff) {
			if err := c.js.DeleteConsumer(c.cfg.Stream, durable, nats.Context(ctx)); err != nil {
				return err
			}
			info = nil
		}
	}

	if info == nil {
		consumerCfg := &nats.ConsumerConfig{
			Durable:       durable,
			AckPolicy:     nats.AckExplicitPolicy,
			AckWait:       c.cfg.AckWait,
			MaxAckPending: c.cfg.MaxAckPending,
			MaxDeliver:    maxDeliver,
			FilterSubject: subject,
		}
		if len(c.cfg.ConsumerBackoff) > 0 {
			consumerCfg.BackOff = c.cfg.ConsumerBackoff
		}
		if _, err := c.js.AddConsumer(c.cfg.Stream, consumerCfg, nats.Context(ctx)); err != nil {
			return err
		}
	}
	return nil
}

func ensureStream(ctx context.Context, js nats.JetStreamContext, cfg config.NATS) error {
	subjects := []string{
		cfg.ReserveSubject,
		cfg.DeploySubject,
		cfg.ReleaseSubject,
		cfg.ReplySubject,
	}

	info, err := js.StreamInfo(cfg.Stream, nats.Context(ctx))
	if err == nil {
		if !sameSubjects(info.Config.Subjects, subjects) {
			info.Config.Subjects = subjects
			_, err = js.UpdateStream(&info.Config, nats.Context(ctx))
		}
		return err
	}

	if errors.Is(err, nats.ErrStreamNotFound) {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      cfg.Stream,
			Subjects:  subjects,
			Storage:   nats.FileStorage,
			Retention: nats.LimitsPolicy,
		}, nats.Context(ctx))
		return err
	}
	return err
}

func sameBackoff(a, b []time.Duration) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameSubjects(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, s := range a {
		seen[s]++
	}
	for _, s := range b {
		if seen[s] == 0 {
			return false
		}
		seen[s]--
	}
	for _, v := range seen {
		if v != 0 {
			return false
		}
	}
	return true
}
