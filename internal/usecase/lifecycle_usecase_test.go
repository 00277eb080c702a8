package usecase

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/aggregate"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/entity"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/event"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/repository"
	"github.com/telcoops/vnf-lifecycle-manager/internal/saga"
)

// Minimal in-memory backends, enough to drive a full lifecycle through
// the use case and the orchestrator without postgres.

type memStore struct{}

func (memStore) Ping(ctx context.Context) error { return nil }
func (memStore) Close()                         {}
func (memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memSagas struct {
	byID map[uuid.UUID]entity.SagaInstance
}

func (r *memSagas) Create(ctx context.Context, s *entity.SagaInstance) error {
	r.byID[s.ID] = *s
	return nil
}

func (r *memSagas) GetByID(ctx context.Context, id uuid.UUID) (entity.SagaInstance, error) {
	s, ok := r.byID[id]
	if !ok {
		return entity.SagaInstance{}, repository.ErrSagaNotFound
	}
	return s, nil
}

func (r *memSagas) Update(ctx context.Context, s *entity.SagaInstance) error {
	r.byID[s.ID] = *s
	return nil
}

type memTimeouts struct{}

func (memTimeouts) Arm(ctx context.Context, sagaID uuid.UUID, step int, executeAt time.Time) error {
	return nil
}
func (memTimeouts) MarkProcessed(ctx context.Context, sagaID uuid.UUID, step int) error { return nil }
func (memTimeouts) Due(ctx context.Context, now time.Time, limit int) ([]entity.SagaTimeout, error) {
	return nil, nil
}

type memOutbox struct {
	messages []entity.OutboxMessage
}

func (o *memOutbox) Enqueue(ctx context.Context, msg *entity.OutboxMessage) error {
	msg.ID = uuid.New()
	o.messages = append(o.messages, *msg)
	return nil
}

func (o *memOutbox) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]entity.OutboxMessage, error) {
	return nil, nil
}
func (o *memOutbox) MarkSent(ctx context.Context, id uuid.UUID) error { return nil }
func (o *memOutbox) RecordFailure(ctx context.Context, id uuid.UUID, sendErr string, nextRetryAt time.Time) error {
	return nil
}

type memEvents struct {
	streams map[string][]event.Envelope
}

func (s *memEvents) key(aggType event.AggregateType, aggID string) string {
	return string(aggType) + "/" + aggID
}

func (s *memEvents) Append(ctx context.Context, aggType event.AggregateType, aggID string, envs []event.Envelope, expectedVersion int64) error {
	stream := s.streams[s.key(aggType, aggID)]
	var current int64
	if len(stream) > 0 {
		current = stream[len(stream)-1].Version
	}
	if current != expectedVersion {
		return repository.ErrVersionConflict
	}
	s.streams[s.key(aggType, aggID)] = append(stream, envs...)
	return nil
}

func (s *memEvents) Load(ctx context.Context, aggType event.AggregateType, aggID string) ([]event.Envelope, error) {
	stream := s.streams[s.key(aggType, aggID)]
	out := make([]event.Envelope, len(stream))
	copy(out, stream)
	return out, nil
}

type fixture struct {
	lifecycle *Lifecycle
	orch      *saga.Orchestrator
	sagas     *memSagas
	outbox    *memOutbox
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	sagas := &memSagas{byID: make(map[uuid.UUID]entity.SagaInstance)}
	outbox := &memOutbox{}
	events := &memEvents{streams: make(map[string][]event.Envelope)}
	topics := saga.Topics{Reserve: "vim.reserve", Deploy: "vim.deploy", Release: "vim.release"}

	orch := saga.NewOrchestrator(
		memStore{}, sagas, memTimeouts{}, outbox, events,
		saga.Definitions(topics), time.Minute, log,
	)
	return &fixture{
		lifecycle: NewLifecycle(memStore{}, events, orch, log),
		orch:      orch,
		sagas:     sagas,
		outbox:    outbox,
	}
}

// reply answers the most recent saga with the given outcome.
func (f *fixture) reply(t *testing.T, sagaID uuid.UUID, step int, success bool, result map[string]string, reason string) {
	t.Helper()
	require.NoError(t, f.orch.HandleReply(context.Background(), saga.Reply{
		SagaID:  sagaID.String(),
		Step:    step,
		Success: success,
		Result:  result,
		Reason:  reason,
	}))
}

// sagaForVNF returns the in-flight saga for the VNF.
func (f *fixture) sagaForVNF(t *testing.T, vnfID string) entity.SagaInstance {
	t.Helper()
	for _, s := range f.sagas.byID {
		if s.VNFID == vnfID && !s.Terminal() {
			return s
		}
	}
	t.Fatalf("no running saga for vnf %s", vnfID)
	return entity.SagaInstance{}
}

func TestInstantiateThenTerminate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	opID, err := f.lifecycle.Instantiate(ctx, "vnf-1", "small", map[string]string{"cpu": "2"})
	require.NoError(t, err)

	op, err := f.lifecycle.GetOperation(ctx, opID)
	require.NoError(t, err)
	assert.Equal(t, aggregate.OpOccStarting, op.State)
	assert.Equal(t, aggregate.OpInstantiate, op.OperationType)

	vnf, err := f.lifecycle.GetVNF(ctx, "vnf-1")
	require.NoError(t, err)
	assert.Equal(t, aggregate.VNFInstantiating, vnf.State)

	s := f.sagaForVNF(t, "vnf-1")
	f.reply(t, s.ID, 1, true, map[string]string{"resource_id": "res-1"}, "")
	f.reply(t, s.ID, 2, true, map[string]string{"node_addr": "10.0.0.7"}, "")

	vnf, err = f.lifecycle.GetVNF(ctx, "vnf-1")
	require.NoError(t, err)
	assert.Equal(t, aggregate.VNFActive, vnf.State)
	assert.Equal(t, []string{"res-1"}, vnf.ResourceIDs)

	op, err = f.lifecycle.GetOperation(ctx, opID)
	require.NoError(t, err)
	assert.Equal(t, aggregate.OpOccCompleted, op.State)

	termOpID, err := f.lifecycle.Terminate(ctx, "vnf-1")
	require.NoError(t, err)

	s = f.sagaForVNF(t, "vnf-1")
	f.reply(t, s.ID, 1, true, nil, "")

	vnf, err = f.lifecycle.GetVNF(ctx, "vnf-1")
	require.NoError(t, err)
	assert.Equal(t, aggregate.VNFTerminated, vnf.State)

	op, err = f.lifecycle.GetOperation(ctx, termOpID)
	require.NoError(t, err)
	assert.Equal(t, aggregate.OpOccCompleted, op.State)
}

func TestInstantiateTwiceRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.lifecycle.Instantiate(ctx, "vnf-1", "small", nil)
	require.NoError(t, err)

	_, err = f.lifecycle.Instantiate(ctx, "vnf-1", "small", nil)
	assert.ErrorIs(t, err, aggregate.ErrStateConflict)
}

func TestTerminateUnknownVNF(t *testing.T) {
	f := newFixture(t)
	_, err := f.lifecycle.Terminate(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrVNFNotFound)
}

func TestTerminateRequiresActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.lifecycle.Instantiate(ctx, "vnf-1", "small", nil)
	require.NoError(t, err)

	// Still INSTANTIATING: terminate must be refused.
	_, err = f.lifecycle.Terminate(ctx, "vnf-1")
	assert.ErrorIs(t, err, aggregate.ErrStateConflict)
}

func TestGetVNFUnknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.lifecycle.GetVNF(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrVNFNotFound)
}

func TestGetOperationUnknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.lifecycle.GetOperation(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrOperationNotFound)
}

func TestFailedInstantiationLeavesVNFFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	opID, err := f.lifecycle.Instantiate(ctx, "vnf-1", "small", nil)
	require.NoError(t, err)

	s := f.sagaForVNF(t, "vnf-1")
	f.reply(t, s.ID, 1, true, map[string]string{"resource_id": "res-1"}, "")
	f.reply(t, s.ID, 2, false, nil, "quota exceeded")

	vnf, err := f.lifecycle.GetVNF(ctx, "vnf-1")
	require.NoError(t, err)
	assert.Equal(t, aggregate.VNFFailed, vnf.State)
	assert.Equal(t, "quota exceeded", vnf.FailureReason)

	op, err := f.lifecycle.GetOperation(ctx, opID)
	require.NoError(t, err)
	assert.Equal(t, aggregate.OpOccFailed, op.State)

	// The release compensation rode the outbox.
	var releases int
	for _, msg := range f.outbox.messages {
		if msg.MessageType == saga.MsgReleaseResources {
			releases++
		}
	}
	assert.Equal(t, 1, releases)
}
