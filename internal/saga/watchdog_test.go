package saga

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/entity"
)

func newWatchdog(h *harness) *Watchdog {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewWatchdog(h.timeouts, h.sagas, h.orch, time.Second, 100, log)
}

func expireTimeout(t *testing.T, h *harness, sagaID uuid.UUID, step int) {
	t.Helper()
	require.NoError(t, h.timeouts.Arm(context.Background(), sagaID, step, time.Now().UTC().Add(-time.Minute)))
}

func TestWatchdogForcesTimeoutFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sagaID := h.startInstantiation(t, "vnf-1", "op-1")

	// Rewind the armed deadline into the past.
	expireTimeout(t, h, sagaID, 1)

	require.NoError(t, newWatchdog(h).Tick(ctx))

	saga, err := h.sagas.GetByID(ctx, sagaID)
	require.NoError(t, err)
	assert.Equal(t, entity.SagaFailed, saga.Status)
	assert.Equal(t, "timeout", saga.FailureReason)
	assert.True(t, h.timeouts.processed(sagaID, 1))
}

func TestWatchdogIgnoresAdvancedSaga(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sagaID := h.startInstantiation(t, "vnf-1", "op-1")

	// The reply won the race: the saga moved on to step 2 but the old
	// timeout row is still due.
	require.NoError(t, h.orch.HandleReply(ctx, Reply{
		SagaID: sagaID.String(), Step: 1, Success: true,
		Result: map[string]string{"resource_id": "res-1"},
	}))
	expireTimeout(t, h, sagaID, 1)

	require.NoError(t, newWatchdog(h).Tick(ctx))

	saga, err := h.sagas.GetByID(ctx, sagaID)
	require.NoError(t, err)
	assert.Equal(t, entity.SagaRunning, saga.Status)
	assert.Equal(t, 2, saga.CurrentStep)
	assert.True(t, h.timeouts.processed(sagaID, 1))
}

func TestWatchdogCleansOrphanTimeout(t *testing.T) {
	h := newHarness(t)
	orphan := uuid.New()
	expireTimeout(t, h, orphan, 1)

	require.NoError(t, newWatchdog(h).Tick(context.Background()))
	assert.True(t, h.timeouts.processed(orphan, 1))
}

// erroringSagaRepo fails every lookup, standing in for a wedged store.
type erroringSagaRepo struct {
	*fakeSagaRepo
}

func (r erroringSagaRepo) GetByID(ctx context.Context, id uuid.UUID) (entity.SagaInstance, error) {
	return entity.SagaInstance{}, errors.New("connection reset")
}

func TestWatchdogDropsPoisonedTimeout(t *testing.T) {
	h := newHarness(t)
	sagaID := h.startInstantiation(t, "vnf-1", "op-1")
	expireTimeout(t, h, sagaID, 1)

	log := logrus.New()
	log.SetOutput(io.Discard)
	w := NewWatchdog(h.timeouts, erroringSagaRepo{h.sagas}, h.orch, time.Second, 100, log)

	// The failing lookup must not wedge the loop: the timeout is
	// force-marked processed and later ticks see an empty batch.
	require.NoError(t, w.Tick(context.Background()))
	assert.True(t, h.timeouts.processed(sagaID, 1))

	due, err := h.timeouts.Due(context.Background(), time.Now().UTC(), 100)
	require.NoError(t, err)
	assert.Empty(t, due)
}
