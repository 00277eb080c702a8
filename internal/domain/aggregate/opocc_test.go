package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/event"
)

func startedOp(t *testing.T, id string) *OperationOccurrence {
	t.Helper()
	o := NewOperationOccurrence(id)
	payloads, err := o.Start("vnf-1", OpInstantiate)
	require.NoError(t, err)
	_, err = o.Record(payloads...)
	require.NoError(t, err)
	return o
}

func TestOperationHappyPath(t *testing.T) {
	o := startedOp(t, "op-1")
	assert.Equal(t, OpOccStarting, o.State)
	assert.Equal(t, "vnf-1", o.VNFID)
	assert.Equal(t, OpInstantiate, o.OperationType)

	payloads, err := o.MarkProcessing()
	require.NoError(t, err)
	_, err = o.Record(payloads...)
	require.NoError(t, err)
	assert.Equal(t, OpOccProcessing, o.State)

	payloads, err = o.Complete()
	require.NoError(t, err)
	_, err = o.Record(payloads...)
	require.NoError(t, err)
	assert.Equal(t, OpOccCompleted, o.State)
	assert.Equal(t, int64(3), o.Version)
}

func TestOperationStartOnlyOnce(t *testing.T) {
	o := startedOp(t, "op-1")
	_, err := o.Start("vnf-1", OpTerminate)
	assert.ErrorIs(t, err, ErrStateConflict)
}

func TestOperationFailFromStartingAndProcessing(t *testing.T) {
	o := startedOp(t, "op-1")
	payloads, err := o.Fail("timeout")
	require.NoError(t, err)
	_, err = o.Record(payloads...)
	require.NoError(t, err)
	assert.Equal(t, OpOccFailed, o.State)
	assert.Equal(t, "timeout", o.FailureReason)

	o = startedOp(t, "op-2")
	payloads, err = o.MarkProcessing()
	require.NoError(t, err)
	_, err = o.Record(payloads...)
	require.NoError(t, err)
	_, err = o.Fail("quota exceeded")
	require.NoError(t, err)
}

func TestOperationTerminalGuard(t *testing.T) {
	o := startedOp(t, "op-1")
	payloads, err := o.Fail("timeout")
	require.NoError(t, err)
	_, err = o.Record(payloads...)
	require.NoError(t, err)

	_, err = o.Complete()
	assert.ErrorIs(t, err, ErrStateConflict)
	_, err = o.Fail("again")
	assert.ErrorIs(t, err, ErrStateConflict)
	_, err = o.MarkProcessing()
	assert.ErrorIs(t, err, ErrStateConflict)
}

func TestOperationCompleteRequiresProcessing(t *testing.T) {
	o := startedOp(t, "op-1")
	_, err := o.Complete()
	assert.ErrorIs(t, err, ErrStateConflict)
}

func TestOperationReplay(t *testing.T) {
	stream := []event.Envelope{
		event.New(event.AggregateOpOcc, "op-1", 1, event.OperationStarted{VNFID: "vnf-1", OperationType: OpTerminate}),
		event.New(event.AggregateOpOcc, "op-1", 2, event.OperationProcessing{}),
		event.New(event.AggregateOpOcc, "op-1", 3, event.OperationCompleted{}),
	}
	o, err := ReplayOperationOccurrence("op-1", stream)
	require.NoError(t, err)
	assert.Equal(t, OpOccCompleted, o.State)
	assert.Equal(t, int64(3), o.Version)
}
