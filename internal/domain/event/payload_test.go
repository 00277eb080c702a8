package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalRoundTrip(t *testing.T) {
	p := InstantiationStarted{
		VNFID:       "vnf-1",
		FlavourID:   "small",
		OperationID: "op-1",
		Resources:   map[string]string{"cpu": "2", "memory": "4Gi"},
	}

	data, err := Marshal(p)
	require.NoError(t, err)

	decoded, err := Unmarshal(p.EventType(), data)
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
}

func TestUnmarshalReturnsValueTypes(t *testing.T) {
	data, err := Marshal(OperationFailed{Reason: "timeout"})
	require.NoError(t, err)

	decoded, err := Unmarshal(TypeOperationFailed, data)
	require.NoError(t, err)

	// Replay switches match on value types, not pointers.
	failed, ok := decoded.(OperationFailed)
	require.True(t, ok, "expected value type, got %T", decoded)
	assert.Equal(t, "timeout", failed.Reason)
}

func TestUnmarshalUnknownTypeFails(t *testing.T) {
	_, err := Unmarshal("vnf.scaled", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownEventType)
}

func TestUnmarshalMalformedPayloadFails(t *testing.T) {
	_, err := Unmarshal(TypeLifecycleFailed, []byte(`{"reason":`))
	assert.Error(t, err)
}

func TestNewEnvelope(t *testing.T) {
	env := New(AggregateVNF, "vnf-1", 3, TerminationCompleted{})
	assert.Equal(t, AggregateVNF, env.AggregateType)
	assert.Equal(t, "vnf-1", env.AggregateID)
	assert.Equal(t, int64(3), env.Version)
	assert.Equal(t, TypeTerminationCompleted, env.Type)
	assert.NotEqual(t, env.ID.String(), "00000000-0000-0000-0000-000000000000")
}
