package vim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateDeployRelease(t *testing.T) {
	s := NewSimulator(0)

	alloc, err := s.Allocate("vnf-1", map[string]string{"cpu": "2"})
	require.NoError(t, err)
	assert.NotEmpty(t, alloc.ID)
	assert.NotEmpty(t, alloc.NodeAddr)
	assert.False(t, alloc.Deployed)

	deployed, err := s.Deploy(alloc.ID)
	require.NoError(t, err)
	assert.True(t, deployed.Deployed)

	got, ok := s.Get(alloc.ID)
	require.True(t, ok)
	assert.True(t, got.Deployed)

	require.NoError(t, s.Release("vnf-1"))
	_, ok = s.Get(alloc.ID)
	assert.False(t, ok)
}

func TestAllocateRejectsDoubleBooking(t *testing.T) {
	s := NewSimulator(0)
	_, err := s.Allocate("vnf-1", nil)
	require.NoError(t, err)

	_, err = s.Allocate("vnf-1", nil)
	assert.Error(t, err)
}

func TestAllocateQuota(t *testing.T) {
	s := NewSimulator(1)
	_, err := s.Allocate("vnf-1", nil)
	require.NoError(t, err)

	_, err = s.Allocate("vnf-2", nil)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// Capacity is freed on release.
	require.NoError(t, s.Release("vnf-1"))
	_, err = s.Allocate("vnf-2", nil)
	assert.NoError(t, err)
}

func TestDeployUnknownAllocation(t *testing.T) {
	s := NewSimulator(0)
	_, err := s.Deploy("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReleaseIsIdempotent(t *testing.T) {
	s := NewSimulator(0)
	assert.NoError(t, s.Release("vnf-1"))

	_, err := s.Allocate("vnf-1", nil)
	require.NoError(t, err)
	assert.NoError(t, s.Release("vnf-1"))
	assert.NoError(t, s.Release("vnf-1"))
}
