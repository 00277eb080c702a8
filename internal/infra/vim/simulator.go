// Package vim provides an in-memory stand-in for the virtualised
// infrastructure manager, used by the simulator process and in tests.
package vim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-faker/faker/v4"
	"github.com/google/uuid"
)

var (
	// ErrNotFound means no allocation exists for the id.
	ErrNotFound = errors.New("vim: allocation not found")
	// ErrQuotaExceeded is returned when the simulated capacity is spent.
	ErrQuotaExceeded = errors.New("vim: quota exceeded")
)

// Allocation is one reserved or deployed resource set.
type Allocation struct {
	ID        string
	VNFID     string
	NodeAddr  string
	Zone      string
	Resources map[string]string
	Deployed  bool
}

// Manager is the narrow interface lifecycle participants use.
type Manager interface {
	Allocate(vnfID string, resources map[string]string) (Allocation, error)
	Deploy(allocationID string) (Allocation, error)
	Release(vnfID string) error
	Get(allocationID string) (Allocation, bool)
}

// Simulator is a mutex-guarded in-memory Manager. Capacity bounds the
// number of live allocations so quota failures can be exercised.
type Simulator struct {
	mu       sync.Mutex
	byID     map[string]Allocation
	byVNF    map[string]string
	capacity int
}

var _ Manager = (*Simulator)(nil)

// NewSimulator returns a simulator holding up to capacity allocations;
// capacity <= 0 means unbounded.
func NewSimulator(capacity int) *Simulator {
	return &Simulator{
		byID:     make(map[string]Allocation),
		byVNF:    make(map[string]string),
		capacity: capacity,
	}
}

func (s *Simulator) Allocate(vnfID string, resources map[string]string) (Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capacity > 0 && len(s.byID) >= s.capacity {
		return Allocation{}, ErrQuotaExceeded
	}
	if id, ok := s.byVNF[vnfID]; ok {
		return Allocation{}, fmt.Errorf("vim: vnf %s already holds allocation %s", vnfID, id)
	}

	alloc := Allocation{
		ID:        uuid.NewString(),
		VNFID:     vnfID,
		NodeAddr:  faker.IPv4(),
		Zone:      faker.Word(),
		Resources: resources,
	}
	s.byID[alloc.ID] = alloc
	s.byVNF[vnfID] = alloc.ID
	return alloc, nil
}

func (s *Simulator) Deploy(allocationID string) (Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alloc, ok := s.byID[allocationID]
	if !ok {
		return Allocation{}, fmt.Errorf("%w: %s", ErrNotFound, allocationID)
	}
	alloc.Deployed = true
	s.byID[allocationID] = alloc
	return alloc, nil
}

// Release frees whatever the VNF holds. Releasing a VNF with no
// allocation is a no-op: compensations must be idempotent.
func (s *Simulator) Release(vnfID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byVNF[vnfID]
	if !ok {
		return nil
	}
	delete(s.byID, id)
	delete(s.byVNF, vnfID)
	return nil
}

func (s *Simulator) Get(allocationID string) (Allocation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	alloc, ok := s.byID[allocationID]
	return alloc, ok
}
