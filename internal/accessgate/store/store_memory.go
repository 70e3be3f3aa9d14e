package store

import (
	"context"
	"sync"
	"time"

	"bookedge/internal/accessgate/models"
)

// MemoryStore holds the access state in memory. Used in tests and demo
// deployments without a database.
type MemoryStore struct {
	mu    sync.RWMutex
	state models.AccessState
	err   error
	clock func() time.Time
}

// NewMemory constructs an in-memory settings store with fail-open defaults.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		state: *models.DefaultAccessState(),
		clock: time.Now,
	}
}

func (s *MemoryStore) FetchAccessState(_ context.Context) (*models.AccessState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	state := s.state
	state.FetchedAt = s.clock()
	return &state, nil
}

// SetMaintenanceMode flips the maintenance flag.
func (s *MemoryStore) SetMaintenanceMode(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.MaintenanceMode = enabled
}

// SetAllowRegistration flips the registration flag.
func (s *MemoryStore) SetAllowRegistration(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.AllowRegistration = enabled
}

// FailWith makes subsequent fetches return err. Pass nil to recover.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
