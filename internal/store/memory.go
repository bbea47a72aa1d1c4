package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/atmx/option-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu    sync.RWMutex
	runs  map[string]*model.PricingRun
	byKey map[string]string // key → first run ID
	order []string          // run IDs in insertion order
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:  make(map[string]*model.PricingRun),
		byKey: make(map[string]string),
	}
}

func (s *MemoryStore) CreateRun(_ context.Context, run *model.PricingRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}

	// Store a copy to avoid external mutation.
	copy := *run
	s.runs[run.ID] = &copy
	s.order = append(s.order, run.ID)
	if _, ok := s.byKey[run.Key]; !ok {
		s.byKey[run.Key] = run.ID
	}
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (*model.PricingRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	copy := *r
	return &copy, nil
}

func (s *MemoryStore) GetRunByKey(_ context.Context, key string) (*model.PricingRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[key]
	if !ok {
		return nil, fmt.Errorf("run with key %s: %w", key, ErrNotFound)
	}
	copy := *s.runs[id]
	return &copy, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]model.PricingRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.order)
	if limit > 0 && limit < n {
		n = limit
	}
	runs := make([]model.PricingRun, 0, n)
	for i := len(s.order) - 1; i >= 0 && len(runs) < n; i-- {
		runs = append(runs, *s.runs[s.order[i]])
	}
	return runs, nil
}
