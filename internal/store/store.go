// Package store defines the persistence interface for pricing runs.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/atmx/option-engine/internal/model"
)

// ErrNotFound is returned when no run matches the lookup.
var ErrNotFound = errors.New("store: run not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Runs (append-only) ---

	// CreateRun persists a completed pricing run.
	CreateRun(ctx context.Context, run *model.PricingRun) error

	// GetRun retrieves a run by its ID.
	GetRun(ctx context.Context, id string) (*model.PricingRun, error)

	// GetRunByKey retrieves the earliest run with the given deterministic key.
	GetRunByKey(ctx context.Context, key string) (*model.PricingRun, error)

	// ListRuns returns the most recent runs, newest first. A non-positive
	// limit returns every run.
	ListRuns(ctx context.Context, limit int) ([]model.PricingRun, error)
}
