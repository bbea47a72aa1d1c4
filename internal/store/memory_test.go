package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/atmx/option-engine/internal/model"
)

func run(id, key string) *model.PricingRun {
	return &model.PricingRun{ID: id, Key: key, Mode: "importance", Samples: 1000}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.CreateRun(ctx, run("r1", "k1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.GetRun(ctx, "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Key != "k1" {
		t.Errorf("expected key k1, got %s", got.Key)
	}

	// Returned runs are copies.
	got.Key = "mutated"
	again, _ := s.GetRun(ctx, "r1")
	if again.Key != "k1" {
		t.Errorf("store should not expose internal state, got key %s", again.Key)
	}
}

func TestMemoryStore_DuplicateID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.CreateRun(ctx, run("r1", "k1"))
	if err := s.CreateRun(ctx, run("r1", "k2")); err == nil {
		t.Error("expected error for duplicate run ID")
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetRunByKey(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_GetRunByKeyReturnsFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.CreateRun(ctx, run("r1", "shared"))
	_ = s.CreateRun(ctx, run("r2", "shared"))

	got, err := s.GetRunByKey(ctx, "shared")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "r1" {
		t.Errorf("expected first run r1, got %s", got.ID)
	}
}

func TestMemoryStore_ListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for i := 1; i <= 5; i++ {
		_ = s.CreateRun(ctx, run(fmt.Sprintf("r%d", i), fmt.Sprintf("k%d", i)))
	}

	tests := []struct {
		limit int
		want  []string
	}{
		{3, []string{"r5", "r4", "r3"}},
		{0, []string{"r5", "r4", "r3", "r2", "r1"}},
		{10, []string{"r5", "r4", "r3", "r2", "r1"}},
	}
	for _, tt := range tests {
		runs, err := s.ListRuns(ctx, tt.limit)
		if err != nil {
			t.Fatalf("limit=%d: unexpected error: %v", tt.limit, err)
		}
		if len(runs) != len(tt.want) {
			t.Fatalf("limit=%d: expected %d runs, got %d", tt.limit, len(tt.want), len(runs))
		}
		for i, id := range tt.want {
			if runs[i].ID != id {
				t.Errorf("limit=%d: position %d expected %s, got %s", tt.limit, i, id, runs[i].ID)
			}
		}
	}
}
