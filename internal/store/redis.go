package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/option-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Runs are immutable, so writes populate the cache directly; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through ---

func (s *CachedStore) CreateRun(ctx context.Context, r *model.PricingRun) error {
	if err := s.primary.CreateRun(ctx, r); err != nil {
		return err
	}
	s.cacheRun(ctx, r)
	// Only the first run with a key is canonical; keep an existing mapping.
	s.rdb.SetNX(ctx, runKeyKey(r.Key), r.ID, s.ttl)
	// Recent list is derived; drop it so the next read rebuilds it.
	s.rdb.Del(ctx, recentKey)
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetRun(ctx context.Context, id string) (*model.PricingRun, error) {
	data, err := s.rdb.Get(ctx, runKey(id)).Bytes()
	if err == nil {
		var r model.PricingRun
		if json.Unmarshal(data, &r) == nil {
			return &r, nil
		}
	}

	// Cache miss: read from primary.
	r, err := s.primary.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheRun(ctx, r)
	return r, nil
}

func (s *CachedStore) GetRunByKey(ctx context.Context, key string) (*model.PricingRun, error) {
	// Try cache via key→runID mapping.
	id, err := s.rdb.Get(ctx, runKeyKey(key)).Result()
	if err == nil {
		return s.GetRun(ctx, id)
	}

	r, err := s.primary.GetRunByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	s.cacheRun(ctx, r)
	s.rdb.Set(ctx, runKeyKey(key), r.ID, s.ttl)
	return r, nil
}

// ListRuns caches each requested page size under one hash that every
// CreateRun drops.
func (s *CachedStore) ListRuns(ctx context.Context, limit int) ([]model.PricingRun, error) {
	field := strconv.Itoa(limit)
	data, err := s.rdb.HGet(ctx, recentKey, field).Bytes()
	if err == nil {
		var runs []model.PricingRun
		if json.Unmarshal(data, &runs) == nil {
			return runs, nil
		}
	}

	runs, err := s.primary.ListRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(runs); err == nil {
		pipe := s.rdb.TxPipeline()
		pipe.HSet(ctx, recentKey, field, data)
		pipe.Expire(ctx, recentKey, s.ttl)
		_, _ = pipe.Exec(ctx)
	}
	return runs, nil
}

// --- Cache helpers ---

func (s *CachedStore) cacheRun(ctx context.Context, r *model.PricingRun) {
	if data, err := json.Marshal(r); err == nil {
		s.rdb.Set(ctx, runKey(r.ID), data, s.ttl)
	}
}

const recentKey = "runs:recent"

func runKey(id string) string     { return fmt.Sprintf("run:%s", id) }
func runKeyKey(key string) string { return fmt.Sprintf("runkey:%s", key) }
