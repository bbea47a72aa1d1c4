package budget

import (
	"errors"
	"sync"
	"testing"
)

func TestAcquire_WithinLimits(t *testing.T) {
	l := NewSampleLimiter(1000, 5000)

	if err := l.Acquire(1000); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if got := l.InFlight(); got != 1000 {
		t.Errorf("expected 1000 in flight, got %d", got)
	}
}

func TestAcquire_PerRequestExceeded(t *testing.T) {
	l := NewSampleLimiter(1000, 5000)

	err := l.Acquire(1001)
	if !errors.Is(err, ErrRequestTooLarge) {
		t.Errorf("expected ErrRequestTooLarge, got %v", err)
	}
	if got := l.InFlight(); got != 0 {
		t.Errorf("rejected request should not reserve capacity, got %d", got)
	}
}

func TestAcquire_CapacityExhausted(t *testing.T) {
	l := NewSampleLimiter(1000, 2500)

	for i := 0; i < 2; i++ {
		if err := l.Acquire(1000); err != nil {
			t.Fatalf("acquire %d: unexpected error: %v", i, err)
		}
	}
	// 2000 in flight + 1000 = 3000 > 2500.
	if err := l.Acquire(1000); !errors.Is(err, ErrCapacityExhausted) {
		t.Errorf("expected ErrCapacityExhausted, got %v", err)
	}
	// 2000 + 500 = 2500 fits exactly.
	if err := l.Acquire(500); err != nil {
		t.Errorf("expected no error at exact capacity, got %v", err)
	}
}

func TestRelease_FreesCapacity(t *testing.T) {
	l := NewSampleLimiter(1000, 1000)

	if err := l.Acquire(1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Acquire(1); !errors.Is(err, ErrCapacityExhausted) {
		t.Fatalf("expected ErrCapacityExhausted, got %v", err)
	}
	l.Release(1000)
	if err := l.Acquire(1); err != nil {
		t.Errorf("expected capacity after release, got %v", err)
	}
}

func TestRelease_NeverNegative(t *testing.T) {
	l := NewSampleLimiter(10, 10)
	l.Release(5)
	if got := l.InFlight(); got != 0 {
		t.Errorf("expected 0 in flight, got %d", got)
	}
}

func TestNewSampleLimiter_RaisesAggregate(t *testing.T) {
	l := NewSampleLimiter(1000, 10)
	if l.MaxInFlight != 1000 {
		t.Errorf("expected aggregate raised to 1000, got %d", l.MaxInFlight)
	}
}

func TestUnlimited(t *testing.T) {
	l := NewSampleLimiter(0, 0)
	if err := l.Acquire(1 << 40); err != nil {
		t.Errorf("expected unlimited limiter to admit, got %v", err)
	}
}

func TestAcquire_Concurrent(t *testing.T) {
	l := NewSampleLimiter(10, 100)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Acquire(10) == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 10 {
		t.Errorf("expected exactly 10 admitted requests, got %d", admitted)
	}
	if got := l.InFlight(); got != 100 {
		t.Errorf("expected 100 in flight, got %d", got)
	}
}
