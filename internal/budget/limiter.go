// Package budget implements admission control for Monte Carlo requests.
//
// A pricing call allocates several float64 slices of length n, so the
// number of paths in flight bounds the memory the service can use. The
// limiter caps both the size of a single request and the total number of
// paths being simulated at once.
package budget

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrRequestTooLarge is returned when a single request asks for more
	// paths than the per-request maximum.
	ErrRequestTooLarge = errors.New("budget: sample count exceeds per-request limit")

	// ErrCapacityExhausted is returned when admitting a request would push
	// the paths in flight beyond the aggregate maximum.
	ErrCapacityExhausted = errors.New("budget: in-flight sample capacity exhausted")
)

// SampleLimiter enforces per-request and aggregate path limits.
// A non-positive limit disables that check.
type SampleLimiter struct {
	// MaxPerRequest is the largest sample count a single call may use.
	MaxPerRequest int64

	// MaxInFlight is the maximum number of paths across all running calls.
	MaxInFlight int64

	mu       sync.Mutex
	inFlight int64
}

// NewSampleLimiter creates a limiter. MaxInFlight is raised to
// MaxPerRequest when smaller so a maximal request can always run alone.
func NewSampleLimiter(maxPerRequest, maxInFlight int64) *SampleLimiter {
	if maxPerRequest > 0 && maxInFlight > 0 && maxInFlight < maxPerRequest {
		maxInFlight = maxPerRequest
	}
	return &SampleLimiter{
		MaxPerRequest: maxPerRequest,
		MaxInFlight:   maxInFlight,
	}
}

// Acquire reserves n paths. Every successful Acquire must be paired with
// Release(n). Non-positive n reserves nothing.
func (l *SampleLimiter) Acquire(n int64) error {
	if n <= 0 {
		return nil
	}

	// 1. Per-request limit.
	if l.MaxPerRequest > 0 && n > l.MaxPerRequest {
		return fmt.Errorf("%w: %d > %d", ErrRequestTooLarge, n, l.MaxPerRequest)
	}

	// 2. Aggregate in-flight limit.
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.MaxInFlight > 0 && l.inFlight+n > l.MaxInFlight {
		return fmt.Errorf("%w: %d in flight, %d requested, max %d",
			ErrCapacityExhausted, l.inFlight, n, l.MaxInFlight)
	}
	l.inFlight += n
	return nil
}

// Release returns n paths reserved by Acquire.
func (l *SampleLimiter) Release(n int64) {
	if n <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inFlight -= n
	if l.inFlight < 0 {
		l.inFlight = 0
	}
}

// InFlight returns the number of paths currently reserved.
func (l *SampleLimiter) InFlight() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight
}
