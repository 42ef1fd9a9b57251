package enrich

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Limiter bounds the number of concurrent AI calls. Each job owns its own
// Limiter; it is shared by every batch of that job.
type Limiter struct {
	sem      *semaphore.Weighted
	size     int
	inFlight atomic.Int64
	peak     atomic.Int64
}

// NewLimiter returns a Limiter admitting n concurrent calls. n < 1 is
// treated as 1.
func NewLimiter(n int) *Limiter {
	if n < 1 {
		n = 1
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(n)), size: n}
}

// Size returns the configured limit.
func (l *Limiter) Size() int {
	return l.size
}

// Peak returns the highest number of calls observed in flight at once.
func (l *Limiter) Peak() int {
	return int(l.peak.Load())
}

// Do runs fn while holding one slot. The slot is released when fn returns,
// whatever the outcome.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.sem.Release(1)

	n := l.inFlight.Add(1)
	defer l.inFlight.Add(-1)
	for {
		p := l.peak.Load()
		if n <= p || l.peak.CompareAndSwap(p, n) {
			break
		}
	}

	return fn(ctx)
}
