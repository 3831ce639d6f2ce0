package resilience

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Backoff computes exponential retry delays with optional jitter.
// The delay before retry n (1-based) is Base * 2^(n-1), capped at Max when Max
// is positive, then scaled by a random factor in [1-Jitter, 1+Jitter].
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64

	mu   sync.Mutex
	rand *rand.Rand
}

// NewBackoff creates a Backoff seeded from the current time.
func NewBackoff(base, max time.Duration, jitter float64) *Backoff {
	return &Backoff{
		Base:   base,
		Max:    max,
		Jitter: jitter,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // jitter needs no crypto
	}
}

// WithRand swaps the random source, used by tests for determinism.
func (b *Backoff) WithRand(r *rand.Rand) *Backoff {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rand = r
	return b
}

// Delay returns the wait before the given retry attempt (1-based).
func (b *Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 || b.Base <= 0 {
		return 0
	}

	delay := b.Base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if b.Max > 0 && delay >= b.Max {
			break
		}
	}
	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}

	if b.Jitter <= 0 {
		return delay
	}
	jitter := b.Jitter
	if jitter > 1 {
		jitter = 1
	}

	b.mu.Lock()
	factor := 1 + jitter*(2*b.rand.Float64()-1)
	b.mu.Unlock()

	return time.Duration(float64(delay) * factor)
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
