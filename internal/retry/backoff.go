package retry

import (
	"math"
	"math/rand"
	"time"
)

const minDelay = 100 * time.Millisecond

// Backoff computes jittered exponential delays between connection attempts.
type Backoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Factor    float64
	Jitter    float64
}

// DefaultBackoff is tuned for broker connection establishment: quick first
// retries, capped well below a supervisor restart interval.
func DefaultBackoff() *Backoff {
	return &Backoff{
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  30 * time.Second,
		Factor:    2.0,
		Jitter:    0.2,
	}
}

// NextDelay returns the delay before the given zero-based attempt.
func (b *Backoff) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(b.BaseDelay) * math.Pow(b.Factor, float64(attempt))
	if delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}

	if b.Jitter > 0 {
		jitterRange := delay * b.Jitter
		delay += (rand.Float64() * 2 * jitterRange) - jitterRange
	}

	if delay < float64(minDelay) {
		delay = float64(minDelay)
	}

	return time.Duration(delay)
}
