package connection

import "time"

// Backoff yields doubling retry delays capped at Max. The sequence is
// deterministic, finite at every step and never exceeds Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	attempt int
}

// NewBackoff returns a Backoff. Non-positive values fall back to 1s and
// 30s, and Max is raised to Base if lower.
func NewBackoff(base, max time.Duration) *Backoff {
	if base <= 0 {
		base = time.Second
	}
	if max <= 0 {
		max = 30 * time.Second
	}
	if max < base {
		max = base
	}
	return &Backoff{Base: base, Max: max}
}

// Next returns the delay for the next retry.
func (b *Backoff) Next() time.Duration {
	delay := b.Base
	for i := 0; i < b.attempt && delay < b.Max; i++ {
		delay *= 2
	}
	if delay > b.Max {
		delay = b.Max
	}
	b.attempt++
	return delay
}

// Reset restarts the sequence from Base.
func (b *Backoff) Reset() {
	b.attempt = 0
}
