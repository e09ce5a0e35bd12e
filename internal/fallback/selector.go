// Package fallback chooses which host a connection attempt targets.
package fallback

import (
	"math/rand"
	"time"
)

// DefaultPrimaryHost is the realtime endpoint used when none is configured.
const DefaultPrimaryHost = "realtime.ably.io"

// DefaultFallbackHosts are the alternate endpoints tried after the primary.
var DefaultFallbackHosts = []string{
	"a.ably-realtime.com",
	"b.ably-realtime.com",
	"c.ably-realtime.com",
	"d.ably-realtime.com",
	"e.ably-realtime.com",
}

// Selector maps an attempt number to a host. Attempt 0 is the primary;
// attempt n returns the n-th alternate. Alternates are shuffled once at
// construction and the order is fixed for the Selector's lifetime.
//
// A Selector is immutable after construction and safe for concurrent use.
type Selector struct {
	primary    string
	alternates []string
}

// NewSelector shuffles alternates with a time-seeded source.
func NewSelector(primary string, alternates []string) *Selector {
	return NewSelectorWithRand(primary, alternates, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewSelectorWithRand shuffles alternates with r. A nil r keeps the given
// order.
func NewSelectorWithRand(primary string, alternates []string, r *rand.Rand) *Selector {
	if primary == "" {
		primary = DefaultPrimaryHost
	}

	shuffled := make([]string, 0, len(alternates))
	for _, h := range alternates {
		if h != "" && h != primary {
			shuffled = append(shuffled, h)
		}
	}
	if r != nil {
		r.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
	}

	return &Selector{primary: primary, alternates: shuffled}
}

// Host returns the host for the given attempt. Attempts past the end of the
// alternates list, and negative attempts, return the primary.
func (s *Selector) Host(attempt int) string {
	if attempt <= 0 || attempt > len(s.alternates) {
		return s.primary
	}
	return s.alternates[attempt-1]
}

// Primary returns the primary host.
func (s *Selector) Primary() string { return s.primary }

// Alternates returns a copy of the shuffled alternates.
func (s *Selector) Alternates() []string {
	out := make([]string, len(s.alternates))
	copy(out, s.alternates)
	return out
}

// Len returns the number of alternates.
func (s *Selector) Len() int { return len(s.alternates) }
