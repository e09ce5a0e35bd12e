// Package timer provides a restartable one-shot countdown.
package timer

import (
	"sync"
	"time"
)

// Dispatcher runs a fire callback. The connection worker passes a function
// that posts onto its event loop so expirations are serialized with every
// other event.
type Dispatcher func(fn func())

// Countdown is a cancelable one-shot delay. Start re-arms it and Abort
// cancels it; an expiration that raced with Abort or a later Start is
// dropped.
type Countdown struct {
	dispatch Dispatcher

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	running bool
}

// NewCountdown creates a countdown. A nil dispatcher runs callbacks on the
// timer goroutine.
func NewCountdown(dispatch Dispatcher) *Countdown {
	if dispatch == nil {
		dispatch = func(fn func()) { fn() }
	}
	return &Countdown{dispatch: dispatch}
}

// Start arms the countdown, replacing any pending expiration.
func (c *Countdown) Start(d time.Duration, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.running = true

	c.timer = time.AfterFunc(d, func() {
		c.dispatch(func() {
			if c.claim(gen) {
				fn()
			}
		})
	})
}

// Abort cancels a pending expiration. It is a no-op when not running.
func (c *Countdown) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	c.running = false
}

func (c *Countdown) claim(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.gen != gen {
		return false
	}
	c.running = false
	c.timer = nil
	return true
}
