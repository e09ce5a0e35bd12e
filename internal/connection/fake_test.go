package connection

import (
	"io"
	"log/slog"
	"time"

	"github.com/rickgao/realtime-client/internal/protocol"
	"github.com/rickgao/realtime-client/internal/transport"
)

// fakeTimer fires only when the test says so.
type fakeTimer struct {
	running bool
	delay   time.Duration
	fn      func()
	starts  int
}

func (t *fakeTimer) Start(d time.Duration, fn func()) {
	t.running = true
	t.delay = d
	t.fn = fn
	t.starts++
}

func (t *fakeTimer) Abort() { t.running = false }

// fire runs the callback if the timer is still armed.
func (t *fakeTimer) fire() {
	if !t.running {
		return
	}
	t.running = false
	t.fn()
}

type createCall struct {
	useFallback bool
	renew       bool
	done        func(err *Error)
}

// fakeContext records what a state asks of the manager.
type fakeContext struct {
	cfg ManagerConfig

	states []connectionState
	queued []connectionState
	timers []*fakeTimer

	hasTransport bool
	tState       transport.State
	creates      []createCall
	connects     int
	detaches     int
	sent         []*protocol.ProtocolMessage
	sendErr      error

	reachable bool
	probes    int

	info       ConnectionInfo
	infoSet    bool
	keyCleared bool
	connClear  bool
	lastErr    *protocol.ErrorInfo
	updates    int

	attempts    int
	resets      int
	established int
	suspend     bool
	retryDelay  time.Duration

	flushes int
	failed  []error
}

func newFakeContext() *fakeContext {
	return &fakeContext{
		cfg:        DefaultManagerConfig(),
		retryDelay: 2 * time.Second,
	}
}

func (c *fakeContext) logger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }
func (c *fakeContext) now() time.Time { return time.Unix(1700000000, 0) }
func (c *fakeContext) config() ManagerConfig { return c.cfg }

func (c *fakeContext) newTimer() Timer {
	t := &fakeTimer{}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeContext) setState(next connectionState) { c.states = append(c.states, next) }

func (c *fakeContext) queueTransition(origin, next connectionState) {
	c.queued = append(c.queued, next)
}

func (c *fakeContext) transportState() (transport.State, bool) {
	return c.tState, c.hasTransport
}

func (c *fakeContext) createTransport(origin connectionState, useFallback, renew bool, done func(err *Error)) {
	c.creates = append(c.creates, createCall{useFallback: useFallback, renew: renew, done: done})
}

func (c *fakeContext) connectTransport() { c.connects++ }

func (c *fakeContext) sendMessage(msg *protocol.ProtocolMessage) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeContext) detachTransport() {
	c.detaches++
	c.hasTransport = false
}

func (c *fakeContext) probe(origin connectionState, fn func(bool)) {
	c.probes++
	fn(c.reachable)
}

func (c *fakeContext) setConnectionInfo(info ConnectionInfo, _ *protocol.ConnectionDetails) {
	c.info = info
	c.infoSet = true
}

func (c *fakeContext) notifyUpdate(*protocol.ErrorInfo) { c.updates++ }
func (c *fakeContext) clearConnectionKey() { c.keyCleared = true }
func (c *fakeContext) clearConnection() { c.connClear = true }
func (c *fakeContext) setLastError(err *protocol.ErrorInfo) { c.lastErr = err }
func (c *fakeContext) attemptConnection() { c.attempts++ }
func (c *fakeContext) resetAttempts() { c.resets++ }
func (c *fakeContext) connectionEstablished() { c.established++ }
func (c *fakeContext) shouldSuspend() bool { return c.suspend }

func (c *fakeContext) shouldRenewToken(err *protocol.ErrorInfo) bool {
	return err.IsTokenError()
}

func (c *fakeContext) isFallbackReason(err *protocol.ErrorInfo) bool {
	if err == nil {
		return false
	}
	for _, code := range c.cfg.FallbackStatusCodes {
		if code == err.StatusCode {
			return true
		}
	}
	return false
}

func (c *fakeContext) nextRetryDelay() time.Duration { return c.retryDelay }
func (c *fakeContext) flushQueue() { c.flushes++ }
func (c *fakeContext) failQueue(err error) { c.failed = append(c.failed, err) }

// lastState returns the most recent setState target, or nil.
func (c *fakeContext) lastState() connectionState {
	if len(c.states) == 0 {
		return nil
	}
	return c.states[len(c.states)-1]
}

func (c *fakeContext) lastTimer() *fakeTimer {
	if len(c.timers) == 0 {
		return nil
	}
	return c.timers[len(c.timers)-1]
}
