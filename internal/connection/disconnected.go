package connection

import (
	"time"

	"github.com/rickgao/realtime-client/internal/protocol"
	"github.com/rickgao/realtime-client/internal/transport"
)

// disconnectedState waits out a backoff delay and then tries again.
type disconnectedState struct {
	err         *protocol.ErrorInfo
	useFallback bool

	timer Timer
	delay time.Duration
}

func newDisconnectedState(err *protocol.ErrorInfo, useFallback bool) *disconnectedState {
	if err == nil {
		err = protocol.ReasonDisconnected()
	}
	return &disconnectedState{err: err, useFallback: useFallback}
}

func (s *disconnectedState) kind() State { return StateDisconnected }
func (s *disconnectedState) canQueue() bool { return true }
func (s *disconnectedState) reason() *protocol.ErrorInfo { return s.err }
func (s *disconnectedState) retryIn() time.Duration { return s.delay }

func (s *disconnectedState) onMessage(stateContext, *protocol.ProtocolMessage) bool { return false }
func (s *disconnectedState) onTransportEvent(stateContext, transport.Event) {}

func (s *disconnectedState) enter(ctx stateContext) {
	ctx.detachTransport()

	s.delay = ctx.nextRetryDelay()
	s.timer = ctx.newTimer()
	s.timer.Start(s.delay, func() {
		ctx.setState(newConnectingState(s.useFallback))
	})

	ctx.logger().Debug("scheduled reconnect",
		"retry_in", s.delay,
		"use_fallback", s.useFallback,
		"reason", s.err,
	)
}

func (s *disconnectedState) exit(ctx stateContext) {
	if s.timer != nil {
		s.timer.Abort()
	}
}

// connect skips the remaining backoff.
func (s *disconnectedState) connect(ctx stateContext) {
	ctx.setState(newConnectingState(s.useFallback))
}

func (s *disconnectedState) close(ctx stateContext) {
	ctx.setState(newClosedState())
}
