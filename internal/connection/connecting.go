package connection

import (
	"github.com/rickgao/realtime-client/internal/protocol"
	"github.com/rickgao/realtime-client/internal/transport"
)

// connectingState drives one connection attempt, optionally against a
// fallback host.
type connectingState struct {
	useFallback bool
	timer       Timer

	// renewAttempted is the one-shot guard for token renewal in this
	// attempt; renewing is set while the replacement transport is built.
	renewAttempted bool
	renewing       bool

	// resolving is set once the attempt has failed and the next state is
	// being decided, possibly after a reachability probe.
	resolving bool
}

func newConnectingState(useFallback bool) *connectingState {
	return &connectingState{useFallback: useFallback}
}

func (s *connectingState) kind() State { return StateConnecting }
func (s *connectingState) canQueue() bool { return true }
func (s *connectingState) reason() *protocol.ErrorInfo { return nil }
func (s *connectingState) connect(stateContext) {}

func (s *connectingState) enter(ctx stateContext) {
	s.timer = ctx.newTimer()
	ctx.attemptConnection()

	if _, ok := ctx.transportState(); ok {
		s.connectTransport(ctx)
		return
	}

	ctx.createTransport(s, s.useFallback, false, func(err *Error) {
		if err != nil {
			ctx.logger().Error("failed to create transport", "error", err)
			s.transition(ctx, newFailedState(setupFailure(err)))
			return
		}
		s.connectTransport(ctx)
	})
}

func (s *connectingState) exit(ctx stateContext) {
	s.abortTimer()
}

func (s *connectingState) abortTimer() {
	if s.timer != nil {
		s.timer.Abort()
	}
}

func (s *connectingState) close(ctx stateContext) {
	s.transition(ctx, newClosingState())
}

func (s *connectingState) onMessage(ctx stateContext, msg *protocol.ProtocolMessage) bool {
	switch msg.Action {
	case protocol.ActionConnected:
		// Guard against a Connected that raced with a transport failure.
		if st, ok := ctx.transportState(); ok && st == transport.StateConnected {
			s.transition(ctx, newConnectedState(connectionInfoFrom(msg), msg.ConnectionDetails))
		}
		return true

	case protocol.ActionDisconnected:
		if s.resolving {
			return true
		}
		if ctx.shouldSuspend() {
			s.transition(ctx, newSuspendedState(msg.Error))
			return true
		}
		if !ctx.isFallbackReason(msg.Error) {
			s.transition(ctx, newDisconnectedState(msg.Error, false))
			return true
		}
		s.resolveWithProbe(ctx, func(reachable bool) {
			s.transition(ctx, newDisconnectedState(msg.Error, reachable))
		})
		return true

	case protocol.ActionError:
		s.onError(ctx, msg.Error)
		return true
	}

	return false
}

func (s *connectingState) onError(ctx stateContext, err *protocol.ErrorInfo) {
	if s.resolving || s.renewing {
		return
	}

	if ctx.shouldRenewToken(err) && !s.renewAttempted {
		s.renewToken(ctx)
		return
	}

	if ctx.isFallbackReason(err) {
		s.resolveWithProbe(ctx, func(reachable bool) {
			if !reachable {
				s.transition(ctx, newFailedState(err))
				return
			}
			ctx.clearConnectionKey()
			s.transition(ctx, newDisconnectedState(err, true))
		})
		return
	}

	s.transition(ctx, newFailedState(err))
}

// renewToken replaces the transport with one built from a fresh token. It
// runs at most once per attempt; the old transport is detached first so its
// events can no longer reach the machine.
func (s *connectingState) renewToken(ctx stateContext) {
	s.renewAttempted = true
	s.renewing = true
	s.abortTimer()
	ctx.detachTransport()

	ctx.logger().Info("token rejected, renewing")

	ctx.createTransport(s, s.useFallback, true, func(err *Error) {
		s.renewing = false
		if err != nil {
			ctx.logger().Error("error trying to renew token", "error", err)
			s.transition(ctx, newFailedState(setupFailure(err)))
			return
		}
		s.connectTransport(ctx)
	})
}

func (s *connectingState) onTransportEvent(ctx stateContext, ev transport.Event) {
	if s.resolving || s.renewing {
		return
	}
	if ev.State != transport.StateClosed {
		return
	}

	s.abortTimer()

	if ctx.shouldSuspend() {
		s.transition(ctx, newSuspendedState(nil))
		return
	}
	if ev.Err == nil {
		s.transition(ctx, newDisconnectedState(nil, false))
		return
	}

	reason := newTransportReason(ev.Err)
	s.resolveWithProbe(ctx, func(reachable bool) {
		s.transition(ctx, newDisconnectedState(reason, reachable))
	})
}

func (s *connectingState) connectTransport(ctx stateContext) {
	if st, ok := ctx.transportState(); ok && st == transport.StateConnected {
		return
	}

	ctx.connectTransport()
	s.timer.Start(ctx.config().ConnectTimeout, func() {
		if s.resolving {
			return
		}
		ctx.logger().Warn("connect timed out", "timeout", ctx.config().ConnectTimeout)
		s.resolveWithProbe(ctx, func(reachable bool) {
			s.transition(ctx, newDisconnectedState(protocol.ReasonTimeout(), reachable))
		})
	})
}

// resolveWithProbe stops handling further failures and decides the next
// state once reachability is known.
func (s *connectingState) resolveWithProbe(ctx stateContext, next func(reachable bool)) {
	s.resolving = true
	s.abortTimer()
	ctx.probe(s, next)
}

func (s *connectingState) transition(ctx stateContext, next connectionState) {
	s.abortTimer()
	ctx.setState(next)
}

// setupFailure converts a transport setup error into the Failed reason.
func setupFailure(err *Error) *protocol.ErrorInfo {
	if err.Info != nil {
		return err.Info
	}
	info := protocol.NewErrorInfo(protocol.CodeTokenRenewalFailed, 401, "unable to obtain credentials")
	if err.Kind != KindAuth {
		info = protocol.ReasonFailed()
	}
	if err.Err != nil {
		info.Message += ": " + err.Err.Error()
	}
	return info
}
