package connection

import (
	"github.com/rickgao/realtime-client/internal/protocol"
	"github.com/rickgao/realtime-client/internal/transport"
)

// closingState asks the service to end the session and waits briefly for
// confirmation. Closing is never retried.
type closingState struct {
	timer Timer
}

func newClosingState() *closingState { return &closingState{} }

func (s *closingState) kind() State { return StateClosing }
func (s *closingState) canQueue() bool { return false }
func (s *closingState) reason() *protocol.ErrorInfo { return nil }
func (s *closingState) close(stateContext) {}

func (s *closingState) enter(ctx stateContext) {
	s.timer = ctx.newTimer()

	st, ok := ctx.transportState()
	if !ok || st != transport.StateConnected {
		ctx.setState(newClosedState())
		return
	}

	if err := ctx.sendMessage(protocol.NewMessage(protocol.ActionClose)); err != nil {
		ctx.logger().Warn("failed to send close", "error", err)
		ctx.setState(newClosedState())
		return
	}

	s.timer.Start(ctx.config().CloseTimeout, func() {
		ctx.logger().Warn("close timed out", "timeout", ctx.config().CloseTimeout)
		ctx.setState(newClosedState())
	})
}

func (s *closingState) exit(ctx stateContext) {
	if s.timer != nil {
		s.timer.Abort()
	}
}

// connect abandons the close and starts a fresh attempt.
func (s *closingState) connect(ctx stateContext) {
	ctx.detachTransport()
	ctx.setState(newConnectingState(false))
}

func (s *closingState) onMessage(ctx stateContext, msg *protocol.ProtocolMessage) bool {
	switch msg.Action {
	case protocol.ActionClosed, protocol.ActionDisconnected, protocol.ActionError:
		ctx.setState(newClosedState())
		return true
	}
	return false
}

func (s *closingState) onTransportEvent(ctx stateContext, ev transport.Event) {
	if ev.State == transport.StateClosed {
		ctx.setState(newClosedState())
	}
}
