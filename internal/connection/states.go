package connection

import (
	"github.com/rickgao/realtime-client/internal/protocol"
	"github.com/rickgao/realtime-client/internal/transport"
)

// baseState supplies the defaults shared by most states.
type baseState struct{}

func (baseState) exit(stateContext) {}
func (baseState) connect(stateContext) {}
func (baseState) close(stateContext) {}
func (baseState) onMessage(stateContext, *protocol.ProtocolMessage) bool { return false }
func (baseState) onTransportEvent(stateContext, transport.Event) {}
func (baseState) canQueue() bool { return false }
func (baseState) reason() *protocol.ErrorInfo { return nil }

// initializedState is the state before the first Connect.
type initializedState struct {
	baseState
}

func newInitializedState() *initializedState { return &initializedState{} }

func (s *initializedState) kind() State { return StateInitialized }
func (s *initializedState) enter(stateContext) {}
func (s *initializedState) canQueue() bool { return true }

func (s *initializedState) connect(ctx stateContext) {
	ctx.setState(newConnectingState(false))
}

func (s *initializedState) close(ctx stateContext) {
	ctx.setState(newClosedState())
}

// suspendedState is entered once retries have run for longer than the
// suspend timeout. Only an explicit Connect leaves it.
type suspendedState struct {
	baseState
	err *protocol.ErrorInfo
}

func newSuspendedState(err *protocol.ErrorInfo) *suspendedState {
	if err == nil {
		err = protocol.ReasonSuspended()
	}
	return &suspendedState{err: err}
}

func (s *suspendedState) kind() State { return StateSuspended }
func (s *suspendedState) reason() *protocol.ErrorInfo { return s.err }

func (s *suspendedState) enter(ctx stateContext) {
	ctx.detachTransport()
	ctx.failQueue(errorFor(s.err))
}

func (s *suspendedState) connect(ctx stateContext) {
	// A suspended session cannot be resumed.
	ctx.clearConnectionKey()
	ctx.resetAttempts()
	ctx.setState(newConnectingState(false))
}

func (s *suspendedState) close(ctx stateContext) {
	ctx.setState(newClosedState())
}

// closedState is terminal until Connect.
type closedState struct {
	baseState
}

func newClosedState() *closedState { return &closedState{} }

func (s *closedState) kind() State { return StateClosed }

func (s *closedState) enter(ctx stateContext) {
	ctx.detachTransport()
	ctx.clearConnection()
	ctx.resetAttempts()
	ctx.failQueue(errorFor(protocol.ReasonClosed()))
}

func (s *closedState) connect(ctx stateContext) {
	ctx.setLastError(nil)
	ctx.setState(newConnectingState(false))
}

// failedState is terminal until Connect and carries the failure.
type failedState struct {
	baseState
	err *protocol.ErrorInfo
}

func newFailedState(err *protocol.ErrorInfo) *failedState {
	if err == nil {
		err = protocol.ReasonFailed()
	}
	return &failedState{err: err}
}

func (s *failedState) kind() State { return StateFailed }
func (s *failedState) reason() *protocol.ErrorInfo { return s.err }

func (s *failedState) enter(ctx stateContext) {
	ctx.detachTransport()
	ctx.resetAttempts()
	ctx.setLastError(s.err)
	ctx.failQueue(errorFor(s.err))
}

func (s *failedState) connect(ctx stateContext) {
	ctx.setLastError(nil)
	ctx.setState(newConnectingState(false))
}
