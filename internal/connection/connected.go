package connection

import (
	"github.com/rickgao/realtime-client/internal/protocol"
	"github.com/rickgao/realtime-client/internal/transport"
)

// connectedState holds the identity the service assigned to this session.
type connectedState struct {
	info    ConnectionInfo
	details *protocol.ConnectionDetails

	closeRequested bool
}

func newConnectedState(info ConnectionInfo, details *protocol.ConnectionDetails) *connectedState {
	return &connectedState{info: info, details: details}
}

func (s *connectedState) kind() State { return StateConnected }
func (s *connectedState) canQueue() bool { return true }
func (s *connectedState) reason() *protocol.ErrorInfo { return nil }
func (s *connectedState) exit(stateContext) {}
func (s *connectedState) connect(stateContext) {}

func (s *connectedState) enter(ctx stateContext) {
	ctx.setConnectionInfo(s.info, s.details)
	ctx.connectionEstablished()
	ctx.flushQueue()
}

func (s *connectedState) close(ctx stateContext) {
	if s.closeRequested {
		return
	}
	s.closeRequested = true
	ctx.queueTransition(s, newClosingState())
}

// onMessage consumes connection-level actions only. Transitions are queued
// so sends already in flight for this event complete first.
func (s *connectedState) onMessage(ctx stateContext, msg *protocol.ProtocolMessage) bool {
	switch msg.Action {
	case protocol.ActionConnected:
		// Same session, refreshed identity.
		s.info = connectionInfoFrom(msg)
		if msg.ConnectionDetails != nil {
			s.details = msg.ConnectionDetails
		}
		ctx.setConnectionInfo(s.info, s.details)
		ctx.notifyUpdate(msg.Error)
		return true

	case protocol.ActionDisconnected:
		ctx.queueTransition(s, newDisconnectedState(msg.Error, false))
		return true

	case protocol.ActionError:
		ctx.queueTransition(s, newFailedState(msg.Error))
		return true

	case protocol.ActionClose, protocol.ActionClosed:
		ctx.queueTransition(s, newClosedState())
		return true
	}

	return false
}

func (s *connectedState) onTransportEvent(ctx stateContext, ev transport.Event) {
	if ev.State != transport.StateClosed {
		return
	}

	reason := protocol.ReasonDisconnected()
	if ev.Err != nil {
		reason = newTransportReason(ev.Err)
	}
	ctx.setState(newDisconnectedState(reason, false))
}
