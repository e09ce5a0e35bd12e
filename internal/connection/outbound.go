package connection

import "github.com/rickgao/realtime-client/internal/protocol"

// flushQueue sends queued messages in order while connected. A failed write
// leaves the message at the head and drops the connection; rate limiting
// postpones the rest of the queue.
func (m *Manager) flushQueue() {
	for m.state.kind() == StateConnected {
		out, ok := m.outbound.Peek()
		if !ok {
			break
		}

		if m.limiter != nil {
			r := m.limiter.ReserveN(m.now(), 1)
			if d := r.DelayFrom(m.now()); d > 0 {
				r.CancelAt(m.now())
				m.flushTimer.Start(d, m.flushQueue)
				break
			}
		}

		data, err := m.codec.Encode(out.msg)
		if err != nil {
			m.outbound.TryPop()
			m.recorder.MessageFailed()
			out.complete(&Error{Kind: KindProtocol, Err: err})
			continue
		}

		if m.transport == nil {
			break
		}
		if err := m.transport.Send(data); err != nil {
			m.log.Warn("send failed, dropping connection", "error", err, "queued", m.outbound.Len())
			reason := newTransportReason(err)
			m.setState(newDisconnectedState(reason, false))
			break
		}

		m.outbound.TryPop()
		m.recorder.MessageSent()
		out.complete(nil)
	}

	m.recorder.QueueLength(m.outbound.Len())
}

// failQueue resolves every queued message with err.
func (m *Manager) failQueue(err error) {
	failed := m.outbound.Drain(0)
	if len(failed) == 0 {
		return
	}

	m.log.Debug("failing queued messages", "count", len(failed), "error", err)
	for _, out := range failed {
		m.recorder.MessageFailed()
		out.complete(err)
	}
	m.recorder.QueueLength(0)
}

// newTransportReason wraps a transport error as a Disconnected reason.
func newTransportReason(err error) *protocol.ErrorInfo {
	reason := protocol.ReasonDisconnected()
	reason.Message = err.Error()
	return reason
}
