package connection

import (
	"context"
	"fmt"

	"github.com/rickgao/realtime-client/internal/auth"
	"github.com/rickgao/realtime-client/internal/protocol"
	"github.com/rickgao/realtime-client/internal/transport"
)

// transportListener forwards callbacks from one transport generation to the
// worker.
type transportListener struct {
	m   *Manager
	gen uint64
}

func (l *transportListener) OnDataReceived(data []byte) {
	l.m.post(func() { l.m.onTransportData(l.gen, data) })
}

func (l *transportListener) OnStateChanged(ev transport.Event) {
	l.m.post(func() { l.m.onTransportEvent(l.gen, ev) })
}

func (m *Manager) transportState() (transport.State, bool) {
	if m.transport == nil {
		return transport.StateClosed, false
	}
	return m.transport.State(), true
}

func (m *Manager) createTransport(origin connectionState, useFallback, renewToken bool, done func(err *Error)) {
	host := m.selector.Primary()
	if useFallback {
		// A renewal retries the host that rejected the token.
		if !renewToken || m.fallbackAttempt == 0 {
			m.fallbackAttempt++
			m.recorder.FallbackAttempt(m.selector.Host(m.fallbackAttempt))
		}
		host = m.selector.Host(m.fallbackAttempt)
	}

	params := transport.NewParams(host)
	params.Port = m.cfg.Port
	params.TLS = m.cfg.TLS
	params.ClientID = m.cfg.ClientID
	params.Echo = m.cfg.Echo
	params.Agent = m.cfg.Agent
	params.Format = m.codec.Format()
	params.ResumeKey = m.record.Key
	if params.ResumeKey != "" {
		params.ConnectionSerial = m.record.Serial
	}

	m.async(origin, func(ctx context.Context) func() {
		var (
			token string
			err   error
		)
		switch {
		case m.tokens == nil && renewToken:
			err = auth.ErrCannotRenew
		case m.tokens == nil:
			// Unauthenticated endpoint.
		case renewToken:
			token, err = m.tokens.RenewToken(ctx)
		default:
			token, err = m.tokens.Token(ctx)
		}

		return func() {
			if renewToken {
				m.recorder.TokenRenewal(err == nil)
			}
			if err != nil {
				done(&Error{Kind: KindAuth, Err: err})
				return
			}
			params.AccessToken = token
			if err := m.installTransport(params); err != nil {
				done(err)
				return
			}
			done(nil)
		}
	})
}

// installTransport replaces the live transport with a new one for params.
func (m *Manager) installTransport(params transport.Params) *Error {
	m.detachTransport()

	m.transportGen++
	listener := &transportListener{m: m, gen: m.transportGen}

	t, err := m.factory.New(params, listener)
	if err != nil {
		return &Error{Kind: KindTransport, Err: fmt.Errorf("create transport for %s: %w", params.Host, err)}
	}
	m.transport = t

	m.log.Debug("transport created",
		"transport_id", t.ID(),
		"host", params.Host,
		"generation", m.transportGen,
		"resume", params.ResumeKey != "",
	)
	return nil
}

func (m *Manager) connectTransport() {
	if m.transport != nil {
		m.transport.Connect()
	}
}

func (m *Manager) sendMessage(msg *protocol.ProtocolMessage) error {
	if m.transport == nil {
		return transport.ErrNotConnected
	}
	data, err := m.codec.Encode(msg)
	if err != nil {
		return err
	}
	return m.transport.Send(data)
}

// detachTransport bumps the generation before closing so nothing the old
// transport emits can reach the states.
func (m *Manager) detachTransport() {
	if m.transport == nil {
		return
	}
	t := m.transport
	m.transport = nil
	m.transportGen++

	m.log.Debug("transport detached", "transport_id", t.ID())
	t.Close(true)
}

func (m *Manager) onTransportData(gen uint64, data []byte) {
	if gen != m.transportGen {
		return
	}

	msg, err := m.codec.Decode(data)
	if err != nil {
		m.log.Warn("dropping undecodable message", "error", err, "size", len(data))
		return
	}
	m.recorder.MessageReceived(msg.Action)

	if msg.HasSerial() && m.state.kind() == StateConnected && msg.Serial() > m.record.Serial {
		m.record.Serial = msg.Serial()
		m.refreshSnapshot()
	}

	if !m.state.onMessage(m, msg) {
		m.inbound.Push(msg)
	}
}

func (m *Manager) onTransportEvent(gen uint64, ev transport.Event) {
	if gen != m.transportGen {
		m.log.Debug("ignoring stale transport event", "state", ev.State)
		return
	}

	if ev.State == transport.StateClosed {
		// The transport is finished; a later attempt must build a new one.
		m.transport = nil
		m.transportGen++
		if ev.Err != nil {
			m.log.Warn("transport failed", "error", ev.Err)
		}
	}

	m.state.onTransportEvent(m, ev)
}
