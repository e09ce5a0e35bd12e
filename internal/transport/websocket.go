package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocketConfig configures WebSocket transports.
type WebSocketConfig struct {
	HandshakeTimeout time.Duration // Dial + upgrade deadline
	WriteTimeout     time.Duration // Write deadline for sends
	PingInterval     time.Duration // How often we ping the server
	PingTimeout      time.Duration // Max time without ping/pong before considering link stale
	ReadLimit        int64         // Max inbound frame size (0 = unlimited)
	Header           http.Header   // Extra handshake headers
}

// DefaultWebSocketConfig returns sensible defaults.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		HandshakeTimeout: 15 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     15 * time.Second,
		PingTimeout:      45 * time.Second,
		ReadLimit:        1 << 20,
	}
}

// WebSocketFactory creates WebSocket transports.
type WebSocketFactory struct {
	cfg    WebSocketConfig
	logger *slog.Logger
}

// NewWebSocketFactory creates a factory. A nil logger uses slog.Default().
func NewWebSocketFactory(cfg WebSocketConfig, logger *slog.Logger) *WebSocketFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketFactory{cfg: cfg, logger: logger}
}

// New creates an unconnected transport for params.
func (f *WebSocketFactory) New(params Params, listener Listener) (Transport, error) {
	if params.Host == "" {
		return nil, fmt.Errorf("new transport: empty host")
	}
	if listener == nil {
		return nil, fmt.Errorf("new transport: nil listener")
	}
	return newWebSocket(f.cfg, params, listener, f.logger), nil
}

// webSocket implements Transport over gorilla/websocket.
type webSocket struct {
	id       string
	cfg      WebSocketConfig
	params   Params
	listener Listener
	logger   *slog.Logger

	conn     *websocket.Conn
	done     chan struct{}
	doneOnce sync.Once
	cancel   context.CancelFunc

	// Write serialization
	writeMu sync.Mutex

	// Listener serialization
	emitMu sync.Mutex

	// State
	mu         sync.RWMutex
	state      State
	suppressed bool
	terminated bool
	lastPingAt time.Time
}

func newWebSocket(cfg WebSocketConfig, params Params, listener Listener, logger *slog.Logger) *webSocket {
	id := uuid.NewString()
	return &webSocket{
		id:       id,
		cfg:      cfg,
		params:   params,
		listener: listener,
		logger:   logger.With("transport_id", id, "host", params.Host),
		done:     make(chan struct{}),
		state:    StateInitialized,
	}
}

func (w *webSocket) ID() string { return w.id }
func (w *webSocket) Host() string { return w.params.Host }

func (w *webSocket) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// Connect dials in the background.
func (w *webSocket) Connect() {
	w.mu.Lock()
	if w.state != StateInitialized {
		w.mu.Unlock()
		return
	}
	w.state = StateConnecting
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.mu.Unlock()

	go w.dial(ctx)
}

func (w *webSocket) dial(ctx context.Context) {
	header := http.Header{}
	for k, v := range w.cfg.Header {
		header[k] = v
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: w.cfg.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}

	conn, resp, err := dialer.DialContext(ctx, w.params.URL(), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		w.logger.Debug("websocket dial failed", "error", err)
		w.terminate(fmt.Errorf("dial %s: %w", w.params.Host, err))
		return
	}

	if w.cfg.ReadLimit > 0 {
		conn.SetReadLimit(w.cfg.ReadLimit)
	}

	// Server sends ping, we respond with pong
	conn.SetPingHandler(func(data string) error {
		w.touch()
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	// Server responds to our ping
	conn.SetPongHandler(func(data string) error {
		w.touch()
		return nil
	})

	// State change and event are published together so a concurrent Close
	// can never emit Closed ahead of Connected.
	w.emitMu.Lock()
	w.mu.Lock()
	if w.state != StateConnecting {
		// Closed while dialing.
		w.mu.Unlock()
		w.emitMu.Unlock()
		conn.Close()
		return
	}
	w.conn = conn
	w.state = StateConnected
	w.lastPingAt = time.Now()
	suppressed := w.suppressed
	w.mu.Unlock()
	if !suppressed {
		w.listener.OnStateChanged(Event{State: StateConnected})
	}
	w.emitMu.Unlock()

	w.logger.Debug("websocket connected")

	go w.readLoop()
	if w.cfg.PingInterval > 0 {
		go w.heartbeatLoop()
	}
}

// Send writes one text frame.
func (w *webSocket) Send(data []byte) error {
	w.mu.RLock()
	if w.state != StateConnected {
		w.mu.RUnlock()
		return ErrNotConnected
	}
	conn := w.conn
	w.mu.RUnlock()

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if w.cfg.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(w.cfg.WriteTimeout))
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Close gracefully closes the link.
func (w *webSocket) Close(suppressClosedEvent bool) {
	w.mu.Lock()
	if suppressClosedEvent {
		w.suppressed = true
	}
	if w.state == StateClosing || w.state == StateClosed {
		w.mu.Unlock()
		return
	}
	w.state = StateClosing
	conn := w.conn
	cancel := w.cancel
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.closeDone()

	if conn != nil {
		w.writeMu.Lock()
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		w.writeMu.Unlock()
		conn.Close()
	}

	w.terminate(nil)
}

func (w *webSocket) touch() {
	w.mu.Lock()
	w.lastPingAt = time.Now()
	w.mu.Unlock()
}

// readLoop delivers frames until the link fails or is closed.
func (w *webSocket) readLoop() {
	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			// Ignore errors after Close() is called
			select {
			case <-w.done:
				return
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				w.logger.Debug("websocket closed by server", "error", err)
			} else {
				w.logger.Warn("websocket read failed", "error", err)
			}
			w.conn.Close()
			w.terminate(err)
			return
		}

		w.emitData(data)
	}
}

// heartbeatLoop pings the server and reports stale links.
func (w *webSocket) heartbeatLoop() {
	ticker := time.NewTicker(w.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(w.cfg.WriteTimeout)
			w.writeMu.Lock()
			err := w.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline)
			w.writeMu.Unlock()
			if err != nil {
				w.logger.Debug("failed to send ping", "error", err)
			}

			w.mu.RLock()
			lastPing := w.lastPingAt
			w.mu.RUnlock()

			if w.cfg.PingTimeout > 0 && time.Since(lastPing) > w.cfg.PingTimeout {
				w.logger.Warn("no pong received, transport stale",
					"last_ping", lastPing,
					"timeout", w.cfg.PingTimeout,
				)
				w.conn.Close()
				w.terminate(ErrStaleConnection)
				return
			}
		}
	}
}

// terminate moves to Closed and emits the terminal event once.
func (w *webSocket) terminate(err error) {
	w.mu.Lock()
	if w.terminated {
		w.mu.Unlock()
		return
	}
	w.terminated = true
	w.state = StateClosed
	suppressed := w.suppressed
	w.mu.Unlock()

	w.closeDone()
	if suppressed {
		return
	}
	w.emitState(Event{State: StateClosed, Err: err})
}

func (w *webSocket) closeDone() {
	w.doneOnce.Do(func() { close(w.done) })
}

func (w *webSocket) isSuppressed() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.suppressed
}

func (w *webSocket) emitState(ev Event) {
	if w.isSuppressed() {
		return
	}
	w.emitMu.Lock()
	defer w.emitMu.Unlock()
	if w.isSuppressed() {
		return
	}
	w.listener.OnStateChanged(ev)
}

func (w *webSocket) emitData(data []byte) {
	w.emitMu.Lock()
	defer w.emitMu.Unlock()
	if w.isSuppressed() {
		return
	}
	w.listener.OnDataReceived(data)
}
