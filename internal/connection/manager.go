package connection

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/rickgao/realtime-client/internal/auth"
	"github.com/rickgao/realtime-client/internal/buffer"
	"github.com/rickgao/realtime-client/internal/fallback"
	"github.com/rickgao/realtime-client/internal/protocol"
	"github.com/rickgao/realtime-client/internal/reachability"
	"github.com/rickgao/realtime-client/internal/timer"
	"github.com/rickgao/realtime-client/internal/transport"
)

// NetworkProber answers whether the wider network is reachable.
type NetworkProber interface {
	CanConnect(ctx context.Context) bool
}

// Manager owns one realtime connection. All state lives on a single worker
// goroutine; public methods post events to it.
type Manager struct {
	cfg      ManagerConfig
	tokens   auth.TokenProvider
	factory  transport.Factory
	selector *fallback.Selector
	prober   NetworkProber
	codec    protocol.Codec
	recorder Recorder
	log      *slog.Logger
	clock    func() time.Time
	timers   func(dispatch timer.Dispatcher) Timer
	limiter  *rate.Limiter

	events *buffer.Queue[func()]
	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started  atomic.Bool
	stopOnce sync.Once

	// Worker-owned.
	stopped       bool
	state         connectionState
	pending       []connectionState
	transitioning bool
	deferred      []func()

	transport    transport.Transport
	transportGen uint64

	record          Record
	suspendTimeout  time.Duration
	firstAttempt    time.Time
	fallbackAttempt int
	backoff         *Backoff

	outbound   *buffer.Queue[*outboundMessage]
	flushTimer Timer

	// Read from any goroutine.
	snapMu sync.RWMutex
	snap   Record

	obsMu     sync.Mutex
	observers map[int]func(StateChange)
	nextObs   int

	inbound *buffer.Queue[*protocol.ProtocolMessage]
}

var _ stateContext = (*Manager)(nil)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.log = logger
		}
	}
}

// WithCodec sets the message codec.
func WithCodec(codec protocol.Codec) Option {
	return func(m *Manager) {
		m.codec = codec
	}
}

// WithProber sets the reachability prober.
func WithProber(p NetworkProber) Option {
	return func(m *Manager) {
		m.prober = p
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		m.recorder = r
	}
}

// WithFallbackSelector overrides the host selector built from the config.
func WithFallbackSelector(s *fallback.Selector) Option {
	return func(m *Manager) {
		m.selector = s
	}
}

// WithClock sets the time source used for the suspend window.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.clock = now
	}
}

// WithTimerFactory replaces the timer implementation. Timers must run their
// callbacks through dispatch.
func WithTimerFactory(f func(dispatch timer.Dispatcher) Timer) Option {
	return func(m *Manager) {
		m.timers = f
	}
}

// NewManager creates a Connection Manager in the Initialized state.
func NewManager(cfg ManagerConfig, tokens auth.TokenProvider, factory transport.Factory, opts ...Option) *Manager {
	defaults := DefaultManagerConfig()
	if cfg.EventBufferSize <= 0 {
		cfg.EventBufferSize = defaults.EventBufferSize
	}
	if cfg.InboundBufferSize <= 0 {
		cfg.InboundBufferSize = defaults.InboundBufferSize
	}
	if cfg.SuspendTimeout <= 0 {
		cfg.SuspendTimeout = defaults.SuspendTimeout
	}

	m := &Manager{
		cfg:            cfg,
		tokens:         tokens,
		factory:        factory,
		codec:          protocol.JSONCodec{},
		recorder:       nopRecorder{},
		log:            slog.Default(),
		clock:          time.Now,
		events:         buffer.New[func()](cfg.EventBufferSize),
		state:          newInitializedState(),
		suspendTimeout: cfg.SuspendTimeout,
		backoff:        NewBackoff(cfg.RetryBaseDelay, cfg.RetryMaxDelay),
		outbound:       buffer.New[*outboundMessage](64),
		observers:      make(map[int]func(StateChange)),
		inbound:        buffer.New[*protocol.ProtocolMessage](cfg.InboundBufferSize),
		record:         Record{Serial: -1, State: StateInitialized},
	}
	m.timers = func(dispatch timer.Dispatcher) Timer { return timer.NewCountdown(dispatch) }

	for _, opt := range opts {
		opt(m)
	}

	if m.selector == nil {
		m.selector = fallback.NewSelector(cfg.Host, cfg.FallbackHosts)
	}
	if m.prober == nil {
		m.prober = reachability.NewChecker("", reachability.WithLogger(m.log))
	}
	if cfg.SendRate > 0 {
		burst := cfg.SendBurst
		if burst < 1 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(cfg.SendRate), burst)
	}

	m.runCtx, m.cancel = context.WithCancel(context.Background())
	m.flushTimer = m.newTimer()
	m.snap = m.record.snapshot()

	return m
}

// Start launches the worker. Cancelling ctx stops the Manager.
func (m *Manager) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return nil
	}

	stop := context.AfterFunc(ctx, m.cancel)

	m.wg.Add(1)
	go func() {
		defer stop()
		m.run()
	}()

	m.log.Info("connection manager started",
		"host", m.selector.Primary(),
		"fallback_hosts", m.selector.Len(),
	)
	return nil
}

// Stop shuts the worker down, detaches the transport and fails any queued
// messages with ErrStopped.
func (m *Manager) Stop(ctx context.Context) error {
	m.log.Info("stopping connection manager")

	m.stopOnce.Do(m.cancel)
	if !m.started.Load() {
		m.inbound.Close()
		return nil
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.log.Info("connection manager stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect requests a connection. It never blocks on the network.
func (m *Manager) Connect() error {
	return m.command(func() { m.state.connect(m) })
}

// Close requests a graceful close.
func (m *Manager) Close() error {
	return m.command(func() { m.state.close(m) })
}

// Send queues msg for delivery. done is called on the worker once the
// message is written or has definitively failed; it must not block.
func (m *Manager) Send(msg *protocol.ProtocolMessage, done func(error)) error {
	if !m.started.Load() {
		return ErrNotStarted
	}

	out := &outboundMessage{msg: msg, done: done}
	ok := m.post(func() {
		if m.stopped {
			out.complete(&Error{Kind: KindState, Err: ErrStopped})
			return
		}
		if !m.state.canQueue() {
			reason := m.state.reason()
			if reason == nil {
				reason = protocol.NewErrorInfo(protocol.CodeConnectionFailed, 400,
					"cannot send while "+m.state.kind().String())
			}
			m.recorder.MessageFailed()
			out.complete(errorFor(reason))
			return
		}
		m.outbound.Push(out)
		m.recorder.QueueLength(m.outbound.Len())
		if m.state.kind() == StateConnected {
			m.flushQueue()
		}
	})
	if !ok {
		return ErrStopped
	}
	return nil
}

// State returns the current state.
func (m *Manager) State() State {
	return m.Snapshot().State
}

// Snapshot returns a copy of the connection record. It is refreshed on every
// transition and whenever the connection serial advances.
func (m *Manager) Snapshot() Record {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()
	return m.snap.snapshot()
}

// Subscribe registers fn for state changes. fn runs on the worker and must
// not block; it may call Connect, Close or Send, which run after the current
// event. The returned function unregisters it.
func (m *Manager) Subscribe(fn func(StateChange)) func() {
	m.obsMu.Lock()
	id := m.nextObs
	m.nextObs++
	m.observers[id] = fn
	m.obsMu.Unlock()

	return func() {
		m.obsMu.Lock()
		delete(m.observers, id)
		m.obsMu.Unlock()
	}
}

// Messages returns inbound messages not consumed by the connection layer,
// in arrival order. The queue is closed when the Manager stops.
func (m *Manager) Messages() *buffer.Queue[*protocol.ProtocolMessage] {
	return m.inbound
}

func (m *Manager) command(fn func()) error {
	if !m.started.Load() {
		return ErrNotStarted
	}
	ok := m.post(func() {
		if !m.stopped {
			fn()
		}
	})
	if !ok {
		return ErrStopped
	}
	return nil
}

// post hands fn to the worker. It never blocks and returns false once the
// Manager stopped.
func (m *Manager) post(fn func()) bool {
	return m.events.Push(fn)
}

func (m *Manager) run() {
	defer m.wg.Done()

	for {
		fn, _ := m.events.PopContext(m.runCtx)
		if m.runCtx.Err() != nil {
			m.shutdown(fn)
			return
		}
		m.dispatch(fn)
	}
}

// dispatch runs one event, then every transition it deferred.
func (m *Manager) dispatch(fn func()) {
	fn()
	for len(m.deferred) > 0 {
		next := m.deferred[0]
		m.deferred = m.deferred[1:]
		next()
	}
}

// shutdown runs on the worker once runCtx is done. Events accepted before
// the queue closed still run, starting with pending, so every accepted send
// completes.
func (m *Manager) shutdown(pending func()) {
	m.stopped = true
	m.state.exit(m)
	m.flushTimer.Abort()
	m.detachTransport()

	m.events.Close()
	if pending != nil {
		m.dispatch(pending)
	}
	for {
		fn, ok := m.events.TryPop()
		if !ok {
			break
		}
		m.dispatch(fn)
	}

	m.failQueue(&Error{Kind: KindState, Err: ErrStopped})
	m.inbound.Close()
}

// async runs work off the worker. The continuation it returns is run on the
// worker only if origin is still the current state.
func (m *Manager) async(origin connectionState, work func(ctx context.Context) func()) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		cont := work(m.runCtx)
		if cont == nil {
			return
		}
		m.post(func() {
			if m.stopped {
				return
			}
			if m.state != origin {
				m.log.Debug("discarding stale async result",
					"origin", origin.kind(),
					"current", m.state.kind(),
				)
				return
			}
			cont()
		})
	}()
}

// setState applies transitions in request order. A transition requested
// while another is in progress runs after it completes.
func (m *Manager) setState(next connectionState) {
	m.pending = append(m.pending, next)
	if m.transitioning {
		return
	}

	m.transitioning = true
	defer func() { m.transitioning = false }()

	for len(m.pending) > 0 {
		next := m.pending[0]
		m.pending = m.pending[1:]
		m.transition(next)
	}
}

func (m *Manager) transition(next connectionState) {
	prev := m.state
	prev.exit(m)
	m.state = next
	m.record.State = next.kind()
	if reason := next.reason(); reason != nil {
		m.record.LastError = reason
	}
	next.enter(m)

	m.recorder.StateChanged(prev.kind(), next.kind())
	m.log.Debug("connection state changed",
		"from", prev.kind(),
		"to", next.kind(),
		"reason", next.reason(),
	)

	change := StateChange{
		Previous: prev.kind(),
		Current:  next.kind(),
		Reason:   next.reason().Clone(),
	}
	if d, ok := next.(interface{ retryIn() time.Duration }); ok {
		change.RetryIn = d.retryIn()
	}
	m.publish(change)
}

// publish refreshes the snapshot and notifies observers.
func (m *Manager) publish(change StateChange) {
	m.refreshSnapshot()

	m.obsMu.Lock()
	ids := make([]int, 0, len(m.observers))
	for id := range m.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(StateChange), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.observers[id])
	}
	m.obsMu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}

func (m *Manager) refreshSnapshot() {
	m.snapMu.Lock()
	m.snap = m.record.snapshot()
	m.snapMu.Unlock()
}

// stateContext implementation.

func (m *Manager) logger() *slog.Logger { return m.log }
func (m *Manager) now() time.Time { return m.clock() }
func (m *Manager) config() ManagerConfig { return m.cfg }

func (m *Manager) newTimer() Timer {
	return m.timers(func(fn func()) { m.post(fn) })
}

func (m *Manager) queueTransition(origin, next connectionState) {
	m.deferred = append(m.deferred, func() {
		if m.state == origin {
			m.setState(next)
		}
	})
}

func (m *Manager) probe(origin connectionState, fn func(reachable bool)) {
	m.async(origin, func(ctx context.Context) func() {
		reachable := m.prober.CanConnect(ctx)
		return func() { fn(reachable) }
	})
}

func (m *Manager) setConnectionInfo(info ConnectionInfo, details *protocol.ConnectionDetails) {
	m.record.ID = info.ID
	m.record.Key = info.Key
	m.record.Serial = info.Serial
	m.record.ClientID = info.ClientID

	if ttl := details.StateTTL(); ttl > 0 {
		m.suspendTimeout = ttl
	}

	m.log.Info("connection established",
		"connection_id", info.ID,
		"serial", info.Serial,
		"client_id", info.ClientID,
	)
}

func (m *Manager) notifyUpdate(reason *protocol.ErrorInfo) {
	kind := m.state.kind()
	m.publish(StateChange{Previous: kind, Current: kind, Reason: reason.Clone()})
}

func (m *Manager) clearConnectionKey() {
	m.record.Key = ""
}

func (m *Manager) clearConnection() {
	m.record.ID = ""
	m.record.Key = ""
	m.record.Serial = -1
}

func (m *Manager) setLastError(err *protocol.ErrorInfo) {
	m.record.LastError = err
}

func (m *Manager) attemptConnection() {
	if m.firstAttempt.IsZero() {
		m.firstAttempt = m.now()
	}
}

func (m *Manager) resetAttempts() {
	m.firstAttempt = time.Time{}
	m.fallbackAttempt = 0
	m.backoff.Reset()
}

func (m *Manager) connectionEstablished() {
	m.resetAttempts()
}

func (m *Manager) shouldSuspend() bool {
	return !m.firstAttempt.IsZero() && m.now().Sub(m.firstAttempt) >= m.suspendTimeout
}

func (m *Manager) shouldRenewToken(err *protocol.ErrorInfo) bool {
	return err.IsTokenError()
}

func (m *Manager) isFallbackReason(err *protocol.ErrorInfo) bool {
	if err == nil || err.StatusCode == 0 {
		return false
	}
	return slices.Contains(m.cfg.FallbackStatusCodes, err.StatusCode)
}

func (m *Manager) nextRetryDelay() time.Duration {
	return m.backoff.Next()
}
