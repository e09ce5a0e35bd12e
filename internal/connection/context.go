package connection

import (
	"log/slog"
	"time"

	"github.com/rickgao/realtime-client/internal/protocol"
	"github.com/rickgao/realtime-client/internal/transport"
)

// Timer is a restartable one-shot delay whose callback runs on the worker.
type Timer interface {
	Start(d time.Duration, fn func())
	Abort()
}

// connectionState is one state of the machine. All methods run on the
// worker. A state that requests a transition must not act afterwards.
type connectionState interface {
	kind() State
	enter(ctx stateContext)
	exit(ctx stateContext)
	connect(ctx stateContext)
	close(ctx stateContext)
	// onMessage returns false for actions this state does not consume.
	onMessage(ctx stateContext, msg *protocol.ProtocolMessage) bool
	onTransportEvent(ctx stateContext, ev transport.Event)
	// canQueue reports whether sends are queued rather than rejected.
	canQueue() bool
	reason() *protocol.ErrorInfo
}

// stateContext is the Manager as seen by states. It is only ever called on
// the worker.
type stateContext interface {
	logger() *slog.Logger
	now() time.Time
	newTimer() Timer
	config() ManagerConfig

	// setState applies a transition, queueing it if one is in progress.
	setState(next connectionState)
	// queueTransition applies next after the current event, provided origin
	// is still the current state.
	queueTransition(origin, next connectionState)

	// transportState returns the live transport's state; ok is false when
	// there is none.
	transportState() (state transport.State, ok bool)
	// createTransport acquires credentials off the worker, then installs a
	// new transport and calls done on the worker. done is dropped if origin
	// is no longer current.
	createTransport(origin connectionState, useFallback, renewToken bool, done func(err *Error))
	connectTransport()
	sendMessage(msg *protocol.ProtocolMessage) error
	// detachTransport silences and closes the live transport.
	detachTransport()

	// probe checks reachability off the worker and calls fn on the worker if
	// origin is still current.
	probe(origin connectionState, fn func(reachable bool))

	setConnectionInfo(info ConnectionInfo, details *protocol.ConnectionDetails)
	// notifyUpdate tells observers the current state changed in place.
	notifyUpdate(reason *protocol.ErrorInfo)
	clearConnectionKey()
	clearConnection()
	setLastError(err *protocol.ErrorInfo)

	// attemptConnection starts the suspend window if it is not running.
	attemptConnection()
	resetAttempts()
	connectionEstablished()
	shouldSuspend() bool
	shouldRenewToken(err *protocol.ErrorInfo) bool
	isFallbackReason(err *protocol.ErrorInfo) bool
	nextRetryDelay() time.Duration

	flushQueue()
	failQueue(err error)
}
