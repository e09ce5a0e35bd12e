package connection

import (
	"errors"
	"net/http"
	"time"

	"github.com/rickgao/realtime-client/internal/protocol"
)

// Errors
var (
	ErrNotStarted = errors.New("connection manager not started")
	ErrStopped    = errors.New("connection manager stopped")
)

// ConnectionInfo is captured from a Connected message.
type ConnectionInfo struct {
	ID       string
	Serial   int64
	Key      string
	ClientID string
}

// connectionInfoFrom builds ConnectionInfo from a Connected message.
func connectionInfoFrom(msg *protocol.ProtocolMessage) ConnectionInfo {
	info := ConnectionInfo{
		ID:     msg.ConnectionID,
		Serial: msg.Serial(),
		Key:    msg.ConnectionKey,
	}
	if d := msg.ConnectionDetails; d != nil {
		info.ClientID = d.ClientID
		if info.Key == "" {
			info.Key = d.ConnectionKey
		}
	}
	return info
}

// Record is the connection's shared identity. The worker owns the live copy;
// everyone else reads Snapshot values.
type Record struct {
	ID        string
	Key       string
	Serial    int64
	ClientID  string
	State     State
	LastError *protocol.ErrorInfo
}

// snapshot returns a deep copy.
func (r Record) snapshot() Record {
	r.LastError = r.LastError.Clone()
	return r
}

// StateChange is delivered to observers after every transition.
type StateChange struct {
	Previous State
	Current  State
	Reason   *protocol.ErrorInfo
	RetryIn  time.Duration // set when entering Disconnected
}

// Update reports a change that kept the state, such as a repeated Connected.
func (c StateChange) Update() bool {
	return c.Previous == c.Current
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	Host          string   // Primary realtime host
	FallbackHosts []string // Alternates, shuffled once at construction
	Port          int      // 0 = scheme default
	TLS           bool
	ClientID      string
	Echo          bool
	Agent         string // Sent as the "agent" connect param

	ConnectTimeout time.Duration // Connecting -> Disconnected after this long
	CloseTimeout   time.Duration // Closing -> Closed after this long
	SuspendTimeout time.Duration // Continuous retry window before Suspended
	RetryBaseDelay time.Duration // First Disconnected retry delay
	RetryMaxDelay  time.Duration // Cap for the doubling retry delay

	FallbackStatusCodes []int // HTTP status codes that make a fallback attempt eligible

	EventBufferSize   int     // Initial capacity of the worker event queue
	InboundBufferSize int     // Initial capacity of the passthrough queue
	SendRate          float64 // Outbound messages per second (0 = unlimited)
	SendBurst         int
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		TLS:            true,
		Echo:           true,
		ConnectTimeout: 15 * time.Second,
		CloseTimeout:   10 * time.Second,
		SuspendTimeout: 2 * time.Minute,
		RetryBaseDelay: time.Second,
		RetryMaxDelay:  30 * time.Second,
		FallbackStatusCodes: []int{
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
		EventBufferSize:   256,
		InboundBufferSize: 1024,
		SendBurst:         1,
	}
}

// outboundMessage is a queued send and its completion callback.
type outboundMessage struct {
	msg  *protocol.ProtocolMessage
	done func(error)
}

func (o *outboundMessage) complete(err error) {
	if o.done != nil {
		o.done(err)
	}
}
