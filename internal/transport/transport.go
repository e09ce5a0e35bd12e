package transport

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Errors
var (
	ErrNotConnected    = errors.New("transport not connected")
	ErrStaleConnection = errors.New("transport stale (no pong)")
	ErrAlreadyClosed   = errors.New("transport already closed")
)

// State is the lifecycle state of a single transport.
type State int

const (
	StateInitialized State = iota
	StateConnecting
	StateConnected
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("transport_state(%d)", int(s))
	}
}

// Event is a transport lifecycle notification. A Closed event with a non-nil
// Err means the link failed rather than closing cleanly.
type Event struct {
	State State
	Err   error
}

// Failed reports whether the event is an abnormal termination.
func (e Event) Failed() bool {
	return e.State == StateClosed && e.Err != nil
}

// Listener receives transport callbacks. Calls for one transport are
// serialized; implementations must not block for long.
type Listener interface {
	OnDataReceived(data []byte)
	OnStateChanged(ev Event)
}

// Transport is a single network link to the realtime service.
type Transport interface {
	// ID uniquely identifies this transport instance.
	ID() string

	// Host is the host this transport targets.
	Host() string

	// State returns the current lifecycle state.
	State() State

	// Connect starts connecting in the background and returns immediately.
	Connect()

	// Send writes a frame. It fails unless the transport is connected.
	Send(data []byte) error

	// Close shuts the link down. With suppressClosedEvent the listener
	// receives no further callbacks.
	Close(suppressClosedEvent bool)
}

// Factory creates transports.
type Factory interface {
	New(params Params, listener Listener) (Transport, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(params Params, listener Listener) (Transport, error)

func (f FactoryFunc) New(params Params, listener Listener) (Transport, error) {
	return f(params, listener)
}

// Params describes one connection attempt.
type Params struct {
	Host             string
	Port             int
	TLS              bool
	Path             string
	AccessToken      string
	ResumeKey        string
	ConnectionSerial int64 // -1 when unknown
	ClientID         string
	Format           string
	Echo             bool
	Heartbeats       bool
	Agent            string
	RequestID        string
	ProtocolVersion  string
	ConnectTimeout   time.Duration
}

// NewParams returns params for host with a fresh request id.
func NewParams(host string) Params {
	return Params{
		Host:             host,
		TLS:              true,
		Path:             "/",
		ConnectionSerial: -1,
		Format:           "json",
		Echo:             true,
		Heartbeats:       true,
		RequestID:        uuid.NewString(),
		ProtocolVersion:  "1.2",
	}
}

// URL builds the WebSocket URL including connect query parameters.
func (p Params) URL() string {
	scheme := "ws"
	if p.TLS {
		scheme = "wss"
	}

	host := p.Host
	if p.Port > 0 {
		host = net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
	}

	path := p.Path
	if path == "" {
		path = "/"
	}

	q := url.Values{}
	if p.AccessToken != "" {
		q.Set("access_token", p.AccessToken)
	}
	if p.Format != "" {
		q.Set("format", p.Format)
	}
	q.Set("echo", strconv.FormatBool(p.Echo))
	q.Set("heartbeats", strconv.FormatBool(p.Heartbeats))
	if p.ProtocolVersion != "" {
		q.Set("v", p.ProtocolVersion)
	}
	if p.ResumeKey != "" {
		q.Set("resume", p.ResumeKey)
		if p.ConnectionSerial >= 0 {
			q.Set("connectionSerial", strconv.FormatInt(p.ConnectionSerial, 10))
		}
	}
	if p.ClientID != "" {
		q.Set("clientId", p.ClientID)
	}
	if p.RequestID != "" {
		q.Set("request_id", p.RequestID)
	}
	if p.Agent != "" {
		q.Set("agent", p.Agent)
	}

	u := url.URL{Scheme: scheme, Host: host, Path: path, RawQuery: q.Encode()}
	return u.String()
}
