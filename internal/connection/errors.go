package connection

import (
	"fmt"

	"github.com/rickgao/realtime-client/internal/protocol"
)

// Kind classifies connection errors.
type Kind int

const (
	KindTransport Kind = iota + 1
	KindProtocol
	KindTimeout
	KindAuth
	KindConfiguration
	KindState
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindTimeout:
		return "timeout"
	case KindAuth:
		return "auth"
	case KindConfiguration:
		return "configuration"
	case KindState:
		return "state"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned to send callbacks and by constructors.
type Error struct {
	Kind Kind
	Info *protocol.ErrorInfo
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Info != nil && e.Err != nil:
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Info.Message, e.Err)
	case e.Info != nil:
		return fmt.Sprintf("%s error: %s", e.Kind, e.Info)
	case e.Err != nil:
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	default:
		return e.Kind.String() + " error"
	}
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	if e.Info != nil {
		return e.Info
	}
	return nil
}

// Is matches another *Error of the same Kind. A target with Info also has
// to match the code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Info == nil || (e.Info != nil && t.Info.Code == e.Info.Code)
}

// errorFor classifies a protocol error.
func errorFor(info *protocol.ErrorInfo) *Error {
	kind := KindProtocol
	switch {
	case info == nil:
		kind = KindState
	case info.IsTokenError(), info.Code == protocol.CodeTokenRenewalFailed:
		kind = KindAuth
	case info.Code == protocol.CodeTimeout:
		kind = KindTimeout
	case info.Code == protocol.CodeDisconnected, info.Code == protocol.CodeConnectionSuspended:
		kind = KindTransport
	case info.Code == protocol.CodeConnectionClosed, info.Code == protocol.CodeConnectionFailed:
		kind = KindState
	}
	return &Error{Kind: kind, Info: info}
}
