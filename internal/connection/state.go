package connection

import "fmt"

// State is the externally visible connection state.
type State int

const (
	StateInitialized State = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateSuspended
	StateClosing
	StateClosed
	StateFailed
)

var stateNames = [...]string{
	StateInitialized:  "initialized",
	StateConnecting:   "connecting",
	StateConnected:    "connected",
	StateDisconnected: "disconnected",
	StateSuspended:    "suspended",
	StateClosing:      "closing",
	StateClosed:       "closed",
	StateFailed:       "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether the state only changes on an explicit Connect.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// AllStates lists every state in declaration order.
func AllStates() []State {
	return []State{
		StateInitialized,
		StateConnecting,
		StateConnected,
		StateDisconnected,
		StateSuspended,
		StateClosing,
		StateClosed,
		StateFailed,
	}
}
