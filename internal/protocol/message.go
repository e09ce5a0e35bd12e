package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// ProtocolMessage is a single frame exchanged with the realtime service.
type ProtocolMessage struct {
	Action            Action             `json:"action"`
	ID                string             `json:"id,omitempty"`
	Channel           string             `json:"channel,omitempty"`
	ConnectionID      string             `json:"connectionId,omitempty"`
	ConnectionKey     string             `json:"connectionKey,omitempty"`
	ConnectionSerial  *int64             `json:"connectionSerial,omitempty"`
	MsgSerial         int64              `json:"msgSerial,omitempty"`
	Count             int                `json:"count,omitempty"`
	Timestamp         int64              `json:"timestamp,omitempty"` // unix millis
	Error             *ErrorInfo         `json:"error,omitempty"`
	ConnectionDetails *ConnectionDetails `json:"connectionDetails,omitempty"`
	Messages          json.RawMessage    `json:"messages,omitempty"`
	Presence          json.RawMessage    `json:"presence,omitempty"`
}

// ConnectionDetails is sent by the service with a Connected message.
type ConnectionDetails struct {
	ClientID           string `json:"clientId,omitempty"`
	ConnectionKey      string `json:"connectionKey,omitempty"`
	ConnectionStateTTL int64  `json:"connectionStateTtl,omitempty"` // millis
	MaxIdleInterval    int64  `json:"maxIdleInterval,omitempty"`    // millis
	MaxMessageSize     int    `json:"maxMessageSize,omitempty"`
}

// StateTTL returns ConnectionStateTTL as a duration.
func (d *ConnectionDetails) StateTTL() time.Duration {
	if d == nil {
		return 0
	}
	return time.Duration(d.ConnectionStateTTL) * time.Millisecond
}

// NewMessage returns a message with the given action.
func NewMessage(action Action) *ProtocolMessage {
	return &ProtocolMessage{Action: action}
}

// HasSerial reports whether the message carries a connection serial.
func (m *ProtocolMessage) HasSerial() bool {
	return m.ConnectionSerial != nil
}

// Serial returns the connection serial, or -1 when absent.
func (m *ProtocolMessage) Serial() int64 {
	if m.ConnectionSerial == nil {
		return -1
	}
	return *m.ConnectionSerial
}

func (m *ProtocolMessage) String() string {
	if m.Error != nil {
		return fmt.Sprintf("%s(error=%s)", m.Action, m.Error)
	}
	if m.Channel != "" {
		return fmt.Sprintf("%s(channel=%s)", m.Action, m.Channel)
	}
	return m.Action.String()
}
