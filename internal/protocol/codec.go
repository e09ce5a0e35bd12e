package protocol

import (
	"encoding/json"
	"fmt"
)

// Codec converts messages to and from transport frames.
type Codec interface {
	Encode(msg *ProtocolMessage) ([]byte, error)
	Decode(data []byte) (*ProtocolMessage, error)
	// Format is sent to the service as the "format" connect parameter.
	Format() string
}

// JSONCodec is the default text codec.
type JSONCodec struct{}

func (JSONCodec) Encode(msg *ProtocolMessage) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Action, err)
	}
	return data, nil
}

func (JSONCodec) Decode(data []byte) (*ProtocolMessage, error) {
	var msg ProtocolMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &msg, nil
}

func (JSONCodec) Format() string { return "json" }
