package protocol

import (
	"testing"
)

func TestJSONCodec_DecodeConnected(t *testing.T) {
	raw := []byte(`{"action":4,"connectionId":"abc","connectionKey":"key-1","connectionSerial":12,
		"connectionDetails":{"clientId":"c1","connectionStateTtl":120000}}`)

	msg, err := JSONCodec{}.Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if msg.Action != ActionConnected {
		t.Errorf("Action = %v, want %v", msg.Action, ActionConnected)
	}
	if msg.ConnectionID != "abc" {
		t.Errorf("ConnectionID = %q, want %q", msg.ConnectionID, "abc")
	}
	if got := msg.Serial(); got != 12 {
		t.Errorf("Serial() = %d, want 12", got)
	}
	if got := msg.ConnectionDetails.StateTTL().Minutes(); got != 2 {
		t.Errorf("StateTTL = %v minutes, want 2", got)
	}
}

func TestJSONCodec_DecodeInvalid(t *testing.T) {
	if _, err := (JSONCodec{}).Decode([]byte("{not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestProtocolMessage_SerialAbsent(t *testing.T) {
	msg := NewMessage(ActionHeartbeat)
	if msg.HasSerial() {
		t.Error("expected HasSerial false")
	}
	if got := msg.Serial(); got != -1 {
		t.Errorf("Serial() = %d, want -1", got)
	}
}

func TestAction_String(t *testing.T) {
	tests := []struct {
		action Action
		want   string
	}{
		{ActionConnected, "connected"},
		{ActionError, "error"},
		{ActionAuth, "auth"},
		{Action(99), "action(99)"},
	}

	for _, tt := range tests {
		if got := tt.action.String(); got != tt.want {
			t.Errorf("Action(%d).String() = %q, want %q", int(tt.action), got, tt.want)
		}
	}
}

func TestErrorInfo_IsTokenError(t *testing.T) {
	tests := []struct {
		name string
		err  *ErrorInfo
		want bool
	}{
		{"nil", nil, false},
		{"lower bound", NewErrorInfo(40140, 401, ""), true},
		{"upper bound", NewErrorInfo(40149, 401, ""), true},
		{"below range", NewErrorInfo(40139, 401, ""), false},
		{"above range", NewErrorInfo(40150, 401, ""), false},
		{"server error", NewErrorInfo(50000, 500, ""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.IsTokenError(); got != tt.want {
				t.Errorf("IsTokenError() = %v, want %v", got, tt.want)
			}
		})
	}
}
