package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/realtime-client/internal/buffer"
	"github.com/rickgao/realtime-client/internal/connection"
)

// Event is one row of the connection_events table.
type Event struct {
	ID            uuid.UUID
	OccurredAt    time.Time
	ConnectionID  string
	PreviousState string
	CurrentState  string
	ReasonCode    *int
	ReasonStatus  *int
	ReasonMessage *string
	RetryInMs     *int64
}

// NewEvent converts a state change. connID is the connection id at the time
// of the change and may be empty.
func NewEvent(change connection.StateChange, connID string, now time.Time) Event {
	ev := Event{
		ID:            uuid.New(),
		OccurredAt:    now.UTC(),
		ConnectionID:  connID,
		PreviousState: change.Previous.String(),
		CurrentState:  change.Current.String(),
	}
	if r := change.Reason; r != nil {
		code, status, msg := r.Code, r.StatusCode, r.Message
		ev.ReasonCode = &code
		if status != 0 {
			ev.ReasonStatus = &status
		}
		if msg != "" {
			ev.ReasonMessage = &msg
		}
	}
	if change.RetryIn > 0 {
		ms := change.RetryIn.Milliseconds()
		ev.RetryInMs = &ms
	}
	return ev
}

// Source publishes state changes, such as a *connection.Manager.
type Source interface {
	Subscribe(fn func(connection.StateChange)) func()
	Snapshot() connection.Record
}

// Track queues an Event for every change src publishes until the returned
// function is called.
func Track(src Source, q *buffer.Queue[Event]) func() {
	return src.Subscribe(func(change connection.StateChange) {
		q.Push(NewEvent(change, src.Snapshot().ID, time.Now()))
	})
}
