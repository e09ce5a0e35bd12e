package history

import (
	"context"
	"fmt"
)

// Schema creates the connection_events table.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS connection_events (
		id             UUID PRIMARY KEY,
		occurred_at    TIMESTAMPTZ NOT NULL,
		connection_id  TEXT NOT NULL DEFAULT '',
		previous_state TEXT NOT NULL,
		current_state  TEXT NOT NULL,
		reason_code    INTEGER,
		reason_status  INTEGER,
		reason_message TEXT,
		retry_in_ms    BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS connection_events_occurred_at_idx
		ON connection_events (occurred_at DESC)`,
}

// EnsureSchema applies Schema. Every statement is idempotent.
func EnsureSchema(ctx context.Context, db DB) error {
	for i, stmt := range Schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
