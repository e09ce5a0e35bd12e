// Package history records connection state changes in PostgreSQL.
//
// Track queues an Event for every change a Manager publishes; Writer drains
// the queue and inserts rows in batches. Rows carry transition metadata only,
// never the connection key.
package history
