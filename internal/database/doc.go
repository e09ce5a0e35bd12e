// Package database opens the PostgreSQL pool that stores connection state
// history.
package database
