// Package protocol defines the realtime wire model shared by the transport
// and the connection state machine.
//
// Only the fields the connection lifecycle needs are interpreted. Channel
// payloads (messages, presence) are carried as opaque JSON so the core never
// depends on an application-level channel protocol.
package protocol
