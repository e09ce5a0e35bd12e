// Package transport provides the network link used by the connection state
// machine.
//
// A Transport is owned by exactly one connection attempt. It reports inbound
// frames and lifecycle changes to a Listener from its own goroutines; it never
// touches connection state directly. The WebSocket implementation:
//   - Dials asynchronously so Connect never blocks the caller
//   - Keeps the link alive with ping/pong and reports stale links
//   - Emits exactly one terminal Closed event unless the owner suppressed it
package transport
