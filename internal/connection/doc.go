// Package connection implements the realtime connection state machine.
//
// The Manager owns one logical connection to the realtime service:
//   - A single worker goroutine applies every state transition
//   - Transport callbacks, timers and public commands are posted to it as events
//   - Each transport attempt carries a generation; events from replaced
//     transports are discarded
//   - Outbound messages queue across reconnects and flush in order once connected
//
// States are values implementing connectionState, one type per state. They
// reach the Manager only through the stateContext interface so each state's
// rules can be tested in isolation.
package connection
