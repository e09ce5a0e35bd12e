package connection

import "github.com/rickgao/realtime-client/internal/protocol"

// Recorder receives connection metrics. Calls are made on the worker.
type Recorder interface {
	StateChanged(from, to State)
	QueueLength(n int)
	MessageSent()
	MessageReceived(action protocol.Action)
	MessageFailed()
	FallbackAttempt(host string)
	TokenRenewal(ok bool)
}

type nopRecorder struct{}

func (nopRecorder) StateChanged(from, to State) {}
func (nopRecorder) QueueLength(n int) {}
func (nopRecorder) MessageSent() {}
func (nopRecorder) MessageReceived(protocol.Action) {}
func (nopRecorder) MessageFailed() {}
func (nopRecorder) FallbackAttempt(host string) {}
func (nopRecorder) TokenRenewal(ok bool) {}
