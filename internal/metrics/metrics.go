package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/realtime-client/internal/connection"
	"github.com/rickgao/realtime-client/internal/protocol"
)

const namespace = "realtime"

// Recorder implements connection.Recorder on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	connectionState  *prometheus.GaugeVec
	transitions      *prometheus.CounterVec
	queueLength      prometheus.Gauge
	messagesSent     prometheus.Counter
	messagesReceived *prometheus.CounterVec
	messagesFailed   prometheus.Counter
	fallbackAttempts *prometheus.CounterVec
	tokenRenewals    *prometheus.CounterVec
}

var _ connection.Recorder = (*Recorder)(nil)

// New creates a Recorder. The registry also carries the Go runtime and
// process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		connectionState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "connection_state",
				Help:      "1 for the current connection state, 0 otherwise",
			},
			[]string{"state"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_transitions_total",
				Help:      "Total number of connection state transitions",
			},
			[]string{"from", "to"},
		),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbound_queue_length",
			Help:      "Messages waiting to be sent",
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Total number of messages written to a transport",
		}),
		messagesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_received_total",
				Help:      "Total number of messages received, by action",
			},
			[]string{"action"},
		),
		messagesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_failed_total",
			Help:      "Total number of queued messages that failed",
		}),
		fallbackAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fallback_attempts_total",
				Help:      "Total number of connection attempts against fallback hosts",
			},
			[]string{"host"},
		),
		tokenRenewals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_renewals_total",
				Help:      "Total number of token renewals, by result",
			},
			[]string{"result"},
		),
	}

	r.registry.MustRegister(
		r.connectionState,
		r.transitions,
		r.queueLength,
		r.messagesSent,
		r.messagesReceived,
		r.messagesFailed,
		r.fallbackAttempts,
		r.tokenRenewals,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	for _, s := range connection.AllStates() {
		r.connectionState.WithLabelValues(s.String()).Set(0)
	}
	r.connectionState.WithLabelValues(connection.StateInitialized.String()).Set(1)

	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func (r *Recorder) StateChanged(from, to connection.State) {
	r.connectionState.WithLabelValues(from.String()).Set(0)
	r.connectionState.WithLabelValues(to.String()).Set(1)
	r.transitions.WithLabelValues(from.String(), to.String()).Inc()
}

func (r *Recorder) QueueLength(n int) {
	r.queueLength.Set(float64(n))
}

func (r *Recorder) MessageSent() {
	r.messagesSent.Inc()
}

func (r *Recorder) MessageReceived(action protocol.Action) {
	r.messagesReceived.WithLabelValues(action.String()).Inc()
}

func (r *Recorder) MessageFailed() {
	r.messagesFailed.Inc()
}

func (r *Recorder) FallbackAttempt(host string) {
	r.fallbackAttempts.WithLabelValues(host).Inc()
}

func (r *Recorder) TokenRenewal(ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	r.tokenRenewals.WithLabelValues(result).Inc()
}
