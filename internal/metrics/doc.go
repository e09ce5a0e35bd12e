// Package metrics exports connection metrics to Prometheus.
//
// Key metrics:
//   - Connection state and transition counts
//   - Outbound queue length and message rates
//   - Fallback host attempts
//   - Token renewal outcomes
package metrics
