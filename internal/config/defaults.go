package config

import (
	"net/http"
	"slices"
	"time"

	"github.com/rickgao/realtime-client/internal/fallback"
	"github.com/rickgao/realtime-client/internal/reachability"
)

// Default values for optional configuration fields.
const (
	DefaultConnectTimeout       = 15 * time.Second
	DefaultCloseTimeout         = 10 * time.Second
	DefaultSuspendTimeout       = 2 * time.Minute
	DefaultRetryBaseDelay       = 1 * time.Second
	DefaultRetryMaxDelay        = 30 * time.Second
	DefaultSendBurst            = 1
	DefaultEventBufferSize      = 256
	DefaultInboundBufferSize    = 1024
	DefaultHandshakeTimeout     = 15 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultPingInterval         = 15 * time.Second
	DefaultPingTimeout          = 45 * time.Second
	DefaultReadLimit            = 1 << 20
	DefaultReachabilityTimeout  = 5 * time.Second
	DefaultReachabilityRetries  = 1
	DefaultReachabilityBackoff  = 500 * time.Millisecond
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 4
	DefaultMinConns             = 1
	DefaultHistoryBatchSize     = 100
	DefaultHistoryFlushInterval = 1 * time.Second
	DefaultHistoryBufferSize    = 1000
	DefaultMetricsPort          = 9090
	DefaultMetricsPath          = "/metrics"
)

// DefaultFallbackStatusCodes are the HTTP statuses that make a fallback host
// attempt eligible.
var DefaultFallbackStatusCodes = []int{
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

func (c *Config) applyDefaults() {
	// Realtime defaults. Fallback hosts only apply to the default endpoint
	// unless listed explicitly.
	if c.Realtime.Host == "" {
		c.Realtime.Host = fallback.DefaultPrimaryHost
		if c.Realtime.FallbackHosts == nil {
			c.Realtime.FallbackHosts = slices.Clone(fallback.DefaultFallbackHosts)
		}
	}
	if c.Realtime.TLS == nil {
		c.Realtime.TLS = boolPtr(true)
	}
	if c.Realtime.Echo == nil {
		c.Realtime.Echo = boolPtr(true)
	}

	// Connection defaults
	if c.Connection.ConnectTimeout == 0 {
		c.Connection.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Connection.CloseTimeout == 0 {
		c.Connection.CloseTimeout = DefaultCloseTimeout
	}
	if c.Connection.SuspendTimeout == 0 {
		c.Connection.SuspendTimeout = DefaultSuspendTimeout
	}
	if c.Connection.RetryBaseDelay == 0 {
		c.Connection.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if c.Connection.RetryMaxDelay == 0 {
		c.Connection.RetryMaxDelay = DefaultRetryMaxDelay
	}
	if c.Connection.FallbackStatusCodes == nil {
		c.Connection.FallbackStatusCodes = slices.Clone(DefaultFallbackStatusCodes)
	}
	if c.Connection.SendBurst == 0 {
		c.Connection.SendBurst = DefaultSendBurst
	}
	if c.Connection.EventBufferSize == 0 {
		c.Connection.EventBufferSize = DefaultEventBufferSize
	}
	if c.Connection.InboundBufferSize == 0 {
		c.Connection.InboundBufferSize = DefaultInboundBufferSize
	}
	if c.Connection.HandshakeTimeout == 0 {
		c.Connection.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = DefaultPingInterval
	}
	if c.Connection.PingTimeout == 0 {
		c.Connection.PingTimeout = DefaultPingTimeout
	}
	if c.Connection.ReadLimit == 0 {
		c.Connection.ReadLimit = DefaultReadLimit
	}

	// Reachability defaults
	if c.Reachability.URL == "" {
		c.Reachability.URL = reachability.DefaultURL
	}
	if c.Reachability.Timeout == 0 {
		c.Reachability.Timeout = DefaultReachabilityTimeout
	}
	if c.Reachability.Retries == 0 {
		c.Reachability.Retries = DefaultReachabilityRetries
	}
	if c.Reachability.RetryBackoff == 0 {
		c.Reachability.RetryBackoff = DefaultReachabilityBackoff
	}

	// History defaults
	applyDBDefaults(&c.History.Database)
	if c.History.BatchSize == 0 {
		c.History.BatchSize = DefaultHistoryBatchSize
	}
	if c.History.FlushInterval == 0 {
		c.History.FlushInterval = DefaultHistoryFlushInterval
	}
	if c.History.BufferSize == 0 {
		c.History.BufferSize = DefaultHistoryBufferSize
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

func boolPtr(v bool) *bool { return &v }
