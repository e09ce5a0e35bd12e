package config

import "time"

// Config is the root configuration for a realtime client.
type Config struct {
	Client       ClientConfig       `yaml:"client"`
	Realtime     RealtimeConfig     `yaml:"realtime"`
	Connection   ConnectionConfig   `yaml:"connection"`
	Reachability ReachabilityConfig `yaml:"reachability"`
	History      HistoryConfig      `yaml:"history"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// ClientConfig holds identity and credentials. At most one of APIKey, Token
// or KeyName+PrivateKeyPath is used, in that order.
type ClientConfig struct {
	ID             string        `yaml:"id"`               // clientId presented to the service
	APIKey         string        `yaml:"api_key"`          // "appId.keyId:secret"
	Token          string        `yaml:"token"`            // Pre-issued token, cannot be renewed
	KeyName        string        `yaml:"key_name"`         // "appId.keyId" for RSA-signed tokens
	PrivateKeyPath string        `yaml:"private_key_path"` // Path to RSA private key PEM file
	Capability     string        `yaml:"capability"`       // JSON capability for minted tokens
	TokenTTL       time.Duration `yaml:"token_ttl"`
}

// RealtimeConfig selects the service endpoint.
type RealtimeConfig struct {
	Host          string   `yaml:"host"`
	FallbackHosts []string `yaml:"fallback_hosts"`
	Port          int      `yaml:"port"`
	TLS           *bool    `yaml:"tls"`
	Echo          *bool    `yaml:"echo"`
}

// ConnectionConfig holds connection manager and transport settings.
type ConnectionConfig struct {
	ConnectTimeout      time.Duration `yaml:"connect_timeout"`
	CloseTimeout        time.Duration `yaml:"close_timeout"`
	SuspendTimeout      time.Duration `yaml:"suspend_timeout"`
	RetryBaseDelay      time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay       time.Duration `yaml:"retry_max_delay"`
	FallbackStatusCodes []int         `yaml:"fallback_status_codes"`
	SendRate            float64       `yaml:"send_rate"` // messages per second, 0 = unlimited
	SendBurst           int           `yaml:"send_burst"`
	EventBufferSize     int           `yaml:"event_buffer_size"`
	InboundBufferSize   int           `yaml:"inbound_buffer_size"`
	HandshakeTimeout    time.Duration `yaml:"handshake_timeout"`
	WriteTimeout        time.Duration `yaml:"write_timeout"`
	PingInterval        time.Duration `yaml:"ping_interval"`
	PingTimeout         time.Duration `yaml:"ping_timeout"`
	ReadLimit           int64         `yaml:"read_limit"`
}

// ReachabilityConfig holds network probe settings.
type ReachabilityConfig struct {
	Disabled     bool          `yaml:"disabled"` // Treat the network as always reachable
	URL          string        `yaml:"url"`
	Timeout      time.Duration `yaml:"timeout"`
	Retries      int           `yaml:"retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// HistoryConfig holds the optional state change log.
type HistoryConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
