package config

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/rickgao/realtime-client/internal/auth"
	"github.com/rickgao/realtime-client/internal/connection"
	"github.com/rickgao/realtime-client/internal/reachability"
	"github.com/rickgao/realtime-client/internal/transport"
)

// ManagerConfig converts the connection settings. agent is sent as the
// "agent" connect parameter.
func (c *Config) ManagerConfig(agent string) connection.ManagerConfig {
	return connection.ManagerConfig{
		Host:                c.Realtime.Host,
		FallbackHosts:       slices.Clone(c.Realtime.FallbackHosts),
		Port:                c.Realtime.Port,
		TLS:                 c.Realtime.TLS == nil || *c.Realtime.TLS,
		ClientID:            c.Client.ID,
		Echo:                c.Realtime.Echo == nil || *c.Realtime.Echo,
		Agent:               agent,
		ConnectTimeout:      c.Connection.ConnectTimeout,
		CloseTimeout:        c.Connection.CloseTimeout,
		SuspendTimeout:      c.Connection.SuspendTimeout,
		RetryBaseDelay:      c.Connection.RetryBaseDelay,
		RetryMaxDelay:       c.Connection.RetryMaxDelay,
		FallbackStatusCodes: slices.Clone(c.Connection.FallbackStatusCodes),
		EventBufferSize:     c.Connection.EventBufferSize,
		InboundBufferSize:   c.Connection.InboundBufferSize,
		SendRate:            c.Connection.SendRate,
		SendBurst:           c.Connection.SendBurst,
	}
}

// WebSocketConfig converts the transport settings.
func (c *Config) WebSocketConfig() transport.WebSocketConfig {
	return transport.WebSocketConfig{
		HandshakeTimeout: c.Connection.HandshakeTimeout,
		WriteTimeout:     c.Connection.WriteTimeout,
		PingInterval:     c.Connection.PingInterval,
		PingTimeout:      c.Connection.PingTimeout,
		ReadLimit:        c.Connection.ReadLimit,
	}
}

// TokenProvider builds the credential source. It returns nil when no
// credentials are configured.
func (c *Config) TokenProvider() (auth.TokenProvider, error) {
	params := auth.TokenParams{
		ClientID:   c.Client.ID,
		Capability: c.Client.Capability,
		TTL:        c.Client.TokenTTL,
	}

	switch {
	case c.Client.APIKey != "":
		p, err := auth.NewKeyTokenProvider(c.Client.APIKey, params)
		if err != nil {
			return nil, fmt.Errorf("client.api_key: %w", err)
		}
		return p, nil
	case c.Client.Token != "":
		return auth.NewStaticTokenProvider(c.Client.Token), nil
	case c.Client.PrivateKeyPath != "":
		p, err := auth.NewRSATokenProvider(c.Client.KeyName, c.Client.PrivateKeyPath, params)
		if err != nil {
			return nil, fmt.Errorf("client.private_key_path: %w", err)
		}
		return p, nil
	default:
		return nil, nil
	}
}

// Prober builds the reachability prober.
func (c *Config) Prober(logger *slog.Logger) connection.NetworkProber {
	if c.Reachability.Disabled {
		return reachability.Always(true)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return reachability.NewChecker(c.Reachability.URL,
		reachability.WithTimeout(c.Reachability.Timeout),
		reachability.WithRetries(c.Reachability.Retries, c.Reachability.RetryBackoff),
		reachability.WithLogger(logger),
	)
}
