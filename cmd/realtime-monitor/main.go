// realtime-monitor keeps a realtime connection open, prints its state
// changes and inbound messages, and serves health and metrics endpoints.
// Usage: go run ./cmd/realtime-monitor --config configs/realtime.example.yaml
//
// Credentials are read from the config, typically via environment variables:
//
//	REALTIME_API_KEY - appId.keyId:secret
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/realtime-client/internal/buffer"
	"github.com/rickgao/realtime-client/internal/config"
	"github.com/rickgao/realtime-client/internal/connection"
	"github.com/rickgao/realtime-client/internal/database"
	"github.com/rickgao/realtime-client/internal/history"
	"github.com/rickgao/realtime-client/internal/metrics"
	"github.com/rickgao/realtime-client/internal/protocol"
	"github.com/rickgao/realtime-client/internal/transport"
	"github.com/rickgao/realtime-client/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/realtime.example.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "debug logging and full message JSON")
	channel := flag.String("channel", "", "channel to publish heartbeat messages on")
	publishInterval := flag.Duration("publish-interval", 0, "heartbeat publish interval (0 disables)")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("starting realtime monitor",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	if err := run(*configPath, *verbose, *channel, *publishInterval, logger); err != nil {
		logger.Error("realtime monitor failed", "error", err)
		os.Exit(1)
	}
	logger.Info("realtime monitor stopped")
}

func run(configPath string, verbose bool, channel string, publishInterval time.Duration, logger *slog.Logger) error {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Info("configuration loaded",
		"host", cfg.Realtime.Host,
		"fallback_hosts", len(cfg.Realtime.FallbackHosts),
		"client_id", cfg.Client.ID,
		"history", cfg.History.Enabled,
	)

	tokens, err := cfg.TokenProvider()
	if err != nil {
		return fmt.Errorf("build token provider: %w", err)
	}
	if tokens == nil {
		logger.Warn("no credentials configured, connecting unauthenticated")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recorder := metrics.New()
	mgr := connection.NewManager(
		cfg.ManagerConfig(version.Agent()),
		tokens,
		transport.NewWebSocketFactory(cfg.WebSocketConfig(), logger),
		connection.WithLogger(logger),
		connection.WithProber(cfg.Prober(logger)),
		connection.WithRecorder(recorder),
	)

	unsubscribe := mgr.Subscribe(func(change connection.StateChange) {
		logger.Info("connection state",
			"previous", change.Previous,
			"current", change.Current,
			"reason", change.Reason,
			"retry_in", change.RetryIn,
		)
	})
	defer unsubscribe()

	var writer *history.Writer
	if cfg.History.Enabled {
		w, closeDB, err := startHistory(ctx, cfg, mgr, logger)
		if err != nil {
			return err
		}
		defer closeDB()
		writer = w
	}

	// The manager outlives the signal context so it can close gracefully.
	if err := mgr.Start(context.Background()); err != nil {
		return fmt.Errorf("start connection manager: %w", err)
	}
	if err := mgr.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           newHTTPHandler(mgr, recorder, cfg.Metrics.Path),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "port", cfg.Metrics.Port, "metrics_path", cfg.Metrics.Path)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		printMessages(gctx, mgr.Messages(), verbose, logger)
		return nil
	})

	if channel != "" && publishInterval > 0 {
		g.Go(func() error {
			publishHeartbeats(gctx, mgr, channel, publishInterval, logger)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Connection.CloseTimeout+5*time.Second)
		defer cancel()

		closeConnection(shutdownCtx, mgr, logger)
		if err := mgr.Stop(shutdownCtx); err != nil {
			logger.Warn("connection manager stop", "error", err)
		}
		if writer != nil {
			if err := writer.Stop(shutdownCtx); err != nil {
				logger.Warn("history writer stop", "error", err)
			}
		}
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// startHistory connects to the database and starts a writer fed by mgr's
// state changes. The returned func closes the pool.
func startHistory(ctx context.Context, cfg *config.Config, mgr *connection.Manager, logger *slog.Logger) (*history.Writer, func(), error) {
	logger.Info("connecting to history database",
		"host", cfg.History.Database.Host,
		"port", cfg.History.Database.Port,
		"database", cfg.History.Database.Name,
	)

	pool, err := database.Connect(ctx, cfg.History.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect history database: %w", err)
	}
	if err := history.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	events := buffer.New[history.Event](cfg.History.BufferSize)
	history.Track(mgr, events)

	w := history.NewWriter(history.WriterConfig{
		BatchSize:     cfg.History.BatchSize,
		FlushInterval: cfg.History.FlushInterval,
	}, events, pool, logger)

	// Writer stop is driven by the shutdown path, not ctx.
	if err := w.Start(context.Background()); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return w, pool.Close, nil
}

// closeConnection requests a graceful close and waits for a terminal state.
func closeConnection(ctx context.Context, mgr *connection.Manager, logger *slog.Logger) {
	terminal := make(chan struct{}, 1)
	unsubscribe := mgr.Subscribe(func(change connection.StateChange) {
		if change.Current.Terminal() {
			select {
			case terminal <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	if mgr.State().Terminal() {
		return
	}
	if err := mgr.Close(); err != nil {
		logger.Warn("close connection", "error", err)
		return
	}

	select {
	case <-terminal:
	case <-ctx.Done():
		logger.Warn("connection close timed out", "state", mgr.State())
	}
}

func printMessages(ctx context.Context, messages *buffer.Queue[*protocol.ProtocolMessage], verbose bool, logger *slog.Logger) {
	for {
		msg, err := messages.PopContext(ctx)
		if err != nil {
			return
		}
		if verbose {
			data, _ := json.Marshal(msg)
			fmt.Printf("[%s] %s\n", msg.Action, data)
			continue
		}
		logger.Info("message",
			"action", msg.Action,
			"channel", msg.Channel,
			"id", msg.ID,
		)
	}
}

type heartbeat struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

func publishHeartbeats(ctx context.Context, mgr *connection.Manager, channel string, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var seq int
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			seq++
			body, err := json.Marshal([]heartbeat{{
				Name: "heartbeat",
				Data: fmt.Sprintf("%d@%s", seq, t.UTC().Format(time.RFC3339)),
			}})
			if err != nil {
				logger.Error("encode heartbeat", "error", err)
				continue
			}

			msg := &protocol.ProtocolMessage{
				Action:   protocol.ActionMessage,
				Channel:  channel,
				Messages: body,
			}
			n := seq
			err = mgr.Send(msg, func(err error) {
				if err != nil {
					logger.Warn("heartbeat failed", "seq", n, "error", err)
					return
				}
				logger.Debug("heartbeat sent", "seq", n)
			})
			if err != nil {
				logger.Warn("heartbeat not queued", "seq", n, "error", err)
			}
		}
	}
}

// healthResponse never includes the connection key.
type healthResponse struct {
	Status       string              `json:"status"`
	State        string              `json:"state"`
	ConnectionID string              `json:"connection_id,omitempty"`
	Serial       int64               `json:"serial"`
	ClientID     string              `json:"client_id,omitempty"`
	LastError    *protocol.ErrorInfo `json:"last_error,omitempty"`
	Version      string              `json:"version"`
}

func newHTTPHandler(mgr *connection.Manager, recorder *metrics.Recorder, metricsPath string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		snap := mgr.Snapshot()

		resp := healthResponse{
			Status:       healthStatus(snap.State),
			State:        snap.State.String(),
			ConnectionID: snap.ID,
			Serial:       snap.Serial,
			ClientID:     snap.ClientID,
			LastError:    snap.LastError,
			Version:      version.String(),
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(resp)
	})

	mux.Handle(metricsPath, recorder.Handler())
	return mux
}

func healthStatus(s connection.State) string {
	switch s {
	case connection.StateConnected:
		return "healthy"
	case connection.StateSuspended, connection.StateClosed, connection.StateFailed:
		return "unhealthy"
	default:
		return "degraded"
	}
}
