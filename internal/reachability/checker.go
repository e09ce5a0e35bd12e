// Package reachability answers "can this host reach the internet at all?"
// so a failed connection attempt can tell a service problem from a local
// network outage.
package reachability

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultURL is a known-good endpoint that answers "yes".
const DefaultURL = "https://internet-up.ably-realtime.com/is-the-internet-up.txt"

// maxBody bounds how much of the probe response is read.
const maxBody = 64

// Checker probes a known-good HTTP endpoint.
type Checker struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration

	group singleflight.Group
}

// Option configures a Checker.
type Option func(*Checker)

// NewChecker creates a Checker. An empty url uses DefaultURL.
func NewChecker(url string, opts ...Option) *Checker {
	if url == "" {
		url = DefaultURL
	}

	c := &Checker{
		url: url,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   1,
		retryBackoff: 500 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) Option {
	return func(c *Checker) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Checker) {
		c.httpClient = hc
	}
}

// CanConnect reports whether the probe endpoint answered "yes". Concurrent
// callers share one in-flight probe.
func (c *Checker) CanConnect(ctx context.Context) bool {
	v, _, _ := c.group.Do(c.url, func() (any, error) {
		return c.probeWithRetry(ctx), nil
	})
	return v.(bool)
}

func (c *Checker) probeWithRetry(ctx context.Context) bool {
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 && backoff > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			c.logger.Debug("retrying reachability probe",
				"attempt", attempt,
				"backoff", jitter,
			)

			select {
			case <-ctx.Done():
				return false
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		err := c.probe(ctx)
		if err == nil {
			return true
		}
		c.logger.Debug("reachability probe failed", "url", c.url, "error", err)
	}

	return false
}

func (c *Checker) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if !bytes.HasPrefix(bytes.TrimSpace(body), []byte("yes")) {
		return fmt.Errorf("unexpected body %q", body)
	}
	return nil
}

// Always is a prober with a fixed answer.
type Always bool

func (a Always) CanConnect(ctx context.Context) bool { return bool(a) }
