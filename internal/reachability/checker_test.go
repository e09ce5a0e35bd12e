package reachability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewChecker(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewChecker("")

		if c.url != DefaultURL {
			t.Errorf("url = %q, want %q", c.url, DefaultURL)
		}
		if c.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want 5s", c.httpClient.Timeout)
		}
		if c.maxRetries != 1 {
			t.Errorf("maxRetries = %d, want 1", c.maxRetries)
		}
	})

	t.Run("with options", func(t *testing.T) {
		hc := &http.Client{}
		c := NewChecker("http://x", WithHTTPClient(hc), WithRetries(3, time.Millisecond))
		if c.httpClient != hc {
			t.Error("custom HTTP client not used")
		}
		if c.maxRetries != 3 || c.retryBackoff != time.Millisecond {
			t.Errorf("retries = %d/%v, want 3/1ms", c.maxRetries, c.retryBackoff)
		}
	})
}

func TestChecker_CanConnect(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"yes", http.StatusOK, "yes\n", true},
		{"yes with padding", http.StatusOK, "  yes", true},
		{"no", http.StatusOK, "no", false},
		{"captive portal", http.StatusOK, "<html>login</html>", false},
		{"server error", http.StatusInternalServerError, "yes", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewChecker(server.URL, WithRetries(0, 0))
			if got := c.CanConnect(context.Background()); got != tt.want {
				t.Errorf("CanConnect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChecker_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("yes"))
	}))
	defer server.Close()

	c := NewChecker(server.URL, WithRetries(2, time.Millisecond))
	if !c.CanConnect(context.Background()) {
		t.Error("expected CanConnect true after retry")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestChecker_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewChecker(url, WithRetries(0, 0), WithTimeout(time.Second))
	if c.CanConnect(context.Background()) {
		t.Error("expected CanConnect false for closed server")
	}
}

func TestChecker_ConcurrentCallsShareProbe(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		w.Write([]byte("yes"))
	}))
	defer server.Close()

	c := NewChecker(server.URL, WithRetries(0, 0))

	var wg sync.WaitGroup
	results := make([]bool, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.CanConnect(context.Background())
		}(i)
	}

	// Let every goroutine join the in-flight probe.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, ok := range results {
		if !ok {
			t.Errorf("result %d = false, want true", i)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server saw %d probes, want 1", got)
	}
}

func TestAlways(t *testing.T) {
	if !Always(true).CanConnect(context.Background()) {
		t.Error("Always(true) returned false")
	}
	if Always(false).CanConnect(context.Background()) {
		t.Error("Always(false) returned true")
	}
}
