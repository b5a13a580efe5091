package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"NarrativeScout/backend/go/internal/config"
	"NarrativeScout/backend/go/pkg/circuitbreaker"
)

// helper function to create a transport config for testing
func newTestConfig() config.HTTPConfig {
	return config.HTTPConfig{
		UserAgent: "narrative-scout-test",
		Timeout:   "5s",
		Retry: config.RetryConfig{
			MaxAttempts: 1,
			BaseDelay:   "1ms",
			MaxDelay:    "2ms",
		},
		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 2,
			SuccessThreshold: 1,
			Timeout:          "1m",
		},
		PageCache: config.PageCacheConfig{Capacity: 8, TTL: "1m"},
	}
}

func TestPostJSON_SendsHeadersAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != "narrative-scout-test" {
			t.Errorf("User-Agent = %q", got)
		}
		if got := r.Header.Get("x-api-key"); got != "secret" {
			t.Errorf("x-api-key = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		w.Write(body)
	}))
	defer srv.Close()

	c := NewClient(newTestConfig(), nil)
	got, err := c.PostJSON(context.Background(), srv.URL, []byte(`{"a":1}`), map[string]string{"x-api-key": "secret"})
	if err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
	if got != `{"a":1}` {
		t.Errorf("PostJSON() = %q", got)
	}
}

func TestSend_Non2xxIsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"bad key"}`)
	}))
	defer srv.Close()

	c := NewClient(newTestConfig(), nil)
	_, err := c.GetText(context.Background(), srv.URL)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Body != `{"error":"bad key"}` {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestGetText_CachesSuccessfulPages(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		io.WriteString(w, "<html>ok</html>")
	}))
	defer srv.Close()

	c := NewClient(newTestConfig(), nil)
	for i := 0; i < 3; i++ {
		if _, err := c.GetText(context.Background(), srv.URL); err != nil {
			t.Fatalf("GetText() error = %v", err)
		}
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
}

func TestRetry_RetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	cfg := newTestConfig()
	cfg.Retry.MaxAttempts = 3
	cfg.CircuitBreaker.Enabled = false
	c := NewClient(cfg, nil)

	got, err := c.PostJSON(context.Background(), srv.URL, []byte(`{}`), nil)
	if err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
	if got != "ok" || atomic.LoadInt32(&hits) != 3 {
		t.Errorf("got %q after %d hits", got, hits)
	}
}

func TestRetry_DoesNotRetryClientErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	cfg := newTestConfig()
	cfg.Retry.MaxAttempts = 3
	c := NewClient(cfg, nil)

	if _, err := c.PostJSON(context.Background(), srv.URL, []byte(`{}`), nil); err == nil {
		t.Fatal("expected error")
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
}

func TestCircuitBreaker_OpensOnServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(newTestConfig(), nil)
	for i := 0; i < 2; i++ {
		var apiErr *APIError
		if _, err := c.PostJSON(context.Background(), srv.URL, []byte(`{}`), nil); !errors.As(err, &apiErr) {
			t.Fatalf("request %d error = %v, want *APIError", i, err)
		}
	}

	_, err := c.PostJSON(context.Background(), srv.URL, []byte(`{}`), nil)
	if !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		t.Fatalf("error = %v, want ErrCircuitOpen", err)
	}
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Errorf("server hit %d times, want 2", n)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429", &APIError{Status: 429}, true},
		{"502", &APIError{Status: 502}, true},
		{"404", &APIError{Status: 404}, false},
		{"cancelled", context.Canceled, false},
		{"circuit open", circuitbreaker.ErrCircuitOpen, false},
		{"transport", errors.New("connection reset"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestCircuitBreaker_IsolatesHosts(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	var healthyHits int32
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&healthyHits, 1)
		io.WriteString(w, "ok")
	}))
	defer healthy.Close()

	c := NewClient(newTestConfig(), nil)
	for i := 0; i < 3; i++ {
		_, _ = c.PostJSON(context.Background(), down.URL, []byte(`{}`), nil)
	}
	if _, err := c.PostJSON(context.Background(), down.URL, []byte(`{}`), nil); !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		t.Fatalf("failing host error = %v, want ErrCircuitOpen", err)
	}

	got, err := c.PostJSON(context.Background(), healthy.URL, []byte(`{}`), nil)
	if err != nil {
		t.Fatalf("healthy host error = %v, want nil", err)
	}
	if got != "ok" || atomic.LoadInt32(&healthyHits) != 1 {
		t.Errorf("healthy host got %q after %d hits", got, healthyHits)
	}
}

func TestWithTimeout_OverridesClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		io.WriteString(w, "slow")
	}))
	defer srv.Close()

	cfg := newTestConfig()
	cfg.Timeout = "50ms"
	c := NewClient(cfg, nil)

	if _, err := c.PostJSON(context.Background(), srv.URL, []byte(`{}`), nil); err == nil {
		t.Fatal("expected http.timeout to cut the request off")
	}
	got, err := c.WithTimeout(2*time.Second).PostJSON(context.Background(), srv.URL, []byte(`{}`), nil)
	if err != nil {
		t.Fatalf("WithTimeout() request error = %v", err)
	}
	if got != "slow" {
		t.Errorf("got %q, want slow", got)
	}
	if c.StandardClient().Timeout != 50*time.Millisecond {
		t.Errorf("original client timeout changed to %v", c.StandardClient().Timeout)
	}
}
