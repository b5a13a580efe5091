package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"NarrativeScout/backend/go/internal/config"
	"NarrativeScout/backend/go/pkg/circuitbreaker"
	"NarrativeScout/backend/go/pkg/logger"
	"NarrativeScout/backend/go/pkg/retry"
	"NarrativeScout/backend/go/pkg/util"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 16 << 20

// APIError is returned for any non-2xx response.
type APIError struct {
	Status int
	URL    string
	Body   string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 500 {
		body = body[:500] + "..."
	}
	return fmt.Sprintf("HTTP %d from %s: %s", e.Status, e.URL, body)
}

// Client is the text transport shared by collectors and LLM providers.
// Requests pass through a per-host circuit breaker (when enabled) and an optional retrier,
// and successful GET bodies are cached for the lifetime of the client.
type Client struct {
	httpClient *http.Client
	userAgent  string
	retrier    *retry.Retrier
	pages      *util.LRU[string, string]
}

// NewClient creates a Client from the http section of the config.
func NewClient(cfg config.HTTPConfig, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("http")

	transport := http.DefaultTransport
	if cfg.CircuitBreaker.Enabled {
		transport = &breakerTransport{
			base: transport,
			settings: circuitbreaker.Settings{
				FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
				SuccessThreshold: cfg.CircuitBreaker.SuccessThreshold,
				Timeout:          cfg.CircuitBreaker.TimeoutDuration(),
				IsFailure:        isBreakerFailure,
			},
			log:      log,
			breakers: make(map[string]*circuitbreaker.Breaker),
		}
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.TimeoutDuration(),
			Transport: transport,
		},
		userAgent: cfg.UserAgent,
		retrier: retry.NewRetrier(retry.Config{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelayDuration(),
			MaxDelay:    cfg.Retry.MaxDelayDuration(),
		}, IsRetryable, log),
		pages: util.NewLRU[string, string](cfg.PageCache.Capacity, cfg.PageCache.TTLDuration()),
	}
}

// WithTimeout returns a Client that shares the breakers, retrier and page cache
// but bounds each request by timeout instead of http.timeout. Zero means no client-level limit.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	clone := *c
	clone.httpClient = &http.Client{
		Timeout:   timeout,
		Transport: c.httpClient.Transport,
	}
	return &clone
}

// Transport returns the breaker-wrapped round tripper, for SDK clients that need an *http.Client.
func (c *Client) Transport() http.RoundTripper {
	return c.httpClient.Transport
}

// StandardClient returns the underlying *http.Client.
func (c *Client) StandardClient() *http.Client {
	return c.httpClient
}

// PostJSON sends body as application/json and returns the response body.
func (c *Client) PostJSON(ctx context.Context, url string, body []byte, headers map[string]string) (string, error) {
	return c.send(ctx, http.MethodPost, url, body, headers)
}

// GetText fetches url and returns the body as text. Successful responses are cached.
func (c *Client) GetText(ctx context.Context, url string) (string, error) {
	if text, ok := c.pages.Get(url); ok {
		return text, nil
	}
	text, err := c.send(ctx, http.MethodGet, url, nil, nil)
	if err != nil {
		return "", err
	}
	c.pages.Put(url, text)
	return text, nil
}

func (c *Client) send(ctx context.Context, method, url string, body []byte, headers map[string]string) (string, error) {
	var text string
	err := c.retrier.Do(ctx, func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return fmt.Errorf("read body from %s: %w", url, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &APIError{Status: resp.StatusCode, URL: url, Body: string(data)}
		}
		text = string(data)
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// IsRetryable reports whether err is a transient transport failure, a 5xx or a 429.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= http.StatusInternalServerError || apiErr.Status == http.StatusTooManyRequests
	}
	return true
}

var errServerStatus = errors.New("server error status")

func isBreakerFailure(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// breakerTransport counts transport errors and 5xx responses against a breaker
// keyed by request host, so one failing host never blocks another.
type breakerTransport struct {
	base     http.RoundTripper
	settings circuitbreaker.Settings
	log      *logger.Logger

	mu       sync.Mutex
	breakers map[string]*circuitbreaker.Breaker
}

func (t *breakerTransport) breakerFor(host string) *circuitbreaker.Breaker {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.breakers[host]; ok {
		return b
	}
	settings := t.settings
	settings.OnStateChange = func(from, to circuitbreaker.State) {
		t.log.WithPayload(map[string]interface{}{"host": host, "from": from.String(), "to": to.String()}).
			Warn("circuit breaker state changed")
	}
	b := circuitbreaker.New(settings)
	t.breakers[host] = b
	return b
}

func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := t.breakerFor(req.URL.Host).Do(func() error {
		var err error
		resp, err = t.base.RoundTrip(req)
		if err != nil {
			return err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return errServerStatus
		}
		return nil
	})
	if errors.Is(err, errServerStatus) {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}
