package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"NarrativeScout/backend/go/pkg/logger"
)

// Config controls the backoff schedule. MaxAttempts counts the first try, so 1 disables retrying.
type Config struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterFactor  float64
}

// ErrorClassifier reports whether an error is worth another attempt.
type ErrorClassifier func(error) bool

// Retrier runs an operation with exponential backoff and jitter.
type Retrier struct {
	config      Config
	isRetryable ErrorClassifier
	log         *logger.Logger
}

// NewRetrier fills zero fields with defaults (factor 2, jitter 0.2). A nil log discards output.
func NewRetrier(config Config, classifier ErrorClassifier, log *logger.Logger) *Retrier {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.BackoffFactor <= 0 {
		config.BackoffFactor = 2
	}
	if config.JitterFactor < 0 {
		config.JitterFactor = 0
	} else if config.JitterFactor == 0 {
		config.JitterFactor = 0.2
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = config.BaseDelay
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Retrier{config: config, isRetryable: classifier, log: log}
}

// Do runs operation until it succeeds, returns a non-retryable error, or attempts run out.
// With a single attempt the operation's error is returned unwrapped.
func (r *Retrier) Do(ctx context.Context, operation func() error) error {
	var lastErr error
	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				r.log.WithField("attempt", attempt).Info("operation succeeded after retry")
			}
			return nil
		}

		retryable := r.isRetryable != nil && r.isRetryable(lastErr)
		if attempt == r.config.MaxAttempts || !retryable {
			break
		}

		delay := r.delay(attempt)
		r.log.WithPayload(map[string]interface{}{
			"attempt":        attempt,
			"error":          lastErr.Error(),
			"retry_delay_ms": delay.Milliseconds(),
		}).Warn("operation attempt failed, backing off")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	if r.config.MaxAttempts == 1 {
		return lastErr
	}
	return fmt.Errorf("operation failed after %d attempts: %w", r.config.MaxAttempts, lastErr)
}

func (r *Retrier) delay(attempt int) time.Duration {
	d := float64(r.config.BaseDelay) * math.Pow(r.config.BackoffFactor, float64(attempt-1))
	if d > float64(r.config.MaxDelay) {
		d = float64(r.config.MaxDelay)
	}
	d *= 1.0 + (rand.Float64()-0.5)*r.config.JitterFactor
	return time.Duration(d)
}
