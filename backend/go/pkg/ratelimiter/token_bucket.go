package ratelimiter

import (
	"context"
	"sync"
	"time"
)

// TokenBucket implements RateLimiter using the token bucket algorithm.
// It allows bursts of requests up to the bucket's capacity.
type TokenBucket struct {
	rate          float64 // tokens per second; <= 0 disables limiting
	capacity      float64
	tokens        float64
	lastTokenTime time.Time
	now           func() time.Time
	mutex         sync.Mutex
}

// NewTokenBucket creates a new TokenBucket that starts full.
// rate: the number of tokens to generate per second.
// capacity: the maximum number of tokens (burst size), at least 1.
func NewTokenBucket(rate float64, capacity int) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	return &TokenBucket{
		rate:          rate,
		capacity:      float64(capacity),
		tokens:        float64(capacity),
		lastTokenTime: time.Now(),
		now:           time.Now,
	}
}

// Allow consumes a token if one is available.
func (tb *TokenBucket) Allow() bool {
	return tb.reserve() == 0
}

// Wait blocks until a token is available and consumes it.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		delay := tb.reserve()
		if delay == 0 {
			return nil
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve consumes a token and returns 0, or returns how long until the next token.
func (tb *TokenBucket) reserve() time.Duration {
	if tb.rate <= 0 {
		return 0
	}

	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	now := tb.now()
	if elapsed := now.Sub(tb.lastTokenTime); elapsed > 0 {
		tb.tokens += elapsed.Seconds() * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastTokenTime = now
	}

	if tb.tokens >= 1 {
		tb.tokens--
		return 0
	}
	missing := 1 - tb.tokens
	delay := time.Duration(missing / tb.rate * float64(time.Second))
	if delay <= 0 {
		delay = time.Millisecond
	}
	return delay
}
