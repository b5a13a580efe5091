package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func always(error) bool { return true }

func TestRetrier_SucceedsAfterTransientFailures(t *testing.T) {
	r := NewRetrier(Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}, always, nil)

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrier_SingleAttemptReturnsErrorUnwrapped(t *testing.T) {
	r := NewRetrier(Config{MaxAttempts: 1}, always, nil)

	calls := 0
	err := r.Do(context.Background(), func() error { calls++; return errTransient })

	assert.Same(t, errTransient, err)
	assert.Equal(t, 1, calls)
}

func TestRetrier_StopsOnNonRetryable(t *testing.T) {
	errFatal := errors.New("fatal")
	r := NewRetrier(Config{MaxAttempts: 5, BaseDelay: time.Millisecond}, func(err error) bool {
		return !errors.Is(err, errFatal)
	}, nil)

	calls := 0
	err := r.Do(context.Background(), func() error { calls++; return errFatal })

	assert.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, calls)
}

func TestRetrier_ExhaustsAttempts(t *testing.T) {
	r := NewRetrier(Config{MaxAttempts: 2, BaseDelay: time.Millisecond}, always, nil)

	calls := 0
	err := r.Do(context.Background(), func() error { calls++; return errTransient })

	assert.ErrorIs(t, err, errTransient)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, 2, calls)
}

func TestRetrier_ContextCancelledDuringBackoff(t *testing.T) {
	r := NewRetrier(Config{MaxAttempts: 3, BaseDelay: time.Hour, MaxDelay: time.Hour}, always, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Do(ctx, func() error { return errTransient })

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetrier_DelayIsCapped(t *testing.T) {
	r := NewRetrier(Config{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 3 * time.Second, JitterFactor: -1}, always, nil)

	assert.Equal(t, time.Second, r.delay(1))
	assert.Equal(t, 2*time.Second, r.delay(2))
	assert.Equal(t, 3*time.Second, r.delay(5))
}
