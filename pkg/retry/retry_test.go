package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBusy = errors.New("busy")

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		assert.Equal(t, calls, attempt)
		if calls < 3 {
			return Retryable(errBusy)
		}
		return nil
	}, WithMaxAttempts(5), WithInitialDelay(0))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_Exhausted(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return Retryable(errBusy)
	}, WithMaxAttempts(5), WithInitialDelay(0))

	require.Error(t, err)
	assert.Equal(t, 5, calls)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, errBusy)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	permanent := errors.New("invalid")
	err := Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return permanent
	}, WithMaxAttempts(5))

	assert.Equal(t, 1, calls)
	assert.Same(t, permanent, err)
}

func TestDo_RetryIf(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return errBusy
	},
		WithMaxAttempts(4),
		WithInitialDelay(0),
		WithRetryIf(func(err error) bool { return errors.Is(err, errBusy) }),
	)

	assert.Equal(t, 4, calls)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestDo_ContextCancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return Retryable(errBusy)
	}, WithMaxAttempts(5), WithInitialDelay(time.Second))

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_OnRetryCallback(t *testing.T) {
	var attempts []int
	_ = Do(context.Background(), func(ctx context.Context, attempt int) error {
		return Retryable(errBusy)
	},
		WithMaxAttempts(3),
		WithInitialDelay(0),
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			attempts = append(attempts, attempt)
		}),
	)

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestCalculateDelay_Capped(t *testing.T) {
	r := New(
		WithInitialDelay(10*time.Millisecond),
		WithMaxDelay(25*time.Millisecond),
		WithMultiplier(2),
		WithJitter(0),
	)

	assert.Equal(t, 10*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 20*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, 25*time.Millisecond, r.calculateDelay(3))
}
