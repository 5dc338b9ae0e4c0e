package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errDown = errors.New("down")

func fail(context.Context) error    { return errDown }
func succeed(context.Context) error { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	var transitions []State
	cb := New("test",
		WithFailureThreshold(2),
		WithOnStateChange(func(_ string, _, to State) { transitions = append(transitions, to) }),
	)

	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errDown)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errDown)
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(context.Background(), succeed)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, IsRejection(err))
	assert.Equal(t, []State{StateOpen}, transitions)
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := New("test",
		WithFailureThreshold(1),
		WithSuccessThreshold(1),
		WithTimeout(time.Second),
		withClock(func() time.Time { return now }),
	)

	_ = cb.Execute(context.Background(), fail)
	assert.Equal(t, StateOpen, cb.State())

	now = now.Add(2 * time.Second)
	assert.NoError(t, cb.Execute(context.Background(), succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := New("test",
		WithFailureThreshold(1),
		WithTimeout(time.Second),
		withClock(func() time.Time { return now }),
	)

	_ = cb.Execute(context.Background(), fail)
	now = now.Add(2 * time.Second)
	_ = cb.Execute(context.Background(), fail)

	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(context.Background(), succeed), ErrCircuitOpen)
}

func TestCircuitBreaker_IsFailureFilter(t *testing.T) {
	ignored := errors.New("miss")
	cb := New("test",
		WithFailureThreshold(1),
		WithIsFailure(func(err error) bool { return !errors.Is(err, ignored) }),
	)

	_ = cb.Execute(context.Background(), func(context.Context) error { return ignored })
	assert.Equal(t, StateClosed, cb.State())
}
