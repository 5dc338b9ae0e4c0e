package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestCompositeHealthChecker_NoChecks(t *testing.T) {
	status := NewCompositeHealthChecker("v1").Check(context.Background())
	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.Equal(t, "v1", status.Version)
}

func TestCompositeHealthChecker_RequiredFailureIsNotReady(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.AddCheck("store", NewPingCheck(pinger{err: errors.New("connection refused")}))
	c.AddOptionalCheck("cache", NewPingCheck(pinger{}))

	status := c.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.False(t, status.Ready)
	assert.Equal(t, "Some checks failed: store", status.Message)
	require.Contains(t, status.Checks, "store")
	assert.Equal(t, "connection refused", status.Checks["store"].Message)
	assert.True(t, status.Checks["cache"].Healthy)
}

func TestCompositeHealthChecker_OptionalFailureStaysReady(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.AddCheck("store", NewPingCheck(pinger{}))
	c.AddOptionalCheck("cache", NewPingCheck(pinger{err: errors.New("timeout")}))

	status := c.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.True(t, status.Checks["cache"].Optional)
}

func TestCompositeHealthChecker_TimeoutBoundsSlowChecks(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.SetTimeout(20 * time.Millisecond)
	c.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	status := c.Check(context.Background())
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, status.Ready)

	c.RemoveCheck("slow")
	assert.True(t, c.Check(context.Background()).Ready)
}
