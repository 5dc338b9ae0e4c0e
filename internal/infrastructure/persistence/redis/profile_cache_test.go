package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/pkg/circuitbreaker"
)

func sampleProfile(version int64) *progression.Profile {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &progression.Profile{
		UserID:    "u1",
		Points:    105,
		Level:     2,
		Unlocks:   []string{"first-streak"},
		Version:   version,
		CreatedAt: at,
		UpdatedAt: at.Add(time.Minute),
	}
}

func TestProfileCodec(t *testing.T) {
	in := sampleProfile(3)

	data, err := encodeProfile(in)
	require.NoError(t, err)

	out, err := decodeProfile(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeProfile_RejectsInvalidSnapshot(t *testing.T) {
	_, err := decodeProfile([]byte(`{"user_id":"u1","points":-5,"level":1}`))
	assert.ErrorIs(t, err, ErrCacheSerialization)

	_, err = decodeProfile([]byte(`not json`))
	assert.ErrorIs(t, err, ErrCacheSerialization)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "progression:profile:u1", ProfileKey("u1"))
	assert.Equal(t, "progression:events:achievement.unlocked", PubSubChannel("achievement.unlocked"))
}

func TestConfigOptions_URLOverridesHost(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "redis://:secret@cache.internal:6380/2"

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, cfg.PoolSize, opts.PoolSize)
}

func TestProfileCache_BreakerOpensOnUnreachableRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	breaker := circuitbreaker.CacheBreaker(nil)
	pc := NewProfileCache(NewCacheWithClient(client), time.Minute, breaker)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := pc.Get(ctx, "u1")
		require.Error(t, err)
	}
	assert.Equal(t, circuitbreaker.StateOpen, breaker.State())

	_, found, err := pc.Get(ctx, "u1")
	assert.False(t, found)
	assert.True(t, circuitbreaker.IsRejection(err))
}

// The tests below need a live server: REDIS_TEST_URL=redis://localhost:6379/15
func liveCache(t *testing.T) *ProfileCache {
	t.Helper()
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	cfg := DefaultConfig()
	cfg.URL = url
	cache, err := NewCache(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	pc := NewProfileCache(cache, time.Minute, nil)
	require.NoError(t, pc.Invalidate(context.Background(), "u1"))
	return pc
}

func TestProfileCache_PutOnlyIfNewer(t *testing.T) {
	pc := liveCache(t)
	ctx := context.Background()

	_, found, err := pc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, found)

	stored, err := pc.Put(ctx, sampleProfile(2))
	require.NoError(t, err)
	assert.True(t, stored)

	stale := sampleProfile(1)
	stale.Points = 0
	stored, err = pc.Put(ctx, stale)
	require.NoError(t, err)
	assert.False(t, stored)

	got, found, err := pc.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, sampleProfile(2).Points, got.Points)
}
