package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/alem-hub/progression-engine/pkg/circuitbreaker"
)

// putIfNewer stores a snapshot only when its version is above the cached
// one, so a slow writer can never replace a fresher profile.
var putIfNewer = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if current and tonumber(current) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// cachedProfile is the JSON shape stored under the "data" hash field.
type cachedProfile struct {
	UserID    string    `json:"user_id"`
	Points    int64     `json:"points"`
	Level     int       `json:"level"`
	Unlocks   []string  `json:"unlocks"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func encodeProfile(p *progression.Profile) ([]byte, error) {
	unlocks := p.Unlocks
	if unlocks == nil {
		unlocks = []string{}
	}
	data, err := json.Marshal(cachedProfile{
		UserID:    p.UserID.String(),
		Points:    p.Points.Int64(),
		Level:     int(p.Level),
		Unlocks:   unlocks,
		Version:   p.Version,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return data, nil
}

func decodeProfile(data []byte) (*progression.Profile, error) {
	var c cachedProfile
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	p := &progression.Profile{
		UserID:    shared.UserID(c.UserID),
		Points:    shared.Points(c.Points),
		Level:     shared.Level(c.Level),
		Unlocks:   c.Unlocks,
		Version:   c.Version,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if p.Unlocks == nil {
		p.Unlocks = []string{}
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return p, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE CACHE
// ══════════════════════════════════════════════════════════════════════════════

// ProfileCache keeps recent profile snapshots in Redis.
// Every call goes through a circuit breaker; while it is open the cache
// reports misses and drops writes.
type ProfileCache struct {
	cache   *Cache
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
}

// NewProfileCache creates a profile cache. A nil breaker disables the guard.
func NewProfileCache(cache *Cache, ttl time.Duration, breaker *circuitbreaker.CircuitBreaker) *ProfileCache {
	if ttl <= 0 {
		ttl = TTLProfileCache
	}
	return &ProfileCache{cache: cache, ttl: ttl, breaker: breaker}
}

func (c *ProfileCache) run(ctx context.Context, fn func(context.Context) error) error {
	if c.breaker == nil {
		return fn(ctx)
	}
	return c.breaker.Execute(ctx, fn)
}

// Get returns the cached profile. found is false on a miss.
func (c *ProfileCache) Get(ctx context.Context, userID shared.UserID) (*progression.Profile, bool, error) {
	var data []byte
	err := c.run(ctx, func(ctx context.Context) error {
		raw, err := c.cache.Client().HGet(ctx, ProfileKey(userID.String()), "data").Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		data = raw
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if data == nil {
		return nil, false, nil
	}

	p, err := decodeProfile(data)
	if err != nil {
		// A corrupt entry is dropped so the next read repopulates it.
		_ = c.Invalidate(ctx, userID)
		return nil, false, err
	}
	if p.UserID != userID {
		return nil, false, fmt.Errorf("%w: entry for %q stored under %q", ErrCacheSerialization, p.UserID, userID)
	}
	return p, true, nil
}

// Put stores p if it is newer than the cached snapshot.
// stored reports whether the write replaced the entry.
func (c *ProfileCache) Put(ctx context.Context, p *progression.Profile) (stored bool, err error) {
	if p == nil || !p.UserID.IsValid() {
		return false, ErrCacheKeyEmpty
	}
	data, err := encodeProfile(p)
	if err != nil {
		return false, err
	}

	err = c.run(ctx, func(ctx context.Context) error {
		res, err := putIfNewer.Run(ctx, c.cache.Client(),
			[]string{ProfileKey(p.UserID.String())},
			strconv.FormatInt(p.Version, 10),
			data,
			c.ttl.Milliseconds(),
		).Int()
		stored = res == 1
		return err
	})
	return stored, err
}

// Invalidate removes a user's cached profile.
func (c *ProfileCache) Invalidate(ctx context.Context, userID shared.UserID) error {
	return c.run(ctx, func(ctx context.Context) error {
		return c.cache.Delete(ctx, ProfileKey(userID.String()))
	})
}

// Ping checks Redis reachability without touching the breaker.
func (c *ProfileCache) Ping(ctx context.Context) error {
	return c.cache.Ping(ctx)
}
