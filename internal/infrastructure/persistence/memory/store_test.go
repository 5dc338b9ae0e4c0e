package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/alem-hub/progression-engine/pkg/timeutil"
)

var t0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func TestGetOrCreate_ConcurrentFirstAccess(t *testing.T) {
	s := NewStore(WithClock(timeutil.NewManualClock(t0)))
	ctx := context.Background()

	const n = 64
	var wg sync.WaitGroup
	results := make([]*progression.Profile, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := s.GetOrCreate(ctx, "fresh")
			assert.NoError(t, err)
			results[i] = p
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, s.Len())
	for _, p := range results {
		require.NotNil(t, p)
		assert.Equal(t, shared.Points(0), p.Points)
		assert.Equal(t, shared.Level(1), p.Level)
		assert.Empty(t, p.Unlocks)
		assert.Equal(t, int64(0), p.Version)
		assert.Equal(t, t0, p.CreatedAt)
	}
}

func TestCompareAndSwap(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	p, err := s.GetOrCreate(ctx, "u-1")
	require.NoError(t, err)

	next := p.Clone()
	next.Points = 10
	next.Unlocks = []string{"a"}
	require.NoError(t, s.CompareAndSwap(ctx, "u-1", p.Version, next))

	stale := p.Clone()
	stale.Points = 99
	err = s.CompareAndSwap(ctx, "u-1", p.Version, stale)
	assert.True(t, shared.IsConflict(err))

	got, err := s.GetOrCreate(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, shared.Points(10), got.Points)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, int64(1), s.Writes())
}

func TestCompareAndSwap_ReturnsCopies(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	p, _ := s.GetOrCreate(ctx, "u-1")
	p.Unlocks = append(p.Unlocks, "leaked")

	again, _ := s.GetOrCreate(ctx, "u-1")
	assert.Empty(t, again.Unlocks)
}

func TestCompareAndSwap_WrongUser(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	p, _ := s.GetOrCreate(ctx, "u-1")

	err := s.CompareAndSwap(ctx, "u-2", p.Version, p)
	assert.True(t, shared.IsValidation(err))
}

func TestCancelledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetOrCreate(ctx, "u-1")
	assert.True(t, shared.IsStorageUnavailable(err))
	assert.Equal(t, 0, s.Len())
}

func TestUnlockLog(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	p, _ := s.GetOrCreate(ctx, "u-1")
	next := p.Clone()
	next.Unlocks = []string{"a", "b"}
	require.NoError(t, s.CompareAndSwap(ctx, "u-1", 0, next))

	missing, err := s.FindUnaudited(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, missing, 2)

	require.NoError(t, s.Append(ctx, []progression.AchievementUnlock{
		{ID: "1", UserID: "u-1", AchievementID: "a", PointsAwarded: 5, UnlockedAt: t0},
	}))
	require.NoError(t, s.Append(ctx, []progression.AchievementUnlock{
		{ID: "2", UserID: "u-1", AchievementID: "a", PointsAwarded: 5, UnlockedAt: t0.Add(time.Hour)},
	}))

	rows, err := s.ListByUser(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0].ID)

	missing, err = s.FindUnaudited(ctx, 10)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "b", missing[0].AchievementID)

	empty, err := s.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
