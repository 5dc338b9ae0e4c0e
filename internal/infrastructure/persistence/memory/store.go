// Package memory implements the progression repositories in process memory.
// It backs tests and single-process development runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/alem-hub/progression-engine/pkg/timeutil"
)

type unlockKey struct {
	userID        shared.UserID
	achievementID string
}

// Store implements progression.ProfileStore and progression.UnlockLog.
// All state sits behind one mutex; operations are short map lookups so
// per-user locking would not pay for itself.
type Store struct {
	mu       sync.RWMutex
	profiles map[shared.UserID]*progression.Profile
	unlocks  map[unlockKey]progression.AchievementUnlock
	clock    timeutil.Clock

	// writes counts successful CompareAndSwap calls.
	writes int64
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for timestamps.
func WithClock(c timeutil.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		profiles: make(map[shared.UserID]*progression.Profile),
		unlocks:  make(map[unlockKey]progression.AchievementUnlock),
		clock:    timeutil.SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE STORE
// ══════════════════════════════════════════════════════════════════════════════

// GetOrCreate implements progression.ProfileStore.
func (s *Store) GetOrCreate(ctx context.Context, userID shared.UserID) (*progression.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, shared.WrapError("store", "GetOrCreate", shared.ErrTimeout, "context done", err)
	}
	if !userID.IsValid() {
		return nil, shared.ErrEmptyUserID
	}

	s.mu.RLock()
	p, ok := s.profiles[userID]
	s.mu.RUnlock()
	if ok {
		return p.Clone(), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[userID]; ok {
		return p.Clone(), nil
	}
	p = progression.NewProfile(userID, s.clock.Now())
	s.profiles[userID] = p
	return p.Clone(), nil
}

// CompareAndSwap implements progression.ProfileStore.
func (s *Store) CompareAndSwap(ctx context.Context, userID shared.UserID, expectedVersion int64, next *progression.Profile) error {
	if err := ctx.Err(); err != nil {
		return shared.WrapError("store", "CompareAndSwap", shared.ErrTimeout, "context done", err)
	}
	if next == nil || next.UserID != userID {
		return shared.Validation("store", "CompareAndSwap", "profile does not belong to user %q", userID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.profiles[userID]
	if !ok || cur.Version != expectedVersion {
		return shared.ErrProfileConflict
	}

	stored := next.Clone()
	stored.Version = expectedVersion + 1
	stored.CreatedAt = cur.CreatedAt
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = s.clock.Now()
	}
	s.profiles[userID] = stored
	s.writes++
	return nil
}

// Get returns a copy of the stored profile without creating one.
func (s *Store) Get(userID shared.UserID) (*progression.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	return p.Clone(), ok
}

// Put overwrites a profile. Used to seed state.
func (s *Store) Put(p *progression.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = p.Clone()
}

// Len returns the number of stored profiles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}

// Writes returns the number of successful CompareAndSwap calls.
func (s *Store) Writes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Ping implements progression.HealthChecker.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// UNLOCK LOG
// ══════════════════════════════════════════════════════════════════════════════

// Append implements progression.UnlockLog.
func (s *Store) Append(ctx context.Context, unlocks []progression.AchievementUnlock) error {
	if err := ctx.Err(); err != nil {
		return shared.WrapError("store", "AppendUnlocks", shared.ErrTimeout, "context done", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range unlocks {
		key := unlockKey{userID: u.UserID, achievementID: u.AchievementID}
		if _, exists := s.unlocks[key]; exists {
			continue
		}
		s.unlocks[key] = u
	}
	return nil
}

// ListByUser implements progression.UnlockLog.
func (s *Store) ListByUser(ctx context.Context, userID shared.UserID) ([]progression.AchievementUnlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, shared.WrapError("store", "ListUnlocks", shared.ErrTimeout, "context done", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []progression.AchievementUnlock{}
	for key, u := range s.unlocks {
		if key.userID == userID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UnlockedAt.Equal(out[j].UnlockedAt) {
			return out[i].AchievementID < out[j].AchievementID
		}
		return out[i].UnlockedAt.Before(out[j].UnlockedAt)
	})
	return out, nil
}

// FindUnaudited implements progression.UnlockLog.
func (s *Store) FindUnaudited(ctx context.Context, limit int) ([]progression.UnauditedUnlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, shared.WrapError("store", "FindUnaudited", shared.ErrTimeout, "context done", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	userIDs := make([]shared.UserID, 0, len(s.profiles))
	for id := range s.profiles {
		userIDs = append(userIDs, id)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })

	var out []progression.UnauditedUnlock
	for _, id := range userIDs {
		p := s.profiles[id]
		for _, achievementID := range p.Unlocks {
			if _, ok := s.unlocks[unlockKey{userID: id, achievementID: achievementID}]; ok {
				continue
			}
			out = append(out, progression.UnauditedUnlock{
				UserID:           id,
				AchievementID:    achievementID,
				ProfileUpdatedAt: p.UpdatedAt,
			})
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

var (
	_ progression.ProfileStore = (*Store)(nil)
	_ progression.UnlockLog    = (*Store)(nil)
)
