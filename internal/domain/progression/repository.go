package progression

import (
	"context"

	"github.com/alem-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implemented in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// ProfileStore is the durable per-user profile record.
type ProfileStore interface {
	// GetOrCreate returns the profile for userID, creating the zero-state
	// profile atomically if none exists. Concurrent first access for the same
	// user yields a single stored profile.
	GetOrCreate(ctx context.Context, userID shared.UserID) (*Profile, error)

	// CompareAndSwap replaces the stored profile with next if its version
	// still equals expectedVersion. The stored version becomes
	// expectedVersion+1. Returns an error matching shared.ErrConflict when
	// another write committed first. The write is all or nothing.
	CompareAndSwap(ctx context.Context, userID shared.UserID, expectedVersion int64, next *Profile) error
}

// UnlockLog is the append-only audit of unlocks.
type UnlockLog interface {
	// Append records unlocks. Rows that already exist for the same
	// (user, achievement) are left untouched.
	Append(ctx context.Context, unlocks []AchievementUnlock) error

	// ListByUser returns a user's audit rows ordered by unlock time.
	ListByUser(ctx context.Context, userID shared.UserID) ([]AchievementUnlock, error)

	// FindUnaudited returns up to limit profile unlocks that have no audit row.
	FindUnaudited(ctx context.Context, limit int) ([]UnauditedUnlock, error)
}

// HealthChecker is implemented by stores that can report readiness.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
