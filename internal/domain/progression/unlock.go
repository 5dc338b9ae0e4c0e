package progression

import (
	"time"

	"github.com/alem-hub/progression-engine/internal/domain/shared"
)

// AchievementUnlock is the immutable audit fact that a user earned an achievement.
// At most one exists per (UserID, AchievementID).
type AchievementUnlock struct {
	ID            string
	UserID        shared.UserID
	AchievementID string
	PointsAwarded shared.Points
	UnlockedAt    time.Time
}

// UnauditedUnlock is an achievement present in a profile that has no audit row.
type UnauditedUnlock struct {
	UserID           shared.UserID
	AchievementID    string
	ProfileUpdatedAt time.Time
}
