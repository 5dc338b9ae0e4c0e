package progression

import (
	"time"

	"github.com/alem-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Profile is a learner's progression record.
// One profile exists per user. It is created lazily with zero points at level 1.
type Profile struct {
	UserID shared.UserID

	// Points never decrease over the lifetime of a profile.
	Points shared.Points

	// Level is a cached copy of LevelTable.LevelFor(Points).
	Level shared.Level

	// Unlocks lists granted achievement IDs in unlock order, without duplicates.
	Unlocks []string

	// Version is incremented by every successful CompareAndSwap.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProfile returns the zero-state profile for userID.
func NewProfile(userID shared.UserID, now time.Time) *Profile {
	return &Profile{
		UserID:    userID,
		Points:    0,
		Level:     shared.MinLevel,
		Unlocks:   []string{},
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.Unlocks = make([]string, len(p.Unlocks))
	copy(c.Unlocks, p.Unlocks)
	return &c
}

// HasUnlocked reports whether the achievement was already granted.
func (p *Profile) HasUnlocked(achievementID string) bool {
	for _, id := range p.Unlocks {
		if id == achievementID {
			return true
		}
	}
	return false
}

// UnlockCount returns the number of granted achievements.
func (p *Profile) UnlockCount() int {
	return len(p.Unlocks)
}

// Apply returns the profile that results from granting defs.
// The receiver is not modified. Definitions already unlocked are skipped, so
// applying the same set twice grants points once. The level is recomputed
// from the new point total and the version advances by one.
func (p *Profile) Apply(defs []AchievementDefinition, table *LevelTable, now time.Time) *Profile {
	next := p.Clone()
	for _, def := range defs {
		if next.HasUnlocked(def.ID) {
			continue
		}
		next.Unlocks = append(next.Unlocks, def.ID)
		next.Points = next.Points.Add(def.PointsAwarded)
	}
	next.Level = table.LevelFor(next.Points)
	next.Version = p.Version + 1
	next.UpdatedAt = now
	return next
}

// Validate checks the structural invariants of a stored profile.
func (p *Profile) Validate() error {
	if !p.UserID.IsValid() {
		return shared.ErrEmptyUserID
	}
	if !p.Points.IsValid() {
		return shared.NewDomainError("progression", "Validate", shared.ErrNegativeValue, "points cannot be negative")
	}
	if !p.Level.IsValid() {
		return shared.NewDomainError("progression", "Validate", shared.ErrValueOutOfRange, "level must be at least 1")
	}
	seen := make(map[string]struct{}, len(p.Unlocks))
	for _, id := range p.Unlocks {
		if _, dup := seen[id]; dup {
			return shared.NewDomainError("progression", "Validate", shared.ErrInvalidInput, "duplicate unlock "+id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
