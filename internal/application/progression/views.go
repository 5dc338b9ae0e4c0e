package progression

import (
	"time"

	domain "github.com/alem-hub/progression-engine/internal/domain/progression"
)

// ══════════════════════════════════════════════════════════════════════════════
// VIEWS
// ══════════════════════════════════════════════════════════════════════════════

// ProfileView is the caller-facing shape of a profile.
type ProfileView struct {
	Points  int64    `json:"points"`
	Level   int      `json:"level"`
	Unlocks []string `json:"unlocks"`

	// NextLevelAt is the point total of the next level, nil at the top level.
	NextLevelAt *int64 `json:"nextLevelAt"`
}

// AchievementSummary describes one unlocked achievement.
type AchievementSummary struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Icon          string     `json:"icon"`
	PointsAwarded int64      `json:"pointsAwarded"`
	UnlockedAt    *time.Time `json:"unlockedAt,omitempty"`
}

// RecordResult is the outcome of RecordEvent.
type RecordResult struct {
	Profile ProfileView `json:"profile"`

	// Unlocked lists the achievements granted by this event, in grant order.
	Unlocked []AchievementSummary `json:"unlocked"`

	// Attempts is the number of read-evaluate-write cycles used.
	Attempts int `json:"-"`
}

func (s *Service) profileView(p *domain.Profile) ProfileView {
	unlocks := make([]string, len(p.Unlocks))
	copy(unlocks, p.Unlocks)

	// Level is derived here rather than trusted from storage.
	progress := s.levels.Progress(p.Points)
	view := ProfileView{
		Points:  p.Points.Int64(),
		Level:   progress.Level.Int(),
		Unlocks: unlocks,
	}
	if progress.HasNext {
		next := progress.NextMin.Int64()
		view.NextLevelAt = &next
	}
	return view
}

func summaryOf(def domain.AchievementDefinition) AchievementSummary {
	return AchievementSummary{
		ID:            def.ID,
		Name:          def.Name,
		Description:   def.Description,
		Icon:          def.Icon,
		PointsAwarded: def.PointsAwarded.Int64(),
	}
}

func summariesOf(defs []domain.AchievementDefinition) []AchievementSummary {
	out := make([]AchievementSummary, 0, len(defs))
	for _, def := range defs {
		out = append(out, summaryOf(def))
	}
	return out
}
