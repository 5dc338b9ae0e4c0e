package progression

import (
	"time"

	"github.com/alem-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN EVENTS
// Published after a profile write commits.
// ══════════════════════════════════════════════════════════════════════════════

// AchievementUnlockedEvent is emitted once per newly granted achievement.
type AchievementUnlockedEvent struct {
	shared.BaseEvent
	AchievementID string `json:"achievement_id"`
	PointsAwarded int64  `json:"points_awarded"`
}

// Payload implements shared.Event.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.AggregateId,
		"achievement_id": e.AchievementID,
		"points_awarded": e.PointsAwarded,
	}
}

// NewAchievementUnlockedEvent creates an AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(p *Profile, def AchievementDefinition, at time.Time) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:     shared.NewBaseEvent(shared.EventAchievementUnlocked, p.UserID.String(), p.Version, at),
		AchievementID: def.ID,
		PointsAwarded: def.PointsAwarded.Int64(),
	}
}

// PointsAwardedEvent is emitted when a write raises the point total.
type PointsAwardedEvent struct {
	shared.BaseEvent
	OldPoints   int64  `json:"old_points"`
	NewPoints   int64  `json:"new_points"`
	SourceEvent string `json:"source_event"`
}

// Payload implements shared.Event.
func (e PointsAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.AggregateId,
		"old_points":   e.OldPoints,
		"new_points":   e.NewPoints,
		"delta":        e.NewPoints - e.OldPoints,
		"source_event": e.SourceEvent,
	}
}

// NewPointsAwardedEvent creates a PointsAwardedEvent.
func NewPointsAwardedEvent(before, after *Profile, sourceEvent string, at time.Time) PointsAwardedEvent {
	return PointsAwardedEvent{
		BaseEvent:   shared.NewBaseEvent(shared.EventPointsAwarded, after.UserID.String(), after.Version, at),
		OldPoints:   before.Points.Int64(),
		NewPoints:   after.Points.Int64(),
		SourceEvent: sourceEvent,
	}
}

// LevelUpEvent is emitted when a write moves the profile to a higher level.
type LevelUpEvent struct {
	shared.BaseEvent
	OldLevel int   `json:"old_level"`
	NewLevel int   `json:"new_level"`
	Points   int64 `json:"points"`
}

// Payload implements shared.Event.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.AggregateId,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
		"points":    e.Points,
	}
}

// NewLevelUpEvent creates a LevelUpEvent.
func NewLevelUpEvent(before, after *Profile, at time.Time) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventLevelUp, after.UserID.String(), after.Version, at),
		OldLevel:  before.Level.Int(),
		NewLevel:  after.Level.Int(),
		Points:    after.Points.Int64(),
	}
}

// EventsFor builds the events describing the transition before -> after.
func EventsFor(before, after *Profile, unlocked []AchievementDefinition, sourceEvent string, at time.Time) []shared.Event {
	events := make([]shared.Event, 0, len(unlocked)+2)
	for _, def := range unlocked {
		events = append(events, NewAchievementUnlockedEvent(after, def, at))
	}
	if after.Points > before.Points {
		events = append(events, NewPointsAwardedEvent(before, after, sourceEvent, at))
	}
	if after.Level > before.Level {
		events = append(events, NewLevelUpEvent(before, after, at))
	}
	return events
}
