package progression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progression-engine/internal/domain/shared"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog(
		AchievementDefinition{
			ID:            "first-lesson",
			PointsAwarded: 10,
			Criteria:      EventCriteria{EventType: "lesson_completed"},
		},
		AchievementDefinition{
			ID:            "first-streak",
			PointsAwarded: 15,
			Criteria:      ThresholdCriteria{EventType: "streak", Field: "days", Min: 3},
		},
		AchievementDefinition{
			ID:            "high-score",
			PointsAwarded: 25,
			Criteria:      ThresholdCriteria{EventType: "game_finished", Field: "score", Min: 90},
		},
		AchievementDefinition{
			ID:            "century",
			PointsAwarded: 5,
			Criteria:      PointsCriteria{Min: 100},
		},
	)
	require.NoError(t, err)
	return c
}

func event(typ string, payload map[string]any) ActivityEvent {
	return ActivityEvent{UserID: "u-1", Type: typ, Payload: payload}
}

func ids(defs []AchievementDefinition) []string {
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.ID)
	}
	return out
}

func TestEvaluate_SingleUnlock(t *testing.T) {
	ev := NewEvaluator(testCatalog(t))
	profile := NewProfile("u-1", now)

	got, err := ev.Evaluate(profile, event("lesson_completed", nil))

	require.NoError(t, err)
	assert.Equal(t, []string{"first-lesson"}, ids(got))
}

func TestEvaluate_ExcludesAlreadyUnlocked(t *testing.T) {
	ev := NewEvaluator(testCatalog(t))
	profile := NewProfile("u-1", now)
	profile.Unlocks = []string{"first-lesson"}

	got, err := ev.Evaluate(profile, event("lesson_completed", nil))

	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestEvaluate_UnknownEventTypeIsNoop(t *testing.T) {
	ev := NewEvaluator(testCatalog(t))

	got, err := ev.Evaluate(NewProfile("u-1", now), event("page_viewed", map[string]any{"x": "y"}))

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEvaluate_ThresholdBelowMin(t *testing.T) {
	ev := NewEvaluator(testCatalog(t))

	got, err := ev.Evaluate(NewProfile("u-1", now), event("streak", map[string]any{"days": 2}))

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEvaluate_MalformedPayload(t *testing.T) {
	ev := NewEvaluator(testCatalog(t))

	tests := []struct {
		name    string
		payload map[string]any
	}{
		{"missing field", map[string]any{}},
		{"wrong type", map[string]any{"days": "three"}},
		{"nil value", map[string]any{"days": nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ev.Evaluate(NewProfile("u-1", now), event("streak", tt.payload))
			assert.True(t, shared.IsValidation(err), "got %v", err)
		})
	}
}

func TestEvaluate_MalformedPayloadAfterUnlockStillFails(t *testing.T) {
	ev := NewEvaluator(testCatalog(t))
	profile := NewProfile("u-1", now)
	profile.Unlocks = []string{"first-streak"}

	_, err := ev.Evaluate(profile, event("streak", map[string]any{"days": true}))

	assert.True(t, shared.IsValidation(err))
}

func TestEvaluate_CascadesMilestonesReachedByThisEvent(t *testing.T) {
	ev := NewEvaluator(testCatalog(t))
	profile := NewProfile("u-1", now)
	profile.Points = 90

	got, err := ev.Evaluate(profile, event("streak", map[string]any{"days": 3.0}))

	require.NoError(t, err)
	assert.Equal(t, []string{"first-streak", "century"}, ids(got))
	assert.EqualValues(t, 20, PointsFor(got))
}

func TestEvaluate_DeterministicOrder(t *testing.T) {
	c := MustCatalog(
		AchievementDefinition{ID: "b", PointsAwarded: 1, Criteria: EventCriteria{EventType: "x"}},
		AchievementDefinition{ID: "a", PointsAwarded: 2, Criteria: EventCriteria{EventType: "x"}},
		AchievementDefinition{ID: "c", PointsAwarded: 3, Criteria: AllCriteria{Of: []Criteria{
			EventCriteria{EventType: "x"},
			CountCriteria{Min: 1},
		}}},
	)
	ev := NewEvaluator(c)
	profile := NewProfile("u-1", now)

	for i := 0; i < 20; i++ {
		got, err := ev.Evaluate(profile, event("x", nil))
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a", "c"}, ids(got))
	}
	assert.Empty(t, profile.Unlocks, "evaluation must not mutate the snapshot")
}

func TestCatalog_Validation(t *testing.T) {
	_, err := NewCatalog(
		AchievementDefinition{ID: "dup", Criteria: EventCriteria{EventType: "x"}},
		AchievementDefinition{ID: "dup", Criteria: EventCriteria{EventType: "y"}},
	)
	assert.ErrorIs(t, err, shared.ErrDuplicateAchievement)

	_, err = NewCatalog(AchievementDefinition{ID: "has space", Criteria: EventCriteria{EventType: "x"}})
	assert.ErrorIs(t, err, shared.ErrInvalidAchievementID)

	_, err = NewCatalog(AchievementDefinition{ID: "no-criteria"})
	assert.ErrorIs(t, err, shared.ErrInvalidConfig)

	_, err = NewCatalog(AchievementDefinition{ID: "bad-threshold", Criteria: ThresholdCriteria{EventType: "x"}})
	assert.ErrorIs(t, err, shared.ErrInvalidConfig)
}

func TestCatalog_Resolve(t *testing.T) {
	c := testCatalog(t)

	found, unknown := c.Resolve([]string{"high-score", "retired", "first-lesson"})

	assert.Equal(t, []string{"high-score", "first-lesson"}, ids(found))
	assert.Equal(t, []string{"retired"}, unknown)
	assert.Equal(t, 4, c.Len())
}

func TestProfile_Apply(t *testing.T) {
	table := MustLevelTable([]LevelThreshold{{0, 1}, {100, 2}, {500, 3}})
	c := testCatalog(t)
	streak, _ := c.Get("first-streak")

	before := NewProfile("u-1", now)
	before.Points = 90

	after := before.Apply([]AchievementDefinition{streak}, table, now.Add(time.Second))

	assert.Equal(t, shared.Points(105), after.Points)
	assert.Equal(t, shared.Level(2), after.Level)
	assert.Equal(t, []string{"first-streak"}, after.Unlocks)
	assert.Equal(t, int64(1), after.Version)
	assert.Equal(t, now.Add(time.Second), after.UpdatedAt)

	assert.Equal(t, shared.Points(90), before.Points, "receiver is unchanged")
	assert.Empty(t, before.Unlocks)

	again := after.Apply([]AchievementDefinition{streak}, table, now)
	assert.Equal(t, shared.Points(105), again.Points)
	assert.Equal(t, []string{"first-streak"}, again.Unlocks)
	assert.NoError(t, again.Validate())
}

func TestEventsFor(t *testing.T) {
	table := MustLevelTable([]LevelThreshold{{0, 1}, {100, 2}})
	c := testCatalog(t)
	streak, _ := c.Get("first-streak")

	before := NewProfile("u-1", now)
	before.Points = 90
	after := before.Apply([]AchievementDefinition{streak}, table, now)

	events := EventsFor(before, after, []AchievementDefinition{streak}, "streak", now)

	require.Len(t, events, 3)
	assert.Equal(t, shared.EventAchievementUnlocked, events[0].EventType())
	assert.Equal(t, shared.EventPointsAwarded, events[1].EventType())
	assert.Equal(t, shared.EventLevelUp, events[2].EventType())
	assert.Equal(t, "first-streak", events[0].Payload()["achievement_id"])
	assert.Equal(t, 2, events[2].Payload()["new_level"])
}
