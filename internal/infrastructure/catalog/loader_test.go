package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
)

func TestDefault(t *testing.T) {
	defs, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "embedded", defs.Source)
	assert.Equal(t, 8, defs.Catalog.Len())
	assert.Equal(t, shared.Level(10), defs.Levels.MaxLevel())

	streak, ok := defs.Catalog.Get("first-streak")
	require.True(t, ok)
	assert.Equal(t, shared.Points(15), streak.PointsAwarded)
	assert.Equal(t, progression.EventCriteria{EventType: "streak.started"}, streak.Criteria)

	mentor, ok := defs.Catalog.Get("mentor")
	require.True(t, ok)
	all, ok := mentor.Criteria.(progression.AllCriteria)
	require.True(t, ok)
	assert.Len(t, all.Of, 2)
}

func TestParse_TOML(t *testing.T) {
	data := `
[[levels]]
min_points = 0
level = 1

[[levels]]
min_points = 100
level = 2

[[levels]]
min_points = 500
level = 3

[[achievements]]
id = "first-streak"
name = "On a Roll"
points = 15

[achievements.criteria]
type = "event"
event = "streak.started"

[[achievements]]
id = "big-session"
points = 5

[achievements.criteria]
type = "threshold"
event = "task.completed"
field = "duration_minutes"
min = 60.5
`
	defs, err := Parse([]byte(data), FormatTOML)
	require.NoError(t, err)

	assert.Equal(t, 2, defs.Catalog.Len())
	assert.Equal(t, shared.Level(1), defs.Levels.LevelFor(99))
	assert.Equal(t, shared.Level(2), defs.Levels.LevelFor(100))
	assert.Equal(t, shared.Level(2), defs.Levels.LevelFor(499))
	assert.Equal(t, shared.Level(3), defs.Levels.LevelFor(500))

	session, ok := defs.Catalog.Get("big-session")
	require.True(t, ok)
	assert.Equal(t, "big-session", session.Name, "name defaults to the ID")
	assert.Equal(t, progression.ThresholdCriteria{EventType: "task.completed", Field: "duration_minutes", Min: 60.5}, session.Criteria)
}

func TestParse_MissingLevelsUsesDefaultTable(t *testing.T) {
	defs, err := Parse([]byte(`achievements: []`), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, progression.DefaultLevelTable().Thresholds(), defs.Levels.Thresholds())
	assert.Equal(t, 0, defs.Catalog.Len())
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "non slug id",
			yaml: `achievements: [{id: "First Streak", criteria: {type: event, event: x}}]`,
		},
		{
			name: "duplicate id",
			yaml: `achievements:
  - {id: a, criteria: {type: event, event: x}}
  - {id: a, criteria: {type: event, event: y}}`,
		},
		{
			name: "unknown criteria",
			yaml: `achievements: [{id: a, criteria: {type: sometimes}}]`,
		},
		{
			name: "missing criteria",
			yaml: `achievements: [{id: a}]`,
		},
		{
			name: "fractional count",
			yaml: `achievements: [{id: a, criteria: {type: count, min: 1.5}}]`,
		},
		{
			name: "threshold without field",
			yaml: `achievements: [{id: a, criteria: {type: threshold, event: x}}]`,
		},
		{
			name: "levels not starting at zero",
			yaml: `levels: [{min_points: 10, level: 1}]`,
		},
		{
			name: "levels not increasing",
			yaml: `levels: [{min_points: 0, level: 1}, {min_points: 0, level: 2}]`,
		},
		{
			name: "malformed yaml",
			yaml: `achievements: [`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), FormatYAML)
			require.Error(t, err)
			assert.ErrorIs(t, err, shared.ErrInvalidConfig)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "catalog.yml")
	require.NoError(t, os.WriteFile(path, []byte(`achievements: [{id: solo, points: 1, criteria: {type: event, event: x}}]`), 0o600))

	defs, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, defs.Source)
	assert.Equal(t, 1, defs.Catalog.Len())

	defs, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "embedded", defs.Source)

	_, err = Load(filepath.Join(dir, "catalog.json"))
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, shared.ErrInvalidConfig)
}
