package progression

import (
	"fmt"
	"sort"

	"github.com/alem-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL TABLE
// ══════════════════════════════════════════════════════════════════════════════

// LevelThreshold maps a minimum point total to a level.
type LevelThreshold struct {
	MinPoints shared.Points
	Level     shared.Level
}

// LevelTable is an immutable, ordered list of thresholds.
type LevelTable struct {
	thresholds []LevelThreshold
}

// NewLevelTable validates thresholds and builds a table.
// The first threshold must be (0, 1) and both fields must strictly increase.
func NewLevelTable(thresholds []LevelThreshold) (*LevelTable, error) {
	if len(thresholds) == 0 {
		return nil, levelTableError("at least one threshold is required")
	}
	if thresholds[0].MinPoints != 0 || thresholds[0].Level != shared.MinLevel {
		return nil, levelTableError("first threshold must be (0, 1)")
	}
	for i := 1; i < len(thresholds); i++ {
		prev, cur := thresholds[i-1], thresholds[i]
		if cur.MinPoints <= prev.MinPoints {
			return nil, levelTableError(fmt.Sprintf("threshold %d: min points %d must exceed %d", i, cur.MinPoints, prev.MinPoints))
		}
		if cur.Level <= prev.Level {
			return nil, levelTableError(fmt.Sprintf("threshold %d: level %d must exceed %d", i, cur.Level, prev.Level))
		}
	}

	owned := make([]LevelThreshold, len(thresholds))
	copy(owned, thresholds)
	return &LevelTable{thresholds: owned}, nil
}

func levelTableError(msg string) error {
	return shared.WrapError("levels", "Validate", shared.ErrInvalidConfig, msg, shared.ErrInvalidLevelTable)
}

// MustLevelTable is NewLevelTable for static tables known to be valid.
func MustLevelTable(thresholds []LevelThreshold) *LevelTable {
	t, err := NewLevelTable(thresholds)
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultLevelTable returns the built-in ten-level curve.
func DefaultLevelTable() *LevelTable {
	return MustLevelTable([]LevelThreshold{
		{MinPoints: 0, Level: 1},
		{MinPoints: 100, Level: 2},
		{MinPoints: 250, Level: 3},
		{MinPoints: 500, Level: 4},
		{MinPoints: 1000, Level: 5},
		{MinPoints: 2000, Level: 6},
		{MinPoints: 3500, Level: 7},
		{MinPoints: 5500, Level: 8},
		{MinPoints: 8000, Level: 9},
		{MinPoints: 12000, Level: 10},
	})
}

// LevelFor returns the level of the greatest threshold whose MinPoints <= points.
// It is total: negative input maps to the first level.
func (t *LevelTable) LevelFor(points shared.Points) shared.Level {
	return t.thresholds[t.indexFor(points)].Level
}

func (t *LevelTable) indexFor(points shared.Points) int {
	// First threshold strictly above points; the one before it applies.
	i := sort.Search(len(t.thresholds), func(i int) bool {
		return t.thresholds[i].MinPoints > points
	})
	if i == 0 {
		return 0
	}
	return i - 1
}

// LevelProgress describes where a point total sits inside its level.
type LevelProgress struct {
	Level      shared.Level
	CurrentMin shared.Points
	NextMin    shared.Points
	HasNext    bool
}

// Progress returns the level band containing points.
func (t *LevelTable) Progress(points shared.Points) LevelProgress {
	i := t.indexFor(points)
	lp := LevelProgress{
		Level:      t.thresholds[i].Level,
		CurrentMin: t.thresholds[i].MinPoints,
	}
	if i+1 < len(t.thresholds) {
		lp.NextMin = t.thresholds[i+1].MinPoints
		lp.HasNext = true
	}
	return lp
}

// Thresholds returns a copy of the table.
func (t *LevelTable) Thresholds() []LevelThreshold {
	out := make([]LevelThreshold, len(t.thresholds))
	copy(out, t.thresholds)
	return out
}

// MaxLevel returns the highest level in the table.
func (t *LevelTable) MaxLevel() shared.Level {
	return t.thresholds[len(t.thresholds)-1].Level
}
