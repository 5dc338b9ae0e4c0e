package progression

import (
	"fmt"
	"strings"

	"github.com/alem-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// AchievementDefinition is a named milestone with unlock criteria and a reward.
type AchievementDefinition struct {
	// ID is stable across deploys. Unlocks reference it by value.
	ID          string
	Name        string
	Description string
	Icon        string

	// PointsAwarded is granted once, on first unlock.
	PointsAwarded shared.Points

	Criteria Criteria
}

// Catalog is the immutable registry of achievement definitions.
// Iteration follows registration order.
type Catalog struct {
	defs  []AchievementDefinition
	index map[string]int
}

// NewCatalog validates defs and builds a catalog in the given order.
func NewCatalog(defs ...AchievementDefinition) (*Catalog, error) {
	c := &Catalog{
		defs:  make([]AchievementDefinition, 0, len(defs)),
		index: make(map[string]int, len(defs)),
	}
	for _, def := range defs {
		if err := c.register(def); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustCatalog is NewCatalog for static catalogs known to be valid.
func MustCatalog(defs ...AchievementDefinition) *Catalog {
	c, err := NewCatalog(defs...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) register(def AchievementDefinition) error {
	if def.ID == "" || strings.TrimSpace(def.ID) != def.ID || strings.ContainsAny(def.ID, " \t\n") {
		return shared.WrapError("catalog", "Register", shared.ErrInvalidConfig,
			fmt.Sprintf("invalid achievement ID %q", def.ID), shared.ErrInvalidAchievementID)
	}
	if _, exists := c.index[def.ID]; exists {
		return shared.WrapError("catalog", "Register", shared.ErrInvalidConfig,
			fmt.Sprintf("achievement %q registered twice", def.ID), shared.ErrDuplicateAchievement)
	}
	if def.PointsAwarded < 0 {
		return shared.Validation("catalog", "Register", "achievement %s: points cannot be negative", def.ID)
	}
	if err := validateCriteria(def.Criteria); err != nil {
		return shared.WrapError("catalog", "Register", shared.ErrInvalidConfig, "achievement "+def.ID, err)
	}

	c.index[def.ID] = len(c.defs)
	c.defs = append(c.defs, def)
	return nil
}

// Get returns the definition with the given ID.
func (c *Catalog) Get(id string) (AchievementDefinition, bool) {
	i, ok := c.index[id]
	if !ok {
		return AchievementDefinition{}, false
	}
	return c.defs[i], true
}

// All returns every definition in registration order.
func (c *Catalog) All() []AchievementDefinition {
	out := make([]AchievementDefinition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	return len(c.defs)
}

// Resolve maps IDs to definitions, keeping the order of ids.
// IDs that are not in the catalog are returned separately.
func (c *Catalog) Resolve(ids []string) (found []AchievementDefinition, unknown []string) {
	found = make([]AchievementDefinition, 0, len(ids))
	for _, id := range ids {
		if def, ok := c.Get(id); ok {
			found = append(found, def)
		} else {
			unknown = append(unknown, id)
		}
	}
	return found, unknown
}
