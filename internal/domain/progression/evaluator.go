package progression

// ══════════════════════════════════════════════════════════════════════════════
// CRITERIA EVALUATOR
// ══════════════════════════════════════════════════════════════════════════════

// Evaluator decides which catalog entries an event newly unlocks.
// It is stateless and safe for concurrent use.
type Evaluator struct {
	catalog *Catalog
}

// NewEvaluator creates an evaluator over catalog.
func NewEvaluator(catalog *Catalog) *Evaluator {
	return &Evaluator{catalog: catalog}
}

// Catalog returns the catalog the evaluator walks.
func (ev *Evaluator) Catalog() *Catalog {
	return ev.catalog
}

// Evaluate returns the definitions that are not yet in profile.Unlocks and
// whose criteria hold for event.
//
// The event is first validated against every criteria in the catalog, so a
// malformed payload for a consumed event type fails even when the
// achievements that read it are already unlocked.
//
// Evaluation runs in passes. The first pass sees the snapshot as given. If it
// unlocks anything, the next pass sees the snapshot with those rewards
// applied, so point and count milestones reached by this event unlock in the
// same call. Within a pass, catalog order is kept. The result is a pure
// function of (catalog, profile, event).
func (ev *Evaluator) Evaluate(profile *Profile, event ActivityEvent) ([]AchievementDefinition, error) {
	defs := ev.catalog.defs

	for _, def := range defs {
		if err := def.Criteria.Validate(event); err != nil {
			return nil, err
		}
	}

	granted := make(map[string]struct{}, len(profile.Unlocks))
	for _, id := range profile.Unlocks {
		granted[id] = struct{}{}
	}

	view := profile.Clone()
	var unlocked []AchievementDefinition

	for {
		var pass []AchievementDefinition
		for _, def := range defs {
			if _, done := granted[def.ID]; done {
				continue
			}
			if def.Criteria.Matches(view, event) {
				pass = append(pass, def)
			}
		}
		if len(pass) == 0 {
			break
		}
		for _, def := range pass {
			granted[def.ID] = struct{}{}
			view.Unlocks = append(view.Unlocks, def.ID)
			view.Points = view.Points.Add(def.PointsAwarded)
		}
		unlocked = append(unlocked, pass...)
	}

	if unlocked == nil {
		unlocked = []AchievementDefinition{}
	}
	return unlocked, nil
}

// PointsFor sums the rewards of defs in order.
func PointsFor(defs []AchievementDefinition) int64 {
	var total int64
	for _, def := range defs {
		total += def.PointsAwarded.Int64()
	}
	return total
}
