package progression

import (
	"github.com/alem-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CRITERIA
// ══════════════════════════════════════════════════════════════════════════════

// Criteria decides whether an achievement is earned.
// Implementations must only look at the profile snapshot and the event.
type Criteria interface {
	// Kind returns the tag used in catalog files.
	Kind() string

	// Validate checks the payload of events this criteria consumes.
	// Events of other types are ignored and return nil.
	Validate(event ActivityEvent) error

	// Matches reports whether the criteria holds. It is only called for
	// events that passed Validate.
	Matches(profile *Profile, event ActivityEvent) bool
}

// Criteria kinds.
const (
	KindEvent     = "event"
	KindThreshold = "threshold"
	KindPoints    = "points"
	KindCount     = "count"
	KindAll       = "all"
)

// ─────────────────────────────────────────────────────────────────────────────
// event
// ─────────────────────────────────────────────────────────────────────────────

// EventCriteria holds when an event of EventType is reported.
type EventCriteria struct {
	EventType string
}

func (c EventCriteria) Kind() string { return KindEvent }

func (c EventCriteria) Validate(ActivityEvent) error { return nil }

func (c EventCriteria) Matches(_ *Profile, event ActivityEvent) bool {
	return event.Type == c.EventType
}

// ─────────────────────────────────────────────────────────────────────────────
// threshold
// ─────────────────────────────────────────────────────────────────────────────

// ThresholdCriteria holds when an event of EventType carries a numeric
// payload Field of at least Min. Field is required on such events.
type ThresholdCriteria struct {
	EventType string
	Field     string
	Min       float64
}

func (c ThresholdCriteria) Kind() string { return KindThreshold }

func (c ThresholdCriteria) Validate(event ActivityEvent) error {
	if event.Type != c.EventType {
		return nil
	}
	_, err := event.Number(c.Field)
	return err
}

func (c ThresholdCriteria) Matches(_ *Profile, event ActivityEvent) bool {
	if event.Type != c.EventType {
		return false
	}
	v, err := event.Number(c.Field)
	return err == nil && v >= c.Min
}

// ─────────────────────────────────────────────────────────────────────────────
// points / count
// ─────────────────────────────────────────────────────────────────────────────

// PointsCriteria holds when the profile has at least Min points.
type PointsCriteria struct {
	Min shared.Points
}

func (c PointsCriteria) Kind() string { return KindPoints }

func (c PointsCriteria) Validate(ActivityEvent) error { return nil }

func (c PointsCriteria) Matches(profile *Profile, _ ActivityEvent) bool {
	return profile.Points >= c.Min
}

// CountCriteria holds when the profile has at least Min unlocks.
type CountCriteria struct {
	Min int
}

func (c CountCriteria) Kind() string { return KindCount }

func (c CountCriteria) Validate(ActivityEvent) error { return nil }

func (c CountCriteria) Matches(profile *Profile, _ ActivityEvent) bool {
	return profile.UnlockCount() >= c.Min
}

// ─────────────────────────────────────────────────────────────────────────────
// all
// ─────────────────────────────────────────────────────────────────────────────

// AllCriteria holds when every nested criteria holds.
type AllCriteria struct {
	Of []Criteria
}

func (c AllCriteria) Kind() string { return KindAll }

func (c AllCriteria) Validate(event ActivityEvent) error {
	for _, nested := range c.Of {
		if err := nested.Validate(event); err != nil {
			return err
		}
	}
	return nil
}

func (c AllCriteria) Matches(profile *Profile, event ActivityEvent) bool {
	if len(c.Of) == 0 {
		return false
	}
	for _, nested := range c.Of {
		if !nested.Matches(profile, event) {
			return false
		}
	}
	return true
}

// validateCriteria checks a criteria tree built from configuration.
func validateCriteria(c Criteria) error {
	switch v := c.(type) {
	case nil:
		return shared.Validation("catalog", "Register", "criteria is required")
	case EventCriteria:
		if v.EventType == "" {
			return shared.Validation("catalog", "Register", "event criteria needs an event type")
		}
	case ThresholdCriteria:
		if v.EventType == "" || v.Field == "" {
			return shared.Validation("catalog", "Register", "threshold criteria needs an event type and a field")
		}
	case PointsCriteria:
		if v.Min < 0 {
			return shared.Validation("catalog", "Register", "points criteria minimum cannot be negative")
		}
	case CountCriteria:
		if v.Min < 1 {
			return shared.Validation("catalog", "Register", "count criteria minimum must be positive")
		}
	case AllCriteria:
		if len(v.Of) == 0 {
			return shared.Validation("catalog", "Register", "all criteria needs at least one nested criteria")
		}
		for _, nested := range v.Of {
			if err := validateCriteria(nested); err != nil {
				return err
			}
		}
	}
	return nil
}
