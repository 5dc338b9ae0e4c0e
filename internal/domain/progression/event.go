package progression

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/alem-hub/progression-engine/internal/domain/shared"
)

// MaxEventTypeLength bounds the event type tag.
const MaxEventTypeLength = 64

// ActivityEvent is a single reported unit of learner activity.
// Events are inputs only; the engine does not persist them.
type ActivityEvent struct {
	UserID     shared.UserID
	Type       string
	Payload    map[string]any
	OccurredAt time.Time
}

// Validate checks the envelope. Payload contents are checked by the criteria
// that consume the event type.
func (e ActivityEvent) Validate() error {
	if !e.UserID.IsValid() {
		return shared.ErrEmptyUserID
	}
	t := strings.TrimSpace(e.Type)
	if t == "" {
		return shared.ErrEmptyEventType
	}
	if len(t) > MaxEventTypeLength || t != e.Type {
		return shared.Validation("progression", "Validate", "event type %q is malformed", e.Type)
	}
	return nil
}

// Number reads a numeric payload field.
// A missing field or a non-numeric value is a validation error.
func (e ActivityEvent) Number(field string) (float64, error) {
	raw, ok := e.Payload[field]
	if !ok || raw == nil {
		return 0, shared.Validation("progression", "Evaluate",
			"payload field %q is required for event %q", field, e.Type)
	}

	var v float64
	switch n := raw.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int32:
		v = float64(n)
	case int64:
		v = float64(n)
	case uint:
		v = float64(n)
	case uint32:
		v = float64(n)
	case uint64:
		v = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, shared.Validation("progression", "Evaluate",
				"payload field %q must be numeric", field)
		}
		v = f
	default:
		return 0, shared.Validation("progression", "Evaluate",
			"payload field %q must be numeric, got %T", field, raw)
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, shared.Validation("progression", "Evaluate",
			"payload field %q must be finite", field)
	}
	return v, nil
}
