package shared

import (
	"math"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// MaxUserIDLength bounds opaque user identifiers.
const MaxUserIDLength = 128

// UserID is the opaque identity of a learner, supplied by the boundary layer.
type UserID string

// IsValid checks that the ID is non-empty and within length bounds.
func (u UserID) IsValid() bool {
	return u != "" && len(u) <= MaxUserIDLength
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// NewUserID trims and validates an identifier.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.TrimSpace(id))
	if uid == "" {
		return "", ErrEmptyUserID
	}
	if !uid.IsValid() {
		return "", NewDomainError("shared", "NewUserID", ErrInvalidID, "user ID is too long")
	}
	return uid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Points Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Points is a non-negative cumulative point total.
type Points int64

// IsValid checks the value is non-negative.
func (p Points) IsValid() bool {
	return p >= 0
}

// Int64 returns the underlying value.
func (p Points) Int64() int64 {
	return int64(p)
}

// Add returns p+delta, saturating at math.MaxInt64. Negative deltas are ignored
// because point totals never decrease.
func (p Points) Add(delta Points) Points {
	if delta <= 0 {
		return p
	}
	if p > Points(math.MaxInt64)-delta {
		return Points(math.MaxInt64)
	}
	return p + delta
}

// NewPoints creates a Points value with validation.
func NewPoints(v int64) (Points, error) {
	if v < 0 {
		return 0, NewDomainError("shared", "NewPoints", ErrNegativeValue, "points cannot be negative")
	}
	return Points(v), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Level Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Level is a coarse tier derived from points.
type Level int

// MinLevel is the level of a fresh profile.
const MinLevel Level = 1

// IsValid checks the level is at least MinLevel.
func (l Level) IsValid() bool {
	return l >= MinLevel
}

// Int returns the underlying int value.
func (l Level) Int() int {
	return int(l)
}
