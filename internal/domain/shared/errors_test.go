package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsAndUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := StorageUnavailable("store", "GetOrCreate", cause)

	assert.True(t, errors.Is(err, ErrStorageUnavailable))
	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsStorageUnavailable(err))
	assert.True(t, IsRetryable(err))
	assert.False(t, IsValidation(err))
	assert.Equal(t, "store.GetOrCreate: storage unavailable: dial tcp: refused", err.Error())
}

func TestIsConflict_ThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("record: %w", ErrProfileConflict)

	assert.True(t, IsConflict(wrapped))
	assert.True(t, IsConflict(ErrRetriesExhausted))
	assert.False(t, IsStorageUnavailable(wrapped))
}

func TestValidation(t *testing.T) {
	err := Validation("progression", "Evaluate", "field %q must be numeric", "score")

	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), `field "score" must be numeric`)
	assert.True(t, IsValidation(ErrEmptyUserID))
}

func TestNewUserID(t *testing.T) {
	id, err := NewUserID("  learner-1 ")
	assert.NoError(t, err)
	assert.Equal(t, UserID("learner-1"), id)

	_, err = NewUserID("   ")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestPoints_Add(t *testing.T) {
	assert.Equal(t, Points(105), Points(90).Add(15))
	assert.Equal(t, Points(90), Points(90).Add(-5))

	_, err := NewPoints(-1)
	assert.ErrorIs(t, err, ErrNegativeValue)
}
