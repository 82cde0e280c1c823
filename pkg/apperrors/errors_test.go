package apperrors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	plain := NewValidationError("bad value")
	assert.Equal(t, "validation: bad value", plain.Error())

	wrapped := NewStoreError("write failed", errors.New("connection refused"))
	assert.Equal(t, "store: write failed (connection refused)", wrapped.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := NewStoreError("write failed", inner)
	assert.ErrorIs(t, err, inner)
}

func TestTypePredicates(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFoundError("game not found")))
	assert.False(t, IsNotFound(NewValidationError("bad value")))

	assert.True(t, IsRateLimited(NewRateLimitError("slow down", 0)))
	assert.True(t, IsStaleIdentity(NewStaleIdentityError("rejoin required")))
	assert.True(t, IsType(NewStoreError("write failed", nil), ErrorTypeStore))

	assert.False(t, IsNotFound(errors.New("plain error")))
	assert.False(t, IsNotFound(nil))
}

func TestTypePredicates_WrappedErrors(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NewNotFoundError("game not found"))
	assert.True(t, IsNotFound(err))
}

func TestCooldownRemaining(t *testing.T) {
	withCooldown := NewRateLimitError("please wait", 400*time.Millisecond)
	assert.Equal(t, 400*time.Millisecond, CooldownRemaining(withCooldown))

	capHit := NewRateLimitError("cap reached", 0)
	assert.Zero(t, CooldownRemaining(capHit))

	assert.Zero(t, CooldownRemaining(errors.New("plain error")))
	assert.Zero(t, CooldownRemaining(nil))
}
