package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_NilCause(t *testing.T) {
	assert.NoError(t, Wrap(Storage, nil, "whatever"))
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(Storage, cause, "save metadata")

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.True(t, Is(err, Storage))
	assert.False(t, Is(err, Input))
	assert.Contains(t, err.Error(), "storage")
	assert.Contains(t, err.Error(), "disk full")
}

// TestIs_ThroughWrapping finds the kind behind further fmt wrapping.
func TestIs_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(RateLimit, "throttled"))
	assert.True(t, Is(err, RateLimit))
}

func TestIs_PlainError(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), Service))
	assert.False(t, Is(nil, Service))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "rate-limit", RateLimit.String())
	assert.Equal(t, "consistency", Consistency.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
