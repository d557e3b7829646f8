package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("direct code", func(t *testing.T) {
		err := New(CodeNotFound, "shelter not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeInternal))
	})

	t.Run("wrapped by fmt", func(t *testing.T) {
		err := fmt.Errorf("load: %w", New(CodeConflict, "taken"))
		assert.True(t, HasCode(err, CodeConflict))
	})

	t.Run("nested domain errors", func(t *testing.T) {
		inner := New(CodeNotFound, "missing")
		outer := Wrap(inner, CodeInternal, "failed")
		assert.True(t, HasCode(outer, CodeInternal))
		assert.True(t, HasCode(outer, CodeNotFound))
	})

	t.Run("plain error", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}

func TestIllegalTransition(t *testing.T) {
	err := IllegalTransition("rescue operation", "en_route", "dispatch")

	require.True(t, HasCode(err, CodePreconditionFailed))
	assert.Contains(t, err.Error(), `"en_route"`)
	assert.Contains(t, err.Error(), "dispatch")
	assert.Equal(t, "en_route", err.Details["current_status"])
	assert.Equal(t, "dispatch", err.Details["action"])
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, CodeInternal, "failed to load call")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to load call: connection reset", err.Error())
}
