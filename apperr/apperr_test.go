package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesKind(t *testing.T) {
	err := NotFound("equipment %s not found", "0201003")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, "equipment 0201003 not found", err.Error())
}

func TestWrappedKindSurvives(t *testing.T) {
	inner := Unavailable("equipment is held")
	wrapped := fmt.Errorf("allocate: %w", inner)

	assert.True(t, errors.Is(wrapped, ErrUnavailable))
	assert.Equal(t, KindUnavailable, KindOf(wrapped))
	assert.Equal(t, "equipment is held", Message(wrapped))
}

func TestPlainErrorIsInternal(t *testing.T) {
	err := errors.New("connection reset")
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "internal error", Message(err))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Wrap(KindConflict, cause, "code %s already exists", "0201001")

	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, ErrConflict))
	assert.Contains(t, err.Error(), "duplicate key")
}
