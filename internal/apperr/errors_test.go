package apperr

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConflictMatchesValidationAndConflict(t *testing.T) {
	err := Conflict("username or email already taken", sql.ErrTxDone)

	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, sql.ErrTxDone)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "username or email already taken", Message(err, "x"))
}

func TestConflictWithoutCause(t *testing.T) {
	err := Conflict("taken", nil)

	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStorageKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Storage("insert employee", cause)

	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestMessageFallback(t *testing.T) {
	assert.Equal(t, "fallback", Message(errors.New("raw"), "fallback"))
	assert.Equal(t, "employee 7 not found", Message(NotFound("employee 7 not found"), "fallback"))
}
