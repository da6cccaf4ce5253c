package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsAndMessages(t *testing.T) {
	err := NotFound("Student %s not found", "A1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Student A1 not found", Message(err))

	wrapped := fmt.Errorf("decide: %w", InvalidState("Transaction already processed"))
	assert.ErrorIs(t, wrapped, ErrInvalidState)
	assert.Equal(t, "Transaction already processed", Message(wrapped))
}

func TestServerHidesCause(t *testing.T) {
	cause := errors.New("pq: deadlock detected")
	err := Server(cause)

	assert.ErrorIs(t, err, ErrServer)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "server error", err.Error())
	assert.Equal(t, "Server error", Message(err))
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil))

	v := Validation("bad")
	assert.Same(t, v, Wrap(v))

	s := Server(errors.New("x"))
	assert.Same(t, s, Wrap(s))

	raw := errors.New("boom")
	assert.ErrorIs(t, Wrap(raw), ErrServer)
}
