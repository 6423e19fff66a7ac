package domainerrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	t.Run("returns the code of a wrapped domain error", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeCooldownActive, "wait"))
		assert.Equal(t, CodeCooldownActive, CodeOf(err))
		assert.True(t, HasCode(err, CodeCooldownActive))
	})

	t.Run("plain errors are internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
	})
}

func TestErrorsIsByCode(t *testing.T) {
	err := Wrap(context.DeadlineExceeded, CodeTimeout, "transaction aborted")

	assert.ErrorIs(t, err, &Error{Code: CodeTimeout})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, &Error{Code: CodeInternal})
	assert.Contains(t, err.Error(), "transaction aborted")
}
