package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError(t *testing.T) {
	err := NewDomainError("SOME_CODE", "something failed")
	assert.Equal(t, "something failed", err.Error())
	assert.Equal(t, "SOME_CODE", err.Code)
}

func TestErrorCode(t *testing.T) {
	t.Run("direct domain error", func(t *testing.T) {
		assert.Equal(t, "NOT_FOUND", ErrorCode(ErrNotFound))
	})

	t.Run("wrapped domain error", func(t *testing.T) {
		err := fmt.Errorf("loading cart: %w", ErrUnauthorized)
		assert.Equal(t, "UNAUTHORIZED", ErrorCode(err))
		assert.True(t, errors.Is(err, ErrUnauthorized))
	})

	t.Run("plain error has no code", func(t *testing.T) {
		assert.Empty(t, ErrorCode(errors.New("boom")))
	})
}

func TestDomainError_IsMatchesCode(t *testing.T) {
	specific := NewDomainError(ErrInvalidInput.Code, "Invalid fields: email")
	assert.True(t, errors.Is(fmt.Errorf("login: %w", specific), ErrInvalidInput))
	assert.False(t, errors.Is(specific, ErrNotFound))
}
