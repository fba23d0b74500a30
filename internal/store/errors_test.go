package store_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clipbox/clipbox/internal/store"
)

func TestError_Error(t *testing.T) {
	err := &store.Error{
		Code:    http.StatusNotFound,
		Message: "not found",
	}

	assert.Equal(t, "not found", err.Error())
}

func TestError_ErrorWithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := &store.Error{
		Code:    http.StatusNotFound,
		Message: "not found",
		Err:     cause,
	}

	assert.Contains(t, err.Error(), "not found")
	assert.Contains(t, err.Error(), "underlying error")
	assert.Equal(t, cause, err.Unwrap())
}

func TestError_HTTPCode(t *testing.T) {
	assert.Equal(t, http.StatusConflict, store.ErrDuplicateName.HTTPCode())
	assert.Equal(t, http.StatusBadRequest, store.ErrInvalidInput.HTTPCode())
}

func TestError_WithMessage(t *testing.T) {
	modified := store.ErrNotFound.WithMessage("tag missing")

	assert.Equal(t, "tag missing", modified.Message)
	assert.Equal(t, http.StatusNotFound, modified.Code)
	assert.NotErrorIs(t, modified, store.ErrNotFound)
}

func TestError_WithCauseStillMatchesSentinel(t *testing.T) {
	cause := errors.New("UNIQUE constraint failed: tags.name_key")
	err := fmt.Errorf("create tag: %w", store.ErrDuplicateName.WithCause(cause))

	assert.ErrorIs(t, err, store.ErrDuplicateName)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, store.ErrAlreadyExists)
}
