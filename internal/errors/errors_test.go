package errors

import (
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs_MatchesByCode(t *testing.T) {
	err := fmt.Errorf("capture: %w", Validationf("image %d: not an image", 2))

	assert.True(t, Is(err, ErrValidation))
	assert.False(t, Is(err, ErrNotFound))
	assert.Equal(t, "capture: image 2: not an image", err.Error())
}

func TestWrap_KeepsCause(t *testing.T) {
	err := Wrap(io.ErrUnexpectedEOF, CodeUnavailable, "reading staged image")

	assert.Equal(t, "reading staged image: unexpected EOF", err.Error())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, http.StatusServiceUnavailable, err.HTTPStatus())
}

func TestCodeStatusMapping(t *testing.T) {
	for _, c := range []Code{CodeNotFound, CodeValidation, CodeConflict, CodeRateLimited, CodeUnavailable, CodeInternal} {
		assert.Equal(t, c, CodeForStatus(c.HTTPStatus()), c)
	}
	assert.Equal(t, http.StatusConflict, CodeAlreadyExists.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, Code("BOGUS").HTTPStatus())
	assert.Equal(t, CodeValidation, CodeForStatus(http.StatusUnprocessableEntity))
	assert.Equal(t, CodeInternal, CodeForStatus(http.StatusTeapot))
}

func TestValidationWithDetails(t *testing.T) {
	err := ValidationWithDetails("validation failed", map[string]string{"id": "required"})
	assert.Equal(t, map[string]string{"id": "required"}, err.Details)
	assert.ErrorIs(t, err, ErrValidation)

	var coded *Error
	assert.True(t, As(NotFoundf("clip %s", "c-1"), &coded))
	assert.Equal(t, "clip c-1", coded.Message)
}
