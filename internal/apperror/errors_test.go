package apperror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, Status(Validation("title is required")))
	assert.Equal(t, http.StatusForbidden, Status(Forbidden("not your notice")))
	assert.Equal(t, http.StatusNotFound, Status(NotFound("notice not found")))
	assert.Equal(t, http.StatusInternalServerError, Status(Internal(errors.New("mongo: connection reset"))))
	assert.Equal(t, http.StatusInternalServerError, Status(errors.New("unclassified")))
}

func TestInternalDetailDoesNotLeak(t *testing.T) {
	cause := errors.New("mongo: connection reset")
	err := Internal(cause)

	assert.Equal(t, "Server error", ClientMessage(err))
	assert.NotContains(t, ClientMessage(err), "mongo")
	// The full chain stays available for logging.
	assert.Contains(t, err.Error(), "mongo: connection reset")
	assert.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestClientMessagePassesThroughClassifiedText(t *testing.T) {
	assert.Equal(t, "title is required", ClientMessage(Validation("title is required")))
	assert.Equal(t, "notice not found", ClientMessage(NotFound("notice not found")))
}

func TestClientMessageUnclassified(t *testing.T) {
	assert.Equal(t, "Server error", ClientMessage(errors.New("raw failure")))
}

func TestErrorIsMatchesOnlyOwnKind(t *testing.T) {
	err := Forbidden("admins only")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrNotFound)
}
