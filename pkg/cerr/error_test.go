package cerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOfWalksWrappedErrors(t *testing.T) {
	base := NewError(NotFound, "chore dishes not found", nil)
	wrapped := fmt.Errorf("loading instance: %w", base)

	assert.Equal(t, NotFound, CodeOf(wrapped))
	assert.Equal(t, "chore dishes not found", MessageOf(wrapped))
	assert.True(t, IsCode(wrapped, NotFound))
	assert.False(t, IsCode(wrapped, Internal))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, Unknown, CodeOf(errors.New("boom")))
	assert.Equal(t, OK, CodeOf(nil))
}

func TestUnwrapPreservesSentinels(t *testing.T) {
	sentinel := errors.New("already claimed")
	err := NewError(AlreadyExists, "chore dishes is already claimed", sentinel)
	assert.ErrorIs(t, err, sentinel)
}

func TestStackCapturedOnlyForSevereCodes(t *testing.T) {
	assert.NotEmpty(t, NewError(Internal, "boom", nil).Stack)
	assert.Empty(t, NewError(InvalidArgument, "bad input", nil).Stack)
}

func TestHTTPCodeMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, InvalidArgument.HTTPCode())
	assert.Equal(t, http.StatusNotFound, NotFound.HTTPCode())
	assert.Equal(t, http.StatusConflict, AlreadyExists.HTTPCode())
	assert.Equal(t, http.StatusPreconditionFailed, FailedPrecondition.HTTPCode())
	assert.Equal(t, http.StatusInternalServerError, Internal.HTTPCode())
}
