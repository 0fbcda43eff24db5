package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{Validation("bad input"), http.StatusBadRequest},
		{InvalidState("already sent"), http.StatusBadRequest},
		{Unauthorized("not yours"), http.StatusForbidden},
		{NotFound("communication"), http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
		{Dependency("email", errors.New("timeout")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), "%v", tc.err)
	}
}

func TestHTTPStatusWrapped(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("while sending: %w", NotFound("communication"))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(err))
	assert.True(t, IsNotFound(err))
}

func TestDependencyUnwrap(t *testing.T) {
	t.Parallel()

	inner := errors.New("connection refused")
	err := Dependency("realtime", inner)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "realtime")
}

func TestValidationMessage(t *testing.T) {
	t.Parallel()

	err := Validation("recipients not found: %v", []string{"abc"})
	assert.Contains(t, err.Error(), "abc")
}
