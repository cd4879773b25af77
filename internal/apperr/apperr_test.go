package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusAndTag(t *testing.T) {
	tests := []struct {
		err    *Error
		status int
		tag    string
	}{
		{AuthMissing("No token provided"), http.StatusUnauthorized, "Unauthorized"},
		{AuthRejected(errors.New("token expired")), http.StatusForbidden, "Forbidden"},
		{BadRequest("bad %s", "field"), http.StatusBadRequest, "Bad request"},
		{NotFound("record not found"), http.StatusNotFound, "Not found"},
		{Storage(errors.New("connection refused")), http.StatusInternalServerError, "Internal server error"},
		{Unavailable("calendar disabled"), http.StatusServiceUnavailable, "Service unavailable"},
		{&Error{Kind: KindRateLimited}, http.StatusTooManyRequests, "Too many requests"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, tt.err.Status(), tt.tag)
		assert.Equal(t, tt.tag, tt.err.Tag())
	}
}

func TestAuthRejectedKeepsProviderMessage(t *testing.T) {
	err := AuthRejected(errors.New("signature is invalid"))

	assert.Equal(t, "Invalid or expired token", err.Message)
	assert.Equal(t, "signature is invalid", err.Details)
}

func TestFromAndIs(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NotFound("gone"))

	assert.True(t, Is(wrapped, KindNotFound))
	assert.False(t, Is(wrapped, KindStorage))
	assert.Equal(t, KindNotFound, From(wrapped).Kind)

	plain := From(errors.New("boom"))
	assert.Equal(t, KindInternal, plain.Kind)
	assert.Equal(t, "Something went wrong", plain.Message)
}
