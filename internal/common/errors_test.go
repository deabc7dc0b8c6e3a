package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid", NewAppError("INVALID_INPUT", "bad", ErrInvalidInput), http.StatusBadRequest},
		{"wrapped not found", fmt.Errorf("page 9: %w", ErrNotFound), http.StatusNotFound},
		{"conflict", ErrConflict, http.StatusConflict},
		{"upstream", UpstreamError("ocr", errors.New("tesseract exited 1")), http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestUpstreamErrorKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := UpstreamError("model", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, "UPSTREAM_ERROR", ErrorCode(err))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestWrapErrorNil(t *testing.T) {
	assert.NoError(t, WrapError(nil, "ignored"))
}
