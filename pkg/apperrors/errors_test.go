package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServiceError_Message(t *testing.T) {
	err := &ServiceError{Op: "list projects", StatusCode: http.StatusInternalServerError}
	assert.Equal(t, "Server error: 500 Internal Server Error", err.Message())

	err = &ServiceError{Op: "list projects", StatusCode: 502, Status: "Upstream Down"}
	assert.Equal(t, "Server error: 502 Upstream Down", err.Message())
}

func TestServiceError_Unwrap(t *testing.T) {
	notFound := fmt.Errorf("load project: %w", &ServiceError{StatusCode: http.StatusNotFound})
	assert.ErrorIs(t, notFound, ErrNotFound)

	conflict := &ServiceError{StatusCode: http.StatusConflict}
	assert.ErrorIs(t, conflict, ErrConflict)

	server := &ServiceError{StatusCode: http.StatusInternalServerError}
	assert.False(t, errors.Is(server, ErrNotFound))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{
			name: "wrapped service error",
			err:  fmt.Errorf("generate report: %w", &ServiceError{StatusCode: 503}),
			want: "Server error: 503 Service Unavailable",
		},
		{name: "transport error", err: errors.New("dial tcp: connection refused"), want: "Client error: dial tcp: connection refused"},
		{name: "cancelled", err: fmt.Errorf("load: %w", context.Canceled), want: "Client error: request cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.err))
		})
	}
}
