package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestAuthenticate(t *testing.T) {
	valid := signToken(t, "user-123")

	tests := []struct {
		name        string
		header      string
		wantStatus  int
		wantSubject string
		wantToken   bool
	}{
		{name: "no header", header: "", wantStatus: http.StatusOK},
		{name: "valid bearer", header: "Bearer " + valid, wantStatus: http.StatusOK, wantSubject: "user-123", wantToken: true},
		{name: "lowercase scheme", header: "bearer " + valid, wantStatus: http.StatusOK, wantSubject: "user-123", wantToken: true},
		{name: "basic auth ignored", header: "Basic dXNlcjpwYXNz", wantStatus: http.StatusOK},
		{name: "malformed token", header: "Bearer garbage", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var subject string
			var hasToken bool
			handler := NewMiddleware(zap.NewNop()).Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				subject = GetUserIDFromContext(r.Context())
				_, hasToken = GetToken(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantSubject, subject)
			assert.Equal(t, tt.wantToken, hasToken)
		})
	}
}
