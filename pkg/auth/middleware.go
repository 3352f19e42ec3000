package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Middleware extracts the bearer token from incoming requests.
type Middleware struct {
	logger *zap.Logger
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(logger *zap.Logger) *Middleware {
	return &Middleware{
		logger: logger.Named("auth"),
	}
}

// Authenticate stores the request's bearer token and claims in the context.
// Requests without a token pass through anonymously; the backend services
// decide what an anonymous caller may see. A malformed token is rejected.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := ParseClaims(token)
		if err != nil {
			m.logger.Debug("Rejecting malformed bearer token",
				zap.String("path", r.URL.Path),
				zap.Error(err))
			m.unauthorized(w, "Malformed bearer token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithToken(r.Context(), token, claims)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// unauthorized returns a 401 response with JSON error body.
func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}
