package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/trace-app/trace-dashboard/pkg/auth"
	"github.com/trace-app/trace-dashboard/pkg/services"
)

type dashboardContextKey struct{}

// dashboardRegistry returns the dashboard bound to a session id.
type dashboardRegistry interface {
	GetOrCreate(id string) *services.Dashboard
}

// SessionMiddleware binds each request to the dashboard of its browser
// session, creating the session cookie on first contact.
type SessionMiddleware struct {
	cookies  *auth.SessionStore
	registry dashboardRegistry
	logger   *zap.Logger
}

// NewSessionMiddleware creates a session middleware.
func NewSessionMiddleware(cookies *auth.SessionStore, registry dashboardRegistry, logger *zap.Logger) *SessionMiddleware {
	return &SessionMiddleware{
		cookies:  cookies,
		registry: registry,
		logger:   logger.Named("session"),
	}
}

// RequireDashboard resolves the request's dashboard and stores it in the
// request context.
func (m *SessionMiddleware) RequireDashboard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := m.cookies.DashboardID(w, r)
		if err != nil {
			m.logger.Error("Failed to resolve dashboard session", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "session_error", "Failed to open dashboard session", m.logger)
			return
		}

		dashboard := m.registry.GetOrCreate(id)
		next(w, r.WithContext(WithDashboard(r.Context(), dashboard)))
	}
}

// WithDashboard stores a dashboard in the context.
func WithDashboard(ctx context.Context, d *services.Dashboard) context.Context {
	return context.WithValue(ctx, dashboardContextKey{}, d)
}

// GetDashboard returns the dashboard stored by RequireDashboard.
func GetDashboard(ctx context.Context) (*services.Dashboard, bool) {
	d, ok := ctx.Value(dashboardContextKey{}).(*services.Dashboard)
	return d, ok && d != nil
}

// dashboardFor returns the request's dashboard, writing a 401 when the
// route was registered without RequireDashboard.
func dashboardFor(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (*services.Dashboard, bool) {
	d, ok := GetDashboard(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no_session", "No dashboard session", logger)
		return nil, false
	}
	return d, true
}
