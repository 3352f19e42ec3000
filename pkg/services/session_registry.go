package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionRegistry maps dashboard session ids to their dashboards and closes
// sessions that have been idle too long.
type SessionRegistry struct {
	backends    Backends
	cfg         DashboardConfig
	idleTimeout time.Duration
	logger      *zap.Logger

	mu         sync.Mutex
	dashboards map[string]*Dashboard
}

// NewSessionRegistry creates an empty registry. A non-positive idleTimeout
// keeps sessions until Close.
func NewSessionRegistry(backends Backends, cfg DashboardConfig, idleTimeout time.Duration, logger *zap.Logger) *SessionRegistry {
	return &SessionRegistry{
		backends:    backends,
		cfg:         cfg,
		idleTimeout: idleTimeout,
		logger:      logger.Named("sessions"),
		dashboards:  make(map[string]*Dashboard),
	}
}

// GetOrCreate returns the dashboard of a session, creating it on first use,
// and marks the session active.
func (r *SessionRegistry) GetOrCreate(id string) *Dashboard {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.dashboards[id]
	if !ok {
		d = NewDashboard(id, r.backends, r.cfg, r.logger)
		r.dashboards[id] = d
		r.logger.Debug("Created dashboard session", zap.String("dashboard_id", id))
	}
	d.Touch(time.Now())
	return d
}

// Get returns an existing dashboard without creating one.
func (r *SessionRegistry) Get(id string) (*Dashboard, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.dashboards[id]
	return d, ok
}

// Len returns the number of open sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.dashboards)
}

// Sweep closes sessions idle since before now minus the idle timeout.
// It returns how many were closed.
func (r *SessionRegistry) Sweep(ctx context.Context, now time.Time) int {
	if r.idleTimeout <= 0 {
		return 0
	}
	cutoff := now.Add(-r.idleTimeout)

	r.mu.Lock()
	var idle []*Dashboard
	for id, d := range r.dashboards {
		if d.LastUsed().Before(cutoff) {
			idle = append(idle, d)
			delete(r.dashboards, id)
		}
	}
	r.mu.Unlock()

	for _, d := range idle {
		if err := d.Close(ctx); err != nil {
			r.logger.Warn("Idle dashboard did not stop in time",
				zap.String("dashboard_id", d.ID),
				zap.Error(err))
		}
	}
	if len(idle) > 0 {
		r.logger.Info("Closed idle dashboard sessions", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// Run sweeps idle sessions every interval until ctx is done.
func (r *SessionRegistry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || r.idleTimeout <= 0 {
		return
	}
	r.logger.Info("Session sweeper started",
		zap.Duration("interval", interval),
		zap.Duration("idle_timeout", r.idleTimeout))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Session sweeper stopped")
			return
		case now := <-ticker.C:
			r.Sweep(ctx, now)
		}
	}
}

// Close closes every session.
func (r *SessionRegistry) Close(ctx context.Context) error {
	r.mu.Lock()
	dashboards := r.dashboards
	r.dashboards = make(map[string]*Dashboard)
	r.mu.Unlock()

	var errs []error
	for _, d := range dashboards {
		errs = append(errs, d.Close(ctx))
	}
	return errors.Join(errs...)
}
