package services

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/trace-app/trace-dashboard/pkg/polling"
	"github.com/trace-app/trace-dashboard/pkg/store"
)

// DashboardConfig configures the dashboards a registry creates.
type DashboardConfig struct {
	Polling          polling.Config
	CancelOnDeselect bool
	// Clock drives poll intervals; nil uses the wall clock.
	Clock polling.Clock
}

// Dashboard is the state of one dashboard session: its entity store, poll
// chains, selection and the actions that change them.
type Dashboard struct {
	ID string

	Store    *store.Store
	Engine   *polling.Engine
	Selector *Selector
	Notifier *Notifier
	Loading  *LoadState

	Projects     *ProjectService
	MeetingNotes *MeetingNoteService
	Reports      *ReportService
	Chat         *ChatService
	Integrations *IntegrationService

	jobs     *broadcaster[polling.ChainSnapshot]
	lastUsed atomic.Int64
}

// NewDashboard wires a dashboard session on top of the shared backends.
func NewDashboard(id string, backends Backends, cfg DashboardConfig, logger *zap.Logger) *Dashboard {
	logger = logger.With(zap.String("dashboard_id", id))

	if cfg.Polling.MaxAttempts <= 0 || cfg.Polling.Interval <= 0 {
		cfg.Polling = polling.DefaultConfig()
	}
	opts := []polling.Option{polling.WithConfig(cfg.Polling)}
	if cfg.Clock != nil {
		opts = append(opts, polling.WithClock(cfg.Clock))
	}

	st := store.New(logger)
	engine := polling.New(st, logger, opts...)
	notifier := NewNotifier()
	loading := NewLoadState()

	d := &Dashboard{
		ID:           id,
		Store:        st,
		Engine:       engine,
		Selector:     NewSelector(engine, backends.Projects, loading, notifier, cfg.CancelOnDeselect, logger),
		Notifier:     notifier,
		Loading:      loading,
		Projects:     NewProjectService(backends.Projects, st, loading, notifier, logger),
		MeetingNotes: NewMeetingNoteService(backends.Transcription, engine, loading, notifier, logger),
		Reports:      NewReportService(backends.GenAI, engine, loading, notifier, logger),
		Chat:         NewChatService(backends.GenAI, engine, loading, notifier, logger),
		Integrations: NewIntegrationService(backends, st, notifier, logger),
		jobs:         newBroadcaster[polling.ChainSnapshot](),
	}
	engine.SetOnUpdate(d.jobs.publish)
	d.Touch(time.Now())
	return d
}

// SubscribeJobs streams poll chain transitions.
func (d *Dashboard) SubscribeJobs() (<-chan polling.ChainSnapshot, func()) {
	return d.jobs.subscribe()
}

// Touch records activity on the session.
func (d *Dashboard) Touch(now time.Time) {
	d.lastUsed.Store(now.UnixNano())
}

// LastUsed returns the time of the last recorded activity.
func (d *Dashboard) LastUsed() time.Time {
	return time.Unix(0, d.lastUsed.Load())
}

// Close cancels the session's poll chains and waits for them to stop.
func (d *Dashboard) Close(ctx context.Context) error {
	return d.Engine.Close(ctx)
}
