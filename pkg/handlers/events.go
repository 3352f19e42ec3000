package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Event names sent on the event stream.
const (
	EventStore        = "store"
	EventJob          = "job"
	EventNotification = "notification"
)

const defaultHeartbeat = 15 * time.Second

// EventsHandler streams dashboard changes to the UI and serves the job and
// notification lists.
type EventsHandler struct {
	heartbeat time.Duration
	logger    *zap.Logger
}

// NewEventsHandler creates an events handler. A non-positive heartbeat uses
// the default keep-alive interval.
func NewEventsHandler(heartbeat time.Duration, logger *zap.Logger) *EventsHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &EventsHandler{heartbeat: heartbeat, logger: logger.Named("events-handler")}
}

// RegisterRoutes registers the events handler's routes on the given mux.
func (h *EventsHandler) RegisterRoutes(mux *http.ServeMux, sessions *SessionMiddleware) {
	mux.HandleFunc("GET /api/events", sessions.RequireDashboard(h.Stream))
	mux.HandleFunc("GET /api/jobs", sessions.RequireDashboard(h.ListJobs))
	mux.HandleFunc("GET /api/notifications", sessions.RequireDashboard(h.ListNotifications))
}

// ListJobs handles GET /api/jobs
// Returns a snapshot of every poll chain of the session.
func (h *EventsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	d, ok := dashboardFor(w, r, h.logger)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(d.Engine.Chains()), h.logger)
}

// ListNotifications handles GET /api/notifications
// Returns notifications not shown yet, or the recent history with ?all=true.
func (h *EventsHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	d, ok := dashboardFor(w, r, h.logger)
	if !ok {
		return
	}
	if r.URL.Query().Get("all") == "true" {
		writeJSON(w, http.StatusOK, emptyIfNil(d.Notifier.Recent()), h.logger)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(d.Notifier.TakeUnseen()), h.logger)
}

// Stream handles GET /api/events
// Sends store changes, poll chain transitions and notifications as SSE
// until the client disconnects.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	d, ok := dashboardFor(w, r, h.logger)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("SSE not supported")
		writeError(w, http.StatusInternalServerError, "sse_unsupported", "SSE not supported", h.logger)
		return
	}

	changes, unsubscribeStore := d.Store.Subscribe()
	defer unsubscribeStore()
	jobs, unsubscribeJobs := d.SubscribeJobs()
	defer unsubscribeJobs()
	notifications, unsubscribeNotifications := d.Notifier.Subscribe()
	defer unsubscribeNotifications()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		var (
			event string
			data  any
		)
		select {
		case <-r.Context().Done():
			return
		case now := <-heartbeat.C:
			// An open stream keeps the session from being swept.
			d.Touch(now)
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
			continue
		case change, open := <-changes:
			if !open {
				return
			}
			event, data = EventStore, change
		case snapshot, open := <-jobs:
			if !open {
				return
			}
			event, data = EventJob, snapshot
		case notification, open := <-notifications:
			if !open {
				return
			}
			event, data = EventNotification, notification
		}

		d.Touch(time.Now())
		if err := h.writeEvent(w, event, data); err != nil {
			h.logger.Debug("Event stream closed", zap.Error(err))
			return
		}
		flusher.Flush()
	}
}

func (h *EventsHandler) writeEvent(w http.ResponseWriter, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("Failed to marshal event", zap.String("event", event), zap.Error(err))
		return nil
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}

