package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/trace-app/trace-dashboard/pkg/models"
	"github.com/trace-app/trace-dashboard/pkg/services"
)

// IntegrationsHandler serves a project's third-party integration settings.
type IntegrationsHandler struct {
	logger *zap.Logger
}

// NewIntegrationsHandler creates an integrations handler.
func NewIntegrationsHandler(logger *zap.Logger) *IntegrationsHandler {
	return &IntegrationsHandler{logger: logger.Named("integrations-handler")}
}

// RegisterRoutes registers the integrations handler's routes on the given mux.
func (h *IntegrationsHandler) RegisterRoutes(mux *http.ServeMux, sessions *SessionMiddleware) {
	mux.HandleFunc("GET /api/projects/{pid}/comms/mappings", sessions.RequireDashboard(h.ListCommsMappings))
	mux.HandleFunc("PUT /api/projects/{pid}/comms/mappings", sessions.RequireDashboard(h.SaveCommsMapping))
	mux.HandleFunc("POST /api/projects/{pid}/comms/connections", sessions.RequireDashboard(h.AddCommsConnection))
	mux.HandleFunc("GET /api/projects/{pid}/sdlc/tokens", sessions.RequireDashboard(h.ListSdlcTokens))
	mux.HandleFunc("POST /api/projects/{pid}/sdlc/tokens", sessions.RequireDashboard(h.SaveSdlcToken))
	mux.HandleFunc("GET /api/projects/{pid}/sdlc/mappings", sessions.RequireDashboard(h.ListSdlcMappings))
	mux.HandleFunc("PUT /api/projects/{pid}/sdlc/mappings", sessions.RequireDashboard(h.SaveSdlcMapping))
	mux.HandleFunc("GET /api/projects/{pid}/speakers", sessions.RequireDashboard(h.ListSpeakers))
}

// ListCommsMappings handles GET /api/projects/{pid}/comms/mappings
func (h *IntegrationsHandler) ListCommsMappings(w http.ResponseWriter, r *http.Request) {
	d, projectID, ok := h.target(w, r)
	if !ok {
		return
	}

	mappings, err := d.Integrations.LoadCommsMappings(r.Context(), projectID)
	if err != nil {
		writeActionError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(mappings), h.logger)
}

// SaveCommsMapping handles PUT /api/projects/{pid}/comms/mappings
// An empty userId unmaps the platform account.
func (h *IntegrationsHandler) SaveCommsMapping(w http.ResponseWriter, r *http.Request) {
	d, projectID, ok := h.target(w, r)
	if !ok {
		return
	}

	var mapping models.UserMapping
	if !decodeJSON(w, r, &mapping, h.logger) {
		return
	}
	mapping.ProjectID = projectID

	saved, err := d.Integrations.SaveCommsMapping(r.Context(), mapping)
	if err != nil {
		writeActionError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, saved, h.logger)
}

// AddCommsConnection handles POST /api/projects/{pid}/comms/connections
func (h *IntegrationsHandler) AddCommsConnection(w http.ResponseWriter, r *http.Request) {
	d, projectID, ok := h.target(w, r)
	if !ok {
		return
	}

	var conn models.CommsConnection
	if !decodeJSON(w, r, &conn, h.logger) {
		return
	}
	conn.ProjectID = projectID

	saved, err := d.Integrations.AddCommsConnection(r.Context(), conn)
	if err != nil {
		writeActionError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, saved, h.logger)
}

// ListSdlcTokens handles GET /api/projects/{pid}/sdlc/tokens
func (h *IntegrationsHandler) ListSdlcTokens(w http.ResponseWriter, r *http.Request) {
	d, projectID, ok := h.target(w, r)
	if !ok {
		return
	}

	tokens, err := d.Integrations.ListSdlcTokens(r.Context(), projectID)
	if err != nil {
		writeActionError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(tokens), h.logger)
}

// SaveSdlcToken handles POST /api/projects/{pid}/sdlc/tokens
func (h *IntegrationsHandler) SaveSdlcToken(w http.ResponseWriter, r *http.Request) {
	d, projectID, ok := h.target(w, r)
	if !ok {
		return
	}

	var req models.SaveSdlcTokenRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	token, err := d.Integrations.SaveSdlcToken(r.Context(), projectID, req)
	if err != nil {
		writeActionError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, token, h.logger)
}

// ListSdlcMappings handles GET /api/projects/{pid}/sdlc/mappings
func (h *IntegrationsHandler) ListSdlcMappings(w http.ResponseWriter, r *http.Request) {
	d, projectID, ok := h.target(w, r)
	if !ok {
		return
	}

	mappings, err := d.Integrations.LoadSdlcMappings(r.Context(), projectID)
	if err != nil {
		writeActionError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(mappings), h.logger)
}

// SaveSdlcMapping handles PUT /api/projects/{pid}/sdlc/mappings
func (h *IntegrationsHandler) SaveSdlcMapping(w http.ResponseWriter, r *http.Request) {
	d, projectID, ok := h.target(w, r)
	if !ok {
		return
	}

	var mapping models.UserMapping
	if !decodeJSON(w, r, &mapping, h.logger) {
		return
	}
	mapping.ProjectID = projectID

	saved, err := d.Integrations.SaveSdlcMapping(r.Context(), mapping)
	if err != nil {
		writeActionError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, saved, h.logger)
}

// ListSpeakers handles GET /api/projects/{pid}/speakers
func (h *IntegrationsHandler) ListSpeakers(w http.ResponseWriter, r *http.Request) {
	d, projectID, ok := h.target(w, r)
	if !ok {
		return
	}

	speakers, err := d.Integrations.ListSpeakers(r.Context(), projectID)
	if err != nil {
		writeActionError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(speakers), h.logger)
}

func (h *IntegrationsHandler) target(w http.ResponseWriter, r *http.Request) (*services.Dashboard, string, bool) {
	d, ok := dashboardFor(w, r, h.logger)
	if !ok {
		return nil, "", false
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return nil, "", false
	}
	return d, projectID, true
}
