package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/trace-app/trace-dashboard/pkg/apperrors"
	"github.com/trace-app/trace-dashboard/pkg/models"
)

// maxUploadMemory is how much of a multipart upload is buffered in memory;
// the rest spills to temporary files.
const maxUploadMemory = 32 << 20

// SendMessageRequest is the body of POST /api/projects/{pid}/messages.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// ResourcesHandler serves a project's meeting notes, reports and chat.
// Submissions answer 202 with the placeholder entity; completion arrives
// through the event stream.
type ResourcesHandler struct {
	logger *zap.Logger
}

// NewResourcesHandler creates a resources handler.
func NewResourcesHandler(logger *zap.Logger) *ResourcesHandler {
	return &ResourcesHandler{logger: logger.Named("resources-handler")}
}

// RegisterRoutes registers the resources handler's routes on the given mux.
func (h *ResourcesHandler) RegisterRoutes(mux *http.ServeMux, sessions *SessionMiddleware) {
	mux.HandleFunc("GET /api/projects/{pid}/notes", sessions.RequireDashboard(h.ListNotes))
	mux.HandleFunc("POST /api/projects/{pid}/notes", sessions.RequireDashboard(h.UploadNote))
	mux.HandleFunc("GET /api/projects/{pid}/reports", sessions.RequireDashboard(h.ListReports))
	mux.HandleFunc("POST /api/projects/{pid}/reports", sessions.RequireDashboard(h.GenerateReport))
	mux.HandleFunc("GET /api/projects/{pid}/reports/{rid}", sessions.RequireDashboard(h.GetReport))
	mux.HandleFunc("GET /api/projects/{pid}/messages", sessions.RequireDashboard(h.ListMessages))
	mux.HandleFunc("POST /api/projects/{pid}/messages", sessions.RequireDashboard(h.SendMessage))
}

// ListNotes handles GET /api/projects/{pid}/notes
func (h *ResourcesHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	d, ok := dashboardFor(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	notes, err := d.MeetingNotes.LoadAll(r.Context(), projectID)
	if err != nil {
		writeActionError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(notes), h.logger)
}

// UploadNote handles POST /api/projects/{pid}/notes
// Expects a multipart form with the recording in "file" and "speakerAmount".
func (h *ResourcesHandler) UploadNote(w http.ResponseWriter, r *http.Request) {
	d, ok := dashboardFor(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Expected a multipart upload", h.logger)
		return
	}
	speakerAmount, err := strconv.Atoi(r.FormValue("speakerAmount"))
	if err != nil {
		writeActionError(w, fmt.Errorf("speakerAmount must be a number: %w", apperrors.ErrInvalidInput), h.logger)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Missing file", h.logger)
		return
	}
	defer file.Close()

	note, err := d.MeetingNotes.Upload(r.Context(), projectID, speakerAmount, header.Filename, file)
	if err != nil {
		writeActionError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusAccepted, note, h.logger)
}

// ListReports handles GET /api/projects/{pid}/reports
func (h *ResourcesHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	d, ok := dashboardFor(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	reports, err := d.Reports.LoadAll(r.Context(), projectID)
	if err != nil {
		writeActionError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(reports), h.logger)
}

// GenerateReport handles POST /api/projects/{pid}/reports
func (h *ResourcesHandler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	d, ok := dashboardFor(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var params models.ReportParams
	if !decodeJSON(w, r, &params, h.logger) {
		return
	}

	report, err := d.Reports.Generate(r.Context(), projectID, params)
	if err != nil {
		writeActionError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusAccepted, report, h.logger)
}

// GetReport handles GET /api/projects/{pid}/reports/{rid}
func (h *ResourcesHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	d, ok := dashboardFor(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	reportID, ok := ParseReportID(w, r, h.logger)
	if !ok {
		return
	}

	report, err := d.Reports.LoadContent(r.Context(), projectID, reportID)
	if err != nil {
		writeActionError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, report, h.logger)
}

// ListMessages handles GET /api/projects/{pid}/messages
func (h *ResourcesHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	d, ok := dashboardFor(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	messages, err := d.Chat.LoadAll(r.Context(), projectID)
	if err != nil {
		writeActionError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(messages), h.logger)
}

// SendMessage handles POST /api/projects/{pid}/messages
func (h *ResourcesHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	d, ok := dashboardFor(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req SendMessageRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	messages, err := d.Chat.Send(r.Context(), projectID, req.Content)
	if err != nil {
		writeActionError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusAccepted, messages, h.logger)
}
