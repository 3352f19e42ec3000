package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/trace-app/trace-dashboard/pkg/models"
	"github.com/trace-app/trace-dashboard/pkg/services"
)

// SelectionResponse is the selected project and every view derived from it.
type SelectionResponse struct {
	ProjectID    string                `json:"projectId,omitempty"`
	Project      *models.Project       `json:"project,omitempty"`
	Notes        []models.MeetingNote  `json:"notes"`
	Reports      []models.Report       `json:"reports"`
	Messages     []models.Message      `json:"messages"`
	Users        []models.User         `json:"users"`
	UserMappings []models.UserMapping  `json:"userMappings"`
	Loading      services.LoadingFlags `json:"loading"`
}

// NavigateRequest carries the path the UI moved to.
type NavigateRequest struct {
	Path string `json:"path"`
}

// SelectRequest selects a project; a null or empty id clears the selection.
type SelectRequest struct {
	ProjectID *string `json:"projectId"`
}

// UserIDsRequest lists users to assign to or remove from a project.
type UserIDsRequest struct {
	UserIDs []string `json:"userIds"`
}

// DashboardHandler serves the project list, the selection and project users.
type DashboardHandler struct {
	logger *zap.Logger
}

// NewDashboardHandler creates a dashboard handler.
func NewDashboardHandler(logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{logger: logger.Named("dashboard-handler")}
}

// RegisterRoutes registers the dashboard handler's routes on the given mux.
func (h *DashboardHandler) RegisterRoutes(mux *http.ServeMux, sessions *SessionMiddleware) {
	mux.HandleFunc("GET /api/projects", sessions.RequireDashboard(h.ListProjects))
	mux.HandleFunc("POST /api/projects", sessions.RequireDashboard(h.CreateProject))
	mux.HandleFunc("GET /api/projects/{pid}", sessions.RequireDashboard(h.GetProject))
	mux.HandleFunc("POST /api/navigate", sessions.RequireDashboard(h.Navigate))
	mux.HandleFunc("GET /api/selection", sessions.RequireDashboard(h.GetSelection))
	mux.HandleFunc("PUT /api/selection", sessions.RequireDashboard(h.Select))
	mux.HandleFunc("GET /api/users", sessions.RequireDashboard(h.ListUsers))
	mux.HandleFunc("GET /api/projects/{pid}/users", sessions.RequireDashboard(h.ListProjectUsers))
	mux.HandleFunc("POST /api/projects/{pid}/users", sessions.RequireDashboard(h.AssignUsers))
	mux.HandleFunc("DELETE /api/projects/{pid}/users", sessions.RequireDashboard(h.RemoveUsers))
}

// ListProjects handles GET /api/projects
func (h *DashboardHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	d, ok := dashboardFor(w, r, h.logger)
	if !ok {
		return
	}

	projects, err := d.Projects.LoadProjectList(r.Context())
	if err != nil {
		writeActionError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, projects, h.logger)
}

// CreateProject handles POST /api/projects
func (h *DashboardHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	d, ok := dashboardFor(w, r, h.logger)
	if !ok {
		return
	}

	var req models.CreateProjectRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	project, err := d.Projects.CreateProject(r.Context(), req)
	if err != nil {
		writeActionError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, project, h.logger)
}

// GetProject handles GET /api/projects/{pid}
// The project is refetched and merged into the store.
func (h *DashboardHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	d, ok := dashboardFor(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	project, err := d.Projects.LoadProject(r.Context(), projectID)
	if err != nil {
		writeActionError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, project, h.logger)
}

// Navigate handles POST /api/navigate
func (h *DashboardHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	d, ok := dashboardFor(w, r, h.logger)
	if !ok {
		return
	}

	var req NavigateRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	if err := d.Selector.Navigate(r.Context(), req.Path); err != nil {
		writeActionError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, selectionOf(d), h.logger)
}

// GetSelection handles GET /api/selection
func (h *DashboardHandler) GetSelection(w http.ResponseWriter, r *http.Request) {
	d, ok := dashboardFor(w, r, h.logger)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, selectionOf(d), h.logger)
}

// Select handles PUT /api/selection
func (h *DashboardHandler) Select(w http.ResponseWriter, r *http.Request) {
	d, ok := dashboardFor(w, r, h.logger)
	if !ok {
		return
	}

	var req SelectRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	projectID := ""
	if req.ProjectID != nil {
		projectID = *req.ProjectID
	}

	if err := d.Selector.Select(r.Context(), projectID); err != nil {
		writeActionError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, selectionOf(d), h.logger)
}

// ListUsers handles GET /api/users
func (h *DashboardHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	d, ok := dashboardFor(w, r, h.logger)
	if !ok {
		return
	}

	users, err := d.Projects.LoadAllUsers(r.Context())
	if err != nil {
		writeActionError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, users, h.logger)
}

// ListProjectUsers handles GET /api/projects/{pid}/users
func (h *DashboardHandler) ListProjectUsers(w http.ResponseWriter, r *http.Request) {
	d, ok := dashboardFor(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	users, err := d.Projects.LoadProjectUsers(r.Context(), projectID)
	if err != nil {
		writeActionError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, users, h.logger)
}

// AssignUsers handles POST /api/projects/{pid}/users
func (h *DashboardHandler) AssignUsers(w http.ResponseWriter, r *http.Request) {
	h.changeUsers(w, r, (*services.ProjectService).AssignUsers)
}

// RemoveUsers handles DELETE /api/projects/{pid}/users
func (h *DashboardHandler) RemoveUsers(w http.ResponseWriter, r *http.Request) {
	h.changeUsers(w, r, (*services.ProjectService).RemoveUsers)
}

func (h *DashboardHandler) changeUsers(w http.ResponseWriter, r *http.Request, change func(*services.ProjectService, context.Context, string, []string) error) {
	d, ok := dashboardFor(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req UserIDsRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	if err := change(d.Projects, r.Context(), projectID, req.UserIDs); err != nil {
		writeActionError(w, err, h.logger)
		return
	}

	users := []models.User{}
	if project, ok := d.Store.Get(projectID); ok && project.Users != nil {
		users = project.Users
	}
	writeJSON(w, http.StatusOK, users, h.logger)
}

func selectionOf(d *services.Dashboard) SelectionResponse {
	resp := SelectionResponse{
		ProjectID:    d.Selector.SelectedProjectID(),
		Notes:        emptyIfNil(d.Selector.Notes()),
		Reports:      emptyIfNil(d.Selector.Reports()),
		Messages:     emptyIfNil(d.Selector.Messages()),
		Users:        emptyIfNil(d.Selector.Users()),
		UserMappings: emptyIfNil(d.Selector.UserMappings("")),
		Loading:      d.Selector.Loading(),
	}
	if project, ok := d.Selector.SelectedProject(); ok {
		resp.Project = &project
	}
	return resp
}

func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// decodeJSON decodes the request body, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", logger)
		return false
	}
	return true
}
