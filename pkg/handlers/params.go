package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// maxIDLength bounds path ids; backend ids are uuids or short numeric ids.
const maxIDLength = 128

// ParseProjectID extracts the project ID from the request path.
// Returns the id and true on success, or "" and false on error
// (after writing an error response).
// Expects path parameter: pid
func ParseProjectID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	return parseID(w, r, "pid", "invalid_project_id", "Invalid project ID", logger)
}

// ParseReportID extracts the report ID from the request path.
// Expects path parameter: rid
func ParseReportID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	return parseID(w, r, "rid", "invalid_report_id", "Invalid report ID", logger)
}

// parseID is the internal helper that does the actual parsing work.
func parseID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (string, bool) {
	id := strings.TrimSpace(r.PathValue(pathParam))
	if id == "" || len(id) > maxIDLength || strings.ContainsAny(id, "/?#") {
		writeError(w, http.StatusBadRequest, errorCode, errorMessage, logger)
		return "", false
	}
	return id, true
}
