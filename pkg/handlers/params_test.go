package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseProjectID(t *testing.T) {
	tests := []struct {
		name      string
		pathValue string
		wantID    string
		wantOK    bool
	}{
		{name: "uuid", pathValue: "550e8400-e29b-41d4-a716-446655440000", wantID: "550e8400-e29b-41d4-a716-446655440000", wantOK: true},
		{name: "numeric", pathValue: "42", wantID: "42", wantOK: true},
		{name: "trimmed", pathValue: " 42 ", wantID: "42", wantOK: true},
		{name: "empty", pathValue: "", wantOK: false},
		{name: "blank", pathValue: "   ", wantOK: false},
		{name: "too long", pathValue: strings.Repeat("a", maxIDLength+1), wantOK: false},
		{name: "query characters", pathValue: "42?x=1", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.SetPathValue("pid", tt.pathValue)
			rec := httptest.NewRecorder()

			id, ok := ParseProjectID(rec, req, zap.NewNop())

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
			if !tt.wantOK {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, "invalid_project_id", body["error"])
			}
		})
	}
}

func TestParseReportID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	_, ok := ParseReportID(rec, req, zap.NewNop())

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_report_id")
}
