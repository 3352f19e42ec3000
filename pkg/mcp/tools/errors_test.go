package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trace-app/trace-dashboard/pkg/apperrors"
)

// getTextContent extracts the text string from the first text content item
func getTextContent(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	jsonBytes, _ := json.Marshal(result.Content[0])
	var textContent struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	_ = json.Unmarshal(jsonBytes, &textContent)
	return textContent.Text
}

func parseErrorResult(t *testing.T, result *mcp.CallToolResult) ErrorResponse {
	t.Helper()
	require.NotNil(t, result)
	require.True(t, result.IsError)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(getTextContent(result)), &errResp))
	return errResp
}

func TestNewErrorResult(t *testing.T) {
	result := NewErrorResult("test_error", "this is a test error")

	require.Len(t, result.Content, 1)
	errResp := parseErrorResult(t, result)
	assert.True(t, errResp.Error)
	assert.Equal(t, "test_error", errResp.Code)
	assert.Equal(t, "this is a test error", errResp.Message)
	assert.Nil(t, errResp.Details, "details should be nil when not provided")
}

func TestNewErrorResultWithDetails(t *testing.T) {
	result := NewErrorResultWithDetails("invalid_collection", "unknown collection", map[string]any{
		"valid": []string{"notes", "reports"},
	})

	errResp := parseErrorResult(t, result)
	details, ok := errResp.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"notes", "reports"}, details["valid"])
}

func TestActionErrorResult(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"invalid input", fmt.Errorf("bad window: %w", apperrors.ErrInvalidInput), "invalid_input"},
		{"not found", fmt.Errorf("report r1: %w", apperrors.ErrNotFound), "not_found"},
		{"conflict", apperrors.ErrConflict, "conflict"},
		{"not signed in", apperrors.ErrNotSignedIn, "not_signed_in"},
		{"other", errors.New("boom"), "backend_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errResp := parseErrorResult(t, actionErrorResult(tt.err))
			assert.Equal(t, tt.code, errResp.Code)
			assert.Equal(t, apperrors.Normalize(tt.err), errResp.Message)
		})
	}
}
