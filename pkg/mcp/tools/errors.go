package tools

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/trace-app/trace-dashboard/pkg/apperrors"
)

// ErrorResponse represents a structured error in tool results.
// Errors are returned as tool results rather than protocol errors so the
// calling model sees the message and can correct its arguments.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
//
// Example:
//
//	return NewErrorResultWithDetails(
//	    "invalid_collection",
//	    "unknown collection \"tasks\"",
//	    map[string]any{"valid": collectionNames},
//	), nil
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// actionErrorResult turns a failed dashboard action into an error result
// carrying the same message the dashboard notifies the user with.
func actionErrorResult(err error) *mcp.CallToolResult {
	code := "backend_error"
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		code = "invalid_input"
	case errors.Is(err, apperrors.ErrNotFound):
		code = "not_found"
	case errors.Is(err, apperrors.ErrConflict):
		code = "conflict"
	case errors.Is(err, apperrors.ErrNotSignedIn):
		code = "not_signed_in"
	}
	return NewErrorResult(code, apperrors.Normalize(err))
}
