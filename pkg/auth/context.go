package auth

import (
	"context"

	"github.com/trace-app/trace-dashboard/pkg/apperrors"
)

// GetUserIDFromContext extracts the user ID (token subject) from the context.
// Returns empty string if not authenticated or claims are missing.
func GetUserIDFromContext(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return ""
	}
	return claims.Subject
}

// RequireUserIDFromContext extracts the user ID and fails with
// apperrors.ErrNotSignedIn if there is none.
func RequireUserIDFromContext(ctx context.Context) (string, error) {
	userID := GetUserIDFromContext(ctx)
	if userID == "" {
		return "", apperrors.ErrNotSignedIn
	}
	return userID, nil
}
