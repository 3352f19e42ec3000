// Package auth carries the caller's identity through the dashboard.
//
// Tokens are issued and verified by the backend services; the dashboard only
// forwards them and reads the subject, which identifies the chat user.
package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing token claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw bearer token.
	TokenKey contextKey = "token"
)

// Claims represents the token claims the dashboard reads.
// It embeds RegisteredClaims for standard fields (sub, iss, exp, etc.).
type Claims struct {
	jwt.RegisteredClaims
	Email             string `json:"email,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
}

// ParseClaims decodes the token's claims without verifying its signature.
// Verification is the job of the backend services the token is forwarded to.
func ParseClaims(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return claims, nil
}

// WithToken stores the raw token and its claims in the context.
// Claims may be nil when the token is opaque.
func WithToken(ctx context.Context, token string, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, TokenKey, token)
	if claims != nil {
		ctx = context.WithValue(ctx, ClaimsKey, claims)
	}
	return ctx
}

// GetClaims retrieves token claims from the context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetToken retrieves the raw bearer token from the context.
// Returns empty string and false if token is not present.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}

// Detach copies the caller's token and claims onto a context that outlives
// the request, for background work done on the caller's behalf.
func Detach(parent, request context.Context) context.Context {
	token, ok := GetToken(request)
	if !ok {
		return parent
	}
	claims, _ := GetClaims(request)
	return WithToken(parent, token, claims)
}
