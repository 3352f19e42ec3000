package clients

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/trace-app/trace-dashboard/pkg/models"
)

// CommsClient talks to the comms connector (Discord, Slack).
type CommsClient struct {
	*baseClient
}

// NewCommsClient creates a comms connector client.
func NewCommsClient(baseURL string, opts Options, logger *zap.Logger) *CommsClient {
	return &CommsClient{baseClient: newBaseClient("comms", baseURL, opts, logger)}
}

// ListUserMappings fetches chat-platform user mappings of a project.
func (c *CommsClient) ListUserMappings(ctx context.Context, projectID string) ([]models.UserMapping, error) {
	var mappings []models.UserMapping
	if err := c.getJSON(ctx, "list comms users", &mappings, nil, "projects", projectID, "comms", "users"); err != nil {
		return nil, err
	}
	return mappings, nil
}

// SaveUserMapping links a chat-platform account to a project user.
func (c *CommsClient) SaveUserMapping(ctx context.Context, m models.UserMapping) (models.UserMapping, error) {
	query := url.Values{
		"userId":         {m.UserID},
		"platformUserId": {m.PlatformUserID},
	}
	var saved models.UserMapping
	if err := c.sendJSON(ctx, http.MethodPost, "save comms user", nil, &saved, query,
		"projects", m.ProjectID, "comms", string(m.Platform), "users"); err != nil {
		return models.UserMapping{}, err
	}
	if saved.PlatformUserID == "" {
		saved = m
	}
	return saved, nil
}

// AddConnection links a project to a chat server.
func (c *CommsClient) AddConnection(ctx context.Context, conn models.CommsConnection) (models.CommsConnection, error) {
	query := url.Values{"serverId": {conn.ServerID}}
	var saved models.CommsConnection
	if err := c.sendJSON(ctx, http.MethodPost, "add comms connection", nil, &saved, query,
		"projects", conn.ProjectID, "comms", string(conn.Platform), "connections"); err != nil {
		return models.CommsConnection{}, err
	}
	if saved.ServerID == "" {
		saved = conn
	}
	return saved, nil
}

// SdlcClient talks to the SDLC connector (GitHub).
type SdlcClient struct {
	*baseClient
}

// NewSdlcClient creates an SDLC connector client.
func NewSdlcClient(baseURL string, opts Options, logger *zap.Logger) *SdlcClient {
	return &SdlcClient{baseClient: newBaseClient("sdlc", baseURL, opts, logger)}
}

// ListTokens fetches the access tokens registered for a project.
func (c *SdlcClient) ListTokens(ctx context.Context, projectID string) ([]models.SdlcToken, error) {
	var tokens []models.SdlcToken
	if err := c.getJSON(ctx, "list sdlc tokens", &tokens, nil, "projects", projectID, "token"); err != nil {
		return nil, err
	}
	return tokens, nil
}

// SaveToken registers an access token.
func (c *SdlcClient) SaveToken(ctx context.Context, projectID string, req models.SaveSdlcTokenRequest) (models.SdlcToken, error) {
	var token models.SdlcToken
	if err := c.sendJSON(ctx, http.MethodPost, "save sdlc token", req, &token, nil, "projects", projectID, "token"); err != nil {
		return models.SdlcToken{}, err
	}
	return token, nil
}

// ListUserMappings fetches SDLC-platform user mappings of a project.
func (c *SdlcClient) ListUserMappings(ctx context.Context, projectID string) ([]models.UserMapping, error) {
	var mappings []models.UserMapping
	if err := c.getJSON(ctx, "list sdlc users", &mappings, nil, "projects", projectID, "users"); err != nil {
		return nil, err
	}
	return mappings, nil
}

// SaveUserMapping links an SDLC-platform account to a project user.
func (c *SdlcClient) SaveUserMapping(ctx context.Context, m models.UserMapping) (models.UserMapping, error) {
	var saved models.UserMapping
	if err := c.sendJSON(ctx, http.MethodPost, "save sdlc user", m, &saved, nil, "projects", m.ProjectID, "users"); err != nil {
		return models.UserMapping{}, err
	}
	if saved.PlatformUserID == "" {
		saved = m
	}
	return saved, nil
}
