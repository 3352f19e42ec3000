package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/trace-app/trace-dashboard/pkg/apperrors"
	"github.com/trace-app/trace-dashboard/pkg/models"
	"github.com/trace-app/trace-dashboard/pkg/store"
)

// IntegrationService manages connector settings: user mappings, chat
// servers, SDLC tokens and speaker samples.
type IntegrationService struct {
	comms         CommsBackend
	sdlc          SdlcBackend
	transcription TranscriptionBackend
	store         *store.Store
	reporter      reporter
}

// NewIntegrationService creates an integration service.
func NewIntegrationService(backends Backends, st *store.Store, notifier *Notifier, logger *zap.Logger) *IntegrationService {
	return &IntegrationService{
		comms:         backends.Comms,
		sdlc:          backends.Sdlc,
		transcription: backends.Transcription,
		store:         st,
		reporter:      reporter{notifier: notifier, logger: logger.Named("integrations")},
	}
}

// LoadCommsMappings merges the project's chat-platform mappings into the store.
func (s *IntegrationService) LoadCommsMappings(ctx context.Context, projectID string) ([]models.UserMapping, error) {
	mappings, err := s.comms.ListUserMappings(ctx, projectID)
	if err != nil {
		return nil, s.reporter.fail("load comms user mappings", err, zap.String("project_id", projectID))
	}
	s.merge(projectID, mappings)
	return mappings, nil
}

// SaveCommsMapping maps a chat-platform account to a project user. An empty
// UserID unmaps the account.
func (s *IntegrationService) SaveCommsMapping(ctx context.Context, m models.UserMapping) (models.UserMapping, error) {
	if !models.IsCommsPlatform(m.Platform) || m.PlatformUserID == "" {
		err := fmt.Errorf("unsupported comms mapping %q: %w", m.Key(), apperrors.ErrInvalidInput)
		return models.UserMapping{}, s.reporter.fail("save comms user mapping", err, zap.String("project_id", m.ProjectID))
	}

	saved, err := s.comms.SaveUserMapping(ctx, m)
	if err != nil {
		return models.UserMapping{}, s.reporter.fail("save comms user mapping", err, zap.String("project_id", m.ProjectID))
	}
	s.apply(m.ProjectID, saved)
	return saved, nil
}

// AddCommsConnection links the project to a chat server.
func (s *IntegrationService) AddCommsConnection(ctx context.Context, conn models.CommsConnection) (models.CommsConnection, error) {
	if !models.IsCommsPlatform(conn.Platform) || conn.ServerID == "" {
		err := fmt.Errorf("a supported platform and server id are required: %w", apperrors.ErrInvalidInput)
		return models.CommsConnection{}, s.reporter.fail("add comms connection", err, zap.String("project_id", conn.ProjectID))
	}

	saved, err := s.comms.AddConnection(ctx, conn)
	if err != nil {
		return models.CommsConnection{}, s.reporter.fail("add comms connection", err, zap.String("project_id", conn.ProjectID))
	}
	return saved, nil
}

// ListSdlcTokens returns the SDLC tokens registered for a project.
func (s *IntegrationService) ListSdlcTokens(ctx context.Context, projectID string) ([]models.SdlcToken, error) {
	tokens, err := s.sdlc.ListTokens(ctx, projectID)
	if err != nil {
		return nil, s.reporter.fail("load sdlc tokens", err, zap.String("project_id", projectID))
	}
	return tokens, nil
}

// SaveSdlcToken registers an SDLC access token.
func (s *IntegrationService) SaveSdlcToken(ctx context.Context, projectID string, req models.SaveSdlcTokenRequest) (models.SdlcToken, error) {
	if req.Token == "" {
		err := fmt.Errorf("token is required: %w", apperrors.ErrInvalidInput)
		return models.SdlcToken{}, s.reporter.fail("save sdlc token", err, zap.String("project_id", projectID))
	}
	if req.Platform == "" {
		req.Platform = models.PlatformGitHub
	}

	token, err := s.sdlc.SaveToken(ctx, projectID, req)
	if err != nil {
		return models.SdlcToken{}, s.reporter.fail("save sdlc token", err, zap.String("project_id", projectID))
	}
	return token, nil
}

// LoadSdlcMappings merges the project's source-control mappings into the store.
func (s *IntegrationService) LoadSdlcMappings(ctx context.Context, projectID string) ([]models.UserMapping, error) {
	mappings, err := s.sdlc.ListUserMappings(ctx, projectID)
	if err != nil {
		return nil, s.reporter.fail("load sdlc user mappings", err, zap.String("project_id", projectID))
	}
	s.merge(projectID, mappings)
	return mappings, nil
}

// SaveSdlcMapping maps a source-control account to a project user. An empty
// UserID unmaps the account.
func (s *IntegrationService) SaveSdlcMapping(ctx context.Context, m models.UserMapping) (models.UserMapping, error) {
	m.Platform = models.PlatformGitHub
	if m.PlatformUserID == "" {
		err := fmt.Errorf("platform user id is required: %w", apperrors.ErrInvalidInput)
		return models.UserMapping{}, s.reporter.fail("save sdlc user mapping", err, zap.String("project_id", m.ProjectID))
	}

	saved, err := s.sdlc.SaveUserMapping(ctx, m)
	if err != nil {
		return models.UserMapping{}, s.reporter.fail("save sdlc user mapping", err, zap.String("project_id", m.ProjectID))
	}
	s.apply(m.ProjectID, saved)
	return saved, nil
}

// ListSpeakers returns the speaker samples registered for a project.
func (s *IntegrationService) ListSpeakers(ctx context.Context, projectID string) ([]models.Speaker, error) {
	speakers, err := s.transcription.ListSpeakers(ctx, projectID)
	if err != nil {
		return nil, s.reporter.fail("load speakers", err, zap.String("project_id", projectID))
	}
	return speakers, nil
}

func (s *IntegrationService) merge(projectID string, mappings []models.UserMapping) {
	for _, m := range mappings {
		s.apply(projectID, m)
	}
}

func (s *IntegrationService) apply(projectID string, m models.UserMapping) {
	m.ProjectID = projectID
	if m.UserID == "" {
		store.RemoveNested(s.store, projectID, store.UserMappings, m.Key())
		return
	}
	store.UpsertNested(s.store, projectID, store.UserMappings, m)
}
