package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/trace-app/trace-dashboard/pkg/apperrors"
	"github.com/trace-app/trace-dashboard/pkg/auth"
	"github.com/trace-app/trace-dashboard/pkg/models"
	"github.com/trace-app/trace-dashboard/pkg/polling"
)

// ChatService talks to the project assistant on behalf of the signed-in user.
type ChatService struct {
	backend  GenAIBackend
	engine   *polling.Engine
	loading  *LoadState
	reporter reporter
}

// NewChatService creates a chat service.
func NewChatService(backend GenAIBackend, engine *polling.Engine, loading *LoadState, notifier *Notifier, logger *zap.Logger) *ChatService {
	return &ChatService{
		backend:  backend,
		engine:   engine,
		loading:  loading,
		reporter: reporter{notifier: notifier, logger: logger.Named("chat")},
	}
}

// LoadAll replaces the project's chat history for the signed-in user.
func (s *ChatService) LoadAll(ctx context.Context, projectID string) ([]models.Message, error) {
	done := s.loading.Begin(LoadMessages)
	defer done()

	userID, err := auth.RequireUserIDFromContext(ctx)
	if err != nil {
		return nil, s.reporter.fail("load chat", err, zap.String("project_id", projectID))
	}

	messages, err := polling.LoadAll(ctx, s.engine, polling.MessageKind, projectID, func(ctx context.Context) ([]models.Message, error) {
		return s.backend.ListMessages(ctx, projectID, userID)
	}, s.fetch(ctx, projectID, userID))
	if err != nil {
		return nil, s.reporter.fail("load chat", err, zap.String("project_id", projectID))
	}
	return messages, nil
}

// Send posts a message. The server answers with the stored message and a
// pending reply, which is polled until the assistant finishes.
func (s *ChatService) Send(ctx context.Context, projectID, content string) ([]models.Message, error) {
	userID, err := auth.RequireUserIDFromContext(ctx)
	if err != nil {
		return nil, s.reporter.fail("send message", err, zap.String("project_id", projectID))
	}
	content = strings.TrimSpace(content)
	if content == "" {
		err := fmt.Errorf("message is empty: %w", apperrors.ErrInvalidInput)
		return nil, s.reporter.fail("send message", err, zap.String("project_id", projectID))
	}

	messages, err := polling.SubmitMany(ctx, s.engine, polling.MessageKind, projectID, func(ctx context.Context) ([]models.Message, error) {
		return s.backend.SendMessage(ctx, projectID, userID, content)
	}, s.fetch(ctx, projectID, userID))
	if err != nil {
		return nil, s.reporter.fail("send message", err, zap.String("project_id", projectID))
	}
	return messages, nil
}

func (s *ChatService) fetch(reqCtx context.Context, projectID, userID string) polling.FetchFunc[models.Message] {
	return func(ctx context.Context, id string) (models.Message, error) {
		return s.backend.GetMessage(auth.Detach(ctx, reqCtx), projectID, userID, id)
	}
}
