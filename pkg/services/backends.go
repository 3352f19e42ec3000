package services

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/trace-app/trace-dashboard/pkg/clients"
	"github.com/trace-app/trace-dashboard/pkg/config"
	"github.com/trace-app/trace-dashboard/pkg/logging"
	"github.com/trace-app/trace-dashboard/pkg/models"
)

// ProjectBackend is the project-management service.
type ProjectBackend interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
	GetProject(ctx context.Context, projectID string) (models.Project, error)
	CreateProject(ctx context.Context, req models.CreateProjectRequest) (models.Project, error)
	ListProjectUsers(ctx context.Context, projectID string) ([]models.User, error)
	AssignUsers(ctx context.Context, projectID string, userIDs []string) error
	RemoveUsers(ctx context.Context, projectID string, userIDs []string) error
	ListUsers(ctx context.Context) ([]models.User, error)
}

// TranscriptionBackend is the transcription service.
type TranscriptionBackend interface {
	ListMeetingNotes(ctx context.Context, projectID string) ([]models.MeetingNote, error)
	GetMeetingNote(ctx context.Context, projectID, noteID string) (models.MeetingNote, error)
	UploadMeetingNote(ctx context.Context, projectID string, speakerAmount int, fileName string, audio io.Reader) (models.TranscriptUploadResponse, error)
	ListSpeakers(ctx context.Context, projectID string) ([]models.Speaker, error)
}

// GenAIBackend is the gen-AI service behind reports and chat.
type GenAIBackend interface {
	ListReports(ctx context.Context, projectID string) ([]models.Report, error)
	GetReport(ctx context.Context, projectID, reportID string) (models.Report, error)
	GenerateReport(ctx context.Context, projectID string, params models.ReportParams) (models.Report, error)
	ListMessages(ctx context.Context, projectID, userID string) ([]models.Message, error)
	GetMessage(ctx context.Context, projectID, userID, messageID string) (models.Message, error)
	SendMessage(ctx context.Context, projectID, userID, content string) ([]models.Message, error)
}

// CommsBackend is the chat-platform connector.
type CommsBackend interface {
	ListUserMappings(ctx context.Context, projectID string) ([]models.UserMapping, error)
	SaveUserMapping(ctx context.Context, m models.UserMapping) (models.UserMapping, error)
	AddConnection(ctx context.Context, conn models.CommsConnection) (models.CommsConnection, error)
}

// SdlcBackend is the source-control connector.
type SdlcBackend interface {
	ListTokens(ctx context.Context, projectID string) ([]models.SdlcToken, error)
	SaveToken(ctx context.Context, projectID string, req models.SaveSdlcTokenRequest) (models.SdlcToken, error)
	ListUserMappings(ctx context.Context, projectID string) ([]models.UserMapping, error)
	SaveUserMapping(ctx context.Context, m models.UserMapping) (models.UserMapping, error)
}

// Backends bundles the clients of every backend service. They are shared by
// all dashboard sessions.
type Backends struct {
	Projects      ProjectBackend
	Transcription TranscriptionBackend
	GenAI         GenAIBackend
	Comms         CommsBackend
	Sdlc          SdlcBackend
}

// NewBackends creates HTTP clients for the configured services.
func NewBackends(cfg config.ServicesConfig, opts clients.Options, logger *zap.Logger) Backends {
	return Backends{
		Projects:      clients.NewProjectClient(cfg.ProjectManagementURL, opts, logger),
		Transcription: clients.NewTranscriptionClient(cfg.TranscriptionURL, opts, logger),
		GenAI:         clients.NewGenAIClient(cfg.GenAIURL, opts, logger),
		Comms:         clients.NewCommsClient(cfg.CommsURL, opts, logger),
		Sdlc:          clients.NewSdlcClient(cfg.SdlcURL, opts, logger),
	}
}

// reporter logs a failed action and surfaces it to the user once.
type reporter struct {
	notifier *Notifier
	logger   *zap.Logger
}

func (r reporter) fail(op string, err error, fields ...zap.Field) error {
	fields = append(fields, zap.String("error", logging.SanitizeError(err)))
	r.logger.Error("Failed to "+op, fields...)
	r.notifier.Error(err)
	return err
}
