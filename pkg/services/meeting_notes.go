package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/trace-app/trace-dashboard/pkg/apperrors"
	"github.com/trace-app/trace-dashboard/pkg/auth"
	"github.com/trace-app/trace-dashboard/pkg/models"
	"github.com/trace-app/trace-dashboard/pkg/polling"
)

// MeetingNoteService uploads meeting recordings and tracks their transcription.
type MeetingNoteService struct {
	backend  TranscriptionBackend
	engine   *polling.Engine
	loading  *LoadState
	reporter reporter
	nowFunc  func() time.Time
}

// NewMeetingNoteService creates a meeting note service.
func NewMeetingNoteService(backend TranscriptionBackend, engine *polling.Engine, loading *LoadState, notifier *Notifier, logger *zap.Logger) *MeetingNoteService {
	return &MeetingNoteService{
		backend:  backend,
		engine:   engine,
		loading:  loading,
		reporter: reporter{notifier: notifier, logger: logger.Named("meeting_notes")},
		nowFunc:  time.Now,
	}
}

// LoadAll replaces the project's notes and polls the ones still transcribing.
func (s *MeetingNoteService) LoadAll(ctx context.Context, projectID string) ([]models.MeetingNote, error) {
	done := s.loading.Begin(LoadNotes)
	defer done()

	notes, err := polling.LoadAll(ctx, s.engine, polling.MeetingNoteKind, projectID, func(ctx context.Context) ([]models.MeetingNote, error) {
		return s.backend.ListMeetingNotes(ctx, projectID)
	}, s.fetch(ctx, projectID))
	if err != nil {
		return nil, s.reporter.fail("load meeting notes", err, zap.String("project_id", projectID))
	}
	return notes, nil
}

// Upload sends a recording for transcription. The note is stored at once
// and polled until its transcript is ready.
func (s *MeetingNoteService) Upload(ctx context.Context, projectID string, speakerAmount int, fileName string, audio io.Reader) (models.MeetingNote, error) {
	if speakerAmount < 1 {
		err := fmt.Errorf("speaker amount must be at least 1: %w", apperrors.ErrInvalidInput)
		return models.MeetingNote{}, s.reporter.fail("upload meeting note", err, zap.String("project_id", projectID))
	}

	note, err := polling.Submit(ctx, s.engine, polling.MeetingNoteKind, projectID, func(ctx context.Context) (models.MeetingNote, error) {
		resp, err := s.backend.UploadMeetingNote(ctx, projectID, speakerAmount, fileName, audio)
		if err != nil {
			return models.MeetingNote{}, err
		}
		return models.MeetingNote{
			ID:             resp.TranscriptID,
			Loading:        resp.Loading,
			ProjectID:      projectID,
			Timestamp:      s.nowFunc().UTC(),
			AudioExtension: strings.TrimPrefix(filepath.Ext(fileName), "."),
		}, nil
	}, s.fetch(ctx, projectID))
	if err != nil {
		return models.MeetingNote{}, s.reporter.fail("upload meeting note", err, zap.String("project_id", projectID))
	}
	return note, nil
}

// fetch re-fetches notes with the caller's credentials.
func (s *MeetingNoteService) fetch(reqCtx context.Context, projectID string) polling.FetchFunc[models.MeetingNote] {
	return func(ctx context.Context, id string) (models.MeetingNote, error) {
		return s.backend.GetMeetingNote(auth.Detach(ctx, reqCtx), projectID, id)
	}
}
