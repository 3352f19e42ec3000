package clients

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/trace-app/trace-dashboard/pkg/models"
)

// TranscriptionClient talks to the transcription service, which owns meeting
// notes and speaker samples.
type TranscriptionClient struct {
	*baseClient
}

// NewTranscriptionClient creates a transcription client.
func NewTranscriptionClient(baseURL string, opts Options, logger *zap.Logger) *TranscriptionClient {
	return &TranscriptionClient{baseClient: newBaseClient("transcription", baseURL, opts, logger)}
}

// ListMeetingNotes fetches all meeting notes of a project. The service answers
// 204 when there are none.
func (c *TranscriptionClient) ListMeetingNotes(ctx context.Context, projectID string) ([]models.MeetingNote, error) {
	var notes []models.MeetingNote
	if err := c.getJSON(ctx, "list meeting notes", &notes, nil, "projects", projectID, "transcripts"); err != nil {
		return nil, err
	}
	return notes, nil
}

// GetMeetingNote fetches one meeting note.
func (c *TranscriptionClient) GetMeetingNote(ctx context.Context, projectID, noteID string) (models.MeetingNote, error) {
	var note models.MeetingNote
	if err := c.getJSON(ctx, "get meeting note", &note, nil, "projects", projectID, "transcripts", noteID); err != nil {
		return models.MeetingNote{}, err
	}
	return note, nil
}

// UploadMeetingNote streams an audio file to the service as multipart form
// data. The service accepts it for transcription and answers 202.
func (c *TranscriptionClient) UploadMeetingNote(ctx context.Context, projectID string, speakerAmount int, fileName string, audio io.Reader) (models.TranscriptUploadResponse, error) {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		part, err := form.CreateFormFile("file", fileName)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, audio); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(form.Close())
	}()

	query := url.Values{"speakerAmount": {strconv.Itoa(speakerAmount)}}
	var resp models.TranscriptUploadResponse
	err := c.request(ctx, http.MethodPost, "upload meeting note", pr, form.FormDataContentType(), &resp, query, "projects", projectID, "transcripts")
	// Unblocks the writer goroutine if the request ended before reading the body.
	pr.Close()
	if err != nil {
		return models.TranscriptUploadResponse{}, err
	}
	if resp.TranscriptID == "" {
		return models.TranscriptUploadResponse{}, fmt.Errorf("upload meeting note: response carried no transcript id")
	}
	return resp, nil
}

// ListSpeakers fetches the voice samples registered for a project.
func (c *TranscriptionClient) ListSpeakers(ctx context.Context, projectID string) ([]models.Speaker, error) {
	var speakers []models.Speaker
	if err := c.getJSON(ctx, "list speakers", &speakers, nil, "projects", projectID, "speakers"); err != nil {
		return nil, err
	}
	return speakers, nil
}
