package clients

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trace-app/trace-dashboard/pkg/apperrors"
	"github.com/trace-app/trace-dashboard/pkg/auth"
	"github.com/trace-app/trace-dashboard/pkg/models"
	"github.com/trace-app/trace-dashboard/pkg/testhelpers"
)

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		query    url.Values
		segments []string
		want     string
	}{
		{"no base path", "http://svc:8081", nil, []string{"projects", "p1"}, "http://svc:8081/projects/p1"},
		{"base path", "http://svc/pm/", nil, []string{"projects"}, "http://svc/pm/projects"},
		{"escaped segment", "http://svc", nil, []string{"projects", "a b"}, "http://svc/projects/a%20b"},
		{"query", "http://svc", url.Values{"userId": {"u1"}}, []string{"chat"}, "http://svc/chat?userId=u1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildURL(tt.base, tt.query, tt.segments...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequest_SetsHeaders(t *testing.T) {
	var gotAuth, gotRequestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get(RequestIDHeader)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewProjectClient(server.URL, Options{}, zap.NewNop())
	ctx := auth.WithToken(context.Background(), "abc.def.ghi", nil)

	_, err := client.ListProjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc.def.ghi", gotAuth)
	assert.Len(t, gotRequestID, 36)
}

func TestRequest_ServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewGenAIClient(server.URL, Options{}, zap.NewNop())
	_, err := client.GetReport(context.Background(), "p1", "r1")

	var serviceErr *apperrors.ServiceError
	require.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, http.StatusInternalServerError, serviceErr.StatusCode)
	assert.Equal(t, "Server error: 500 Internal Server Error", apperrors.Normalize(err))
	assert.Equal(t, "get report", serviceErr.Op)
}

func TestRequest_NotFoundUnwraps(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	client := NewProjectClient(server.URL, Options{}, zap.NewNop())
	_, err := client.GetProject(context.Background(), "missing")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRequest_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client := NewProjectClient(server.URL, Options{Timeout: time.Second}, zap.NewNop())
	_, err := client.ListProjects(context.Background())

	require.Error(t, err)
	assert.True(t, strings.HasPrefix(apperrors.Normalize(err), "Client error: "))
}

func TestGetJSON_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[{"id":"p1","name":"Alpha"}]`))
	}))
	defer server.Close()

	client := NewProjectClient(server.URL, Options{RetryMax: 2}, zap.NewNop())
	client.retry.InitialDelay = time.Millisecond

	projects, err := client.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Len(t, projects, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetJSON_NoRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewProjectClient(server.URL, Options{}, zap.NewNop())
	_, err := client.ListProjects(context.Background())

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTranscriptionClient_UploadAndPoll(t *testing.T) {
	backend := testhelpers.NewFakeBackend(t)
	backend.SetCompleteAfter(2)
	client := NewTranscriptionClient(backend.URLs().TranscriptionURL, Options{}, zap.NewNop())
	ctx := context.Background()

	empty, err := client.ListMeetingNotes(ctx, "p1")
	require.NoError(t, err, "204 must decode as an empty list")
	assert.Empty(t, empty)

	resp, err := client.UploadMeetingNote(ctx, "p1", 2, "standup.mp3", strings.NewReader("audio-bytes"))
	require.NoError(t, err)
	assert.True(t, resp.Loading)
	require.NotEmpty(t, resp.TranscriptID)

	note, err := client.GetMeetingNote(ctx, "p1", resp.TranscriptID)
	require.NoError(t, err)
	assert.True(t, note.Loading)
	assert.Equal(t, "mp3", note.AudioExtension)

	note, err = client.GetMeetingNote(ctx, "p1", resp.TranscriptID)
	require.NoError(t, err)
	assert.False(t, note.Loading)
	assert.NotEmpty(t, note.Transcript)
}

func TestTranscriptionClient_UploadRejected(t *testing.T) {
	backend := testhelpers.NewFakeBackend(t)
	client := NewTranscriptionClient(backend.URLs().TranscriptionURL, Options{}, zap.NewNop())

	_, err := client.UploadMeetingNote(context.Background(), "p1", 0, "a.mp3", strings.NewReader("x"))

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestGenAIClient_ReportsAndChat(t *testing.T) {
	backend := testhelpers.NewFakeBackend(t)
	client := NewGenAIClient(backend.URLs().GenAIURL, Options{}, zap.NewNop())
	ctx := context.Background()

	report, err := client.GenerateReport(ctx, "p1", models.ReportParams{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC),
		UserIDs:   []string{"u1", "u2"},
	})
	require.NoError(t, err)
	assert.True(t, report.Loading)
	assert.Equal(t, []string{"u1", "u2"}, report.UserIDs)

	fetched, err := client.GetReport(ctx, "p1", report.ID)
	require.NoError(t, err)
	assert.False(t, fetched.Loading)

	messages, err := client.SendMessage(ctx, "p1", "u1", "What shipped?")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "u1", messages[0].UserID)
	assert.True(t, messages[1].IsFromAI())
	assert.True(t, messages[1].Loading)

	history, err := client.ListMessages(ctx, "p1", "u1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestConnectorClients(t *testing.T) {
	backend := testhelpers.NewFakeBackend(t)
	urls := backend.URLs()
	comms := NewCommsClient(urls.CommsURL, Options{}, zap.NewNop())
	sdlc := NewSdlcClient(urls.SdlcURL, Options{}, zap.NewNop())
	ctx := context.Background()

	saved, err := comms.SaveUserMapping(ctx, models.UserMapping{
		ProjectID: "p1", Platform: models.PlatformDiscord, PlatformUserID: "disc#1", UserID: "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, "DISCORD:disc#1", saved.Key())

	conn, err := comms.AddConnection(ctx, models.CommsConnection{ProjectID: "p1", Platform: models.PlatformSlack, ServerID: "T123"})
	require.NoError(t, err)
	assert.Equal(t, "T123", conn.ServerID)

	_, err = sdlc.SaveUserMapping(ctx, models.UserMapping{ProjectID: "p1", PlatformUserID: "octocat", UserID: "u2"})
	require.NoError(t, err)

	commsMappings, err := comms.ListUserMappings(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, commsMappings, 1)

	sdlcMappings, err := sdlc.ListUserMappings(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, sdlcMappings, 1)
	assert.Equal(t, models.PlatformGitHub, sdlcMappings[0].Platform)

	token, err := sdlc.SaveToken(ctx, "p1", models.SaveSdlcTokenRequest{Platform: models.PlatformGitHub, Token: "ghp_x"})
	require.NoError(t, err)
	assert.NotEmpty(t, token.ID)
}
