package services

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/trace-app/trace-dashboard/pkg/apperrors"
	"github.com/trace-app/trace-dashboard/pkg/auth"
	"github.com/trace-app/trace-dashboard/pkg/clients"
	"github.com/trace-app/trace-dashboard/pkg/models"
	"github.com/trace-app/trace-dashboard/pkg/polling"
	"github.com/trace-app/trace-dashboard/pkg/store"
	"github.com/trace-app/trace-dashboard/pkg/testhelpers"
)

func newTestDashboard(t *testing.T, backend *testhelpers.FakeBackend, logger *zap.Logger) *Dashboard {
	t.Helper()
	backends := NewBackends(backend.URLs(), clients.Options{Timeout: 5 * time.Second}, zap.NewNop())
	d := NewDashboard("test", backends, DashboardConfig{
		Polling: polling.Config{MaxAttempts: 10, Interval: time.Millisecond},
	}, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Close(ctx)
	})
	return d
}

func waitForChains(t *testing.T, d *Dashboard) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Engine.Wait(ctx))
}

func signedIn(userID string) context.Context {
	token := testhelpers.GenerateTestJWT(userID, userID+"@example.com")
	claims, _ := auth.ParseClaims(token)
	return auth.WithToken(context.Background(), token, claims)
}

func seedProject(t *testing.T, backend *testhelpers.FakeBackend, d *Dashboard) {
	t.Helper()
	backend.AddProject(models.Project{ID: "p1", Name: "Alpha"})
	require.NoError(t, d.Selector.Navigate(context.Background(), "/projects/p1"))
}

func TestDashboard_MeetingNoteUpload(t *testing.T) {
	backend := testhelpers.NewFakeBackend(t)
	backend.SetCompleteAfter(3)
	d := newTestDashboard(t, backend, zap.NewNop())
	seedProject(t, backend, d)

	note, err := d.MeetingNotes.Upload(context.Background(), "p1", 2, "standup.mp3", strings.NewReader("audio"))
	require.NoError(t, err)

	assert.True(t, note.Loading)
	assert.Equal(t, "Note "+note.ID, note.Name)
	assert.Equal(t, "mp3", note.AudioExtension)
	stored, ok := store.Item(d.Store, "p1", store.MeetingNotes, note.ID)
	require.True(t, ok, "the note is visible before transcription finishes")
	assert.True(t, stored.Loading)

	waitForChains(t, d)

	assert.Equal(t, 3, backend.FetchCount(note.ID))
	notes := d.Selector.Notes()
	require.Len(t, notes, 1)
	assert.False(t, notes[0].Loading)
	assert.Equal(t, "Note "+note.ID, notes[0].Name)
	assert.NotEmpty(t, notes[0].Transcript)
}

func TestDashboard_UploadRejectsMissingSpeakers(t *testing.T) {
	backend := testhelpers.NewFakeBackend(t)
	d := newTestDashboard(t, backend, zap.NewNop())
	seedProject(t, backend, d)
	version := d.Store.Version()

	_, err := d.MeetingNotes.Upload(context.Background(), "p1", 0, "a.mp3", strings.NewReader("x"))

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, version, d.Store.Version())
	assert.Len(t, d.Notifier.TakeUnseen(), 1)
}

func TestDashboard_StuckReport(t *testing.T) {
	backend := testhelpers.NewFakeBackend(t)
	backend.SetCompleteAfter(testhelpers.Never)
	core, logs := observer.New(zapcore.WarnLevel)
	d := newTestDashboard(t, backend, zap.New(core))
	seedProject(t, backend, d)

	report, err := d.Reports.Generate(context.Background(), "p1", models.ReportParams{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC),
		UserIDs:   []string{"u1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Report "+report.ID, report.Name)

	waitForChains(t, d)

	assert.Equal(t, 10, backend.FetchCount(report.ID))
	reports := d.Selector.Reports()
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Loading, "a stuck report stays loading")
	assert.Len(t, logs.FilterMessage("Polling stopped").FilterField(zap.String("kind", "report")).All(), 1)
	assert.Empty(t, d.Notifier.Recent(), "a stuck job is logged, not shown")
}

func TestDashboard_GenerateReportRejectsInvertedWindow(t *testing.T) {
	backend := testhelpers.NewFakeBackend(t)
	d := newTestDashboard(t, backend, zap.NewNop())

	_, err := d.Reports.Generate(context.Background(), "p1", models.ReportParams{
		StartTime: time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestDashboard_LoadAllReportsSkipsCompletedOnes(t *testing.T) {
	backend := testhelpers.NewFakeBackend(t)
	d := newTestDashboard(t, backend, zap.NewNop())
	seedProject(t, backend, d)
	backend.AddReport("p1", models.Report{ID: "r1", Name: "Weekly", GeneratedAt: time.Now()})

	reports, err := d.Reports.LoadAll(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "Weekly", reports[0].Name)
	assert.False(t, d.Selector.Loading().Reports)
	assert.Empty(t, d.Engine.Chains())

	content, err := d.Reports.LoadContent(context.Background(), "p1", "r1")
	require.NoError(t, err)
	assert.Equal(t, "Weekly", content.Name)
}

func TestDashboard_LoadProjectKeepsLoadedReports(t *testing.T) {
	backend := testhelpers.NewFakeBackend(t)
	d := newTestDashboard(t, backend, zap.NewNop())
	seedProject(t, backend, d)
	backend.AddReport("p1", models.Report{ID: "r1", Name: "Weekly", GeneratedAt: time.Now()})
	_, err := d.Reports.LoadAll(context.Background(), "p1")
	require.NoError(t, err)

	project, err := d.Projects.LoadProject(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, "Alpha", project.Name)
	assert.Contains(t, project.Reports, "r1")
	assert.Equal(t, []string{"r1"}, ids(d.Selector.Reports()))
}

func TestDashboard_ChatRequiresSignedInUser(t *testing.T) {
	backend := testhelpers.NewFakeBackend(t)
	d := newTestDashboard(t, backend, zap.NewNop())
	seedProject(t, backend, d)

	_, err := d.Chat.Send(context.Background(), "p1", "hello")

	assert.ErrorIs(t, err, apperrors.ErrNotSignedIn)
	unseen := d.Notifier.TakeUnseen()
	require.Len(t, unseen, 1)
	assert.Equal(t, "Client error: no signed-in user", unseen[0].Message)
}

func TestDashboard_ChatReplyIsPolledWithCallerToken(t *testing.T) {
	backend := testhelpers.NewFakeBackend(t)
	backend.SetCompleteAfter(2)
	d := newTestDashboard(t, backend, zap.NewNop())
	seedProject(t, backend, d)
	ctx := signedIn("u1")

	messages, err := d.Chat.Send(ctx, "p1", "What shipped this week?")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Empty(t, messages[1].Content)
	assert.True(t, messages[1].Loading)

	waitForChains(t, d)

	thread := d.Selector.Messages()
	require.Len(t, thread, 2)
	assert.Equal(t, "u1", thread[0].UserID)
	assert.False(t, thread[1].Loading)
	assert.Equal(t, "Reply to: What shipped this week?", thread[1].Content)
	assert.Equal(t, 2, backend.FetchCount(messages[1].ID))

	token, _ := auth.GetToken(ctx)
	headers := backend.AuthHeaders()
	assert.Equal(t, "Bearer "+token, headers[len(headers)-1], "background polls carry the caller's token")

	history, err := d.Chat.LoadAll(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestDashboard_SubmitFailurePublishesOnce(t *testing.T) {
	backend := testhelpers.NewFakeBackend(t)
	d := newTestDashboard(t, backend, zap.NewNop())
	seedProject(t, backend, d)
	backend.Fail("POST /genai/project/p1/summary", http.StatusBadGateway)
	version := d.Store.Version()

	_, err := d.Reports.Generate(context.Background(), "p1", models.ReportParams{
		StartTime: time.Now().Add(-time.Hour),
		EndTime:   time.Now(),
	})

	require.Error(t, err)
	assert.Equal(t, version, d.Store.Version())
	assert.Empty(t, d.Engine.Chains())
	unseen := d.Notifier.TakeUnseen()
	require.Len(t, unseen, 1)
	assert.Equal(t, "Server error: 502 Bad Gateway", unseen[0].Message)
}

func TestDashboard_ProjectLifecycle(t *testing.T) {
	backend := testhelpers.NewFakeBackend(t)
	backend.AddUser(models.User{ID: "u1", Username: "ada"})
	backend.AddUser(models.User{ID: "u2", Username: "grace"})
	d := newTestDashboard(t, backend, zap.NewNop())
	ctx := context.Background()

	_, err := d.Projects.CreateProject(ctx, models.CreateProjectRequest{Name: "  "})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	created, err := d.Projects.CreateProject(ctx, models.CreateProjectRequest{Name: "Alpha"})
	require.NoError(t, err)
	_, ok := d.Store.Get(created.ID)
	assert.True(t, ok)

	projects, err := d.Projects.LoadProjectList(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.False(t, d.Selector.Loading().ProjectList)

	directory, err := d.Projects.LoadAllUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, directory, 2)

	require.NoError(t, d.Projects.AssignUsers(ctx, created.ID, []string{"u1", "u2"}))
	stored, _ := d.Store.Get(created.ID)
	assert.Equal(t, []string{"u1", "u2"}, models.UserIDs(stored.Users))

	require.NoError(t, d.Projects.RemoveUsers(ctx, created.ID, []string{"u1"}))
	stored, _ = d.Store.Get(created.ID)
	assert.Equal(t, []string{"u2"}, models.UserIDs(stored.Users))

	users, err := d.Projects.LoadProjectUsers(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, models.UserIDs(users))
}

func TestDashboard_AssignUnknownUserReloadsProjectUsers(t *testing.T) {
	backend := testhelpers.NewFakeBackend(t)
	backend.AddUser(models.User{ID: "u1", Username: "ada"})
	d := newTestDashboard(t, backend, zap.NewNop())
	seedProject(t, backend, d)

	require.NoError(t, d.Projects.AssignUsers(context.Background(), "p1", []string{"u1"}))

	assert.Equal(t, []string{"u1"}, models.UserIDs(d.Selector.Users()))
}

func TestDashboard_Integrations(t *testing.T) {
	backend := testhelpers.NewFakeBackend(t)
	d := newTestDashboard(t, backend, zap.NewNop())
	seedProject(t, backend, d)
	ctx := context.Background()

	_, err := d.Integrations.SaveCommsMapping(ctx, models.UserMapping{ProjectID: "p1", Platform: models.PlatformGitHub, PlatformUserID: "x"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = d.Integrations.SaveCommsMapping(ctx, models.UserMapping{
		ProjectID: "p1", Platform: models.PlatformSlack, PlatformUserID: "U123", UserID: "u1",
	})
	require.NoError(t, err)
	_, err = d.Integrations.SaveSdlcMapping(ctx, models.UserMapping{ProjectID: "p1", PlatformUserID: "octocat", UserID: "u2"})
	require.NoError(t, err)

	assert.Len(t, d.Selector.UserMappings(""), 2)
	assert.Len(t, d.Selector.UserMappings(models.PlatformGitHub), 1)

	_, err = d.Integrations.SaveCommsMapping(ctx, models.UserMapping{
		ProjectID: "p1", Platform: models.PlatformSlack, PlatformUserID: "U123",
	})
	require.NoError(t, err)
	assert.Empty(t, d.Selector.UserMappings(models.PlatformSlack), "an empty user id unmaps the account")

	conn, err := d.Integrations.AddCommsConnection(ctx, models.CommsConnection{ProjectID: "p1", Platform: models.PlatformDiscord, ServerID: "guild-1"})
	require.NoError(t, err)
	assert.Equal(t, "guild-1", conn.ServerID)

	token, err := d.Integrations.SaveSdlcToken(ctx, "p1", models.SaveSdlcTokenRequest{Token: "ghp_secret"})
	require.NoError(t, err)
	assert.Equal(t, models.PlatformGitHub, token.Platform)

	tokens, err := d.Integrations.ListSdlcTokens(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, tokens, 1)

	mappings, err := d.Integrations.LoadSdlcMappings(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, mappings, 1)

	speakers, err := d.Integrations.ListSpeakers(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, speakers)
}

func TestDashboard_SubscribeJobs(t *testing.T) {
	backend := testhelpers.NewFakeBackend(t)
	d := newTestDashboard(t, backend, zap.NewNop())
	seedProject(t, backend, d)
	jobs, unsubscribe := d.SubscribeJobs()
	defer unsubscribe()

	_, err := d.Reports.Generate(context.Background(), "p1", models.ReportParams{
		StartTime: time.Now().Add(-time.Hour),
		EndTime:   time.Now(),
	})
	require.NoError(t, err)
	waitForChains(t, d)

	var last polling.ChainSnapshot
	for len(jobs) > 0 {
		last = <-jobs
	}
	assert.Equal(t, polling.ChainStatusDone, last.Status)
	assert.Equal(t, "report", last.Kind)
}
