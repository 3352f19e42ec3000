package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trace-app/trace-dashboard/pkg/config"
	"github.com/trace-app/trace-dashboard/pkg/models"
)

// Never can be passed to SetCompleteAfter for jobs that stay loading forever.
const Never = -1

// FakeBackend serves every backend service the dashboard talks to from one
// httptest server. Each service is mounted under its own path prefix.
//
// Asynchronous jobs (meeting notes, reports, AI replies) are created loading
// and complete on the Nth fetch by id, as set by SetCompleteAfter.
type FakeBackend struct {
	Server *httptest.Server

	mu            sync.Mutex
	projects      map[string]*models.Project
	directory     []models.User
	notes         map[string][]*models.MeetingNote
	reports       map[string][]*models.Report
	messages      map[string][]*models.Message
	mappings      map[string][]models.UserMapping
	connections   map[string][]models.CommsConnection
	tokens        map[string][]models.SdlcToken
	speakers      map[string][]models.Speaker
	jobs          map[string]*fakeJob
	completeAfter int
	failures      map[string]int
	authHeaders   []string
}

type fakeJob struct {
	fetches       int
	completeAfter int
	complete      func()
}

// NewFakeBackend starts a fake backend that is closed when the test ends.
// Jobs complete on their first fetch by default.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	b := &FakeBackend{
		projects:      make(map[string]*models.Project),
		notes:         make(map[string][]*models.MeetingNote),
		reports:       make(map[string][]*models.Report),
		messages:      make(map[string][]*models.Message),
		mappings:      make(map[string][]models.UserMapping),
		connections:   make(map[string][]models.CommsConnection),
		tokens:        make(map[string][]models.SdlcToken),
		speakers:      make(map[string][]models.Speaker),
		jobs:          make(map[string]*fakeJob),
		completeAfter: 1,
		failures:      make(map[string]int),
	}

	mux := http.NewServeMux()
	b.registerProjectManagement(mux)
	b.registerTranscription(mux)
	b.registerGenAI(mux)
	b.registerConnectors(mux)

	b.Server = httptest.NewServer(b.recordAndFail(mux))
	t.Cleanup(b.Server.Close)
	return b
}

// URLs returns service endpoints pointing at the fake backend.
func (b *FakeBackend) URLs() config.ServicesConfig {
	return config.ServicesConfig{
		ProjectManagementURL: b.Server.URL + "/pm",
		TranscriptionURL:     b.Server.URL + "/transcription",
		GenAIURL:             b.Server.URL + "/genai",
		CommsURL:             b.Server.URL + "/comms",
		SdlcURL:              b.Server.URL + "/sdlc",
	}
}

// SetCompleteAfter sets on which fetch newly created jobs complete.
// Never keeps them loading.
func (b *FakeBackend) SetCompleteAfter(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.completeAfter = n
}

// Fail makes every request whose "METHOD /path" starts with prefix answer
// with status. A zero status clears the failure.
func (b *FakeBackend) Fail(prefix string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if status == 0 {
		delete(b.failures, prefix)
		return
	}
	b.failures[prefix] = status
}

// FetchCount returns how many times a job was fetched by id.
func (b *FakeBackend) FetchCount(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if j, ok := b.jobs[id]; ok {
		return j.fetches
	}
	return 0
}

// AuthHeaders returns the Authorization headers seen so far.
func (b *FakeBackend) AuthHeaders() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.authHeaders)
}

// AddUser adds a user to the directory.
func (b *FakeBackend) AddUser(u models.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.directory = append(b.directory, u)
}

// AddProject seeds a project.
func (b *FakeBackend) AddProject(p models.Project) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p.Users = slices.Clone(p.Users)
	b.projects[p.ID] = &p
}

// AddReport seeds a completed report.
func (b *FakeBackend) AddReport(projectID string, r models.Report) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r.ProjectID = projectID
	b.reports[projectID] = append(b.reports[projectID], &r)
}

// AddMeetingNote seeds a meeting note. Loading notes become jobs.
func (b *FakeBackend) AddMeetingNote(projectID string, n models.MeetingNote) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n.ProjectID = projectID
	note := &n
	b.notes[projectID] = append(b.notes[projectID], note)
	if n.Loading {
		b.newJobLocked(n.ID, func() { completeNote(note) })
	}
}

// CompleteJob finishes a job immediately, regardless of its fetch count.
func (b *FakeBackend) CompleteJob(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if j, ok := b.jobs[id]; ok {
		j.complete()
		j.completeAfter = j.fetches
	}
}

func (b *FakeBackend) recordAndFail(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path

		b.mu.Lock()
		b.authHeaders = append(b.authHeaders, r.Header.Get("Authorization"))
		status := 0
		for prefix, s := range b.failures {
			if strings.HasPrefix(key, prefix) {
				status = s
				break
			}
		}
		b.mu.Unlock()

		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *FakeBackend) newJobLocked(id string, complete func()) {
	b.jobs[id] = &fakeJob{completeAfter: b.completeAfter, complete: complete}
}

// fetchJobLocked counts a fetch by id and completes the job when due.
func (b *FakeBackend) fetchJobLocked(id string) {
	j, ok := b.jobs[id]
	if !ok {
		return
	}
	j.fetches++
	if j.completeAfter >= 0 && j.fetches >= j.completeAfter {
		j.complete()
	}
}

func (b *FakeBackend) registerProjectManagement(mux *http.ServeMux) {
	mux.HandleFunc("GET /pm/projects", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		out := make([]models.Project, 0, len(b.projects))
		for _, p := range b.projects {
			out = append(out, models.Project{ID: p.ID, Name: p.Name, Description: p.Description})
		}
		b.mu.Unlock()
		slices.SortFunc(out, func(a, c models.Project) int { return strings.Compare(a.ID, c.ID) })
		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("POST /pm/projects", func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateProjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}
		p := models.Project{ID: uuid.NewString(), Name: req.Name, Description: req.Description, Users: []models.User{}}
		b.mu.Lock()
		b.projects[p.ID] = &p
		b.mu.Unlock()
		writeJSON(w, http.StatusCreated, p)
	})

	mux.HandleFunc("GET /pm/projects/{pid}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		p, ok := b.projects[r.PathValue("pid")]
		var out models.Project
		if ok {
			out = models.Project{ID: p.ID, Name: p.Name, Description: p.Description, Users: slices.Clone(p.Users)}
		}
		b.mu.Unlock()
		if !ok {
			http.Error(w, "project not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("GET /pm/projects/{pid}/users", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		p, ok := b.projects[r.PathValue("pid")]
		var users []models.User
		if ok {
			users = slices.Clone(p.Users)
		}
		b.mu.Unlock()
		if !ok {
			http.Error(w, "project not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, users)
	})

	mux.HandleFunc("POST /pm/projects/{pid}/users", func(w http.ResponseWriter, r *http.Request) {
		var ids []string
		if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		p, ok := b.projects[r.PathValue("pid")]
		if !ok {
			http.Error(w, "project not found", http.StatusNotFound)
			return
		}
		for _, id := range ids {
			if p.HasUser(id) {
				continue
			}
			for _, u := range b.directory {
				if u.ID == id {
					p.Users = append(p.Users, u)
				}
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("DELETE /pm/projects/{pid}/users", func(w http.ResponseWriter, r *http.Request) {
		var ids []string
		if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		p, ok := b.projects[r.PathValue("pid")]
		if !ok {
			http.Error(w, "project not found", http.StatusNotFound)
			return
		}
		p.Users = slices.DeleteFunc(p.Users, func(u models.User) bool { return slices.Contains(ids, u.ID) })
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /pm/users", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		users := slices.Clone(b.directory)
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, users)
	})
}

func (b *FakeBackend) registerTranscription(mux *http.ServeMux) {
	mux.HandleFunc("GET /transcription/projects/{pid}/transcripts", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		out := make([]models.MeetingNote, 0)
		for _, n := range b.notes[r.PathValue("pid")] {
			out = append(out, n.Clone())
		}
		b.mu.Unlock()
		if len(out) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("POST /transcription/projects/{pid}/transcripts", func(w http.ResponseWriter, r *http.Request) {
		speakers, err := strconv.Atoi(r.URL.Query().Get("speakerAmount"))
		if err != nil || speakers < 1 {
			http.Error(w, "speakerAmount must be at least 1", http.StatusBadRequest)
			return
		}
		_, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file is required", http.StatusBadRequest)
			return
		}

		projectID := r.PathValue("pid")
		note := &models.MeetingNote{
			ID:             uuid.NewString(),
			Loading:        true,
			ProjectID:      projectID,
			Timestamp:      time.Now().UTC().Truncate(time.Second),
			AudioExtension: strings.TrimPrefix(filepath.Ext(header.Filename), "."),
		}

		b.mu.Lock()
		b.notes[projectID] = append(b.notes[projectID], note)
		b.newJobLocked(note.ID, func() { completeNote(note) })
		b.mu.Unlock()

		writeJSON(w, http.StatusAccepted, models.TranscriptUploadResponse{TranscriptID: note.ID, Loading: true})
	})

	mux.HandleFunc("GET /transcription/projects/{pid}/transcripts/{tid}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		id := r.PathValue("tid")
		for _, n := range b.notes[r.PathValue("pid")] {
			if n.ID == id {
				b.fetchJobLocked(id)
				writeJSON(w, http.StatusOK, n.Clone())
				return
			}
		}
		http.Error(w, "transcript not found", http.StatusNotFound)
	})

	mux.HandleFunc("GET /transcription/projects/{pid}/speakers", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		out := slices.Clone(b.speakers[r.PathValue("pid")])
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, out)
	})
}

func (b *FakeBackend) registerGenAI(mux *http.ServeMux) {
	mux.HandleFunc("GET /genai/project/{pid}/summary", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		out := make([]models.Report, 0)
		for _, rep := range b.reports[r.PathValue("pid")] {
			out = append(out, rep.Clone())
		}
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("POST /genai/project/{pid}/summary", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		start, err1 := time.Parse(time.RFC3339, q.Get("startTime"))
		end, err2 := time.Parse(time.RFC3339, q.Get("endTime"))
		if err1 != nil || err2 != nil {
			http.Error(w, "startTime and endTime are required", http.StatusBadRequest)
			return
		}
		var userIDs []string
		if raw := q.Get("userIds"); raw != "" {
			userIDs = strings.Split(raw, ",")
		}

		projectID := r.PathValue("pid")
		report := &models.Report{
			ID:          uuid.NewString(),
			Loading:     true,
			ProjectID:   projectID,
			StartTime:   start,
			EndTime:     end,
			UserIDs:     userIDs,
			GeneratedAt: time.Now().UTC().Truncate(time.Second),
		}

		b.mu.Lock()
		b.reports[projectID] = append(b.reports[projectID], report)
		b.newJobLocked(report.ID, func() {
			report.Loading = false
			report.Summary = "Activity summary for " + strconv.Itoa(len(report.UserIDs)) + " users"
		})
		out := report.Clone()
		b.mu.Unlock()

		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("GET /genai/project/{pid}/summary/{rid}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		id := r.PathValue("rid")
		for _, rep := range b.reports[r.PathValue("pid")] {
			if rep.ID == id {
				b.fetchJobLocked(id)
				writeJSON(w, http.StatusOK, rep.Clone())
				return
			}
		}
		http.Error(w, "report not found", http.StatusNotFound)
	})

	mux.HandleFunc("GET /genai/projects/{pid}/chat", func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("userId")
		b.mu.Lock()
		out := make([]models.Message, 0)
		for _, m := range b.messages[r.PathValue("pid")+"/"+userID] {
			out = append(out, *m)
		}
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("POST /genai/projects/{pid}/chat", func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("userId")
		var req models.SendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || userID == "" {
			http.Error(w, "userId and content are required", http.StatusBadRequest)
			return
		}

		now := time.Now().UTC().Truncate(time.Second)
		question := &models.Message{ID: uuid.NewString(), Timestamp: now, UserID: userID, Content: req.Content}
		reply := &models.Message{ID: uuid.NewString(), Timestamp: now.Add(time.Second), Loading: true}
		key := r.PathValue("pid") + "/" + userID

		b.mu.Lock()
		b.messages[key] = append(b.messages[key], question, reply)
		b.newJobLocked(reply.ID, func() {
			reply.Loading = false
			reply.Content = "Reply to: " + question.Content
		})
		out := []models.Message{*question, *reply}
		b.mu.Unlock()

		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("GET /genai/projects/{pid}/chat/{mid}", func(w http.ResponseWriter, r *http.Request) {
		key := r.PathValue("pid") + "/" + r.URL.Query().Get("userId")
		id := r.PathValue("mid")
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, m := range b.messages[key] {
			if m.ID == id {
				b.fetchJobLocked(id)
				writeJSON(w, http.StatusOK, *m)
				return
			}
		}
		http.Error(w, "message not found", http.StatusNotFound)
	})
}

func (b *FakeBackend) registerConnectors(mux *http.ServeMux) {
	mux.HandleFunc("GET /comms/projects/{pid}/comms/users", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		out := make([]models.UserMapping, 0)
		for _, m := range b.mappings[r.PathValue("pid")] {
			if models.IsCommsPlatform(m.Platform) {
				out = append(out, m)
			}
		}
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("POST /comms/projects/{pid}/comms/{platform}/users", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		m := models.UserMapping{
			ProjectID:      r.PathValue("pid"),
			Platform:       models.Platform(strings.ToUpper(r.PathValue("platform"))),
			PlatformUserID: q.Get("platformUserId"),
			UserID:         q.Get("userId"),
		}
		if !models.IsCommsPlatform(m.Platform) || m.PlatformUserID == "" {
			http.Error(w, "unsupported platform or missing user", http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		b.mappings[m.ProjectID] = append(b.mappings[m.ProjectID], m)
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, m)
	})

	mux.HandleFunc("POST /comms/projects/{pid}/comms/{platform}/connections", func(w http.ResponseWriter, r *http.Request) {
		conn := models.CommsConnection{
			ProjectID: r.PathValue("pid"),
			Platform:  models.Platform(r.PathValue("platform")),
			ServerID:  r.URL.Query().Get("serverId"),
		}
		if conn.ServerID == "" {
			http.Error(w, "serverId is required", http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		b.connections[conn.ProjectID] = append(b.connections[conn.ProjectID], conn)
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, conn)
	})

	mux.HandleFunc("GET /sdlc/projects/{pid}/token", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		out := slices.Clone(b.tokens[r.PathValue("pid")])
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("POST /sdlc/projects/{pid}/token", func(w http.ResponseWriter, r *http.Request) {
		var req models.SaveSdlcTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
			http.Error(w, "token is required", http.StatusBadRequest)
			return
		}
		token := models.SdlcToken{
			ID:        uuid.NewString(),
			ProjectID: r.PathValue("pid"),
			Platform:  req.Platform,
			CreatedAt: time.Now().UTC().Truncate(time.Second),
		}
		b.mu.Lock()
		b.tokens[token.ProjectID] = append(b.tokens[token.ProjectID], token)
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, token)
	})

	mux.HandleFunc("GET /sdlc/projects/{pid}/users", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		out := make([]models.UserMapping, 0)
		for _, m := range b.mappings[r.PathValue("pid")] {
			if m.Platform == models.PlatformGitHub {
				out = append(out, m)
			}
		}
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("POST /sdlc/projects/{pid}/users", func(w http.ResponseWriter, r *http.Request) {
		var m models.UserMapping
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil || m.PlatformUserID == "" {
			http.Error(w, "invalid mapping", http.StatusBadRequest)
			return
		}
		m.ProjectID = r.PathValue("pid")
		m.Platform = models.PlatformGitHub
		b.mu.Lock()
		b.mappings[m.ProjectID] = append(b.mappings[m.ProjectID], m)
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, m)
	})
}

func completeNote(n *models.MeetingNote) {
	n.Loading = false
	n.Transcript = []models.TranscriptSegment{
		{SegmentIndex: 0, Text: "Let's review the sprint.", Start: 0, End: 2.5, SpeakerID: "s1", SpeakerName: "Speaker 1"},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
