package services

import (
	"cmp"
	"context"
	"regexp"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/trace-app/trace-dashboard/pkg/models"
	"github.com/trace-app/trace-dashboard/pkg/polling"
	"github.com/trace-app/trace-dashboard/pkg/store"
)

var projectPathPattern = regexp.MustCompile(`^/projects/([^/]+)`)

// ProjectIDFromPath extracts the project id from a dashboard path such as
// "/projects/42/reports". It returns "" for any other path.
func ProjectIDFromPath(path string) string {
	m := projectPathPattern.FindStringSubmatch(path)
	if m == nil {
		return ""
	}
	return m[1]
}

// projectGetter fetches one project.
type projectGetter interface {
	GetProject(ctx context.Context, projectID string) (models.Project, error)
}

// Selector tracks the selected project of a dashboard and derives the views
// the UI shows for it from the store.
type Selector struct {
	store            *store.Store
	engine           *polling.Engine
	projects         projectGetter
	loading          *LoadState
	reporter         reporter
	cancelOnDeselect bool
	logger           *zap.Logger

	mu       sync.RWMutex
	selected string
	seq      uint64
}

// NewSelector creates a selector with nothing selected. With
// cancelOnDeselect set, leaving a project cancels its poll chains.
func NewSelector(engine *polling.Engine, projects projectGetter, loading *LoadState, notifier *Notifier, cancelOnDeselect bool, logger *zap.Logger) *Selector {
	logger = logger.Named("selection")
	return &Selector{
		store:            engine.Store(),
		engine:           engine,
		projects:         projects,
		loading:          loading,
		reporter:         reporter{notifier: notifier, logger: logger},
		cancelOnDeselect: cancelOnDeselect,
		logger:           logger,
	}
}

// Navigate selects the project named by path, or clears the selection.
// Moving between pages of the selected project changes nothing.
func (s *Selector) Navigate(ctx context.Context, path string) error {
	projectID := ProjectIDFromPath(path)
	s.mu.Lock()
	if projectID != "" && projectID == s.selected {
		// A fetch still in flight for another project must not take over.
		s.seq++
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return s.Select(ctx, projectID)
}

// Select fetches and stores the project, then selects it. An empty id
// clears the selection immediately. If another Select starts before the
// fetch returns, the result is still stored but the newer call decides the
// selection.
func (s *Selector) Select(ctx context.Context, projectID string) error {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	if projectID == "" {
		prev := s.selected
		s.selected = ""
		s.mu.Unlock()
		s.left(prev)
		return nil
	}
	s.mu.Unlock()

	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return s.reporter.fail("load project", err, zap.String("project_id", projectID))
	}
	s.store.Merge(projectID, project)

	s.mu.Lock()
	if s.seq != seq {
		s.mu.Unlock()
		s.logger.Debug("Discarding stale selection", zap.String("project_id", projectID))
		return nil
	}
	prev := s.selected
	s.selected = projectID
	s.mu.Unlock()

	if prev != projectID {
		s.left(prev)
	}
	return nil
}

func (s *Selector) left(projectID string) {
	if projectID == "" || !s.cancelOnDeselect {
		return
	}
	s.engine.CancelProject(projectID)
}

// SelectedProjectID returns the selected project id, or "".
func (s *Selector) SelectedProjectID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// SelectedProject returns the stored selected project.
func (s *Selector) SelectedProject() (models.Project, bool) {
	id := s.SelectedProjectID()
	if id == "" {
		return models.Project{}, false
	}
	return s.store.Get(id)
}

// Notes returns the selected project's meeting notes, newest first.
func (s *Selector) Notes() []models.MeetingNote {
	notes := selectedItems(s, store.MeetingNotes)
	slices.SortFunc(notes, func(a, b models.MeetingNote) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return notes
}

// Reports returns the selected project's reports, newest first.
func (s *Selector) Reports() []models.Report {
	reports := selectedItems(s, store.Reports)
	slices.SortFunc(reports, func(a, b models.Report) int {
		if c := b.GeneratedAt.Compare(a.GeneratedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return reports
}

// Messages returns the selected project's chat, oldest first.
func (s *Selector) Messages() []models.Message {
	messages := selectedItems(s, store.Messages)
	slices.SortFunc(messages, func(a, b models.Message) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return messages
}

// Users returns the selected project's users in project order.
func (s *Selector) Users() []models.User {
	project, ok := s.SelectedProject()
	if !ok {
		return nil
	}
	return project.Users
}

// UserMappings returns the selected project's mappings for platform, or all
// mappings when platform is empty.
func (s *Selector) UserMappings(platform models.Platform) []models.UserMapping {
	mappings := selectedItems(s, store.UserMappings)
	if platform != "" {
		mappings = slices.DeleteFunc(mappings, func(m models.UserMapping) bool { return m.Platform != platform })
	}
	slices.SortFunc(mappings, func(a, b models.UserMapping) int {
		return cmp.Compare(a.Key(), b.Key())
	})
	return mappings
}

// Loading returns the per-collection loading flags.
func (s *Selector) Loading() LoadingFlags {
	return s.loading.Flags()
}

func selectedItems[T models.Entity](s *Selector, c store.Collection[T]) []T {
	id := s.SelectedProjectID()
	if id == "" {
		return nil
	}
	items, _ := store.Items(s.store, id, c)
	return items
}
