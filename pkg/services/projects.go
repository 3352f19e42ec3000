package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/trace-app/trace-dashboard/pkg/apperrors"
	"github.com/trace-app/trace-dashboard/pkg/models"
	"github.com/trace-app/trace-dashboard/pkg/store"
)

// ProjectService loads projects and manages their user assignments.
type ProjectService struct {
	backend  ProjectBackend
	store    *store.Store
	loading  *LoadState
	reporter reporter
	logger   *zap.Logger

	mu        sync.RWMutex
	directory []models.User
}

// NewProjectService creates a project service writing into st.
func NewProjectService(backend ProjectBackend, st *store.Store, loading *LoadState, notifier *Notifier, logger *zap.Logger) *ProjectService {
	logger = logger.Named("projects")
	return &ProjectService{
		backend:  backend,
		store:    st,
		loading:  loading,
		reporter: reporter{notifier: notifier, logger: logger},
		logger:   logger,
	}
}

// LoadProjectList replaces the stored projects with the backend's list.
func (s *ProjectService) LoadProjectList(ctx context.Context) ([]models.Project, error) {
	done := s.loading.Begin(LoadProjectList)
	defer done()

	projects, err := s.backend.ListProjects(ctx)
	if err != nil {
		return nil, s.reporter.fail("load project list", err)
	}
	s.store.ReplaceAll(projects)
	return s.store.List(), nil
}

// CreateProject creates a project and stores it.
func (s *ProjectService) CreateProject(ctx context.Context, req models.CreateProjectRequest) (models.Project, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return models.Project{}, s.reporter.fail("create project", fmt.Errorf("project name is required: %w", apperrors.ErrInvalidInput))
	}

	project, err := s.backend.CreateProject(ctx, req)
	if err != nil {
		return models.Project{}, s.reporter.fail("create project", err)
	}
	s.store.Upsert(project.ID, project)
	s.logger.Info("Created project", zap.String("project_id", project.ID))
	return project, nil
}

// LoadProject fetches one project and merges it into the store, keeping
// nested collections already loaded for it.
func (s *ProjectService) LoadProject(ctx context.Context, projectID string) (models.Project, error) {
	project, err := s.backend.GetProject(ctx, projectID)
	if err != nil {
		return models.Project{}, s.reporter.fail("load project", err, zap.String("project_id", projectID))
	}
	s.store.Merge(projectID, project)
	stored, _ := s.store.Get(projectID)
	return stored, nil
}

// LoadProjectUsers refreshes the users assigned to a project.
func (s *ProjectService) LoadProjectUsers(ctx context.Context, projectID string) ([]models.User, error) {
	users, err := s.backend.ListProjectUsers(ctx, projectID)
	if err != nil {
		return nil, s.reporter.fail("load project users", err, zap.String("project_id", projectID))
	}
	if users == nil {
		users = []models.User{}
	}
	s.store.Patch(projectID, store.ProjectPatch{Users: users})
	return users, nil
}

// LoadAllUsers loads the user directory, which assignment dialogs pick from.
func (s *ProjectService) LoadAllUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.backend.ListUsers(ctx)
	if err != nil {
		return nil, s.reporter.fail("load users", err)
	}

	s.mu.Lock()
	s.directory = slices.Clone(users)
	s.mu.Unlock()
	return users, nil
}

// Directory returns the last loaded user directory.
func (s *ProjectService) Directory() []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.directory)
}

// AssignUsers adds users to a project. Users found in the directory are
// added to the store directly; otherwise the project's users are reloaded.
func (s *ProjectService) AssignUsers(ctx context.Context, projectID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	if err := s.backend.AssignUsers(ctx, projectID, userIDs); err != nil {
		return s.reporter.fail("assign users", err, zap.String("project_id", projectID))
	}

	users, complete := s.lookup(userIDs)
	if !complete {
		_, err := s.LoadProjectUsers(ctx, projectID)
		return err
	}
	s.store.AddUsers(projectID, users)
	return nil
}

// RemoveUsers unassigns users from a project.
func (s *ProjectService) RemoveUsers(ctx context.Context, projectID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	if err := s.backend.RemoveUsers(ctx, projectID, userIDs); err != nil {
		return s.reporter.fail("remove users", err, zap.String("project_id", projectID))
	}
	for _, id := range userIDs {
		s.store.RemoveUser(projectID, id)
	}
	return nil
}

func (s *ProjectService) lookup(userIDs []string) ([]models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(userIDs))
	for _, id := range userIDs {
		idx := slices.IndexFunc(s.directory, func(u models.User) bool { return u.ID == id })
		if idx < 0 {
			return nil, false
		}
		users = append(users, s.directory[idx])
	}
	return users, true
}
