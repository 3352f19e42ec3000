package clients

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/trace-app/trace-dashboard/pkg/models"
)

// ProjectClient talks to the project-management service.
type ProjectClient struct {
	*baseClient
}

// NewProjectClient creates a project-management client.
func NewProjectClient(baseURL string, opts Options, logger *zap.Logger) *ProjectClient {
	return &ProjectClient{baseClient: newBaseClient("project-management", baseURL, opts, logger)}
}

// ListProjects fetches every project visible to the caller.
func (c *ProjectClient) ListProjects(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	if err := c.getJSON(ctx, "list projects", &projects, nil, "projects"); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetProject fetches one project with its users.
func (c *ProjectClient) GetProject(ctx context.Context, projectID string) (models.Project, error) {
	var project models.Project
	if err := c.getJSON(ctx, "get project", &project, nil, "projects", projectID); err != nil {
		return models.Project{}, err
	}
	return project, nil
}

// CreateProject creates a project and returns it as stored by the service.
func (c *ProjectClient) CreateProject(ctx context.Context, req models.CreateProjectRequest) (models.Project, error) {
	var project models.Project
	if err := c.sendJSON(ctx, http.MethodPost, "create project", req, &project, nil, "projects"); err != nil {
		return models.Project{}, err
	}
	return project, nil
}

// ListProjectUsers fetches the users assigned to a project.
func (c *ProjectClient) ListProjectUsers(ctx context.Context, projectID string) ([]models.User, error) {
	var users []models.User
	if err := c.getJSON(ctx, "list project users", &users, nil, "projects", projectID, "users"); err != nil {
		return nil, err
	}
	return users, nil
}

// AssignUsers adds users to a project.
func (c *ProjectClient) AssignUsers(ctx context.Context, projectID string, userIDs []string) error {
	return c.sendJSON(ctx, http.MethodPost, "assign users", userIDs, nil, nil, "projects", projectID, "users")
}

// RemoveUsers removes users from a project.
func (c *ProjectClient) RemoveUsers(ctx context.Context, projectID string, userIDs []string) error {
	return c.sendJSON(ctx, http.MethodDelete, "remove users", userIDs, nil, nil, "projects", projectID, "users")
}

// ListUsers fetches the full user directory.
func (c *ProjectClient) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.getJSON(ctx, "list users", &users, nil, "users"); err != nil {
		return nil, err
	}
	return users, nil
}
