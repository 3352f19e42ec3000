package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/trace-app/trace-dashboard/pkg/auth"
	"github.com/trace-app/trace-dashboard/pkg/models"
	"github.com/trace-app/trace-dashboard/pkg/services"
)

// anonymousSession keys the dashboard shared by callers without a token.
const anonymousSession = "mcp:anonymous"

// Collection names accepted by load_collection.
const (
	collectionNotes    = "notes"
	collectionReports  = "reports"
	collectionMessages = "messages"
	collectionUsers    = "users"
)

var collectionNames = []string{collectionNotes, collectionReports, collectionMessages, collectionUsers}

// DashboardSessions resolves the dashboard a tool call acts on.
type DashboardSessions interface {
	GetOrCreate(id string) *services.Dashboard
}

// DashboardToolDeps contains the dependencies of the dashboard tools.
type DashboardToolDeps struct {
	Sessions DashboardSessions
	Logger   *zap.Logger
}

// selectionResult is the selected project and its derived views.
type selectionResult struct {
	ProjectID string                `json:"project_id,omitempty"`
	Name      string                `json:"name,omitempty"`
	Notes     int                   `json:"notes"`
	Reports   int                   `json:"reports"`
	Messages  int                   `json:"messages"`
	Users     int                   `json:"users"`
	Loading   services.LoadingFlags `json:"loading"`
}

// RegisterDashboardTools registers the tools that drive a dashboard session.
// Each caller gets its own session keyed by the token subject.
func RegisterDashboardTools(s *server.MCPServer, deps *DashboardToolDeps) {
	registerListProjectsTool(s, deps)
	registerSelectProjectTool(s, deps)
	registerGetSelectionTool(s, deps)
	registerLoadCollectionTool(s, deps)
	registerGenerateReportTool(s, deps)
	registerSendChatMessageTool(s, deps)
	registerListJobsTool(s, deps)
}

func (d *DashboardToolDeps) dashboard(ctx context.Context) *services.Dashboard {
	id := anonymousSession
	if userID := auth.GetUserIDFromContext(ctx); userID != "" {
		id = "mcp:" + userID
	}
	return d.Sessions.GetOrCreate(id)
}

func registerListProjectsTool(s *server.MCPServer, deps *DashboardToolDeps) {
	tool := mcp.NewTool(
		"list_projects",
		mcp.WithDescription("Lists every project visible to the caller."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projects, err := deps.dashboard(ctx).Projects.LoadProjectList(ctx)
		if err != nil {
			return actionErrorResult(err), nil
		}
		return jsonResult(projects)
	})
}

func registerSelectProjectTool(s *server.MCPServer, deps *DashboardToolDeps) {
	tool := mcp.NewTool(
		"select_project",
		mcp.WithDescription("Selects the project that get_selection reports on. "+
			"Omit project_id to clear the selection."),
		mcp.WithString("project_id", mcp.Description("ID of the project to select")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		d := deps.dashboard(ctx)
		projectID := getOptionalString(req, "project_id")
		if err := d.Selector.Select(ctx, projectID); err != nil {
			return actionErrorResult(err), nil
		}
		deps.Logger.Debug("Selected project via MCP",
			zap.String("dashboard_id", d.ID),
			zap.String("project_id", projectID))
		return jsonResult(selectionOf(d))
	})
}

func registerGetSelectionTool(s *server.MCPServer, deps *DashboardToolDeps) {
	tool := mcp.NewTool(
		"get_selection",
		mcp.WithDescription("Returns the selected project, how many items each of its views holds and what is still loading."),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(selectionOf(deps.dashboard(ctx)))
	})
}

func registerLoadCollectionTool(s *server.MCPServer, deps *DashboardToolDeps) {
	tool := mcp.NewTool(
		"load_collection",
		mcp.WithDescription("Loads one collection of a project. Items still being processed are returned "+
			"with loading set and keep updating in the background."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("ID of the project")),
		mcp.WithString("collection", mcp.Required(),
			mcp.Enum(collectionNames...),
			mcp.Description("Collection to load")),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, err := req.RequireString("project_id")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		collection, err := req.RequireString("collection")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}

		d := deps.dashboard(ctx)
		var items any
		switch trimString(collection) {
		case collectionNotes:
			items, err = d.MeetingNotes.LoadAll(ctx, trimString(projectID))
		case collectionReports:
			items, err = d.Reports.LoadAll(ctx, trimString(projectID))
		case collectionMessages:
			items, err = d.Chat.LoadAll(ctx, trimString(projectID))
		case collectionUsers:
			items, err = d.Projects.LoadProjectUsers(ctx, trimString(projectID))
		default:
			return NewErrorResultWithDetails("invalid_collection",
				fmt.Sprintf("unknown collection %q", collection),
				map[string]any{"valid": collectionNames}), nil
		}
		if err != nil {
			return actionErrorResult(err), nil
		}
		return jsonResult(items)
	})
}

func registerGenerateReportTool(s *server.MCPServer, deps *DashboardToolDeps) {
	tool := mcp.NewTool(
		"generate_report",
		mcp.WithDescription("Starts generating an activity report. The report is returned right away with "+
			"loading set; poll list_jobs or load_collection to see it complete."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("ID of the project")),
		mcp.WithString("start_time", mcp.Required(), mcp.Description("Start of the window (RFC 3339)")),
		mcp.WithString("end_time", mcp.Required(), mcp.Description("End of the window (RFC 3339)")),
		mcp.WithArray("user_ids", mcp.Description("IDs of the users the report covers")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, err := req.RequireString("project_id")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		start, err := requireTime(req, "start_time")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		end, err := requireTime(req, "end_time")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}

		report, err := deps.dashboard(ctx).Reports.Generate(ctx, trimString(projectID), models.ReportParams{
			StartTime: start,
			EndTime:   end,
			UserIDs:   getStringSlice(req, "user_ids"),
		})
		if err != nil {
			return actionErrorResult(err), nil
		}
		return jsonResult(report)
	})
}

func registerSendChatMessageTool(s *server.MCPServer, deps *DashboardToolDeps) {
	tool := mcp.NewTool(
		"send_chat_message",
		mcp.WithDescription("Asks the project assistant a question. Requires a signed-in caller. "+
			"The question and a pending reply are returned; the reply fills in through background polling."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("ID of the project")),
		mcp.WithString("message", mcp.Required(), mcp.Description("The question to ask")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, err := req.RequireString("project_id")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		message, err := req.RequireString("message")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}

		messages, err := deps.dashboard(ctx).Chat.Send(ctx, trimString(projectID), message)
		if err != nil {
			return actionErrorResult(err), nil
		}
		return jsonResult(messages)
	})
}

func registerListJobsTool(s *server.MCPServer, deps *DashboardToolDeps) {
	tool := mcp.NewTool(
		"list_jobs",
		mcp.WithDescription("Lists the background jobs of the caller's session with their polling status."),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(deps.dashboard(ctx).Engine.Chains())
	})
}

func selectionOf(d *services.Dashboard) selectionResult {
	result := selectionResult{
		ProjectID: d.Selector.SelectedProjectID(),
		Notes:     len(d.Selector.Notes()),
		Reports:   len(d.Selector.Reports()),
		Messages:  len(d.Selector.Messages()),
		Users:     len(d.Selector.Users()),
		Loading:   d.Selector.Loading(),
	}
	if project, ok := d.Selector.SelectedProject(); ok {
		result.Name = project.Name
	}
	return result
}

func requireTime(req mcp.CallToolRequest, key string) (time.Time, error) {
	raw, err := req.RequireString(key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, trimString(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC 3339 timestamp", key)
	}
	return t, nil
}
