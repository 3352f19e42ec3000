package mcp

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/trace-app/trace-dashboard/pkg/auth"
)

// maxAuditEvents is how many tool calls the audit log keeps in memory.
const maxAuditEvents = 100

// ToolCallEvent records one MCP tool call.
type ToolCallEvent struct {
	Tool      string        `json:"tool"`
	UserID    string        `json:"userId,omitempty"`
	Succeeded bool          `json:"succeeded"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	At        time.Time     `json:"at"`
}

// AuditLogger logs MCP tool calls and keeps the most recent ones.
type AuditLogger struct {
	logger     *zap.Logger
	startTimes sync.Map

	mu     sync.Mutex
	events []ToolCallEvent
}

// NewAuditLogger creates an audit logger.
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{logger: logger.Named("mcp-audit")}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *AuditLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

// Recent returns the recorded tool calls, oldest first.
func (a *AuditLogger) Recent() []ToolCallEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.events)
}

func (a *AuditLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *AuditLogger) afterCallTool(ctx context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	event := a.buildEvent(ctx, id, req)
	event.Succeeded = true
	if result != nil && result.IsError {
		event.Succeeded = false
		event.Error = resultText(result)
	}
	a.record(event)
}

func (a *AuditLogger) onError(ctx context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}
	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	event := a.buildEvent(ctx, id, req)
	event.Error = err.Error()
	a.record(event)
}

func (a *AuditLogger) buildEvent(ctx context.Context, id any, req *mcplib.CallToolRequest) ToolCallEvent {
	now := time.Now()
	start := now
	if v, ok := a.startTimes.LoadAndDelete(id); ok {
		start = v.(time.Time)
	}
	return ToolCallEvent{
		Tool:     req.Params.Name,
		UserID:   auth.GetUserIDFromContext(ctx),
		Duration: now.Sub(start),
		At:       now,
	}
}

func (a *AuditLogger) record(event ToolCallEvent) {
	a.mu.Lock()
	a.events = append(a.events, event)
	if over := len(a.events) - maxAuditEvents; over > 0 {
		a.events = slices.Delete(a.events, 0, over)
	}
	a.mu.Unlock()

	fields := []zap.Field{
		zap.String("tool", event.Tool),
		zap.String("user_id", event.UserID),
		zap.Duration("duration", event.Duration),
	}
	if !event.Succeeded {
		a.logger.Warn("MCP tool call failed", append(fields, zap.String("error", event.Error))...)
		return
	}
	a.logger.Info("MCP tool call", fields...)
}

// resultText extracts the message of an error result.
func resultText(result *mcplib.CallToolResult) string {
	for _, content := range result.Content {
		text, ok := content.(mcplib.TextContent)
		if !ok {
			continue
		}
		var body struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(text.Text), &body); err == nil && body.Message != "" {
			return body.Message
		}
		return text.Text
	}
	return ""
}
