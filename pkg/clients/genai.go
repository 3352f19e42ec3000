package clients

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/trace-app/trace-dashboard/pkg/models"
)

// GenAIClient talks to the gen-AI service, which produces reports and chat replies.
type GenAIClient struct {
	*baseClient
}

// NewGenAIClient creates a gen-AI client.
func NewGenAIClient(baseURL string, opts Options, logger *zap.Logger) *GenAIClient {
	return &GenAIClient{baseClient: newBaseClient("genai", baseURL, opts, logger)}
}

// ListReports fetches all reports of a project.
func (c *GenAIClient) ListReports(ctx context.Context, projectID string) ([]models.Report, error) {
	var reports []models.Report
	if err := c.getJSON(ctx, "list reports", &reports, nil, "project", projectID, "summary"); err != nil {
		return nil, err
	}
	return reports, nil
}

// GetReport fetches one report.
func (c *GenAIClient) GetReport(ctx context.Context, projectID, reportID string) (models.Report, error) {
	var report models.Report
	if err := c.getJSON(ctx, "get report", &report, nil, "project", projectID, "summary", reportID); err != nil {
		return models.Report{}, err
	}
	return report, nil
}

// GenerateReport starts report generation. The returned report is usually
// still loading.
func (c *GenAIClient) GenerateReport(ctx context.Context, projectID string, params models.ReportParams) (models.Report, error) {
	query := url.Values{
		"startTime": {params.StartTime.UTC().Format(time.RFC3339)},
		"endTime":   {params.EndTime.UTC().Format(time.RFC3339)},
	}
	if len(params.UserIDs) > 0 {
		query.Set("userIds", strings.Join(params.UserIDs, ","))
	}

	var report models.Report
	if err := c.sendJSON(ctx, http.MethodPost, "generate report", nil, &report, query, "project", projectID, "summary"); err != nil {
		return models.Report{}, err
	}
	return report, nil
}

// ListMessages fetches the chat history between a user and the assistant.
func (c *GenAIClient) ListMessages(ctx context.Context, projectID, userID string) ([]models.Message, error) {
	var messages []models.Message
	query := url.Values{"userId": {userID}}
	if err := c.getJSON(ctx, "list messages", &messages, query, "projects", projectID, "chat"); err != nil {
		return nil, err
	}
	return messages, nil
}

// GetMessage fetches one chat message.
func (c *GenAIClient) GetMessage(ctx context.Context, projectID, userID, messageID string) (models.Message, error) {
	var message models.Message
	query := url.Values{"userId": {userID}}
	if err := c.getJSON(ctx, "get message", &message, query, "projects", projectID, "chat", messageID); err != nil {
		return models.Message{}, err
	}
	return message, nil
}

// SendMessage posts a chat message. The service returns the stored user
// message and a loading placeholder for the assistant's reply.
func (c *GenAIClient) SendMessage(ctx context.Context, projectID, userID, content string) ([]models.Message, error) {
	var messages []models.Message
	query := url.Values{"userId": {userID}}
	req := models.SendMessageRequest{Content: content}
	if err := c.sendJSON(ctx, http.MethodPost, "send message", req, &messages, query, "projects", projectID, "chat"); err != nil {
		return nil, err
	}
	return messages, nil
}
