// Package clients provides HTTP clients for the backend services the dashboard
// talks to: project-management, transcription, gen-AI, comms and SDLC.
//
// Every request carries the caller's bearer token (taken from the context) and
// a fresh X-Request-ID. Non-2xx responses become *apperrors.ServiceError.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trace-app/trace-dashboard/pkg/apperrors"
	"github.com/trace-app/trace-dashboard/pkg/auth"
	"github.com/trace-app/trace-dashboard/pkg/logging"
	"github.com/trace-app/trace-dashboard/pkg/retry"
)

// DefaultTimeout is the maximum time to wait for a backend response.
const DefaultTimeout = 30 * time.Second

// RequestIDHeader correlates dashboard requests with backend logs.
const RequestIDHeader = "X-Request-ID"

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// Options configures a resource client.
type Options struct {
	Timeout time.Duration
	// RetryMax retries idempotent reads on transient failures. Zero disables retries.
	RetryMax int
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

type baseClient struct {
	service    string
	baseURL    string
	httpClient *http.Client
	retry      *retry.Config
	logger     *zap.Logger
}

func newBaseClient(service, baseURL string, opts Options, logger *zap.Logger) *baseClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	var retryCfg *retry.Config
	if opts.RetryMax > 0 {
		retryCfg = retry.DefaultConfig()
		retryCfg.MaxRetries = opts.RetryMax
	}

	return &baseClient{
		service:    service,
		baseURL:    baseURL,
		httpClient: httpClient,
		retry:      retryCfg,
		logger:     logger.Named(service),
	}
}

// buildURL joins path segments onto the base URL, escaping each segment.
func buildURL(baseURL string, query url.Values, segments ...string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u = u.JoinPath(escaped...)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

// getJSON performs an idempotent GET, retrying transient failures when enabled.
// A 204 response leaves out untouched.
func (c *baseClient) getJSON(ctx context.Context, op string, out any, query url.Values, segments ...string) error {
	if c.retry == nil {
		return c.request(ctx, http.MethodGet, op, nil, "", out, query, segments...)
	}
	_, err := retry.DoIfRetryable(ctx, c.retry, func() (struct{}, error) {
		return struct{}{}, c.request(ctx, http.MethodGet, op, nil, "", out, query, segments...)
	})
	return err
}

// sendJSON performs a non-idempotent request with an optional JSON payload.
func (c *baseClient) sendJSON(ctx context.Context, method, op string, payload, out any, query url.Values, segments ...string) error {
	var body io.Reader
	contentType := ""
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.request(ctx, method, op, body, contentType, out, query, segments...)
}

func (c *baseClient) request(ctx context.Context, method, op string, body io.Reader, contentType string, out any, query url.Values, segments ...string) error {
	endpoint, err := buildURL(c.baseURL, query, segments...)
	if err != nil {
		return fmt.Errorf("%s: failed to build URL: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token, ok := auth.GetToken(ctx); ok && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("Calling backend service",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("url", endpoint),
		zap.String("request_id", requestID))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Warn("Backend request failed",
				zap.String("op", op),
				zap.String("request_id", requestID),
				zap.String("error", logging.SanitizeError(err)))
		}
		return fmt.Errorf("%s: failed to call %s: %w", op, c.service, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: failed to read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("Backend service returned error",
			zap.String("op", op),
			zap.String("request_id", requestID),
			zap.Int("status", resp.StatusCode),
			zap.String("body", logging.TruncateString(string(data), maxErrorBody)))
		return &apperrors.ServiceError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Status:     statusText(resp),
			Body:       logging.TruncateString(strings.TrimSpace(string(data)), maxErrorBody),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}

// statusText strips the numeric code from resp.Status ("404 Not Found" -> "Not Found").
func statusText(resp *http.Response) string {
	text := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))
	text = strings.TrimSpace(text)
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
