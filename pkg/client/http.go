package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dermascan-be/internal/pkg/logger"
)

const (
	AnalyzePath  = "/functions/v1/analyze-skin"
	ChatPath     = "/functions/v1/derma-chat"
	AnalysesPath = "/api/analysis/v1"

	maxErrorBody = 64 * 1024
)

// Credentials identify the signed-in user on every call.
type Credentials struct {
	UserID string
	Token  string
}

// Option configures the HTTP-backed clients.
type Option func(*options)

type options struct {
	httpClient *http.Client
	logger     logger.ILogger
	now        func() time.Time
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

func WithLogger(l logger.ILogger) Option {
	return func(o *options) { o.logger = l }
}

func withClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func applyOptions(opts []Option) options {
	o := options{
		// No client timeout: chat streams are long lived, callers bound them by ctx.
		httpClient: &http.Client{},
		logger:     logger.NewNopLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func newJSONRequest(ctx context.Context, method, url string, creds Credentials, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	}
	return req, nil
}

// readError drains a failed response and pulls out its "error" member.
func readError(resp *http.Response) (body string, message string) {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	body = string(raw)

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Error != "" {
			return body, payload.Error
		}
		return body, payload.Message
	}
	return body, strings.TrimSpace(body)
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
