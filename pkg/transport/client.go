package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pyloft/console/pkg/log"
	"github.com/pyloft/console/pkg/metrics"
	"github.com/pyloft/console/pkg/storage"
	"github.com/pyloft/console/pkg/types"
)

// Client provides typed access to the platform API. It attaches the bearer
// token from its TokenSource on every request; the token is never cached.
type Client struct {
	origin     string
	httpClient *http.Client
	tokens     storage.TokenSource
	logger     zerolog.Logger
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// NewClient constructs a Client pointing at the given API origin.
func NewClient(origin string, tokens storage.TokenSource, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(origin)
	if trimmed == "" {
		return nil, fmt.Errorf("api origin must not be empty")
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api origin: %w", err)
	}
	if tokens == nil {
		tokens = storage.StaticToken("")
	}
	c := &Client{
		origin:     strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{},
		tokens:     tokens,
		logger:     log.WithComponent("transport"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Origin returns the configured API origin.
func (c *Client) Origin() string {
	return c.origin
}

// Do performs one JSON request against the platform API. A non-nil body is
// marshalled and sent with a JSON content type; a non-nil out receives the
// decoded response. Failures are always *APIError.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return transportError(fmt.Errorf("encode request body: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.origin+path, reader)
	if err != nil {
		return transportError(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.APIRequestsTotal.WithLabelValues(method, "transport_error").Inc()
		metrics.APIErrorsTotal.WithLabelValues(string(KindTransport)).Inc()
		return transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		kind := classifyStatus(resp.StatusCode)
		metrics.APIRequestsTotal.WithLabelValues(method, "error").Inc()
		metrics.APIErrorsTotal.WithLabelValues(string(kind)).Inc()
		apiErr := &APIError{
			Kind:       kind,
			HTTPStatus: resp.StatusCode,
			Message:    extractMessage(data, resp.StatusCode),
		}
		c.logger.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("kind", string(kind)).
			Msg("api request failed")
		return apiErr
	}

	metrics.APIRequestsTotal.WithLabelValues(method, "ok").Inc()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return transportError(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// ListApps returns summaries of every app owned by the session.
func (c *Client) ListApps(ctx context.Context) ([]types.App, error) {
	var apps []types.App
	if err := c.Do(ctx, http.MethodGet, "/api/apps", nil, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// GetApp fetches the full app record.
func (c *Client) GetApp(ctx context.Context, appID string) (*types.App, error) {
	var app types.App
	if err := c.Do(ctx, http.MethodGet, "/api/apps/"+url.PathEscape(appID), nil, &app); err != nil {
		return nil, err
	}
	if app.ID == "" {
		app.ID = appID
	}
	return &app, nil
}

// Validate checks code server-side. An empty appID validates as a new app.
func (c *Client) Validate(ctx context.Context, appID, code string) (*types.ValidationResult, error) {
	path := "/api/apps/validate"
	if appID != "" {
		path = "/api/apps/" + url.PathEscape(appID) + "/validate"
	}
	var result types.ValidationResult
	if err := c.Do(ctx, http.MethodPost, path, map[string]string{"code": code}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateApp creates a new app and triggers its first deploy.
func (c *Client) CreateApp(ctx context.Context, req types.DeployRequest) (*types.DeployResponse, error) {
	var resp types.DeployResponse
	if err := c.Do(ctx, http.MethodPost, "/api/apps", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateApp updates an existing app and triggers a deploy.
func (c *Client) UpdateApp(ctx context.Context, appID string, req types.DeployRequest) (*types.DeployResponse, error) {
	var resp types.DeployResponse
	if err := c.Do(ctx, http.MethodPut, "/api/apps/"+url.PathEscape(appID), req, &resp); err != nil {
		return nil, err
	}
	if resp.AppID == "" {
		resp.AppID = appID
	}
	return &resp, nil
}

// SaveDraft persists the draft code without deploying.
func (c *Client) SaveDraft(ctx context.Context, appID, code string) (*types.DraftResponse, error) {
	var resp types.DraftResponse
	path := "/api/apps/" + url.PathEscape(appID) + "/draft"
	if err := c.Do(ctx, http.MethodPut, path, map[string]string{"code": code}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeployStatus fetches the current deployment status.
func (c *Client) DeployStatus(ctx context.Context, appID string) (*types.DeployStatus, error) {
	var status types.DeployStatus
	path := "/api/apps/" + url.PathEscape(appID) + "/deploy-status"
	if err := c.Do(ctx, http.MethodGet, path, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Events fetches recent lifecycle events for an app.
func (c *Client) Events(ctx context.Context, appID string) (*types.EventsResponse, error) {
	var resp types.EventsResponse
	path := "/api/apps/" + url.PathEscape(appID) + "/events"
	if err := c.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logs fetches the most recent tail lines. tail is clamped to maxTailLines.
func (c *Client) Logs(ctx context.Context, appID string, tail int) (*types.LogsResponse, error) {
	if tail <= 0 || tail > maxTailLines {
		tail = maxTailLines
	}
	var resp types.LogsResponse
	path := fmt.Sprintf("/api/apps/%s/logs?tail_lines=%d", url.PathEscape(appID), tail)
	if err := c.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Versions returns deployed version history, newest first.
func (c *Client) Versions(ctx context.Context, appID string) ([]types.Version, error) {
	var resp types.VersionsResponse
	path := "/api/apps/" + url.PathEscape(appID) + "/versions"
	if err := c.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Versions, nil
}

// Rollback restores the version at the given history index.
func (c *Client) Rollback(ctx context.Context, appID string, versionIndex int) error {
	path := fmt.Sprintf("/api/apps/%s/rollback/%d", url.PathEscape(appID), versionIndex)
	return c.Do(ctx, http.MethodPost, path, nil, nil)
}

// DeleteApp removes the app and its running deployment.
func (c *Client) DeleteApp(ctx context.Context, appID string) error {
	return c.Do(ctx, http.MethodDelete, "/api/apps/"+url.PathEscape(appID), nil, nil)
}

// maxTailLines caps how many lines a single poll may request.
const maxTailLines = 500

// streamURL derives the websocket endpoint for an app's log stream. The
// token travels as a URL parameter because browser websockets cannot set
// headers; the CLI mirrors that contract.
func (c *Client) streamURL(appID string) string {
	base := c.origin
	base = strings.Replace(base, "http://", "ws://", 1)
	base = strings.Replace(base, "https://", "wss://", 1)
	u := base + "/api/apps/" + url.PathEscape(appID) + "/logs/stream"
	if token := c.tokens.Token(); token != "" {
		u += "?token=" + url.QueryEscape(token)
	}
	return u
}

// dialTimeout bounds the websocket handshake.
const dialTimeout = 10 * time.Second
