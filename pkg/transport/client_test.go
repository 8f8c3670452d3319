package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyloft/console/pkg/storage"
	"github.com/pyloft/console/pkg/types"
)

// TestNewClientOrigin tests origin normalization
func TestNewClientOrigin(t *testing.T) {
	tests := []struct {
		name     string
		origin   string
		expected string
		wantErr  bool
	}{
		{"plain http", "http://localhost:8600", "http://localhost:8600", false},
		{"trailing slash trimmed", "http://localhost:8600/", "http://localhost:8600", false},
		{"scheme defaulted", "localhost:8600", "http://localhost:8600", false},
		{"https kept", "https://api.pyloft.dev", "https://api.pyloft.dev", false},
		{"empty rejected", "", "", true},
		{"whitespace rejected", "   ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.origin, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, c.Origin())
		})
	}
}

// TestDoBearerToken tests that the token is re-read on every request
func TestDoBearerToken(t *testing.T) {
	var gotAuth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tokens := &rotatingTokens{}
	c, err := NewClient(srv.URL, tokens)
	require.NoError(t, err)

	tokens.token = "first"
	require.NoError(t, c.Do(context.Background(), http.MethodGet, "/api/apps", nil, nil))

	tokens.token = "second"
	require.NoError(t, c.Do(context.Background(), http.MethodGet, "/api/apps", nil, nil))

	tokens.token = ""
	require.NoError(t, c.Do(context.Background(), http.MethodGet, "/api/apps", nil, nil))

	require.Len(t, gotAuth, 3)
	assert.Equal(t, "Bearer first", gotAuth[0])
	assert.Equal(t, "Bearer second", gotAuth[1])
	assert.Empty(t, gotAuth[2], "no header when no token is stored")
}

type rotatingTokens struct{ token string }

func (r *rotatingTokens) Token() string { return r.token }

// TestDoErrorClassification tests that failures always surface as *APIError
func TestDoErrorClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"detail": {"message": "app name taken"}}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, storage.StaticToken("t"))
	require.NoError(t, err)

	doErr := c.Do(context.Background(), http.MethodPost, "/api/apps", map[string]string{"name": "x"}, nil)
	apiErr := AsAPIError(doErr)
	require.NotNil(t, apiErr)
	assert.Equal(t, KindConflict, apiErr.Kind)
	assert.Equal(t, http.StatusConflict, apiErr.HTTPStatus)
	assert.Equal(t, "app name taken", apiErr.Message)
}

// TestDoTransportError tests network failures
func TestDoTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c, err := NewClient(srv.URL, nil)
	require.NoError(t, err)

	doErr := c.Do(context.Background(), http.MethodGet, "/api/apps", nil, nil)
	apiErr := AsAPIError(doErr)
	require.NotNil(t, apiErr)
	assert.Equal(t, KindTransport, apiErr.Kind)
	assert.Zero(t, apiErr.HTTPStatus)
}

// TestValidatePaths tests endpoint selection for new vs existing apps
func TestValidatePaths(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		json.NewEncoder(w).Encode(types.ValidationResult{Valid: true})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, nil)
	require.NoError(t, err)

	_, err = c.Validate(context.Background(), "", "print('hi')")
	require.NoError(t, err)
	_, err = c.Validate(context.Background(), "abc123", "print('hi')")
	require.NoError(t, err)

	require.Len(t, paths, 2)
	assert.Equal(t, "/api/apps/validate", paths[0])
	assert.Equal(t, "/api/apps/abc123/validate", paths[1])
}

// TestLogsTailClamp tests tail line clamping
func TestLogsTailClamp(t *testing.T) {
	var tails []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tails = append(tails, r.URL.Query().Get("tail_lines"))
		json.NewEncoder(w).Encode(types.LogsResponse{})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, nil)
	require.NoError(t, err)

	for _, tail := range []int{100, 0, -5, 10000} {
		_, err := c.Logs(context.Background(), "app1", tail)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"100", "500", "500", "500"}, tails)
}

// TestUpdateAppFillsID tests that a sparse deploy response keeps the app ID
func TestUpdateAppFillsID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, nil)
	require.NoError(t, err)

	resp, err := c.UpdateApp(context.Background(), "app-7", types.DeployRequest{Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, "app-7", resp.AppID)
}

// TestStreamURL tests websocket endpoint derivation
func TestStreamURL(t *testing.T) {
	c, err := NewClient("http://localhost:8600", storage.StaticToken("tok en"))
	require.NoError(t, err)
	assert.Equal(t,
		"ws://localhost:8600/api/apps/app1/logs/stream?token=tok+en",
		c.streamURL("app1"))

	c, err = NewClient("https://api.pyloft.dev", nil)
	require.NoError(t, err)
	assert.Equal(t,
		"wss://api.pyloft.dev/api/apps/app1/logs/stream",
		c.streamURL("app1"))
}

// TestRollbackPath tests the rollback endpoint shape
func TestRollbackPath(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.Method + " " + r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, nil)
	require.NoError(t, err)
	require.NoError(t, c.Rollback(context.Background(), "app1", 2))
	assert.Equal(t, "POST /api/apps/app1/rollback/2", path)
}
