package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyloft/console/pkg/config"
	"github.com/pyloft/console/pkg/events"
	"github.com/pyloft/console/pkg/transport"
	"github.com/pyloft/console/pkg/types"
)

func testConfig() *config.Config {
	return &config.Config{
		DeployPollInterval:    10 * time.Millisecond,
		MaxDeployTicks:        30,
		BackgroundDeployTicks: 60,
		LogPollInterval:       20 * time.Millisecond,
		LogBufferCap:          500,
		EventTailDepth:        5,
	}
}

// statusScript serves a scripted sequence of deploy-status responses,
// sticking at the last one once the script runs out.
type statusScript struct {
	mu       sync.Mutex
	i        int
	statuses []types.DeployStatus
	codes    []int // optional per-step HTTP status, 0 means 200
	events   []types.DeploymentEvent
}

func (s *statusScript) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/apps", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(types.DeployResponse{AppID: "app1"})
	})
	mux.HandleFunc("PUT /api/apps/app1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(types.DeployResponse{AppID: "app1"})
	})
	mux.HandleFunc("GET /api/apps/app1/deploy-status", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		i := s.i
		if i >= len(s.statuses) {
			i = len(s.statuses) - 1
		}
		s.i++
		status := s.statuses[i]
		code := 0
		if i < len(s.codes) {
			code = s.codes[i]
		}
		s.mu.Unlock()

		if code != 0 {
			w.WriteHeader(code)
			return
		}
		json.NewEncoder(w).Encode(status)
	})
	mux.HandleFunc("GET /api/apps/app1/events", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		events := append([]types.DeploymentEvent(nil), s.events...)
		s.mu.Unlock()
		json.NewEncoder(w).Encode(types.EventsResponse{Events: events})
	})
	return httptest.NewServer(mux)
}

func newTestEngine(t *testing.T, url string, cfg *config.Config) *Engine {
	t.Helper()
	client, err := transport.NewClient(url, nil)
	require.NoError(t, err)
	return New(client, cfg)
}

// TestDeploySuccessSequence tests a full deploy from request to ready
func TestDeploySuccessSequence(t *testing.T) {
	script := &statusScript{statuses: []types.DeployStatus{
		{Status: "deploying", DeployStage: "pulling"},
		{Status: "deploying", DeployStage: "starting"},
		{Status: "running", DeploymentReady: true},
	}}
	srv := script.server(t)
	defer srv.Close()

	e := newTestEngine(t, srv.URL, testConfig())

	var mu sync.Mutex
	var phases []types.Phase
	e.OnPhaseChanged(func(p types.Phase) {
		mu.Lock()
		phases = append(phases, p)
		mu.Unlock()
	})
	done := make(chan types.DeployAttempt, 1)
	e.OnSuccess(func(a types.DeployAttempt) { done <- a })
	e.OnFailure(func(a types.DeployAttempt) {
		t.Errorf("unexpected failure: %s", a.ErrorReason)
	})

	appID, err := e.Deploy(context.Background(), DeployInput{Name: "demo", Code: "print('hi')"})
	require.NoError(t, err)
	assert.Equal(t, "app1", appID)

	select {
	case attempt := <-done:
		assert.Equal(t, types.PhaseReady, attempt.Phase)
		assert.Equal(t, "app1", attempt.AppID)
		assert.False(t, attempt.FinishedAt.IsZero())
		assert.Greater(t, attempt.DurationSeconds, 0.0)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for success")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []types.Phase{
		types.PhaseDeploying,
		types.PhasePulling,
		types.PhaseStarting,
		types.PhaseReady,
	}, phases)
}

// TestDeployTimeout tests the tick budget
func TestDeployTimeout(t *testing.T) {
	script := &statusScript{statuses: []types.DeployStatus{
		{Status: "deploying", DeployStage: "pulling"},
	}}
	srv := script.server(t)
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxDeployTicks = 3
	e := newTestEngine(t, srv.URL, cfg)

	done := make(chan types.DeployAttempt, 1)
	e.OnFailure(func(a types.DeployAttempt) { done <- a })

	_, err := e.Deploy(context.Background(), DeployInput{Name: "demo", Code: "x"})
	require.NoError(t, err)

	select {
	case attempt := <-done:
		assert.Equal(t, ReasonTimeout, attempt.ErrorReason)
		assert.Equal(t, types.PhaseError, attempt.Phase)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for timeout failure")
	}
}

// TestBackgroundDeployUsesLongerBudget tests the background tick budget
func TestBackgroundDeployUsesLongerBudget(t *testing.T) {
	var ticks int
	var mu sync.Mutex
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/apps", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(types.DeployResponse{AppID: "app1"})
	})
	mux.HandleFunc("GET /api/apps/app1/deploy-status", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ticks++
		n := ticks
		mu.Unlock()
		status := types.DeployStatus{Status: "deploying", DeployStage: "pulling"}
		if n >= 6 {
			status = types.DeployStatus{Status: "running", DeploymentReady: true}
		}
		json.NewEncoder(w).Encode(status)
	})
	mux.HandleFunc("GET /api/apps/app1/events", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(types.EventsResponse{})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxDeployTicks = 3 // would time out in foreground
	cfg.BackgroundDeployTicks = 20
	e := newTestEngine(t, srv.URL, cfg)

	success := make(chan struct{}, 1)
	e.OnSuccess(func(types.DeployAttempt) { success <- struct{}{} })
	e.OnFailure(func(a types.DeployAttempt) {
		t.Errorf("background deploy failed: %s", a.ErrorReason)
	})

	_, err := e.Deploy(context.Background(), DeployInput{Name: "demo", Code: "x", Background: true})
	require.NoError(t, err)

	select {
	case <-success:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for background success")
	}
}

// TestDeployFailureReason tests error message precedence
func TestDeployFailureReason(t *testing.T) {
	tests := []struct {
		name     string
		status   types.DeployStatus
		expected string
	}{
		{
			name:     "last_error wins",
			status:   types.DeployStatus{Status: "error", LastError: "image pull failed", ErrorMessage: "other"},
			expected: "image pull failed",
		},
		{
			name:     "error_message second",
			status:   types.DeployStatus{Status: "error", ErrorMessage: "crash loop"},
			expected: "crash loop",
		},
		{
			name:     "generic fallback",
			status:   types.DeployStatus{Status: "error"},
			expected: "Deployment failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script := &statusScript{statuses: []types.DeployStatus{tt.status}}
			srv := script.server(t)
			defer srv.Close()

			e := newTestEngine(t, srv.URL, testConfig())
			done := make(chan types.DeployAttempt, 1)
			e.OnFailure(func(a types.DeployAttempt) { done <- a })

			_, err := e.Deploy(context.Background(), DeployInput{Name: "demo", Code: "x"})
			require.NoError(t, err)

			select {
			case attempt := <-done:
				assert.Equal(t, tt.expected, attempt.ErrorReason)
			case <-time.After(5 * time.Second):
				t.Fatal("timed out waiting for failure")
			}
		})
	}
}

// TestDeployAppVanished tests that a 404 mid-deploy is immediately fatal
func TestDeployAppVanished(t *testing.T) {
	script := &statusScript{
		statuses: []types.DeployStatus{{}, {}},
		codes:    []int{0, http.StatusNotFound},
	}
	// First tick is fine and non-terminal, second 404s.
	script.statuses[0] = types.DeployStatus{Status: "deploying", DeployStage: "pulling"}
	srv := script.server(t)
	defer srv.Close()

	e := newTestEngine(t, srv.URL, testConfig())
	done := make(chan types.DeployAttempt, 1)
	e.OnFailure(func(a types.DeployAttempt) { done <- a })

	_, err := e.Deploy(context.Background(), DeployInput{Name: "demo", Code: "x"})
	require.NoError(t, err)

	select {
	case attempt := <-done:
		assert.Equal(t, ReasonAppNotFound, attempt.ErrorReason)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for failure")
	}
}

// TestTransientErrorsRetry tests that server hiccups wait for the next tick
func TestTransientErrorsRetry(t *testing.T) {
	script := &statusScript{
		statuses: []types.DeployStatus{
			{},
			{},
			{Status: "running", DeploymentReady: true},
		},
		codes: []int{http.StatusBadGateway, http.StatusInternalServerError, 0},
	}
	srv := script.server(t)
	defer srv.Close()

	e := newTestEngine(t, srv.URL, testConfig())
	success := make(chan struct{}, 1)
	e.OnSuccess(func(types.DeployAttempt) { success <- struct{}{} })
	e.OnFailure(func(a types.DeployAttempt) {
		t.Errorf("deploy failed despite recovery: %s", a.ErrorReason)
	})

	_, err := e.Deploy(context.Background(), DeployInput{Name: "demo", Code: "x"})
	require.NoError(t, err)

	select {
	case <-success:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for success after transient errors")
	}
}

// TestPhaseDedup tests that repeated stages notify only once
func TestPhaseDedup(t *testing.T) {
	script := &statusScript{statuses: []types.DeployStatus{
		{Status: "deploying", DeployStage: "pulling"},
		{Status: "deploying", DeployStage: "pulling"},
		{Status: "deploying", DeployStage: "pulling"},
		{Status: "running", DeploymentReady: true},
	}}
	srv := script.server(t)
	defer srv.Close()

	e := newTestEngine(t, srv.URL, testConfig())

	var mu sync.Mutex
	counts := map[types.Phase]int{}
	e.OnPhaseChanged(func(p types.Phase) {
		mu.Lock()
		counts[p]++
		mu.Unlock()
	})
	success := make(chan struct{}, 1)
	e.OnSuccess(func(types.DeployAttempt) { success <- struct{}{} })

	_, err := e.Deploy(context.Background(), DeployInput{Name: "demo", Code: "x"})
	require.NoError(t, err)

	select {
	case <-success:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for success")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, counts[types.PhasePulling], "repeated stage must notify once")
	assert.Equal(t, 1, counts[types.PhaseReady])
}

// TestUnknownStageDoesNotRegress tests that unrecognized stages are ignored
func TestUnknownStageDoesNotRegress(t *testing.T) {
	script := &statusScript{statuses: []types.DeployStatus{
		{Status: "deploying", DeployStage: "pulling"},
		{Status: "deploying", DeployStage: "some_new_stage"},
		{Status: "running", DeploymentReady: true},
	}}
	srv := script.server(t)
	defer srv.Close()

	e := newTestEngine(t, srv.URL, testConfig())

	var mu sync.Mutex
	var phases []types.Phase
	e.OnPhaseChanged(func(p types.Phase) {
		mu.Lock()
		phases = append(phases, p)
		mu.Unlock()
	})
	success := make(chan struct{}, 1)
	e.OnSuccess(func(types.DeployAttempt) { success <- struct{}{} })

	_, err := e.Deploy(context.Background(), DeployInput{Name: "demo", Code: "x"})
	require.NoError(t, err)

	select {
	case <-success:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for success")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.NotContains(t, phases, types.PhaseUnknown)
}

// TestRunningWithoutReadyKeepsPolling tests that a running status is not
// terminal until deployment_ready confirms it
func TestRunningWithoutReadyKeepsPolling(t *testing.T) {
	script := &statusScript{statuses: []types.DeployStatus{
		{Status: "running", DeploymentReady: false},
		{Status: "error", LastError: "readiness probe failed"},
	}}
	srv := script.server(t)
	defer srv.Close()

	e := newTestEngine(t, srv.URL, testConfig())

	var mu sync.Mutex
	var phases []types.Phase
	e.OnPhaseChanged(func(p types.Phase) {
		mu.Lock()
		phases = append(phases, p)
		mu.Unlock()
	})
	done := make(chan types.DeployAttempt, 1)
	e.OnFailure(func(a types.DeployAttempt) { done <- a })
	e.OnSuccess(func(types.DeployAttempt) {
		t.Error("success fired for a deployment that never became ready")
	})

	_, err := e.Deploy(context.Background(), DeployInput{Name: "demo", Code: "x"})
	require.NoError(t, err)

	select {
	case attempt := <-done:
		assert.Equal(t, "readiness probe failed", attempt.ErrorReason)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for failure")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.NotContains(t, phases, types.PhaseReady)
}

// TestBrokerNarratesDeploy tests that a broker subscriber observes the
// attempt's output events without any direct callback wiring
func TestBrokerNarratesDeploy(t *testing.T) {
	script := &statusScript{statuses: []types.DeployStatus{
		{Status: "deploying", DeployStage: "pulling"},
		{Status: "running", DeploymentReady: true},
	}}
	srv := script.server(t)
	defer srv.Close()

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	client, err := transport.NewClient(srv.URL, nil)
	require.NoError(t, err)
	e := New(client, testConfig(), WithBroker(broker))

	_, err = e.Deploy(context.Background(), DeployInput{Name: "demo", Code: "x"})
	require.NoError(t, err)

	var seen []string
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-sub:
			seen = append(seen, string(ev.Type)+":"+ev.Message)
			if ev.Type == events.EventDeploySuccess {
				assert.Equal(t, "app1", ev.AppID)
				assert.Contains(t, seen, string(events.EventPhaseChanged)+":"+string(types.PhasePulling))
				assert.Contains(t, seen, string(events.EventPhaseChanged)+":"+string(types.PhaseReady))
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for the success event on the broker")
		}
	}
}

// TestDeployRequiresName tests name validation
func TestDeployRequiresName(t *testing.T) {
	e := newTestEngine(t, "http://localhost:1", testConfig())

	_, err := e.Deploy(context.Background(), DeployInput{Name: "   ", Code: "x"})
	assert.Error(t, err)
}

// TestEventTailNewestFirst tests event narration ordering and depth
func TestEventTailNewestFirst(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var evs []types.DeploymentEvent
	for i := 0; i < 6; i++ {
		evs = append(evs, types.DeploymentEvent{
			Type:      types.SeverityNormal,
			Reason:    "Pulled",
			Message:   string(rune('a' + i)),
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
	}
	script := &statusScript{
		statuses: []types.DeployStatus{{Status: "running", DeploymentReady: true}},
		events:   evs,
	}
	srv := script.server(t)
	defer srv.Close()

	e := newTestEngine(t, srv.URL, testConfig())
	success := make(chan struct{}, 1)
	e.OnSuccess(func(types.DeployAttempt) { success <- struct{}{} })

	_, err := e.Deploy(context.Background(), DeployInput{Name: "demo", Code: "x"})
	require.NoError(t, err)

	select {
	case <-success:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for success")
	}

	tail := e.EventTail()
	require.Len(t, tail, 5, "tail is truncated to the configured depth")
	assert.Equal(t, "f", tail[0].Message, "newest event first")
	assert.Equal(t, "b", tail[4].Message)
}

// TestAbortStopsPolling tests that an aborted attempt fires no terminal callback
func TestAbortStopsPolling(t *testing.T) {
	script := &statusScript{statuses: []types.DeployStatus{
		{Status: "deploying", DeployStage: "pulling"},
	}}
	srv := script.server(t)
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxDeployTicks = 5
	e := newTestEngine(t, srv.URL, cfg)

	terminal := make(chan struct{}, 2)
	e.OnSuccess(func(types.DeployAttempt) { terminal <- struct{}{} })
	e.OnFailure(func(types.DeployAttempt) { terminal <- struct{}{} })

	_, err := e.Deploy(context.Background(), DeployInput{Name: "demo", Code: "x"})
	require.NoError(t, err)
	e.Abort()

	select {
	case <-terminal:
		t.Fatal("terminal callback fired after abort")
	case <-time.After(200 * time.Millisecond):
	}
}

// TestOpenAppURL tests user-facing URL derivation
func TestOpenAppURL(t *testing.T) {
	e := newTestEngine(t, "http://localhost:8600", testConfig())

	assert.Equal(t, "https://demo.pyloft.dev",
		e.OpenAppURL(&types.App{ID: "app1", URL: "https://demo.pyloft.dev"}))
	assert.Equal(t, "http://localhost:8600/apps/app1",
		e.OpenAppURL(&types.App{ID: "app1"}))
}
