package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pyloft/console/pkg/config"
	"github.com/pyloft/console/pkg/events"
	"github.com/pyloft/console/pkg/log"
	"github.com/pyloft/console/pkg/metrics"
	"github.com/pyloft/console/pkg/transport"
	"github.com/pyloft/console/pkg/types"
)

// Reasons for locally-decided terminal failures.
const (
	ReasonTimeout     = "Deployment is taking longer than expected"
	ReasonAppNotFound = "App not found"
	reasonFallback    = "Deployment failed"
)

// Engine drives an app from a deploy request to a terminal state, narrating
// progress through callbacks and the event broker. It owns its DeployAttempt
// exclusively; phase transitions come only from server observation, plus the
// local initial transition and the local timeout terminal.
type Engine struct {
	client *transport.Client
	cfg    *config.Config
	broker *events.Broker
	now    func() time.Time

	onPhase   func(types.Phase)
	onSuccess func(types.DeployAttempt)
	onFailure func(types.DeployAttempt)

	mu       sync.Mutex
	attempt  *types.DeployAttempt
	notified types.Phase
	gen      uint64
	stopCh   chan struct{}
}

// Option customises engine construction.
type Option func(*Engine)

// WithBroker publishes lifecycle events to an event broker.
func WithBroker(b *events.Broker) Option {
	return func(e *Engine) { e.broker = b }
}

// WithClock overrides the wall clock for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an idle engine.
func New(client *transport.Client, cfg *config.Config, opts ...Option) *Engine {
	e := &Engine{
		client: client,
		cfg:    cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnPhaseChanged registers the phase notification callback. The engine
// never notifies the same phase twice consecutively.
func (e *Engine) OnPhaseChanged(f func(types.Phase)) { e.onPhase = f }

// OnSuccess registers the terminal-success callback.
func (e *Engine) OnSuccess(f func(types.DeployAttempt)) { e.onSuccess = f }

// OnFailure registers the terminal-failure callback.
func (e *Engine) OnFailure(f func(types.DeployAttempt)) { e.onFailure = f }

// Validate checks code server-side. Purely advisory: it never changes the
// engine's phase, and deploy may be invoked without it. When the result is
// invalid, Line (and File, in multi-file mode) drive editor decoration.
func (e *Engine) Validate(ctx context.Context, appID, code string) (*types.ValidationResult, error) {
	return e.client.Validate(ctx, appID, code)
}

// DeployInput describes one deploy request.
type DeployInput struct {
	AppID      string // empty creates a new app
	Name       string
	Code       string
	EnvVars    []types.EnvVar
	Background bool // dashboard flows get the longer deadline
}

// Deploy sends the create/update request and starts status polling. It
// returns the app ID the server assigned (or confirmed). The caller is
// expected to have confirmed the action with the user already.
func (e *Engine) Deploy(ctx context.Context, in DeployInput) (string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", fmt.Errorf("app name must not be empty")
	}

	req := types.DeployRequest{Name: name, Code: in.Code, EnvVars: in.EnvVars}
	var (
		resp *types.DeployResponse
		err  error
	)
	if in.AppID == "" {
		resp, err = e.client.CreateApp(ctx, req)
	} else {
		resp, err = e.client.UpdateApp(ctx, in.AppID, req)
	}
	if err != nil {
		return "", err
	}

	e.begin(resp.AppID, types.PhaseDeploying, in.Background)
	return resp.AppID, nil
}

// Observe starts narrating a deploy that was triggered elsewhere (another
// tab, the dashboard). The initial phase is unknown until the first tick.
func (e *Engine) Observe(appID string, background bool) {
	e.begin(appID, types.PhaseUnknown, background)
}

// begin replaces any running attempt and starts the polling loop.
func (e *Engine) begin(appID string, initial types.Phase, background bool) {
	maxTicks := e.cfg.MaxDeployTicks
	if background {
		maxTicks = e.cfg.BackgroundDeployTicks
	}

	e.mu.Lock()
	e.stopLocked()
	e.gen++
	gen := e.gen
	e.stopCh = make(chan struct{})
	stopCh := e.stopCh
	attemptID := uuid.New().String()
	e.attempt = &types.DeployAttempt{
		ID:        attemptID,
		AppID:     appID,
		StartedAt: e.now(),
		Phase:     initial,
	}
	e.notified = ""
	e.mu.Unlock()

	e.notifyPhase(gen, initial)
	go e.pollLoop(gen, stopCh, appID, maxTicks, log.WithAttemptID(attemptID))
}

// Abort stops polling and leaves the phase as last observed.
func (e *Engine) Abort() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *Engine) stopLocked() {
	if e.stopCh != nil {
		close(e.stopCh)
		e.stopCh = nil
	}
	e.gen++
}

// Attempt returns a snapshot of the current attempt. The zero value is
// returned when no deploy has been started.
func (e *Engine) Attempt() types.DeployAttempt {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.attempt == nil {
		return types.DeployAttempt{}
	}
	snapshot := *e.attempt
	snapshot.Events = append([]types.DeploymentEvent(nil), e.attempt.Events...)
	return snapshot
}

// Phase reports the current phase of the attempt.
func (e *Engine) Phase() types.Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.attempt == nil {
		return types.PhaseUnknown
	}
	return e.attempt.Phase
}

// EventTail returns the most recent lifecycle events, newest first,
// truncated for display.
func (e *Engine) EventTail() []types.DeploymentEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.attempt == nil {
		return nil
	}
	n := len(e.attempt.Events)
	depth := e.cfg.EventTailDepth
	if depth > n {
		depth = n
	}
	out := make([]types.DeploymentEvent, 0, depth)
	for i := n - 1; i >= n-depth; i-- {
		out = append(out, e.attempt.Events[i])
	}
	return out
}

// pollLoop runs one attempt's tick schedule. Each tick is issued only after
// the previous one completed, so status requests never overlap.
func (e *Engine) pollLoop(gen uint64, stopCh chan struct{}, appID string, maxTicks int, logger zerolog.Logger) {
	ticker := time.NewTicker(e.cfg.DeployPollInterval)
	defer ticker.Stop()

	for tick := 1; tick <= maxTicks; tick++ {
		select {
		case <-ticker.C:
		case <-stopCh:
			return
		}
		if done := e.pollOnce(gen, appID, tick == maxTicks, logger); done {
			return
		}
	}
	e.timeout(gen)
}

// pollOnce performs one status observation. It returns true when the
// attempt reached a terminal state.
func (e *Engine) pollOnce(gen uint64, appID string, finalTick bool, logger zerolog.Logger) bool {
	metrics.DeployTicksTotal.Inc()

	status, err := e.client.DeployStatus(context.Background(), appID)
	if err != nil {
		return e.handleTickError(gen, err, finalTick, logger)
	}

	// Best effort: fold lifecycle events into the narration. A failed
	// events fetch never affects the attempt.
	if resp, eventsErr := e.client.Events(context.Background(), appID); eventsErr == nil {
		e.mergeEvents(gen, resp.Events)
	}

	switch {
	case status.Status == "running" && status.DeploymentReady:
		e.succeed(gen)
		return true
	case status.Status == "error":
		reason := status.LastError
		if reason == "" {
			reason = status.ErrorMessage
		}
		if reason == "" {
			reason = reasonFallback
		}
		e.fail(gen, reason)
		return true
	}

	e.observePhase(gen, PhaseFromStatus(status))
	return false
}

// handleTickError applies the retry policy: not-found is fatal, a server
// error on the final tick is terminal, everything else waits for the next
// tick.
func (e *Engine) handleTickError(gen uint64, err error, finalTick bool, logger zerolog.Logger) bool {
	var apiErr *transport.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Kind == transport.KindNotFound:
			e.fail(gen, ReasonAppNotFound)
			return true
		case apiErr.Kind == transport.KindUnauthorized:
			// The session layer decides what to do with a dead token; the
			// attempt itself cannot make progress.
			e.fail(gen, apiErr.Message)
			return true
		case apiErr.Kind == transport.KindServer && finalTick:
			e.fail(gen, reasonFallback)
			return true
		}
	}
	if finalTick {
		e.timeout(gen)
		return true
	}
	logger.Debug().Err(err).Msg("status poll failed, retrying next tick")
	return false
}

// observePhase records a server-observed phase. Unknown is non-progressing
// and never overwrites a known phase. Terminal phases are refused: the
// attempt ends only through succeed, fail, or the tick deadline.
func (e *Engine) observePhase(gen uint64, phase types.Phase) {
	if phase == types.PhaseUnknown || phase.Terminal() {
		return
	}
	e.mu.Lock()
	if gen != e.gen || e.attempt == nil {
		e.mu.Unlock()
		return
	}
	e.attempt.Phase = phase
	e.mu.Unlock()
	e.notifyPhase(gen, phase)
}

func (e *Engine) succeed(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || e.attempt == nil {
		e.mu.Unlock()
		return
	}
	e.attempt.Phase = types.PhaseReady
	e.attempt.FinishedAt = e.now()
	e.attempt.DurationSeconds = e.attempt.FinishedAt.Sub(e.attempt.StartedAt).Seconds()
	snapshot := *e.attempt
	e.stopLockedKeepGen()
	e.mu.Unlock()

	metrics.DeploysTotal.WithLabelValues("success").Inc()
	metrics.DeployDuration.Observe(snapshot.DurationSeconds)
	e.notifyPhase(gen, types.PhaseReady)
	e.publish(events.EventDeploySuccess, snapshot.AppID, "deployment ready")
	if e.onSuccess != nil {
		e.onSuccess(snapshot)
	}
}

func (e *Engine) fail(gen uint64, reason string) {
	e.mu.Lock()
	if gen != e.gen || e.attempt == nil {
		e.mu.Unlock()
		return
	}
	e.attempt.Phase = types.PhaseError
	e.attempt.FinishedAt = e.now()
	e.attempt.DurationSeconds = e.attempt.FinishedAt.Sub(e.attempt.StartedAt).Seconds()
	e.attempt.ErrorReason = reason
	snapshot := *e.attempt
	e.stopLockedKeepGen()
	e.mu.Unlock()

	metrics.DeploysTotal.WithLabelValues("failure").Inc()
	e.notifyPhase(gen, types.PhaseError)
	e.publish(events.EventDeployFailure, snapshot.AppID, reason)
	if e.onFailure != nil {
		e.onFailure(snapshot)
	}
}

func (e *Engine) timeout(gen uint64) {
	e.fail(gen, ReasonTimeout)
}

// stopLockedKeepGen stops the tick schedule without invalidating the
// generation, so the terminal notification for this attempt still passes
// the gen guard.
func (e *Engine) stopLockedKeepGen() {
	if e.stopCh != nil {
		close(e.stopCh)
		e.stopCh = nil
	}
}

// notifyPhase emits the phase callback, deduplicating consecutive repeats.
func (e *Engine) notifyPhase(gen uint64, phase types.Phase) {
	e.mu.Lock()
	if gen != e.gen || e.notified == phase {
		e.mu.Unlock()
		return
	}
	e.notified = phase
	appID := ""
	if e.attempt != nil {
		appID = e.attempt.AppID
	}
	e.mu.Unlock()

	e.publish(events.EventPhaseChanged, appID, string(phase))
	if e.onPhase != nil {
		e.onPhase(phase)
	}
}

// mergeEvents appends events the attempt has not seen yet.
func (e *Engine) mergeEvents(gen uint64, incoming []types.DeploymentEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen || e.attempt == nil {
		return
	}
	seen := make(map[string]struct{}, len(e.attempt.Events))
	for _, ev := range e.attempt.Events {
		seen[eventKey(ev)] = struct{}{}
	}
	for _, ev := range incoming {
		if _, dup := seen[eventKey(ev)]; dup {
			continue
		}
		e.attempt.Events = append(e.attempt.Events, ev)
		seen[eventKey(ev)] = struct{}{}
	}
}

func (e *Engine) publish(t events.EventType, appID, msg string) {
	if e.broker == nil {
		return
	}
	e.broker.Publish(&events.Event{
		ID:      uuid.New().String(),
		Type:    t,
		AppID:   appID,
		Message: msg,
	})
}

func eventKey(ev types.DeploymentEvent) string {
	return ev.Timestamp.UTC().Format(time.RFC3339Nano) + "\x00" + ev.Reason + "\x00" + ev.Message
}

// OpenAppURL derives the user-facing URL for a deployed app. The app record
// wins when it carries an explicit URL.
func (e *Engine) OpenAppURL(app *types.App) string {
	if app != nil && app.URL != "" {
		return app.URL
	}
	id := ""
	if app != nil {
		id = app.ID
	}
	return e.client.Origin() + "/apps/" + id
}
