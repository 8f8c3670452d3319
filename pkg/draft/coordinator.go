package draft

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pyloft/console/pkg/config"
	"github.com/pyloft/console/pkg/engine"
	"github.com/pyloft/console/pkg/events"
	"github.com/pyloft/console/pkg/log"
	"github.com/pyloft/console/pkg/transport"
	"github.com/pyloft/console/pkg/types"
)

// Status labels, in priority order.
const (
	LabelSaved        = "Saved"
	LabelUnsaved      = "Unsaved changes"
	LabelUndeployed   = "Changes not deployed"
	LabelUpToDate     = "Up to date"
	MessageNoChanges  = "No changes to save"
	MessageDraftSaved = "Draft saved"
)

// SaveOutcome reports the user-visible result of a save.
type SaveOutcome struct {
	Message   string
	NoChanges bool
}

// Coordinator owns the three-way code state (deployed, lastSaved, buffer)
// and the env var list, and provides deterministic save/deploy/rollback
// primitives. Snapshots are value-typed: they are replaced, never mutated.
type Coordinator struct {
	client *transport.Client
	engine *engine.Engine
	cfg    *config.Config
	broker *events.Broker
	logger zerolog.Logger
	now    func() time.Time

	onSuccess func(types.DeployAttempt)
	onFailure func(types.DeployAttempt)

	mu                sync.Mutex
	appID             string
	name              string
	deployed          *string
	lastSaved         *string
	buffer            string
	envVars           []types.EnvVar
	serverUnpublished *bool
	savedAt           time.Time
	deployCode        string
}

// Option customises coordinator construction.
type Option func(*Coordinator)

// WithBroker publishes draft events to an event broker.
func WithBroker(b *events.Broker) Option {
	return func(c *Coordinator) { c.broker = b }
}

// WithClock overrides the wall clock, used by the Saved-label TTL.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New builds a coordinator bound to a progress engine. The coordinator
// claims the engine's terminal callbacks to keep its snapshots consistent;
// register UI handlers through OnDeploySuccess / OnDeployFailure instead of
// on the engine directly.
func New(client *transport.Client, eng *engine.Engine, cfg *config.Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		client: client,
		engine: eng,
		cfg:    cfg,
		logger: log.WithComponent("draft"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	eng.OnSuccess(c.handleDeploySuccess)
	eng.OnFailure(c.handleDeployFailure)
	return c
}

// OnDeploySuccess registers the UI callback for terminal success. It fires
// after the coordinator has already promoted its snapshots.
func (c *Coordinator) OnDeploySuccess(f func(types.DeployAttempt)) { c.onSuccess = f }

// OnDeployFailure registers the UI callback for terminal failure.
func (c *Coordinator) OnDeployFailure(f func(types.DeployAttempt)) { c.onFailure = f }

// LoadExistingApp fetches the app record and resets local state to it.
func (c *Coordinator) LoadExistingApp(ctx context.Context, appID string) (*types.App, error) {
	app, err := c.client.GetApp(ctx, appID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.appID = app.ID
	c.name = app.Name
	saved := app.Code
	c.lastSaved = &saved
	c.buffer = app.Code
	deployed := app.DeployedCode
	if deployed == "" {
		deployed = app.Code
	}
	c.deployed = &deployed
	c.envVars = append([]types.EnvVar(nil), app.EnvVars...)
	c.serverUnpublished = app.HasUnpublishedChanges
	c.savedAt = time.Time{}
	return app, nil
}

// NewApp resets the coordinator for an app that has never been deployed.
func (c *Coordinator) NewApp(name, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appID = ""
	c.name = name
	c.deployed = nil
	c.lastSaved = nil
	c.buffer = code
	c.envVars = nil
	c.serverUnpublished = nil
	c.savedAt = time.Time{}
}

// SetBuffer replaces the in-editor buffer snapshot.
func (c *Coordinator) SetBuffer(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffer = code
}

// Buffer returns the in-editor buffer snapshot.
func (c *Coordinator) Buffer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer
}

// SetName sets the app name used by deploy.
func (c *Coordinator) SetName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
}

// SetEnvVars replaces the env var list. Keys are uppercased immediately, as
// the editor does on change.
func (c *Coordinator) SetEnvVars(vars []types.EnvVar) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.envVars = make([]types.EnvVar, len(vars))
	for i, v := range vars {
		c.envVars[i] = types.EnvVar{Key: NormalizeKey(v.Key), Value: v.Value}
	}
}

// EnvVars returns a copy of the env var list.
func (c *Coordinator) EnvVars() []types.EnvVar {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.EnvVar(nil), c.envVars...)
}

// HasLocalChanges reports whether the buffer differs from the saved draft.
// It is false until a draft exists to compare against.
func (c *Coordinator) HasLocalChanges() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasLocalChangesLocked()
}

func (c *Coordinator) hasLocalChangesLocked() bool {
	return c.lastSaved != nil && c.buffer != *c.lastSaved
}

// HasUnpublishedChanges reports whether the saved draft differs from the
// deployed artifact. The server-reported flag wins when present.
func (c *Coordinator) HasUnpublishedChanges() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasUnpublishedLocked()
}

func (c *Coordinator) hasUnpublishedLocked() bool {
	if c.serverUnpublished != nil {
		return *c.serverUnpublished
	}
	return c.lastSaved != nil && c.deployed != nil && *c.lastSaved != *c.deployed
}

// StatusLabel derives the single user-visible sync indicator.
func (c *Coordinator) StatusLabel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.savedAt.IsZero() && c.now().Sub(c.savedAt) <= c.cfg.SavedLabelTTL {
		return LabelSaved
	}
	if c.hasLocalChangesLocked() {
		return LabelUnsaved
	}
	if c.hasUnpublishedLocked() {
		return LabelUndeployed
	}
	return LabelUpToDate
}

// SaveDraft persists the buffer as the draft. A buffer identical to the
// saved draft completes without touching the network.
func (c *Coordinator) SaveDraft(ctx context.Context) (SaveOutcome, error) {
	c.mu.Lock()
	appID := c.appID
	code := c.buffer
	unchanged := c.lastSaved != nil && code == *c.lastSaved
	c.mu.Unlock()

	if appID == "" {
		return SaveOutcome{}, fmt.Errorf("no app to save: deploy first")
	}
	if unchanged {
		return SaveOutcome{Message: MessageNoChanges, NoChanges: true}, nil
	}

	resp, err := c.client.SaveDraft(ctx, appID, code)
	if err != nil {
		return SaveOutcome{}, err
	}

	c.mu.Lock()
	saved := code
	c.lastSaved = &saved
	flag := resp.HasUnpublishedChanges
	c.serverUnpublished = &flag
	c.savedAt = c.now()
	c.mu.Unlock()

	c.publish(events.EventDraftSaved, appID, MessageDraftSaved)
	return SaveOutcome{Message: MessageDraftSaved}, nil
}

// Deploy submits the buffer and env vars to the platform and starts the
// progress engine. The caller must have confirmed the action; on denial it
// simply never calls Deploy and the draft state stands.
func (c *Coordinator) Deploy(ctx context.Context, background bool) (string, error) {
	c.mu.Lock()
	name := strings.TrimSpace(c.name)
	code := c.buffer
	appID := c.appID
	vars := NormalizeEnvVars(c.envVars)
	c.mu.Unlock()

	if name == "" {
		return "", fmt.Errorf("app name must not be empty")
	}

	id, err := c.engine.Deploy(ctx, engine.DeployInput{
		AppID:      appID,
		Name:       name,
		Code:       code,
		EnvVars:    vars,
		Background: background,
	})
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.appID = id
	c.deployCode = code
	c.mu.Unlock()
	return id, nil
}

// handleDeploySuccess promotes the submitted code to both deployed and
// lastSaved and clears the unpublished flag.
func (c *Coordinator) handleDeploySuccess(attempt types.DeployAttempt) {
	c.mu.Lock()
	code := c.deployCode
	c.deployed = &code
	saved := code
	c.lastSaved = &saved
	flag := false
	c.serverUnpublished = &flag
	c.mu.Unlock()

	if c.onSuccess != nil {
		c.onSuccess(attempt)
	}
}

func (c *Coordinator) handleDeployFailure(attempt types.DeployAttempt) {
	if c.onFailure != nil {
		c.onFailure(attempt)
	}
}

// ListVersions returns deployed history for the app, newest first.
func (c *Coordinator) ListVersions(ctx context.Context, appID string) ([]types.Version, error) {
	return c.client.Versions(ctx, appID)
}

// Rollback restores a version by history index. On success local snapshots
// are discarded because the authoritative code now differs; the caller is
// expected to reload the app record.
func (c *Coordinator) Rollback(ctx context.Context, appID string, versionIndex int) error {
	if err := c.client.Rollback(ctx, appID, versionIndex); err != nil {
		return err
	}

	c.mu.Lock()
	if c.appID == appID {
		c.deployed = nil
		c.lastSaved = nil
		c.buffer = ""
		c.serverUnpublished = nil
		c.savedAt = time.Time{}
	}
	c.mu.Unlock()

	c.publish(events.EventRollback, appID, fmt.Sprintf("rolled back to version %d", versionIndex))
	return nil
}

// Delete removes the app. Local state for it is discarded on success.
func (c *Coordinator) Delete(ctx context.Context, appID string) error {
	if err := c.client.DeleteApp(ctx, appID); err != nil {
		return err
	}

	c.mu.Lock()
	if c.appID == appID {
		c.appID = ""
		c.deployed = nil
		c.lastSaved = nil
		c.buffer = ""
		c.envVars = nil
		c.serverUnpublished = nil
		c.savedAt = time.Time{}
	}
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) publish(t events.EventType, appID, msg string) {
	if c.broker == nil {
		return
	}
	c.broker.Publish(&events.Event{Type: t, AppID: appID, Message: msg})
}
