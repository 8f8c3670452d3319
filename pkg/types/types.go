package types

import (
	"time"
)

// App represents a user application as returned by the platform API.
type App struct {
	ID                    string   `json:"app_id"`
	Name                  string   `json:"name"`
	Code                  string   `json:"code"`
	DeployedCode          string   `json:"deployed_code,omitempty"`
	EnvVars               []EnvVar `json:"env_vars,omitempty"`
	Status                string   `json:"status"`
	DeployStage           string   `json:"deploy_stage,omitempty"`
	URL                   string   `json:"url,omitempty"`
	HasUnpublishedChanges *bool    `json:"has_unpublished_changes,omitempty"`
	LastError             string   `json:"last_error,omitempty"`
	ErrorMessage          string   `json:"error_message,omitempty"`
}

// EnvVar is an ordered key/value pair attached to a deployment.
// Keys are uppercased on edit; validity is advisory (see draft.ValidEnvKey).
type EnvVar struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Phase is the observed position of an app in the deployment lifecycle.
type Phase string

const (
	PhaseValidating        Phase = "validating"
	PhaseCreatingResources Phase = "creating_resources"
	PhasePending           Phase = "pending"
	PhaseScheduled         Phase = "scheduled"
	PhasePulling           Phase = "pulling"
	PhasePulled            Phase = "pulled"
	PhaseCreating          Phase = "creating"
	PhaseStarting          Phase = "starting"
	PhaseReady             Phase = "ready"
	PhaseError             Phase = "error"
	PhaseUnknown           Phase = "unknown"

	// PhaseDeploying is the local phase between the accepted deploy request
	// and the first server-observed stage. The server never reports it as a
	// deploy_stage.
	PhaseDeploying Phase = "deploying"
)

// nonTerminalPhases lists the progressing phases in lifecycle order.
var nonTerminalPhases = []Phase{
	PhaseValidating,
	PhaseCreatingResources,
	PhasePending,
	PhaseScheduled,
	PhasePulling,
	PhasePulled,
	PhaseCreating,
	PhaseStarting,
}

// NonTerminalPhases returns the progressing phases in lifecycle order.
func NonTerminalPhases() []Phase {
	out := make([]Phase, len(nonTerminalPhases))
	copy(out, nonTerminalPhases)
	return out
}

// Terminal reports whether the phase ends a deploy attempt.
func (p Phase) Terminal() bool {
	return p == PhaseReady || p == PhaseError
}

// ParsePhase maps a server-reported stage string onto a Phase.
// Unrecognized values map to PhaseUnknown, which is non-terminal and
// non-progressing. A bare "running" also maps to PhaseUnknown: it is
// terminal-success only alongside deployment_ready, which callers must
// check at the status level (see engine.PhaseFromStatus).
func ParsePhase(s string) Phase {
	switch Phase(s) {
	case PhaseValidating, PhaseCreatingResources, PhasePending, PhaseScheduled,
		PhasePulling, PhasePulled, PhaseCreating, PhaseStarting,
		PhaseReady, PhaseError:
		return Phase(s)
	}
	if s == "deploying" {
		return PhaseDeploying
	}
	return PhaseUnknown
}

// EventSeverity classifies a deployment event.
type EventSeverity string

const (
	SeverityNormal  EventSeverity = "Normal"
	SeverityWarning EventSeverity = "Warning"
)

// DeploymentEvent is one lifecycle event observed for an app.
type DeploymentEvent struct {
	Type      EventSeverity `json:"type"`
	Reason    string        `json:"reason"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
}

// DeployAttempt is one invocation of deploy with its observable narration.
// It is owned and mutated exclusively by the progress engine.
type DeployAttempt struct {
	ID              string
	AppID           string
	StartedAt       time.Time
	FinishedAt      time.Time
	Phase           Phase
	Events          []DeploymentEvent
	ErrorReason     string
	DurationSeconds float64
}

// LogLine is one line of application output. Timestamp may be zero when the
// server did not attach one; consumers fall back to receive time.
type LogLine struct {
	Timestamp time.Time `json:"timestamp,omitempty"`
	Message   string    `json:"message"`
}

// ChannelMode identifies the active log transport.
type ChannelMode string

const (
	ModeStreaming ChannelMode = "live"
	ModePolling   ChannelMode = "polling"
	ModeIdle      ChannelMode = "idle"
	ModeError     ChannelMode = "error"
)

// DeployStatus is the payload of GET /api/apps/{id}/deploy-status.
type DeployStatus struct {
	Status          string `json:"status"`
	DeployStage     string `json:"deploy_stage,omitempty"`
	DeploymentReady bool   `json:"deployment_ready"`
	PodStatus       string `json:"pod_status,omitempty"`
	LastError       string `json:"last_error,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
}

// ValidationResult is the payload of the validate endpoints. Line and File
// are only meaningful when Valid is false; File is optional and present only
// in multi-file mode.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
	Line    int    `json:"line,omitempty"`
	File    string `json:"file,omitempty"`
}

// EventsResponse is the payload of GET /api/apps/{id}/events.
type EventsResponse struct {
	Events          []DeploymentEvent `json:"events"`
	DeploymentPhase string            `json:"deployment_phase,omitempty"`
}

// LogsResponse is the payload of GET /api/apps/{id}/logs.
type LogsResponse struct {
	Logs  []LogLine `json:"logs"`
	Error string    `json:"error,omitempty"`
}

// Version is one entry of the version history, newest first.
type Version struct {
	DeployedAt time.Time `json:"deployed_at"`
	CodeHash   string    `json:"code_hash"`
	Code       string    `json:"code"`
}

// VersionsResponse is the payload of GET /api/apps/{id}/versions.
type VersionsResponse struct {
	Versions []Version `json:"versions"`
}

// DeployRequest is the body of the create/update deploy endpoints.
type DeployRequest struct {
	Name    string   `json:"name"`
	Code    string   `json:"code"`
	EnvVars []EnvVar `json:"env_vars"`
}

// DeployResponse is the payload returned when a deploy is accepted.
type DeployResponse struct {
	AppID string `json:"app_id"`
}

// DraftResponse is the payload of PUT /api/apps/{id}/draft.
type DraftResponse struct {
	HasUnpublishedChanges bool `json:"has_unpublished_changes"`
}
