package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pyloft/console/pkg/types"
)

// TestPhaseFromStatus tests the status observation to phase rule
func TestPhaseFromStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   types.DeployStatus
		expected types.Phase
	}{
		{"stage is authoritative", types.DeployStatus{Status: "deploying", DeployStage: "pulling"}, types.PhasePulling},
		{"status fallback without stage", types.DeployStatus{Status: "deploying"}, types.PhaseDeploying},
		{"running with ready flag", types.DeployStatus{Status: "running", DeploymentReady: true}, types.PhaseReady},
		{"running without ready flag", types.DeployStatus{Status: "running"}, types.PhaseUnknown},
		{"error status", types.DeployStatus{Status: "error", DeployStage: "pulling"}, types.PhaseError},
		{"stage claiming ready unconfirmed", types.DeployStatus{Status: "deploying", DeployStage: "ready"}, types.PhaseUnknown},
		{"unrecognized stage", types.DeployStatus{Status: "deploying", DeployStage: "warming_up"}, types.PhaseUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PhaseFromStatus(&tt.status))
		})
	}
}

// TestProgressWidth tests the phase to bar-fraction mapping
func TestProgressWidth(t *testing.T) {
	tests := []struct {
		name     string
		phase    types.Phase
		expected float64
	}{
		{"first step", types.PhaseValidating, 1.0 / 8},
		{"mid step", types.PhasePulling, 5.0 / 8},
		{"last step", types.PhaseStarting, 1.0},
		{"terminal ready", types.PhaseReady, 1.0},
		{"terminal error", types.PhaseError, 1.0},
		{"unknown shows first step", types.PhaseUnknown, 1.0 / 8},
		{"local deploying shows first step", types.PhaseDeploying, 1.0 / 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, ProgressWidth(tt.phase), 1e-9)
		})
	}
}

// TestProgressWidthMonotonic tests that the bar never moves backwards
// across the lifecycle order
func TestProgressWidthMonotonic(t *testing.T) {
	prev := 0.0
	for _, p := range types.NonTerminalPhases() {
		w := ProgressWidth(p)
		assert.Greater(t, w, prev, "phase %s must advance the bar", p)
		prev = w
	}
	assert.GreaterOrEqual(t, ProgressWidth(types.PhaseReady), prev)
}

// TestProgressColor tests terminal color selection
func TestProgressColor(t *testing.T) {
	assert.Equal(t, ColorSuccess, ProgressColor(types.PhaseReady))
	assert.Equal(t, ColorFailure, ProgressColor(types.PhaseError))
	assert.Equal(t, ColorProgress, ProgressColor(types.PhasePulling))
	assert.Equal(t, ColorProgress, ProgressColor(types.PhaseUnknown))
}
