package engine

import (
	"github.com/pyloft/console/pkg/types"
)

// PhaseFromStatus derives the display phase from one status observation.
// The deploy stage is authoritative; the coarse status is consulted only
// when the stage is absent, and is terminal only on its own terms: running
// counts as ready solely with deployment_ready set, and a stage string
// claiming a terminal the status has not confirmed is treated as unknown.
func PhaseFromStatus(s *types.DeployStatus) types.Phase {
	if s.Status == "running" && s.DeploymentReady {
		return types.PhaseReady
	}
	if s.Status == "error" {
		return types.PhaseError
	}
	phase := types.ParsePhase(s.DeployStage)
	if s.DeployStage == "" {
		phase = types.ParsePhase(s.Status)
	}
	if phase.Terminal() {
		return types.PhaseUnknown
	}
	return phase
}

// Progress colors for the deploy progress bar.
const (
	ColorSuccess  = "green"
	ColorFailure  = "red"
	ColorProgress = "amber"
)

// ProgressWidth maps a phase onto a progress-bar fraction. Terminal phases
// fill the bar; each non-terminal phase advances it by one lifecycle step.
// Phases outside the lifecycle (unknown, locally-set deploying) show the
// first step so the bar never sits empty during an active attempt.
func ProgressWidth(p types.Phase) float64 {
	if p.Terminal() {
		return 1.0
	}
	steps := types.NonTerminalPhases()
	for i, s := range steps {
		if s == p {
			return float64(i+1) / float64(len(steps))
		}
	}
	return 1.0 / float64(len(steps))
}

// ProgressColor maps a phase onto the progress-bar color.
func ProgressColor(p types.Phase) string {
	switch p {
	case types.PhaseReady:
		return ColorSuccess
	case types.PhaseError:
		return ColorFailure
	default:
		return ColorProgress
	}
}
