// Package behavior maps the winning need to a wheel-velocity command.
// Three strategies: seek-food (energy), seek-grooming (tegument) and
// sensor-weighted avoidance (integrity); no winner means a fail-safe
// stop. The consummatory eat/groom transitions sit behind eligibility
// hooks that the legacy model never enables.
package behavior

import (
	"time"

	"github.com/fieldmind/homeostat/internal/config"
	"github.com/fieldmind/homeostat/internal/physio"
	"github.com/fieldmind/homeostat/internal/sense"
)

// Command is one wheel-velocity pair, each component in [-1, 1].
type Command struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// Stop is the fail-safe zero-velocity command.
var Stop = Command{}

// Step is one timed phase of a motor pattern.
type Step struct {
	Command  Command
	Duration time.Duration
}

// Dispatcher selects a command from the arbitration result. It mutates
// the physiological state only through the reward transitions, which
// stay dormant under the default eligibility hooks.
type Dispatcher struct {
	cfg config.BehaviorConfig
}

// NewDispatcher creates a dispatcher with the given policy parameters.
func NewDispatcher(cfg config.BehaviorConfig) *Dispatcher {
	return &Dispatcher{cfg: cfg}
}

// Dispatch returns the command for the winning need. The returned
// pattern is non-nil only when a groom transition fired and carries the
// two-phase alternating-wheel grooming sequence.
func (d *Dispatcher) Dispatch(sel physio.Selection, frame sense.Frame, state *physio.State) (Command, []Step) {
	switch sel {
	case physio.SelectEnergy:
		return d.seekFood(state), nil
	case physio.SelectTegument:
		return d.seekGrooming(state)
	case physio.SelectIntegrity:
		return d.avoid(frame), nil
	default:
		return Stop, nil
	}
}

// seekFood drives a constant approach. When the eat transition is
// eligible it also credits the energy variable.
func (d *Dispatcher) seekFood(state *physio.State) Command {
	if d.cfg.EatEligible {
		state.Energy.Variable += d.cfg.RewardDelta
	}
	return Command{Left: d.cfg.ApproachSpeed, Right: d.cfg.ApproachSpeed}
}

// seekGrooming drives the same constant approach. When the groom
// transition is eligible it credits a variable and returns the
// alternating-wheel grooming pattern.
//
// The legacy model credits energy here, not tegument; the
// groom_credits_tegument hook switches the target pending clarified
// intent.
func (d *Dispatcher) seekGrooming(state *physio.State) (Command, []Step) {
	var pattern []Step
	if d.cfg.GroomEligible {
		if d.cfg.GroomCreditsTegument {
			state.Tegument.Variable += d.cfg.RewardDelta
		} else {
			state.Energy.Variable += d.cfg.RewardDelta
		}
		pattern = d.GroomPattern()
	}
	return Command{Left: d.cfg.ApproachSpeed, Right: d.cfg.ApproachSpeed}, pattern
}

// GroomPattern is the two-phase spin-in-place grooming sequence.
func (d *Dispatcher) GroomPattern() []Step {
	phase := time.Duration(d.cfg.GroomPhaseMs) * time.Millisecond
	return []Step{
		{Command: Command{Left: -1, Right: 1}, Duration: phase},
		{Command: Command{Left: 1, Right: -1}, Duration: phase},
	}
}

// avoid computes a Braitenberg-style weighted command: each rescaled
// reading is normalized into [0,1] over the fixed avoidance range
// (distinct from the damage-detection range), multiplied by per-wheel
// weights and averaged over the channels. The default all-zero weight
// matrix is the designated extension point for a real avoidance
// policy and yields a standstill.
func (d *Dispatcher) avoid(frame sense.Frame) Command {
	var left, right float64
	for i := 0; i < sense.Channels; i++ {
		normalized := frame[i] / d.cfg.AvoidMax
		left += d.cfg.AvoidWeightsLeft[i] * normalized
		right += d.cfg.AvoidWeightsRight[i] * normalized
	}
	left /= sense.Channels
	right /= sense.Channels
	return Command{Left: left, Right: right}
}
