// Package physio models the three physiological needs and their
// per-cycle bookkeeping: passive decay, deficits, cues, motivations,
// and winner-take-all arbitration.
// See design doc Section 2.
package physio

// NeedState tracks one need. Variable starts at 1.0 (fully satisfied)
// and falls through decay or damage; the need is exhausted at or below
// zero. Deficit, Cue and Motivation are recomputed together every
// cycle so arbitration never reads partial state.
type NeedState struct {
	Variable   float64 `json:"variable"`
	Deficit    float64 `json:"deficit"`
	Cue        float64 `json:"cue"`
	Motivation float64 `json:"motivation"`
}

// Params holds the decay rates and constant cues.
type Params struct {
	EnergyDecay   float64
	TegumentDecay float64
	EnergyCue     float64
	TegumentCue   float64
}

// State is the full physiological state: one NeedState per need.
// It is created once at process start, mutated every cycle by the
// control loop that owns it, and discarded at process end.
type State struct {
	Energy    NeedState `json:"energy"`
	Tegument  NeedState `json:"tegument"`
	Integrity NeedState `json:"integrity"`

	params Params
}

// NewState returns a State with all variables at 1.0.
func NewState(p Params) *State {
	return &State{
		Energy:    NeedState{Variable: 1.0},
		Tegument:  NeedState{Variable: 1.0},
		Integrity: NeedState{Variable: 1.0},
		params:    p,
	}
}

// Decay applies one cycle of passive decay. Integrity has no passive
// decay; it erodes only through induced damage.
func (s *State) Decay() {
	s.Energy.Variable -= s.params.EnergyDecay
	s.Tegument.Variable -= s.params.TegumentDecay
}

// Recompute refreshes deficit, cue and motivation for all three needs
// from the current variable values. integrityCue is the normalized
// sensor mean supplied by the sensor window. Recompute is idempotent
// and serves both the full-cycle update and the mid-cycle partial
// update after induced damage.
func (s *State) Recompute(integrityCue float64) {
	// Deficits are deliberately unclamped: a variable driven below
	// zero yields a deficit above one.
	s.Energy.Deficit = 1.0 - s.Energy.Variable
	s.Tegument.Deficit = 1.0 - s.Tegument.Variable
	s.Integrity.Deficit = 1.0 - s.Integrity.Variable

	s.Energy.Cue = s.params.EnergyCue
	s.Tegument.Cue = s.params.TegumentCue
	s.Integrity.Cue = integrityCue

	s.Energy.Motivation = s.Energy.Deficit + s.Energy.Deficit*s.Energy.Cue
	s.Tegument.Motivation = s.Tegument.Deficit + s.Tegument.Deficit*s.Tegument.Cue
	s.Integrity.Motivation = s.Integrity.Deficit + s.Integrity.Deficit*s.Integrity.Cue
}

// Exhausted reports whether any need variable has reached zero.
func (s *State) Exhausted() bool {
	return s.Energy.Variable <= 0 || s.Tegument.Variable <= 0 || s.Integrity.Variable <= 0
}

// ExhaustedNeeds names the needs at or below zero, in declaration order.
func (s *State) ExhaustedNeeds() []string {
	var out []string
	if s.Energy.Variable <= 0 {
		out = append(out, "energy")
	}
	if s.Tegument.Variable <= 0 {
		out = append(out, "tegument")
	}
	if s.Integrity.Variable <= 0 {
		out = append(out, "integrity")
	}
	return out
}

// Select arbitrates over the current motivations.
func (s *State) Select() Selection {
	return Arbitrate(s.Energy.Motivation, s.Tegument.Motivation, s.Integrity.Motivation)
}
