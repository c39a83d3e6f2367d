// Package engine drives the fixed-period control loop: refresh state,
// detect damage, recompute motivations, arbitrate, dispatch, emit the
// command, archive the frame, sleep. The loop owns the physiological
// state and the sensor window exclusively; the only concurrent task is
// the single-slot damage feedback goroutine.
// See design doc Section 2.
package engine

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fieldmind/homeostat/internal/behavior"
	"github.com/fieldmind/homeostat/internal/body"
	"github.com/fieldmind/homeostat/internal/damage"
	"github.com/fieldmind/homeostat/internal/physio"
	"github.com/fieldmind/homeostat/internal/sense"
	"github.com/fieldmind/homeostat/internal/telemetry"
)

// Recorder receives one diagnostic record per cycle. Implementations
// must not retain the record past the call.
type Recorder interface {
	Record(rec telemetry.CycleRecord) error
}

// Options configures a Loop.
type Options struct {
	State      *physio.State
	Window     *sense.Window
	Detector   *damage.Detector
	Dispatcher *behavior.Dispatcher

	Sensing   body.Sensing
	Actuation body.Actuation
	Feedback  body.Feedback

	Recorders []Recorder

	Period       time.Duration // Wall-clock cycle period
	DamageFactor float64       // Integrity erosion per induced magnitude
	DiagEvery    uint64        // Snapshot log cadence, 0 disables
	MaxCycles    uint64        // Stop after this many cycles, 0 = until exhaustion
}

// Result summarizes a finished run.
type Result struct {
	Cycles    uint64
	Exhausted bool     // True when a need variable reached zero
	Needs     []string // The exhausted needs, if any
	Elapsed   time.Duration
}

// Status is the published view of the most recent cycle, safe to read
// concurrently with the loop.
type Status struct {
	Cycle     uint64           `json:"cycle"`
	State     physio.State     `json:"state"`
	Winner    string           `json:"winner"`
	Command   behavior.Command `json:"command"`
	Damage    bool             `json:"damage"`
	Frame     sense.Frame      `json:"frame"`
	Exhausted bool             `json:"exhausted"`
}

// Loop is the control loop. A single goroutine drives it; Stop may be
// called from any goroutine.
type Loop struct {
	state      *physio.State
	window     *sense.Window
	detector   *damage.Detector
	dispatcher *behavior.Dispatcher

	sensing   body.Sensing
	actuation body.Actuation
	feedback  body.Feedback
	recorders []Recorder

	period       time.Duration
	damageFactor float64
	diagEvery    uint64
	maxCycles    uint64

	cycle        uint64
	running      atomic.Bool
	feedbackBusy atomic.Bool
	status       atomic.Pointer[Status]
}

// NewLoop wires a control loop from its collaborators.
func NewLoop(opts Options) *Loop {
	l := &Loop{
		state:        opts.State,
		window:       opts.Window,
		detector:     opts.Detector,
		dispatcher:   opts.Dispatcher,
		sensing:      opts.Sensing,
		actuation:    opts.Actuation,
		feedback:     opts.Feedback,
		recorders:    opts.Recorders,
		period:       opts.Period,
		damageFactor: opts.DamageFactor,
		diagEvery:    opts.DiagEvery,
		maxCycles:    opts.MaxCycles,
	}
	l.status.Store(&Status{State: *opts.State})
	return l
}

// Run drives the loop until a need is exhausted, the cycle limit is
// reached, or Stop is called. On exit the actuation is always left at
// zero velocity; termination feedback fires once, only on exhaustion.
func (l *Loop) Run() Result {
	l.running.Store(true)
	start := time.Now()
	exhausted := false

	slog.Info("control loop started", "period", l.period)

	for l.running.Load() {
		cycleStart := time.Now()

		if l.step() {
			exhausted = true
			break
		}
		if l.maxCycles > 0 && l.cycle >= l.maxCycles {
			break
		}

		// Sleep the remainder of the period. A cycle that overruns
		// starts the next one immediately.
		elapsed := time.Since(cycleStart)
		if elapsed < l.period {
			time.Sleep(l.period - elapsed)
		}
	}
	l.running.Store(false)

	if err := l.actuation.Stop(); err != nil {
		slog.Warn("actuation stop failed", "error", err)
	}

	result := Result{
		Cycles:    l.cycle,
		Exhausted: exhausted,
		Elapsed:   time.Since(start),
	}
	if exhausted {
		result.Needs = l.state.ExhaustedNeeds()
		l.feedback.SignalTermination()
		slog.Info("needs exhausted", "cycle", l.cycle, "needs", result.Needs)
	} else {
		slog.Info("control loop stopped", "cycle", l.cycle)
	}
	return result
}

// Stop requests termination at the next cycle boundary.
func (l *Loop) Stop() {
	l.running.Store(false)
}

// Cycle returns the current cycle counter.
func (l *Loop) Cycle() uint64 {
	return l.status.Load().Cycle
}

// Status returns the published view of the most recent cycle.
func (l *Loop) Status() *Status {
	return l.status.Load()
}

// step runs one control cycle. Reports whether a need was exhausted.
func (l *Loop) step() bool {
	l.cycle++

	// Full physiological update: decay, refresh, damage check, then
	// deficits, cues and motivations together so arbitration never
	// sees partial state.
	raw := l.sensing.ReadProximity()
	l.state.Decay()
	l.window.Refresh(raw)
	damaged := l.detector.Check(l.window, l)
	l.state.Recompute(l.window.NormalizedMean())

	if l.state.Exhausted() {
		l.publish(physio.SelectNone, behavior.Stop, damaged, true)
		return true
	}

	sel := l.state.Select()
	cmd, pattern := l.dispatcher.Dispatch(sel, l.window.Current, l.state)

	if err := l.actuation.SetVelocity(cmd.Left, cmd.Right); err != nil {
		slog.Warn("actuation failed", "cycle", l.cycle, "error", err)
	}
	l.playPattern(pattern)

	l.record(sel, cmd, damaged)
	l.publish(sel, cmd, damaged, false)

	if l.diagEvery > 0 && l.cycle%l.diagEvery == 0 {
		slog.Info("cycle",
			"n", l.cycle,
			"energy", l.state.Energy.Variable,
			"tegument", l.state.Tegument.Variable,
			"integrity", l.state.Integrity.Variable,
			"winner", sel.String(),
			"damage", damaged,
			"sensors", l.window.Current,
		)
	}

	// Archive the frame last: the detector reads previous-cycle data.
	l.window.Snapshot()
	return false
}

// playPattern emits a timed motor sequence (the grooming maneuver).
func (l *Loop) playPattern(pattern []behavior.Step) {
	for _, s := range pattern {
		if err := l.actuation.SetVelocity(s.Command.Left, s.Command.Right); err != nil {
			slog.Warn("actuation failed during pattern", "cycle", l.cycle, "error", err)
		}
		time.Sleep(s.Duration)
	}
}

// InduceDamage erodes the integrity need by the scaled magnitude,
// partially recomputes the physiological state, and requests damage
// feedback. An event arriving while a prior feedback task is active is
// dropped, never queued.
func (l *Loop) InduceDamage(magnitude float64) {
	if magnitude == 0 {
		return
	}
	l.state.Integrity.Variable -= magnitude * l.damageFactor
	l.state.Recompute(l.window.NormalizedMean())

	if l.feedbackBusy.CompareAndSwap(false, true) {
		go func() {
			l.feedback.SignalDamageEvent()
			l.feedbackBusy.Store(false)
		}()
	}
}

func (l *Loop) record(sel physio.Selection, cmd behavior.Command, damaged bool) {
	rec := telemetry.CycleRecord{
		Cycle:        l.cycle,
		EnergyVar:    l.state.Energy.Variable,
		TegumentVar:  l.state.Tegument.Variable,
		IntegrityVar: l.state.Integrity.Variable,
		EnergyDef:    l.state.Energy.Deficit,
		TegumentDef:  l.state.Tegument.Deficit,
		IntegrityDef: l.state.Integrity.Deficit,
		EnergyCue:    l.state.Energy.Cue,
		TegumentCue:  l.state.Tegument.Cue,
		IntegrityCue: l.state.Integrity.Cue,
		EnergyMot:    l.state.Energy.Motivation,
		TegumentMot:  l.state.Tegument.Motivation,
		IntegrityMot: l.state.Integrity.Motivation,
		Winner:       sel.String(),
		Left:         cmd.Left,
		Right:        cmd.Right,
		Damage:       damaged,
	}
	for _, r := range l.recorders {
		if err := r.Record(rec); err != nil {
			slog.Warn("recorder failed", "cycle", l.cycle, "error", err)
		}
	}
}

func (l *Loop) publish(sel physio.Selection, cmd behavior.Command, damaged, exhausted bool) {
	l.status.Store(&Status{
		Cycle:     l.cycle,
		State:     *l.state,
		Winner:    sel.String(),
		Command:   cmd,
		Damage:    damaged,
		Frame:     l.window.Current,
		Exhausted: exhausted,
	})
}
