package engine

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldmind/homeostat/internal/behavior"
	"github.com/fieldmind/homeostat/internal/config"
	"github.com/fieldmind/homeostat/internal/damage"
	"github.com/fieldmind/homeostat/internal/physio"
	"github.com/fieldmind/homeostat/internal/sense"
	"github.com/fieldmind/homeostat/internal/telemetry"
)

// fakeBody implements all body collaborators with counters.
type fakeBody struct {
	raw           [sense.Channels]int
	failActuation bool

	velocities   []behavior.Command
	stopCalls    int
	damageEvents atomic.Int32
	terminations atomic.Int32
}

func (b *fakeBody) ReadProximity() [sense.Channels]int { return b.raw }

func (b *fakeBody) SetVelocity(left, right float64) error {
	if b.failActuation {
		return errors.New("bus stall")
	}
	b.velocities = append(b.velocities, behavior.Command{Left: left, Right: right})
	return nil
}

func (b *fakeBody) Stop() error {
	b.stopCalls++
	return nil
}

func (b *fakeBody) SignalDamageEvent() { b.damageEvents.Add(1) }
func (b *fakeBody) SignalTermination() { b.terminations.Add(1) }

// blockingFeedback holds the damage feedback busy until released.
type blockingFeedback struct {
	fakeBody
	release chan struct{}
}

func (f *blockingFeedback) SignalDamageEvent() {
	f.damageEvents.Add(1)
	<-f.release
}

// memRecorder keeps all records in memory.
type memRecorder struct {
	recs []telemetry.CycleRecord
}

func (r *memRecorder) Record(rec telemetry.CycleRecord) error {
	r.recs = append(r.recs, rec)
	return nil
}

func constantRaw(v int) [sense.Channels]int {
	var raw [sense.Channels]int
	for i := range raw {
		raw[i] = v
	}
	return raw
}

func testParams() physio.Params {
	return physio.Params{
		EnergyDecay:   0.004,
		TegumentDecay: 0.0015,
		EnergyCue:     0.06,
		TegumentCue:   0.055,
	}
}

func testDetector() *damage.Detector {
	return damage.NewDetector(damage.Config{
		MinDist:           80,
		MaxDist:           500,
		PeriodUnits:       100,
		SpeedDiffFraction: 0.05,
		SpeedMeanFraction: 0.05,
		ChannelSpeedMin:   0.05,
		BodyRadius:        6,
		SpreadFraction:    0.5,
	})
}

// warmWindow seeds both frames with the same reading, as if a cycle
// had already passed.
func warmWindow(raw int) *sense.Window {
	w := sense.NewWindow(80, 500)
	w.Refresh(constantRaw(raw))
	w.Snapshot()
	return w
}

func newTestLoop(b *fakeBody, state *physio.State, window *sense.Window, rec *memRecorder, maxCycles uint64) *Loop {
	opts := Options{
		State:        state,
		Window:       window,
		Detector:     testDetector(),
		Dispatcher:   behavior.NewDispatcher(config.BehaviorConfig{ApproachSpeed: 0.8, RewardDelta: 0.05, AvoidMax: 1023}),
		Sensing:      b,
		Actuation:    b,
		Feedback:     b,
		Period:       time.Millisecond,
		DamageFactor: 0.01,
		MaxCycles:    maxCycles,
	}
	if rec != nil {
		opts.Recorders = []Recorder{rec}
	}
	return NewLoop(opts)
}

func TestRunDecaysDeterministically(t *testing.T) {
	// Ten undisturbed cycles with constant mid-range sensors.
	body := &fakeBody{raw: constantRaw(290)}
	state := physio.NewState(testParams())
	rec := &memRecorder{}

	loop := newTestLoop(body, state, warmWindow(290), rec, 10)
	result := loop.Run()

	assert.Equal(t, uint64(10), result.Cycles)
	assert.False(t, result.Exhausted)
	assert.InDelta(t, 0.96, state.Energy.Variable, 1e-9)
	assert.InDelta(t, 0.985, state.Tegument.Variable, 1e-9)
	assert.Equal(t, 1.0, state.Integrity.Variable, "no damage, no integrity erosion")

	// Energy carries the strictly greatest motivation every cycle.
	require.Len(t, rec.recs, 10)
	for _, r := range rec.recs {
		assert.Equal(t, "energy", r.Winner)
		assert.Equal(t, 0.8, r.Left)
		assert.Equal(t, 0.8, r.Right)
		assert.False(t, r.Damage)
	}

	assert.Equal(t, 1, body.stopCalls, "actuation always ends stopped")
	assert.Equal(t, int32(0), body.terminations.Load())
	assert.Equal(t, int32(0), body.damageEvents.Load())
}

func TestRunSpikeErodesIntegrityToTermination(t *testing.T) {
	// A spike on channel 3 whose induced magnitude exactly exhausts
	// the pre-weakened integrity need.
	raw := constantRaw(280)
	raw[3] = 500
	body := &fakeBody{raw: raw}

	state := physio.NewState(testParams())
	erosion := (110.0 / 100.0) / 2.0 * 0.01 // speed[3] * damage factor
	state.Integrity.Variable = erosion

	loop := newTestLoop(body, state, warmWindow(280), nil, 0)
	result := loop.Run()

	assert.Equal(t, uint64(1), result.Cycles)
	assert.True(t, result.Exhausted)
	assert.Equal(t, []string{"integrity"}, result.Needs)
	assert.Zero(t, state.Integrity.Variable, "erosion lands on exactly zero")

	assert.Equal(t, 1, body.stopCalls)
	assert.Equal(t, int32(1), body.terminations.Load())
	require.Eventually(t, func() bool {
		return body.damageEvents.Load() == 1
	}, time.Second, 10*time.Millisecond, "exactly one damage feedback for the spike")
}

func TestInduceDamageFeedbackGuard(t *testing.T) {
	fb := &blockingFeedback{release: make(chan struct{})}
	state := physio.NewState(testParams())

	loop := NewLoop(Options{
		State:        state,
		Window:       warmWindow(290),
		Feedback:     fb,
		DamageFactor: 0.01,
	})

	// Second event arrives while the first feedback task is still
	// active: it must be dropped, never queued.
	loop.InduceDamage(1.0)
	loop.InduceDamage(1.0)

	require.Eventually(t, func() bool {
		return fb.damageEvents.Load() == 1
	}, time.Second, 5*time.Millisecond)
	close(fb.release)

	// Both events still erode integrity; only the feedback is dropped.
	assert.InDelta(t, 0.98, state.Integrity.Variable, 1e-12)

	// Once the slot frees up, the next event spawns feedback again.
	require.Eventually(t, func() bool {
		loop.InduceDamage(1.0)
		return fb.damageEvents.Load() == 2
	}, time.Second, 5*time.Millisecond)
}

func TestInduceDamageRecomputesPartially(t *testing.T) {
	state := physio.NewState(testParams())
	body := &fakeBody{}
	loop := NewLoop(Options{
		State:        state,
		Window:       warmWindow(290),
		Feedback:     body,
		DamageFactor: 0.01,
	})

	loop.InduceDamage(2.0)

	assert.InDelta(t, 0.98, state.Integrity.Variable, 1e-12)
	assert.InDelta(t, 0.02, state.Integrity.Deficit, 1e-12)
	assert.InDelta(t, 0.02*(1+state.Integrity.Cue), state.Integrity.Motivation, 1e-12)
	assert.Equal(t, 1.0, state.Energy.Variable, "no decay during a partial update")
}

func TestInduceDamageIgnoresZeroMagnitude(t *testing.T) {
	state := physio.NewState(testParams())
	body := &fakeBody{}
	loop := NewLoop(Options{
		State:        state,
		Window:       warmWindow(290),
		Feedback:     body,
		DamageFactor: 0.01,
	})

	loop.InduceDamage(0)

	assert.Equal(t, 1.0, state.Integrity.Variable)
	assert.Equal(t, int32(0), body.damageEvents.Load())
}

func TestActuationFailureIsNonFatal(t *testing.T) {
	body := &fakeBody{raw: constantRaw(290), failActuation: true}
	state := physio.NewState(testParams())

	loop := newTestLoop(body, state, warmWindow(290), nil, 3)
	result := loop.Run()

	assert.Equal(t, uint64(3), result.Cycles, "actuation faults never stop the loop")
	assert.False(t, result.Exhausted)
}

func TestStopHaltsAtCycleBoundary(t *testing.T) {
	body := &fakeBody{raw: constantRaw(290)}
	state := physio.NewState(testParams())
	loop := newTestLoop(body, state, warmWindow(290), nil, 0)

	done := make(chan Result, 1)
	go func() { done <- loop.Run() }()

	require.Eventually(t, func() bool {
		return loop.Cycle() >= 2
	}, time.Second, time.Millisecond)
	loop.Stop()

	select {
	case result := <-done:
		assert.False(t, result.Exhausted)
		assert.Equal(t, 1, body.stopCalls)
		assert.Equal(t, int32(0), body.terminations.Load())
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestStatusPublishesAfterEachCycle(t *testing.T) {
	body := &fakeBody{raw: constantRaw(290)}
	state := physio.NewState(testParams())
	loop := newTestLoop(body, state, warmWindow(290), nil, 5)

	loop.Run()

	status := loop.Status()
	require.NotNil(t, status)
	assert.Equal(t, uint64(5), status.Cycle)
	assert.Equal(t, "energy", status.Winner)
	assert.Equal(t, behavior.Command{Left: 0.8, Right: 0.8}, status.Command)
	assert.InDelta(t, 0.98, status.State.Energy.Variable, 1e-9)
}
