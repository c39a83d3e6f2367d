// Simulated body: opensimplex proximity traces, logging actuation and
// feedback. Stands in for the robot when running off-hardware.
package body

import (
	"log/slog"
	"sync"
	"time"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/fieldmind/homeostat/internal/sense"
)

// SimBody implements Sensing, Actuation, Feedback and Battery with no
// hardware behind them. Proximity readings follow per-channel smooth
// noise traces over the raw sensor range; spikes can be injected to
// exercise the damage heuristics.
type SimBody struct {
	noise     opensimplex.Noise
	frequency float64
	maxDist   float64
	flash     time.Duration
	t         int

	mu     sync.Mutex
	spikes map[int]int // channel → raw magnitude, consumed on next read
}

// NewSimBody creates a simulated body. Readings are deterministic for
// a given seed.
func NewSimBody(seed int64, frequency, maxDist float64, flash time.Duration) *SimBody {
	return &SimBody{
		noise:     opensimplex.NewNormalized(seed),
		frequency: frequency,
		maxDist:   maxDist,
		flash:     flash,
		spikes:    make(map[int]int),
	}
}

// InjectSpike adds magnitude to one channel's next reading. Used by
// bench scenarios to provoke the speed-based damage heuristic.
func (b *SimBody) InjectSpike(channel, magnitude int) {
	b.mu.Lock()
	b.spikes[channel] += magnitude
	b.mu.Unlock()
}

// ReadProximity returns the next sample of each channel's noise trace,
// plus any pending injected spikes.
func (b *SimBody) ReadProximity() [sense.Channels]int {
	b.mu.Lock()
	defer b.mu.Unlock()

	var raw [sense.Channels]int
	for i := 0; i < sense.Channels; i++ {
		v := b.noise.Eval2(float64(b.t)*b.frequency, float64(i))
		raw[i] = int(v * b.maxDist)
		if s, ok := b.spikes[i]; ok {
			raw[i] += s
			delete(b.spikes, i)
		}
	}
	b.t++
	return raw
}

// SetVelocity logs the command at debug level.
func (b *SimBody) SetVelocity(left, right float64) error {
	slog.Debug("sim actuation", "left", left, "right", right)
	return nil
}

// Stop logs the stop and reports success.
func (b *SimBody) Stop() error {
	slog.Debug("sim actuation stopped")
	return nil
}

// SignalDamageEvent stands in for the damage LED flash. The sleep
// keeps the feedback busy for a realistic duration so the single-slot
// guard is actually exercised.
func (b *SimBody) SignalDamageEvent() {
	slog.Info("damage feedback")
	time.Sleep(b.flash)
}

// SignalTermination stands in for the death sequence.
func (b *SimBody) SignalTermination() {
	slog.Info("termination feedback")
}

// Status returns a fixed healthy battery sample.
func (b *SimBody) Status() (BatteryStatus, error) {
	return BatteryStatus{ChargePercent: 97, Voltage: 7910, CurrentMA: 142}, nil
}
