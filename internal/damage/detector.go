// Package damage infers bodily damage from the proximity time series.
// Two independent heuristics run every cycle: a temporal one that
// reacts to sudden per-channel jumps, and a spatial one that reacts to
// changes spreading between adjacent channels around the body. Each
// induced magnitude erodes the integrity need through the Sink.
// See design doc Section 2 and Section 3.
package damage

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/fieldmind/homeostat/internal/sense"
)

// AdjacencyPairs is the number of adjacent-channel slots the spatial
// heuristic tracks (one fewer than the channel count).
const AdjacencyPairs = sense.Channels - 1

// Sink receives induced damage magnitudes. The control loop implements
// it: each magnitude erodes integrity and triggers a partial
// physiological recompute.
type Sink interface {
	InduceDamage(magnitude float64)
}

// Config holds the detector thresholds.
type Config struct {
	MinDist     float64 // Lower sensor bound (raw units)
	MaxDist     float64 // Upper sensor bound (raw units)
	PeriodUnits float64 // Divisor for speed estimates

	SpeedDiffFraction float64 // Per-channel change gate, fraction of (max-min)
	SpeedMeanFraction float64 // Mean gate, fraction of 1/channels
	ChannelSpeedMin   float64 // Minimum per-channel speed that induces damage

	BodyRadius     float64 // Body radius for the circular speed estimate
	SpreadFraction float64 // Similarity threshold for spread detection

	// SymmetricAdjacency switches the spatial heuristic from the
	// legacy current[i] vs previous[i-1] comparison to a symmetric
	// same-index neighbor model covering all channels.
	SymmetricAdjacency bool
}

// Detector carries the smoothed speed estimates across cycles. Both
// arrays live for the whole run: per-channel speeds reset individually
// when a channel goes quiet, circular speeds persist until overwritten.
type Detector struct {
	cfg Config

	speed [sense.Channels]float64
	circ  [AdjacencyPairs]float64
}

// NewDetector creates a detector with zeroed speed estimates.
func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Speeds returns a copy of the per-channel smoothed speed estimates.
func (d *Detector) Speeds() [sense.Channels]float64 {
	return d.speed
}

// CircularSpeeds returns a copy of the adjacency speed estimates.
func (d *Detector) CircularSpeeds() [AdjacencyPairs]float64 {
	return d.circ
}

// Check runs both heuristics on the window's current and previous
// frames and reports whether either flagged damage. Both heuristics
// always run for their side effects regardless of the combined result;
// the spatial one runs first, matching the legacy evaluation order.
// Both read the previous frame, so the window must not be snapshotted
// until after Check returns.
func (d *Detector) Check(w *sense.Window, sink Sink) bool {
	spread := d.checkSpread(w, sink)
	sudden := d.checkSudden(w, sink)
	return spread || sudden
}

// checkSudden is the temporal heuristic: per-channel jumps above the
// change gate feed a smoothed speed estimate; quiet channels reset to
// zero. When the normalized mean speed crosses the mean gate, every
// channel above the per-channel floor induces damage of its estimate.
func (d *Detector) checkSudden(w *sense.Window, sink Sink) bool {
	span := d.cfg.MaxDist - d.cfg.MinDist
	for i := 0; i < sense.Channels; i++ {
		diff := w.Current[i] - w.Previous[i]
		if math.Abs(diff) > d.cfg.SpeedDiffFraction*span {
			d.speed[i] = (d.speed[i] + diff/d.cfg.PeriodUnits) / 2
		} else {
			d.speed[i] = 0
		}
	}

	// Mean speed normalized against the maximum observable speed.
	maxSpeed := d.cfg.MaxDist / d.cfg.PeriodUnits
	mean := stat.Mean(d.speed[:], nil) / maxSpeed

	if mean <= d.cfg.SpeedMeanFraction/sense.Channels {
		return false
	}
	for i := 0; i < sense.Channels; i++ {
		if d.speed[i] > d.cfg.ChannelSpeedMin {
			sink.InduceDamage(d.speed[i])
		}
	}
	return true
}

// checkSpread is the spatial heuristic: a channel that now reads close
// to what its neighbor read last cycle suggests the disturbance is
// travelling around the body. Matching pairs get a circular speed
// estimate; adjacent matching estimates amplify each other; every
// nonzero estimate then induces damage.
func (d *Detector) checkSpread(w *sense.Window, sink Sink) bool {
	if d.cfg.SymmetricAdjacency {
		d.markSpreadSymmetric(w)
	} else {
		d.markSpreadLegacy(w)
	}

	// Amplify runs of similar estimates: spreading damage on adjacent
	// channels doubles both estimates.
	for i := 1; i < AdjacencyPairs; i++ {
		if math.Abs(d.circ[i]-d.circ[i-1]) < d.cfg.SpreadFraction*d.circ[i] {
			d.circ[i-1] *= 2
			d.circ[i] *= 2
		}
	}

	flagged := false
	for i := 0; i < AdjacencyPairs; i++ {
		if d.circ[i] > 0 {
			sink.InduceDamage(d.circ[i])
			flagged = true
		}
	}
	return flagged
}

// markSpreadLegacy compares current[i] against previous[i-1] for
// i in [1,6], leaving channel 0 uncompared on one side and channel 7
// unused as a source. Kept for parity with the legacy model; pairs
// where nothing moved are skipped so a static scene never reads as
// spreading damage.
func (d *Detector) markSpreadLegacy(w *sense.Window) {
	circSpeed := math.Pi * d.cfg.BodyRadius / d.cfg.PeriodUnits
	for i := 1; i < AdjacencyPairs; i++ {
		diff := w.Current[i] - w.Previous[i-1]
		if diff == 0 {
			continue
		}
		if math.Abs(diff) < d.cfg.SpreadFraction*w.Current[i] {
			d.circ[i] = circSpeed
		}
	}
}

// markSpreadSymmetric compares each channel against both ring
// neighbors' previous readings, covering all 8 channels. Pair slot i
// aggregates the (i, i+1) edge.
func (d *Detector) markSpreadSymmetric(w *sense.Window) {
	circSpeed := math.Pi * d.cfg.BodyRadius / d.cfg.PeriodUnits
	for i := 0; i < AdjacencyPairs; i++ {
		forward := w.Current[i+1] - w.Previous[i]
		backward := w.Current[i] - w.Previous[i+1]
		if d.spreadMatch(forward, w.Current[i+1]) || d.spreadMatch(backward, w.Current[i]) {
			d.circ[i] = circSpeed
		}
	}
}

func (d *Detector) spreadMatch(diff, current float64) bool {
	if diff == 0 {
		return false
	}
	return math.Abs(diff) < d.cfg.SpreadFraction*current
}
