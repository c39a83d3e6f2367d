// Package sense maintains the two-frame proximity window the decision
// core reads from: the current cycle's rescaled readings and the
// previous cycle's, kept one snapshot apart.
package sense

import (
	"gonum.org/v1/gonum/stat"
)

// Channels is the number of IR proximity channels around the body.
const Channels = 8

// Frame is one ordered set of rescaled proximity readings.
type Frame [Channels]float64

// Window holds the current and previous frames. Exactly one of each is
// alive at a time; Snapshot overwrites previous with current at the end
// of a cycle, after damage detection.
type Window struct {
	Current  Frame
	Previous Frame

	minDist float64
	maxDist float64
}

// NewWindow creates a window with both frames zeroed.
func NewWindow(minDist, maxDist float64) *Window {
	return &Window{minDist: minDist, maxDist: maxDist}
}

// Refresh rescales one set of raw readings into the current frame.
// Raw magnitudes below minDist map to 0; the rest are clamped to
// maxDist and rescaled as (raw-minDist)/2. Refresh never fails:
// out-of-range input is clamped, not rejected.
func (w *Window) Refresh(raw [Channels]int) Frame {
	for i, v := range raw {
		w.Current[i] = w.rescale(float64(v))
	}
	return w.Current
}

func (w *Window) rescale(raw float64) float64 {
	if raw < w.minDist {
		return 0
	}
	if raw > w.maxDist {
		raw = w.maxDist
	}
	return (raw - w.minDist) / 2
}

// Snapshot copies the current frame into the previous slot. Must run
// exactly once per cycle, after damage detection and before the next
// Refresh.
func (w *Window) Snapshot() {
	w.Previous = w.Current
}

// NormalizedMean returns the mean of the current frame normalized with
// the same distance bounds used for rescaling. The frame holds already
// rescaled values, so the result is not confined to [0,1]; see the
// design notes. This feeds the integrity cue.
func (w *Window) NormalizedMean() float64 {
	mean := stat.Mean(w.Current[:], nil)
	return (mean - w.minDist) / (w.maxDist - w.minDist)
}

// Bounds returns the clamp range the window rescales with.
func (w *Window) Bounds() (minDist, maxDist float64) {
	return w.minDist, w.maxDist
}
