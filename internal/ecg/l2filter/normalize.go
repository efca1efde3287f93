package l2filter

import (
	"github.com/banshee-data/ecg.report/internal/ecg/l1chunks"
	"gonum.org/v1/gonum/floats"
)

// DisplayOptions configures the display profile.
type DisplayOptions struct {
	// MaxWindow caps the drift window length, in samples.
	MaxWindow int
	// WindowDivisor sizes the window as len/WindowDivisor before the cap.
	WindowDivisor int
	// Baseline is the centre of the output band.
	Baseline float64
	// HalfRange is the distance from Baseline to either edge of the band.
	HalfRange float64
}

// DefaultDisplayOptions returns a ±2 band around zero with a drift window
// of min(500, len/20).
func DefaultDisplayOptions() DisplayOptions {
	return DisplayOptions{MaxWindow: 500, WindowDivisor: 20, Baseline: 0, HalfRange: 2}
}

// Window returns the drift window length used for an input of n samples.
func (o DisplayOptions) Window(n int) int {
	div := max(o.WindowDivisor, 1)
	win := n / div
	if o.MaxWindow > 0 {
		win = min(win, o.MaxWindow)
	}
	return max(win, 1)
}

// RemoveBaseline subtracts a centred moving average of the given window
// length from every sample. Near the edges the window is truncated to the
// samples that exist.
func RemoveBaseline(w l1chunks.Waveform, window int) l1chunks.Waveform {
	n := len(w)
	out := make(l1chunks.Waveform, n)
	if n == 0 {
		return out
	}
	window = max(window, 1)

	// prefix[i] = sum(w[:i])
	prefix := make([]float64, n+1)
	floats.CumSum(prefix[1:], w)

	half := window / 2
	for i := range w {
		lo := max(0, i-half)
		hi := min(n, i-half+window)
		mean := (prefix[hi] - prefix[lo]) / float64(hi-lo)
		out[i] = w[i] - mean
	}
	return out
}

// ToDisplay removes drift and min-max rescales the result into
// Baseline ± HalfRange.
func ToDisplay(w l1chunks.Waveform, opts DisplayOptions) l1chunks.Waveform {
	if len(w) == 0 {
		return l1chunks.Waveform{}
	}
	centered := RemoveBaseline(w, opts.Window(len(w)))
	return rescale(centered, opts.Baseline-opts.HalfRange, opts.Baseline+opts.HalfRange)
}

// ToModelInput min-max normalizes w into [-1, 1] without drift removal.
func ToModelInput(w l1chunks.Waveform) l1chunks.Waveform {
	if len(w) == 0 {
		return l1chunks.Waveform{}
	}
	return rescale(w, -1, 1)
}

// FlatLine reports whether every sample of w has the same value.
func FlatLine(w l1chunks.Waveform) bool {
	if len(w) == 0 {
		return false
	}
	return floats.Max(w) == floats.Min(w)
}

// rescale maps [min(w), max(w)] onto [lo, hi]. A zero input range is
// treated as 1, so a flat line lands on lo.
func rescale(w l1chunks.Waveform, lo, hi float64) l1chunks.Waveform {
	minV, maxV := floats.Min(w), floats.Max(w)
	span := maxV - minV
	if span == 0 {
		span = 1
	}
	out := make(l1chunks.Waveform, len(w))
	for i, v := range w {
		out[i] = (v-minV)/span*(hi-lo) + lo
	}
	return out
}
