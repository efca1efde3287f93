package l2filter

import (
	"github.com/banshee-data/ecg.report/internal/ecg/l1chunks"
	"gonum.org/v1/gonum/stat"
)

// DeclutterOptions configures saturation replacement.
type DeclutterOptions struct {
	// Threshold marks samples at or above it as saturated.
	Threshold float64
	// Radius is the half-width of the local window, in samples.
	Radius int
	// Neutral is used when no sample in the whole input is valid.
	Neutral float64
}

// DefaultDeclutterOptions returns the settings for the 10-bit front end.
func DefaultDeclutterOptions() DeclutterOptions {
	return DeclutterOptions{Threshold: 1020, Radius: 10, Neutral: 512}
}

// DeclutterStats reports how much of the input was replaced.
type DeclutterStats struct {
	Saturated    int  `json:"saturated"`
	LocalFills   int  `json:"local_fills"`
	GlobalFills  int  `json:"global_fills"`
	AllSaturated bool `json:"all_saturated"`
}

// Declutter replaces each saturated sample with the mean of the valid
// samples of the original input within ±Radius. Without a valid neighbour
// the mean of all valid samples is used, and without any valid sample the
// Neutral value. Windows always read the original input, so earlier
// replacements never feed later ones.
//
// The output contains no value at or above Threshold as long as Neutral is
// below it, which makes Declutter idempotent.
func Declutter(w l1chunks.Waveform, opts DeclutterOptions) (l1chunks.Waveform, DeclutterStats) {
	var st DeclutterStats
	out := make(l1chunks.Waveform, len(w))
	copy(out, w)
	if len(w) == 0 {
		return out, st
	}

	valid := make([]float64, 0, len(w))
	for _, v := range w {
		if v < opts.Threshold {
			valid = append(valid, v)
		}
	}
	st.Saturated = len(w) - len(valid)
	if st.Saturated == 0 {
		return out, st
	}

	global := opts.Neutral
	if len(valid) > 0 {
		global = stat.Mean(valid, nil)
	} else {
		st.AllSaturated = true
	}

	radius := max(opts.Radius, 0)
	for i, v := range w {
		if v < opts.Threshold {
			continue
		}
		lo, hi := max(0, i-radius), min(len(w), i+radius+1)
		var sum float64
		n := 0
		for _, x := range w[lo:hi] {
			if x < opts.Threshold {
				sum += x
				n++
			}
		}
		if n > 0 {
			out[i] = sum / float64(n)
			st.LocalFills++
			continue
		}
		out[i] = global
		st.GlobalFills++
	}
	return out, st
}
