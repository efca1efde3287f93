// Package display prepares waveforms for presentation. Nothing here feeds
// beat detection or classification.
package display

import (
	"github.com/banshee-data/ecg.report/internal/ecg/l1chunks"
	"github.com/banshee-data/ecg.report/internal/units"
)

// BinAverage downsamples w to exactly maxPoints values. Bin i covers
// [floor(i·L/M), floor((i+1)·L/M)), so bins never overlap and the last one
// ends at the final sample. Inputs no longer than maxPoints, or a
// non-positive maxPoints, are returned as a copy.
func BinAverage(w l1chunks.Waveform, maxPoints int) l1chunks.Waveform {
	n := len(w)
	if maxPoints <= 0 || n <= maxPoints {
		return w.Clone()
	}
	out := make(l1chunks.Waveform, maxPoints)
	for i := range out {
		start, end := binBounds(i, n, maxPoints)
		var sum float64
		for _, v := range w[start:end] {
			sum += v
		}
		out[i] = sum / float64(end-start)
	}
	return out
}

func binBounds(i, n, m int) (int, int) {
	start := i * n / m
	end := (i + 1) * n / m
	if i == m-1 {
		end = n
	}
	return start, end
}

// Point is one sample on a time axis.
type Point struct {
	T float64 `json:"t"`
	V float64 `json:"v"`
}

// Series bin-averages w and places each value at the start time of its
// bin, so the time axis always spans the whole recording.
func Series(w l1chunks.Waveform, maxPoints int, sampleRateHz float64) []Point {
	n := len(w)
	binned := BinAverage(w, maxPoints)
	pts := make([]Point, len(binned))
	for i, v := range binned {
		idx := i
		if len(binned) < n {
			idx, _ = binBounds(i, n, len(binned))
		}
		pts[i] = Point{T: units.SecondsAt(idx, sampleRateHz), V: v}
	}
	return pts
}

// PeakPoints places each peak index of w on the time axis.
func PeakPoints(w l1chunks.Waveform, peaks []int, sampleRateHz float64) []Point {
	pts := make([]Point, 0, len(peaks))
	for _, p := range peaks {
		if p < 0 || p >= len(w) {
			continue
		}
		pts = append(pts, Point{T: units.SecondsAt(p, sampleRateHz), V: w[p]})
	}
	return pts
}
