package l3beats

import (
	"math"
	"sort"

	"github.com/banshee-data/ecg.report/internal/ecg/l1chunks"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// MinBPM and MaxBPM bound a measured heart rate.
	MinBPM = 40
	MaxBPM = 200
	// PlaceholderBPM is reported when too few peaks were found to
	// produce any estimate.
	PlaceholderBPM = 72

	refractorySeconds = 0.4
	topFraction       = 0.1
	fallbackRatio     = 0.7
)

// HeartRate is the result of EstimateHeartRate.
type HeartRate struct {
	BPM   int   `json:"bpm"`
	Peaks []int `json:"peaks"`
	// Measured is true when BPM comes from at least two peak intervals.
	Measured bool `json:"measured"`
	// Placeholder is true when BPM is the fixed PlaceholderBPM.
	Placeholder bool `json:"placeholder"`
	// Threshold is the amplitude a peak had to exceed.
	Threshold float64 `json:"threshold"`
	// InstantBPM holds 60/interval for each consecutive pair of peaks.
	InstantBPM []float64 `json:"instant_bpm,omitempty"`
}

// RefractorySamples is the minimum distance between accepted peaks.
func RefractorySamples(sampleRateHz float64) int {
	return int(math.Floor(refractorySeconds * sampleRateHz))
}

// Threshold returns the amplitude of the last sample in the top 10% of w,
// or 0.7 × max(w) when that set is empty.
func Threshold(w l1chunks.Waveform) float64 {
	if len(w) == 0 {
		return 0
	}
	k := int(math.Floor(float64(len(w)) * topFraction))
	if k == 0 {
		return fallbackRatio * floats.Max(w)
	}
	sorted := make([]float64, len(w))
	copy(sorted, w)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	return sorted[k-1]
}

// DetectPeaks returns local maxima above threshold, at least refractory
// samples apart. A candidate inside the refractory window of the last
// accepted peak replaces it only if strictly taller. Replacement happens
// while scanning, so the next candidate is compared against the survivor.
func DetectPeaks(w l1chunks.Waveform, threshold float64, refractory int) []int {
	peaks := []int{}
	for i := 1; i < len(w)-1; i++ {
		v := w[i]
		if v <= threshold || v <= w[i-1] || v <= w[i+1] {
			continue
		}
		if len(peaks) == 0 || i-peaks[len(peaks)-1] >= refractory {
			peaks = append(peaks, i)
			continue
		}
		if last := peaks[len(peaks)-1]; v > w[last] {
			peaks[len(peaks)-1] = i
		}
	}
	return peaks
}

// EstimateHeartRate detects beats in w sampled at sampleRateHz and derives
// the average heart rate. With fewer than two peaks the rate is the peak
// count scaled to a minute, or PlaceholderBPM if that rounds to zero; such
// results have Measured false. Empty input yields BPM 0 and no peaks.
func EstimateHeartRate(w l1chunks.Waveform, sampleRateHz float64) HeartRate {
	if len(w) == 0 || sampleRateHz <= 0 {
		return HeartRate{Peaks: []int{}}
	}

	hr := HeartRate{Threshold: Threshold(w)}
	hr.Peaks = DetectPeaks(w, hr.Threshold, RefractorySamples(sampleRateHz))

	if len(hr.Peaks) < 2 {
		duration := float64(len(w)) / sampleRateHz
		hr.BPM = int(math.Round(float64(len(hr.Peaks)) / duration * 60))
		if hr.BPM == 0 {
			hr.BPM = PlaceholderBPM
			hr.Placeholder = true
		}
		return hr
	}

	intervals := make([]float64, len(hr.Peaks)-1)
	hr.InstantBPM = make([]float64, len(intervals))
	for i := 1; i < len(hr.Peaks); i++ {
		sec := float64(hr.Peaks[i]-hr.Peaks[i-1]) / sampleRateHz
		intervals[i-1] = sec
		hr.InstantBPM[i-1] = 60 / sec
	}
	bpm := int(math.Round(60 / stat.Mean(intervals, nil)))
	hr.BPM = min(MaxBPM, max(MinBPM, bpm))
	hr.Measured = true
	return hr
}

// MeanRR returns the mean distance between consecutive peaks in samples,
// or 0 with fewer than two peaks.
func MeanRR(peaks []int) float64 {
	if len(peaks) < 2 {
		return 0
	}
	return float64(peaks[len(peaks)-1]-peaks[0]) / float64(len(peaks)-1)
}
