package l3beats

import (
	"testing"

	"github.com/banshee-data/ecg.report/internal/ecg/l1chunks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spikes(n int, at map[int]float64) l1chunks.Waveform {
	w := make(l1chunks.Waveform, n)
	for i, v := range at {
		w[i] = v
	}
	return w
}

func spikeTrain(n, first, every int) l1chunks.Waveform {
	at := map[int]float64{}
	for i := first; i < n-1; i += every {
		at[i] = 1
	}
	return spikes(n, at)
}

func TestDetectPeaks_RefractoryTieBreak(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		at   map[int]float64
		want []int
	}{
		{"second taller wins", map[int]float64{10: 5, 15: 8}, []int{15}},
		{"first taller kept", map[int]float64{10: 8, 15: 5}, []int{10}},
		{"equal keeps first", map[int]float64{10: 8, 15: 8}, []int{10}},
		{"compared against survivor", map[int]float64{10: 5, 15: 8, 20: 6}, []int{15}},
		{"chain of taller peaks", map[int]float64{10: 5, 15: 6, 20: 7}, []int{20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hr := EstimateHeartRate(spikes(100, tt.at), 360)
			assert.Equal(t, tt.want, hr.Peaks)
			assert.False(t, hr.Measured)
		})
	}
}

func TestEstimateHeartRate_Regular(t *testing.T) {
	t.Parallel()

	// one beat every 300 samples at 360 Hz = 72 bpm
	hr := EstimateHeartRate(spikeTrain(3600, 150, 300), 360)
	require.Len(t, hr.Peaks, 12)
	assert.Equal(t, 72, hr.BPM)
	assert.True(t, hr.Measured)
	assert.False(t, hr.Placeholder)
	require.Len(t, hr.InstantBPM, 11)
	assert.InDelta(t, 72, hr.InstantBPM[0], 1e-9)
}

func TestEstimateHeartRate_ClampLow(t *testing.T) {
	t.Parallel()

	// 2 s intervals = 30 bpm, clamped to 40
	hr := EstimateHeartRate(spikeTrain(3600, 100, 720), 360)
	require.Len(t, hr.Peaks, 5)
	assert.Equal(t, MinBPM, hr.BPM)
	assert.True(t, hr.Measured)
}

func TestEstimateHeartRate_RateIsAParameter(t *testing.T) {
	t.Parallel()

	w := spikeTrain(2500, 125, 250)
	at250 := EstimateHeartRate(w, 250)
	at360 := EstimateHeartRate(w, 360)
	assert.Equal(t, 60, at250.BPM)
	assert.Equal(t, 86, at360.BPM)
}

func TestEstimateHeartRate_Fallbacks(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		hr := EstimateHeartRate(nil, 360)
		assert.Zero(t, hr.BPM)
		assert.Empty(t, hr.Peaks)
		assert.False(t, hr.Measured)
	})

	t.Run("no peaks uses placeholder", func(t *testing.T) {
		hr := EstimateHeartRate(make(l1chunks.Waveform, 720), 360)
		assert.Equal(t, PlaceholderBPM, hr.BPM)
		assert.True(t, hr.Placeholder)
		assert.False(t, hr.Measured)
	})

	t.Run("single peak scales count", func(t *testing.T) {
		// one peak in 10 s
		hr := EstimateHeartRate(spikes(3600, map[int]float64{1800: 1}), 360)
		assert.Equal(t, []int{1800}, hr.Peaks)
		assert.Equal(t, 6, hr.BPM)
		assert.False(t, hr.Measured)
		assert.False(t, hr.Placeholder)
	})
}

func TestThreshold(t *testing.T) {
	t.Parallel()

	w := make(l1chunks.Waveform, 20)
	for i := range w {
		w[i] = float64(i)
	}
	// top 10% of 20 samples is {19, 18}
	assert.Equal(t, 18.0, Threshold(w))
	// fewer than 10 samples falls back to 0.7 × max
	assert.InDelta(t, 7.0, Threshold(l1chunks.Waveform{1, 10, 3}), 1e-9)
	assert.Zero(t, Threshold(nil))
	assert.Equal(t, l1chunks.Waveform{0, 1, 2}, w[:3], "input must not be reordered")
}

func TestRefractorySamples(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 144, RefractorySamples(360))
	assert.Equal(t, 100, RefractorySamples(250))
}

func TestSegment(t *testing.T) {
	t.Parallel()

	w := make(l1chunks.Waveform, 1000)
	for i := range w {
		w[i] = float64(i)
	}
	peaks := []int{100, 400, 700, 990}

	beats := Segment(w, peaks, 0)
	require.Len(t, beats, 2)
	assert.Equal(t, 400, beats[0].PeakIndex)
	assert.Equal(t, 252, beats[0].Start)
	assert.Len(t, beats[0].Samples, 297)
	assert.Equal(t, 400.0, beats[0].Samples[148])

	beats = Segment(w, peaks, 50)
	require.Len(t, beats, 3)
	beats[0].Samples[0] = -1
	assert.Equal(t, 75.0, w[75], "beats must own their samples")

	assert.Nil(t, Segment(w, []int{500}, 0))
}
