// Package synth generates synthetic ADC-scale ECG recordings for demos,
// the development server and tests. The waveform is shaped like an ECG but
// is not clinically accurate.
package synth

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/banshee-data/ecg.report/internal/ecg/l1chunks"
	"github.com/banshee-data/ecg.report/internal/units"
	"gonum.org/v1/gonum/floats"
)

// Options configures a recording.
type Options struct {
	SampleRateHz float64
	HeartRateBPM float64
	// RRJitter shifts each beat by up to ±RRJitter seconds.
	RRJitter float64
	// Noise is the standard deviation of additive noise, relative to the R
	// wave amplitude.
	Noise float64
	// Wander is the amplitude of slow baseline drift, relative to the R wave.
	Wander float64
	// Span is the peak-to-peak ADC range the waveform is scaled into,
	// centred on the ADC midpoint.
	Span float64
	// SpikeRate is the probability that a sample is pegged at the ADC rail.
	SpikeRate float64
	Seed      uint64
}

// Preset names accepted by PresetOptions.
const (
	PresetNormal      = "normal"
	PresetBradycardia = "bradycardia"
	PresetTachycardia = "tachycardia"
	PresetArrhythmia  = "arrhythmia"
	PresetNoisy       = "noisy"
)

// PresetOptions returns the options for a named recording type.
func PresetOptions(name string, sampleRateHz float64, seed uint64) (Options, error) {
	o := Options{
		SampleRateHz: sampleRateHz,
		HeartRateBPM: 72,
		Noise:        0.025,
		Wander:       0.05,
		Span:         200,
		Seed:         seed,
	}
	switch name {
	case PresetNormal, "":
	case PresetBradycardia:
		o.HeartRateBPM = 48
		o.Span = 250
	case PresetTachycardia:
		o.HeartRateBPM = 120
	case PresetArrhythmia:
		o.HeartRateBPM = 64
		o.RRJitter = 0.1
		o.Noise = 0.04
		o.Wander = 0.08
		o.Span = 250
	case PresetNoisy:
		o.Noise = 0.08
		o.SpikeRate = 0.002
	default:
		return o, fmt.Errorf("unknown preset %q", name)
	}
	return o, nil
}

type wave struct {
	amp, center, width float64 // seconds relative to the R peak
}

// P, Q, R, S and T waves.
var template = []wave{
	{0.15, -0.16, 0.03},
	{-0.12, -0.025, 0.01},
	{1.00, 0, 0.012},
	{-0.25, 0.03, 0.012},
	{0.30, 0.25, 0.05},
}

// Generate returns n integer ADC samples in [0, 1023] and the sample index
// of every R peak that fell inside the recording.
func Generate(n int, o Options) (l1chunks.Waveform, []int, error) {
	if err := units.ValidateRate(o.SampleRateHz); err != nil {
		return nil, nil, err
	}
	if o.HeartRateBPM <= 0 {
		return nil, nil, fmt.Errorf("invalid heart rate %v", o.HeartRateBPM)
	}
	if n <= 0 {
		return l1chunks.Waveform{}, nil, nil
	}

	rng := rand.New(rand.NewPCG(o.Seed, o.Seed^0x9e3779b97f4a7c15))
	fs := o.SampleRateHz
	rr := 60 / o.HeartRateBPM
	duration := float64(n) / fs

	sig := make([]float64, n)
	var rPeaks []int
	for beat := rr / 2; beat < duration; beat += rr {
		t0 := beat
		if o.RRJitter > 0 {
			t0 += (rng.Float64()*2 - 1) * o.RRJitter
		}
		if idx := int(math.Round(t0 * fs)); idx > 0 && idx < n-1 {
			rPeaks = append(rPeaks, idx)
		}
		lo := max(0, int((t0-0.3)*fs))
		hi := min(n, int((t0+0.5)*fs)+1)
		for i := lo; i < hi; i++ {
			dt := float64(i)/fs - t0
			for _, w := range template {
				z := (dt - w.center) / w.width
				sig[i] += w.amp * math.Exp(-0.5*z*z)
			}
		}
	}

	for i := range sig {
		t := float64(i) / fs
		sig[i] += o.Wander * math.Sin(2*math.Pi*0.33*t)
		sig[i] += o.Noise * rng.NormFloat64()
	}

	lo, hi := floats.Min(sig), floats.Max(sig)
	span := hi - lo
	if span == 0 {
		span = 1
	}
	out := make(l1chunks.Waveform, n)
	for i, v := range sig {
		adc := units.ADCMidpoint + ((v-lo)/span-0.5)*o.Span
		if o.SpikeRate > 0 && rng.Float64() < o.SpikeRate {
			adc = units.ADCMax
		}
		out[i] = math.Round(math.Min(units.ADCMax, math.Max(0, adc)))
	}
	return out, rPeaks, nil
}

// DefaultChunkSize is the number of samples per uploaded chunk.
const DefaultChunkSize = 100

// Chunks encodes a recording the way the capture device uploads it:
// chunk_1, chunk_2, ... each holding DefaultChunkSize samples.
func Chunks(w l1chunks.Waveform) map[string]string {
	m, _ := l1chunks.Split(w, DefaultChunkSize, 1)
	return m
}
