package pipeline

import (
	"github.com/banshee-data/ecg.report/internal/ecg/display"
	"github.com/banshee-data/ecg.report/internal/ecg/l1chunks"
	"github.com/banshee-data/ecg.report/internal/ecg/l2filter"
	"github.com/banshee-data/ecg.report/internal/ecg/l3beats"
	"github.com/banshee-data/ecg.report/internal/monitoring"
)

// Recording is one conditioned waveform. Every slice belongs to the
// recording alone.
type Recording struct {
	// Source is the store path the chunks came from, if any.
	Source string `json:"source"`
	// Raw is the assembled ADC waveform.
	Raw       l1chunks.Waveform       `json:"-"`
	Chunks    l1chunks.Report         `json:"chunks"`
	Declutter l2filter.DeclutterStats `json:"declutter"`
	// Clean is Raw with saturated samples replaced.
	Clean l1chunks.Waveform `json:"-"`
	// Display is drift-removed and scaled into the display band.
	Display l1chunks.Waveform `json:"-"`
	// ModelInput is Clean scaled into [-1, 1] for the classifier.
	ModelInput l1chunks.Waveform `json:"-"`
	Flags      []string          `json:"flags,omitempty"`
}

// FromChunks assembles and conditions a chunk map.
func FromChunks(source string, m l1chunks.ChunkMap, opts Options) (*Recording, error) {
	raw, report := l1chunks.Assemble(m)
	if report.MalformedTokens > 0 {
		monitoring.Warnw("malformed chunk tokens replaced with 0",
			"source", source, "tokens", report.MalformedTokens)
	}
	rec, err := FromWaveform(source, raw, opts)
	if err != nil {
		return nil, err
	}
	rec.Chunks = report
	if report.MalformedTokens > 0 {
		rec.Flags = append(rec.Flags, FlagMalformedChunkTokens)
	}
	return rec, nil
}

// FromWaveform conditions an already assembled waveform. raw is copied.
func FromWaveform(source string, raw l1chunks.Waveform, opts Options) (*Recording, error) {
	if len(raw) == 0 {
		return nil, ErrDataUnavailable
	}
	rec := &Recording{
		Source: source,
		Raw:    raw.Clone(),
		Chunks: l1chunks.Report{Samples: len(raw)},
	}

	rec.Clean, rec.Declutter = l2filter.Declutter(rec.Raw, opts.Declutter)
	switch {
	case rec.Declutter.AllSaturated:
		rec.Flags = append(rec.Flags, FlagAllSaturated)
		monitoring.Warnw("every sample saturated", "source", source, "samples", len(raw))
	case rec.Declutter.Saturated > 0:
		rec.Flags = append(rec.Flags, FlagSaturatedSamples)
	}

	rec.Display = l2filter.ToDisplay(rec.Clean, opts.Display)
	rec.ModelInput = l2filter.ToModelInput(rec.Clean)
	if l2filter.FlatLine(rec.Clean) {
		rec.Flags = append(rec.Flags, FlagFlatLine)
		monitoring.Warnw("flat line", "source", source, "samples", len(raw))
	}
	return rec, nil
}

// HeartRate estimates the heart rate from the drift-removed signal.
func (r *Recording) HeartRate(opts Options) l3beats.HeartRate {
	return l3beats.EstimateHeartRate(r.Display, opts.HeartRateSampleRateHz)
}

// Beats segments the display waveform around peaks. A width of 0 uses the
// mean RR interval.
func (r *Recording) Beats(peaks []int, width int) []l3beats.Beat {
	return l3beats.Segment(r.Display, peaks, width)
}

// Series returns the downsampled display trace and the R-peak markers on
// the display time axis.
func (r *Recording) Series(peaks []int, opts Options) (trace, markers []display.Point) {
	trace = display.Series(r.Display, opts.DisplayMaxPoints, opts.DisplaySampleRateHz)
	markers = display.PeakPoints(r.Display, peaks, opts.DisplaySampleRateHz)
	return trace, markers
}

// Chart builds a renderable chart of the recording.
func (r *Recording) Chart(title, subtitle string, opts Options) display.Chart {
	hr := r.HeartRate(opts)
	trace, markers := r.Series(hr.Peaks, opts)
	return display.Chart{
		Title:    title,
		Subtitle: subtitle,
		Points:   trace,
		Peaks:    markers,
		YLabel:   "Amplitude (mV)",
	}
}
