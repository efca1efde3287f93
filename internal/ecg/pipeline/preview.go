package pipeline

import (
	"context"

	"github.com/banshee-data/ecg.report/internal/ecg/display"
	"github.com/banshee-data/ecg.report/internal/units"
)

// Preview is the display view of the current snapshot.
type Preview struct {
	Source          string          `json:"source"`
	Samples         int             `json:"samples"`
	DurationSeconds float64         `json:"duration_seconds"`
	HeartRateBPM    int             `json:"heart_rate_bpm"`
	Measured        bool            `json:"heart_rate_measured"`
	Trace           []display.Point `json:"trace"`
	Peaks           []display.Point `json:"peaks"`
	Flags           []string        `json:"flags,omitempty"`
}

// Preview fetches the snapshot for deviceID and prepares it for display
// without classifying it. maxPoints <= 0 uses the configured limit.
func (a *Analyzer) Preview(ctx context.Context, deviceID string, maxPoints int) (*Preview, error) {
	rec, err := a.Fetch(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	opts := a.Options
	if maxPoints > 0 {
		opts.DisplayMaxPoints = maxPoints
	}
	hr := rec.HeartRate(opts)
	trace, peaks := rec.Series(hr.Peaks, opts)
	return &Preview{
		Source:          rec.Source,
		Samples:         len(rec.Raw),
		DurationSeconds: units.Duration(len(rec.Raw), opts.DisplaySampleRateHz).Seconds(),
		HeartRateBPM:    hr.BPM,
		Measured:        hr.Measured,
		Trace:           trace,
		Peaks:           peaks,
		Flags:           rec.Flags,
	}, nil
}
