package pipeline

import (
	"github.com/banshee-data/ecg.report/internal/config"
	"github.com/banshee-data/ecg.report/internal/ecg/l2filter"
	"github.com/banshee-data/ecg.report/internal/units"
)

// Options holds the numeric settings of a run.
type Options struct {
	Declutter l2filter.DeclutterOptions
	Display   l2filter.DisplayOptions
	// HeartRateSampleRateHz times peak intervals.
	HeartRateSampleRateHz float64
	// DisplaySampleRateHz labels the time axis of charts and previews.
	DisplaySampleRateHz float64
	DisplayMaxPoints    int
	// StoredMaxSamples is how many trailing raw samples are persisted.
	StoredMaxSamples int
}

// DefaultOptions matches config/ecg.defaults.json.
func DefaultOptions() Options {
	return Options{
		Declutter:             l2filter.DefaultDeclutterOptions(),
		Display:               l2filter.DefaultDisplayOptions(),
		HeartRateSampleRateHz: units.HeartRateSampleRate,
		DisplaySampleRateHz:   units.DisplaySampleRate,
		DisplayMaxPoints:      2000,
		StoredMaxSamples:      10000,
	}
}

// OptionsFromConfig reads the pipeline settings from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Declutter: l2filter.DeclutterOptions{
			Threshold: cfg.GetSaturationThreshold(),
			Radius:    cfg.GetDeclutterRadius(),
			Neutral:   cfg.GetNeutralValue(),
		},
		Display: l2filter.DisplayOptions{
			MaxWindow:     cfg.GetBaselineMaxWindow(),
			WindowDivisor: cfg.GetBaselineWindowDivisor(),
			Baseline:      cfg.GetDisplayBaseline(),
			HalfRange:     cfg.GetDisplayHalfRange(),
		},
		HeartRateSampleRateHz: cfg.GetHeartRateSampleRateHz(),
		DisplaySampleRateHz:   cfg.GetDisplaySampleRateHz(),
		DisplayMaxPoints:      cfg.GetDisplayMaxPoints(),
		StoredMaxSamples:      cfg.GetStoredMaxSamples(),
	}
}
