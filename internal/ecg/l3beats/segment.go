package l3beats

import (
	"math"

	"github.com/banshee-data/ecg.report/internal/ecg/l1chunks"
)

// Beat is a window of the waveform centred on a detected peak.
type Beat struct {
	PeakIndex int               `json:"peak_index"`
	Start     int               `json:"start"`
	Samples   l1chunks.Waveform `json:"samples"`
}

// Segment cuts a window of width samples centred on each peak. A width of 0
// uses the mean RR interval. Beats whose window would cross either end of
// w are skipped. Each Beat owns its Samples.
func Segment(w l1chunks.Waveform, peaks []int, width int) []Beat {
	if width <= 0 {
		width = int(math.Round(MeanRR(peaks)))
	}
	if width <= 0 {
		return nil
	}
	beats := make([]Beat, 0, len(peaks))
	for _, p := range peaks {
		start := p - width/2
		end := start + width
		if start < 0 || end > len(w) {
			continue
		}
		beats = append(beats, Beat{
			PeakIndex: p,
			Start:     start,
			Samples:   w[start:end].Clone(),
		})
	}
	return beats
}
