package main

import (
	"context"
	"strings"

	"github.com/banshee-data/ecg.report/internal/chunkstore"
	"github.com/banshee-data/ecg.report/internal/classifier"
	"github.com/banshee-data/ecg.report/internal/config"
	"github.com/banshee-data/ecg.report/internal/ecg/l1chunks"
	"github.com/banshee-data/ecg.report/internal/ecg/l4classify"
	"github.com/banshee-data/ecg.report/internal/ecg/synth"
	"github.com/banshee-data/ecg.report/internal/monitoring"
)

const devSamples = 3600

// devDevices are the device ids seeded in dev mode, one per preset.
var devDevices = []string{
	synth.PresetNormal,
	synth.PresetBradycardia,
	synth.PresetTachycardia,
	synth.PresetArrhythmia,
	synth.PresetNoisy,
}

// seedDevRecordings stores one recording per preset under the device path
// named after it. The primary path stays empty so device_id selects the
// recording.
func seedDevRecordings(mem *chunkstore.MemoryStore, cfg *config.Config, rateHz float64) {
	put := func(path, preset string, seed uint64) {
		o, err := synth.PresetOptions(preset, rateHz, seed)
		if err != nil {
			monitoring.Logf("dev seed %s: %v", preset, err)
			return
		}
		w, _, err := synth.Generate(devSamples, o)
		if err != nil {
			monitoring.Logf("dev seed %s: %v", preset, err)
			return
		}
		mem.Put(context.Background(), path, synth.Chunks(w))
	}

	for i, preset := range devDevices {
		put(devicePath(cfg, preset), preset, uint64(i+1))
	}
	monitoring.Logf("dev mode: seeded devices %s", strings.Join(devDevices, ", "))
}

func devicePath(cfg *config.Config, deviceID string) string {
	return strings.ReplaceAll(cfg.GetFallbackPathTemplate(), chunkstore.DevicePlaceholder, deviceID)
}

// devClassifier answers every request with a confident Normal so the API
// can be exercised without the model service.
type devClassifier struct{}

func (devClassifier) Predict(ctx context.Context, w l1chunks.Waveform) (l4classify.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return l4classify.Prediction{}, err
	}
	v := l4classify.Vector{0.9, 0.04, 0.03, 0.01, 0.02}
	return l4classify.Prediction{Vector: &v}, nil
}

func (devClassifier) Health(context.Context) (classifier.Health, error) {
	return classifier.Health{Status: "ok", Device: "dev"}, nil
}
