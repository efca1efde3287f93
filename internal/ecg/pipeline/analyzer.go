package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/ecg.report/internal/chunkstore"
	"github.com/banshee-data/ecg.report/internal/db"
	"github.com/banshee-data/ecg.report/internal/ecg/display"
	"github.com/banshee-data/ecg.report/internal/ecg/l1chunks"
	"github.com/banshee-data/ecg.report/internal/ecg/l3beats"
	"github.com/banshee-data/ecg.report/internal/ecg/l4classify"
	"github.com/banshee-data/ecg.report/internal/monitoring"
	"github.com/banshee-data/ecg.report/internal/timeutil"
)

// SnapshotSource yields the current chunk snapshot for a device.
type SnapshotSource interface {
	Snapshot(ctx context.Context, deviceID string) (chunkstore.Snapshot, error)
}

// Predictor classifies a model-ready waveform.
type Predictor interface {
	Predict(ctx context.Context, w l1chunks.Waveform) (l4classify.Prediction, error)
}

// Store persists results.
type Store interface {
	InsertMeasurement(ctx context.Context, m *db.Measurement) error
}

// Analyzer wires the pipeline to its collaborators. Store may be nil, in
// which case Run does not persist.
type Analyzer struct {
	Source     SnapshotSource
	Classifier Predictor
	Store      Store
	Options    Options
	Clock      timeutil.Clock
}

func (a *Analyzer) now() time.Time {
	if a.Clock == nil {
		return time.Now()
	}
	return a.Clock.Now()
}

// Fetch loads and conditions the current snapshot for deviceID.
func (a *Analyzer) Fetch(ctx context.Context, deviceID string) (*Recording, error) {
	snap, err := a.Source.Snapshot(ctx, deviceID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		monitoring.Logf("snapshot for device %q failed: %v", deviceID, err)
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	if len(snap.Chunks) == 0 {
		return nil, ErrDataUnavailable
	}
	return FromChunks(snap.Path, snap.Chunks, a.Options)
}

// Analysis is the outcome of analysing one recording.
type Analysis struct {
	Recording *Recording        `json:"recording"`
	HeartRate l3beats.HeartRate `json:"heart_rate"`
	Result    l4classify.Result `json:"result"`
	Trace     []display.Point   `json:"trace"`
	Peaks     []display.Point   `json:"peaks"`
}

// Analyze classifies rec. The classifier call runs alongside heart-rate
// estimation; reconciliation only starts once both are done, so a failed
// or cancelled call never yields a partial result.
func (a *Analyzer) Analyze(ctx context.Context, rec *Recording) (*Analysis, error) {
	if rec == nil || len(rec.Raw) == 0 {
		return nil, ErrDataUnavailable
	}

	var (
		pred  l4classify.Prediction
		hr    l3beats.HeartRate
		trace []display.Point
		peaks []display.Point
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := a.Classifier.Predict(gctx, rec.ModelInput)
		if err != nil {
			return fmt.Errorf("classification failed: %w", err)
		}
		pred = p
		return nil
	})
	g.Go(func() error {
		hr = rec.HeartRate(a.Options)
		trace, peaks = rec.Series(hr.Peaks, a.Options)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := l4classify.Reconcile(pred, hr.BPM, a.now())
	res.Flags = append(res.Flags, rec.Flags...)
	if !hr.Measured {
		res.Flags = append(res.Flags, FlagHeartRateUnmeasured)
	}
	for _, f := range res.Flags {
		monitoring.Warnw("result quality", "flag", f, "source", rec.Source)
	}

	return &Analysis{
		Recording: rec,
		HeartRate: hr,
		Result:    res,
		Trace:     trace,
		Peaks:     peaks,
	}, nil
}

// Request describes one analysis run.
type Request struct {
	DeviceID string   `json:"device_id"`
	UserID   string   `json:"user_id"`
	Symptoms []string `json:"symptoms,omitempty"`
	Notes    string   `json:"notes,omitempty"`
}

// Run fetches, analyses and persists. Nothing is stored unless analysis
// completed.
func (a *Analyzer) Run(ctx context.Context, req Request) (*db.Measurement, *Analysis, error) {
	rec, err := a.Fetch(ctx, req.DeviceID)
	if err != nil {
		return nil, nil, err
	}
	an, err := a.Analyze(ctx, rec)
	if err != nil {
		return nil, nil, err
	}

	m := NewMeasurement(req, an, a.Options.StoredMaxSamples)
	if a.Store != nil {
		if err := a.Store.InsertMeasurement(ctx, m); err != nil {
			return nil, an, err
		}
	}
	monitoring.Logf("measurement %s: %s %.2f risk=%s hr=%d",
		m.ID, m.Prediction, m.Confidence, m.RiskLevel, m.HeartRate)
	return m, an, nil
}

// NewMeasurement converts an analysis into a storable row holding the last
// maxSamples raw samples.
func NewMeasurement(req Request, an *Analysis, maxSamples int) *db.Measurement {
	r := an.Result
	return &db.Measurement{
		UserID:            req.UserID,
		DeviceID:          req.DeviceID,
		SourcePath:        an.Recording.Source,
		ECGData:           an.Recording.Raw.Tail(maxSamples),
		HeartRate:         r.HeartRateBPM,
		HeartRateMeasured: an.HeartRate.Measured,
		ClassIndex:        r.ClassIndex,
		Prediction:        r.Label.String(),
		Confidence:        r.Confidence,
		RiskLevel:         string(r.Risk),
		Recommendations:   r.Recommendations,
		Flags:             r.Flags,
		Symptoms:          req.Symptoms,
		Notes:             req.Notes,
		CreatedAt:         r.Timestamp,
	}
}
