package l4classify

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func TestReconcile_OtherSuppressed(t *testing.T) {
	t.Parallel()

	r := ReconcileVector(Vector{0.1, 0.05, 0.05, 0.1, 0.7}, 75, at)
	assert.Equal(t, Normal, r.Label)
	assert.Equal(t, 0, r.ClassIndex)
	assert.GreaterOrEqual(t, r.Confidence, 0.7)
	assert.Equal(t, RiskLow, r.Risk)
	assert.True(t, r.HasFlag(FlagOtherSuppressed))
	assert.Equal(t, at, r.Timestamp)
	assert.Equal(t, 75, r.HeartRateBPM)
}

func TestReconcile_OtherNeverReported(t *testing.T) {
	t.Parallel()

	for _, c := range []float64{0.21, 0.3, 0.5, 0.69, 0.9, 1.0} {
		rest := (1 - c) / 4
		r := ReconcileVector(Vector{rest, rest, rest, rest, c}, 80, at)
		assert.NotEqual(t, Other, r.Label, "conf %v", c)
		assert.GreaterOrEqual(t, r.Confidence, OtherFloor, "conf %v", c)
		assert.LessOrEqual(t, r.Confidence, MaxConfidence, "conf %v", c)
	}

	// explicit index 4 with a low explicit confidence
	r := Reconcile(Prediction{Index: ptr(4), Confidence: ptr(0.2)}, 80, at)
	assert.Equal(t, Normal, r.Label)
	assert.Equal(t, OtherFloor, r.Confidence)
}

func TestReconcile_VentricularHighRisk(t *testing.T) {
	t.Parallel()

	r := ReconcileVector(Vector{0.05, 0.1, 0.82, 0.02, 0.01}, 90, at)
	assert.Equal(t, Ventricular, r.Label)
	assert.InDelta(t, 0.82, r.Confidence, 1e-12)
	assert.Equal(t, RiskHigh, r.Risk)
	assert.Empty(t, r.Flags)
}

func TestRiskMonotonic(t *testing.T) {
	t.Parallel()

	for _, label := range []Class{Supraventricular, Ventricular, Paced} {
		var got []RiskLevel
		for _, c := range []float64{0.5, 0.7, 0.9} {
			got = append(got, Reconcile(Prediction{Index: ptr(int(label)), Confidence: ptr(c)}, 70, at).Risk)
		}
		assert.Equal(t, []RiskLevel{RiskLow, RiskMedium, RiskHigh}, got, label.String())
	}
}

func TestRiskFor_Boundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label Class
		conf  float64
		want  RiskLevel
	}{
		{Normal, 0.99, RiskLow},
		{Ventricular, 0.8, RiskMedium},
		{Ventricular, 0.8000001, RiskHigh},
		{Ventricular, 0.6, RiskLow},
		{Ventricular, 0.6000001, RiskMedium},
		{Paced, 0, RiskLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RiskFor(tt.label, tt.conf), "%v@%v", tt.label, tt.conf)
	}
}

func TestReconcile_InvalidIndexGuard(t *testing.T) {
	t.Parallel()

	v := Vector{0.1, 0.1, 0.6, 0.1, 0.1}
	for _, idx := range []int{-1, 5, 99} {
		r := Reconcile(Prediction{Index: ptr(idx), Vector: &v}, 70, at)
		assert.Equal(t, Normal, r.Label, "index %d", idx)
		assert.True(t, r.HasFlag(FlagInvalidClassIndex))
		// guarded label falls through to the vector maximum
		assert.InDelta(t, 0.6, r.Confidence, 1e-12)
		assert.Equal(t, RiskLow, r.Risk)
	}

	r := Reconcile(Prediction{IndexUnparseable: true}, 70, at)
	assert.Equal(t, Normal, r.Label)
	assert.True(t, r.HasFlag(FlagInvalidClassIndex))
}

func TestReconcile_ConfidenceResolutionOrder(t *testing.T) {
	t.Parallel()

	v := Vector{0.1, 0.65, 0.15, 0.05, 0.05}
	tests := []struct {
		name string
		p    Prediction
		want float64
		flag string
	}{
		{"explicit wins", Prediction{Index: ptr(1), Confidence: ptr(0.9), Vector: &v}, 0.9, ""},
		{"vector entry", Prediction{Index: ptr(2), Vector: &v}, 0.15, ""},
		{"zero entry for explicit index kept", Prediction{Index: ptr(1), Vector: &Vector{0, 0, 0.4, 0, 0}}, 0, FlagInvalidConfidence},
		{"NaN entry for explicit index is zero", Prediction{Index: ptr(3), Vector: &Vector{0.5, 0, 0, math.NaN(), 0}}, 0, FlagInvalidConfidence},
		{"argmax label uses vector max", Prediction{Vector: &Vector{0.05, 0.1, 0.8, 0.03, 0.02}}, 0.8, ""},
		{"fallback without vector", Prediction{Index: ptr(1)}, DefaultConfidence, FlagMissingConfidence},
		{"fallback with zero vector", Prediction{Vector: &Vector{}}, DefaultConfidence, FlagMissingConfidence},
		{"explicit above one clamped and capped", Prediction{Index: ptr(2), Confidence: ptr(1.7)}, MaxConfidence, FlagInvalidConfidence},
		{"explicit below zero clamped", Prediction{Index: ptr(2), Confidence: ptr(-0.5)}, 0, FlagInvalidConfidence},
		{"NaN explicit falls through", Prediction{Index: ptr(1), Confidence: ptr(math.NaN()), Vector: &v}, 0.65, FlagInvalidConfidence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Reconcile(tt.p, 70, at)
			assert.InDelta(t, tt.want, r.Confidence, 1e-12)
			if tt.flag != "" {
				assert.True(t, r.HasFlag(tt.flag), "flags %v", r.Flags)
			}
		})
	}
}

func TestReconcile_ZeroEntryDoesNotBorrowConfidence(t *testing.T) {
	t.Parallel()

	r := Reconcile(Prediction{Index: ptr(2), Vector: &Vector{0.9, 0.05, 0, 0.03, 0.02}}, 75, at)
	assert.Equal(t, Ventricular, r.Label)
	assert.Zero(t, r.Confidence)
	assert.Equal(t, RiskLow, r.Risk)
	assert.True(t, r.HasFlag(FlagInvalidConfidence), "flags %v", r.Flags)
}

func TestReconcile_ConfidenceCapped(t *testing.T) {
	t.Parallel()

	r := ReconcileVector(Vector{1, 0, 0, 0, 0}, 70, at)
	assert.Equal(t, MaxConfidence, r.Confidence)

	r = Reconcile(Prediction{Index: ptr(2), Confidence: ptr(1.0)}, 70, at)
	assert.Equal(t, MaxConfidence, r.Confidence)
	assert.Equal(t, RiskHigh, r.Risk)
}

func TestReconcile_MissingEverything(t *testing.T) {
	t.Parallel()

	r := Reconcile(Prediction{VectorMalformed: true}, 70, at)
	assert.Equal(t, Normal, r.Label)
	assert.Equal(t, DefaultConfidence, r.Confidence)
	assert.ElementsMatch(t, []string{FlagMalformedVector, FlagMissingClassIndex, FlagMissingConfidence}, r.Flags)
}

func TestReconcile_BeatAgreement(t *testing.T) {
	t.Parallel()

	r := Reconcile(Prediction{Index: ptr(2), Confidence: ptr(0.9), PerBeat: []int{2, 2, 0, 2}}, 70, at)
	require.NotNil(t, r.BeatAgreement)
	assert.InDelta(t, 0.75, *r.BeatAgreement, 1e-12)
	assert.Equal(t, RiskHigh, r.Risk)

	r = Reconcile(Prediction{Index: ptr(0)}, 70, at)
	assert.Nil(t, r.BeatAgreement)
}

func TestParseVector(t *testing.T) {
	t.Parallel()

	v, err := ParseVector([]float64{0.1, 0.2, 0.3, 0.2, 0.2})
	require.NoError(t, err)
	assert.Equal(t, Ventricular, v.Argmax())

	_, err = ParseVector([]float64{0.5, 0.5})
	assert.ErrorIs(t, err, ErrMalformedVector)
	_, err = ParseVector(make([]float64, 6))
	assert.ErrorIs(t, err, ErrMalformedVector)
}

func TestVectorArgmaxTies(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Supraventricular, Vector{0.1, 0.4, 0.4, 0.1, 0}.Argmax())
	assert.Equal(t, Paced, Vector{math.NaN(), 0, 0, 0.2, 0.1}.Argmax())
}

func TestRecommend(t *testing.T) {
	t.Parallel()

	recs := Recommend(Normal, 0.9, 72)
	assert.Len(t, recs, 2)
	assert.Contains(t, recs[0], "normal range")

	recs = Recommend(Ventricular, 0.5, 110)
	require.Len(t, recs, 3)
	assert.Contains(t, recs[0], "Fast heart rate")
	assert.Contains(t, recs[1], "immediately")
	assert.Contains(t, recs[2], "Low confidence")

	recs = Recommend(Normal, 0.8, 50)
	assert.Len(t, recs, 1)
	assert.Contains(t, recs[0], "Slow heart rate")
}

func TestResultJSONUsesLabel(t *testing.T) {
	t.Parallel()

	r := ReconcileVector(Vector{0, 0, 0, 0.9, 0.1}, 70, at)
	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"label":"Paced"`)
	assert.Contains(t, string(b), `"risk_level":"High"`)
}

func TestClassUnmarshalText(t *testing.T) {
	t.Parallel()

	var r Result
	require.NoError(t, json.Unmarshal([]byte(`{"label":"Supraventricular"}`), &r))
	assert.Equal(t, Supraventricular, r.Label)

	assert.Error(t, json.Unmarshal([]byte(`{"label":"Sinus"}`), &r))
}
