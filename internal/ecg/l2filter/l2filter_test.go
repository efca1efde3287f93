package l2filter

import (
	"math"
	"math/rand"
	"testing"

	"github.com/banshee-data/ecg.report/internal/ecg/l1chunks"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestDeclutter_AllSaturated(t *testing.T) {
	t.Parallel()

	got, st := Declutter(l1chunks.Waveform{1023, 1023, 1023}, DefaultDeclutterOptions())
	if diff := cmp.Diff(l1chunks.Waveform{512, 512, 512}, got); diff != "" {
		t.Errorf("Declutter() mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, st.AllSaturated)
	assert.Equal(t, 3, st.Saturated)
	assert.Equal(t, 3, st.GlobalFills)
}

func TestDeclutter_LocalWindow(t *testing.T) {
	t.Parallel()

	in := l1chunks.Waveform{100, 200, 1023, 1022, 400}
	got, st := Declutter(in, DeclutterOptions{Threshold: 1020, Radius: 1, Neutral: 512})

	// index 2 sees {200, 1022→invalid}; index 3 sees {1023→invalid, 400}
	if diff := cmp.Diff(l1chunks.Waveform{100, 200, 200, 400, 400}, got); diff != "" {
		t.Errorf("Declutter() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, st.LocalFills)
	assert.Equal(t, l1chunks.Waveform{100, 200, 1023, 1022, 400}, in, "input must not be modified")
}

func TestDeclutter_GlobalFallback(t *testing.T) {
	t.Parallel()

	in := l1chunks.Waveform{100, 1023, 1023, 1023, 1023, 1023, 300}
	got, st := Declutter(in, DeclutterOptions{Threshold: 1020, Radius: 1, Neutral: 512})

	want := l1chunks.Waveform{100, 100, 200, 200, 200, 300, 300}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Declutter() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, st.GlobalFills)
	assert.False(t, st.AllSaturated)
}

func TestDeclutter_Idempotent(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	opts := DefaultDeclutterOptions()
	for trial := 0; trial < 50; trial++ {
		in := make(l1chunks.Waveform, 1+rng.Intn(400))
		for i := range in {
			if rng.Float64() < 0.2 {
				in[i] = 1020 + float64(rng.Intn(4))
			} else {
				in[i] = float64(rng.Intn(1020))
			}
		}
		once, _ := Declutter(in, opts)
		twice, st := Declutter(once, opts)
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Fatalf("trial %d: declutter not idempotent (-once +twice):\n%s", trial, diff)
		}
		assert.Zero(t, st.Saturated)
	}
}

func TestDeclutter_Empty(t *testing.T) {
	t.Parallel()

	got, st := Declutter(nil, DefaultDeclutterOptions())
	assert.Empty(t, got)
	assert.Zero(t, st)
}

func TestRemoveBaseline_RemovesOffsetAndDrift(t *testing.T) {
	t.Parallel()

	in := make(l1chunks.Waveform, 200)
	for i := range in {
		in[i] = 600
	}
	got := RemoveBaseline(in, 20)
	for i, v := range got {
		require.InDelta(t, 0, v, 1e-9, "index %d", i)
	}

	// a linear ramp has zero residual wherever the window is symmetric
	for i := range in {
		in[i] = 2 * float64(i)
	}
	got = RemoveBaseline(in, 21)
	for i := 10; i < 190; i++ {
		require.InDelta(t, 0, got[i], 1e-9, "index %d", i)
	}
}

func TestDisplayOptions_Window(t *testing.T) {
	t.Parallel()

	o := DefaultDisplayOptions()
	assert.Equal(t, 500, o.Window(100000))
	assert.Equal(t, 50, o.Window(1000))
	assert.Equal(t, 1, o.Window(10))
}

func TestToDisplay_Band(t *testing.T) {
	t.Parallel()

	in := make(l1chunks.Waveform, 2000)
	for i := range in {
		in[i] = 512 + 100*math.Sin(float64(i)/10) + float64(i)/10
	}
	got := ToDisplay(in, DefaultDisplayOptions())
	require.Len(t, got, len(in))

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range got {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	assert.InDelta(t, -2, lo, 1e-9)
	assert.InDelta(t, 2, hi, 1e-9)
}

func TestToModelInput(t *testing.T) {
	t.Parallel()

	got := ToModelInput(l1chunks.Waveform{0, 50, 100})
	if diff := cmp.Diff(l1chunks.Waveform{-1, 0, 1}, got, approx); diff != "" {
		t.Errorf("ToModelInput() mismatch (-want +got):\n%s", diff)
	}
}

func TestFlatLineGuard(t *testing.T) {
	t.Parallel()

	flat := l1chunks.Waveform{512, 512, 512, 512}
	assert.True(t, FlatLine(flat))
	assert.False(t, FlatLine(l1chunks.Waveform{1, 2}))

	model := ToModelInput(flat)
	display := ToDisplay(flat, DefaultDisplayOptions())
	for i := range flat {
		assert.False(t, math.IsNaN(model[i]))
		assert.False(t, math.IsNaN(display[i]))
	}
	assert.Equal(t, l1chunks.Waveform{-1, -1, -1, -1}, model)
}

func TestProfilesDoNotAlias(t *testing.T) {
	t.Parallel()

	in := l1chunks.Waveform{1, 5, 3}
	a := ToModelInput(in)
	b := ToDisplay(in, DefaultDisplayOptions())
	a[0], b[0] = 99, 99
	assert.Equal(t, l1chunks.Waveform{1, 5, 3}, in)
	assert.Empty(t, ToModelInput(nil))
	assert.Empty(t, ToDisplay(nil, DefaultDisplayOptions()))
}
