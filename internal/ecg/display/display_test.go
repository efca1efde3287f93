package display

import (
	"bytes"
	"strings"
	"testing"

	"github.com/banshee-data/ecg.report/internal/ecg/l1chunks"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(n int) l1chunks.Waveform {
	w := make(l1chunks.Waveform, n)
	for i := range w {
		w[i] = float64(i)
	}
	return w
}

func TestBinAverage_Length(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct{ n, m int }{{2000, 2000}, {2001, 2000}, {10000, 2000}, {10007, 2000}, {7, 3}, {100, 1}} {
		got := BinAverage(ramp(tc.n), tc.m)
		assert.Len(t, got, tc.m, "n=%d m=%d", tc.n, tc.m)
	}
}

func TestBinAverage_ShortInputCopied(t *testing.T) {
	t.Parallel()

	in := l1chunks.Waveform{3, 1, 2}
	got := BinAverage(in, 10)
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	got[0] = 99
	assert.Equal(t, 3.0, in[0])

	assert.Equal(t, in, BinAverage(in, 0))
}

func TestBinAverage_CoversWholeInput(t *testing.T) {
	t.Parallel()

	// 7 samples into 3 bins: [0,2) [2,4) [4,7)
	got := BinAverage(ramp(7), 3)
	if diff := cmp.Diff(l1chunks.Waveform{0.5, 2.5, 5}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	n, m := 10007, 2000
	prevEnd := 0
	for i := 0; i < m; i++ {
		s, e := binBounds(i, n, m)
		require.Equal(t, prevEnd, s, "bin %d must start where the previous ended", i)
		require.Greater(t, e, s)
		prevEnd = e
	}
	assert.Equal(t, n, prevEnd)
}

func TestSeries_TimeAxisSpansRecording(t *testing.T) {
	t.Parallel()

	pts := Series(ramp(7200), 2000, 360)
	require.Len(t, pts, 2000)
	assert.Equal(t, 0.0, pts[0].T)
	// last bin starts at floor(1999*7200/2000) = 7196
	assert.InDelta(t, 7196.0/360, pts[len(pts)-1].T, 1e-9)

	short := Series(ramp(4), 2000, 250)
	assert.Equal(t, []Point{{0, 0}, {0.004, 1}, {0.008, 2}, {0.012, 3}}, short)
}

func TestPeakPoints(t *testing.T) {
	t.Parallel()

	pts := PeakPoints(ramp(720), []int{360, -1, 719, 900}, 360)
	assert.Equal(t, []Point{{1, 360}, {719.0 / 360, 719}}, pts)
}

func TestRenderHTML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := RenderHTML(&buf, Chart{
		Title:  "Measurement",
		Points: Series(ramp(3000), 500, 250),
		Peaks:  []Point{{1, 250}},
		YLabel: "mV",
	})
	require.NoError(t, err)
	out := buf.String()
	assert.True(t, strings.Contains(out, "<html"), "expected an html document")
	assert.Contains(t, out, "R peaks")
}

func TestWritePNG(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := WritePNG(&buf, Chart{
		Title:  "Measurement",
		Points: Series(ramp(1000), 200, 250),
		Peaks:  []Point{{1, 250}, {2, 500}},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}
