package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/ecg.report/internal/chunkstore"
	"github.com/banshee-data/ecg.report/internal/db"
	"github.com/banshee-data/ecg.report/internal/ecg/l1chunks"
	"github.com/banshee-data/ecg.report/internal/ecg/synth"
	"github.com/banshee-data/ecg.report/internal/httputil"
)

func TestAssertStatusCode(t *testing.T) {
	AssertStatusCode(t, http.StatusOK, http.StatusOK)
}

func TestDecodeBody(t *testing.T) {
	w := httptest.NewRecorder()
	httputil.WriteJSONOK(w, map[string]int{"bpm": 72})
	got := DecodeBody[map[string]int](t, w)
	if got["bpm"] != 72 {
		t.Errorf("bpm = %d", got["bpm"])
	}
}

func TestTempDB(t *testing.T) {
	d := TempDB(t)
	_, total, err := d.ListMeasurements(context.Background(), db.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Errorf("fresh database has %d rows", total)
	}
}

func TestSeedECG(t *testing.T) {
	store := chunkstore.NewMemoryStore()
	w := SeedECG(t, store, "ECG/raw", synth.PresetNormal, 1000)
	if len(w) != 1000 {
		t.Fatalf("len = %d", len(w))
	}

	m, err := store.Get(context.Background(), "ECG/raw")
	if err != nil {
		t.Fatal(err)
	}
	got, _ := l1chunks.Assemble(m)
	if len(got) != len(w) {
		t.Fatalf("stored %d samples, want %d", len(got), len(w))
	}
	for i := range w {
		if got[i] != w[i] {
			t.Fatalf("sample %d = %v, want %v", i, got[i], w[i])
		}
	}

	again := Recording(t, synth.PresetNormal, 1000)
	if again[500] != w[500] {
		t.Error("recordings are not deterministic")
	}
}
