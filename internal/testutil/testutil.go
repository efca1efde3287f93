// Package testutil provides shared test fixtures: a migrated temporary
// database, synthetic recordings seeded into an in-memory chunk store, and
// small HTTP assertions.
package testutil

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/banshee-data/ecg.report/internal/chunkstore"
	"github.com/banshee-data/ecg.report/internal/db"
	"github.com/banshee-data/ecg.report/internal/ecg/l1chunks"
	"github.com/banshee-data/ecg.report/internal/ecg/synth"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// DecodeBody unmarshals a recorded JSON response.
func DecodeBody[T any](t testing.TB, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode %q: %v", w.Body.String(), err)
	}
	return v
}

// TempDB opens a migrated database under t.TempDir and closes it on cleanup.
func TempDB(t testing.TB) *db.DB {
	t.Helper()
	d, err := db.NewDB(filepath.Join(t.TempDir(), "ecg_test.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

// Recording generates n samples of preset at 360 Hz with a fixed seed.
func Recording(t testing.TB, preset string, n int) l1chunks.Waveform {
	t.Helper()
	o, err := synth.PresetOptions(preset, 360, 7)
	if err != nil {
		t.Fatalf("bad preset: %v", err)
	}
	w, _, err := synth.Generate(n, o)
	if err != nil {
		t.Fatalf("failed to generate recording: %v", err)
	}
	return w
}

// SeedECG stores a synthetic recording at path and returns it.
func SeedECG(t testing.TB, store *chunkstore.MemoryStore, path, preset string, n int) l1chunks.Waveform {
	t.Helper()
	w := Recording(t, preset, n)
	store.Put(context.Background(), path, synth.Chunks(w))
	return w
}
