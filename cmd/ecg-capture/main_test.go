package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ecg.report/internal/chunkstore"
	"github.com/banshee-data/ecg.report/internal/config"
	"github.com/banshee-data/ecg.report/internal/device"
	"github.com/banshee-data/ecg.report/internal/monitoring"
)

func init() {
	monitoring.SetLogger(nil)
}

func TestUploadPath(t *testing.T) {
	cfg := config.MustLoadDefaultConfig()
	assert.Equal(t, "ECG/raw", uploadPath(cfg, ""))
	assert.Equal(t, "ECG/devices/ward-3/raw", uploadPath(cfg, "ward-3"))
}

func TestSimulatedSamples(t *testing.T) {
	w, err := simulatedSamples("tachycardia", 360, 720)
	require.NoError(t, err)
	assert.Len(t, w, 720)

	_, err = simulatedSamples("asystole", 360, 720)
	assert.Error(t, err)
}

func TestCapturePublishesFinalSnapshot(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []map[string]string
		paths  []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "unexpected", http.StatusMethodNotAllowed)
			return
		}
		b, _ := io.ReadAll(r.Body)
		var m map[string]string
		if err := json.Unmarshal(b, &m); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		bodies = append(bodies, m)
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	defer func(d time.Duration) { *interval = d }(*interval)
	*interval = time.Hour

	store := chunkstore.NewClient(srv.URL, "", 5*time.Second, nil)
	rec := device.NewRecorder(store, "ECG/devices/d7/raw", 2, 0)
	port := device.NewMockPort()

	var wg sync.WaitGroup
	done := make(chan error, 1)
	go func() { done <- capture(context.Background(), device.New(port), rec, &wg) }()

	require.NoError(t, port.Feed("500", "!", "505", "510"))
	require.NoError(t, port.EndInput())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("capture did not finish after the port closed")
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 1)
	assert.Equal(t, "/ECG/devices/d7/raw.json", paths[0])
	assert.Equal(t, map[string]string{"chunk_1": "500,505", "chunk_2": "510"}, bodies[0])
}
