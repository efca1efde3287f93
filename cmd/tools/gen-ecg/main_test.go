package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ecg.report/internal/ecg/l1chunks"
)

func TestGenerate(t *testing.T) {
	chunks, beats, err := generate("bradycardia", 3600, 360, 3, 250)
	require.NoError(t, err)
	assert.Len(t, chunks, 15)
	// 48 bpm over ten seconds
	assert.InDelta(t, 8, beats, 1)

	_, _, err = generate("bradycardia", 3600, 360, 3, 0)
	assert.Error(t, err)
	_, _, err = generate("flutter", 3600, 360, 3, 100)
	assert.Error(t, err)
}

func TestWriteFileRoundTrip(t *testing.T) {
	chunks, _, err := generate("normal", 1000, 360, 1, 100)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "ecg.json")
	require.NoError(t, writeFile(path, chunks))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var m l1chunks.ChunkMap
	require.NoError(t, json.Unmarshal(b, &m))
	w, rep := l1chunks.Assemble(m)
	assert.Len(t, w, 1000)
	assert.Zero(t, rep.MalformedTokens)
}
