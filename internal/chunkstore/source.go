package chunkstore

import (
	"context"
	"strings"
	"sync"

	"github.com/banshee-data/ecg.report/internal/ecg/l1chunks"
	"github.com/banshee-data/ecg.report/internal/monitoring"
)

// Getter reads one node of the store.
type Getter interface {
	Get(ctx context.Context, path string) (l1chunks.ChunkMap, error)
}

// DevicePlaceholder is substituted with the device ID in FallbackTemplate.
const DevicePlaceholder = "{device}"

// Snapshot is a fetched chunk map and where it came from.
type Snapshot struct {
	Path   string
	Chunks l1chunks.ChunkMap
}

// Source resolves the snapshot for a device: the shared primary path first,
// then the per-device fallback.
type Source struct {
	Store            Getter
	PrimaryPath      string
	FallbackTemplate string
}

// FallbackPath returns the per-device path for deviceID, or "" if there is
// no template or no device.
func (s *Source) FallbackPath(deviceID string) string {
	if s.FallbackTemplate == "" || deviceID == "" {
		return ""
	}
	return strings.ReplaceAll(s.FallbackTemplate, DevicePlaceholder, deviceID)
}

// Snapshot returns the first path holding at least one chunk key. A path
// that fails to load is logged and skipped. When nothing matches, the
// returned snapshot has no chunks and err is the last fetch error, if any.
func (s *Source) Snapshot(ctx context.Context, deviceID string) (Snapshot, error) {
	paths := []string{s.PrimaryPath}
	if fb := s.FallbackPath(deviceID); fb != "" && fb != s.PrimaryPath {
		paths = append(paths, fb)
	}

	var lastErr error
	for _, p := range paths {
		if p == "" {
			continue
		}
		m, err := s.Store.Get(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return Snapshot{}, ctx.Err()
			}
			monitoring.Logf("chunk store: %v", err)
			lastErr = err
			continue
		}
		if HasChunks(m) {
			return Snapshot{Path: p, Chunks: m}, nil
		}
	}
	return Snapshot{}, lastErr
}

// HasChunks reports whether m has any chunk_N key.
func HasChunks(m l1chunks.ChunkMap) bool {
	for k := range m {
		if l1chunks.IsChunkKey(k) {
			return true
		}
	}
	return false
}

// MemoryStore is an in-process store used by the development server and
// tests.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]l1chunks.ChunkMap
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nodes: map[string]l1chunks.ChunkMap{}}
}

// Get returns the node at path, or an empty map.
func (m *MemoryStore) Get(_ context.Context, path string) (l1chunks.ChunkMap, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n, ok := m.nodes[strings.Trim(path, "/")]; ok {
		return n, nil
	}
	return l1chunks.ChunkMap{}, nil
}

// Put replaces the node at path with a map of string chunks.
func (m *MemoryStore) Put(_ context.Context, path string, chunks map[string]string) {
	n := make(l1chunks.ChunkMap, len(chunks))
	for k, v := range chunks {
		n[k] = v
	}
	m.mu.Lock()
	m.nodes[strings.Trim(path, "/")] = n
	m.mu.Unlock()
}
