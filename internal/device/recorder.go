package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/ecg.report/internal/ecg/l1chunks"
	"github.com/banshee-data/ecg.report/internal/monitoring"
	"github.com/banshee-data/ecg.report/internal/timeutil"
)

const (
	// DefaultWindow is the number of most recent samples each snapshot holds.
	DefaultWindow = 3600
	// DefaultChunkSize matches the chunking the uploader firmware uses.
	DefaultChunkSize = 100
)

// Putter replaces the value stored at a chunk store path.
type Putter interface {
	Put(ctx context.Context, path string, v any) error
}

// Recorder keeps a rolling window of samples and publishes it as a chunk
// snapshot.
type Recorder struct {
	store     Putter
	path      string
	chunkSize int
	window    int

	mu      sync.Mutex
	samples []float64
	leadOff int
	dirty   bool
}

// NewRecorder returns a recorder writing to path. Non-positive sizes select
// the defaults.
func NewRecorder(store Putter, path string, chunkSize, window int) *Recorder {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Recorder{store: store, path: path, chunkSize: chunkSize, window: window}
}

// HandleLine records one line of serial output.
func (r *Recorder) HandleLine(line string) LineKind {
	v, kind := ParseLine(line)
	r.mu.Lock()
	defer r.mu.Unlock()
	switch kind {
	case LineSample:
		if len(r.samples) == r.window {
			copy(r.samples, r.samples[1:])
			r.samples[len(r.samples)-1] = float64(v)
		} else {
			r.samples = append(r.samples, float64(v))
		}
		r.dirty = true
	case LineLeadOff:
		r.leadOff++
	}
	return kind
}

// Samples returns a copy of the current window and the number of lead-off
// markers seen so far.
func (r *Recorder) Samples() ([]float64, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.samples...), r.leadOff
}

// Flush publishes the window if it changed since the last flush.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	if !r.dirty {
		r.mu.Unlock()
		return nil
	}
	chunks, err := l1chunks.Split(r.samples, r.chunkSize, 1)
	r.dirty = false
	n := len(r.samples)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	if err := r.store.Put(ctx, r.path, chunks); err != nil {
		r.mu.Lock()
		r.dirty = true
		r.mu.Unlock()
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	monitoring.Logf("published %d samples in %d chunks to %s", n, len(chunks), r.path)
	return nil
}

// Run records lines and flushes every interval until lines is closed or
// ctx ends. Closing lines triggers a final flush.
func (r *Recorder) Run(ctx context.Context, lines <-chan string, every time.Duration, clock timeutil.Clock) error {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	ticker := clock.NewTicker(every)
	defer ticker.Stop()

	off := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return r.Flush(ctx)
			}
			switch r.HandleLine(line) {
			case LineLeadOff:
				if !off {
					monitoring.Warnw("electrode lead off", "path", r.path)
				}
				off = true
			case LineSample:
				if off {
					monitoring.Logf("electrodes reattached")
				}
				off = false
			}
		case <-ticker.C():
			if err := r.Flush(ctx); err != nil {
				monitoring.Logf("flush failed: %v", err)
			}
		}
	}
}
