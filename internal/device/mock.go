package device

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/ecg.report/internal/timeutil"
)

// MockPort is an in-memory SerialPorter. Lines passed to Feed are read back
// by Monitor; writes are captured.
type MockPort struct {
	r *io.PipeReader
	w *io.PipeWriter

	mu      sync.Mutex
	written bytes.Buffer
	closed  bool
}

// NewMockPort returns an open mock port.
func NewMockPort() *MockPort {
	r, w := io.Pipe()
	return &MockPort{r: r, w: w}
}

func (p *MockPort) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *MockPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	return p.written.Write(b)
}

// Feed makes lines available to readers. It blocks until they are read.
func (p *MockPort) Feed(lines ...string) error {
	if len(lines) == 0 {
		return nil
	}
	_, err := io.WriteString(p.w, strings.Join(lines, "\n")+"\n")
	return err
}

// EndInput makes readers see EOF once fed lines are consumed.
func (p *MockPort) EndInput() error { return p.w.Close() }

// Written returns everything written to the port.
func (p *MockPort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

func (p *MockPort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.w.Close()
	return p.r.Close()
}

// SimulateTick is how often Simulate emits a batch of lines.
const SimulateTick = 100 * time.Millisecond

// Simulate feeds samples to port as sketch output at rateHz, looping over
// samples until ctx ends or the port is closed.
func Simulate(ctx context.Context, port *MockPort, samples []float64, rateHz float64, clock timeutil.Clock) error {
	if len(samples) == 0 || rateHz <= 0 {
		return nil
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	ticker := clock.NewTicker(SimulateTick)
	defer ticker.Stop()

	perTick := max(1, int(rateHz*SimulateTick.Seconds()))
	next := 0
	batch := make([]string, perTick)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			for i := range batch {
				batch[i] = strconv.Itoa(int(samples[next]))
				next = (next + 1) % len(samples)
			}
			if err := port.Feed(batch...); err != nil {
				return err
			}
		}
	}
}
