package device

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"go.bug.st/serial"
	"tailscale.com/tsweb"
)

// SubscriberBuffer is the number of lines a subscriber may lag behind before
// lines are dropped for it.
const SubscriberBuffer = 1024

// Device fans out lines read from a serial port to any number of
// subscribers.
type Device[T SerialPorter] struct {
	port        T
	subscribers map[string]chan string
	mu          sync.Mutex
	closing     bool
}

// New wraps an already open port.
func New[T SerialPorter](port T) *Device[T] {
	return &Device[T]{
		port:        port,
		subscribers: make(map[string]chan string),
	}
}

// Open opens the serial port at path.
func Open(path string, opts PortOptions) (*Device[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return New[serial.Port](port), nil
}

// Subscribe returns a channel receiving every line read after the call. The
// id is passed to Unsubscribe.
func (d *Device[T]) Subscribe() (string, <-chan string) {
	id := uuid.NewString()
	ch := make(chan string, SubscriberBuffer)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		close(ch)
		return id, ch
	}
	d.subscribers[id] = ch
	return id, ch
}

// Unsubscribe closes and removes a subscription.
func (d *Device[T]) Unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.subscribers[id]; ok {
		close(ch)
		delete(d.subscribers, id)
	}
}

// Monitor reads lines until the port reaches EOF, fails, or ctx ends.
func (d *Device[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(d.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// the blocking Scan runs on its own goroutine so cancellation is never
	// stuck behind a read
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			scanErrChan <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					return err
				default:
					return nil
				}
			}
			d.publish(line)
		}
	}
}

func (d *Device[T]) publish(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		return
	}
	for _, ch := range d.subscribers {
		select {
		case ch <- line:
		default:
			// slow subscriber, drop rather than stall the port
		}
	}
}

// Close ends every subscription and closes the port.
func (d *Device[T]) Close() error {
	d.mu.Lock()
	d.closing = true
	for id, ch := range d.subscribers {
		close(ch)
		delete(d.subscribers, id)
	}
	d.mu.Unlock()
	return d.port.Close()
}

// AttachAdminRoutes adds a live tail of the raw serial output at
// /debug/ecg-tail as server-sent events.
func (d *Device[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleSilentFunc("ecg-tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		id, c := d.Subscribe()
		defer d.Unsubscribe(id)

		fmt.Fprint(w, ": ping\n\n")
		flusher.Flush()

		for {
			select {
			case line, ok := <-c:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", line); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
