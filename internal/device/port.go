// Package device reads AD8232 heart monitor output from a serial port and
// publishes rolling snapshots to the chunk store.
package device

import "io"

// SerialPorter is the part of a serial port the reader needs. Tests provide
// in-memory implementations.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}
