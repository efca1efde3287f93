package device

import (
	"strconv"
	"strings"
)

// LeadOffMarker is printed by the sketch instead of a sample while either
// electrode is detached.
const LeadOffMarker = "!"

// MaxADC is the largest value a 10-bit analogRead returns.
const MaxADC = 1023

// LineKind tells what a serial line carried.
type LineKind int

const (
	LineIgnored LineKind = iota
	LineSample
	LineLeadOff
)

// ParseLine interprets one line of sketch output. Samples outside the ADC
// range are ignored.
func ParseLine(line string) (int, LineKind) {
	s := strings.TrimSpace(line)
	if s == LeadOffMarker {
		return 0, LineLeadOff
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 || v > MaxADC {
		return 0, LineIgnored
	}
	return v, LineSample
}
