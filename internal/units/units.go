// Package units provides shared constants and conversions for sampled ECG data
package units

import (
	"fmt"
	"math"
	"time"
)

// Sample rates in Hz
const (
	// HeartRateSampleRate is the rate assumed when timing beat intervals.
	HeartRateSampleRate = 360
	// DisplaySampleRate is the rate used by the display time axis and the
	// classifier's beat windows.
	DisplaySampleRate = 250
)

// ADC range of the front-end board (10-bit)
const (
	ADCMax      = 1023
	ADCMidpoint = 512
)

// ValidateRate checks that a sample rate is usable.
func ValidateRate(hz float64) error {
	if hz <= 0 || math.IsNaN(hz) || math.IsInf(hz, 0) {
		return fmt.Errorf("invalid sample rate %v: must be a positive number of Hz", hz)
	}
	return nil
}

// SecondsAt returns the time offset of sample index i.
func SecondsAt(i int, hz float64) float64 {
	return float64(i) / hz
}

// Duration returns the time spanned by n samples.
func Duration(n int, hz float64) time.Duration {
	return time.Duration(float64(n) / hz * float64(time.Second))
}

// SamplesIn returns the number of whole samples that fit in seconds s.
func SamplesIn(s float64, hz float64) int {
	return int(math.Floor(s * hz))
}
