package l4classify

import (
	"errors"
	"fmt"
	"math"
)

// Class is a heartbeat class index as used by the classifier.
type Class int

const (
	Normal Class = iota
	Supraventricular
	Ventricular
	Paced
	Other

	// NumClasses is the length of a confidence vector.
	NumClasses = 5
)

var classLabels = [NumClasses]string{"Normal", "Supraventricular", "Ventricular", "Paced", "Other"}

// Valid reports whether c is a known class.
func (c Class) Valid() bool { return c >= Normal && c <= Other }

func (c Class) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Class(%d)", int(c))
	}
	return classLabels[c]
}

// MarshalText encodes the class as its label.
func (c Class) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText accepts a class label.
func (c *Class) UnmarshalText(b []byte) error {
	for i, l := range classLabels {
		if l == string(b) {
			*c = Class(i)
			return nil
		}
	}
	return fmt.Errorf("unknown class %q", b)
}

// RiskLevel is the coarse urgency derived from label and confidence.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Vector holds one confidence per class, in class order.
type Vector [NumClasses]float64

// ErrMalformedVector is returned by ParseVector for inputs of the wrong length.
var ErrMalformedVector = errors.New("confidence vector must have exactly 5 entries")

// ParseVector checks the length of a decoded confidence list.
func ParseVector(vals []float64) (Vector, error) {
	var v Vector
	if len(vals) != NumClasses {
		return v, fmt.Errorf("%w: got %d", ErrMalformedVector, len(vals))
	}
	copy(v[:], vals)
	return v, nil
}

// Argmax returns the class with the highest confidence. Ties go to the
// lower index. NaN entries are ignored.
func (v Vector) Argmax() Class {
	best := Normal
	bestV := math.Inf(-1)
	for i, x := range v {
		if x > bestV {
			best, bestV = Class(i), x
		}
	}
	return best
}

// Max returns the highest finite confidence, or 0.
func (v Vector) Max() float64 {
	m := 0.0
	for _, x := range v {
		if x > m && !math.IsInf(x, 0) {
			m = x
		}
	}
	return m
}
