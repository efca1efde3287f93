package l4classify

import (
	"math"
	"time"
)

const (
	// DefaultConfidence is used when the classifier supplied none.
	DefaultConfidence = 0.85
	// OtherFloor is the minimum confidence of a suppressed Other result.
	OtherFloor = 0.7
	// MaxConfidence caps every reported confidence.
	MaxConfidence = 0.99

	highRisk   = 0.8
	mediumRisk = 0.6
)

// Quality flags attached to a Result.
const (
	FlagInvalidClassIndex = "invalid_class_index"
	FlagMissingClassIndex = "missing_class_index"
	FlagInvalidConfidence = "invalid_confidence"
	FlagMissingConfidence = "missing_confidence"
	FlagMalformedVector   = "malformed_confidence_vector"
	FlagOtherSuppressed   = "other_suppressed"
)

// Prediction is a classifier response as decoded at the service boundary.
// Every field is optional.
type Prediction struct {
	// Index is the classifier's final class. It is not range checked.
	Index *int
	// IndexUnparseable is set when a class index was present but was not an
	// integer.
	IndexUnparseable bool
	// Confidence is an explicit confidence for the final class.
	Confidence *float64
	// Vector holds per-class confidences.
	Vector *Vector
	// VectorMalformed is set when a confidence list was present but had the
	// wrong shape.
	VectorMalformed bool
	// PerBeat holds per-beat class indices, when the classifier sent them.
	PerBeat []int
}

// Result is the outcome of one analysis run.
type Result struct {
	ClassIndex      int       `json:"class_index"`
	Label           Class     `json:"label"`
	Confidence      float64   `json:"confidence"`
	Risk            RiskLevel `json:"risk_level"`
	HeartRateBPM    int       `json:"heart_rate_bpm"`
	Timestamp       time.Time `json:"timestamp"`
	Recommendations []string  `json:"recommendations"`
	Flags           []string  `json:"flags,omitempty"`
	// BeatAgreement is the share of per-beat classes matching Label. It is
	// informational and never affects the decision.
	BeatAgreement *float64 `json:"beat_agreement,omitempty"`
}

// HasFlag reports whether r carries flag.
func (r Result) HasFlag(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// ReconcileVector reconciles a bare confidence vector.
func ReconcileVector(v Vector, heartRateBPM int, at time.Time) Result {
	return Reconcile(Prediction{Vector: &v}, heartRateBPM, at)
}

// Reconcile picks the final label, confidence and risk.
//
// The label is the explicit index when present, otherwise the vector argmax.
// An index outside 0..4 becomes Normal. Other is never reported: it becomes
// Normal with confidence raised to at least OtherFloor. Confidence comes from
// the explicit field, then the vector entry for an explicit index, then the
// vector maximum, then DefaultConfidence, and is capped at MaxConfidence.
func Reconcile(p Prediction, heartRateBPM int, at time.Time) Result {
	var flags []string
	if p.VectorMalformed {
		flags = append(flags, FlagMalformedVector)
	}

	label := Normal
	guarded := false
	switch {
	case p.Index != nil:
		if c := Class(*p.Index); c.Valid() {
			label = c
		} else {
			guarded = true
			flags = append(flags, FlagInvalidClassIndex)
		}
	case p.IndexUnparseable:
		guarded = true
		flags = append(flags, FlagInvalidClassIndex)
	case p.Vector != nil:
		label = p.Vector.Argmax()
	default:
		guarded = true
		flags = append(flags, FlagMissingClassIndex)
	}

	conf, confFlags := resolveConfidence(p, label, guarded)
	flags = append(flags, confFlags...)

	if label == Other {
		label = Normal
		conf = math.Max(conf, OtherFloor)
		flags = append(flags, FlagOtherSuppressed)
	}
	conf = math.Min(conf, MaxConfidence)

	r := Result{
		ClassIndex:   int(label),
		Label:        label,
		Confidence:   conf,
		Risk:         RiskFor(label, conf),
		HeartRateBPM: heartRateBPM,
		Timestamp:    at,
		Flags:        flags,
	}
	r.Recommendations = Recommend(label, conf, heartRateBPM)
	r.BeatAgreement = beatAgreement(p.PerBeat, label)
	return r
}

func resolveConfidence(p Prediction, label Class, guarded bool) (float64, []string) {
	var flags []string
	if p.Confidence != nil {
		c := *p.Confidence
		switch {
		case math.IsNaN(c):
			flags = append(flags, FlagInvalidConfidence)
		case c < 0 || c > 1:
			flags = append(flags, FlagInvalidConfidence)
			return clamp01(c), flags
		default:
			return c, flags
		}
	}
	if p.Vector != nil {
		// An explicit index keeps its own entry even when it is zero.
		if p.Index != nil && !guarded {
			c := p.Vector[label]
			if !(c > 0) || c > 1 {
				flags = append(flags, FlagInvalidConfidence)
			}
			if math.IsNaN(c) {
				c = 0
			}
			return clamp01(c), flags
		}
		c := p.Vector.Max()
		if c > 0 {
			if c > 1 {
				flags = append(flags, FlagInvalidConfidence)
			}
			return clamp01(c), flags
		}
	}
	return DefaultConfidence, append(flags, FlagMissingConfidence)
}

// RiskFor derives the risk level. Normal is always Low; other labels are High
// above 0.8, Medium above 0.6 and Low otherwise.
func RiskFor(label Class, confidence float64) RiskLevel {
	switch {
	case label == Normal:
		return RiskLow
	case confidence > highRisk:
		return RiskHigh
	case confidence > mediumRisk:
		return RiskMedium
	default:
		return RiskLow
	}
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

func beatAgreement(perBeat []int, label Class) *float64 {
	if len(perBeat) == 0 {
		return nil
	}
	match := 0
	for _, b := range perBeat {
		c := Class(b)
		if c == Other {
			c = Normal
		}
		if c == label {
			match++
		}
	}
	a := float64(match) / float64(len(perBeat))
	return &a
}
