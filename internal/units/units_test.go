package units

import (
	"math"
	"testing"
	"time"
)

func TestSecondsAt(t *testing.T) {
	tests := []struct {
		name string
		i    int
		hz   float64
		want float64
	}{
		{"origin", 0, 360, 0},
		{"one second at 360", 360, HeartRateSampleRate, 1},
		{"half second at 250", 125, DisplaySampleRate, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SecondsAt(tt.i, tt.hz); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("SecondsAt(%d, %v) = %v, want %v", tt.i, tt.hz, got, tt.want)
			}
		})
	}
}

func TestSamplesIn(t *testing.T) {
	if got := SamplesIn(0.4, 360); got != 144 {
		t.Errorf("SamplesIn(0.4, 360) = %d, want 144", got)
	}
	if got := SamplesIn(0.4, 250); got != 100 {
		t.Errorf("SamplesIn(0.4, 250) = %d, want 100", got)
	}
}

func TestDuration(t *testing.T) {
	if got := Duration(720, 360); got != 2*time.Second {
		t.Errorf("Duration(720, 360) = %v", got)
	}
}

func TestValidateRate(t *testing.T) {
	for _, hz := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if err := ValidateRate(hz); err == nil {
			t.Errorf("ValidateRate(%v) should fail", hz)
		}
	}
	if err := ValidateRate(360); err != nil {
		t.Errorf("ValidateRate(360) = %v", err)
	}
}
