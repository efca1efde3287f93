package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock_After(t *testing.T) {
	clock := RealClock{}
	select {
	case <-clock.After(5 * time.Millisecond):
	case <-time.After(time.Second):
		t.Fatal("After did not fire")
	}
}

func TestRealClock_NewTicker(t *testing.T) {
	clock := RealClock{}
	ticker := clock.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Error("ticker did not fire")
	}
}

func TestMockClock_AfterRecordsAndAdvances(t *testing.T) {
	start := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	clock := NewMockClock(start)

	got := <-clock.After(time.Second)
	<-clock.After(2 * time.Second)

	assert.Equal(t, start.Add(time.Second), got)
	assert.Equal(t, start.Add(3*time.Second), clock.Now())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.Waits())
}

func TestMockClock_Ticker(t *testing.T) {
	clock := NewMockClock(time.Time{})
	ticker := clock.NewTicker(time.Minute)

	clock.Advance(30 * time.Second)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired early")
	default:
	}

	clock.Advance(30 * time.Second)
	select {
	case <-ticker.C():
	default:
		t.Fatal("ticker did not fire")
	}

	ticker.Stop()
	clock.Advance(time.Minute)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestMockClock_Set(t *testing.T) {
	clock := NewMockClock(time.Time{})
	when := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	clock.Set(when)
	assert.True(t, clock.Now().Equal(when))
}
