package crf

import (
	"math"
	"testing"
)

func TestConvergenceTrackerDisabled(t *testing.T) {
	tracker := NewConvergenceTracker(DisabledConvergenceConfig())
	for i := 0; i < 10; i++ {
		if tracker.Update(0) {
			t.Fatalf("Disabled tracker stopped at update %d", i)
		}
	}
	if len(tracker.History()) != 10 {
		t.Errorf("History length mismatch: got %d, want 10", len(tracker.History()))
	}
}

func TestConvergenceTrackerPatience(t *testing.T) {
	tracker := NewConvergenceTracker(ConvergenceConfig{Enabled: true, Patience: 2, Threshold: 0.1})

	steps := []struct {
		delta float64
		stop  bool
	}{
		{delta: 1.0, stop: false},
		{delta: 0.05, stop: false},
		{delta: 0.5, stop: false}, // resets the settled count
		{delta: 0.01, stop: false},
		{delta: 0.02, stop: true},
	}

	for i, s := range steps {
		if got := tracker.Update(s.delta); got != s.stop {
			t.Errorf("Step %d stop mismatch: got %v, want %v", i, got, s.stop)
		}
	}

	if tracker.MinDelta() != 0.01 {
		t.Errorf("MinDelta mismatch: got %f, want 0.01", tracker.MinDelta())
	}
}

func TestConvergenceTrackerMinDeltaStartsInfinite(t *testing.T) {
	tracker := NewConvergenceTracker(DisabledConvergenceConfig())
	if !math.IsInf(tracker.MinDelta(), 1) {
		t.Errorf("MinDelta before any update: got %f, want +Inf", tracker.MinDelta())
	}
}

func TestConvergenceTrackerHistoryIsCopy(t *testing.T) {
	tracker := NewConvergenceTracker(DefaultConvergenceConfig())
	tracker.Update(0.5)
	h := tracker.History()
	h[0] = 99
	if tracker.History()[0] != 0.5 {
		t.Error("History exposed internal slice")
	}
}
