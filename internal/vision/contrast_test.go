package vision

import (
	"math"
	"testing"
)

func TestSweepScheduleBounds(t *testing.T) {
	for _, baseline := range []float64{1.0, 0.5, 2.0, -3.0, 7.5} {
		schedule := SweepSchedule(baseline)

		if len(schedule) != MaxSweepSteps {
			t.Fatalf("baseline %.1f: expected %d steps, got %d", baseline, MaxSweepSteps, len(schedule))
		}

		for i, s := range schedule {
			if s.Gain < GainMin-1e-9 || s.Gain > GainMax+1e-9 {
				t.Errorf("baseline %.1f step %d: gain %.2f outside [%.1f, %.1f]",
					baseline, i, s.Gain, GainMin, GainMax)
			}
			if s.Threshold <= 0 {
				t.Errorf("step %d: non-positive threshold %.1f", i, s.Threshold)
			}
		}
	}
}

func TestSweepScheduleOrder(t *testing.T) {
	schedule := SweepSchedule(BaselineGain)

	if schedule[0].Gain != BaselineGain || schedule[0].Threshold != ThresholdBaseline {
		t.Fatalf("first step must be the baseline, got %+v", schedule[0])
	}

	// Low-gain phase descends 0.9 → 0.1.
	for i := 1; i <= 9; i++ {
		want := float64(10-i) / 10
		if math.Abs(schedule[i].Gain-want) > 1e-9 {
			t.Errorf("step %d: expected gain %.1f, got %.2f", i, want, schedule[i].Gain)
		}
		if schedule[i].Threshold != ThresholdLowGain {
			t.Errorf("step %d: expected low-gain threshold, got %.1f", i, schedule[i].Threshold)
		}
	}

	// High-gain phase ascends 1.1 → 2.0.
	for i := 10; i < MaxSweepSteps; i++ {
		want := float64(i+1) / 10
		if math.Abs(schedule[i].Gain-want) > 1e-9 {
			t.Errorf("step %d: expected gain %.1f, got %.2f", i, want, schedule[i].Gain)
		}
		if schedule[i].Threshold != ThresholdHighGain {
			t.Errorf("step %d: expected high-gain threshold, got %.1f", i, schedule[i].Threshold)
		}
	}
}

func TestSweepScheduleClampsBaseline(t *testing.T) {
	if got := SweepSchedule(0.01)[0].Gain; got != GainMin {
		t.Errorf("expected baseline clamped to %.1f, got %.2f", GainMin, got)
	}
	if got := SweepSchedule(9.0)[0].Gain; got != GainMax {
		t.Errorf("expected baseline clamped to %.1f, got %.2f", GainMax, got)
	}
}
