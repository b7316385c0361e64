package vision

// Contrast gain bounds and step for the adaptive sweep. The sweep is a
// fixed, finite sequence, so termination is structural rather than
// time-based.
const (
	GainMin  = 0.1
	GainMax  = 2.0
	GainStep = 0.1

	// BaselineGain is the starting gain for a fresh session.
	BaselineGain = 1.0

	// Binarization thresholds per sweep phase. The first attempt uses
	// the lenient threshold; the low-gain phase and high-gain phase
	// use progressively stricter ones to compensate for the scaling.
	ThresholdBaseline = 20
	ThresholdLowGain  = 40
	ThresholdHighGain = 70

	// MaxSweepSteps bounds the number of diff/resolve attempts in one
	// detection pass: the baseline attempt, nine low-gain steps and
	// ten high-gain steps.
	MaxSweepSteps = 20
)

// ContrastSetting is one step of the sweep: the gain applied to both
// frames and the binarization threshold used with it.
type ContrastSetting struct {
	Gain      float64
	Threshold float64
}

// SweepSchedule returns the full, precomputed contrast schedule for a
// detection pass: first the session's current baseline gain, then
// gains descending 0.9→0.1, then ascending 1.1→2.0. Every gain lies
// within [GainMin, GainMax] and the schedule length never exceeds
// MaxSweepSteps.
func SweepSchedule(baseline float64) []ContrastSetting {
	schedule := make([]ContrastSetting, 0, MaxSweepSteps)

	schedule = append(schedule, ContrastSetting{Gain: clampGain(baseline), Threshold: ThresholdBaseline})

	for i := 9; i >= 1; i-- {
		schedule = append(schedule, ContrastSetting{Gain: float64(i) / 10, Threshold: ThresholdLowGain})
	}
	for i := 11; i <= 20; i++ {
		schedule = append(schedule, ContrastSetting{Gain: float64(i) / 10, Threshold: ThresholdHighGain})
	}

	return schedule
}

func clampGain(g float64) float64 {
	if g < GainMin {
		return GainMin
	}
	if g > GainMax {
		return GainMax
	}
	return g
}
