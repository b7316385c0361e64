package detect

import (
	"image"
	"time"
)

// Event is a notification from the detection session to the
// presentation layer.
type Event interface {
	isEvent()
}

// CalibrationComplete reports a newly installed calibration transform.
type CalibrationComplete struct {
	Corners [4]image.Point
}

// MoveDetected reports a validated move.
type MoveDetected struct {
	UCI      string
	Origin   int // 1-based square index
	Dest     int
	Gain     float64
	Attempts int
}

// DetectionFailed reports a terminal failure of one detection pass.
type DetectionFailed struct {
	Reason string
	Err    error
}

// ReferenceUpdated reports that the reference board frame was
// replaced.
type ReferenceUpdated struct {
	At time.Time
}

func (CalibrationComplete) isEvent() {}
func (MoveDetected) isEvent()        {}
func (DetectionFailed) isEvent()     {}
func (ReferenceUpdated) isEvent()    {}
