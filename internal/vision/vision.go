// Package vision implements the board-image half of the move-detection
// pipeline: four-point calibration, perspective rectification onto a
// fixed canonical square, reference differencing with contrast
// adjustment, and the frame sources the pipeline reads from.
package vision

import "errors"

const (
	// CanonicalSize is the side length in pixels of the rectified
	// board image all comparisons operate on.
	CanonicalSize = 512

	// TileSize is the side length of one square region on the
	// canonical image.
	TileSize = CanonicalSize / 8
)

var (
	// ErrCalibration reports a degenerate or incomplete corner set.
	ErrCalibration = errors.New("invalid calibration corners")

	// ErrRectification reports a raw frame incompatible with the
	// installed calibration transform.
	ErrRectification = errors.New("frame incompatible with calibration transform")

	// ErrCameraIO reports a capture device that is unavailable or
	// failed to produce a frame.
	ErrCameraIO = errors.New("camera read failed")
)
