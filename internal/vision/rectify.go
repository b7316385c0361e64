package vision

import (
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"
)

// Rectify applies the calibration transform to a raw camera frame and
// returns the canonical grayscale board frame. The mapping is
// deterministic: the same raw frame and transform always produce the
// same output.
func Rectify(raw gocv.Mat, transform *CalibrationTransform, capturedAt time.Time) (BoardFrame, error) {
	if raw.Empty() {
		return BoardFrame{}, fmt.Errorf("%w: empty raw frame", ErrRectification)
	}
	if !transform.fitsWithin(raw.Cols(), raw.Rows()) {
		return BoardFrame{}, fmt.Errorf("%w: corners %v outside %dx%d frame",
			ErrRectification, transform.Corners, raw.Cols(), raw.Rows())
	}

	warped := gocv.NewMat()
	defer warped.Close()
	gocv.WarpPerspective(raw, &warped, transform.warp, image.Pt(CanonicalSize, CanonicalSize))

	gray := gocv.NewMat()
	switch warped.Channels() {
	case 4:
		gocv.CvtColor(warped, &gray, gocv.ColorBGRAToGray)
	case 3:
		gocv.CvtColor(warped, &gray, gocv.ColorBGRToGray)
	default:
		warped.CopyTo(&gray)
	}

	return BoardFrame{Gray: gray, CapturedAt: capturedAt}, nil
}
