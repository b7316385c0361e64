package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// blurKernel is the Gaussian kernel size used to suppress sensor
// noise before differencing.
const blurKernel = 3

// SquareDifference is the change magnitude measured on one square of
// the canonical board. Only the ordering of magnitudes matters;
// absolute values are not comparable across contrast settings.
type SquareDifference struct {
	Index     int // 1-based square index
	Magnitude float64
}

// SquareDifferences compares a candidate frame against the reference
// under the given contrast setting and returns the per-square change
// score for all 64 squares, in index order.
//
// Both frames are gain-adjusted, smoothed, differenced and binarized;
// the score of a square is the mean of its thresholded tile. Pure
// function of its inputs — no state is retained between calls.
func SquareDifferences(reference, candidate BoardFrame, setting ContrastSetting) ([]SquareDifference, error) {
	if reference.Empty() || candidate.Empty() {
		return nil, fmt.Errorf("diff requires two non-empty frames")
	}
	if err := checkCanonical(reference.Gray); err != nil {
		return nil, fmt.Errorf("reference frame: %w", err)
	}
	if err := checkCanonical(candidate.Gray); err != nil {
		return nil, fmt.Errorf("candidate frame: %w", err)
	}

	refAdj := adjustGain(reference.Gray, setting.Gain)
	defer refAdj.Close()
	candAdj := adjustGain(candidate.Gray, setting.Gain)
	defer candAdj.Close()

	refBlur := gocv.NewMat()
	defer refBlur.Close()
	candBlur := gocv.NewMat()
	defer candBlur.Close()
	gocv.GaussianBlur(refAdj, &refBlur, image.Pt(blurKernel, blurKernel), 0, 0, gocv.BorderDefault)
	gocv.GaussianBlur(candAdj, &candBlur, image.Pt(blurKernel, blurKernel), 0, 0, gocv.BorderDefault)

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(refBlur, candBlur, &diff)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(diff, &binary, float32(setting.Threshold), 255, gocv.ThresholdBinary)

	diffs := make([]SquareDifference, 64)
	for i := 1; i <= 64; i++ {
		tile := binary.Region(TileRect(i))
		mean := tile.Mean()
		tile.Close()

		diffs[i-1] = SquareDifference{Index: i, Magnitude: mean.Val1}
	}

	return diffs, nil
}

// TileRect returns the pixel region of a 1-based square index on the
// canonical image. Index 1 is the top-left tile; tiles run row-major.
func TileRect(index int) image.Rectangle {
	col := (index - 1) % 8
	row := (index - 1) / 8
	return image.Rect(col*TileSize, row*TileSize, (col+1)*TileSize, (row+1)*TileSize)
}

// SquareCenter returns the pixel center of a 1-based square index on
// the canonical image.
func SquareCenter(index int) image.Point {
	r := TileRect(index)
	return image.Pt(r.Min.X+TileSize/2, r.Min.Y+TileSize/2)
}

func checkCanonical(m gocv.Mat) error {
	if m.Rows() != CanonicalSize || m.Cols() != CanonicalSize {
		return fmt.Errorf("expected %dx%d canonical image, got %dx%d",
			CanonicalSize, CanonicalSize, m.Cols(), m.Rows())
	}
	return nil
}

// adjustGain returns a gain-scaled copy of a grayscale image, with
// saturation at the 8-bit range.
func adjustGain(m gocv.Mat, gain float64) gocv.Mat {
	adjusted := m.Clone()
	adjusted.MultiplyFloat(float32(gain))
	return adjusted
}
