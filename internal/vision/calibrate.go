package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// CalibrationTransform maps raw camera pixels onto the canonical
// board square. It is built once from four user-supplied corners and
// reused for every rectification until the user recalibrates.
type CalibrationTransform struct {
	// Corners in raw-frame pixels, ordered top-left, top-right,
	// bottom-left, bottom-right.
	Corners [4]image.Point

	warp gocv.Mat
}

// NewCalibration validates the four corner points and derives the
// perspective transform onto the canonical square. The points must
// arrive in order top-left, top-right, bottom-left, bottom-right and
// form a non-degenerate, non-self-intersecting quadrilateral.
func NewCalibration(points []image.Point) (*CalibrationTransform, error) {
	if len(points) != 4 {
		return nil, fmt.Errorf("%w: need 4 corner points, got %d", ErrCalibration, len(points))
	}

	var corners [4]image.Point
	copy(corners[:], points)

	if err := validateCorners(corners); err != nil {
		return nil, err
	}

	src := gocv.NewPoint2fVectorFromPoints([]gocv.Point2f{
		{X: float32(corners[0].X), Y: float32(corners[0].Y)},
		{X: float32(corners[1].X), Y: float32(corners[1].Y)},
		{X: float32(corners[2].X), Y: float32(corners[2].Y)},
		{X: float32(corners[3].X), Y: float32(corners[3].Y)},
	})
	defer src.Close()

	dst := gocv.NewPoint2fVectorFromPoints([]gocv.Point2f{
		{X: 0, Y: 0},
		{X: CanonicalSize, Y: 0},
		{X: 0, Y: CanonicalSize},
		{X: CanonicalSize, Y: CanonicalSize},
	})
	defer dst.Close()

	warp := gocv.GetPerspectiveTransform2f(src, dst)

	return &CalibrationTransform{Corners: corners, warp: warp}, nil
}

// Close releases the transform matrix.
func (t *CalibrationTransform) Close() {
	if !t.warp.Empty() {
		t.warp.Close()
	}
}

// fitsWithin reports whether every corner lies inside a raw frame of
// the given dimensions.
func (t *CalibrationTransform) fitsWithin(cols, rows int) bool {
	for _, c := range t.Corners {
		if c.X < 0 || c.Y < 0 || c.X > cols || c.Y > rows {
			return false
		}
	}
	return true
}

// validateCorners rejects corner sets that cannot describe a board:
// any three collinear points, or a labeling whose diagonals do not
// cross (a self-intersecting quadrilateral).
func validateCorners(c [4]image.Point) error {
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			if c[i] == c[j] {
				return fmt.Errorf("%w: duplicate corner %v", ErrCalibration, c[i])
			}
		}
	}

	triples := [][3]int{{0, 1, 2}, {0, 1, 3}, {0, 2, 3}, {1, 2, 3}}
	for _, tr := range triples {
		if cross(c[tr[0]], c[tr[1]], c[tr[2]]) == 0 {
			return fmt.Errorf("%w: corners %v, %v, %v are collinear",
				ErrCalibration, c[tr[0]], c[tr[1]], c[tr[2]])
		}
	}

	// With corners labeled TL, TR, BL, BR the diagonals are TL-BR
	// and TR-BL. A convex, correctly ordered quadrilateral has them
	// crossing strictly inside the shape.
	if !segmentsCross(c[0], c[3], c[1], c[2]) {
		return fmt.Errorf("%w: quadrilateral is self-intersecting", ErrCalibration)
	}

	return nil
}

// cross returns the z-component of (b-a) x (p-a).
func cross(a, b, p image.Point) int64 {
	return int64(b.X-a.X)*int64(p.Y-a.Y) - int64(b.Y-a.Y)*int64(p.X-a.X)
}

// segmentsCross reports whether segments ab and cd properly intersect.
func segmentsCross(a, b, c, d image.Point) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)

	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}
