package vision

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// DrawGrid draws the 8x8 board grid onto a canonical image, in place.
func DrawGrid(img *gocv.Mat, c color.RGBA, thickness int) {
	for i := 0; i <= CanonicalSize; i += TileSize {
		gocv.Line(img, image.Pt(i, 0), image.Pt(i, CanonicalSize), c, thickness)
		gocv.Line(img, image.Pt(0, i), image.Pt(CanonicalSize, i), c, thickness)
	}
}

// DrawMove draws an arrow from the origin square's center to the
// destination square's center on a canonical image, in place. Indices
// are 1-based.
func DrawMove(img *gocv.Mat, origin, dest int, c color.RGBA, thickness int) {
	gocv.ArrowedLine(img, SquareCenter(origin), SquareCenter(dest), c, thickness)
}
