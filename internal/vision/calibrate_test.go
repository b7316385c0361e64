package vision

import (
	"errors"
	"image"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func validCorners() []image.Point {
	return []image.Point{
		{X: 10, Y: 12},
		{X: 600, Y: 8},
		{X: 4, Y: 580},
		{X: 615, Y: 590},
	}
}

func TestCornerValidation(t *testing.T) {
	tests := []struct {
		name      string
		points    []image.Point
		expectErr bool
	}{
		{
			name:      "valid quadrilateral",
			points:    validCorners(),
			expectErr: false,
		},
		{
			name:      "too few points",
			points:    validCorners()[:3],
			expectErr: true,
		},
		{
			name:      "no points",
			points:    nil,
			expectErr: true,
		},
		{
			name: "duplicate corner",
			points: []image.Point{
				{X: 10, Y: 10}, {X: 600, Y: 10}, {X: 10, Y: 10}, {X: 600, Y: 600},
			},
			expectErr: true,
		},
		{
			name: "three collinear points",
			points: []image.Point{
				{X: 0, Y: 0}, {X: 50, Y: 0}, {X: 100, Y: 0}, {X: 0, Y: 100},
			},
			expectErr: true,
		},
		{
			name: "self-intersecting labeling",
			// Bottom corners swapped: diagonals become the parallel
			// side edges and never cross.
			points: []image.Point{
				{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100},
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transform, err := NewCalibration(tt.points)
			if tt.expectErr {
				if err == nil {
					transform.Close()
					t.Fatal("expected calibration error, got nil")
				}
				if !errors.Is(err, ErrCalibration) {
					t.Errorf("expected ErrCalibration, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			transform.Close()
		})
	}
}

func TestRectifyDeterministic(t *testing.T) {
	transform, err := NewCalibration(validCorners())
	if err != nil {
		t.Fatalf("calibration failed: %v", err)
	}
	defer transform.Close()

	raw := gradientMat(720, 640)
	defer raw.Close()

	first, err := Rectify(raw, transform, time.Now())
	if err != nil {
		t.Fatalf("first rectification failed: %v", err)
	}
	defer first.Close()

	second, err := Rectify(raw, transform, time.Now())
	if err != nil {
		t.Fatalf("second rectification failed: %v", err)
	}
	defer second.Close()

	if first.Gray.Rows() != CanonicalSize || first.Gray.Cols() != CanonicalSize {
		t.Fatalf("expected %dx%d output, got %dx%d",
			CanonicalSize, CanonicalSize, first.Gray.Cols(), first.Gray.Rows())
	}

	for y := 0; y < CanonicalSize; y += 37 {
		for x := 0; x < CanonicalSize; x += 41 {
			a := first.Gray.GetUCharAt(y, x)
			b := second.Gray.GetUCharAt(y, x)
			if a != b {
				t.Fatalf("rectification not deterministic at (%d,%d): %d vs %d", x, y, a, b)
			}
		}
	}
}

func TestRectifyIdentityCorners(t *testing.T) {
	// Corners at the canonical square positions yield an
	// identity-like transform: output equals input.
	corners := []image.Point{
		{X: 0, Y: 0},
		{X: CanonicalSize, Y: 0},
		{X: 0, Y: CanonicalSize},
		{X: CanonicalSize, Y: CanonicalSize},
	}
	transform, err := NewCalibration(corners)
	if err != nil {
		t.Fatalf("calibration failed: %v", err)
	}
	defer transform.Close()

	raw := gradientMat(CanonicalSize, CanonicalSize)
	defer raw.Close()

	frame, err := Rectify(raw, transform, time.Now())
	if err != nil {
		t.Fatalf("rectification failed: %v", err)
	}
	defer frame.Close()

	// Away from the borders the identity warp must preserve pixels.
	for y := 8; y < CanonicalSize-8; y += 53 {
		for x := 8; x < CanonicalSize-8; x += 59 {
			want := raw.GetUCharAt(y, x)
			got := frame.Gray.GetUCharAt(y, x)
			if want != got {
				t.Fatalf("pixel (%d,%d) changed under identity transform: %d vs %d", x, y, want, got)
			}
		}
	}
}

func TestRectifyIncompatibleFrame(t *testing.T) {
	transform, err := NewCalibration(validCorners())
	if err != nil {
		t.Fatalf("calibration failed: %v", err)
	}
	defer transform.Close()

	// Raw frame smaller than the calibrated corner span.
	raw := gradientMat(100, 100)
	defer raw.Close()

	_, err = Rectify(raw, transform, time.Now())
	if !errors.Is(err, ErrRectification) {
		t.Fatalf("expected ErrRectification, got %v", err)
	}
}

// gradientMat builds a grayscale test image with per-pixel structure.
func gradientMat(rows, cols int) gocv.Mat {
	mat := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8U)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			mat.SetUCharAt(y, x, uint8((x*7+y*13)%251))
		}
	}
	return mat
}
