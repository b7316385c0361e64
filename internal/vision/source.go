package vision

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
	"gocv.io/x/gocv"
)

// FrameSource abstracts where raw frames come from: a camera device,
// a recorded video file, or a screen region. Reading blocks until a
// frame is available or the source fails.
type FrameSource interface {
	ReadFrame() (*gocv.Mat, error)
	Close() error
}

// CameraSource reads raw frames from a capture device.
type CameraSource struct {
	device *gocv.VideoCapture
	index  int
}

// OpenCamera opens the capture device at the given index.
func OpenCamera(index int) (*CameraSource, error) {
	device, err := gocv.VideoCaptureDevice(index)
	if err != nil {
		return nil, fmt.Errorf("%w: device %d: %v", ErrCameraIO, index, err)
	}
	if !device.IsOpened() {
		device.Close()
		return nil, fmt.Errorf("%w: device %d not opened", ErrCameraIO, index)
	}
	return &CameraSource{device: device, index: index}, nil
}

// ReadFrame blocks on the device for the next frame.
func (c *CameraSource) ReadFrame() (*gocv.Mat, error) {
	mat := gocv.NewMat()
	if !c.device.Read(&mat) {
		mat.Close()
		return nil, fmt.Errorf("%w: device %d", ErrCameraIO, c.index)
	}
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("%w: device %d returned empty frame", ErrCameraIO, c.index)
	}
	return &mat, nil
}

// Close releases the capture device.
func (c *CameraSource) Close() error {
	return c.device.Close()
}

// VideoSource replays frames from a recorded video file, used to run
// the detection pipeline against captured footage.
type VideoSource struct {
	video        *gocv.VideoCapture
	fps          float64
	frameCount   int
	currentFrame int
}

// OpenVideo opens a video file for playback.
func OpenVideo(path string) (*VideoSource, error) {
	video, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open video file: %w", err)
	}
	if !video.IsOpened() {
		video.Close()
		return nil, fmt.Errorf("video file not opened: %s", path)
	}

	return &VideoSource{
		video:      video,
		fps:        video.Get(gocv.VideoCaptureFPS),
		frameCount: int(video.Get(gocv.VideoCaptureFrameCount)),
	}, nil
}

// ReadFrame reads the next frame from the video.
func (v *VideoSource) ReadFrame() (*gocv.Mat, error) {
	mat := gocv.NewMat()
	if !v.video.Read(&mat) {
		mat.Close()
		return nil, fmt.Errorf("end of video after %d frames", v.currentFrame)
	}
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("empty frame at %d", v.currentFrame)
	}
	v.currentFrame++
	return &mat, nil
}

// FPS returns the video's frames per second.
func (v *VideoSource) FPS() float64 { return v.fps }

// Progress returns playback progress in [0, 1].
func (v *VideoSource) Progress() float64 {
	if v.frameCount == 0 {
		return 0
	}
	return float64(v.currentFrame) / float64(v.frameCount)
}

// Seek jumps to a specific frame number.
func (v *VideoSource) Seek(frame int) error {
	v.video.Set(gocv.VideoCapturePosFrames, float64(frame))
	v.currentFrame = frame
	return nil
}

// Close releases video resources.
func (v *VideoSource) Close() error {
	return v.video.Close()
}

// ScreenSource captures a fixed screen region, for running the
// pipeline against an on-screen board.
type ScreenSource struct {
	region image.Rectangle
}

// NewScreenSource captures the given display rectangle.
func NewScreenSource(region image.Rectangle) *ScreenSource {
	return &ScreenSource{region: region}
}

// ReadFrame grabs the screen region and converts it to a Mat.
func (s *ScreenSource) ReadFrame() (*gocv.Mat, error) {
	img, err := screenshot.CaptureRect(s.region)
	if err != nil {
		return nil, fmt.Errorf("%w: screen capture: %v", ErrCameraIO, err)
	}
	return imageToMat(img)
}

// Close is a no-op; screen capture holds no device handle.
func (s *ScreenSource) Close() error { return nil }

// imageToMat converts image.Image to a BGRA gocv.Mat.
func imageToMat(img image.Image) (*gocv.Mat, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("empty capture region")
	}

	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC4)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			mat.SetUCharAt(y, x*4+0, uint8(b>>8))
			mat.SetUCharAt(y, x*4+1, uint8(g>>8))
			mat.SetUCharAt(y, x*4+2, uint8(r>>8))
			mat.SetUCharAt(y, x*4+3, uint8(a>>8))
		}
	}

	return &mat, nil
}
