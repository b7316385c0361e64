package detect

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/thyrook/chessvision/internal/vision"
)

// boardWith builds a canonical frame filled with base, with the given
// tiles overpainted.
func boardWith(base uint8, tiles map[int]uint8) vision.BoardFrame {
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(base), 0, 0, 0),
		vision.CanonicalSize, vision.CanonicalSize, gocv.MatTypeCV8U)

	for index, value := range tiles {
		r := vision.TileRect(index)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				mat.SetUCharAt(y, x, value)
			}
		}
	}

	return vision.BoardFrame{Gray: mat, CapturedAt: time.Now()}
}

// scriptedProvider serves clones of scripted frames; once the script
// is exhausted it keeps serving the last one.
type scriptedProvider struct {
	frames []vision.BoardFrame
	calls  int
}

func (p *scriptedProvider) provide() (vision.BoardFrame, error) {
	i := p.calls
	if i >= len(p.frames) {
		i = len(p.frames) - 1
	}
	p.calls++
	return p.frames[i].Clone(), nil
}

func (p *scriptedProvider) close() {
	for i := range p.frames {
		p.frames[i].Close()
	}
}

func pawnPushOracle() Oracle {
	return newStubOracle([3]string{"e2", "e4", "e2e4"})
}

func newTestAdapter(oracle Oracle) *ContrastAdapter {
	return NewContrastAdapter(NewResolver(oracle, 20), zap.NewNop())
}

func TestDetectFirstAttempt(t *testing.T) {
	reference := boardWith(100, nil)
	defer reference.Close()

	// e2 (53) vacated, e4 (37) occupied.
	provider := &scriptedProvider{frames: []vision.BoardFrame{
		boardWith(100, map[int]uint8{53: 20, 37: 180}),
	}}
	defer provider.close()

	adapter := newTestAdapter(pawnPushOracle())

	detection, err := adapter.Detect(context.Background(), reference, vision.BaselineGain, provider.provide)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	defer detection.Frame.Close()

	if detection.Candidate.UCI != "e2e4" {
		t.Errorf("expected e2e4, got %s", detection.Candidate.UCI)
	}
	if detection.Attempts != 1 {
		t.Errorf("expected detection on first attempt, got %d", detection.Attempts)
	}
	if detection.Setting.Gain != vision.BaselineGain {
		t.Errorf("expected baseline gain, got %.2f", detection.Setting.Gain)
	}
	if provider.calls != 1 {
		t.Errorf("expected 1 capture, got %d", provider.calls)
	}
}

func TestDetectAfterSweep(t *testing.T) {
	reference := boardWith(100, nil)
	defer reference.Close()

	quiet := boardWith(100, nil)
	changed := boardWith(100, map[int]uint8{53: 20, 37: 180})
	provider := &scriptedProvider{frames: []vision.BoardFrame{
		quiet.Clone(), quiet.Clone(), quiet.Clone(), changed.Clone(),
	}}
	quiet.Close()
	changed.Close()
	defer provider.close()

	adapter := newTestAdapter(pawnPushOracle())

	detection, err := adapter.Detect(context.Background(), reference, vision.BaselineGain, provider.provide)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	defer detection.Frame.Close()

	if detection.Attempts != 4 {
		t.Errorf("expected detection at step 4, got %d", detection.Attempts)
	}
	// Step 4 of the schedule is the third low-gain setting.
	if want := 0.7; math.Abs(detection.Setting.Gain-want) > 1e-9 {
		t.Errorf("expected gain %.1f at step 4, got %.2f", want, detection.Setting.Gain)
	}
}

func TestDetectSweepExhaustion(t *testing.T) {
	reference := boardWith(100, nil)
	defer reference.Close()

	provider := &scriptedProvider{frames: []vision.BoardFrame{boardWith(100, nil)}}
	defer provider.close()

	adapter := newTestAdapter(newStubOracle())

	_, err := adapter.Detect(context.Background(), reference, vision.BaselineGain, provider.provide)
	if !errors.Is(err, ErrNoLegalMove) {
		t.Fatalf("expected ErrNoLegalMove after exhaustion, got %v", err)
	}
	if provider.calls != vision.MaxSweepSteps {
		t.Errorf("expected %d sweep captures, got %d", vision.MaxSweepSteps, provider.calls)
	}
}

func TestDetectCancellation(t *testing.T) {
	reference := boardWith(100, nil)
	defer reference.Close()

	provider := &scriptedProvider{frames: []vision.BoardFrame{boardWith(100, nil)}}
	defer provider.close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	adapter := newTestAdapter(newStubOracle())

	_, err := adapter.Detect(ctx, reference, vision.BaselineGain, provider.provide)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("canceled sweep still captured %d frames", provider.calls)
	}
}

func TestDetectCaptureFailureAborts(t *testing.T) {
	reference := boardWith(100, nil)
	defer reference.Close()

	captureErr := fmt.Errorf("%w: device gone", vision.ErrCameraIO)
	failing := func() (vision.BoardFrame, error) {
		return vision.BoardFrame{}, captureErr
	}

	adapter := newTestAdapter(newStubOracle())

	_, err := adapter.Detect(context.Background(), reference, vision.BaselineGain, failing)
	if !errors.Is(err, vision.ErrCameraIO) {
		t.Fatalf("expected camera error to surface, got %v", err)
	}
}
