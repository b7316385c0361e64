package detect

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/thyrook/chessvision/internal/vision"
)

// FrameProvider supplies a fresh rectified candidate frame for each
// sweep step. The caller owns the returned frame.
type FrameProvider func() (vision.BoardFrame, error)

// Detection is the outcome of a successful detection pass: the
// validated candidate, the contrast setting that produced it, and the
// frame that should become the new reference. Ownership of Frame
// passes to the caller.
type Detection struct {
	Candidate MoveCandidate
	Setting   vision.ContrastSetting
	Frame     vision.BoardFrame
	Attempts  int
}

// ContrastAdapter drives the bounded contrast sweep: it walks the
// precomputed gain schedule, recapturing and re-differencing at each
// step, until the resolver produces a legal move or the schedule is
// exhausted. First legal move along the sweep order wins.
type ContrastAdapter struct {
	resolver *Resolver
	logger   *zap.Logger
}

// NewContrastAdapter creates a sweep driver around a resolver.
func NewContrastAdapter(resolver *Resolver, logger *zap.Logger) *ContrastAdapter {
	return &ContrastAdapter{resolver: resolver, logger: logger}
}

// Detect runs one full detection pass against the reference frame.
// baseline is the session's current gain and seeds the schedule.
// Cancellation is checked before every step, so latency after ctx is
// canceled is bounded by a single capture+diff.
//
// A camera or rectification failure aborts the pass immediately; a
// no-legal-move outcome at one step continues to the next and is only
// returned once the schedule is exhausted.
func (a *ContrastAdapter) Detect(ctx context.Context, reference vision.BoardFrame, baseline float64, capture FrameProvider) (*Detection, error) {
	schedule := vision.SweepSchedule(baseline)

	for i, setting := range schedule {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		frame, err := capture()
		if err != nil {
			return nil, fmt.Errorf("sweep step %d: %w", i+1, err)
		}

		diffs, err := vision.SquareDifferences(reference, frame, setting)
		if err != nil {
			frame.Close()
			return nil, fmt.Errorf("sweep step %d: %w", i+1, err)
		}

		candidate, err := a.resolver.Resolve(diffs)
		if err == nil {
			a.logger.Info("move detected",
				zap.String("move", candidate.UCI),
				zap.Float64("gain", setting.Gain),
				zap.Int("attempts", i+1),
			)
			return &Detection{
				Candidate: candidate,
				Setting:   setting,
				Frame:     frame,
				Attempts:  i + 1,
			}, nil
		}

		frame.Close()
		if !errors.Is(err, ErrNoLegalMove) {
			return nil, fmt.Errorf("sweep step %d: %w", i+1, err)
		}

		a.logger.Debug("no legal move at gain",
			zap.Float64("gain", setting.Gain),
			zap.Float64("threshold", setting.Threshold),
			zap.Int("step", i+1),
		)
	}

	return nil, fmt.Errorf("%w: contrast sweep exhausted after %d steps", ErrNoLegalMove, len(schedule))
}
