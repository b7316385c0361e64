package detect

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/thyrook/chessvision/internal/vision"
)

// State is the session's position in the detection lifecycle.
type State int32

const (
	// StateIdle — no active session.
	StateIdle State = iota
	// StateCalibrated — transform installed, no reference yet.
	StateCalibrated
	// StateArmed — reference captured, awaiting a detection request.
	StateArmed
	// StateDetecting — a detection pass is running.
	StateDetecting
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCalibrated:
		return "calibrated"
	case StateArmed:
		return "armed"
	case StateDetecting:
		return "detecting"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type requestKind int

const (
	reqCalibrate requestKind = iota
	reqArm
	reqDetect
	reqRefresh
)

type request struct {
	kind   requestKind
	points []image.Point
	reply  chan error
}

// Session is the move-detection loop: it owns the calibration
// transform and reference store for one game session and serializes
// all pipeline work onto a single background goroutine, so camera I/O
// and the contrast sweep never run concurrently with each other or
// block the caller.
//
// All transitions are driven by explicit requests — there is no
// polling timer. Results are delivered on the Events channel.
type Session struct {
	logger  *zap.Logger
	source  vision.FrameSource
	adapter *ContrastAdapter
	ref     *vision.ReferenceStore

	// Owned by the run goroutine after Start.
	transform *vision.CalibrationTransform

	mu       sync.Mutex
	baseline float64
	corners  [4]image.Point
	hasCal   bool

	state    atomic.Int32
	requests chan request
	events   chan Event

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  atomic.Bool
	stopOnce sync.Once
}

// NewSession wires a session around a frame source and a legal-move
// oracle. noiseFloor gates the resolver; see Resolver.
func NewSession(source vision.FrameSource, oracle Oracle, noiseFloor float64, logger *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	resolver := NewResolver(oracle, noiseFloor)

	return &Session{
		logger:   logger,
		source:   source,
		adapter:  NewContrastAdapter(resolver, logger),
		ref:      vision.NewReferenceStore(),
		baseline: vision.BaselineGain,
		requests: make(chan request), // unbuffered: a request is accepted only when the loop is free
		events:   make(chan Event, 16),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the background pipeline goroutine.
func (s *Session) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("session already started")
	}
	s.wg.Add(1)
	go s.run()
	return nil
}

// Events delivers session notifications. The channel is closed by
// Stop.
func (s *Session) Events() <-chan Event {
	return s.events
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// BaselineGain returns the session's current contrast baseline. It
// starts at 1.0 and follows the gain of the last successful sweep.
func (s *Session) BaselineGain() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseline
}

// Corners returns the installed calibration corners, if any.
func (s *Session) Corners() ([4]image.Point, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.corners, s.hasCal
}

// Calibrate validates the four corner points, installs the derived
// transform and clears any previous reference. Synchronous.
func (s *Session) Calibrate(points []image.Point) error {
	return s.submit(request{kind: reqCalibrate, points: points, reply: make(chan error, 1)})
}

// Arm captures the current physical board as the reference frame and
// readies the session for detection requests. Synchronous.
func (s *Session) Arm() error {
	return s.submit(request{kind: reqArm, reply: make(chan error, 1)})
}

// RefreshReference recaptures the reference frame, used after the
// engine's reply has been executed on the physical board.
// Synchronous.
func (s *Session) RefreshReference() error {
	return s.submit(request{kind: reqRefresh, reply: make(chan error, 1)})
}

// RequestDetection asks for one detection pass. It returns as soon as
// the request is accepted; the outcome arrives as a MoveDetected or
// DetectionFailed event. A request while any work is in flight is
// rejected with ErrDetectionBusy.
func (s *Session) RequestDetection() error {
	if st := s.State(); st != StateArmed {
		return fmt.Errorf("%w: session is %s, want armed", ErrInvalidState, st)
	}
	return s.submit(request{kind: reqDetect})
}

// Stop ends the session: it cancels any in-progress sweep, releases
// the capture device and the reference frame, and closes the events
// channel. Cancellation latency is bounded by one sweep step.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		if s.started.Load() {
			s.wg.Wait()
		}
		if err := s.source.Close(); err != nil {
			s.logger.Warn("failed to close frame source", zap.Error(err))
		}
		s.ref.Clear()
		if s.transform != nil {
			s.transform.Close()
			s.transform = nil
		}
		s.state.Store(int32(StateIdle))
		close(s.events)
	})
}

// submit hands a request to the run goroutine. The requests channel is
// unbuffered, so a send succeeds only while the loop is free.
// Detection requests (no reply channel) are rejected instead of queued
// when work is in flight; synchronous control requests wait their
// turn.
func (s *Session) submit(req request) error {
	if req.reply == nil {
		select {
		case s.requests <- req:
			return nil
		case <-s.ctx.Done():
			return s.ctx.Err()
		default:
			return ErrDetectionBusy
		}
	}

	select {
	case s.requests <- req:
	case <-s.ctx.Done():
		return s.ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

func (s *Session) run() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case req := <-s.requests:
			s.handle(req)
		}
	}
}

func (s *Session) handle(req request) {
	switch req.kind {
	case reqCalibrate:
		req.reply <- s.handleCalibrate(req.points)
	case reqArm:
		req.reply <- s.handleArm()
	case reqRefresh:
		req.reply <- s.handleRefresh()
	case reqDetect:
		s.handleDetect()
	}
}

func (s *Session) handleCalibrate(points []image.Point) error {
	transform, err := vision.NewCalibration(points)
	if err != nil {
		s.logger.Warn("calibration rejected", zap.Error(err))
		return err
	}

	if s.transform != nil {
		s.transform.Close()
	}
	s.transform = transform
	s.ref.Clear()

	s.mu.Lock()
	s.corners = transform.Corners
	s.hasCal = true
	s.mu.Unlock()

	s.state.Store(int32(StateCalibrated))
	s.logger.Info("calibration installed", zap.Any("corners", transform.Corners))
	s.emit(CalibrationComplete{Corners: transform.Corners})
	return nil
}

func (s *Session) handleArm() error {
	if s.transform == nil {
		return fmt.Errorf("%w: calibrate before arming", ErrInvalidState)
	}

	frame, err := s.captureRectified()
	if err != nil {
		return err
	}
	s.ref.Replace(frame)
	frame.Close()

	s.state.Store(int32(StateArmed))
	s.logger.Info("reference captured, session armed")
	s.emit(ReferenceUpdated{At: time.Now()})
	return nil
}

func (s *Session) handleRefresh() error {
	if s.State() != StateArmed {
		return fmt.Errorf("%w: session is %s, want armed", ErrInvalidState, s.State())
	}

	frame, err := s.captureRectified()
	if err != nil {
		return err
	}
	s.ref.Replace(frame)
	frame.Close()

	s.logger.Info("reference refreshed")
	s.emit(ReferenceUpdated{At: time.Now()})
	return nil
}

func (s *Session) handleDetect() {
	if s.State() != StateArmed {
		s.emit(DetectionFailed{Reason: "not_armed", Err: ErrInvalidState})
		return
	}

	s.state.Store(int32(StateDetecting))
	defer s.state.Store(int32(StateArmed))

	reference, ok := s.ref.Snapshot()
	if !ok {
		s.emit(DetectionFailed{Reason: "no_reference", Err: ErrInvalidState})
		return
	}
	defer reference.Close()

	s.mu.Lock()
	baseline := s.baseline
	s.mu.Unlock()

	detection, err := s.adapter.Detect(s.ctx, reference, baseline, s.captureRectified)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Warn("detection failed", zap.Error(err))
		s.emit(DetectionFailed{Reason: failureReason(err), Err: err})
		return
	}

	// The frame that revealed the move becomes the new reference, and
	// its gain becomes the sweep baseline for the next pass.
	s.ref.Replace(detection.Frame)
	detection.Frame.Close()

	s.mu.Lock()
	s.baseline = detection.Setting.Gain
	s.mu.Unlock()

	s.emit(MoveDetected{
		UCI:      detection.Candidate.UCI,
		Origin:   detection.Candidate.Origin,
		Dest:     detection.Candidate.Dest,
		Gain:     detection.Setting.Gain,
		Attempts: detection.Attempts,
	})
	s.emit(ReferenceUpdated{At: time.Now()})
}

// captureRectified reads one raw frame from the source and rectifies
// it onto the canonical square. The camera read is the pipeline's only
// blocking point.
func (s *Session) captureRectified() (vision.BoardFrame, error) {
	raw, err := s.source.ReadFrame()
	if err != nil {
		return vision.BoardFrame{}, err
	}
	defer raw.Close()

	return vision.Rectify(*raw, s.transform, time.Now())
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("event dropped, consumer too slow", zap.Any("event", ev))
	}
}

// failureReason maps a terminal detection error to a reason code the
// presentation layer can act on.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrNoLegalMove):
		return "no_legal_move"
	case errors.Is(err, vision.ErrCameraIO):
		return "camera_io"
	case errors.Is(err, vision.ErrRectification):
		return "rectification"
	default:
		return "internal"
	}
}
