// Package detect turns per-square change scores into validated chess
// moves and runs the session state machine that orchestrates capture,
// rectification, differencing and the adaptive-contrast retry sweep.
package detect

import (
	"errors"
	"fmt"
	"sort"

	"github.com/thyrook/chessvision/internal/board"
	"github.com/thyrook/chessvision/internal/vision"
)

var (
	// ErrNoLegalMove signals that no legal move could be formed from
	// the detected square changes. Recoverable by the contrast sweep;
	// only a terminal failure once the sweep is exhausted.
	ErrNoLegalMove = errors.New("no legal move found")

	// ErrDetectionBusy rejects a request while another is in flight.
	ErrDetectionBusy = errors.New("detection already in progress")

	// ErrInvalidState rejects a request the session state does not
	// allow (e.g. detecting before a reference is armed).
	ErrInvalidState = errors.New("request not allowed in current session state")
)

// Oracle is the legal-move capability the resolver depends on. The
// production implementation wraps the rules engine; tests substitute a
// deterministic stub.
type Oracle interface {
	// ValidateMove reports whether origin→dest is legal for the side
	// to move, returning the move's UCI identifier when it is.
	ValidateMove(origin, dest board.Coord) (uci string, ok bool)
}

// MoveCandidate is a validated origin/destination hypothesis together
// with the change magnitudes that produced it.
type MoveCandidate struct {
	Origin    int // 1-based square index
	Dest      int
	OriginMag float64
	DestMag   float64
	UCI       string
}

// Resolver forms move hypotheses from square-change scores and checks
// them against the legal-move oracle.
//
// Only the two highest-change squares are considered. This is a known
// heuristic limitation: simultaneous lighting artifacts on more than
// two squares can push the real move out of the top two.
type Resolver struct {
	oracle     Oracle
	noiseFloor float64
}

// NewResolver creates a resolver. noiseFloor is the minimum change
// magnitude the most-changed square must reach before any hypothesis
// is formed.
func NewResolver(oracle Oracle, noiseFloor float64) *Resolver {
	return &Resolver{oracle: oracle, noiseFloor: noiseFloor}
}

// Resolve ranks the 64 square scores and tests both orderings of the
// top two squares against the oracle. Equal magnitudes rank by lower
// square index first. Returns ErrNoLegalMove when the change is below
// the noise floor or neither ordering is legal.
func (r *Resolver) Resolve(diffs []vision.SquareDifference) (MoveCandidate, error) {
	if len(diffs) != board.SquareCount {
		return MoveCandidate{}, fmt.Errorf("expected %d square scores, got %d", board.SquareCount, len(diffs))
	}

	ranked := make([]vision.SquareDifference, len(diffs))
	copy(ranked, diffs)
	// Stable sort on index-ordered input: ties keep the lower square
	// index first.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Magnitude > ranked[j].Magnitude
	})

	top, second := ranked[0], ranked[1]

	if top.Magnitude < r.noiseFloor {
		return MoveCandidate{}, fmt.Errorf("%w: peak change %.2f below noise floor %.2f",
			ErrNoLegalMove, top.Magnitude, r.noiseFloor)
	}

	// The geometry does not indicate direction, so try the piece
	// arriving at the most-changed square first, then the reverse.
	orderings := [2][2]vision.SquareDifference{
		{second, top},
		{top, second},
	}

	for _, o := range orderings {
		origin := board.MustCoordinate(o[0].Index)
		dest := board.MustCoordinate(o[1].Index)

		if uci, ok := r.oracle.ValidateMove(origin, dest); ok {
			return MoveCandidate{
				Origin:    o[0].Index,
				Dest:      o[1].Index,
				OriginMag: o[0].Magnitude,
				DestMag:   o[1].Magnitude,
				UCI:       uci,
			}, nil
		}
	}

	return MoveCandidate{}, fmt.Errorf("%w: squares %d and %d form no legal move",
		ErrNoLegalMove, second.Index, top.Index)
}
