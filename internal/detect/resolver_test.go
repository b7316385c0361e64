package detect

import (
	"errors"
	"testing"

	"github.com/thyrook/chessvision/internal/board"
	"github.com/thyrook/chessvision/internal/vision"
)

// stubOracle accepts exactly the configured origin→dest pairs.
type stubOracle struct {
	legal map[[2]string]string // origin,dest -> uci
}

func newStubOracle(moves ...[3]string) *stubOracle {
	o := &stubOracle{legal: make(map[[2]string]string)}
	for _, m := range moves {
		o.legal[[2]string{m[0], m[1]}] = m[2]
	}
	return o
}

func (o *stubOracle) ValidateMove(origin, dest board.Coord) (string, bool) {
	uci, ok := o.legal[[2]string{origin.String(), dest.String()}]
	return uci, ok
}

// scores builds a full 64-square diff set with the given overrides.
func scores(overrides map[int]float64) []vision.SquareDifference {
	diffs := make([]vision.SquareDifference, 64)
	for i := range diffs {
		diffs[i] = vision.SquareDifference{Index: i + 1}
	}
	for idx, mag := range overrides {
		diffs[idx-1].Magnitude = mag
	}
	return diffs
}

func TestResolveFindsLegalOrdering(t *testing.T) {
	// Square 53 is e2, square 37 is e4.
	tests := []struct {
		name     string
		oracle   Oracle
		diffs    []vision.SquareDifference
		expected string
	}{
		{
			name:     "forward ordering legal",
			oracle:   newStubOracle([3]string{"e2", "e4", "e2e4"}),
			diffs:    scores(map[int]float64{53: 200, 37: 255}),
			expected: "e2e4",
		},
		{
			name:     "reverse ordering legal",
			oracle:   newStubOracle([3]string{"e4", "e2", "e4e2"}),
			diffs:    scores(map[int]float64{53: 200, 37: 255}),
			expected: "e4e2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := NewResolver(tt.oracle, 20)

			candidate, err := resolver.Resolve(tt.diffs)
			if err != nil {
				t.Fatalf("resolve failed: %v", err)
			}
			if candidate.UCI != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, candidate.UCI)
			}
		})
	}
}

func TestResolveNoLegalMove(t *testing.T) {
	resolver := NewResolver(newStubOracle(), 20)

	_, err := resolver.Resolve(scores(map[int]float64{53: 200, 37: 255}))
	if !errors.Is(err, ErrNoLegalMove) {
		t.Fatalf("expected ErrNoLegalMove, got %v", err)
	}
}

func TestResolveBelowNoiseFloor(t *testing.T) {
	// The oracle would accept the move, but the change is noise.
	resolver := NewResolver(newStubOracle([3]string{"e2", "e4", "e2e4"}), 20)

	_, err := resolver.Resolve(scores(map[int]float64{53: 10, 37: 15}))
	if !errors.Is(err, ErrNoLegalMove) {
		t.Fatalf("expected ErrNoLegalMove for quiet board, got %v", err)
	}
}

func TestResolveTieBreaksByLowerIndex(t *testing.T) {
	// Squares 37 and 53 tie; the stable ranking puts the lower index
	// (37, e4) first, so the first hypothesis is e2→e4.
	oracle := newStubOracle(
		[3]string{"e2", "e4", "e2e4"},
		[3]string{"e4", "e2", "e4e2"},
	)
	resolver := NewResolver(oracle, 20)

	candidate, err := resolver.Resolve(scores(map[int]float64{37: 255, 53: 255}))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if candidate.UCI != "e2e4" {
		t.Errorf("tie-break changed hypothesis order: got %s", candidate.UCI)
	}
	if candidate.Origin != 53 || candidate.Dest != 37 {
		t.Errorf("expected origin 53 dest 37, got %d→%d", candidate.Origin, candidate.Dest)
	}
}

func TestResolveDirectionPreference(t *testing.T) {
	// Both orderings are legal; the piece is assumed to arrive at the
	// most-changed square.
	oracle := newStubOracle(
		[3]string{"e2", "e4", "e2e4"},
		[3]string{"e4", "e2", "e4e2"},
	)
	resolver := NewResolver(oracle, 20)

	candidate, err := resolver.Resolve(scores(map[int]float64{37: 255, 53: 180}))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if candidate.UCI != "e2e4" {
		t.Errorf("expected arrival at the most-changed square, got %s", candidate.UCI)
	}
}

func TestResolveRejectsWrongLength(t *testing.T) {
	resolver := NewResolver(newStubOracle(), 20)

	if _, err := resolver.Resolve(make([]vision.SquareDifference, 10)); err == nil {
		t.Fatal("expected error for short score set")
	}
}
