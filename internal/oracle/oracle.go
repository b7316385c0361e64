// Package oracle wraps the chess-rules engine behind the pipeline's
// legal-move oracle contract: validating origin/destination candidates
// for the side to move and tracking the game as confirmed moves are
// pushed. A separate UCI wrapper provides engine replies.
package oracle

import (
	"fmt"
	"sync"

	"github.com/notnil/chess"

	"github.com/thyrook/chessvision/internal/board"
)

// GameOracle validates move candidates against the current position.
// It owns the authoritative game state for a session; all methods are
// safe for concurrent use.
type GameOracle struct {
	mu   sync.Mutex
	game *chess.Game
}

// NewGameOracle starts from the standard initial position.
func NewGameOracle() *GameOracle {
	return &GameOracle{game: chess.NewGame()}
}

// NewGameOracleFEN starts from an arbitrary position.
func NewGameOracleFEN(fen string) (*GameOracle, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("invalid FEN: %w", err)
	}
	return &GameOracle{game: chess.NewGame(opt)}, nil
}

// ValidateMove reports whether moving from origin to dest is legal for
// the side to move. On success it returns the move's UCI identifier.
// Matching is by square pair only, so a king's two-square move matches
// the castling move and a promotion matches its first listed variant.
func (o *GameOracle) ValidateMove(origin, dest board.Coord) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s1 := toSquare(origin)
	s2 := toSquare(dest)

	for _, m := range o.game.ValidMoves() {
		if m.S1() == s1 && m.S2() == s2 {
			return m.String(), true
		}
	}
	return "", false
}

// Push applies a UCI move to the game.
func (o *GameOracle) Push(uciMove string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	move, err := chess.UCINotation{}.Decode(o.game.Position(), uciMove)
	if err != nil {
		return fmt.Errorf("cannot decode move %q: %w", uciMove, err)
	}
	if err := o.game.Move(move); err != nil {
		return fmt.Errorf("cannot apply move %q: %w", uciMove, err)
	}
	return nil
}

// Position returns the current position.
func (o *GameOracle) Position() *chess.Position {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.game.Position()
}

// FEN returns the current position in FEN.
func (o *GameOracle) FEN() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.game.Position().String()
}

// PGN returns the game record so far.
func (o *GameOracle) PGN() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.game.String()
}

// SideToMove returns "white" or "black".
func (o *GameOracle) SideToMove() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.game.Position().Turn() == chess.White {
		return "white"
	}
	return "black"
}

// GameOver reports whether the game has an outcome.
func (o *GameOracle) GameOver() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.game.Outcome() != chess.NoOutcome
}

// Reset restarts the game from the initial position.
func (o *GameOracle) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.game = chess.NewGame()
}

// toSquare converts a board coordinate to the rules engine's square
// numbering (A1 = 0, row-major by rank).
func toSquare(c board.Coord) chess.Square {
	return chess.Square(c.Rank*8 + c.File)
}
