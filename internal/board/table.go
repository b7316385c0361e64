// Package board provides the square-coordinate table: a pure,
// bidirectional mapping between 1-based square indices and file/rank
// coordinates on a chessboard.
//
// Indices enumerate the squares row-major from the top-left of the
// canonical board image (white at the bottom): index 1 is a8, index 8
// is h8, index 57 is a1 and index 64 is h1.
package board

import "fmt"

const (
	// GridSize is the number of files and ranks on the board.
	GridSize = 8

	// SquareCount is the total number of squares.
	SquareCount = GridSize * GridSize
)

// Coord identifies a square by zero-based file (0 = a) and rank
// (0 = rank 1).
type Coord struct {
	File int
	Rank int
}

// String returns algebraic notation (e.g., "e4").
func (c Coord) String() string {
	return fmt.Sprintf("%c%d", 'a'+c.File, c.Rank+1)
}

// Valid reports whether the coordinate lies on the board.
func (c Coord) Valid() bool {
	return c.File >= 0 && c.File < GridSize && c.Rank >= 0 && c.Rank < GridSize
}

// Coordinate converts a 1-based square index to its board coordinate.
func Coordinate(index int) (Coord, error) {
	if index < 1 || index > SquareCount {
		return Coord{}, fmt.Errorf("square index out of range: %d (must be 1-%d)", index, SquareCount)
	}
	col := (index - 1) % GridSize
	row := (index - 1) / GridSize
	return Coord{File: col, Rank: GridSize - 1 - row}, nil
}

// Index converts a board coordinate to its 1-based square index.
func Index(c Coord) (int, error) {
	if !c.Valid() {
		return 0, fmt.Errorf("coordinate off the board: file=%d rank=%d", c.File, c.Rank)
	}
	row := GridSize - 1 - c.Rank
	return row*GridSize + c.File + 1, nil
}

// MustCoordinate is Coordinate for indices already known to be valid.
// It panics on an out-of-range index.
func MustCoordinate(index int) Coord {
	c, err := Coordinate(index)
	if err != nil {
		panic(err)
	}
	return c
}
