package oracle

import (
	"fmt"
	"strconv"
	"time"

	"github.com/notnil/chess"
	"github.com/notnil/chess/uci"
)

// Engine runs a UCI chess engine process and asks it for moves. One
// instance is typically strength-limited for play; a second,
// unlimited instance can be kept for analysis.
type Engine struct {
	eng      *uci.Engine
	moveTime time.Duration
}

// NewEngine starts the engine binary at path. If elo is positive the
// engine is strength-limited to that rating; zero leaves it at full
// strength.
func NewEngine(path string, elo int, moveTime time.Duration) (*Engine, error) {
	eng, err := uci.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to start engine %s: %w", path, err)
	}

	if err := eng.Run(uci.CmdUCI, uci.CmdIsReady, uci.CmdUCINewGame); err != nil {
		eng.Close()
		return nil, fmt.Errorf("engine handshake failed: %w", err)
	}

	if elo > 0 {
		err := eng.Run(
			uci.CmdSetOption{Name: "UCI_LimitStrength", Value: "true"},
			uci.CmdSetOption{Name: "UCI_Elo", Value: strconv.Itoa(elo)},
		)
		if err != nil {
			eng.Close()
			return nil, fmt.Errorf("failed to set engine strength: %w", err)
		}
	}

	if moveTime <= 0 {
		moveTime = time.Second
	}

	return &Engine{eng: eng, moveTime: moveTime}, nil
}

// BestMove asks the engine for its move in the given position and
// returns it in UCI notation.
func (e *Engine) BestMove(pos *chess.Position) (string, error) {
	cmds := []uci.Cmd{
		uci.CmdPosition{Position: pos},
		uci.CmdGo{MoveTime: e.moveTime},
	}
	if err := e.eng.Run(cmds...); err != nil {
		return "", fmt.Errorf("engine search failed: %w", err)
	}

	best := e.eng.SearchResults().BestMove
	if best == nil {
		return "", fmt.Errorf("engine returned no move")
	}
	return best.String(), nil
}

// Close shuts down the engine process.
func (e *Engine) Close() error {
	return e.eng.Close()
}
