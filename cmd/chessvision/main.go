package main

import (
	"bufio"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/thyrook/chessvision/internal/config"
	"github.com/thyrook/chessvision/internal/detect"
	"github.com/thyrook/chessvision/internal/logging"
	"github.com/thyrook/chessvision/internal/oracle"
	"github.com/thyrook/chessvision/internal/storage"
	"github.com/thyrook/chessvision/internal/vision"
)

func main() {
	configPath := flag.String("config", "", "Config file path (JSON)")
	cameraIndex := flag.Int("camera", -1, "Camera index override")
	enginePath := flag.String("engine", "", "UCI engine binary override")
	elo := flag.Int("elo", 0, "Engine strength override")
	dbPath := flag.String("db", "", "Session database override")
	flag.Parse()

	cfg := loadConfig(*configPath)
	if *cameraIndex >= 0 {
		cfg.Source.Kind = "camera"
		cfg.Source.CameraIndex = *cameraIndex
	}
	if *enginePath != "" {
		cfg.Engine.Path = *enginePath
	}
	if *elo > 0 {
		cfg.Engine.Elo = *elo
	}
	if *dbPath != "" {
		cfg.Storage.DBPath = *dbPath
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Path)
	if err != nil {
		log.Fatalf("Logger setup failed: %v", err)
	}
	defer logger.Sync()

	fmt.Println("╔═══════════════════════════════════════════╗")
	fmt.Println("║  chessvision — board move detection        ║")
	fmt.Println("╚═══════════════════════════════════════════╝")
	fmt.Println()

	store, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		log.Fatalf("Session store failed: %v", err)
	}
	defer store.Close()

	source, err := openSource(cfg)
	if err != nil {
		log.Fatalf("Frame source failed: %v", err)
	}

	game := oracle.NewGameOracle()

	moveTime := time.Duration(cfg.Engine.MoveTimeMs) * time.Millisecond

	var engine *oracle.Engine
	if cfg.Engine.Path != "" {
		engine, err = oracle.NewEngine(cfg.Engine.Path, cfg.Engine.Elo, moveTime)
		if err != nil {
			log.Fatalf("Engine failed: %v", err)
		}
		defer engine.Close()
		fmt.Printf("Engine: %s (elo %d)\n", cfg.Engine.Path, cfg.Engine.Elo)
	}

	// A second, full-strength instance for position suggestions.
	var analyst *oracle.Engine
	if cfg.Engine.Analysis && cfg.Engine.Path != "" {
		analyst, err = oracle.NewEngine(cfg.Engine.Path, 0, moveTime)
		if err != nil {
			log.Fatalf("Analysis engine failed: %v", err)
		}
		defer analyst.Close()
	}

	session := detect.NewSession(source, game, cfg.Vision.NoiseFloor, logger)
	if err := session.Start(); err != nil {
		log.Fatalf("Session start failed: %v", err)
	}
	defer session.Stop()

	// Resume a saved calibration if one exists.
	if cal, found, err := store.LoadCalibration(); err == nil && found {
		if err := session.Calibrate(cal.Corners[:]); err != nil {
			logger.Warn("saved calibration rejected", zap.Error(err))
		} else {
			fmt.Printf("Restored calibration: %v\n", cal.Corners)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	go consumeEvents(session, game, store, logger)

	printHelp()
	runCommandLoop(session, game, engine, analyst, store, sig)

	fmt.Println("Session closed.")
}

func loadConfig(path string) *config.Config {
	if path == "" {
		return config.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Config load failed: %v", err)
	}
	return cfg
}

func openSource(cfg *config.Config) (vision.FrameSource, error) {
	switch cfg.Source.Kind {
	case "video":
		return vision.OpenVideo(cfg.Source.VideoPath)
	case "screen":
		return vision.NewScreenSource(cfg.Source.Screen.ToRectangle()), nil
	default:
		return vision.OpenCamera(cfg.Source.CameraIndex)
	}
}

// consumeEvents applies detected moves to the game and journals them.
func consumeEvents(session *detect.Session, game *oracle.GameOracle, store *storage.SessionStore, logger *zap.Logger) {
	for ev := range session.Events() {
		switch e := ev.(type) {
		case detect.MoveDetected:
			fmt.Printf("♟  Move detected: %s (gain %.1f, %d attempts)\n", e.UCI, e.Gain, e.Attempts)
			if err := game.Push(e.UCI); err != nil {
				logger.Error("failed to apply detected move", zap.String("move", e.UCI), zap.Error(err))
				continue
			}
			rec := storage.MoveRecord{UCI: e.UCI, Gain: e.Gain, Attempts: e.Attempts}
			if err := store.AppendMove(rec); err != nil {
				logger.Warn("failed to journal move", zap.Error(err))
			}
			if err := store.SavePGN(game.PGN()); err != nil {
				logger.Warn("failed to save PGN", zap.Error(err))
			}

		case detect.DetectionFailed:
			fmt.Printf("✗  Detection failed (%s): %v\n", e.Reason, e.Err)

		case detect.CalibrationComplete:
			fmt.Printf("✓  Calibrated: %v\n", e.Corners)
			if cal, ok := session.Corners(); ok {
				if err := store.SaveCalibration(cal, session.BaselineGain()); err != nil {
					logger.Warn("failed to save calibration", zap.Error(err))
				}
			}

		case detect.ReferenceUpdated:
			logger.Debug("reference updated", zap.Time("at", e.At))
		}
	}
}

func runCommandLoop(session *detect.Session, game *oracle.GameOracle, engine, analyst *oracle.Engine, store *storage.SessionStore, sig chan os.Signal) {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		fmt.Print("> ")
		select {
		case <-sig:
			fmt.Println("\nStopping...")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := handleCommand(session, game, engine, analyst, store, strings.Fields(line)); quit {
				return
			}
		}
	}
}

func handleCommand(session *detect.Session, game *oracle.GameOracle, engine, analyst *oracle.Engine, store *storage.SessionStore, args []string) bool {
	if len(args) == 0 {
		return false
	}

	switch args[0] {
	case "calibrate":
		points, err := parseCorners(args[1:])
		if err != nil {
			fmt.Printf("Bad corners: %v\n", err)
			return false
		}
		if err := session.Calibrate(points); err != nil {
			fmt.Printf("Calibration failed: %v\n", err)
		}

	case "arm":
		if err := session.Arm(); err != nil {
			fmt.Printf("Arm failed: %v\n", err)
		} else {
			fmt.Println("Armed. Make a move, then type 'detect'.")
		}

	case "detect":
		if err := session.RequestDetection(); err != nil {
			fmt.Printf("Detection rejected: %v\n", err)
		}

	case "engine":
		playEngineTurn(game, engine)

	case "analyze":
		if analyst == nil {
			fmt.Println("No analysis engine (set engine.analysis in config).")
			return false
		}
		move, err := analyst.BestMove(game.Position())
		if err != nil {
			fmt.Printf("Analysis failed: %v\n", err)
			return false
		}
		fmt.Printf("Suggested: %s\n", move)

	case "refresh":
		if err := session.RefreshReference(); err != nil {
			fmt.Printf("Refresh failed: %v\n", err)
		} else {
			fmt.Println("Reference refreshed.")
		}

	case "status":
		fmt.Printf("State: %s | To move: %s | Gain: %.1f\n",
			session.State(), game.SideToMove(), session.BaselineGain())
		fmt.Printf("FEN: %s\n", game.FEN())

	case "pgn":
		fmt.Println(game.PGN())

	case "moves":
		moves, err := store.Moves()
		if err != nil {
			fmt.Printf("Journal read failed: %v\n", err)
			return false
		}
		for i, m := range moves {
			fmt.Printf("%3d. %s (gain %.1f)\n", i+1, m.UCI, m.Gain)
		}

	case "help":
		printHelp()

	case "quit", "exit":
		return true

	default:
		fmt.Printf("Unknown command: %s (try 'help')\n", args[0])
	}

	return false
}

// playEngineTurn asks the engine for its reply and applies it to the
// game. The user executes it on the physical board and then refreshes
// the reference.
func playEngineTurn(game *oracle.GameOracle, engine *oracle.Engine) {
	if engine == nil {
		fmt.Println("No engine configured (set engine.path in config).")
		return
	}
	if game.GameOver() {
		fmt.Println("Game is over.")
		return
	}

	move, err := engine.BestMove(game.Position())
	if err != nil {
		fmt.Printf("Engine failed: %v\n", err)
		return
	}
	if err := game.Push(move); err != nil {
		fmt.Printf("Engine move rejected: %v\n", err)
		return
	}

	fmt.Printf("♚  Engine plays: %s\n", move)
	fmt.Println("Execute it on the board, then type 'refresh'.")
}

// parseCorners parses four "x,y" tokens in order top-left, top-right,
// bottom-left, bottom-right.
func parseCorners(args []string) ([]image.Point, error) {
	if len(args) != 4 {
		return nil, fmt.Errorf("need 4 corner points, got %d", len(args))
	}

	points := make([]image.Point, 0, 4)
	for _, arg := range args {
		parts := strings.Split(arg, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("corner %q is not x,y", arg)
		}
		x, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("corner %q: %w", arg, err)
		}
		y, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("corner %q: %w", arg, err)
		}
		points = append(points, image.Pt(x, y))
	}
	return points, nil
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  calibrate x,y x,y x,y x,y  install corners (TL TR BL BR)")
	fmt.Println("  arm                        capture reference frame")
	fmt.Println("  detect                     detect the move just played")
	fmt.Println("  engine                     let the engine reply")
	fmt.Println("  analyze                    full-strength move suggestion")
	fmt.Println("  refresh                    recapture reference after engine move")
	fmt.Println("  status | pgn | moves       inspect session")
	fmt.Println("  quit                       stop the session")
}
