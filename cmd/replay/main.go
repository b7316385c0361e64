// Replay runs the detection pipeline against a recorded video of a
// game, printing every move it recovers.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/thyrook/chessvision/internal/detect"
	"github.com/thyrook/chessvision/internal/logging"
	"github.com/thyrook/chessvision/internal/oracle"
	"github.com/thyrook/chessvision/internal/vision"
)

func main() {
	videoPath := flag.String("video", "", "Video file of the game")
	cornersArg := flag.String("corners", "", "Corners TL TR BL BR as x,y;x,y;x,y;x,y")
	noiseFloor := flag.Float64("noise-floor", 20.0, "Minimum change magnitude")
	maxMoves := flag.Int("max-moves", 200, "Stop after this many detected moves")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	if *videoPath == "" || *cornersArg == "" {
		log.Fatal("both -video and -corners are required")
	}

	corners, err := parseCorners(*cornersArg)
	if err != nil {
		log.Fatalf("Bad corners: %v", err)
	}

	logger, err := logging.New(*logLevel, "")
	if err != nil {
		log.Fatalf("Logger setup failed: %v", err)
	}
	defer logger.Sync()

	source, err := vision.OpenVideo(*videoPath)
	if err != nil {
		log.Fatalf("Video open failed: %v", err)
	}

	game := oracle.NewGameOracle()
	session := detect.NewSession(source, game, *noiseFloor, logger)
	if err := session.Start(); err != nil {
		log.Fatalf("Session start failed: %v", err)
	}
	defer session.Stop()

	if err := session.Calibrate(corners); err != nil {
		log.Fatalf("Calibration failed: %v", err)
	}
	if err := session.Arm(); err != nil {
		log.Fatalf("Arm failed: %v", err)
	}

	fmt.Printf("Replaying %s\n\n", *videoPath)

	detected := 0
	for detected < *maxMoves {
		if err := requestDetection(session); err != nil {
			log.Fatalf("Detection request failed: %v", err)
		}

		done := false
		for ev := range session.Events() {
			switch e := ev.(type) {
			case detect.MoveDetected:
				detected++
				fmt.Printf("%3d. %s (gain %.1f, %d attempts)\n", detected, e.UCI, e.Gain, e.Attempts)
				if err := game.Push(e.UCI); err != nil {
					log.Fatalf("Move %s rejected by game: %v", e.UCI, err)
				}
				done = true
			case detect.DetectionFailed:
				// End of video surfaces as a failed pass.
				fmt.Printf("\nReplay finished (%s): %v\n", e.Reason, e.Err)
				printSummary(game, detected)
				return
			default:
				continue
			}
			if done {
				break
			}
		}
	}

	printSummary(game, detected)
}

// requestDetection retries while the pipeline is still finishing the
// previous pass.
func requestDetection(session *detect.Session) error {
	for {
		err := session.RequestDetection()
		if !errors.Is(err, detect.ErrDetectionBusy) {
			return err
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func printSummary(game *oracle.GameOracle, detected int) {
	fmt.Printf("\nDetected %d moves\n", detected)
	fmt.Println(game.PGN())
}

func parseCorners(arg string) ([]image.Point, error) {
	tokens := strings.Split(arg, ";")
	if len(tokens) != 4 {
		return nil, fmt.Errorf("need 4 corner points, got %d", len(tokens))
	}

	points := make([]image.Point, 0, 4)
	for _, tok := range tokens {
		parts := strings.Split(tok, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("corner %q is not x,y", tok)
		}
		x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, err
		}
		y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, err
		}
		points = append(points, image.Pt(x, y))
	}
	return points, nil
}
