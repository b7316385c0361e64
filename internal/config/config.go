// Package config holds the application configuration: frame source
// selection, detection tuning, engine settings, persistence and
// logging.
package config

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
)

// Config represents the application configuration.
type Config struct {
	Source  SourceConfig  `json:"source"`
	Vision  VisionConfig  `json:"vision"`
	Engine  EngineConfig  `json:"engine"`
	Storage StorageConfig `json:"storage"`
	Logging LoggingConfig `json:"logging"`
}

// SourceConfig selects where raw frames come from.
type SourceConfig struct {
	// Kind is "camera", "video" or "screen".
	Kind        string `json:"kind"`
	CameraIndex int    `json:"camera_index"`
	VideoPath   string `json:"video_path,omitempty"`
	Screen      Region `json:"screen,omitempty"`
}

// Region defines a screen capture area.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ToRectangle converts the region to an image.Rectangle.
func (r Region) ToRectangle() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// VisionConfig contains detection tuning.
type VisionConfig struct {
	// NoiseFloor is the minimum per-square change magnitude the
	// most-changed square must reach before a move hypothesis is
	// formed.
	NoiseFloor float64 `json:"noise_floor"`
}

// EngineConfig configures the UCI chess engine used for replies.
type EngineConfig struct {
	// Path to the engine binary; empty disables engine play.
	Path string `json:"path,omitempty"`
	// Elo limits playing strength; zero plays at full strength.
	Elo int `json:"elo"`
	// MoveTimeMs is the per-move search time in milliseconds.
	MoveTimeMs int `json:"move_time_ms"`
	// Analysis runs a second, full-strength instance for position
	// suggestions.
	Analysis bool `json:"analysis"`
}

// StorageConfig configures session persistence.
type StorageConfig struct {
	DBPath string `json:"db_path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level string `json:"level"`
	Path  string `json:"path,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Kind:        "camera",
			CameraIndex: 0,
		},
		Vision: VisionConfig{
			NoiseFloor: 20.0,
		},
		Engine: EngineConfig{
			Elo:        1500,
			MoveTimeMs: 1000,
		},
		Storage: StorageConfig{
			DBPath: "data/session.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads and validates the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration to a file.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case "camera":
		if c.Source.CameraIndex < 0 {
			return fmt.Errorf("invalid camera index: %d", c.Source.CameraIndex)
		}
	case "video":
		if c.Source.VideoPath == "" {
			return fmt.Errorf("video source requires video_path")
		}
	case "screen":
		if c.Source.Screen.Width <= 0 || c.Source.Screen.Height <= 0 {
			return fmt.Errorf("invalid screen region dimensions")
		}
	default:
		return fmt.Errorf("invalid source kind: %q (must be camera, video or screen)", c.Source.Kind)
	}

	if c.Vision.NoiseFloor < 0 || c.Vision.NoiseFloor > 255 {
		return fmt.Errorf("invalid noise floor: %f (must be 0-255)", c.Vision.NoiseFloor)
	}

	if c.Engine.Elo < 0 {
		return fmt.Errorf("invalid engine elo: %d", c.Engine.Elo)
	}
	if c.Engine.Path != "" && c.Engine.MoveTimeMs <= 0 {
		return fmt.Errorf("invalid engine move time: %d ms", c.Engine.MoveTimeMs)
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage db_path must be set")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}

	return nil
}
