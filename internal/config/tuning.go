package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// The schema matches the /api/params endpoint so the same JSON can be
// used for both startup configuration and runtime updates. All fields
// are pointers: omitted fields fall back to the Get* defaults, so
// partial configs are safe.
type TuningConfig struct {
	// Tracker params
	IoUThreshold           *float64 `json:"iou_threshold,omitempty"`
	MinHits                *int     `json:"min_hits,omitempty"`
	MaxAge                 *int     `json:"max_age,omitempty"`
	MaxTracks              *int     `json:"max_tracks,omitempty"`
	Matcher                *string  `json:"matcher,omitempty"` // "greedy" or "hungarian"
	VelocitySmoothingAlpha *float64 `json:"velocity_smoothing_alpha,omitempty"`
	CoastUnmatched         *bool    `json:"coast_unmatched,omitempty"`

	// Pipeline params
	DetectionSkipFrames *int  `json:"detection_skip_frames,omitempty"` // Run association every Nth frame
	EventLogging        *bool `json:"event_logging,omitempty"`         // Record entry/exit events to the store
	MinScore            *float64 `json:"min_score,omitempty"`          // Drop detections below this score
}

// Default values applied when a field is absent from the JSON.
const (
	defaultIoUThreshold           = 0.3
	defaultMinHits                = 3
	defaultMaxAge                 = 10
	defaultMaxTracks              = 256
	defaultMatcher                = "greedy"
	defaultVelocitySmoothingAlpha = 0.6
	defaultCoastUnmatched         = true
	defaultDetectionSkipFrames    = 1
	defaultEventLogging           = true
	defaultMinScore               = 0.0
)

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from a file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

func (c *TuningConfig) GetIoUThreshold() float64 {
	if c.IoUThreshold != nil {
		return *c.IoUThreshold
	}
	return defaultIoUThreshold
}

func (c *TuningConfig) GetMinHits() int {
	if c.MinHits != nil {
		return *c.MinHits
	}
	return defaultMinHits
}

func (c *TuningConfig) GetMaxAge() int {
	if c.MaxAge != nil {
		return *c.MaxAge
	}
	return defaultMaxAge
}

func (c *TuningConfig) GetMaxTracks() int {
	if c.MaxTracks != nil {
		return *c.MaxTracks
	}
	return defaultMaxTracks
}

func (c *TuningConfig) GetMatcher() string {
	if c.Matcher != nil {
		return *c.Matcher
	}
	return defaultMatcher
}

func (c *TuningConfig) GetVelocitySmoothingAlpha() float64 {
	if c.VelocitySmoothingAlpha != nil {
		return *c.VelocitySmoothingAlpha
	}
	return defaultVelocitySmoothingAlpha
}

func (c *TuningConfig) GetCoastUnmatched() bool {
	if c.CoastUnmatched != nil {
		return *c.CoastUnmatched
	}
	return defaultCoastUnmatched
}

func (c *TuningConfig) GetDetectionSkipFrames() int {
	if c.DetectionSkipFrames != nil {
		return *c.DetectionSkipFrames
	}
	return defaultDetectionSkipFrames
}

func (c *TuningConfig) GetEventLogging() bool {
	if c.EventLogging != nil {
		return *c.EventLogging
	}
	return defaultEventLogging
}

func (c *TuningConfig) GetMinScore() float64 {
	if c.MinScore != nil {
		return *c.MinScore
	}
	return defaultMinScore
}

// Validate checks the ranges of all set fields. Unset fields are fine:
// their defaults are valid by construction.
func (c *TuningConfig) Validate() error {
	if c.IoUThreshold != nil && (*c.IoUThreshold <= 0 || *c.IoUThreshold >= 1) {
		return fmt.Errorf("iou_threshold must be in (0, 1), got %v", *c.IoUThreshold)
	}
	if c.MinHits != nil && *c.MinHits <= 0 {
		return fmt.Errorf("min_hits must be positive, got %d", *c.MinHits)
	}
	if c.MaxAge != nil && *c.MaxAge <= 0 {
		return fmt.Errorf("max_age must be positive, got %d", *c.MaxAge)
	}
	if c.MaxTracks != nil && *c.MaxTracks <= 0 {
		return fmt.Errorf("max_tracks must be positive, got %d", *c.MaxTracks)
	}
	if c.Matcher != nil && *c.Matcher != "greedy" && *c.Matcher != "hungarian" {
		return fmt.Errorf("matcher must be \"greedy\" or \"hungarian\", got %q", *c.Matcher)
	}
	if c.VelocitySmoothingAlpha != nil && (*c.VelocitySmoothingAlpha < 0 || *c.VelocitySmoothingAlpha > 1) {
		return fmt.Errorf("velocity_smoothing_alpha must be in [0, 1], got %v", *c.VelocitySmoothingAlpha)
	}
	if c.DetectionSkipFrames != nil && *c.DetectionSkipFrames <= 0 {
		return fmt.Errorf("detection_skip_frames must be positive, got %d", *c.DetectionSkipFrames)
	}
	if c.MinScore != nil && (*c.MinScore < 0 || *c.MinScore > 1) {
		return fmt.Errorf("min_score must be in [0, 1], got %v", *c.MinScore)
	}
	return nil
}

// Merge overlays the set fields of other onto c. Used by the runtime
// params endpoint to apply partial updates.
func (c *TuningConfig) Merge(other *TuningConfig) {
	if other == nil {
		return
	}
	if other.IoUThreshold != nil {
		c.IoUThreshold = other.IoUThreshold
	}
	if other.MinHits != nil {
		c.MinHits = other.MinHits
	}
	if other.MaxAge != nil {
		c.MaxAge = other.MaxAge
	}
	if other.MaxTracks != nil {
		c.MaxTracks = other.MaxTracks
	}
	if other.Matcher != nil {
		c.Matcher = other.Matcher
	}
	if other.VelocitySmoothingAlpha != nil {
		c.VelocitySmoothingAlpha = other.VelocitySmoothingAlpha
	}
	if other.CoastUnmatched != nil {
		c.CoastUnmatched = other.CoastUnmatched
	}
	if other.DetectionSkipFrames != nil {
		c.DetectionSkipFrames = other.DetectionSkipFrames
	}
	if other.EventLogging != nil {
		c.EventLogging = other.EventLogging
	}
	if other.MinScore != nil {
		c.MinScore = other.MinScore
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file is
// validated to have a .json extension and stay under the max file size.
// Fields omitted from the JSON retain their defaults.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath, searching the current directory and common parent
// directories. Panics if the file cannot be loaded; intended for tests
// and binaries that have already validated config availability.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/<pkg>/
		"../../../" + DefaultConfigPath, // from internal/storage/sqlite/ and cmd/tools/*
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}
