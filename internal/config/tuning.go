package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/loadcycle.report/internal/units"
)

// TuningConfig represents the root configuration for tuning parameters.
// All fields are pointers so a partial JSON file only overrides what it
// names; the Get* accessors supply defaults for everything else.
type TuningConfig struct {
	// Detection thresholds
	DetectConfidence  *float64 `json:"detect_confidence,omitempty"`
	PassingConfidence *float64 `json:"passing_confidence,omitempty"`
	RitaseConfidence  *float64 `json:"ritase_confidence,omitempty"`

	// Tracker params
	GatingDistanceSquared *float64 `json:"gating_distance_squared,omitempty"`
	ProcessNoisePos       *float64 `json:"process_noise_pos,omitempty"`
	ProcessNoiseVel       *float64 `json:"process_noise_vel,omitempty"`
	MeasurementNoise      *float64 `json:"measurement_noise,omitempty"`
	HitsToConfirm         *int     `json:"hits_to_confirm,omitempty"`
	MaxMisses             *int     `json:"max_misses,omitempty"`
	MaxMissesConfirmed    *int     `json:"max_misses_confirmed,omitempty"`
	MaxTracks             *int     `json:"max_tracks,omitempty"`
	MaxPositionJumpPx     *float64 `json:"max_position_jump_px,omitempty"`
	MaxSpeedPxPerFrame    *float64 `json:"max_speed_px_per_frame,omitempty"`
	MaxCovarianceDiag     *float64 `json:"max_covariance_diag,omitempty"`
	OcclusionCovInflation *float64 `json:"occlusion_cov_inflation,omitempty"`
	DeletedGraceFrames    *int     `json:"deleted_grace_frames,omitempty"`
	MaxTrackHistoryLength *int     `json:"max_track_history_length,omitempty"`

	// Pipeline params
	DetectAhead        *int `json:"detect_ahead,omitempty"`
	JPEGQuality        *int `json:"jpeg_quality,omitempty"`
	ProgressEveryFrame *int `json:"progress_every_frames,omitempty"`
	LogEveryFrames     *int `json:"log_every_frames,omitempty"`

	// Rollup worker params
	RollupInterval *string `json:"rollup_interval,omitempty"` // duration string like "15m"

	// Report params
	ReportTimezone *string `json:"report_timezone,omitempty"` // IANA name, e.g. "Asia/Makassar"
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file retain their default
// values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
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

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	checkUnit := func(name string, v *float64) error {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *v)
		}
		return nil
	}
	if err := checkUnit("detect_confidence", c.DetectConfidence); err != nil {
		return err
	}
	if err := checkUnit("passing_confidence", c.PassingConfidence); err != nil {
		return err
	}
	if err := checkUnit("ritase_confidence", c.RitaseConfidence); err != nil {
		return err
	}

	if c.DetectAhead != nil && *c.DetectAhead < 0 {
		return fmt.Errorf("detect_ahead must be non-negative, got %d", *c.DetectAhead)
	}
	if c.JPEGQuality != nil && (*c.JPEGQuality < 1 || *c.JPEGQuality > 100) {
		return fmt.Errorf("jpeg_quality must be between 1 and 100, got %d", *c.JPEGQuality)
	}
	if c.MaxTracks != nil && *c.MaxTracks < 1 {
		return fmt.Errorf("max_tracks must be positive, got %d", *c.MaxTracks)
	}
	if c.MaxMisses != nil && *c.MaxMisses < 1 {
		return fmt.Errorf("max_misses must be positive, got %d", *c.MaxMisses)
	}

	if c.RollupInterval != nil && *c.RollupInterval != "" {
		if _, err := time.ParseDuration(*c.RollupInterval); err != nil {
			return fmt.Errorf("invalid rollup_interval '%s': %w", *c.RollupInterval, err)
		}
	}

	if c.ReportTimezone != nil && *c.ReportTimezone != "" && !units.IsTimezoneValid(*c.ReportTimezone) {
		return fmt.Errorf("invalid report_timezone %q", *c.ReportTimezone)
	}

	return nil
}

// GetDetectConfidence returns the detect_confidence value or the default.
func (c *TuningConfig) GetDetectConfidence() float64 {
	if c.DetectConfidence == nil {
		return 0.85
	}
	return *c.DetectConfidence
}

// GetPassingConfidence returns the passing_confidence value or the default.
func (c *TuningConfig) GetPassingConfidence() float64 {
	if c.PassingConfidence == nil {
		return 0.80
	}
	return *c.PassingConfidence
}

// GetRitaseConfidence returns the ritase_confidence value or the default.
func (c *TuningConfig) GetRitaseConfidence() float64 {
	if c.RitaseConfidence == nil {
		return 0.90
	}
	return *c.RitaseConfidence
}

// GetGatingDistanceSquared returns the gating_distance_squared value or the default.
func (c *TuningConfig) GetGatingDistanceSquared() float64 {
	if c.GatingDistanceSquared == nil {
		return 16.0
	}
	return *c.GatingDistanceSquared
}

// GetProcessNoisePos returns the process_noise_pos value or the default.
func (c *TuningConfig) GetProcessNoisePos() float64 {
	if c.ProcessNoisePos == nil {
		return 1.0
	}
	return *c.ProcessNoisePos
}

// GetProcessNoiseVel returns the process_noise_vel value or the default.
func (c *TuningConfig) GetProcessNoiseVel() float64 {
	if c.ProcessNoiseVel == nil {
		return 0.5
	}
	return *c.ProcessNoiseVel
}

// GetMeasurementNoise returns the measurement_noise value or the default.
func (c *TuningConfig) GetMeasurementNoise() float64 {
	if c.MeasurementNoise == nil {
		return 4.0
	}
	return *c.MeasurementNoise
}

// GetHitsToConfirm returns the hits_to_confirm value or the default.
func (c *TuningConfig) GetHitsToConfirm() int {
	if c.HitsToConfirm == nil {
		return 3
	}
	return *c.HitsToConfirm
}

// GetMaxMisses returns the max_misses value or the default.
func (c *TuningConfig) GetMaxMisses() int {
	if c.MaxMisses == nil {
		return 15
	}
	return *c.MaxMisses
}

// GetMaxMissesConfirmed returns the max_misses_confirmed value or the default.
func (c *TuningConfig) GetMaxMissesConfirmed() int {
	if c.MaxMissesConfirmed == nil {
		return 30
	}
	return *c.MaxMissesConfirmed
}

// GetMaxTracks returns the max_tracks value or the default.
func (c *TuningConfig) GetMaxTracks() int {
	if c.MaxTracks == nil {
		return 64
	}
	return *c.MaxTracks
}

// GetMaxPositionJumpPx returns the max_position_jump_px value or the default.
func (c *TuningConfig) GetMaxPositionJumpPx() float64 {
	if c.MaxPositionJumpPx == nil {
		return 250.0
	}
	return *c.MaxPositionJumpPx
}

// GetMaxSpeedPxPerFrame returns the max_speed_px_per_frame value or the default.
func (c *TuningConfig) GetMaxSpeedPxPerFrame() float64 {
	if c.MaxSpeedPxPerFrame == nil {
		return 120.0
	}
	return *c.MaxSpeedPxPerFrame
}

// GetMaxCovarianceDiag returns the max_covariance_diag value or the default.
func (c *TuningConfig) GetMaxCovarianceDiag() float64 {
	if c.MaxCovarianceDiag == nil {
		return 10000.0
	}
	return *c.MaxCovarianceDiag
}

// GetOcclusionCovInflation returns the occlusion_cov_inflation value or the default.
func (c *TuningConfig) GetOcclusionCovInflation() float64 {
	if c.OcclusionCovInflation == nil {
		return 2.0
	}
	return *c.OcclusionCovInflation
}

// GetDeletedGraceFrames returns the deleted_grace_frames value or the default.
func (c *TuningConfig) GetDeletedGraceFrames() int {
	if c.DeletedGraceFrames == nil {
		return 30
	}
	return *c.DeletedGraceFrames
}

// GetMaxTrackHistoryLength returns the max_track_history_length value or the default.
func (c *TuningConfig) GetMaxTrackHistoryLength() int {
	if c.MaxTrackHistoryLength == nil {
		return 300
	}
	return *c.MaxTrackHistoryLength
}

// GetDetectAhead returns the detect_ahead value or the default.
func (c *TuningConfig) GetDetectAhead() int {
	if c.DetectAhead == nil {
		return 4
	}
	return *c.DetectAhead
}

// GetJPEGQuality returns the jpeg_quality value or the default.
func (c *TuningConfig) GetJPEGQuality() int {
	if c.JPEGQuality == nil {
		return 90
	}
	return *c.JPEGQuality
}

// GetProgressEveryFrames returns the progress_every_frames value or the default.
func (c *TuningConfig) GetProgressEveryFrames() int {
	if c.ProgressEveryFrame == nil {
		return 5
	}
	return *c.ProgressEveryFrame
}

// GetLogEveryFrames returns the log_every_frames value or the default.
func (c *TuningConfig) GetLogEveryFrames() int {
	if c.LogEveryFrames == nil {
		return 200
	}
	return *c.LogEveryFrames
}

// GetRollupInterval returns the rollup_interval value or the default.
// Validate has already confirmed the string parses.
func (c *TuningConfig) GetRollupInterval() time.Duration {
	if c.RollupInterval == nil || *c.RollupInterval == "" {
		return 15 * time.Minute
	}
	d, err := time.ParseDuration(*c.RollupInterval)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

// GetReportTimezone returns the report_timezone value or UTC.
func (c *TuningConfig) GetReportTimezone() string {
	if c.ReportTimezone == nil || *c.ReportTimezone == "" {
		return "UTC"
	}
	return *c.ReportTimezone
}
