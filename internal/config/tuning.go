package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for the attention
// pipeline. The schema matches the /api/attention/params endpoint so the
// same JSON can be used for both startup configuration and runtime
// updates. All fields are optional; nil fields fall back to defaults via
// the Get* accessors, so partial configs are safe.
type TuningConfig struct {
	// Fixation detector params
	MinDwellMs           *int     `json:"min_dwell_ms,omitempty"`
	EMAAlpha             *float64 `json:"ema_alpha,omitempty"`
	FixationRadius       *float64 `json:"fixation_radius,omitempty"`
	MicroSaccadeWindowMs *int     `json:"micro_saccade_window_ms,omitempty"`
	ConfidenceFloor      *float64 `json:"confidence_floor,omitempty"`

	// Ray emission params
	MinConeSpread *float64 `json:"min_cone_spread,omitempty"` // radians
	MaxConeSpread *float64 `json:"max_cone_spread,omitempty"` // radians

	// Scorer params
	MaxHypotheses    *int     `json:"max_hypotheses,omitempty"`
	RecencyDecayRate *float64 `json:"recency_decay_rate,omitempty"` // retained fraction per second
	WeightGeometry   *float64 `json:"weight_geometry,omitempty"`
	WeightDwell      *float64 `json:"weight_dwell,omitempty"`
	WeightSalience   *float64 `json:"weight_salience,omitempty"`
	WeightRecency    *float64 `json:"weight_recency,omitempty"`
	WeightContext    *float64 `json:"weight_context,omitempty"`

	// Resolver params
	DeferThreshold *float64 `json:"defer_threshold,omitempty"`
	ConflictMargin *float64 `json:"conflict_margin,omitempty"`

	// Pipeline params
	SampleQueueSize     *int    `json:"sample_queue_size,omitempty"`
	FixationQueueSize   *int    `json:"fixation_queue_size,omitempty"`
	HypothesisQueueSize *int    `json:"hypothesis_queue_size,omitempty"`
	SensorIdleTimeout   *string `json:"sensor_idle_timeout,omitempty"` // duration string like "2s"
	QueryTimeout        *string `json:"query_timeout,omitempty"`       // duration string like "20ms"
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file is
// validated to ensure it has a .json extension and is under the max file
// size. Fields omitted from the JSON file retain their default values.
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
	const maxFileSize = 1 * 1024 * 1024
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
// DefaultConfigPath. It searches for the file in the current directory
// and common parent directories. Panics if the file cannot be loaded,
// intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/attention/pipeline/
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid. Only set
// fields are checked; nil fields always pass because their defaults are
// known-good.
func (c *TuningConfig) Validate() error {
	if c.MinDwellMs != nil {
		if *c.MinDwellMs < 50 || *c.MinDwellMs > 5000 {
			return fmt.Errorf("min_dwell_ms must be between 50 and 5000, got %d", *c.MinDwellMs)
		}
	}
	if c.EMAAlpha != nil {
		if *c.EMAAlpha <= 0 || *c.EMAAlpha > 1 {
			return fmt.Errorf("ema_alpha must be in (0, 1], got %f", *c.EMAAlpha)
		}
	}
	if c.FixationRadius != nil {
		if *c.FixationRadius <= 0 || *c.FixationRadius > 0.5 {
			return fmt.Errorf("fixation_radius must be in (0, 0.5], got %f", *c.FixationRadius)
		}
	}
	if c.MicroSaccadeWindowMs != nil {
		if *c.MicroSaccadeWindowMs < 0 || *c.MicroSaccadeWindowMs > 1000 {
			return fmt.Errorf("micro_saccade_window_ms must be between 0 and 1000, got %d", *c.MicroSaccadeWindowMs)
		}
	}
	if c.ConfidenceFloor != nil {
		if *c.ConfidenceFloor < 0 || *c.ConfidenceFloor >= 1 {
			return fmt.Errorf("confidence_floor must be in [0, 1), got %f", *c.ConfidenceFloor)
		}
	}
	if c.MinConeSpread != nil {
		if *c.MinConeSpread <= 0 {
			return fmt.Errorf("min_cone_spread must be positive, got %f", *c.MinConeSpread)
		}
	}
	if c.MaxConeSpread != nil {
		if *c.MaxConeSpread <= 0 {
			return fmt.Errorf("max_cone_spread must be positive, got %f", *c.MaxConeSpread)
		}
	}
	// Check the ordering whenever either end is set, so a patch naming
	// only one side is still validated against the other's effective value.
	if c.MinConeSpread != nil || c.MaxConeSpread != nil {
		min, max := c.GetMinConeSpread(), c.GetMaxConeSpread()
		if max < min {
			return fmt.Errorf("max_cone_spread (%f) must be >= min_cone_spread (%f)", max, min)
		}
	}
	if c.MaxHypotheses != nil {
		if *c.MaxHypotheses < 1 || *c.MaxHypotheses > 64 {
			return fmt.Errorf("max_hypotheses must be between 1 and 64, got %d", *c.MaxHypotheses)
		}
	}
	if c.RecencyDecayRate != nil {
		if *c.RecencyDecayRate <= 0 || *c.RecencyDecayRate > 1 {
			return fmt.Errorf("recency_decay_rate must be in (0, 1], got %f", *c.RecencyDecayRate)
		}
	}
	for name, w := range map[string]*float64{
		"weight_geometry": c.WeightGeometry,
		"weight_dwell":    c.WeightDwell,
		"weight_salience": c.WeightSalience,
		"weight_recency":  c.WeightRecency,
		"weight_context":  c.WeightContext,
	} {
		if w != nil && (*w < 0 || *w > 1) {
			return fmt.Errorf("%s must be in [0, 1], got %f", name, *w)
		}
	}
	if c.DeferThreshold != nil {
		if *c.DeferThreshold <= 0 || *c.DeferThreshold >= 1 {
			return fmt.Errorf("defer_threshold must be in (0, 1), got %f", *c.DeferThreshold)
		}
	}
	if c.ConflictMargin != nil {
		if *c.ConflictMargin < 0 || *c.ConflictMargin >= 0.5 {
			return fmt.Errorf("conflict_margin must be in [0, 0.5), got %f", *c.ConflictMargin)
		}
	}
	for name, q := range map[string]*int{
		"sample_queue_size":     c.SampleQueueSize,
		"fixation_queue_size":   c.FixationQueueSize,
		"hypothesis_queue_size": c.HypothesisQueueSize,
	} {
		if q != nil && (*q < 1 || *q > 65536) {
			return fmt.Errorf("%s must be between 1 and 65536, got %d", name, *q)
		}
	}
	if c.SensorIdleTimeout != nil && *c.SensorIdleTimeout != "" {
		if _, err := time.ParseDuration(*c.SensorIdleTimeout); err != nil {
			return fmt.Errorf("invalid sensor_idle_timeout '%s': %w", *c.SensorIdleTimeout, err)
		}
	}
	if c.QueryTimeout != nil && *c.QueryTimeout != "" {
		if _, err := time.ParseDuration(*c.QueryTimeout); err != nil {
			return fmt.Errorf("invalid query_timeout '%s': %w", *c.QueryTimeout, err)
		}
	}
	return nil
}

// Merge returns a copy of c with every non-nil field of other applied on
// top. Used by the params endpoint so a partial update only touches the
// fields it names.
func (c *TuningConfig) Merge(other *TuningConfig) *TuningConfig {
	merged := *c
	if other == nil {
		return &merged
	}
	if other.MinDwellMs != nil {
		merged.MinDwellMs = other.MinDwellMs
	}
	if other.EMAAlpha != nil {
		merged.EMAAlpha = other.EMAAlpha
	}
	if other.FixationRadius != nil {
		merged.FixationRadius = other.FixationRadius
	}
	if other.MicroSaccadeWindowMs != nil {
		merged.MicroSaccadeWindowMs = other.MicroSaccadeWindowMs
	}
	if other.ConfidenceFloor != nil {
		merged.ConfidenceFloor = other.ConfidenceFloor
	}
	if other.MinConeSpread != nil {
		merged.MinConeSpread = other.MinConeSpread
	}
	if other.MaxConeSpread != nil {
		merged.MaxConeSpread = other.MaxConeSpread
	}
	if other.MaxHypotheses != nil {
		merged.MaxHypotheses = other.MaxHypotheses
	}
	if other.RecencyDecayRate != nil {
		merged.RecencyDecayRate = other.RecencyDecayRate
	}
	if other.WeightGeometry != nil {
		merged.WeightGeometry = other.WeightGeometry
	}
	if other.WeightDwell != nil {
		merged.WeightDwell = other.WeightDwell
	}
	if other.WeightSalience != nil {
		merged.WeightSalience = other.WeightSalience
	}
	if other.WeightRecency != nil {
		merged.WeightRecency = other.WeightRecency
	}
	if other.WeightContext != nil {
		merged.WeightContext = other.WeightContext
	}
	if other.DeferThreshold != nil {
		merged.DeferThreshold = other.DeferThreshold
	}
	if other.ConflictMargin != nil {
		merged.ConflictMargin = other.ConflictMargin
	}
	if other.SampleQueueSize != nil {
		merged.SampleQueueSize = other.SampleQueueSize
	}
	if other.FixationQueueSize != nil {
		merged.FixationQueueSize = other.FixationQueueSize
	}
	if other.HypothesisQueueSize != nil {
		merged.HypothesisQueueSize = other.HypothesisQueueSize
	}
	if other.SensorIdleTimeout != nil {
		merged.SensorIdleTimeout = other.SensorIdleTimeout
	}
	if other.QueryTimeout != nil {
		merged.QueryTimeout = other.QueryTimeout
	}
	return &merged
}

// GetMinDwell returns the min_dwell_ms value as a duration or the default.
func (c *TuningConfig) GetMinDwell() time.Duration {
	if c.MinDwellMs == nil {
		return 500 * time.Millisecond
	}
	return time.Duration(*c.MinDwellMs) * time.Millisecond
}

// GetEMAAlpha returns the ema_alpha value or the default.
func (c *TuningConfig) GetEMAAlpha() float64 {
	if c.EMAAlpha == nil {
		return 0.3
	}
	return *c.EMAAlpha
}

// GetFixationRadius returns the fixation_radius value or the default.
func (c *TuningConfig) GetFixationRadius() float64 {
	if c.FixationRadius == nil {
		return 0.05
	}
	return *c.FixationRadius
}

// GetMicroSaccadeWindow returns micro_saccade_window_ms as a duration or the default.
func (c *TuningConfig) GetMicroSaccadeWindow() time.Duration {
	if c.MicroSaccadeWindowMs == nil {
		return 80 * time.Millisecond
	}
	return time.Duration(*c.MicroSaccadeWindowMs) * time.Millisecond
}

// GetConfidenceFloor returns the confidence_floor value or the default.
func (c *TuningConfig) GetConfidenceFloor() float64 {
	if c.ConfidenceFloor == nil {
		return 0.25
	}
	return *c.ConfidenceFloor
}

// GetMinConeSpread returns the min_cone_spread value (radians) or the default.
func (c *TuningConfig) GetMinConeSpread() float64 {
	if c.MinConeSpread == nil {
		return 0.02
	}
	return *c.MinConeSpread
}

// GetMaxConeSpread returns the max_cone_spread value (radians) or the default.
func (c *TuningConfig) GetMaxConeSpread() float64 {
	if c.MaxConeSpread == nil {
		return 0.25
	}
	return *c.MaxConeSpread
}

// GetMaxHypotheses returns the max_hypotheses value or the default.
func (c *TuningConfig) GetMaxHypotheses() int {
	if c.MaxHypotheses == nil {
		return 8
	}
	return *c.MaxHypotheses
}

// GetRecencyDecayRate returns the recency_decay_rate value or the default.
func (c *TuningConfig) GetRecencyDecayRate() float64 {
	if c.RecencyDecayRate == nil {
		return 0.92
	}
	return *c.RecencyDecayRate
}

// GetWeightGeometry returns the weight_geometry value or the default.
func (c *TuningConfig) GetWeightGeometry() float64 {
	if c.WeightGeometry == nil {
		return 0.45
	}
	return *c.WeightGeometry
}

// GetWeightDwell returns the weight_dwell value or the default.
func (c *TuningConfig) GetWeightDwell() float64 {
	if c.WeightDwell == nil {
		return 0.2
	}
	return *c.WeightDwell
}

// GetWeightSalience returns the weight_salience value or the default.
func (c *TuningConfig) GetWeightSalience() float64 {
	if c.WeightSalience == nil {
		return 0.2
	}
	return *c.WeightSalience
}

// GetWeightRecency returns the weight_recency value or the default.
func (c *TuningConfig) GetWeightRecency() float64 {
	if c.WeightRecency == nil {
		return 0.1
	}
	return *c.WeightRecency
}

// GetWeightContext returns the weight_context value or the default.
func (c *TuningConfig) GetWeightContext() float64 {
	if c.WeightContext == nil {
		return 0.05
	}
	return *c.WeightContext
}

// GetDeferThreshold returns the defer_threshold value or the default.
func (c *TuningConfig) GetDeferThreshold() float64 {
	if c.DeferThreshold == nil {
		return 0.55
	}
	return *c.DeferThreshold
}

// GetConflictMargin returns the conflict_margin value or the default.
func (c *TuningConfig) GetConflictMargin() float64 {
	if c.ConflictMargin == nil {
		return 0.05
	}
	return *c.ConflictMargin
}

// GetSampleQueueSize returns the sample_queue_size value or the default.
func (c *TuningConfig) GetSampleQueueSize() int {
	if c.SampleQueueSize == nil {
		return 256
	}
	return *c.SampleQueueSize
}

// GetFixationQueueSize returns the fixation_queue_size value or the default.
func (c *TuningConfig) GetFixationQueueSize() int {
	if c.FixationQueueSize == nil {
		return 16
	}
	return *c.FixationQueueSize
}

// GetHypothesisQueueSize returns the hypothesis_queue_size value or the default.
func (c *TuningConfig) GetHypothesisQueueSize() int {
	if c.HypothesisQueueSize == nil {
		return 32
	}
	return *c.HypothesisQueueSize
}

// GetSensorIdleTimeout parses and returns sensor_idle_timeout as a duration.
func (c *TuningConfig) GetSensorIdleTimeout() time.Duration {
	if c.SensorIdleTimeout == nil || *c.SensorIdleTimeout == "" {
		return 2 * time.Second
	}
	d, err := time.ParseDuration(*c.SensorIdleTimeout)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// GetQueryTimeout parses and returns query_timeout as a duration.
func (c *TuningConfig) GetQueryTimeout() time.Duration {
	if c.QueryTimeout == nil || *c.QueryTimeout == "" {
		return 20 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.QueryTimeout)
	if err != nil {
		return 20 * time.Millisecond
	}
	return d
}
