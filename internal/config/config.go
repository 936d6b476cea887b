// Package config loads and validates the YAML configuration surfaces for
// the feature registry, discovery pipeline, and learning subsystem,
// following the LoadXConfig(path)+Validate() idiom in
// internal/application/config.go.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FeatureParams holds the tunable parameters for a single named streaming
// feature operator (e.g. EMA period, RSI window).
type FeatureParams map[string]float64

// FeatureRegistryConfig configures which streaming features are active and
// with what parameters (spec.md §4.2).
type FeatureRegistryConfig struct {
	EnabledFeatures []string                 `yaml:"enabledFeatures"`
	Params          map[string]FeatureParams `yaml:"params"`
}

func (c *FeatureRegistryConfig) Validate() error {
	if len(c.EnabledFeatures) == 0 {
		return fmt.Errorf("config: enabledFeatures must not be empty")
	}
	seen := make(map[string]bool, len(c.EnabledFeatures))
	for _, name := range c.EnabledFeatures {
		if name == "" {
			return fmt.Errorf("config: enabledFeatures contains an empty name")
		}
		if seen[name] {
			return fmt.Errorf("config: enabledFeatures contains duplicate %q", name)
		}
		seen[name] = true
	}
	return nil
}

// DiscoveryConfig configures the edge discovery pipeline (spec.md §4.5).
type DiscoveryConfig struct {
	Seed             int64   `yaml:"seed"`
	MaxEdgesPerRun   int     `yaml:"maxEdgesPerRun"`
	MinSupport       int     `yaml:"minSupport"`
	ReturnThreshold  float64 `yaml:"returnThreshold"`
	TStatThreshold   float64 `yaml:"tStatThreshold"`
	ScanRatePerSec   float64 `yaml:"scanRatePerSec"`
}

func (c *DiscoveryConfig) Validate() error {
	if c.MaxEdgesPerRun <= 0 {
		return fmt.Errorf("config: maxEdgesPerRun must be positive, got %d", c.MaxEdgesPerRun)
	}
	if c.MinSupport <= 0 {
		return fmt.Errorf("config: minSupport must be positive, got %d", c.MinSupport)
	}
	if c.TStatThreshold <= 0 {
		return fmt.Errorf("config: tStatThreshold must be positive, got %f", c.TStatThreshold)
	}
	if c.ScanRatePerSec <= 0 {
		return fmt.Errorf("config: scanRatePerSec must be positive, got %f", c.ScanRatePerSec)
	}
	return nil
}

// OutcomeConfig configures the trade outcome collector (spec.md §4.7).
type OutcomeConfig struct {
	FlushBufferSize int           `yaml:"flushBufferSize"`
	FlushInterval   time.Duration `yaml:"flushInterval"`
	RotateBytes     int64         `yaml:"rotateBytes"`
	Dir             string        `yaml:"dir"`
}

func (c *OutcomeConfig) Validate() error {
	if c.FlushBufferSize <= 0 {
		return fmt.Errorf("config: flushBufferSize must be positive, got %d", c.FlushBufferSize)
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("config: flushInterval must be positive, got %s", c.FlushInterval)
	}
	if c.RotateBytes <= 0 {
		return fmt.Errorf("config: rotateBytes must be positive, got %d", c.RotateBytes)
	}
	if c.Dir == "" {
		return fmt.Errorf("config: dir must not be empty")
	}
	return nil
}

// ConfidenceConfig configures the EMA confidence updater (spec.md §4.8).
type ConfidenceConfig struct {
	EMAAlpha               float64 `yaml:"emaAlpha"`
	DriftConfidenceDrop    float64 `yaml:"driftConfidenceDrop"`
	DriftConsecutiveLosses int     `yaml:"driftConsecutiveLosses"`
	DriftWinRateDrop       float64 `yaml:"driftWinRateDrop"`
}

func (c *ConfidenceConfig) Validate() error {
	if c.EMAAlpha <= 0 || c.EMAAlpha > 1 {
		return fmt.Errorf("config: emaAlpha must be in (0,1], got %f", c.EMAAlpha)
	}
	if c.DriftConsecutiveLosses <= 0 {
		return fmt.Errorf("config: driftConsecutiveLosses must be positive, got %d", c.DriftConsecutiveLosses)
	}
	return nil
}

// RevalidationConfig configures the revalidation runner (spec.md §4.9).
type RevalidationConfig struct {
	Cooldown       time.Duration `yaml:"cooldown"`
	MaxConcurrent  int           `yaml:"maxConcurrent"`
	CircuitTimeout time.Duration `yaml:"circuitTimeout"`
}

func (c *RevalidationConfig) Validate() error {
	if c.Cooldown <= 0 {
		return fmt.Errorf("config: cooldown must be positive, got %s", c.Cooldown)
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("config: maxConcurrent must be positive, got %d", c.MaxConcurrent)
	}
	if c.CircuitTimeout <= 0 {
		return fmt.Errorf("config: circuitTimeout must be positive, got %s", c.CircuitTimeout)
	}
	return nil
}

// ImportanceConfig configures the feature importance tracker (spec.md §4.10).
type ImportanceConfig struct {
	MinSamples   int `yaml:"minSamples"`
	HistoryDepth int `yaml:"historyDepth"`
}

func (c *ImportanceConfig) Validate() error {
	if c.MinSamples <= 1 {
		return fmt.Errorf("config: minSamples must be greater than 1, got %d", c.MinSamples)
	}
	if c.HistoryDepth <= 0 {
		return fmt.Errorf("config: historyDepth must be positive, got %d", c.HistoryDepth)
	}
	return nil
}

// RefinementConfig configures the behavior refinement engine (spec.md §4.11).
type RefinementConfig struct {
	MaxProposalsPerRun int `yaml:"maxProposalsPerRun"`
	HistoryDepth       int `yaml:"historyDepth"`
}

func (c *RefinementConfig) Validate() error {
	if c.MaxProposalsPerRun <= 0 {
		return fmt.Errorf("config: maxProposalsPerRun must be positive, got %d", c.MaxProposalsPerRun)
	}
	if c.HistoryDepth <= 0 {
		return fmt.Errorf("config: historyDepth must be positive, got %d", c.HistoryDepth)
	}
	return nil
}

// ScheduleConfig configures the learning scheduler's cycle cadence
// (spec.md §4.12).
type ScheduleConfig struct {
	DailyAt        string `yaml:"dailyAt"`
	WeeklyOn       string `yaml:"weeklyOn"`
	MonthlyOnDay   int    `yaml:"monthlyOnDay"`
	RunHistoryDepth int   `yaml:"runHistoryDepth"`
}

func (c *ScheduleConfig) Validate() error {
	if c.RunHistoryDepth <= 0 {
		return fmt.Errorf("config: runHistoryDepth must be positive, got %d", c.RunHistoryDepth)
	}
	return nil
}

// LearningConfig is the full learning-subsystem config tree (spec.md §4.7-4.12).
type LearningConfig struct {
	Outcome       OutcomeConfig       `yaml:"outcome"`
	Confidence    ConfidenceConfig    `yaml:"confidence"`
	Revalidation  RevalidationConfig  `yaml:"revalidation"`
	Importance    ImportanceConfig    `yaml:"importance"`
	Refinement    RefinementConfig    `yaml:"refinement"`
	Schedule      ScheduleConfig      `yaml:"schedule"`
}

func (c *LearningConfig) Validate() error {
	for _, v := range []interface{ Validate() error }{
		&c.Outcome, &c.Confidence, &c.Revalidation, &c.Importance, &c.Refinement, &c.Schedule,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Config is the top-level process configuration.
type Config struct {
	FeatureRegistry FeatureRegistryConfig `yaml:"featureRegistry"`
	Discovery       DiscoveryConfig       `yaml:"discovery"`
	Learning        LearningConfig        `yaml:"learning"`
}

func (c *Config) Validate() error {
	if err := c.FeatureRegistry.Validate(); err != nil {
		return err
	}
	if err := c.Discovery.Validate(); err != nil {
		return err
	}
	if err := c.Learning.Validate(); err != nil {
		return err
	}
	return nil
}

// Load reads and validates a Config from a YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid %s: %w", path, err)
	}
	return &cfg, nil
}
