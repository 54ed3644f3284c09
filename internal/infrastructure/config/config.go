package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/brightstay/property-ops-analytics/internal/domain/anomaly"
)

type Config struct {
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	Bucketing BucketingConfig `koanf:"bucketing"`
	Anomaly   AnomalyConfig   `koanf:"anomaly"`
	Forecast  ForecastConfig  `koanf:"forecast"`
	Scoring   ScoringConfig   `koanf:"scoring"`
}

type BucketingConfig struct {
	WeekStart string `koanf:"week_start" validate:"oneof=monday tuesday wednesday thursday friday saturday sunday"`
}

// WeekStartDay maps the configured weekday name to time.Weekday.
func (c BucketingConfig) WeekStartDay() time.Weekday {
	switch strings.ToLower(c.WeekStart) {
	case "sunday":
		return time.Sunday
	case "tuesday":
		return time.Tuesday
	case "wednesday":
		return time.Wednesday
	case "thursday":
		return time.Thursday
	case "friday":
		return time.Friday
	case "saturday":
		return time.Saturday
	default:
		return time.Monday
	}
}

type AnomalyConfig struct {
	SpikeMultiplier       float64 `koanf:"spike_multiplier" validate:"gt=1"`
	SystemSpikeMultiplier float64 `koanf:"system_spike_multiplier" validate:"gt=1"`
	MinVolumeBaseline     float64 `koanf:"min_volume_baseline" validate:"gte=0"`
	MinCostBaseline       float64 `koanf:"min_cost_baseline" validate:"gte=0"`
	CompletionDropRatio   float64 `koanf:"completion_drop_ratio" validate:"gt=0,lt=1"`
	MinCompletionBaseline float64 `koanf:"min_completion_baseline" validate:"gte=0,lt=1"`
	BacklogDays           int     `koanf:"backlog_days" validate:"gt=0"`
	MaxAnomalies          int     `koanf:"max_anomalies" validate:"gt=0"`
}

// DetectorConfig converts to the domain-level rule config.
func (c AnomalyConfig) DetectorConfig() anomaly.Config {
	return anomaly.Config{
		SpikeMultiplier:       c.SpikeMultiplier,
		SystemSpikeMultiplier: c.SystemSpikeMultiplier,
		MinVolumeBaseline:     c.MinVolumeBaseline,
		MinCostBaseline:       c.MinCostBaseline,
		CompletionDropRatio:   c.CompletionDropRatio,
		MinCompletionBaseline: c.MinCompletionBaseline,
		BacklogDays:           c.BacklogDays,
		MaxAnomalies:          c.MaxAnomalies,
	}
}

type ForecastConfig struct {
	WindowPeriods  int `koanf:"window_periods" validate:"gte=3"`
	HorizonPeriods int `koanf:"horizon_periods" validate:"gte=0"`
}

type ScoringConfig struct {
	Weights map[string]float64 `koanf:"weights" validate:"required,dive,gte=0"`
}

func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := Default()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if err := k.Load(file.Provider("configs/analytics.yaml"), yaml.Parser()); err != nil {
		// Config file is optional; defaults plus env cover the common case.
		_ = err
	}

	// Double underscore separates nesting levels so snake_case keys
	// survive: POA_ANOMALY__BACKLOG_DAYS -> anomaly.backlog_days.
	if err := k.Load(env.Provider("POA_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "POA_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns the shipped defaults without touching files or the
// environment. Used by tests and by callers embedding the engine.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Bucketing: BucketingConfig{
			WeekStart: "monday",
		},
		Anomaly: AnomalyConfig{
			SpikeMultiplier:       2.0,
			SystemSpikeMultiplier: 1.5,
			MinVolumeBaseline:     1.0,
			MinCostBaseline:       100.0,
			CompletionDropRatio:   0.8,
			MinCompletionBaseline: 0.5,
			BacklogDays:           90,
			MaxAnomalies:          8,
		},
		Forecast: ForecastConfig{
			WindowPeriods:  6,
			HorizonPeriods: 3,
		},
		Scoring: ScoringConfig{
			Weights: map[string]float64{
				"open_count":      2,
				"overdue_count":   3,
				"duplicate_count": 1,
				"ghost_count":     1,
				"avg_cycle_days":  0.5,
			},
		},
	}
}
