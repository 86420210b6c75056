package engine

import (
	"time"

	"golang.org/x/time/rate"
)

// Config is the engine's durable configuration. It is set once at
// construction and replaced wholesale on reinitialization, never
// partially mutated mid-run.
type Config struct {
	// GenerationInterval is the period of the scheduling loop.
	GenerationInterval time.Duration `json:"generation_interval"`

	// HealthInterval is the period of the health-check loop.
	HealthInterval time.Duration `json:"health_interval"`

	// ImprovementInterval is the period of the self-improvement loop.
	ImprovementInterval time.Duration `json:"improvement_interval"`

	// MonitoringEnabled controls whether the health loop runs.
	MonitoringEnabled bool `json:"monitoring_enabled"`

	// AutoCorrectionEnabled controls self-healing regeneration.
	AutoCorrectionEnabled bool `json:"auto_correction_enabled"`

	// SelfImprovementEnabled controls the improvement loop.
	SelfImprovementEnabled bool `json:"self_improvement_enabled"`

	// MultiPeriod and CrossLocation are passed through to generation
	// requests.
	MultiPeriod   bool `json:"multi_period"`
	CrossLocation bool `json:"cross_location"`

	// CacheRetention is how long prediction cache entries live.
	CacheRetention time.Duration `json:"cache_retention"`

	// FillThreshold is the fill ratio below which a period is
	// considered incomplete.
	FillThreshold float64 `json:"fill_threshold"`

	// HealingThreshold is the intelligence score (0-100) below which a
	// corrective regeneration is attempted. The improvement loop may
	// nudge it upward, capped at HealingThresholdCap.
	HealingThreshold    float64 `json:"healing_threshold"`
	HealingThresholdCap float64 `json:"healing_threshold_cap"`

	// ForecastDay is the day of month after which next month's
	// forecast need is emitted.
	ForecastDay int `json:"forecast_day"`

	// HistoryLimit bounds the failure and healing history rings.
	HistoryLimit int `json:"history_limit"`

	// GenerationRate and GenerationBurst bound how fast the engine may
	// call the generator.
	GenerationRate  rate.Limit `json:"generation_rate"`
	GenerationBurst int        `json:"generation_burst"`
}

// DefaultConfig returns production defaults: daily generation, health
// checks every five minutes, weekly self-improvement, week-long cache
// retention.
func DefaultConfig() Config {
	return Config{
		GenerationInterval:     24 * time.Hour,
		HealthInterval:         5 * time.Minute,
		ImprovementInterval:    7 * 24 * time.Hour,
		MonitoringEnabled:      true,
		AutoCorrectionEnabled:  true,
		SelfImprovementEnabled: true,
		CacheRetention:         7 * 24 * time.Hour,
		FillThreshold:          0.8,
		HealingThreshold:       90,
		HealingThresholdCap:    98,
		ForecastDay:            25,
		HistoryLimit:           100,
		GenerationRate:         rate.Limit(1),
		GenerationBurst:        4,
	}
}

// withDefaults fills zero-valued fields so a partially specified config
// behaves sanely.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.GenerationInterval <= 0 {
		c.GenerationInterval = d.GenerationInterval
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = d.HealthInterval
	}
	if c.ImprovementInterval <= 0 {
		c.ImprovementInterval = d.ImprovementInterval
	}
	if c.CacheRetention <= 0 {
		c.CacheRetention = d.CacheRetention
	}
	if c.FillThreshold <= 0 {
		c.FillThreshold = d.FillThreshold
	}
	if c.HealingThreshold <= 0 {
		c.HealingThreshold = d.HealingThreshold
	}
	if c.HealingThresholdCap <= 0 {
		c.HealingThresholdCap = d.HealingThresholdCap
	}
	if c.ForecastDay <= 0 {
		c.ForecastDay = d.ForecastDay
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = d.HistoryLimit
	}
	if c.GenerationRate <= 0 {
		c.GenerationRate = d.GenerationRate
	}
	if c.GenerationBurst <= 0 {
		c.GenerationBurst = d.GenerationBurst
	}
	return c
}
