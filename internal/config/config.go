// Package config provides configuration loading for shiftd.
package config

import (
	"fmt"

	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/shiftd/internal/engine"
)

// Config is the full shiftd configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Engine    EngineConfig    `koanf:"engine"`
	Roster    RosterConfig    `koanf:"roster"`
	NATS      NATSConfig      `koanf:"nats"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`

	// RedactNames strips staff names from log fields. On by default:
	// shift rosters are personal data.
	RedactNames bool `koanf:"redact_names"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	ServiceName string  `koanf:"service_name"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// EngineConfig is the wire form of the engine settings; durations are
// strings like "24h". Runtime() converts to the engine's own config.
type EngineConfig struct {
	GenerationInterval     Duration `koanf:"generation_interval"`
	HealthInterval         Duration `koanf:"health_interval"`
	ImprovementInterval    Duration `koanf:"improvement_interval"`
	CacheRetention         Duration `koanf:"cache_retention"`
	MonitoringEnabled      bool     `koanf:"monitoring_enabled"`
	AutoCorrectionEnabled  bool     `koanf:"auto_correction_enabled"`
	SelfImprovementEnabled bool     `koanf:"self_improvement_enabled"`
	MultiPeriod            bool     `koanf:"multi_period"`
	CrossLocation          bool     `koanf:"cross_location"`
	FillThreshold          float64  `koanf:"fill_threshold"`
	HealingThreshold       float64  `koanf:"healing_threshold"`
	HealingThresholdCap    float64  `koanf:"healing_threshold_cap"`
	ForecastDay            int      `koanf:"forecast_day"`
	HistoryLimit           int      `koanf:"history_limit"`
	GenerationRate         float64  `koanf:"generation_rate"`
	GenerationBurst        int      `koanf:"generation_burst"`
}

// Runtime converts the wire form into the engine's runtime config.
func (c EngineConfig) Runtime() engine.Config {
	return engine.Config{
		GenerationInterval:     c.GenerationInterval.Duration(),
		HealthInterval:         c.HealthInterval.Duration(),
		ImprovementInterval:    c.ImprovementInterval.Duration(),
		CacheRetention:         c.CacheRetention.Duration(),
		MonitoringEnabled:      c.MonitoringEnabled,
		AutoCorrectionEnabled:  c.AutoCorrectionEnabled,
		SelfImprovementEnabled: c.SelfImprovementEnabled,
		MultiPeriod:            c.MultiPeriod,
		CrossLocation:          c.CrossLocation,
		FillThreshold:          c.FillThreshold,
		HealingThreshold:       c.HealingThreshold,
		HealingThresholdCap:    c.HealingThresholdCap,
		ForecastDay:            c.ForecastDay,
		HistoryLimit:           c.HistoryLimit,
		GenerationRate:         rate.Limit(c.GenerationRate),
		GenerationBurst:        c.GenerationBurst,
	}
}

// RosterConfig points at the roster data file.
type RosterConfig struct {
	Path  string `koanf:"path"`
	Watch bool   `koanf:"watch"`
}

// NATSConfig configures event publishing. Publishing is disabled when
// URL is empty.
type NATSConfig struct {
	URL Secret `koanf:"url"`
}

// Validate checks the configuration for invalid combinations.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging format: %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return fmt.Errorf("telemetry enabled but endpoint is empty")
		}
		switch c.Telemetry.Protocol {
		case "grpc", "http":
		default:
			return fmt.Errorf("invalid telemetry protocol: %q", c.Telemetry.Protocol)
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			return fmt.Errorf("telemetry sample_rate must be in [0,1]: %v", c.Telemetry.SampleRate)
		}
	}

	if c.Engine.FillThreshold <= 0 || c.Engine.FillThreshold > 1 {
		return fmt.Errorf("engine fill_threshold must be in (0,1]: %v", c.Engine.FillThreshold)
	}
	if c.Engine.HealingThreshold > c.Engine.HealingThresholdCap {
		return fmt.Errorf("engine healing_threshold %v exceeds cap %v",
			c.Engine.HealingThreshold, c.Engine.HealingThresholdCap)
	}
	if c.Engine.ForecastDay < 1 || c.Engine.ForecastDay > 28 {
		return fmt.Errorf("engine forecast_day must be in [1,28]: %d", c.Engine.ForecastDay)
	}

	if c.Roster.Path == "" {
		return fmt.Errorf("roster path is required")
	}

	return nil
}
