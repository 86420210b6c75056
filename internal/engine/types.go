package engine

import (
	"time"

	"github.com/fyrsmithlabs/shiftd/internal/generator"
	"github.com/fyrsmithlabs/shiftd/internal/health"
	"github.com/fyrsmithlabs/shiftd/internal/schedule"
)

// State is the engine lifecycle state.
type State string

const (
	StateUninitialized    State = "uninitialized"
	StateInitializing     State = "initializing"
	StateRunning          State = "running"
	StateStopped          State = "stopped"
	StateEmergencyStopped State = "emergency_stopped"
)

// NeedKind classifies a scheduling need.
type NeedKind string

const (
	// NeedMonthlyForecast asks for next month's schedule ahead of time.
	NeedMonthlyForecast NeedKind = "monthly_forecast"

	// NeedCompletion asks to fill an under-filled current period.
	NeedCompletion NeedKind = "completion"
)

// Priority orders scheduling needs.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
)

// Need is an ephemeral request record produced by the identify-needs
// step of a scheduling tick. Needs are created fresh each tick and
// never persisted.
type Need struct {
	ID       string         `json:"id"`
	Kind     NeedKind       `json:"kind"`
	Month    schedule.Month `json:"month"`
	Priority Priority       `json:"priority"`
	Reason   string         `json:"reason"`
}

// FailureRecord captures one caught tick failure.
type FailureRecord struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"time"`
	Operation string    `json:"operation"`
	Message   string    `json:"message"`
	Recovered bool      `json:"recovered"`
}

// HealingRecord captures one self-healing attempt. Every attempt is
// recorded with an explicit outcome; success rate is improved over
// total.
type HealingRecord struct {
	ID          string         `json:"id"`
	Time        time.Time      `json:"time"`
	Month       schedule.Month `json:"month"`
	ScoreBefore float64        `json:"score_before"`
	ScoreAfter  float64        `json:"score_after"`
	Improved    bool           `json:"improved"`
}

// Metrics are the engine's operational counters. Owned exclusively by
// the engine; Status returns copies.
type Metrics struct {
	StartedAt       time.Time       `json:"started_at"`
	OperationDays   int             `json:"operation_days"`
	GenerationCount int             `json:"generation_count"`
	AutoCorrections int             `json:"auto_corrections"`
	TicksSkipped    int             `json:"ticks_skipped"`
	LastHealthCheck time.Time       `json:"last_health_check"`
	Uptime          time.Duration   `json:"uptime"`
	AccuracyRate    float64         `json:"accuracy_rate"`
	Failures        []FailureRecord `json:"failures"`
}

// CacheStats summarizes prediction cache behavior.
type CacheStats struct {
	Size     int     `json:"size"`
	Hits     int     `json:"hits"`
	Misses   int     `json:"misses"`
	Evicted  int     `json:"evicted"`
	HitRatio float64 `json:"hit_ratio"`
}

// Status is a pure projection of engine state for dashboards.
type Status struct {
	Initialized        bool          `json:"initialized"`
	Autonomous         bool          `json:"autonomous"`
	State              State         `json:"state"`
	Config             Config        `json:"config"`
	Metrics            Metrics       `json:"metrics"`
	CacheSize          int           `json:"cache_size"`
	HealthStatus       health.Status `json:"health_status"`
	Monitored          string        `json:"monitored"`
	SelfHealingEnabled bool          `json:"self_healing_enabled"`
	LastHealthCheck    time.Time     `json:"last_health_check"`
}

// HealingSummary aggregates the healing history.
type HealingSummary struct {
	Attempts    int             `json:"attempts"`
	Improved    int             `json:"improved"`
	SuccessRate float64         `json:"success_rate"`
	Threshold   float64         `json:"threshold"`
	Recent      []HealingRecord `json:"recent"`
}

// PerformanceSummary carries measured aggregates for the report. All
// values are computed from real history, not canned.
type PerformanceSummary struct {
	MeanIntelligenceScore float64       `json:"mean_intelligence_score"`
	GenerationCount       int           `json:"generation_count"`
	LastGenerationTime    time.Duration `json:"last_generation_time"`
	ResponseEstimateMS    float64       `json:"response_estimate_ms"`
	MemoryEstimateMB      float64       `json:"memory_estimate_mb"`
}

// IntelligenceReport is the nested report consumed by dashboards.
type IntelligenceReport struct {
	GeneratedAt time.Time              `json:"generated_at"`
	State       State                  `json:"state"`
	Health      health.Report          `json:"health"`
	Performance PerformanceSummary     `json:"performance"`
	Healing     HealingSummary         `json:"healing"`
	Cache       CacheStats             `json:"cache"`
	System      generator.SystemStatus `json:"system"`
}
