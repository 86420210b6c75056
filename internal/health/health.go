// Package health scores engine health from observed stats. The checker
// is pure: the engine feeds it a Stats sample and applies whatever
// remediation the report calls for.
package health

import "math"

// Weights for the four sub-scores. They sum to 1 so the overall score
// stays in [0,1].
const (
	weightAIEngine      = 0.4
	weightDataIntegrity = 0.3
	weightPerformance   = 0.2
	weightMemory        = 0.1
)

// Thresholds used by the checker and its consumers.
const (
	// OverallThreshold is the weighted score below which remediation
	// runs.
	OverallThreshold = 0.85

	// MemoryRemediationThreshold triggers a cache cleanup.
	MemoryRemediationThreshold = 0.7

	// AIRemediationThreshold triggers a generator reinitialization.
	AIRemediationThreshold = 0.5

	// DegradedThreshold separates degraded from critical.
	DegradedThreshold = 0.6

	responseTimeLimitMS = 5000
	performanceMemLimMB = 100
	memorySoftLimitMB   = 200
)

// Status labels the overall score.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

// Stats is one observation of the engine's operating state.
type Stats struct {
	// GeneratorInitialized reports whether the generator is ready.
	GeneratorInitialized bool

	// GeneratorErr is set when probing the generator failed outright.
	GeneratorErr bool

	// StaffCount is the roster size from the latest snapshot.
	StaffCount int

	// SnapshotErr is set when the data extractor failed.
	SnapshotErr bool

	// ResponseTimeMS is the estimated end-to-end generation response
	// time in milliseconds.
	ResponseTimeMS float64

	// MemoryMB is the estimated working-set size in megabytes.
	MemoryMB float64
}

// Report is the scored result of one health check.
type Report struct {
	AIEngine      float64 `json:"ai_engine"`
	DataIntegrity float64 `json:"data_integrity"`
	Performance   float64 `json:"performance"`
	Memory        float64 `json:"memory"`
	Overall       float64 `json:"overall"`
	Status        Status  `json:"status"`
}

// NeedsRemediation reports whether the overall score is below the
// remediation threshold.
func (r Report) NeedsRemediation() bool {
	return r.Overall < OverallThreshold
}

// NeedsCacheCleanup reports whether the memory sub-score warrants a
// cache sweep.
func (r Report) NeedsCacheCleanup() bool {
	return r.Memory < MemoryRemediationThreshold
}

// NeedsGeneratorRestart reports whether the AI sub-score warrants
// reinitializing the generator.
func (r Report) NeedsGeneratorRestart() bool {
	return r.AIEngine < AIRemediationThreshold
}

// Check scores one Stats observation.
func Check(s Stats) Report {
	r := Report{
		AIEngine:      aiScore(s),
		DataIntegrity: dataScore(s),
		Performance:   performanceScore(s),
		Memory:        memoryScore(s),
	}
	r.Overall = weightAIEngine*r.AIEngine +
		weightDataIntegrity*r.DataIntegrity +
		weightPerformance*r.Performance +
		weightMemory*r.Memory

	switch {
	case r.Overall >= OverallThreshold:
		r.Status = StatusHealthy
	case r.Overall >= DegradedThreshold:
		r.Status = StatusDegraded
	default:
		r.Status = StatusCritical
	}
	return r
}

func aiScore(s Stats) float64 {
	switch {
	case s.GeneratorErr:
		return 0
	case s.GeneratorInitialized:
		return 1
	default:
		return 0.5
	}
}

func dataScore(s Stats) float64 {
	switch {
	case s.SnapshotErr:
		return 0
	case s.StaffCount > 0:
		return 1
	default:
		return 0.5
	}
}

func performanceScore(s Stats) float64 {
	score := 0.9
	if s.ResponseTimeMS > responseTimeLimitMS {
		score -= 0.2
	}
	if s.MemoryMB > performanceMemLimMB {
		score -= 0.1
	}
	return math.Max(score, 0)
}

// memoryScore is 1 below the soft limit and decays linearly above it,
// hitting 0 at twice the limit.
func memoryScore(s Stats) float64 {
	if s.MemoryMB <= memorySoftLimitMB {
		return 1
	}
	score := 1 - (s.MemoryMB-memorySoftLimitMB)/memorySoftLimitMB
	return math.Max(score, 0)
}

// EstimateMemoryMB approximates working-set size from cache size and
// lifetime generation count, rounded to the nearest megabyte.
func EstimateMemoryMB(cacheSize, generationCount int) float64 {
	return math.Round(15 + float64(cacheSize)*0.1 + float64(generationCount)*0.01)
}
