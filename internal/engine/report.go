package engine

import (
	"context"

	"github.com/fyrsmithlabs/shiftd/internal/health"
)

// recentHealingWindow bounds the record slice embedded in a report.
const recentHealingWindow = 10

// Report runs a synchronous health check and assembles the nested
// intelligence report. It requires a running or stopped engine; before
// Initialize or after an emergency stop it returns ErrNotInitialized.
func (e *Engine) Report(ctx context.Context) (*IntelligenceReport, error) {
	e.mu.Lock()
	state := e.state
	e.mu.Unlock()

	switch state {
	case StateUninitialized, StateInitializing, StateEmergencyStopped:
		return nil, ErrNotInitialized
	}

	report := e.runHealthCheck(ctx)
	sys := e.gen.SystemStatus()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Counters rather than the bounded record ring, so the rate stays
	// attempt-accurate once old records rotate out.
	attempts, improved := e.healingAttempts, e.autoCorrections
	var successRate float64
	if attempts > 0 {
		successRate = float64(improved) / float64(attempts)
	}

	var hitRatio float64
	if lookups := e.cacheHits + e.cacheMisses; lookups > 0 {
		hitRatio = float64(e.cacheHits) / float64(lookups)
	}

	return &IntelligenceReport{
		GeneratedAt: e.clock(),
		State:       e.state,
		Health:      report,
		Performance: PerformanceSummary{
			MeanIntelligenceScore: meanScore(e.recentScores.all()),
			GenerationCount:       e.generationCount,
			LastGenerationTime:    e.lastGenDuration,
			ResponseEstimateMS:    float64(e.lastGenDuration.Milliseconds()),
			MemoryEstimateMB:      health.EstimateMemoryMB(len(e.cache), e.generationCount),
		},
		Healing: HealingSummary{
			Attempts:    attempts,
			Improved:    improved,
			SuccessRate: successRate,
			Threshold:   e.healingThreshold,
			Recent:      e.healing.tail(recentHealingWindow),
		},
		Cache: CacheStats{
			Size:     len(e.cache),
			Hits:     e.cacheHits,
			Misses:   e.cacheMisses,
			Evicted:  e.cacheEvicted,
			HitRatio: hitRatio,
		},
		System: sys,
	}, nil
}
