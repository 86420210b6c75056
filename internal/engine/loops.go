package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shiftd/internal/events"
	"github.com/fyrsmithlabs/shiftd/internal/generator"
	"github.com/fyrsmithlabs/shiftd/internal/health"
)

// fixedInterval returns a constant interval function for loops that do
// not back off.
func fixedInterval(d time.Duration) func() time.Duration {
	return func() time.Duration { return d }
}

// nextGenerationInterval returns the current scheduling interval, which
// doubles while generation ticks fail and snaps back on success.
func (e *Engine) nextGenerationInterval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.genInterval
}

// runLoop drives one periodic loop. A timer (not a ticker) so the next
// interval is recomputed after each tick, which is what lets the
// scheduling loop back off.
func (e *Engine) runLoop(ctx context.Context, name string, next func() time.Duration, busy *atomic.Bool, tick func(context.Context) error) {
	defer e.wg.Done()

	timer := time.NewTimer(next())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			e.safeTick(ctx, name, busy, tick)
			timer.Reset(next())
		}
	}
}

// safeTick runs one tick with the reentrancy guard, panic recovery,
// tracing, and failure bookkeeping. Errors never escape a loop.
func (e *Engine) safeTick(ctx context.Context, name string, busy *atomic.Bool, tick func(context.Context) error) {
	if !busy.CompareAndSwap(false, true) {
		e.mu.Lock()
		e.ticksSkipped++
		e.mu.Unlock()
		if e.skippedCounter != nil {
			e.skippedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("loop", name)))
		}
		e.logger.Warn("previous tick still running, skipping", zap.String("loop", name))
		return
	}
	defer busy.Store(false)

	ctx, span := e.tracer.Start(ctx, "engine."+name+".tick")
	defer span.End()

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in %s tick: %v", name, r)
			}
		}()
		return tick(ctx)
	}()
	if e.tickDuration != nil {
		e.tickDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("loop", name)))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.recordFailure(ctx, name, err)
		if name == "scheduling" {
			e.backoffScheduling()
		}
		return
	}
	if name == "scheduling" {
		e.resetScheduling()
	}
}

// schedulingBackoffLimit bounds the backoff at this multiple of the
// configured generation interval.
const schedulingBackoffLimit = 8

// backoffScheduling doubles the scheduling interval after a failed
// tick so a persistently broken data source is not hammered daily.
func (e *Engine) backoffScheduling() {
	e.mu.Lock()
	limit := e.cfg.GenerationInterval * schedulingBackoffLimit
	e.genInterval *= 2
	if e.genInterval > limit {
		e.genInterval = limit
	}
	interval := e.genInterval
	e.mu.Unlock()

	e.logger.Warn("scheduling tick failed, backing off",
		zap.Duration("next_interval", interval))
}

// resetScheduling restores the configured interval after a successful
// tick and marks earlier scheduling failures as recovered.
func (e *Engine) resetScheduling() {
	e.mu.Lock()
	restored := e.genInterval != e.cfg.GenerationInterval
	e.genInterval = e.cfg.GenerationInterval
	if restored {
		e.markRecoveredLocked("scheduling")
	}
	e.mu.Unlock()

	if restored {
		e.logger.Info("scheduling interval restored",
			zap.Duration("interval", e.cfg.GenerationInterval))
	}
}

// schedulingTick is one pass of the generation loop: identify what the
// upcoming period needs and generate schedules for the needs that are
// not already covered by a fresh cached prediction.
func (e *Engine) schedulingTick(ctx context.Context) error {
	snap, err := e.store.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("loading roster snapshot: %w", err)
	}
	if len(snap.Staff) == 0 {
		e.logger.Debug("no staff registered, skipping generation")
		return nil
	}

	now := e.clock()
	needs := e.identifyNeeds(now, snap)

	for _, need := range needs {
		if need.Kind == NeedMonthlyForecast {
			e.mu.Lock()
			_, hit := e.cachedResult(need.Month, now)
			if hit {
				e.cacheHits++
			} else {
				e.cacheMisses++
			}
			e.mu.Unlock()
			if hit {
				e.logger.Debug("fresh prediction cached, skipping forecast",
					zap.String("month", need.Month.String()))
				continue
			}
		}
		if !e.limiter.Allow() {
			e.logger.Warn("generation rate limit reached, deferring need",
				zap.String("kind", string(need.Kind)),
				zap.String("month", need.Month.String()))
			continue
		}
		e.generate(ctx, need)
	}

	e.mu.Lock()
	e.generationCount++
	e.mu.Unlock()

	return nil
}

// generate runs the generator for one need, self-heals a low-scoring
// result when auto-correction is enabled, and caches whatever is
// adopted.
func (e *Engine) generate(ctx context.Context, need Need) {
	ctx, span := e.tracer.Start(ctx, "engine.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("need.kind", string(need.Kind)),
		attribute.String("need.month", need.Month.String()),
	)

	e.mu.Lock()
	req := generator.Request{
		Month:         need.Month,
		Strategy:      generator.StrategyBalanced,
		MultiPeriod:   e.cfg.MultiPeriod,
		CrossLocation: e.cfg.CrossLocation,
	}
	threshold := e.healingThreshold
	autoCorrect := e.cfg.AutoCorrectionEnabled
	e.mu.Unlock()

	start := time.Now()
	res, err := e.gen.Generate(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.mu.Lock()
		e.genFailed = true
		e.mu.Unlock()
		e.recordFailure(ctx, "generation", err)
		return
	}

	adopted := res
	if autoCorrect && res.Analysis.IntelligenceScore < threshold {
		adopted = e.selfHeal(ctx, need, res)
	}

	now := e.clock()
	e.mu.Lock()
	e.genFailed = false
	e.lastGenDuration = elapsed
	e.cacheResult(adopted, now)
	e.recentScores.add(adopted.Analysis.IntelligenceScore)
	e.mu.Unlock()

	if e.generationCounter != nil {
		e.generationCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(need.Kind))))
	}
	e.logger.Info("schedule generated",
		zap.String("kind", string(need.Kind)),
		zap.String("month", need.Month.String()),
		zap.Float64("score", adopted.Analysis.IntelligenceScore),
		zap.Duration("elapsed", elapsed),
	)
	e.publisher.Publish(events.Event{
		Kind:    events.KindGenerated,
		Time:    now,
		Message: need.Reason,
		Fields: map[string]any{
			"month": need.Month.String(),
			"score": adopted.Analysis.IntelligenceScore,
		},
	})
}

// selfHeal regenerates a below-threshold result with the aggressive
// strategy and adopts the alternative only when it scores strictly
// higher. Every attempt is recorded, improved or not.
func (e *Engine) selfHeal(ctx context.Context, need Need, original *generator.Result) *generator.Result {
	ctx, span := e.tracer.Start(ctx, "engine.selfHeal")
	defer span.End()

	altReq := original.Request
	altReq.Strategy = generator.StrategyAggressive

	rec := HealingRecord{
		ID:          uuid.New().String(),
		Time:        e.clock(),
		Month:       need.Month,
		ScoreBefore: original.Analysis.IntelligenceScore,
	}

	alt, err := e.gen.Generate(ctx, altReq)
	if err != nil {
		e.mu.Lock()
		e.healing.add(rec)
		e.healingAttempts++
		e.mu.Unlock()
		e.recordFailure(ctx, "healing", err)
		return original
	}

	rec.ScoreAfter = alt.Analysis.IntelligenceScore
	rec.Improved = alt.Analysis.IntelligenceScore > original.Analysis.IntelligenceScore

	e.mu.Lock()
	e.healing.add(rec)
	e.healingAttempts++
	if rec.Improved {
		e.autoCorrections++
	}
	e.mu.Unlock()

	if !rec.Improved {
		e.logger.Info("self-healing regeneration did not improve, keeping original",
			zap.String("month", need.Month.String()),
			zap.Float64("score_before", rec.ScoreBefore),
			zap.Float64("score_after", rec.ScoreAfter),
		)
		return original
	}

	if e.correctionCounter != nil {
		e.correctionCounter.Add(ctx, 1)
	}
	e.logger.Info("self-healing regeneration adopted",
		zap.String("month", need.Month.String()),
		zap.Float64("score_before", rec.ScoreBefore),
		zap.Float64("score_after", rec.ScoreAfter),
	)
	e.publisher.Publish(events.Event{
		Kind: events.KindHealed,
		Time: rec.Time,
		Fields: map[string]any{
			"month":        need.Month.String(),
			"score_before": rec.ScoreBefore,
			"score_after":  rec.ScoreAfter,
		},
	})
	return alt
}

// healthTick is one pass of the monitoring loop.
func (e *Engine) healthTick(ctx context.Context) error {
	report := e.runHealthCheck(ctx)

	if report.Status != health.StatusHealthy {
		e.logger.Warn("health check below healthy",
			zap.String("status", string(report.Status)),
			zap.Float64("overall", report.Overall),
			zap.Float64("ai", report.AIEngine),
			zap.Float64("data", report.DataIntegrity),
			zap.Float64("performance", report.Performance),
			zap.Float64("memory", report.Memory),
		)
	} else {
		e.logger.Debug("health check passed", zap.Float64("overall", report.Overall))
	}
	return nil
}

// runHealthCheck gathers live stats, scores them, records the outcome,
// and applies remediation. The cache sweep runs on every check so
// expired predictions are evicted even while healthy.
func (e *Engine) runHealthCheck(ctx context.Context) health.Report {
	sys := e.gen.SystemStatus()
	snap, snapErr := e.store.Snapshot(ctx)

	staffCount := 0
	if snapErr == nil {
		staffCount = len(snap.Staff)
	}

	now := e.clock()

	e.mu.Lock()
	stats := health.Stats{
		GeneratorInitialized: sys.Initialized,
		GeneratorErr:         e.genFailed,
		StaffCount:           staffCount,
		SnapshotErr:          snapErr != nil,
		ResponseTimeMS:       float64(e.lastGenDuration.Milliseconds()),
		MemoryMB:             health.EstimateMemoryMB(len(e.cache), e.generationCount),
	}
	report := health.Check(stats)
	e.lastHealth = report
	e.lastHealthCheck = now
	e.monitored = true
	evicted := e.cleanupCache(now)
	remediate := report.NeedsRemediation()
	restartGen := remediate && report.NeedsGeneratorRestart()
	e.mu.Unlock()

	if evicted > 0 {
		e.logger.Info("evicted expired predictions", zap.Int("count", evicted))
	}

	if restartGen {
		e.logger.Warn("AI subsystem unhealthy, reinitializing generator",
			zap.Float64("ai_score", report.AIEngine))
		if err := e.gen.Initialize(ctx); err != nil {
			e.recordFailure(ctx, "generator_restart", err)
		} else {
			e.mu.Lock()
			e.genFailed = false
			e.markRecoveredLocked("generation", "generator_restart")
			e.mu.Unlock()
			e.logger.Info("generator reinitialized")
		}
	} else if remediate {
		if report.NeedsCacheCleanup() {
			e.logger.Warn("memory pressure remediation, prediction cache swept",
				zap.Float64("memory_score", report.Memory),
				zap.Int("evicted", evicted))
		} else {
			e.logger.Warn("health below remediation threshold",
				zap.Float64("overall", report.Overall))
		}
	}

	return report
}

// improvementTick is one pass of the weekly self-improvement loop. It
// works entirely from measured aggregates and nudges engine behavior
// with small, bounded adjustments.
func (e *Engine) improvementTick(ctx context.Context) error {
	_, span := e.tracer.Start(ctx, "engine.improvement")
	defer span.End()

	now := e.clock()

	e.mu.Lock()
	meanScoreVal := meanScore(e.recentScores.all())
	scoreSamples := e.recentScores.len()
	responseMS := float64(e.lastGenDuration.Milliseconds())
	attempts, improved := e.healingAttempts, e.autoCorrections
	threshold := e.healingThreshold
	var hitRatio float64
	if lookups := e.cacheHits + e.cacheMisses; lookups > 0 {
		hitRatio = float64(e.cacheHits) / float64(lookups)
	}
	e.mu.Unlock()

	var healRate float64
	if attempts > 0 {
		healRate = float64(improved) / float64(attempts)
	}

	e.logger.Info("self-improvement review",
		zap.Float64("mean_score", meanScoreVal),
		zap.Int("score_samples", scoreSamples),
		zap.Float64("response_ms", responseMS),
		zap.Float64("cache_hit_ratio", hitRatio),
		zap.Int("healing_attempts", attempts),
		zap.Float64("healing_success_rate", healRate),
	)

	if scoreSamples > 0 && meanScoreVal < 95 {
		e.logger.Info("mean intelligence score below target, flagging for strategy review",
			zap.Float64("mean_score", meanScoreVal))
	}

	if responseMS > 3000 {
		e.mu.Lock()
		evicted := e.cleanupCache(now)
		e.mu.Unlock()
		e.logger.Info("generation latency high, swept prediction cache",
			zap.Float64("response_ms", responseMS),
			zap.Int("evicted", evicted))
	}

	if attempts > 0 && healRate < 0.9 && threshold < e.cfg.HealingThresholdCap {
		e.mu.Lock()
		e.healingThreshold = min(e.healingThreshold+1, e.cfg.HealingThresholdCap)
		threshold = e.healingThreshold
		e.mu.Unlock()
		e.logger.Info("raised self-healing detection threshold",
			zap.Float64("threshold", threshold),
			zap.Float64("healing_success_rate", healRate))
	}

	return nil
}
