// Package engine implements the autonomous scheduling engine: three
// periodic loops (schedule generation, health checks, self-improvement),
// an in-memory prediction cache with age-based eviction, a self-healing
// regeneration policy, and failure bookkeeping.
//
// The engine is a constructible service object: the hosting application
// owns exactly one instance and injects its collaborators. Nothing
// below the public surface escapes as a panic or unhandled error; every
// tick failure is caught, recorded, and answered with an
// operation-specific recovery.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/shiftd/internal/events"
	"github.com/fyrsmithlabs/shiftd/internal/generator"
	"github.com/fyrsmithlabs/shiftd/internal/health"
	"github.com/fyrsmithlabs/shiftd/internal/roster"
)

const instrumentationName = "github.com/fyrsmithlabs/shiftd/internal/engine"

var (
	// ErrNotInitialized is returned by Report before a successful
	// Initialize (or after an emergency stop).
	ErrNotInitialized = errors.New("engine not initialized")

	// ErrAlreadyRunning is returned by Initialize while the engine is
	// running.
	ErrAlreadyRunning = errors.New("engine already running")
)

// Engine is the autonomous scheduling engine.
type Engine struct {
	store     roster.Store
	gen       generator.Generator
	publisher events.Publisher
	logger    *zap.Logger
	tracer    trace.Tracer
	meter     metric.Meter
	clock     func() time.Time
	limiter   *rate.Limiter

	generationCounter metric.Int64Counter
	correctionCounter metric.Int64Counter
	failureCounter    metric.Int64Counter
	skippedCounter    metric.Int64Counter
	tickDuration      metric.Float64Histogram

	// Per-loop reentrancy guards: a tick that would overlap the
	// previous invocation of the same loop is skipped and counted.
	schedBusy   atomic.Bool
	healthBusy  atomic.Bool
	improveBusy atomic.Bool

	mu               sync.Mutex
	cfg              Config
	state            State
	startedAt        time.Time
	generationCount  int
	healingAttempts  int
	autoCorrections  int
	ticksSkipped     int
	lastHealthCheck  time.Time
	lastHealth       health.Report
	monitored        bool
	genFailed        bool
	healingThreshold float64
	genInterval      time.Duration
	lastGenDuration  time.Duration
	cache            map[cacheKey]cacheEntry
	cacheHits        int
	cacheMisses      int
	cacheEvicted     int
	recentScores     *ring[float64]
	healing          *ring[HealingRecord]
	failures         *ring[FailureRecord]

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithPublisher sets the event publisher. Defaults to a no-op.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.publisher = p
		}
	}
}

// WithClock overrides the engine's time source. Used by tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// New creates an engine. The engine does not start until Initialize.
func New(cfg Config, store roster.Store, gen generator.Generator, logger *zap.Logger, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("roster store is required")
	}
	if gen == nil {
		return nil, errors.New("generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg = cfg.withDefaults()

	e := &Engine{
		store:            store,
		gen:              gen,
		publisher:        events.NopPublisher{},
		logger:           logger,
		tracer:           otel.Tracer(instrumentationName),
		meter:            otel.Meter(instrumentationName),
		clock:            time.Now,
		limiter:          rate.NewLimiter(cfg.GenerationRate, cfg.GenerationBurst),
		cfg:              cfg,
		state:            StateUninitialized,
		healingThreshold: cfg.HealingThreshold,
		genInterval:      cfg.GenerationInterval,
		cache:            make(map[cacheKey]cacheEntry),
		recentScores:     newRing[float64](cfg.HistoryLimit),
		healing:          newRing[HealingRecord](cfg.HistoryLimit),
		failures:         newRing[FailureRecord](cfg.HistoryLimit),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.initMetrics()

	return e, nil
}

// initMetrics initializes OpenTelemetry instruments.
func (e *Engine) initMetrics() {
	var err error

	e.generationCounter, err = e.meter.Int64Counter(
		"shiftd.engine.generations_total",
		metric.WithDescription("Total schedule generation attempts"),
		metric.WithUnit("{generation}"),
	)
	if err != nil {
		e.logger.Warn("failed to create generation counter", zap.Error(err))
	}

	e.correctionCounter, err = e.meter.Int64Counter(
		"shiftd.engine.auto_corrections_total",
		metric.WithDescription("Total adopted self-healing regenerations"),
		metric.WithUnit("{correction}"),
	)
	if err != nil {
		e.logger.Warn("failed to create correction counter", zap.Error(err))
	}

	e.failureCounter, err = e.meter.Int64Counter(
		"shiftd.engine.failures_total",
		metric.WithDescription("Total caught tick failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		e.logger.Warn("failed to create failure counter", zap.Error(err))
	}

	e.skippedCounter, err = e.meter.Int64Counter(
		"shiftd.engine.ticks_skipped_total",
		metric.WithDescription("Ticks skipped because the previous one was still running"),
		metric.WithUnit("{tick}"),
	)
	if err != nil {
		e.logger.Warn("failed to create skipped counter", zap.Error(err))
	}

	e.tickDuration, err = e.meter.Float64Histogram(
		"shiftd.engine.tick_duration_seconds",
		metric.WithDescription("Tick handler duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		e.logger.Warn("failed to create tick duration histogram", zap.Error(err))
	}
}

// Initialize prepares the generator and starts the periodic loops. On
// generator failure the engine stays uninitialized and the error is
// returned to the caller; nothing is retried here.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	switch e.state {
	case StateRunning, StateInitializing:
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.state = StateInitializing
	e.mu.Unlock()

	if err := e.gen.Initialize(ctx); err != nil {
		e.mu.Lock()
		e.state = StateUninitialized
		e.genFailed = true
		e.mu.Unlock()
		return fmt.Errorf("initializing generator: %w", err)
	}

	now := e.clock()

	e.mu.Lock()
	e.state = StateRunning
	e.genFailed = false
	if e.startedAt.IsZero() {
		e.startedAt = now
	}
	e.genInterval = e.cfg.GenerationInterval
	loopCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	monitoring := e.cfg.MonitoringEnabled
	improving := e.cfg.SelfImprovementEnabled
	e.mu.Unlock()

	e.wg.Add(1)
	go e.runLoop(loopCtx, "scheduling", e.nextGenerationInterval, &e.schedBusy, e.schedulingTick)

	if monitoring {
		e.wg.Add(1)
		go e.runLoop(loopCtx, "health", fixedInterval(e.cfg.HealthInterval), &e.healthBusy, e.healthTick)
	}
	if improving {
		e.wg.Add(1)
		go e.runLoop(loopCtx, "improvement", fixedInterval(e.cfg.ImprovementInterval), &e.improveBusy, e.improvementTick)
	}

	e.logger.Info("autonomous engine started",
		zap.Duration("generation_interval", e.cfg.GenerationInterval),
		zap.Duration("health_interval", e.cfg.HealthInterval),
		zap.Duration("improvement_interval", e.cfg.ImprovementInterval),
		zap.Bool("monitoring", monitoring),
		zap.Bool("self_improvement", improving),
	)
	e.publisher.Publish(events.Event{Kind: events.KindInitialized, Time: now})

	return nil
}

// Stop cancels the loops and waits for in-flight ticks to finish.
// Idempotent: a no-op unless the engine is running.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	e.cancel = nil
	e.state = StateStopped
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()

	e.logger.Info("autonomous operation stopped")
	e.publisher.Publish(events.Event{Kind: events.KindStopped, Time: e.clock()})
}

// EmergencyStop stops the loops, clears the prediction cache, and
// leaves the engine requiring a fresh Initialize. Best-effort and
// synchronous.
func (e *Engine) EmergencyStop() {
	e.Stop()

	e.mu.Lock()
	e.cache = make(map[cacheKey]cacheEntry)
	e.state = StateEmergencyStopped
	e.mu.Unlock()

	e.logger.Warn("emergency stop: cache cleared, engine requires reinitialization")
	e.publisher.Publish(events.Event{Kind: events.KindEmergencyStop, Time: e.clock()})
}

// Status returns a projection of current engine state. It has no side
// effects and is safe to call concurrently with ticks; mid-tick it
// reflects an eventually consistent view of the counters.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	monitored := "unmonitored"
	if e.monitored {
		monitored = "monitored"
	}

	return Status{
		Initialized:        e.state == StateRunning || e.state == StateStopped,
		Autonomous:         e.state == StateRunning,
		State:              e.state,
		Config:             e.cfg,
		Metrics:            e.metricsLocked(),
		CacheSize:          len(e.cache),
		HealthStatus:       e.lastHealth.Status,
		Monitored:          monitored,
		SelfHealingEnabled: e.cfg.AutoCorrectionEnabled,
		LastHealthCheck:    e.lastHealthCheck,
	}
}

// metricsLocked assembles a Metrics copy. Caller holds e.mu.
func (e *Engine) metricsLocked() Metrics {
	now := e.clock()

	var uptime time.Duration
	if !e.startedAt.IsZero() {
		uptime = now.Sub(e.startedAt)
	}

	return Metrics{
		StartedAt:       e.startedAt,
		OperationDays:   e.operationDaysLocked(),
		GenerationCount: e.generationCount,
		AutoCorrections: e.autoCorrections,
		TicksSkipped:    e.ticksSkipped,
		LastHealthCheck: e.lastHealthCheck,
		Uptime:          uptime,
		AccuracyRate:    meanScore(e.recentScores.all()),
		Failures:        e.failures.all(),
	}
}

// operationDaysLocked approximates days of operation from the last
// health check (falling back to now when monitoring has not run yet).
func (e *Engine) operationDaysLocked() int {
	if e.startedAt.IsZero() {
		return 0
	}
	ref := e.lastHealthCheck
	if ref.IsZero() {
		ref = e.clock()
	}
	return int(ref.Sub(e.startedAt).Hours()/24) + 1
}

// markRecoveredLocked flags the buffered failure records for the given
// operations as recovered. Caller holds e.mu.
func (e *Engine) markRecoveredLocked(operations ...string) {
	for i := range e.failures.items {
		rec := &e.failures.items[i]
		if rec.Recovered {
			continue
		}
		for _, op := range operations {
			if rec.Operation == op {
				rec.Recovered = true
				break
			}
		}
	}
}

// recordFailure appends a failure record and publishes the event. The
// record starts out unrecovered; a later successful retry of the same
// operation flips it.
func (e *Engine) recordFailure(ctx context.Context, operation string, cause error) {
	now := e.clock()
	rec := FailureRecord{
		ID:        uuid.New().String(),
		Time:      now,
		Operation: operation,
		Message:   cause.Error(),
	}

	e.mu.Lock()
	e.failures.add(rec)
	e.mu.Unlock()

	if e.failureCounter != nil {
		e.failureCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
	}

	e.logger.Error("engine operation failed",
		zap.String("operation", operation),
		zap.Error(cause),
	)
	e.publisher.Publish(events.Event{
		Kind:    events.KindFailure,
		Time:    now,
		Message: cause.Error(),
		Fields:  map[string]any{"operation": operation},
	})
}

func meanScore(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}
