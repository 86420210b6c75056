// Package generator produces filled shift schedules for a month and
// scores the result. The scheduling itself is a deterministic rotation
// heuristic; the quality score is a weighted blend of coverage,
// fairness, and rest compliance, reported on a 0-100 scale.
package generator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shiftd/internal/roster"
	"github.com/fyrsmithlabs/shiftd/internal/schedule"
)

const instrumentationName = "github.com/fyrsmithlabs/shiftd/internal/generator"

// ErrNotInitialized is returned when Generate is called before
// Initialize.
var ErrNotInitialized = errors.New("generator not initialized")

// Strategy selects the assignment heuristic.
type Strategy string

const (
	// StrategyBalanced rotates shifts evenly and schedules a weekly day
	// off for every member of staff. The default.
	StrategyBalanced Strategy = "balanced"

	// StrategyAggressive favors coverage over fairness: staff work up
	// to their weekly cap before any day off is scheduled. Used as the
	// alternate during self-healing regeneration.
	StrategyAggressive Strategy = "aggressive"
)

// Request describes one generation attempt.
type Request struct {
	Month         schedule.Month `json:"month"`
	Strategy      Strategy       `json:"strategy"`
	MultiPeriod   bool           `json:"multi_period"`
	CrossLocation bool           `json:"cross_location"`
}

// Analysis carries the quality breakdown for a generated schedule.
type Analysis struct {
	IntelligenceScore float64 `json:"intelligence_score"`
	Coverage          float64 `json:"coverage"`
	Fairness          float64 `json:"fairness"`
	RestCompliance    float64 `json:"rest_compliance"`
}

// Result is a successful generation.
type Result struct {
	Period   schedule.Period `json:"period"`
	Analysis Analysis        `json:"analysis"`
	Request  Request         `json:"request"`
}

// SystemStatus reports generator readiness for dashboards.
type SystemStatus struct {
	Initialized  bool            `json:"initialized"`
	Components   map[string]bool `json:"components"`
	LastAnalysis *Analysis       `json:"last_analysis,omitempty"`
}

// Generator produces schedules for the autonomous engine.
type Generator interface {
	// Initialize prepares the generator. Must be called before Generate.
	Initialize(ctx context.Context) error

	// Generate produces a filled schedule for the requested month.
	Generate(ctx context.Context, req Request) (*Result, error)

	// SystemStatus returns current readiness and the last analysis.
	SystemStatus() SystemStatus
}

// Heuristic is the rotation-based Generator implementation.
type Heuristic struct {
	store  roster.Store
	logger *zap.Logger
	tracer trace.Tracer

	mu           sync.RWMutex
	initialized  bool
	lastAnalysis *Analysis
}

// NewHeuristic creates a generator reading staff data from store.
func NewHeuristic(store roster.Store, logger *zap.Logger) (*Heuristic, error) {
	if store == nil {
		return nil, errors.New("roster store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Heuristic{
		store:  store,
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
	}, nil
}

// Initialize verifies the data source is reachable and marks the
// generator ready.
func (h *Heuristic) Initialize(ctx context.Context) error {
	if _, err := h.store.Snapshot(ctx); err != nil {
		return fmt.Errorf("probing roster store: %w", err)
	}

	h.mu.Lock()
	h.initialized = true
	h.mu.Unlock()

	h.logger.Info("schedule generator initialized")
	return nil
}

// Generate builds a schedule for req.Month using the requested strategy.
func (h *Heuristic) Generate(ctx context.Context, req Request) (*Result, error) {
	ctx, span := h.tracer.Start(ctx, "generator.generate")
	defer span.End()

	span.SetAttributes(
		attribute.String("month", req.Month.String()),
		attribute.String("strategy", string(req.Strategy)),
	)

	h.mu.RLock()
	ready := h.initialized
	h.mu.RUnlock()
	if !ready {
		return nil, ErrNotInitialized
	}

	snap, err := h.store.Snapshot(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("extracting roster data: %w", err)
	}
	if len(snap.Staff) == 0 {
		return nil, errors.New("no staff on roster")
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = StrategyBalanced
	}

	grid := assign(snap.Staff, req.Month, strategy)
	analysis := analyze(snap.Staff, req.Month, grid)

	h.mu.Lock()
	h.lastAnalysis = &analysis
	h.mu.Unlock()

	h.logger.Debug("schedule generated",
		zap.String("month", req.Month.String()),
		zap.String("strategy", string(strategy)),
		zap.Float64("intelligence_score", analysis.IntelligenceScore),
	)

	span.SetAttributes(attribute.Float64("intelligence_score", analysis.IntelligenceScore))
	return &Result{
		Period:   schedule.Period{Month: req.Month, Grid: grid},
		Analysis: analysis,
		Request:  req,
	}, nil
}

// SystemStatus implements Generator.
func (h *Heuristic) SystemStatus() SystemStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var last *Analysis
	if h.lastAnalysis != nil {
		cp := *h.lastAnalysis
		last = &cp
	}

	return SystemStatus{
		Initialized: h.initialized,
		Components: map[string]bool{
			"extractor": true,
			"heuristic": h.initialized,
		},
		LastAnalysis: last,
	}
}

// workingShifts is the rotation order for filled cells.
var workingShifts = []schedule.ShiftSymbol{
	schedule.ShiftMorning,
	schedule.ShiftEvening,
	schedule.ShiftNight,
}

// assign fills a grid for the month. Both strategies rotate staff
// through the working shifts and stagger days off across staff so the
// same weekday never loses everyone at once. Balanced guarantees a day
// off in every full week; aggressive rests only when the weekly cap
// forces it.
func assign(staff []schedule.StaffProfile, month schedule.Month, strategy Strategy) schedule.Grid {
	days := month.Days()
	ids := make([]string, len(staff))
	for i, p := range staff {
		ids[i] = p.ID
	}
	grid := schedule.NewGrid(ids, days)

	for si, p := range staff {
		weeklyCap := p.MaxShiftsPerWeek
		if weeklyCap <= 0 {
			weeklyCap = 5
		}

		workedInWeek := 0
		for day := 0; day < days; day++ {
			if day%7 == 0 {
				workedInWeek = 0
			}

			weekStart := day - day%7
			weekDays := days - weekStart
			if weekDays > 7 {
				weekDays = 7
			}

			offs := weekDays - weeklyCap
			if offs < 0 {
				offs = 0
			}
			if strategy != StrategyAggressive && weekDays == 7 && offs < 1 {
				offs = 1
			}

			// Staggered rest: staff si rests on the residues at the top
			// of the cycle, shifted by si.
			r := (day + si) % 7
			if (offs > 0 && r >= 7-offs) || workedInWeek >= weeklyCap {
				grid.Cells[p.ID][day] = schedule.ShiftOff
				continue
			}

			grid.Cells[p.ID][day] = workingShifts[(day+si)%len(workingShifts)]
			workedInWeek++
		}
	}

	return grid
}

// analyze scores a generated grid.
//
// Coverage is the fraction of day/shift slots with at least one worker.
// Fairness is one minus the normalized spread of per-staff workloads.
// Rest compliance is the fraction of staff-weeks containing a day off.
// The intelligence score blends them 40/30/30 on a 0-100 scale.
func analyze(staff []schedule.StaffProfile, month schedule.Month, grid schedule.Grid) Analysis {
	days := month.Days()

	coverage := coverageScore(grid, days)
	fairness := fairnessScore(staff, grid)
	rest := restScore(grid, days)

	score := 100 * (0.4*coverage + 0.3*fairness + 0.3*rest)
	score = math.Round(score*10) / 10

	return Analysis{
		IntelligenceScore: score,
		Coverage:          coverage,
		Fairness:          fairness,
		RestCompliance:    rest,
	}
}

func coverageScore(grid schedule.Grid, days int) float64 {
	if days == 0 {
		return 0
	}

	covered := 0
	for day := 0; day < days; day++ {
		for _, shift := range workingShifts {
			for _, row := range grid.Cells {
				if day < len(row) && row[day] == shift {
					covered++
					break
				}
			}
		}
	}
	return float64(covered) / float64(days*len(workingShifts))
}

func fairnessScore(staff []schedule.StaffProfile, grid schedule.Grid) float64 {
	if len(staff) == 0 {
		return 0
	}

	loads := make([]float64, 0, len(staff))
	var sum float64
	for _, p := range staff {
		worked := 0.0
		for _, cell := range grid.Cells[p.ID] {
			if cell.IsFilled() && cell != schedule.ShiftOff {
				worked++
			}
		}
		loads = append(loads, worked)
		sum += worked
	}

	mean := sum / float64(len(loads))
	if mean == 0 {
		return 0
	}

	var variance float64
	for _, l := range loads {
		variance += (l - mean) * (l - mean)
	}
	variance /= float64(len(loads))

	// Coefficient of variation, clamped so fairness stays in [0,1].
	cv := math.Sqrt(variance) / mean
	if cv > 1 {
		cv = 1
	}
	return 1 - cv
}

// restScore measures the fraction of full staff-weeks containing a day
// off. Trailing partial weeks are not held against the schedule.
func restScore(grid schedule.Grid, days int) float64 {
	weeks := days / 7
	if len(grid.Cells) == 0 || weeks == 0 {
		return 0
	}

	total := 0
	rested := 0
	for _, row := range grid.Cells {
		for w := 0; w < weeks; w++ {
			total++
			for day := w * 7; day < (w+1)*7; day++ {
				if day < len(row) && row[day] == schedule.ShiftOff {
					rested++
					break
				}
			}
		}
	}
	return float64(rested) / float64(total)
}
