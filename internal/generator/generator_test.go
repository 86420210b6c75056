package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/shiftd/internal/roster"
	"github.com/fyrsmithlabs/shiftd/internal/schedule"
)

func testStaff(n int) []schedule.StaffProfile {
	staff := make([]schedule.StaffProfile, n)
	for i := range staff {
		staff[i] = schedule.StaffProfile{
			ID:               string(rune('a' + i)),
			Name:             "staff-" + string(rune('a'+i)),
			Role:             "floor",
			MaxShiftsPerWeek: 5,
		}
	}
	return staff
}

func newTestGenerator(t *testing.T, staff []schedule.StaffProfile) (*Heuristic, *roster.MemoryStore) {
	t.Helper()
	store := roster.NewMemoryStore(staff, nil)
	g, err := NewHeuristic(store, zaptest.NewLogger(t))
	require.NoError(t, err)
	return g, store
}

func TestNewHeuristicRequiresStore(t *testing.T) {
	_, err := NewHeuristic(nil, nil)
	assert.Error(t, err)
}

func TestGenerateRequiresInitialize(t *testing.T) {
	g, _ := newTestGenerator(t, testStaff(3))

	_, err := g.Generate(context.Background(), Request{Month: schedule.Month{Year: 2026, Index: 8}})
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestInitializeProbesStore(t *testing.T) {
	g, store := newTestGenerator(t, testStaff(3))
	store.SetError(errors.New("extractor down"))

	err := g.Initialize(context.Background())
	assert.Error(t, err)
	assert.False(t, g.SystemStatus().Initialized)

	store.SetError(nil)
	require.NoError(t, g.Initialize(context.Background()))
	assert.True(t, g.SystemStatus().Initialized)
}

func TestGenerateBalanced(t *testing.T) {
	staff := testStaff(6)
	g, _ := newTestGenerator(t, staff)
	require.NoError(t, g.Initialize(context.Background()))

	month := schedule.Month{Year: 2026, Index: 8} // September, 30 days
	res, err := g.Generate(context.Background(), Request{Month: month})
	require.NoError(t, err)

	assert.Equal(t, month, res.Period.Month)
	assert.Equal(t, 6*30, res.Period.Grid.TotalCells())
	assert.InDelta(t, 1.0, res.Period.Grid.FillRatio(), 1e-9, "every cell gets an assignment or a day off")

	a := res.Analysis
	assert.GreaterOrEqual(t, a.IntelligenceScore, 0.0)
	assert.LessOrEqual(t, a.IntelligenceScore, 100.0)
	assert.InDelta(t, 1.0, a.Coverage, 1e-9, "six staff cover all three shifts every day")
	assert.Greater(t, a.Fairness, 0.9, "balanced rotation spreads load evenly")
	assert.Greater(t, a.RestCompliance, 0.9, "every staff-week has a day off")
}

func TestGenerateIsDeterministic(t *testing.T) {
	g, _ := newTestGenerator(t, testStaff(4))
	require.NoError(t, g.Initialize(context.Background()))

	req := Request{Month: schedule.Month{Year: 2026, Index: 8}, Strategy: StrategyBalanced}
	a, err := g.Generate(context.Background(), req)
	require.NoError(t, err)
	b, err := g.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, a.Analysis, b.Analysis)
	assert.Equal(t, a.Period.Grid, b.Period.Grid)
}

func TestAggressiveFavorsCoverage(t *testing.T) {
	// Two staff cannot cover three shifts, so every balanced rest day
	// costs coverage. Aggressive trades rest for filled shifts.
	staff := testStaff(2)
	staff[0].MaxShiftsPerWeek = 7
	staff[1].MaxShiftsPerWeek = 7

	g, _ := newTestGenerator(t, staff)
	require.NoError(t, g.Initialize(context.Background()))

	month := schedule.Month{Year: 2026, Index: 8}
	balanced, err := g.Generate(context.Background(), Request{Month: month, Strategy: StrategyBalanced})
	require.NoError(t, err)
	aggressive, err := g.Generate(context.Background(), Request{Month: month, Strategy: StrategyAggressive})
	require.NoError(t, err)

	assert.Greater(t, aggressive.Analysis.Coverage, balanced.Analysis.Coverage)
	assert.Less(t, aggressive.Analysis.RestCompliance, balanced.Analysis.RestCompliance)
}

func TestGenerateNoStaff(t *testing.T) {
	empty := roster.NewMemoryStore(nil, nil)
	g, err := NewHeuristic(empty, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, g.Initialize(context.Background()))

	_, err = g.Generate(context.Background(), Request{Month: schedule.Month{Year: 2026, Index: 8}})
	assert.Error(t, err)
}

func TestSystemStatusCarriesLastAnalysis(t *testing.T) {
	g, _ := newTestGenerator(t, testStaff(3))
	require.NoError(t, g.Initialize(context.Background()))

	assert.Nil(t, g.SystemStatus().LastAnalysis)

	_, err := g.Generate(context.Background(), Request{Month: schedule.Month{Year: 2026, Index: 8}})
	require.NoError(t, err)

	status := g.SystemStatus()
	require.NotNil(t, status.LastAnalysis)
	assert.True(t, status.Components["heuristic"])
}

func TestWeeklyCapIsHonored(t *testing.T) {
	staff := testStaff(3)
	staff[0].MaxShiftsPerWeek = 3

	g, _ := newTestGenerator(t, staff)
	require.NoError(t, g.Initialize(context.Background()))

	res, err := g.Generate(context.Background(), Request{Month: schedule.Month{Year: 2026, Index: 8}})
	require.NoError(t, err)

	row := res.Period.Grid.Cells["a"]
	worked := 0
	for day, cell := range row {
		if day%7 == 0 {
			worked = 0
		}
		if cell != schedule.ShiftOff && cell.IsFilled() {
			worked++
		}
		assert.LessOrEqual(t, worked, 3, "day %d exceeds weekly cap", day)
	}
}
