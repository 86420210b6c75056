package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthNext(t *testing.T) {
	tests := []struct {
		name string
		in   Month
		want Month
	}{
		{name: "mid year", in: Month{Year: 2026, Index: 4}, want: Month{Year: 2026, Index: 5}},
		{name: "december wraps", in: Month{Year: 2026, Index: 11}, want: Month{Year: 2027, Index: 0}},
		{name: "january", in: Month{Year: 2026, Index: 0}, want: Month{Year: 2026, Index: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Next())
		})
	}
}

func TestMonthDays(t *testing.T) {
	assert.Equal(t, 31, Month{Year: 2026, Index: 0}.Days())
	assert.Equal(t, 28, Month{Year: 2026, Index: 1}.Days())
	assert.Equal(t, 29, Month{Year: 2028, Index: 1}.Days()) // leap year
	assert.Equal(t, 30, Month{Year: 2026, Index: 3}.Days())
}

func TestCurrentMonth(t *testing.T) {
	now := time.Date(2026, time.August, 27, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, Month{Year: 2026, Index: 7}, CurrentMonth(now))
}

func TestGridFillRatio(t *testing.T) {
	t.Run("empty grid is zero", func(t *testing.T) {
		assert.Equal(t, 0.0, Grid{}.FillRatio())
	})

	t.Run("70 of 100 filled", func(t *testing.T) {
		g := gridWithFilled(t, 10, 10, 70)
		assert.InDelta(t, 0.70, g.FillRatio(), 1e-9)
		assert.True(t, Period{Grid: g}.Incomplete(0.8))
	})

	t.Run("81 of 100 filled", func(t *testing.T) {
		g := gridWithFilled(t, 10, 10, 81)
		assert.InDelta(t, 0.81, g.FillRatio(), 1e-9)
		assert.False(t, Period{Grid: g}.Incomplete(0.8))
	})

	t.Run("day off counts as filled", func(t *testing.T) {
		g := NewGrid([]string{"a"}, 2)
		g.Cells["a"][0] = ShiftOff
		assert.InDelta(t, 0.5, g.FillRatio(), 1e-9)
	})
}

func TestGridClone(t *testing.T) {
	g := NewGrid([]string{"a"}, 3)
	g.Cells["a"][0] = ShiftMorning

	dup := g.Clone()
	dup.Cells["a"][0] = ShiftNight

	assert.Equal(t, ShiftMorning, g.Cells["a"][0])
	assert.Equal(t, ShiftNight, dup.Cells["a"][0])
}

func TestSnapshotLatestPeriod(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var s Snapshot
		_, ok := s.LatestPeriod()
		assert.False(t, ok)
	})

	t.Run("picks most recent", func(t *testing.T) {
		s := Snapshot{Periods: []Period{
			{Month: Month{Year: 2026, Index: 11}},
			{Month: Month{Year: 2027, Index: 0}},
			{Month: Month{Year: 2026, Index: 5}},
		}}
		latest, ok := s.LatestPeriod()
		require.True(t, ok)
		assert.Equal(t, Month{Year: 2027, Index: 0}, latest.Month)
	})
}

// gridWithFilled builds a staff-by-days grid with exactly filled cells
// assigned.
func gridWithFilled(t *testing.T, staff, days, filled int) Grid {
	t.Helper()
	require.LessOrEqual(t, filled, staff*days)

	ids := make([]string, staff)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}
	g := NewGrid(ids, days)

	n := 0
	for _, id := range ids {
		for d := 0; d < days && n < filled; d++ {
			g.Cells[id][d] = ShiftMorning
			n++
		}
	}
	return g
}
