// Package schedule defines the shift-scheduling domain model shared by
// the roster store, the generator, and the autonomous engine.
package schedule

import (
	"fmt"
	"time"
)

// ShiftSymbol identifies the shift assigned to a single staff/day cell.
type ShiftSymbol string

const (
	ShiftMorning ShiftSymbol = "morning"
	ShiftEvening ShiftSymbol = "evening"
	ShiftNight   ShiftSymbol = "night"
	ShiftOff     ShiftSymbol = "off"

	// ShiftEmpty marks an unfilled cell. Empty cells count against the
	// fill ratio; ShiftOff does not.
	ShiftEmpty ShiftSymbol = ""
)

// IsFilled reports whether the cell carries an assignment (including a
// scheduled day off).
func (s ShiftSymbol) IsFilled() bool {
	return s != ShiftEmpty
}

// StaffProfile describes one member of staff on the roster.
type StaffProfile struct {
	ID               string `yaml:"id" json:"id"`
	Name             string `yaml:"name" json:"name"`
	Role             string `yaml:"role" json:"role"`
	MaxShiftsPerWeek int    `yaml:"max_shifts_per_week" json:"max_shifts_per_week"`
}

// Month identifies a scheduling period. Index is zero-based (January 0)
// to match the request format the dashboards use.
type Month struct {
	Year  int `yaml:"year" json:"year"`
	Index int `yaml:"index" json:"index"`
}

// Next returns the following calendar month, wrapping December into
// January of the next year.
func (m Month) Next() Month {
	if m.Index >= 11 {
		return Month{Year: m.Year + 1, Index: 0}
	}
	return Month{Year: m.Year, Index: m.Index + 1}
}

// Days returns the number of calendar days in the month.
func (m Month) Days() int {
	// Day 0 of the following month is the last day of this one.
	t := time.Date(m.Year, time.Month(m.Index+2), 0, 0, 0, 0, 0, time.UTC)
	return t.Day()
}

// String renders the month as YYYY-MM.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Index+1)
}

// CurrentMonth returns the Month containing now.
func CurrentMonth(now time.Time) Month {
	return Month{Year: now.Year(), Index: int(now.Month()) - 1}
}

// Grid is the staff-by-day assignment matrix for one period. Cells maps
// staff ID to a slice with one entry per calendar day.
type Grid struct {
	Cells map[string][]ShiftSymbol `yaml:"cells" json:"cells"`
}

// NewGrid allocates an empty grid for the given staff and day count.
func NewGrid(staffIDs []string, days int) Grid {
	cells := make(map[string][]ShiftSymbol, len(staffIDs))
	for _, id := range staffIDs {
		cells[id] = make([]ShiftSymbol, days)
	}
	return Grid{Cells: cells}
}

// TotalCells returns the number of staff/day cells in the grid.
func (g Grid) TotalCells() int {
	total := 0
	for _, row := range g.Cells {
		total += len(row)
	}
	return total
}

// FilledCells returns the number of cells carrying an assignment.
func (g Grid) FilledCells() int {
	filled := 0
	for _, row := range g.Cells {
		for _, cell := range row {
			if cell.IsFilled() {
				filled++
			}
		}
	}
	return filled
}

// FillRatio returns filled cells divided by total cells. An empty grid
// has a fill ratio of 0.
func (g Grid) FillRatio() float64 {
	total := g.TotalCells()
	if total == 0 {
		return 0
	}
	return float64(g.FilledCells()) / float64(total)
}

// Clone returns a deep copy of the grid.
func (g Grid) Clone() Grid {
	cells := make(map[string][]ShiftSymbol, len(g.Cells))
	for id, row := range g.Cells {
		dup := make([]ShiftSymbol, len(row))
		copy(dup, row)
		cells[id] = dup
	}
	return Grid{Cells: cells}
}

// Period pairs a month with its schedule grid.
type Period struct {
	Month Month `yaml:"month" json:"month"`
	Grid  Grid  `yaml:"grid" json:"grid"`
}

// Incomplete reports whether the period's fill ratio is below the given
// threshold.
func (p Period) Incomplete(threshold float64) bool {
	return p.Grid.FillRatio() < threshold
}

// Summary carries the headline counts dashboards display.
type Summary struct {
	TotalStaff   int `json:"total_staff"`
	TotalPeriods int `json:"total_periods"`
}

// Snapshot is a point-in-time copy of roster and schedule data. It is
// safe to retain: nothing in it aliases store internals.
type Snapshot struct {
	Summary Summary        `json:"summary"`
	Staff   []StaffProfile `json:"staff"`
	Periods []Period       `json:"periods"`
}

// LatestPeriod returns the most recent period, or false when the
// snapshot has none.
func (s *Snapshot) LatestPeriod() (Period, bool) {
	if len(s.Periods) == 0 {
		return Period{}, false
	}
	latest := s.Periods[0]
	for _, p := range s.Periods[1:] {
		if p.Month.Year > latest.Month.Year ||
			(p.Month.Year == latest.Month.Year && p.Month.Index > latest.Month.Index) {
			latest = p
		}
	}
	return latest, true
}
