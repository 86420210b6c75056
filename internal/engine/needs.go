package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/shiftd/internal/schedule"
)

// identifyNeeds derives the scheduling needs for one tick. Exactly two
// rules apply: late in the month, forecast next month; and when the
// latest period is under-filled, request a completion pass. There is no
// learned policy behind this.
func (e *Engine) identifyNeeds(now time.Time, snap *schedule.Snapshot) []Need {
	var needs []Need

	current := schedule.CurrentMonth(now)

	if now.Day() > e.cfg.ForecastDay {
		next := current.Next()
		needs = append(needs, Need{
			ID:       uuid.New().String(),
			Kind:     NeedMonthlyForecast,
			Month:    next,
			Priority: PriorityHigh,
			Reason:   fmt.Sprintf("day %d of month, forecasting %s", now.Day(), next),
		})
	}

	if latest, ok := snap.LatestPeriod(); ok {
		if ratio := latest.Grid.FillRatio(); ratio < e.cfg.FillThreshold {
			needs = append(needs, Need{
				ID:       uuid.New().String(),
				Kind:     NeedCompletion,
				Month:    latest.Month,
				Priority: PriorityMedium,
				Reason:   fmt.Sprintf("period %s filled %.0f%%, below %.0f%%", latest.Month, ratio*100, e.cfg.FillThreshold*100),
			})
		}
	}

	return needs
}
