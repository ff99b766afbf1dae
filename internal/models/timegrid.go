package models

import "time"

// GridConfig is the stored time-grid configuration for an institution/term.
type GridConfig struct {
	ID             string  `db:"id" json:"id"`
	InstitutionID  string  `db:"institution_id" json:"institution_id"`
	TermID         string  `db:"term_id" json:"term_id"`
	WorkingDays    []int   `db:"-" json:"working_days"`
	PeriodsPerDay  int     `db:"periods_per_day" json:"periods_per_day"`
	PeriodMinutes  int     `db:"period_minutes" json:"period_minutes"`
	BreakMinutes   int     `db:"break_minutes" json:"break_minutes"`
	DayStart       string  `db:"day_start" json:"day_start"`
	BreakPeriods   []int   `db:"-" json:"break_periods,omitempty"`
	LunchPeriod    int     `db:"lunch_period" json:"lunch_period,omitempty"`
	WorkingDaysRaw string  `db:"working_days" json:"-"`
	BreakRaw       *string `db:"break_periods" json:"-"`
}

// TimeSlot describes one period of the working day.
type TimeSlot struct {
	Period          int    `json:"period"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Break           bool   `json:"break,omitempty"`
}

// GridCoordinate is a schedulable (day, period) position.
type GridCoordinate struct {
	DayOfWeek int `json:"day_of_week"`
	Period    int `json:"period"`
}

// TimeGrid is the resolved grid for an institution/term: the ordered set of
// schedulable coordinates plus wall-clock bounds per period.
type TimeGrid struct {
	InstitutionID string           `json:"institution_id"`
	TermID        string           `json:"term_id"`
	Days          []int            `json:"days"`
	Periods       []TimeSlot       `json:"periods"`
	Coordinates   []GridCoordinate `json:"coordinates"`
	GeneratedAt   time.Time        `json:"generated_at"`
}

// PeriodsPerDay returns the count of schedulable (non-break) periods.
func (g *TimeGrid) PeriodsPerDay() int {
	count := 0
	for _, p := range g.Periods {
		if !p.Break {
			count++
		}
	}
	return count
}

// Contains reports whether the coordinate is schedulable on this grid.
func (g *TimeGrid) Contains(day, period int) bool {
	for _, c := range g.Coordinates {
		if c.DayOfWeek == day && c.Period == period {
			return true
		}
	}
	return false
}
