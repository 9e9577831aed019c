package consumption

import (
	"time"

	"github.com/sabado/kuryentrol-scheduler/internal/db"
)

// Accumulate computes the energy consumed across an ascending-ordered
// sequence of cumulative counter samples. Consecutive deltas are summed;
// a non-positive delta means the device's counter reset (reboot or
// rollover) and contributes nothing, with accumulation continuing from
// the new counter value. The true consumption during a reset transition
// is lost; that is preferred over crediting a bogus negative delta.
//
// Fewer than two samples means no delta is observable and the result is 0.
func Accumulate(readings []db.EnergyReading) float64 {
	if len(readings) < 2 {
		return 0
	}

	total := 0.0
	prev := readings[0].EnergyKWh

	for _, reading := range readings[1:] {
		delta := reading.EnergyKWh - prev
		if delta > 0 {
			total += delta
		}
		prev = reading.EnergyKWh
	}

	return total
}

// PeriodStart returns the start of the current reset period: midnight
// today for daily, Monday 00:00 for weekly, the 1st at 00:00 for monthly,
// all in now's location. An unknown period yields now itself, so the
// consumption window is empty rather than unbounded.
func PeriodStart(resetPeriod string, now time.Time) time.Time {
	switch resetPeriod {
	case db.ResetDaily:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	case db.ResetWeekly:
		// time.Weekday is Sunday-based; shift so the week begins Monday
		daysSinceMonday := (int(now.Weekday()) + 6) % 7
		monday := now.AddDate(0, 0, -daysSinceMonday)
		return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, now.Location())
	case db.ResetMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	}
	return now
}
