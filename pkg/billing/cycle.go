package billing

import (
	"fmt"
	"time"
)

// Cycle is a half-open billing interval [Start, End) in UTC.
type Cycle struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the cycle. The start boundary is
// inclusive and the end boundary is exclusive, so an instant exactly at the
// anchor belongs to the new cycle, never the old one.
func (c Cycle) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(c.Start) && t.Before(c.End)
}

func (c Cycle) String() string {
	return fmt.Sprintf("[%s, %s)", c.Start.Format(time.RFC3339), c.End.Format(time.RFC3339))
}

// ValidateAnchorDay checks that day is a usable anchor day of month.
// Validation happens at user creation; cycle computation assumes its input
// already passed here.
func ValidateAnchorDay(day int) error {
	if day < 1 || day > 31 {
		return ErrInvalidAnchorDay
	}
	return nil
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	// Day 0 of the next month normalizes to the last day of this month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// anchorDate returns midnight UTC on the anchor day of the given month,
// clamping the anchor to the month's length. The clamp is recomputed for
// every month: anchor 31 lands on Feb 29 in a leap year and on Mar 31 the
// month after.
func anchorDate(anchorDay, year int, month time.Month) time.Time {
	day := anchorDay
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CycleForAnchor computes the billing cycle containing now for the given
// anchor day. Pure and deterministic: identical inputs always produce the
// identical interval. All arithmetic is in UTC.
//
// The cycle starts at the clamped anchor instant of the current month when
// now is at or past it, otherwise at the clamped anchor of the previous
// month. The end is the clamped anchor of the following month, which keeps
// consecutive cycles contiguous with no gap or overlap for every anchor day,
// including 29, 30 and 31.
func CycleForAnchor(anchorDay int, now time.Time) Cycle {
	now = now.UTC()
	year, month, _ := now.Date()

	start := anchorDate(anchorDay, year, month)
	if now.Before(start) {
		prevYear, prevMon := prevMonth(year, month)
		start = anchorDate(anchorDay, prevYear, prevMon)
	}

	nextYear, nextMon := nextMonth(start.Year(), start.Month())
	end := anchorDate(anchorDay, nextYear, nextMon)
	return Cycle{Start: start, End: end}
}

func prevMonth(year int, month time.Month) (int, time.Month) {
	if month == time.January {
		return year - 1, time.December
	}
	return year, month - 1
}

func nextMonth(year int, month time.Month) (int, time.Month) {
	if month == time.December {
		return year + 1, time.January
	}
	return year, month + 1
}
