// Package businesshours implements the SLA clock: elapsed business
// minutes between two instants and deadline projection, both evaluated
// against a tenant's business-hours profile in its own timezone.
package businesshours

import (
	"fmt"
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// ProfileError reports a business-hours profile that cannot be used
// for SLA math. Deadlines must never be silently wrong, so callers are
// expected to surface it instead of falling back to 24x7.
type ProfileError struct {
	ProfileID string
	Reason    string
}

func (e *ProfileError) Error() string {
	return fmt.Sprintf("business hours profile %s is invalid: %s", e.ProfileID, e.Reason)
}

// Calendar is a validated, compiled view of a profile. Compiling once
// and reusing it keeps per-ticket scans from re-parsing the same
// window strings and timezone for every row.
type Calendar struct {
	profileID string
	loc       *time.Location
	is24x7    bool
	weekdays  [domain.WeekdayMax + 1]bool
	startHour int
	startMin  int
	endHour   int
	endMin    int
}

// NewCalendar validates the profile and compiles it. All profile
// defects (unknown timezone, inverted window, no working weekdays)
// surface here as a *ProfileError.
func NewCalendar(p *domain.BusinessHoursProfile) (*Calendar, error) {
	if p.Timezone == "" {
		return nil, &ProfileError{ProfileID: p.ID, Reason: "timezone is empty"}
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, &ProfileError{ProfileID: p.ID, Reason: fmt.Sprintf("unknown timezone %q", p.Timezone)}
	}
	c := &Calendar{profileID: p.ID, loc: loc, is24x7: p.Is24x7}
	if p.Is24x7 {
		return c, nil
	}
	c.startHour, c.startMin, err = parseClock(p.DayStart)
	if err != nil {
		return nil, &ProfileError{ProfileID: p.ID, Reason: fmt.Sprintf("bad day start %q", p.DayStart)}
	}
	c.endHour, c.endMin, err = parseClock(p.DayEnd)
	if err != nil {
		return nil, &ProfileError{ProfileID: p.ID, Reason: fmt.Sprintf("bad day end %q", p.DayEnd)}
	}
	if c.endHour*60+c.endMin <= c.startHour*60+c.startMin {
		return nil, &ProfileError{ProfileID: p.ID, Reason: "day end is not after day start"}
	}
	for _, wd := range p.Weekdays {
		if wd < domain.WeekdayMin || wd > domain.WeekdayMax {
			return nil, &ProfileError{ProfileID: p.ID, Reason: fmt.Sprintf("weekday %d out of range", wd)}
		}
		c.weekdays[wd] = true
	}
	if !c.anyWeekday() {
		return nil, &ProfileError{ProfileID: p.ID, Reason: "no working weekdays"}
	}
	return c, nil
}

func (c *Calendar) anyWeekday() bool {
	for wd := domain.WeekdayMin; wd <= domain.WeekdayMax; wd++ {
		if c.weekdays[wd] {
			return true
		}
	}
	return false
}

func (c *Calendar) workingDay(t time.Time) bool {
	iso := int(t.Weekday())
	if iso == 0 {
		iso = 7 // time.Sunday is 0, ISO Sunday is 7
	}
	return c.weekdays[iso]
}

func (c *Calendar) windowFor(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), c.startHour, c.startMin, 0, 0, c.loc)
	end := time.Date(day.Year(), day.Month(), day.Day(), c.endHour, c.endMin, 0, 0, c.loc)
	return start, end
}

// ElapsedMinutes counts whole business minutes between start and end.
// Spans outside the daily window or on non-working days contribute
// nothing; end at or before start yields zero.
func (c *Calendar) ElapsedMinutes(start, end time.Time) int {
	if !end.After(start) {
		return 0
	}
	if c.is24x7 {
		return int(end.Sub(start) / time.Minute)
	}
	start = start.In(c.loc)
	end = end.In(c.loc)
	total := 0
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, c.loc)
	for day.Before(end) {
		if c.workingDay(day) {
			winStart, winEnd := c.windowFor(day)
			lo, hi := winStart, winEnd
			if start.After(lo) {
				lo = start
			}
			if end.Before(hi) {
				hi = end
			}
			if hi.After(lo) {
				total += int(hi.Sub(lo) / time.Minute)
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return total
}

// ProjectDeadline walks forward from start until minutes business
// minutes have been consumed and returns that instant. A start outside
// the working window first rolls forward to the next window opening,
// so a zero budget from a Saturday lands on Monday's opening bell.
func (c *Calendar) ProjectDeadline(start time.Time, minutes int) time.Time {
	if minutes < 0 {
		minutes = 0
	}
	if c.is24x7 {
		return start.Add(time.Duration(minutes) * time.Minute)
	}
	remaining := minutes
	cur := start.In(c.loc)
	for {
		day := time.Date(cur.Year(), cur.Month(), cur.Day(), 0, 0, 0, 0, c.loc)
		if c.workingDay(day) {
			winStart, winEnd := c.windowFor(day)
			if cur.Before(winStart) {
				cur = winStart
			}
			if cur.Before(winEnd) {
				avail := int(winEnd.Sub(cur) / time.Minute)
				if remaining <= avail {
					return cur.Add(time.Duration(remaining) * time.Minute)
				}
				remaining -= avail
			}
		}
		// Validation guarantees at least one working weekday, so this
		// always reaches a window.
		cur = day.AddDate(0, 0, 1)
	}
}

// ElapsedMinutes is the one-shot form for callers without a compiled
// calendar.
func ElapsedMinutes(p *domain.BusinessHoursProfile, start, end time.Time) (int, error) {
	c, err := NewCalendar(p)
	if err != nil {
		return 0, err
	}
	return c.ElapsedMinutes(start, end), nil
}

// ProjectDeadline is the one-shot form for callers without a compiled
// calendar.
func ProjectDeadline(p *domain.BusinessHoursProfile, start time.Time, minutes int) (time.Time, error) {
	c, err := NewCalendar(p)
	if err != nil {
		return time.Time{}, err
	}
	return c.ProjectDeadline(start, minutes), nil
}

func parseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
