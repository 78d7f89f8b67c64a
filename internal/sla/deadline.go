package sla

import (
	"time"

	"github.com/spec-kit/sla-engine/internal/businesshours"
	"github.com/spec-kit/sla-engine/internal/domain"
)

// Deadlines holds the projected targets for one ticket. Resolve stays
// nil for resolve-after-response definitions until a first response
// exists, because the resolution clock has not started.
type Deadlines struct {
	Response *time.Time
	Resolve  *time.Time
}

// ComputeDeadlines projects both targets from their anchors through
// the definition's calendar. The anchors never move (creation and
// first response are immutable facts), so recomputing with the same
// inputs always reproduces the same deadlines.
func ComputeDeadlines(t *domain.Ticket, def *domain.SLADefinition, cal *businesshours.Calendar) Deadlines {
	resp := cal.ProjectDeadline(t.CreatedAt, def.ResponseTargetMinutes)
	d := Deadlines{Response: &resp}
	switch {
	case !def.ResolveAfterResponse:
		res := cal.ProjectDeadline(t.CreatedAt, def.ResolveTargetMinutes)
		d.Resolve = &res
	case t.FirstRespondedAt != nil:
		res := cal.ProjectDeadline(*t.FirstRespondedAt, def.ResolveTargetMinutes)
		d.Resolve = &res
	}
	return d
}

// Consumption is a point-in-time reading of one SLA clock.
type Consumption struct {
	ElapsedMinutes int
	TargetMinutes  int
	Percent        float64
}

// ResponseClockEnd returns the instant the response clock reads at
// now. The clock freezes at the first response, so a ticket answered
// inside its target can never drift into breach afterwards.
func ResponseClockEnd(t *domain.Ticket, now time.Time) time.Time {
	if t.FirstRespondedAt != nil && t.FirstRespondedAt.Before(now) {
		return *t.FirstRespondedAt
	}
	return now
}

// ResponseConsumption measures the response clock at now.
func ResponseConsumption(t *domain.Ticket, def *domain.SLADefinition, cal *businesshours.Calendar, now time.Time) Consumption {
	elapsed := cal.ElapsedMinutes(t.CreatedAt, ResponseClockEnd(t, now))
	return newConsumption(elapsed, def.ResponseTargetMinutes)
}

// ResolveConsumption measures the resolution clock at now, or returns
// nil while the clock has not started.
func ResolveConsumption(t *domain.Ticket, def *domain.SLADefinition, cal *businesshours.Calendar, now time.Time) *Consumption {
	anchor := t.CreatedAt
	if def.ResolveAfterResponse {
		if t.FirstRespondedAt == nil {
			return nil
		}
		anchor = *t.FirstRespondedAt
	}
	c := newConsumption(cal.ElapsedMinutes(anchor, now), def.ResolveTargetMinutes)
	return &c
}

func newConsumption(elapsed, target int) Consumption {
	c := Consumption{ElapsedMinutes: elapsed, TargetMinutes: target}
	if target > 0 {
		c.Percent = float64(elapsed) / float64(target) * 100
	}
	return c
}
