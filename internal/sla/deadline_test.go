package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-engine/internal/businesshours"
	"github.com/spec-kit/sla-engine/internal/domain"
)

func officeCalendar(t *testing.T) *businesshours.Calendar {
	t.Helper()
	cal, err := businesshours.NewCalendar(&domain.BusinessHoursProfile{
		ID:       "bhp-1",
		TenantID: "tenant-1",
		Timezone: "UTC",
		Weekdays: []int{1, 2, 3, 4, 5},
		DayStart: "09:00",
		DayEnd:   "17:00",
	})
	require.NoError(t, err)
	return cal
}

func TestComputeDeadlinesBothClocksFromCreation(t *testing.T) {
	cal := officeCalendar(t)
	ticket := &domain.Ticket{
		ID:        "tck-1",
		CreatedAt: time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC), // Monday
	}
	def := activeDef("def-1")

	d := ComputeDeadlines(ticket, def, cal)

	require.NotNil(t, d.Response)
	require.NotNil(t, d.Resolve)
	assert.True(t, d.Response.Equal(time.Date(2024, 6, 3, 11, 0, 0, 0, time.UTC)))
	// 420 minutes remain on Monday, the rest spills into Tuesday.
	assert.True(t, d.Resolve.Equal(time.Date(2024, 6, 4, 10, 0, 0, 0, time.UTC)))
}

func TestComputeDeadlinesResolveWaitsForFirstResponse(t *testing.T) {
	cal := officeCalendar(t)
	def := activeDef("def-1")
	def.ResolveAfterResponse = true
	def.ResolveTargetMinutes = 120

	ticket := &domain.Ticket{
		ID:        "tck-1",
		CreatedAt: time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC),
	}

	d := ComputeDeadlines(ticket, def, cal)
	require.NotNil(t, d.Response)
	assert.Nil(t, d.Resolve, "resolution clock must not start before the first response")

	responded := time.Date(2024, 6, 3, 11, 0, 0, 0, time.UTC)
	ticket.FirstRespondedAt = &responded

	d = ComputeDeadlines(ticket, def, cal)
	require.NotNil(t, d.Resolve)
	assert.True(t, d.Resolve.Equal(time.Date(2024, 6, 3, 13, 0, 0, 0, time.UTC)))
}

func TestComputeDeadlinesIsDeterministic(t *testing.T) {
	cal := officeCalendar(t)
	def := activeDef("def-1")
	ticket := &domain.Ticket{
		ID:        "tck-1",
		CreatedAt: time.Date(2024, 6, 7, 16, 30, 0, 0, time.UTC),
	}

	first := ComputeDeadlines(ticket, def, cal)
	second := ComputeDeadlines(ticket, def, cal)

	assert.True(t, first.Response.Equal(*second.Response))
	assert.True(t, first.Resolve.Equal(*second.Resolve))
}

func TestLargerTargetsNeverMoveDeadlinesEarlier(t *testing.T) {
	cal := officeCalendar(t)
	ticket := &domain.Ticket{
		ID:        "tck-1",
		CreatedAt: time.Date(2024, 6, 5, 14, 0, 0, 0, time.UTC),
	}

	var prev *time.Time
	for _, target := range []int{30, 60, 240, 480, 960} {
		def := activeDef("def-1")
		def.ResponseTargetMinutes = target
		d := ComputeDeadlines(ticket, def, cal)
		require.NotNil(t, d.Response)
		if prev != nil {
			assert.False(t, d.Response.Before(*prev), "target %d produced an earlier deadline", target)
		}
		prev = d.Response
	}
}

func TestResponseClockFreezesAtFirstResponse(t *testing.T) {
	cal := officeCalendar(t)
	def := activeDef("def-1")
	def.ResponseTargetMinutes = 60

	responded := time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)
	ticket := &domain.Ticket{
		ID:               "tck-1",
		CreatedAt:        time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC),
		FirstRespondedAt: &responded,
	}

	// Hours after the response the clock still reads 30 minutes.
	now := time.Date(2024, 6, 3, 16, 0, 0, 0, time.UTC)
	c := ResponseConsumption(ticket, def, cal, now)

	assert.Equal(t, 30, c.ElapsedMinutes)
	assert.InDelta(t, 50.0, c.Percent, 0.001)
	assert.True(t, ResponseClockEnd(ticket, now).Equal(responded))
}

func TestResolveConsumptionBeforeClockStarts(t *testing.T) {
	cal := officeCalendar(t)
	def := activeDef("def-1")
	def.ResolveAfterResponse = true

	ticket := &domain.Ticket{
		ID:        "tck-1",
		CreatedAt: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC),
	}
	now := time.Date(2024, 6, 3, 16, 0, 0, 0, time.UTC)

	assert.Nil(t, ResolveConsumption(ticket, def, cal, now))

	responded := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	ticket.FirstRespondedAt = &responded

	c := ResolveConsumption(ticket, def, cal, now)
	require.NotNil(t, c)
	assert.Equal(t, 360, c.ElapsedMinutes)
}
