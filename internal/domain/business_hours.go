package domain

import "time"

// Weekday bounds follow ISO-8601: 1 is Monday, 7 is Sunday.
const (
	WeekdayMin = 1
	WeekdayMax = 7
)

// BusinessHoursProfile describes when the SLA clock runs for a tenant.
// Windows are wall-clock times in the profile's IANA timezone, so a
// DST shift moves the window with local time. A 24x7 profile ignores
// weekdays and the daily window entirely.
type BusinessHoursProfile struct {
	ID        string
	TenantID  string
	Name      string
	Timezone  string
	Weekdays  []int
	DayStart  string // "HH:MM" wall clock
	DayEnd    string // "HH:MM" wall clock, strictly after DayStart
	Is24x7    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
