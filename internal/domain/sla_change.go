package domain

import "time"

// SLAChangeType captures what an SLA change-log entry records.
type SLAChangeType string

const (
	ChangeTypeSLAResolved         SLAChangeType = "SLA_RESOLVED"
	ChangeTypeDeadlinesRecomputed SLAChangeType = "DEADLINES_RECOMPUTED"
)

// SLAChange is an immutable audit trail entry written every time the
// engine assigns or recomputes a ticket's SLA. Old/new values hold the
// definition id, source and deadlines before and after the change.
type SLAChange struct {
	ID         string
	TenantID   string
	TicketID   string
	ChangeType SLAChangeType
	OldValue   map[string]any
	NewValue   map[string]any
	CreatedAt  time.Time
}
