package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen        TicketStatus = "OPEN"
	TicketStatusInProgress  TicketStatus = "IN_PROGRESS"
	TicketStatusPendingUser TicketStatus = "PENDING_USER"
	TicketStatusResolved    TicketStatus = "RESOLVED"
	TicketStatusClosed      TicketStatus = "CLOSED"
	TicketStatusCancelled   TicketStatus = "CANCELLED"
)

// Ticket is the slice of the platform ticket this engine reads and
// annotates. Linkage fields (company, category, CMDB item, explicit
// override) drive SLA resolution; the SLA* fields and deadlines are
// what the engine writes back.
type Ticket struct {
	ID               string
	TenantID         string
	RequesterUserID  string
	CompanyID        *string
	CategoryID       *string
	CMDBItemID       *string
	SLAOverrideID    *string
	Status           TicketStatus
	SLADefinitionID  *string
	SLASource        *SLASource
	ResponseDeadline *time.Time
	ResolveDeadline  *time.Time
	CreatedAt        time.Time
	FirstRespondedAt *time.Time
	UpdatedAt        time.Time
}

// Open reports whether the ticket still counts against its SLA clocks.
func (t *Ticket) Open() bool {
	switch t.Status {
	case TicketStatusResolved, TicketStatusClosed, TicketStatusCancelled:
		return false
	}
	return true
}

// Responded reports whether a first agent response has been recorded.
func (t *Ticket) Responded() bool {
	return t.FirstRespondedAt != nil
}
