package dto

import "time"

// TicketEventRequest is the intake payload for ticket lifecycle
// events. RespondedAt is only meaningful for first-response events;
// Reason and Fields annotate override and update events.
type TicketEventRequest struct {
	Type        string     `json:"type"`
	TenantID    string     `json:"tenant_id"`
	TicketID    string     `json:"ticket_id"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	Fields      []string   `json:"fields,omitempty"`
}

// TicketEventResponse acknowledges an accepted event.
type TicketEventResponse struct {
	EventID  string `json:"event_id"`
	Accepted bool   `json:"accepted"`
}
