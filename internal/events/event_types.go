package events

import "time"

// EventType enumerates the ticket lifecycle events that trigger SLA
// work.
type EventType string

const (
	// EventTicketCreated starts SLA tracking for a new ticket.
	EventTicketCreated EventType = "ticket_created"
	// EventTicketFirstResponse records the instant of the first agent
	// reply; it freezes the response clock and, for definitions that
	// resolve after response, starts the resolution clock.
	EventTicketFirstResponse EventType = "ticket_first_response_recorded"
	// EventTicketSLASourceChanged fires when an override binding that
	// feeds resolution changed (ticket override, user override,
	// company, category or CMDB linkage).
	EventTicketSLASourceChanged EventType = "ticket_sla_source_changed"
	// EventTicketUpdated covers edits that may move the ticket to a
	// different resolution layer, such as a category change.
	EventTicketUpdated EventType = "ticket_updated"
)

// Valid reports whether t is one of the recognized trigger types.
func (t EventType) Valid() bool {
	switch t {
	case EventTicketCreated, EventTicketFirstResponse, EventTicketSLASourceChanged, EventTicketUpdated:
		return true
	}
	return false
}

// Event represents a ticket lifecycle notice delivered to the engine.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TenantID  string      `json:"tenant_id"`
	TicketID  string      `json:"ticket_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketFirstResponsePayload payload.
type TicketFirstResponsePayload struct {
	RespondedAt time.Time `json:"responded_at"`
}

// TicketSLASourceChangedPayload payload.
type TicketSLASourceChangedPayload struct {
	Reason string `json:"reason,omitempty"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	Fields []string `json:"fields,omitempty"`
}
