package domain

import "time"

// NotificationSeverity grades how urgent a breach notification is.
type NotificationSeverity string

const (
	SeverityWarning  NotificationSeverity = "WARNING"
	SeverityHigh     NotificationSeverity = "HIGH"
	SeverityCritical NotificationSeverity = "CRITICAL"
)

// Valid reports whether s is a known severity.
func (s NotificationSeverity) Valid() bool {
	switch s {
	case SeverityWarning, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Notification is one breach alert emitted by the monitor. The store
// is append-only: downstream channels (mail, chat, webhooks) poll it
// and acknowledge delivery, nothing ever updates a row beyond setting
// DeliveredAt.
type Notification struct {
	ID          string
	TenantID    string
	TicketID    string
	Type        ThresholdKind
	Severity    NotificationSeverity
	Message     string
	Payload     map[string]any
	CreatedAt   time.Time
	DeliveredAt *time.Time
}

// Delivered reports whether a downstream consumer has acknowledged the
// notification.
func (n *Notification) Delivered() bool {
	return n.DeliveredAt != nil
}
