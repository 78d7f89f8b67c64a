package dto

import "time"

// NotificationResponse represents one breach notification.
type NotificationResponse struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenant_id"`
	TicketID    string         `json:"ticket_id"`
	Type        string         `json:"type"`
	Severity    string         `json:"severity"`
	Message     string         `json:"message"`
	Payload     map[string]any `json:"payload,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	DeliveredAt *time.Time     `json:"delivered_at"`
}

// ListNotificationsResponse pages through notifications.
type ListNotificationsResponse struct {
	Total int64                  `json:"total"`
	Items []NotificationResponse `json:"items"`
}

// BulkDeliverRequest payload.
type BulkDeliverRequest struct {
	IDs []string `json:"ids"`
}

// BulkDeliverResponse reports how many notifications were newly
// acknowledged.
type BulkDeliverResponse struct {
	UpdatedCount int64 `json:"updated_count"`
}
