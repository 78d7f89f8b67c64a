package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/api/dto"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/service"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// NotificationsHandler exposes the breach notification store to
// downstream delivery services.
type NotificationsHandler struct {
	service *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notificationService *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{service: notificationService}
}

// ListNotifications GET /notifications.
func (h *NotificationsHandler) ListNotifications(c *fiber.Ctx) error {
	query := parseNotificationQuery(c)
	items, total, err := h.service.List(c.UserContext(), query)
	if err != nil {
		return err
	}
	resp := dto.ListNotificationsResponse{
		Total: total,
		Items: make([]dto.NotificationResponse, 0, len(items)),
	}
	for i := range items {
		resp.Items = append(resp.Items, notificationResponse(&items[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// MarkDelivered POST /notifications/:id/delivered.
func (h *NotificationsHandler) MarkDelivered(c *fiber.Ctx) error {
	notification, err := h.service.MarkDelivered(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": notificationResponse(notification)})
}

// BulkMarkDelivered POST /notifications/bulk-delivered.
func (h *NotificationsHandler) BulkMarkDelivered(c *fiber.Ctx) error {
	var req dto.BulkDeliverRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	updated, err := h.service.BulkMarkDelivered(c.UserContext(), req.IDs)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.BulkDeliverResponse{UpdatedCount: updated}})
}

func parseNotificationQuery(c *fiber.Ctx) service.NotificationQuery {
	query := service.NotificationQuery{}
	if tenantID := c.Query("tenant_id"); tenantID != "" {
		query.TenantID = &tenantID
	}
	if ticketID := c.Query("ticket_id"); ticketID != "" {
		query.TicketID = &ticketID
	}
	if typeStr := c.Query("type"); typeStr != "" {
		for _, part := range strings.Split(typeStr, ",") {
			query.Types = append(query.Types, strings.TrimSpace(part))
		}
	}
	if severityStr := c.Query("severity"); severityStr != "" {
		for _, part := range strings.Split(severityStr, ",") {
			query.Severities = append(query.Severities, strings.TrimSpace(part))
		}
	}
	if deliveredStr := c.Query("delivered"); deliveredStr != "" {
		if delivered, err := strconv.ParseBool(deliveredStr); err == nil {
			query.Delivered = &delivered
		}
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		query.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		query.CreatedTo = to
	}
	query.Limit = parseInt(c.Query("limit"), 0)
	query.Offset = parseInt(c.Query("offset"), 0)
	return query
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func notificationResponse(n *domain.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:          n.ID,
		TenantID:    n.TenantID,
		TicketID:    n.TicketID,
		Type:        string(n.Type),
		Severity:    string(n.Severity),
		Message:     n.Message,
		Payload:     n.Payload,
		CreatedAt:   n.CreatedAt,
		DeliveredAt: n.DeliveredAt,
	}
}
