package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/sla-engine/internal/api/dto"
	"github.com/spec-kit/sla-engine/internal/events"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// EventsHandler accepts ticket lifecycle events from the helpdesk
// application. Events are dispatched synchronously but handler
// failures stay internal; a 202 means the event was taken in, not that
// every downstream effect succeeded.
type EventsHandler struct {
	dispatcher events.Dispatcher
}

// NewEventsHandler constructs handler.
func NewEventsHandler(dispatcher events.Dispatcher) *EventsHandler {
	return &EventsHandler{dispatcher: dispatcher}
}

// IngestTicketEvent POST /internal/events/ticket.
func (h *EventsHandler) IngestTicketEvent(c *fiber.Ctx) error {
	var req dto.TicketEventRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	eventType := events.EventType(req.Type)
	if !eventType.Valid() {
		return apperrors.NewValidationError("unknown event type",
			map[string]any{"type": req.Type})
	}
	if req.TenantID == "" || req.TicketID == "" {
		return apperrors.NewValidationError("tenant_id and ticket_id required", nil)
	}

	timestamp := time.Now().UTC()
	if req.Timestamp != nil {
		timestamp = req.Timestamp.UTC()
	}

	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TenantID:  req.TenantID,
		TicketID:  req.TicketID,
		Timestamp: timestamp,
		Payload:   eventPayload(eventType, &req),
	}
	if err := h.dispatcher.Publish(c.UserContext(), event); err != nil {
		return err
	}

	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"data": dto.TicketEventResponse{EventID: event.ID, Accepted: true},
	})
}

func eventPayload(eventType events.EventType, req *dto.TicketEventRequest) interface{} {
	switch eventType {
	case events.EventTicketFirstResponse:
		payload := events.TicketFirstResponsePayload{}
		if req.RespondedAt != nil {
			payload.RespondedAt = req.RespondedAt.UTC()
		}
		return payload
	case events.EventTicketSLASourceChanged:
		return events.TicketSLASourceChangedPayload{Reason: req.Reason}
	case events.EventTicketUpdated:
		return events.TicketUpdatedPayload{Fields: req.Fields}
	}
	return nil
}
