package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/api/dto"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/service"
	"github.com/spec-kit/sla-engine/internal/sla"
)

// TicketSLAHandler serves per-ticket SLA state.
type TicketSLAHandler struct {
	service *service.SLAService
}

// NewTicketSLAHandler constructs handler.
func NewTicketSLAHandler(slaService *service.SLAService) *TicketSLAHandler {
	return &TicketSLAHandler{service: slaService}
}

// GetSLA GET /tickets/:id/sla.
func (h *TicketSLAHandler) GetSLA(c *fiber.Ctx) error {
	snap, err := h.service.Snapshot(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSLAResponse(snap)})
}

// Recompute POST /tickets/:id/sla/recompute.
func (h *TicketSLAHandler) Recompute(c *fiber.Ctx) error {
	ticket, err := h.service.ApplyToTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": recomputeSLAResponse(ticket)})
}

func ticketSLAResponse(snap *service.SLASnapshot) dto.TicketSLAResponse {
	resp := dto.TicketSLAResponse{
		TicketID:    snap.TicketID,
		Source:      sourceString(snap.Source),
		Thresholds:  thresholdMarkViews(snap.Marks),
		EvaluatedAt: snap.EvaluatedAt,
	}
	if snap.Definition != nil {
		resp.Definition = &dto.SLADefinitionView{
			ID:                    snap.Definition.ID,
			Name:                  snap.Definition.Name,
			ResponseTargetMinutes: snap.Definition.ResponseTargetMinutes,
			ResolveTargetMinutes:  snap.Definition.ResolveTargetMinutes,
			ResolveAfterResponse:  snap.Definition.ResolveAfterResponse,
			NearBreachPercent:     snap.Definition.NearBreachPercent,
			PastBreachPercent:     snap.Definition.PastBreachPercent,
		}
	}
	resp.Response = clockView(snap.Response, snap.ResponseDeadline)
	resp.Resolve = clockView(snap.Resolve, snap.ResolveDeadline)
	return resp
}

func recomputeSLAResponse(ticket *domain.Ticket) dto.RecomputeSLAResponse {
	return dto.RecomputeSLAResponse{
		TicketID:         ticket.ID,
		DefinitionID:     ticket.SLADefinitionID,
		Source:           sourceString(ticket.SLASource),
		ResponseDeadline: ticket.ResponseDeadline,
		ResolveDeadline:  ticket.ResolveDeadline,
	}
}

func clockView(consumption *sla.Consumption, deadline *time.Time) *dto.ClockView {
	if consumption == nil {
		return nil
	}
	return &dto.ClockView{
		ElapsedMinutes:  consumption.ElapsedMinutes,
		TargetMinutes:   consumption.TargetMinutes,
		ConsumedPercent: consumption.Percent,
		Deadline:        deadline,
	}
}

func thresholdMarkViews(marks []domain.ThresholdMark) []dto.ThresholdMarkView {
	views := make([]dto.ThresholdMarkView, 0, len(marks))
	for _, mark := range marks {
		views = append(views, dto.ThresholdMarkView{
			Kind:     string(mark.Kind),
			Severity: string(mark.Kind.Severity()),
			FiredAt:  mark.FiredAt,
		})
	}
	return views
}

func sourceString(source *domain.SLASource) *string {
	if source == nil {
		return nil
	}
	s := string(*source)
	return &s
}
