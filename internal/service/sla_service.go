package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/businesshours"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/repository"
	"github.com/spec-kit/sla-engine/internal/sla"
	"github.com/spec-kit/sla-engine/pkg/util"
)

// SLAService coordinates SLA resolution and deadline computation: it
// loads the override context, resolves the governing definition,
// projects deadlines and writes everything back to the ticket.
type SLAService struct {
	tickets    repository.TicketRepository
	slas       repository.SLARepository
	thresholds repository.ThresholdRepository
	changes    repository.SLAChangeRepository
	logger     *zap.Logger
	now        func() time.Time
}

// SLADependencies bundles collaborators for the SLA service.
type SLADependencies struct {
	TicketRepo    repository.TicketRepository
	SLARepo       repository.SLARepository
	ThresholdRepo repository.ThresholdRepository
	ChangeRepo    repository.SLAChangeRepository
	Logger        *zap.Logger
}

// SLASnapshot is the point-in-time view served to collaborators: the
// governing definition, both deadlines, live clock readings and every
// threshold that has fired so far.
type SLASnapshot struct {
	TicketID         string
	Definition       *domain.SLADefinition
	Source           *domain.SLASource
	ResponseDeadline *time.Time
	ResolveDeadline  *time.Time
	Response         *sla.Consumption
	Resolve          *sla.Consumption
	Marks            []domain.ThresholdMark
	EvaluatedAt      time.Time
}

// NewSLAService constructs the service.
func NewSLAService(deps SLADependencies) *SLAService {
	return &SLAService{
		tickets:    deps.TicketRepo,
		slas:       deps.SLARepo,
		thresholds: deps.ThresholdRepo,
		changes:    deps.ChangeRepo,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// ApplyToTicket resolves the ticket's SLA and recomputes its
// deadlines. The operation is idempotent: anchors never move, so
// rerunning it with unchanged configuration rewrites the same values.
// Threshold marks are deliberately left alone; an already-sent
// notification is history, not state to roll back.
func (s *SLAService) ApplyToTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}

	rc, err := s.slas.ResolutionContext(ctx, ticket)
	if err != nil {
		return nil, err
	}
	def, source, err := sla.Resolve(ticket, rc)
	if err != nil {
		return nil, mapSLAError(err)
	}
	if err := def.Validate(); err != nil {
		return nil, util.NewUnprocessable(util.CodeDefinitionInvalid, err.Error(),
			map[string]any{"definition_id": def.ID})
	}

	profile, err := s.slas.GetProfile(ctx, def.BusinessHoursProfileID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewUnprocessable(util.CodeProfileInvalid,
				fmt.Sprintf("business hours profile %s does not exist", def.BusinessHoursProfileID),
				map[string]any{"profile_id": def.BusinessHoursProfileID})
		}
		return nil, err
	}
	cal, err := businesshours.NewCalendar(profile)
	if err != nil {
		return nil, mapSLAError(err)
	}

	before := slaState(ticket)
	deadlines := sla.ComputeDeadlines(ticket, def, cal)

	ticket.SLADefinitionID = &def.ID
	ticket.SLASource = &source
	ticket.ResponseDeadline = deadlines.Response
	ticket.ResolveDeadline = deadlines.Resolve

	after := slaState(ticket)
	if statesEqual(before, after) {
		return ticket, nil
	}

	if err := s.tickets.UpdateSLAFields(ctx, ticket); err != nil {
		return nil, err
	}
	s.recordChange(ctx, ticket, before, after)

	s.logger.Info("sla applied",
		zap.String("ticket_id", ticket.ID),
		zap.String("tenant_id", ticket.TenantID),
		zap.String("definition_id", def.ID),
		zap.String("source", string(source)),
	)
	return ticket, nil
}

// Snapshot reads the ticket's SLA state at now without writing
// anything: deadlines as stored, clock consumption as of this instant
// and the fired threshold marks.
func (s *SLAService) Snapshot(ctx context.Context, ticketID string) (*SLASnapshot, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}

	now := s.now().UTC()
	snap := &SLASnapshot{
		TicketID:         ticket.ID,
		Source:           ticket.SLASource,
		ResponseDeadline: ticket.ResponseDeadline,
		ResolveDeadline:  ticket.ResolveDeadline,
		EvaluatedAt:      now,
	}

	marks, err := s.thresholds.ListMarks(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	snap.Marks = marks

	if ticket.SLADefinitionID == nil {
		return snap, nil
	}

	def, err := s.slas.GetDefinition(ctx, *ticket.SLADefinitionID)
	if err != nil {
		return nil, err
	}
	snap.Definition = def

	profile, err := s.slas.GetProfile(ctx, def.BusinessHoursProfileID)
	if err != nil {
		return nil, err
	}
	cal, err := businesshours.NewCalendar(profile)
	if err != nil {
		return nil, mapSLAError(err)
	}

	response := sla.ResponseConsumption(ticket, def, cal, now)
	snap.Response = &response
	snap.Resolve = sla.ResolveConsumption(ticket, def, cal, now)
	return snap, nil
}

// RegisterEventHandlers wires the service into the ticket lifecycle
// stream. All four triggers funnel into ApplyToTicket; the first
// response additionally stamps the ticket before recomputing.
func (s *SLAService) RegisterEventHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketCreated, s.handleLifecycleEvent)
	dispatcher.Subscribe(events.EventTicketSLASourceChanged, s.handleLifecycleEvent)
	dispatcher.Subscribe(events.EventTicketUpdated, s.handleLifecycleEvent)
	dispatcher.Subscribe(events.EventTicketFirstResponse, s.handleFirstResponse)
}

func (s *SLAService) handleLifecycleEvent(ctx context.Context, event events.Event) error {
	_, err := s.ApplyToTicket(ctx, event.TicketID)
	return err
}

func (s *SLAService) handleFirstResponse(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketFirstResponsePayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	respondedAt := payload.RespondedAt
	if respondedAt.IsZero() {
		respondedAt = event.Timestamp
	}

	recorded, err := s.tickets.RecordFirstResponse(ctx, event.TicketID, respondedAt)
	if err != nil {
		return err
	}
	if !recorded {
		// Replayed event; the original instant stands.
		s.logger.Debug("first response already recorded", zap.String("ticket_id", event.TicketID))
	}
	_, err = s.ApplyToTicket(ctx, event.TicketID)
	return err
}

// recordChange writes the audit entry best-effort: a failed audit
// write must not undo an already persisted deadline update.
func (s *SLAService) recordChange(ctx context.Context, ticket *domain.Ticket, before, after map[string]any) {
	if s.changes == nil {
		return
	}
	changeType := domain.ChangeTypeDeadlinesRecomputed
	if before["sla_definition_id"] != after["sla_definition_id"] || before["sla_source"] != after["sla_source"] {
		changeType = domain.ChangeTypeSLAResolved
	}
	entry := &domain.SLAChange{
		TenantID:   ticket.TenantID,
		TicketID:   ticket.ID,
		ChangeType: changeType,
		OldValue:   before,
		NewValue:   after,
	}
	if err := s.changes.Create(ctx, entry); err != nil {
		s.logger.Warn("sla change audit write failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err),
		)
	}
}

func mapSLAError(err error) error {
	var cfgErr *sla.ConfigurationError
	if errors.As(err, &cfgErr) {
		return util.NewUnprocessable(util.CodeSLANotConfigured, cfgErr.Error(),
			map[string]any{"ticket_id": cfgErr.TicketID, "tenant_id": cfgErr.TenantID})
	}
	var profErr *businesshours.ProfileError
	if errors.As(err, &profErr) {
		return util.NewUnprocessable(util.CodeProfileInvalid, profErr.Error(),
			map[string]any{"profile_id": profErr.ProfileID})
	}
	return err
}

func slaState(t *domain.Ticket) map[string]any {
	state := map[string]any{}
	if t.SLADefinitionID != nil {
		state["sla_definition_id"] = *t.SLADefinitionID
	}
	if t.SLASource != nil {
		state["sla_source"] = string(*t.SLASource)
	}
	if t.ResponseDeadline != nil {
		state["response_deadline"] = t.ResponseDeadline.UTC().Format(time.RFC3339)
	}
	if t.ResolveDeadline != nil {
		state["resolve_deadline"] = t.ResolveDeadline.UTC().Format(time.RFC3339)
	}
	return state
}

func statesEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
