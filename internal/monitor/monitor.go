// Package monitor implements the breach monitor: the periodic sweep
// that walks every active tenant's open tickets, evaluates the six
// SLA thresholds and emits each crossing exactly once.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/sla-engine/internal/businesshours"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/observability"
	"github.com/spec-kit/sla-engine/internal/repository"
	"github.com/spec-kit/sla-engine/internal/sla"
)

const (
	defaultParallelism = 4
	defaultScanTimeout = 30 * time.Second
)

// Monitor scans tenants concurrently but isolates them from each
// other: a tenant whose scan keeps failing trips its circuit breaker
// and is skipped until the breaker half-opens, while per-ticket errors
// only skip that ticket.
type Monitor struct {
	tenants     repository.TenantRepository
	tickets     repository.TicketRepository
	slas        repository.SLARepository
	thresholds  repository.ThresholdRepository
	logger      *zap.Logger
	metrics     *observability.Metrics
	parallelism int
	scanTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// Dependencies bundles collaborators for the monitor.
type Dependencies struct {
	TenantRepo    repository.TenantRepository
	TicketRepo    repository.TicketRepository
	SLARepo       repository.SLARepository
	ThresholdRepo repository.ThresholdRepository
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	Parallelism   int
	ScanTimeout   time.Duration
}

// New constructs the monitor.
func New(deps Dependencies) *Monitor {
	parallelism := deps.Parallelism
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}
	scanTimeout := deps.ScanTimeout
	if scanTimeout <= 0 {
		scanTimeout = defaultScanTimeout
	}
	return &Monitor{
		tenants:     deps.TenantRepo,
		tickets:     deps.TicketRepo,
		slas:        deps.SLARepo,
		thresholds:  deps.ThresholdRepo,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		parallelism: parallelism,
		scanTimeout: scanTimeout,
		now:         time.Now,
	}
}

// RunTick executes one full sweep over all active tenants. Ticks are
// idempotent: every threshold evaluation funnels through the
// write-once mark table, so overlapping or repeated ticks cannot
// duplicate a notification.
func (m *Monitor) RunTick(ctx context.Context) error {
	started := m.now()
	tenants, err := m.tenants.ListActive(ctx)
	if err != nil {
		m.metrics.ScanTicks.WithLabelValues("error").Inc()
		return fmt.Errorf("list active tenants: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.parallelism)
	for _, tenant := range tenants {
		tenant := tenant
		g.Go(func() error {
			m.scanTenantGuarded(ctx, tenant)
			return nil
		})
	}
	_ = g.Wait()

	m.metrics.ScanTicks.WithLabelValues("ok").Inc()
	m.metrics.ScanDuration.Observe(time.Since(started).Seconds())
	return nil
}

func (m *Monitor) scanTenantGuarded(ctx context.Context, tenant domain.Tenant) {
	_, err := m.breakerFor(tenant.ID).Execute(func() (any, error) {
		return nil, m.scanTenant(ctx, tenant)
	})
	if err == nil {
		return
	}
	m.metrics.TenantScanErrors.WithLabelValues(tenant.ID).Inc()
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		m.logger.Warn("tenant scan skipped, breaker open", zap.String("tenant_id", tenant.ID))
		return
	}
	m.logger.Error("tenant scan failed", zap.String("tenant_id", tenant.ID), zap.Error(err))
}

func (m *Monitor) scanTenant(parent context.Context, tenant domain.Tenant) error {
	ctx, cancel := context.WithTimeout(parent, m.scanTimeout)
	defer cancel()

	tickets, err := m.tickets.ListOpenWithDeadlines(ctx, tenant.ID)
	if err != nil {
		return fmt.Errorf("list open tickets: %w", err)
	}

	// Definitions and calendars repeat heavily within one tenant, so
	// they are cached for the duration of the scan.
	defs := map[string]*domain.SLADefinition{}
	cals := map[string]*businesshours.Calendar{}
	now := m.now().UTC()

	var emitted int
	for i := range tickets {
		ticket := &tickets[i]
		n, err := m.evaluateTicket(ctx, ticket, defs, cals, now)
		if err != nil {
			m.logger.Warn("ticket evaluation failed",
				zap.String("tenant_id", tenant.ID),
				zap.String("ticket_id", ticket.ID),
				zap.Error(err),
			)
			continue
		}
		emitted += n
	}
	m.metrics.TicketsEvaluated.Add(float64(len(tickets)))

	if emitted > 0 {
		m.logger.Info("breach notifications emitted",
			zap.String("tenant_id", tenant.ID),
			zap.Int("count", emitted),
		)
	}
	return nil
}

func (m *Monitor) evaluateTicket(ctx context.Context, ticket *domain.Ticket, defs map[string]*domain.SLADefinition, cals map[string]*businesshours.Calendar, now time.Time) (int, error) {
	def, ok := defs[*ticket.SLADefinitionID]
	if !ok {
		loaded, err := m.slas.GetDefinition(ctx, *ticket.SLADefinitionID)
		if err != nil {
			return 0, fmt.Errorf("load definition %s: %w", *ticket.SLADefinitionID, err)
		}
		defs[loaded.ID] = loaded
		def = loaded
	}

	cal, ok := cals[def.BusinessHoursProfileID]
	if !ok {
		profile, err := m.slas.GetProfile(ctx, def.BusinessHoursProfileID)
		if err != nil {
			return 0, fmt.Errorf("load profile %s: %w", def.BusinessHoursProfileID, err)
		}
		cal, err = businesshours.NewCalendar(profile)
		if err != nil {
			return 0, err
		}
		cals[def.BusinessHoursProfileID] = cal
	}

	emitted := 0
	for _, kind := range dueThresholds(ticket, def, cal, now) {
		mark := domain.ThresholdMark{TicketID: ticket.ID, Kind: kind, FiredAt: now}
		claimed, err := m.thresholds.Record(ctx, mark, buildNotification(ticket, def, cal, kind, now))
		if err != nil {
			return emitted, fmt.Errorf("record threshold %s: %w", kind, err)
		}
		if !claimed {
			continue
		}
		emitted++
		m.metrics.NotificationsEmitted.WithLabelValues(string(kind)).Inc()
		m.logger.Info("sla threshold crossed",
			zap.String("ticket_id", ticket.ID),
			zap.String("tenant_id", ticket.TenantID),
			zap.String("kind", string(kind)),
			zap.String("severity", string(kind.Severity())),
		)
	}
	return emitted, nil
}

// dueThresholds returns every threshold condition the ticket currently
// meets, in escalation order. Already-claimed marks are filtered later
// by the write-once insert, which keeps this function pure and the
// whole pipeline monotonic: conditions that stop holding (say, after a
// target raise) simply stop being claimed, existing marks stand.
func dueThresholds(ticket *domain.Ticket, def *domain.SLADefinition, cal *businesshours.Calendar, now time.Time) []domain.ThresholdKind {
	var due []domain.ThresholdKind

	if ticket.ResponseDeadline != nil {
		consumption := sla.ResponseConsumption(ticket, def, cal, now)
		// The clock end freezes at the first response, so a late
		// response still claims breached while a timely one never does.
		clockEnd := sla.ResponseClockEnd(ticket, now)
		if consumption.Percent >= float64(def.NearBreachPercent) {
			due = append(due, domain.ThresholdResponseNear)
		}
		if clockEnd.After(*ticket.ResponseDeadline) {
			due = append(due, domain.ThresholdResponseBreached)
		}
		if consumption.Percent >= float64(def.PastBreachPercent) {
			due = append(due, domain.ThresholdResponsePast)
		}
	}

	if ticket.ResolveDeadline != nil {
		if consumption := sla.ResolveConsumption(ticket, def, cal, now); consumption != nil {
			if consumption.Percent >= float64(def.NearBreachPercent) {
				due = append(due, domain.ThresholdResolveNear)
			}
			if now.After(*ticket.ResolveDeadline) {
				due = append(due, domain.ThresholdResolveBreached)
			}
			if consumption.Percent >= float64(def.PastBreachPercent) {
				due = append(due, domain.ThresholdResolvePast)
			}
		}
	}
	return due
}

var thresholdMessages = map[domain.ThresholdKind]string{
	domain.ThresholdResponseNear:     "response target nearly consumed",
	domain.ThresholdResponseBreached: "response deadline missed",
	domain.ThresholdResponsePast:     "response target far exceeded",
	domain.ThresholdResolveNear:      "resolution target nearly consumed",
	domain.ThresholdResolveBreached:  "resolution deadline missed",
	domain.ThresholdResolvePast:      "resolution target far exceeded",
}

func buildNotification(ticket *domain.Ticket, def *domain.SLADefinition, cal *businesshours.Calendar, kind domain.ThresholdKind, now time.Time) *domain.Notification {
	var consumption sla.Consumption
	var deadline *time.Time
	switch kind {
	case domain.ThresholdResponseNear, domain.ThresholdResponseBreached, domain.ThresholdResponsePast:
		consumption = sla.ResponseConsumption(ticket, def, cal, now)
		deadline = ticket.ResponseDeadline
	default:
		if c := sla.ResolveConsumption(ticket, def, cal, now); c != nil {
			consumption = *c
		}
		deadline = ticket.ResolveDeadline
	}

	payload := map[string]any{
		"definition_id":    def.ID,
		"elapsed_minutes":  consumption.ElapsedMinutes,
		"target_minutes":   consumption.TargetMinutes,
		"consumed_percent": consumption.Percent,
	}
	if deadline != nil {
		payload["deadline"] = deadline.UTC().Format(time.RFC3339)
	}
	if ticket.SLASource != nil {
		payload["sla_source"] = string(*ticket.SLASource)
	}

	return &domain.Notification{
		TenantID: ticket.TenantID,
		TicketID: ticket.ID,
		Type:     kind,
		Severity: kind.Severity(),
		Message:  fmt.Sprintf("ticket %s: %s", ticket.ID, thresholdMessages[kind]),
		Payload:  payload,
	}
}

func (m *Monitor) breakerFor(tenantID string) *gobreaker.CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breakers == nil {
		m.breakers = make(map[string]*gobreaker.CircuitBreaker)
	}
	if cb, ok := m.breakers[tenantID]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "tenant-scan-" + tenantID,
		MaxRequests: 1,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.logger.Warn("tenant scan breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	m.breakers[tenantID] = cb
	return cb
}
