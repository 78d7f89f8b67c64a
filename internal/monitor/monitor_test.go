package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/businesshours"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/observability"
	"github.com/spec-kit/sla-engine/internal/repository"
)

type fakeTenantRepo struct {
	tenants []domain.Tenant
	err     error
}

func (f *fakeTenantRepo) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	for i := range f.tenants {
		if f.tenants[i].ID == id {
			return &f.tenants[i], nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeTenantRepo) ListActive(ctx context.Context) ([]domain.Tenant, error) {
	return f.tenants, f.err
}

type fakeTicketRepo struct {
	mu       sync.Mutex
	byTenant map[string][]domain.Ticket
	err      error
	calls    int
}

func (f *fakeTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tickets := range f.byTenant {
		for i := range tickets {
			if tickets[i].ID == id {
				return &tickets[i], nil
			}
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeTicketRepo) ListOpenWithDeadlines(ctx context.Context, tenantID string) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.byTenant[tenantID], nil
}

func (f *fakeTicketRepo) UpdateSLAFields(ctx context.Context, ticket *domain.Ticket) error {
	return nil
}

func (f *fakeTicketRepo) RecordFirstResponse(ctx context.Context, id string, at time.Time) (bool, error) {
	return false, nil
}

func (f *fakeTicketRepo) listCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSLARepo struct {
	defs     map[string]*domain.SLADefinition
	profiles map[string]*domain.BusinessHoursProfile
	defErrs  map[string]error
}

func (f *fakeSLARepo) GetDefinition(ctx context.Context, id string) (*domain.SLADefinition, error) {
	if err, ok := f.defErrs[id]; ok {
		return nil, err
	}
	if def, ok := f.defs[id]; ok {
		return def, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeSLARepo) GetProfile(ctx context.Context, id string) (*domain.BusinessHoursProfile, error) {
	if p, ok := f.profiles[id]; ok {
		return p, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeSLARepo) ResolutionContext(ctx context.Context, ticket *domain.Ticket) (domain.SLAResolutionContext, error) {
	return domain.SLAResolutionContext{}, nil
}

type fakeThresholdStore struct {
	mu            sync.Mutex
	marks         map[string]map[domain.ThresholdKind]time.Time
	notifications []domain.Notification
}

func newFakeThresholdStore() *fakeThresholdStore {
	return &fakeThresholdStore{marks: map[string]map[domain.ThresholdKind]time.Time{}}
}

func (f *fakeThresholdStore) ListMarks(ctx context.Context, ticketID string) ([]domain.ThresholdMark, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.ThresholdMark
	for kind, firedAt := range f.marks[ticketID] {
		result = append(result, domain.ThresholdMark{TicketID: ticketID, Kind: kind, FiredAt: firedAt})
	}
	return result, nil
}

func (f *fakeThresholdStore) Record(ctx context.Context, mark domain.ThresholdMark, n *domain.Notification) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, claimed := f.marks[mark.TicketID][mark.Kind]; claimed {
		return false, nil
	}
	if f.marks[mark.TicketID] == nil {
		f.marks[mark.TicketID] = map[domain.ThresholdKind]time.Time{}
	}
	f.marks[mark.TicketID][mark.Kind] = mark.FiredAt
	stored := *n
	stored.ID = fmt.Sprintf("ntf-%d", len(f.notifications)+1)
	stored.CreatedAt = mark.FiredAt
	f.notifications = append(f.notifications, stored)
	return true, nil
}

func (f *fakeThresholdStore) emitted() []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Notification{}, f.notifications...)
}

var _ repository.TenantRepository = (*fakeTenantRepo)(nil)
var _ repository.TicketRepository = (*fakeTicketRepo)(nil)
var _ repository.SLARepository = (*fakeSLARepo)(nil)
var _ repository.ThresholdRepository = (*fakeThresholdStore)(nil)

func alwaysOnDefinition() *domain.SLADefinition {
	return &domain.SLADefinition{
		ID:                     "def-1",
		TenantID:               "tenant-1",
		Name:                   "standard",
		BusinessHoursProfileID: "bhp-1",
		ResponseTargetMinutes:  60,
		ResolveTargetMinutes:   480,
		NearBreachPercent:      80,
		PastBreachPercent:      150,
		IsActive:               true,
	}
}

func alwaysOnSLARepo() *fakeSLARepo {
	return &fakeSLARepo{
		defs: map[string]*domain.SLADefinition{"def-1": alwaysOnDefinition()},
		profiles: map[string]*domain.BusinessHoursProfile{
			"bhp-1": {ID: "bhp-1", TenantID: "tenant-1", Timezone: "UTC", Is24x7: true},
		},
	}
}

func openTicket(id string, createdAt time.Time, def *domain.SLADefinition) domain.Ticket {
	defID := def.ID
	source := domain.SLASourceDefault
	response := createdAt.Add(time.Duration(def.ResponseTargetMinutes) * time.Minute)
	resolve := createdAt.Add(time.Duration(def.ResolveTargetMinutes) * time.Minute)
	return domain.Ticket{
		ID:               id,
		TenantID:         "tenant-1",
		RequesterUserID:  "user-1",
		Status:           domain.TicketStatusOpen,
		SLADefinitionID:  &defID,
		SLASource:        &source,
		ResponseDeadline: &response,
		ResolveDeadline:  &resolve,
		CreatedAt:        createdAt,
	}
}

func newTestMonitor(tenants *fakeTenantRepo, tickets *fakeTicketRepo, slas *fakeSLARepo, store *fakeThresholdStore, now time.Time) *Monitor {
	m := New(Dependencies{
		TenantRepo:    tenants,
		TicketRepo:    tickets,
		SLARepo:       slas,
		ThresholdRepo: store,
		Logger:        zap.NewNop(),
		Metrics:       observability.NewMetrics(),
		Parallelism:   2,
	})
	m.now = func() time.Time { return now }
	return m
}

func TestRunTickEmitsEachThresholdExactlyOnce(t *testing.T) {
	now := time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC)
	def := alwaysOnDefinition()

	// 90 minutes against a 60 minute response target: near (>=80%),
	// breached (deadline passed) and past (>=150%) are all due.
	ticket := openTicket("tck-1", now.Add(-90*time.Minute), def)

	tenants := &fakeTenantRepo{tenants: []domain.Tenant{{ID: "tenant-1", IsActive: true}}}
	tickets := &fakeTicketRepo{byTenant: map[string][]domain.Ticket{"tenant-1": {ticket}}}
	store := newFakeThresholdStore()
	m := newTestMonitor(tenants, tickets, alwaysOnSLARepo(), store, now)

	require.NoError(t, m.RunTick(context.Background()))

	emitted := store.emitted()
	require.Len(t, emitted, 3)

	bySeverity := map[domain.ThresholdKind]domain.NotificationSeverity{}
	for _, n := range emitted {
		bySeverity[n.Type] = n.Severity
		assert.Equal(t, "tenant-1", n.TenantID)
		assert.Equal(t, "tck-1", n.TicketID)
		assert.Contains(t, n.Message, "tck-1")
		assert.Contains(t, n.Payload, "consumed_percent")
		assert.Contains(t, n.Payload, "deadline")
	}
	assert.Equal(t, domain.SeverityWarning, bySeverity[domain.ThresholdResponseNear])
	assert.Equal(t, domain.SeverityHigh, bySeverity[domain.ThresholdResponseBreached])
	assert.Equal(t, domain.SeverityCritical, bySeverity[domain.ThresholdResponsePast])

	// A later tick re-evaluates the same conditions but every mark is
	// already claimed, so nothing new is written.
	m.now = func() time.Time { return now.Add(5 * time.Minute) }
	require.NoError(t, m.RunTick(context.Background()))
	assert.Len(t, store.emitted(), 3)
}

func TestRunTickLeavesTimelyRespondedTicketsAlone(t *testing.T) {
	now := time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC)
	def := alwaysOnDefinition()

	ticket := openTicket("tck-1", now.Add(-120*time.Minute), def)
	responded := ticket.CreatedAt.Add(30 * time.Minute)
	ticket.FirstRespondedAt = &responded

	tenants := &fakeTenantRepo{tenants: []domain.Tenant{{ID: "tenant-1", IsActive: true}}}
	tickets := &fakeTicketRepo{byTenant: map[string][]domain.Ticket{"tenant-1": {ticket}}}
	store := newFakeThresholdStore()
	m := newTestMonitor(tenants, tickets, alwaysOnSLARepo(), store, now)

	require.NoError(t, m.RunTick(context.Background()))

	// Response answered at 50% consumption and the resolution clock is
	// at 25%: nothing fires.
	assert.Empty(t, store.emitted())
}

func TestDueThresholds(t *testing.T) {
	now := time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC)
	def := alwaysOnDefinition()
	cal, err := businesshours.NewCalendar(&domain.BusinessHoursProfile{ID: "bhp-1", Timezone: "UTC", Is24x7: true})
	require.NoError(t, err)

	lateResponse := func(t domain.Ticket) domain.Ticket {
		responded := t.CreatedAt.Add(96 * time.Minute)
		t.FirstRespondedAt = &responded
		return t
	}
	timelyResponse := func(t domain.Ticket) domain.Ticket {
		responded := t.CreatedAt.Add(10 * time.Minute)
		t.FirstRespondedAt = &responded
		return t
	}

	tests := []struct {
		name   string
		ticket domain.Ticket
		want   []domain.ThresholdKind
	}{
		{
			name:   "fresh ticket fires nothing",
			ticket: openTicket("tck-1", now.Add(-10*time.Minute), def),
			want:   nil,
		},
		{
			name:   "near threshold only",
			ticket: openTicket("tck-1", now.Add(-51*time.Minute), def),
			want:   []domain.ThresholdKind{domain.ThresholdResponseNear},
		},
		{
			name:   "just past the deadline",
			ticket: openTicket("tck-1", now.Add(-61*time.Minute), def),
			want: []domain.ThresholdKind{
				domain.ThresholdResponseNear,
				domain.ThresholdResponseBreached,
			},
		},
		{
			name:   "deep overrun fires all response thresholds",
			ticket: openTicket("tck-1", now.Add(-96*time.Minute), def),
			want: []domain.ThresholdKind{
				domain.ThresholdResponseNear,
				domain.ThresholdResponseBreached,
				domain.ThresholdResponsePast,
			},
		},
		{
			name:   "late response keeps the frozen overrun",
			ticket: lateResponse(openTicket("tck-1", now.Add(-300*time.Minute), def)),
			want: []domain.ThresholdKind{
				domain.ThresholdResponseNear,
				domain.ThresholdResponseBreached,
				domain.ThresholdResponsePast,
			},
		},
		{
			name:   "resolution overdue with timely response",
			ticket: timelyResponse(openTicket("tck-1", now.Add(-960*time.Minute), def)),
			want: []domain.ThresholdKind{
				domain.ThresholdResolveNear,
				domain.ThresholdResolveBreached,
				domain.ThresholdResolvePast,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dueThresholds(&tt.ticket, def, cal, now))
		})
	}
}

func TestDueThresholdsResolveClockNotStarted(t *testing.T) {
	now := time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC)
	def := alwaysOnDefinition()
	def.ResolveAfterResponse = true
	cal, err := businesshours.NewCalendar(&domain.BusinessHoursProfile{ID: "bhp-1", Timezone: "UTC", Is24x7: true})
	require.NoError(t, err)

	// No first response yet: the deadline engine leaves the resolve
	// deadline null and the monitor must not touch the resolve clock,
	// however old the ticket is.
	ticket := openTicket("tck-1", now.Add(-5000*time.Minute), def)
	ticket.ResolveDeadline = nil

	due := dueThresholds(&ticket, def, cal, now)
	for _, kind := range due {
		assert.NotContains(t, string(kind), "RESOLVE")
	}
}

func TestRunTickIsolatesTicketFailures(t *testing.T) {
	now := time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC)
	def := alwaysOnDefinition()

	broken := openTicket("tck-broken", now.Add(-90*time.Minute), def)
	brokenDef := "def-missing"
	broken.SLADefinitionID = &brokenDef
	healthy := openTicket("tck-healthy", now.Add(-90*time.Minute), def)

	slas := alwaysOnSLARepo()
	slas.defErrs = map[string]error{"def-missing": errors.New("definition store down")}

	tenants := &fakeTenantRepo{tenants: []domain.Tenant{{ID: "tenant-1", IsActive: true}}}
	tickets := &fakeTicketRepo{byTenant: map[string][]domain.Ticket{"tenant-1": {broken, healthy}}}
	store := newFakeThresholdStore()
	m := newTestMonitor(tenants, tickets, slas, store, now)

	require.NoError(t, m.RunTick(context.Background()))

	emitted := store.emitted()
	require.NotEmpty(t, emitted)
	for _, n := range emitted {
		assert.Equal(t, "tck-healthy", n.TicketID)
	}
}

func TestMarksSurviveDefinitionRelaxation(t *testing.T) {
	now := time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC)
	def := alwaysOnDefinition()

	ticket := openTicket("tck-1", now.Add(-90*time.Minute), def)
	tenants := &fakeTenantRepo{tenants: []domain.Tenant{{ID: "tenant-1", IsActive: true}}}
	tickets := &fakeTicketRepo{byTenant: map[string][]domain.Ticket{"tenant-1": {ticket}}}
	store := newFakeThresholdStore()
	slas := alwaysOnSLARepo()
	m := newTestMonitor(tenants, tickets, slas, store, now)

	require.NoError(t, m.RunTick(context.Background()))
	require.Len(t, store.emitted(), 3)

	// An admin relaxes the response target from 60 to 600 minutes and
	// the ticket's deadline is recomputed accordingly.
	relaxed := alwaysOnDefinition()
	relaxed.ResponseTargetMinutes = 600
	slas.defs["def-1"] = relaxed
	newDeadline := ticket.CreatedAt.Add(600 * time.Minute)
	ticket.ResponseDeadline = &newDeadline
	tickets.byTenant["tenant-1"] = []domain.Ticket{ticket}

	// The next tick sees 15% consumption: no new thresholds are due,
	// and the marks already claimed stay on record.
	m.now = func() time.Time { return now.Add(10 * time.Minute) }
	require.NoError(t, m.RunTick(context.Background()))

	assert.Len(t, store.emitted(), 3)
	marks, err := store.ListMarks(context.Background(), "tck-1")
	require.NoError(t, err)
	assert.Len(t, marks, 3)
}

func TestBreakerSkipsRepeatedlyFailingTenant(t *testing.T) {
	now := time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC)

	tenants := &fakeTenantRepo{tenants: []domain.Tenant{{ID: "tenant-1", IsActive: true}}}
	tickets := &fakeTicketRepo{err: errors.New("db down")}
	m := newTestMonitor(tenants, tickets, alwaysOnSLARepo(), newFakeThresholdStore(), now)

	for i := 0; i < 3; i++ {
		require.NoError(t, m.RunTick(context.Background()))
	}
	assert.Equal(t, 3, tickets.listCalls())

	// Three consecutive failures trip the breaker; the next tick must
	// not reach the repository at all.
	require.NoError(t, m.RunTick(context.Background()))
	assert.Equal(t, 3, tickets.listCalls())
}
