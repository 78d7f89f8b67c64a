package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

const ticketColumns = `id, tenant_id, requester_user_id, company_id, category_id, cmdb_item_id,
               sla_override_id, status, sla_definition_id, sla_source,
               response_deadline, resolve_deadline, created_at, first_responded_at, updated_at`

// TicketRepository is the engine's read/annotate view of tickets. The
// ticketing subsystem owns the rows; this repository only reads them
// and writes back the SLA columns.
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListOpenWithDeadlines(ctx context.Context, tenantID string) ([]domain.Ticket, error)
	UpdateSLAFields(ctx context.Context, ticket *domain.Ticket) error
	RecordFirstResponse(ctx context.Context, id string, at time.Time) (bool, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `
        SELECT ` + ticketColumns + `
        FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, id), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// ListOpenWithDeadlines returns the breach-monitor scan set for one
// tenant: open tickets that carry an SLA and at least one non-null
// deadline, oldest first.
func (r *ticketRepository) ListOpenWithDeadlines(ctx context.Context, tenantID string) ([]domain.Ticket, error) {
	const query = `
        SELECT ` + ticketColumns + `
        FROM tickets
        WHERE tenant_id=$1
          AND status NOT IN ('RESOLVED','CLOSED','CANCELLED')
          AND sla_definition_id IS NOT NULL
          AND (response_deadline IS NOT NULL OR resolve_deadline IS NOT NULL)
        ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// UpdateSLAFields persists the outcome of a resolution pass: the
// governing definition, its source and both projected deadlines.
func (r *ticketRepository) UpdateSLAFields(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET sla_definition_id=$1, sla_source=$2, response_deadline=$3, resolve_deadline=$4, updated_at=NOW()
        WHERE id=$5`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.SLADefinitionID,
		ticket.SLASource,
		ticket.ResponseDeadline,
		ticket.ResolveDeadline,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// RecordFirstResponse stamps the first response instant. The write is
// conditional on the column still being null, so replayed events keep
// the original instant; the return value reports whether this call won.
func (r *ticketRepository) RecordFirstResponse(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `
        UPDATE tickets SET first_responded_at=$2, updated_at=NOW()
        WHERE id=$1 AND first_responded_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.TenantID,
		&ticket.RequesterUserID,
		&ticket.CompanyID,
		&ticket.CategoryID,
		&ticket.CMDBItemID,
		&ticket.SLAOverrideID,
		&ticket.Status,
		&ticket.SLADefinitionID,
		&ticket.SLASource,
		&ticket.ResponseDeadline,
		&ticket.ResolveDeadline,
		&ticket.CreatedAt,
		&ticket.FirstRespondedAt,
		&ticket.UpdatedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
