package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// SLAChangeRepository stores the audit trail of SLA assignments and
// recomputations.
type SLAChangeRepository interface {
	Create(ctx context.Context, change *domain.SLAChange) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.SLAChange, error)
}

type slaChangeRepository struct {
	pool *pgxpool.Pool
}

// NewSLAChangeRepository builds repository.
func NewSLAChangeRepository(pool *pgxpool.Pool) SLAChangeRepository {
	return &slaChangeRepository{pool: pool}
}

func (r *slaChangeRepository) Create(ctx context.Context, change *domain.SLAChange) error {
	const query = `
        INSERT INTO sla_change_log (tenant_id, ticket_id, change_type, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		change.TenantID,
		change.TicketID,
		change.ChangeType,
		change.OldValue,
		change.NewValue,
	).Scan(&change.ID, &change.CreatedAt)
}

func (r *slaChangeRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.SLAChange, error) {
	const query = `
        SELECT id, tenant_id, ticket_id, change_type, old_value, new_value, created_at
        FROM sla_change_log WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLAChange
	for rows.Next() {
		var change domain.SLAChange
		if err := rows.Scan(
			&change.ID,
			&change.TenantID,
			&change.TicketID,
			&change.ChangeType,
			&change.OldValue,
			&change.NewValue,
			&change.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, change)
	}
	return result, rows.Err()
}
