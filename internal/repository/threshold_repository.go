package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// ThresholdRepository persists threshold marks, the write-once rows
// that make breach notifications exactly-once.
type ThresholdRepository interface {
	ListMarks(ctx context.Context, ticketID string) ([]domain.ThresholdMark, error)
	Record(ctx context.Context, mark domain.ThresholdMark, n *domain.Notification) (bool, error)
}

type thresholdRepository struct {
	pool *pgxpool.Pool
}

// NewThresholdRepository instantiates repository.
func NewThresholdRepository(pool *pgxpool.Pool) ThresholdRepository {
	return &thresholdRepository{pool: pool}
}

func (r *thresholdRepository) ListMarks(ctx context.Context, ticketID string) ([]domain.ThresholdMark, error) {
	const query = `
        SELECT ticket_id, kind, fired_at
        FROM sla_threshold_marks WHERE ticket_id=$1
        ORDER BY fired_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ThresholdMark
	for rows.Next() {
		var m domain.ThresholdMark
		if err := rows.Scan(&m.TicketID, &m.Kind, &m.FiredAt); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// Record claims the mark and writes its notification in one
// transaction. The conditional insert is the idempotency gate: when a
// concurrent or earlier tick already claimed the mark, nothing is
// written and Record reports false. A crash before commit leaves
// neither row, so the next tick simply tries again.
func (r *thresholdRepository) Record(ctx context.Context, mark domain.ThresholdMark, n *domain.Notification) (bool, error) {
	const claim = `
        INSERT INTO sla_threshold_marks (ticket_id, kind, fired_at)
        VALUES ($1,$2,$3)
        ON CONFLICT (ticket_id, kind) DO NOTHING`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cmd, err := tx.Exec(ctx, claim, mark.TicketID, mark.Kind, mark.FiredAt)
	if err != nil {
		return false, err
	}
	if cmd.RowsAffected() == 0 {
		return false, nil
	}
	if err := insertNotification(ctx, tx, n); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}
