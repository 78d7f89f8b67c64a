package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

const notificationColumns = `id, tenant_id, ticket_id, type, severity, message, payload, created_at, delivered_at`

// NotificationFilter captures the collaborator API's query surface.
type NotificationFilter struct {
	TenantID    *string
	TicketID    *string
	Types       []domain.ThresholdKind
	Severities  []domain.NotificationSeverity
	Delivered   *bool
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// NotificationRepository persists the append-only breach alert store.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	ListWithFilter(ctx context.Context, filter NotificationFilter) ([]domain.Notification, int64, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) (bool, error)
	BulkMarkDelivered(ctx context.Context, ids []string, at time.Time) (int64, error)
}

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx so the same
// insert can run standalone or inside the threshold-claim transaction.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository instantiates repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	return insertNotification(ctx, r.pool, n)
}

func insertNotification(ctx context.Context, q pgQuerier, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (tenant_id, ticket_id, type, severity, message, payload)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return q.QueryRow(ctx, query,
		n.TenantID,
		n.TicketID,
		n.Type,
		n.Severity,
		n.Message,
		n.Payload,
	).Scan(&n.ID, &n.CreatedAt)
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	const query = `
        SELECT ` + notificationColumns + `
        FROM notifications WHERE id=$1`
	var n domain.Notification
	if err := scanNotification(r.pool.QueryRow(ctx, query, id), &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepository) ListWithFilter(ctx context.Context, filter NotificationFilter) ([]domain.Notification, int64, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.TenantID != nil {
		args = append(args, *filter.TenantID)
		clauses = append(clauses, fmt.Sprintf("tenant_id=$%d", len(args)))
	}
	if filter.TicketID != nil {
		args = append(args, *filter.TicketID)
		clauses = append(clauses, fmt.Sprintf("ticket_id=$%d", len(args)))
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, kind := range filter.Types {
			args = append(args, kind)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("type IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Severities) > 0 {
		placeholders := make([]string, len(filter.Severities))
		for i, sev := range filter.Severities {
			args = append(args, sev)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("severity IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Delivered != nil {
		if *filter.Delivered {
			clauses = append(clauses, "delivered_at IS NOT NULL")
		} else {
			clauses = append(clauses, "delivered_at IS NULL")
		}
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	where := strings.Join(clauses, " AND ")

	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM notifications WHERE %s`, where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	pageQuery := fmt.Sprintf(`SELECT %s FROM notifications WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		notificationColumns, where, limit, offset)

	rows, err := r.pool.Query(ctx, pageQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := scanNotification(rows, &n); err != nil {
			return nil, 0, err
		}
		result = append(result, n)
	}
	return result, total, rows.Err()
}

// MarkDelivered acknowledges one notification. The update is
// conditional on delivered_at still being null, so the first ack wins
// and repeats report false without touching the row.
func (r *notificationRepository) MarkDelivered(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `
        UPDATE notifications SET delivered_at=$2
        WHERE id=$1 AND delivered_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

// BulkMarkDelivered acknowledges a batch and returns how many rows
// actually flipped; already-delivered and unknown ids count zero.
func (r *notificationRepository) BulkMarkDelivered(ctx context.Context, ids []string, at time.Time) (int64, error) {
	const query = `
        UPDATE notifications SET delivered_at=$2
        WHERE id = ANY($1) AND delivered_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, ids, at)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func scanNotification(row pgx.Row, n *domain.Notification) error {
	return row.Scan(
		&n.ID,
		&n.TenantID,
		&n.TicketID,
		&n.Type,
		&n.Severity,
		&n.Message,
		&n.Payload,
		&n.CreatedAt,
		&n.DeliveredAt,
	)
}
