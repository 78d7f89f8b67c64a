package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/repository"
	"github.com/spec-kit/sla-engine/pkg/util"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	maxBulkAck       = 100
)

// NotificationService exposes the breach notification store to
// collaborator subsystems: paged listing plus idempotent delivery
// acknowledgement.
type NotificationService struct {
	notifications repository.NotificationRepository
	logger        *zap.Logger
	now           func() time.Time
}

// NewNotificationService creates the service.
func NewNotificationService(notifications repository.NotificationRepository, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		logger:        logger,
		now:           time.Now,
	}
}

// NotificationQuery describes the list surface before validation.
type NotificationQuery struct {
	TenantID    *string
	TicketID    *string
	Types       []string
	Severities  []string
	Delivered   *bool
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// List returns one page of notifications plus the unpaged total.
// Limits clamp to the allowed window instead of failing; unknown type
// or severity values are rejected.
func (s *NotificationService) List(ctx context.Context, query NotificationQuery) ([]domain.Notification, int64, error) {
	filter := repository.NotificationFilter{
		TenantID:    query.TenantID,
		TicketID:    query.TicketID,
		Delivered:   query.Delivered,
		CreatedFrom: query.CreatedFrom,
		CreatedTo:   query.CreatedTo,
		Offset:      query.Offset,
	}

	for _, raw := range query.Types {
		kind := domain.ThresholdKind(raw)
		if !kind.Valid() {
			return nil, 0, util.NewValidationError("unknown notification type",
				map[string]any{"type": raw})
		}
		filter.Types = append(filter.Types, kind)
	}
	for _, raw := range query.Severities {
		severity := domain.NotificationSeverity(raw)
		if !severity.Valid() {
			return nil, 0, util.NewValidationError("unknown severity",
				map[string]any{"severity": raw})
		}
		filter.Severities = append(filter.Severities, severity)
	}

	filter.Limit = query.Limit
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	return s.notifications.ListWithFilter(ctx, filter)
}

// MarkDelivered acknowledges one notification. The first call stamps
// delivered_at; repeats succeed without touching the stored instant,
// so consumers can retry acks freely.
func (s *NotificationService) MarkDelivered(ctx context.Context, id string) (*domain.Notification, error) {
	updated, err := s.notifications.MarkDelivered(ctx, id, s.now().UTC())
	if err != nil {
		return nil, err
	}

	notification, err := s.notifications.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("notification", map[string]any{"notification_id": id})
		}
		return nil, err
	}

	if updated {
		s.logger.Info("notification delivered",
			zap.String("notification_id", id),
			zap.String("ticket_id", notification.TicketID),
			zap.String("type", string(notification.Type)),
		)
	}
	return notification, nil
}

// BulkMarkDelivered acknowledges a batch and reports how many rows
// actually flipped. Unknown and already-delivered ids are skipped, not
// errors; only an oversized or empty batch is rejected.
func (s *NotificationService) BulkMarkDelivered(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, util.NewValidationError("ids must not be empty", nil)
	}
	if len(ids) > maxBulkAck {
		return 0, util.NewValidationError("too many ids in one batch",
			map[string]any{"max": maxBulkAck, "got": len(ids)})
	}

	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	updated, err := s.notifications.BulkMarkDelivered(ctx, unique, s.now().UTC())
	if err != nil {
		return 0, err
	}
	s.logger.Info("notifications delivered in bulk",
		zap.Int("requested", len(unique)),
		zap.Int64("updated", updated),
	)
	return updated, nil
}
