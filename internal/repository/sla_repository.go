package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

const definitionColumns = `d.id, d.tenant_id, d.name, d.business_hours_profile_id,
               d.response_target_minutes, d.resolve_target_minutes, d.resolve_after_response,
               d.near_breach_percent, d.past_breach_percent, d.is_active, d.created_at, d.updated_at`

// SLARepository loads SLA configuration: definitions, business-hours
// profiles and the per-ticket override context the resolver walks.
type SLARepository interface {
	GetDefinition(ctx context.Context, id string) (*domain.SLADefinition, error)
	GetProfile(ctx context.Context, id string) (*domain.BusinessHoursProfile, error)
	ResolutionContext(ctx context.Context, ticket *domain.Ticket) (domain.SLAResolutionContext, error)
}

type slaRepository struct {
	pool *pgxpool.Pool
}

// NewSLARepository instantiates repository.
func NewSLARepository(pool *pgxpool.Pool) SLARepository {
	return &slaRepository{pool: pool}
}

func (r *slaRepository) GetDefinition(ctx context.Context, id string) (*domain.SLADefinition, error) {
	const query = `
        SELECT ` + definitionColumns + `
        FROM sla_definitions d WHERE d.id=$1`
	def, err := r.definitionWhere(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, pgx.ErrNoRows
	}
	return def, nil
}

func (r *slaRepository) GetProfile(ctx context.Context, id string) (*domain.BusinessHoursProfile, error) {
	const query = `
        SELECT id, tenant_id, name, timezone, weekdays, day_start, day_end, is_24x7, created_at, updated_at
        FROM business_hours_profiles WHERE id=$1`
	var p domain.BusinessHoursProfile
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.TenantID,
		&p.Name,
		&p.Timezone,
		&p.Weekdays,
		&p.DayStart,
		&p.DayEnd,
		&p.Is24x7,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

// ResolutionContext collects the candidate definition from every
// override layer for one ticket. Layers without a binding stay nil;
// precedence is the resolver's business, not the repository's.
func (r *slaRepository) ResolutionContext(ctx context.Context, ticket *domain.Ticket) (domain.SLAResolutionContext, error) {
	var rc domain.SLAResolutionContext
	var err error

	if ticket.SLAOverrideID != nil {
		const query = `
            SELECT ` + definitionColumns + `
            FROM sla_definitions d WHERE d.id=$1 AND d.tenant_id=$2`
		if rc.TicketOverride, err = r.definitionWhere(ctx, query, *ticket.SLAOverrideID, ticket.TenantID); err != nil {
			return rc, err
		}
	}

	const userQuery = `
        SELECT ` + definitionColumns + `
        FROM sla_definitions d
        JOIN user_sla_overrides o ON o.sla_definition_id = d.id
        WHERE o.tenant_id=$1 AND o.user_id=$2`
	if rc.UserOverride, err = r.definitionWhere(ctx, userQuery, ticket.TenantID, ticket.RequesterUserID); err != nil {
		return rc, err
	}

	if ticket.CompanyID != nil {
		const query = `
            SELECT ` + definitionColumns + `
            FROM sla_definitions d
            JOIN companies c ON c.default_sla_definition_id = d.id
            WHERE c.tenant_id=$1 AND c.id=$2`
		if rc.CompanyDefault, err = r.definitionWhere(ctx, query, ticket.TenantID, *ticket.CompanyID); err != nil {
			return rc, err
		}
	}

	if ticket.CategoryID != nil {
		const query = `
            SELECT ` + definitionColumns + `
            FROM sla_definitions d
            JOIN category_sla_mappings m ON m.sla_definition_id = d.id
            WHERE m.tenant_id=$1 AND m.category_id=$2`
		if rc.CategoryMapping, err = r.definitionWhere(ctx, query, ticket.TenantID, *ticket.CategoryID); err != nil {
			return rc, err
		}
	}

	if ticket.CMDBItemID != nil {
		const query = `
            SELECT ` + definitionColumns + `
            FROM sla_definitions d
            JOIN cmdb_item_sla_links l ON l.sla_definition_id = d.id
            WHERE l.tenant_id=$1 AND l.cmdb_item_id=$2`
		if rc.CMDBLinked, err = r.definitionWhere(ctx, query, ticket.TenantID, *ticket.CMDBItemID); err != nil {
			return rc, err
		}
	}

	const defaultQuery = `
        SELECT ` + definitionColumns + `
        FROM sla_definitions d
        JOIN tenants t ON t.default_sla_definition_id = d.id
        WHERE t.id=$1`
	if rc.TenantDefault, err = r.definitionWhere(ctx, defaultQuery, ticket.TenantID); err != nil {
		return rc, err
	}

	return rc, nil
}

func (r *slaRepository) definitionWhere(ctx context.Context, query string, args ...any) (*domain.SLADefinition, error) {
	var d domain.SLADefinition
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&d.ID,
		&d.TenantID,
		&d.Name,
		&d.BusinessHoursProfileID,
		&d.ResponseTargetMinutes,
		&d.ResolveTargetMinutes,
		&d.ResolveAfterResponse,
		&d.NearBreachPercent,
		&d.PastBreachPercent,
		&d.IsActive,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}
