// Package sla holds the pure SLA logic: picking the definition that
// governs a ticket and turning its targets into concrete deadlines.
// Everything here is side-effect free; repositories feed it and
// services persist what it returns.
package sla

import (
	"fmt"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// ConfigurationError means no override layer, including the tenant
// default, produced an active SLA definition for a ticket. The tenant
// is misconfigured and the ticket keeps its previous SLA state.
type ConfigurationError struct {
	TicketID string
	TenantID string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("no active sla definition resolves for ticket %s in tenant %s", e.TicketID, e.TenantID)
}

// layer binds a precedence slot to the context field it reads and the
// source recorded when it wins. User overrides and company defaults
// both report CUSTOMER: callers care that the customer relationship
// decided, not which of the two tables held the row.
type layer struct {
	source domain.SLASource
	pick   func(domain.SLAResolutionContext) *domain.SLADefinition
}

var layers = []layer{
	{domain.SLASourceTicket, func(c domain.SLAResolutionContext) *domain.SLADefinition { return c.TicketOverride }},
	{domain.SLASourceCustomer, func(c domain.SLAResolutionContext) *domain.SLADefinition { return c.UserOverride }},
	{domain.SLASourceCustomer, func(c domain.SLAResolutionContext) *domain.SLADefinition { return c.CompanyDefault }},
	{domain.SLASourceCategory, func(c domain.SLAResolutionContext) *domain.SLADefinition { return c.CategoryMapping }},
	{domain.SLASourceCMDB, func(c domain.SLAResolutionContext) *domain.SLADefinition { return c.CMDBLinked }},
	{domain.SLASourceDefault, func(c domain.SLAResolutionContext) *domain.SLADefinition { return c.TenantDefault }},
}

// Resolve walks the override layers in precedence order and returns
// the first active definition together with the source tag recorded on
// the ticket. Inactive definitions are skipped, so retiring a
// definition makes its tickets fall through to the next layer on the
// following recompute.
func Resolve(ticket *domain.Ticket, rc domain.SLAResolutionContext) (*domain.SLADefinition, domain.SLASource, error) {
	for _, l := range layers {
		def := l.pick(rc)
		if def == nil || !def.IsActive {
			continue
		}
		return def, l.source, nil
	}
	return nil, "", &ConfigurationError{TicketID: ticket.ID, TenantID: ticket.TenantID}
}
