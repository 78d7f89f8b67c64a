package domain

import (
	"fmt"
	"time"
)

// SLASource records which override layer supplied a ticket's SLA.
type SLASource string

const (
	SLASourceTicket   SLASource = "TICKET"
	SLASourceCustomer SLASource = "CUSTOMER"
	SLASourceCategory SLASource = "CATEGORY"
	SLASourceCMDB     SLASource = "CMDB"
	SLASourceDefault  SLASource = "DEFAULT"
)

// SLADefinition is a named pair of response/resolution targets bound to
// a business-hours profile. Targets are whole business minutes.
//
// When ResolveAfterResponse is set the resolution clock does not start
// until the ticket's first agent response; otherwise both clocks start
// at ticket creation.
type SLADefinition struct {
	ID                     string
	TenantID               string
	Name                   string
	BusinessHoursProfileID string
	ResponseTargetMinutes  int
	ResolveTargetMinutes   int
	ResolveAfterResponse   bool
	NearBreachPercent      int
	PastBreachPercent      int
	IsActive               bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Validate reports whether the definition's targets and thresholds are
// internally consistent.
func (d *SLADefinition) Validate() error {
	if d.ResponseTargetMinutes <= 0 {
		return fmt.Errorf("sla definition %s: response target must be positive", d.ID)
	}
	if d.ResolveTargetMinutes <= 0 {
		return fmt.Errorf("sla definition %s: resolve target must be positive", d.ID)
	}
	if d.NearBreachPercent <= 0 || d.NearBreachPercent >= d.PastBreachPercent {
		return fmt.Errorf("sla definition %s: near-breach percent must sit between zero and the past-breach percent", d.ID)
	}
	return nil
}

// SLAResolutionContext carries the candidate definition found at each
// override layer for one ticket. A nil entry means the layer has no
// binding for that ticket. Repositories fill it; the resolver walks it.
type SLAResolutionContext struct {
	TicketOverride  *SLADefinition
	UserOverride    *SLADefinition
	CompanyDefault  *SLADefinition
	CategoryMapping *SLADefinition
	CMDBLinked      *SLADefinition
	TenantDefault   *SLADefinition
}
