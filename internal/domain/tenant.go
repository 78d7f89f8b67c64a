package domain

import "time"

// Tenant is an isolated customer organization. Every SLA object and
// every ticket belongs to exactly one tenant.
type Tenant struct {
	ID                     string
	Name                   string
	DefaultSLADefinitionID *string
	IsActive               bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}
