package domain

import (
	"slices"
	"time"
)

// ThresholdKind identifies one of the six breach thresholds a ticket
// can cross: near, breached and past, for each of the two SLA clocks.
type ThresholdKind string

const (
	ThresholdResponseNear     ThresholdKind = "RESPONSE_NEAR"
	ThresholdResponseBreached ThresholdKind = "RESPONSE_BREACHED"
	ThresholdResponsePast     ThresholdKind = "RESPONSE_PAST"
	ThresholdResolveNear      ThresholdKind = "RESOLVE_NEAR"
	ThresholdResolveBreached  ThresholdKind = "RESOLVE_BREACHED"
	ThresholdResolvePast      ThresholdKind = "RESOLVE_PAST"
)

// AllThresholdKinds lists every kind in escalation order per clock.
var AllThresholdKinds = []ThresholdKind{
	ThresholdResponseNear,
	ThresholdResponseBreached,
	ThresholdResponsePast,
	ThresholdResolveNear,
	ThresholdResolveBreached,
	ThresholdResolvePast,
}

// Valid reports whether k is one of the six known kinds.
func (k ThresholdKind) Valid() bool {
	return slices.Contains(AllThresholdKinds, k)
}

// Severity maps a threshold kind onto the notification severity that
// its crossing emits.
func (k ThresholdKind) Severity() NotificationSeverity {
	switch k {
	case ThresholdResponseNear, ThresholdResolveNear:
		return SeverityWarning
	case ThresholdResponseBreached, ThresholdResolveBreached:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// ThresholdMark records that one threshold fired for one ticket. Rows
// are written once and never cleared, which is what makes notification
// delivery exactly-once: the insert either claims the mark or finds it
// already claimed.
type ThresholdMark struct {
	TicketID string
	Kind     ThresholdKind
	FiredAt  time.Time
}
