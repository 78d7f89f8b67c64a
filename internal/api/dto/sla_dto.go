package dto

import "time"

// SLADefinitionView is the definition subset exposed on SLA reads.
type SLADefinitionView struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	ResponseTargetMinutes int    `json:"response_target_minutes"`
	ResolveTargetMinutes  int    `json:"resolve_target_minutes"`
	ResolveAfterResponse  bool   `json:"resolve_after_response"`
	NearBreachPercent     int    `json:"near_breach_percent"`
	PastBreachPercent     int    `json:"past_breach_percent"`
}

// ClockView reports one SLA clock: consumed minutes against the target
// and the projected deadline.
type ClockView struct {
	ElapsedMinutes  int        `json:"elapsed_minutes"`
	TargetMinutes   int        `json:"target_minutes"`
	ConsumedPercent float64    `json:"consumed_percent"`
	Deadline        *time.Time `json:"deadline"`
}

// ThresholdMarkView represents one fired threshold.
type ThresholdMarkView struct {
	Kind     string    `json:"kind"`
	Severity string    `json:"severity"`
	FiredAt  time.Time `json:"fired_at"`
}

// TicketSLAResponse provides the full SLA state of a ticket. Definition
// and clocks stay null for tickets whose SLA has not been resolved yet.
type TicketSLAResponse struct {
	TicketID    string              `json:"ticket_id"`
	Definition  *SLADefinitionView  `json:"definition"`
	Source      *string             `json:"source"`
	Response    *ClockView          `json:"response"`
	Resolve     *ClockView          `json:"resolve"`
	Thresholds  []ThresholdMarkView `json:"thresholds"`
	EvaluatedAt time.Time           `json:"evaluated_at"`
}

// RecomputeSLAResponse reports the outcome of a forced recomputation.
type RecomputeSLAResponse struct {
	TicketID         string     `json:"ticket_id"`
	DefinitionID     *string    `json:"definition_id"`
	Source           *string    `json:"source"`
	ResponseDeadline *time.Time `json:"response_deadline"`
	ResolveDeadline  *time.Time `json:"resolve_deadline"`
}
