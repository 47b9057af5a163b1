// Package domain holds the core types of the scoring bounded context.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// LeadStatus is the pipeline stage of a lead in the external lead store.
type LeadStatus string

const (
	StatusNew         LeadStatus = "new"
	StatusContacted   LeadStatus = "contacted"
	StatusQualified   LeadStatus = "qualified"
	StatusProposal    LeadStatus = "proposal"
	StatusNegotiation LeadStatus = "negotiation"
	StatusWon         LeadStatus = "won"
	StatusLost        LeadStatus = "lost"
)

// PipelineOrder lists the open stages in funnel order. Won/lost are terminal
// and excluded from active scoring.
var PipelineOrder = []LeadStatus{
	StatusNew,
	StatusContacted,
	StatusQualified,
	StatusProposal,
	StatusNegotiation,
}

// StageIndex returns the position of a status in the funnel, or -1 for
// terminal/unknown statuses.
func StageIndex(status LeadStatus) int {
	for i, s := range PipelineOrder {
		if s == status {
			return i
		}
	}
	return -1
}

// IsActive reports whether the status counts as an open pipeline stage.
func (s LeadStatus) IsActive() bool {
	return StageIndex(s) >= 0
}

// Lead is the engine's read-only view of a lead in the external store.
type Lead struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Email          string
	Company        string
	Status         LeadStatus
	Source         string
	DealValue      float64
	AssignedRepID  *uuid.UUID
	CreatedAt      time.Time
}

// ActivityFacts are per-lead activity aggregates over a trailing window.
// They are inputs to scoring and never mutated by this engine.
type ActivityFacts struct {
	EmailCount            int
	CallCount             int
	MeetingCount          int
	DaysSinceLastActivity float64
	DaysSinceCreated      float64
	DaysInStage           float64
}

// TotalActivities returns the raw activity count across all channels.
func (f ActivityFacts) TotalActivities() int {
	return f.EmailCount + f.CallCount + f.MeetingCount
}

// Baselines are per-organization historical aggregates the engine scores
// against, so the same lead facts produce different scores in organizations
// with different histories.
type Baselines struct {
	// SourceConversion maps a source channel to its historical win rate.
	SourceConversion map[string]float64
	// OverallConversion is the organization-wide historical win rate,
	// used for channels with no history of their own.
	OverallConversion float64
	// DealValues is the trailing distribution of deal values, ascending.
	DealValues []float64
	// StageMedianDays maps each open stage to the organization's median
	// days spent in that stage.
	StageMedianDays map[LeadStatus]float64
	// DefaultSubScores are the previous snapshot's average sub-scores,
	// used to fill in for leads missing required facts.
	DefaultSubScores SubScores
	// HasDefaults reports whether DefaultSubScores carries real history.
	HasDefaults bool
}

// MedianDaysFor returns the stage median, falling back to a coarse default
// when the organization has no history for the stage.
func (b Baselines) MedianDaysFor(status LeadStatus) float64 {
	if days, ok := b.StageMedianDays[status]; ok && days > 0 {
		return days
	}
	return 14
}
