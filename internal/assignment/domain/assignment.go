// Package domain holds the assignment bounded context's core types: the
// roster, planned distributions, and committed assignment records.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Salesperson is one eligible assignee with the workload and close-rate
// signals the strategies weigh. Built fresh per planning call.
type Salesperson struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Region        string    `json:"region"`
	CloseRate     float64   `json:"close_rate"`
	OpenLeadCount int       `json:"open_lead_count"`

	// CloseRateByProfile maps a lead profile key to this rep's historical
	// close rate on similar leads. Missing profiles fall back to CloseRate.
	CloseRateByProfile map[string]float64 `json:"-"`
}

// UnassignedLead is the projection of a lead the planner and executor work
// with. Ordering is always oldest-first by CreatedAt, then by id.
type UnassignedLead struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Company   string    `json:"company"`
	Source    string    `json:"source"`
	Region    string    `json:"region"`
	DealValue float64   `json:"deal_value"`
	CreatedAt time.Time `json:"created_at"`
}

// TerritoryRule maps a lead region to the salesperson who owns it.
type TerritoryRule struct {
	Region        string
	SalespersonID uuid.UUID
}

// StrategyInfo describes one catalogue entry.
type StrategyInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Share is one salesperson's slice of a planned distribution. Percent values
// across a plan always sum to exactly 100.
type Share struct {
	SalespersonID  uuid.UUID `json:"salesperson_id"`
	Name           string    `json:"name"`
	OpenLeadCount  int       `json:"open_lead_count"`
	CloseRate      float64   `json:"close_rate"`
	Percent        int       `json:"percent"`
	ProjectedLeads int       `json:"projected_leads"`
}

// Plan is the read-only preview of a strategy run. It never mutates state.
type Plan struct {
	Strategy          string  `json:"strategy"`
	Description       string  `json:"description"`
	PerSalesperson    []Share `json:"per_salesperson"`
	UnassignedCount   int     `json:"unassigned_count"`
	UnassignableCount int     `json:"unassignable_count"`
}

// NoEligibleAssignees marks a plan produced against an empty roster.
const NoEligibleAssignees = "no eligible assignees"

// AssignmentRecord is the write-once audit row for one committed assignment.
type AssignmentRecord struct {
	ID             uuid.UUID `json:"id"`
	LeadID         uuid.UUID `json:"lead_id"`
	OrganizationID uuid.UUID `json:"-"`
	AssignedToID   uuid.UUID `json:"assigned_to_id"`
	AssignedTo     string    `json:"assigned_to"`
	Strategy       string    `json:"strategy"`
	AssignedAt     time.Time `json:"assigned_at"`
}

// BulkResult reports what a bulk assignment actually accomplished. Partial
// success is expected: leads claimed concurrently are skipped, not errors.
type BulkResult struct {
	Strategy        string             `json:"strategy"`
	Requested       int                `json:"requested"`
	AssignmentsMade int                `json:"assignments_made"`
	Skipped         int                `json:"skipped"`
	Unassignable    int                `json:"unassignable"`
	Assignments     []AssignmentRecord `json:"assignments"`
}

// Stats is the aggregate view of assignment coverage for an organization.
type Stats struct {
	TotalLeads      int     `json:"total_leads"`
	AssignedLeads   int     `json:"assigned_leads"`
	UnassignedLeads int     `json:"unassigned_leads"`
	AssignmentRate  float64 `json:"assignment_rate"`
	ActiveReps      int     `json:"active_reps"`
	AverageWorkload float64 `json:"average_workload"`
}

// Deal value bands used to group leads into close-rate profiles.
const (
	BandSmall  = "small"
	BandMedium = "medium"
	BandLarge  = "large"
)

// ValueBand buckets a deal value into a coarse size band.
func ValueBand(dealValue float64) string {
	switch {
	case dealValue >= 25000:
		return BandLarge
	case dealValue >= 5000:
		return BandMedium
	default:
		return BandSmall
	}
}

// ProfileKey identifies a lead profile for close-rate lookups.
func ProfileKey(source string, dealValue float64) string {
	return fmt.Sprintf("%s|%s", strings.ToLower(strings.TrimSpace(source)), ValueBand(dealValue))
}
