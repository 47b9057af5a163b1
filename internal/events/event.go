// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"leadengine_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Scoring Domain Events
// =============================================================================

// ScoresRefreshed is published after a full score snapshot swap completes.
type ScoresRefreshed struct {
	BaseEvent
	OrganizationID uuid.UUID `json:"organizationId"`
	LeadCount      int       `json:"leadCount"`
	MeanScore      float64   `json:"meanScore"`
	HotCount       int       `json:"hotCount"`
}

func (e ScoresRefreshed) EventName() string { return "scoring.scores.refreshed" }

// =============================================================================
// Assignment Domain Events
// =============================================================================

// AssignedLead is one committed lead-to-salesperson assignment inside a batch.
type AssignedLead struct {
	LeadID        uuid.UUID `json:"leadId"`
	LeadEmail     string    `json:"leadEmail"`
	LeadCompany   string    `json:"leadCompany"`
	AssignedToID  uuid.UUID `json:"assignedToId"`
	AssignedTo    string    `json:"assignedTo"`
	AssigneeEmail string    `json:"assigneeEmail"`
	AssignedAt    time.Time `json:"assignedAt"`
}

// LeadsAssigned is published after a bulk assignment batch commits at least
// one lead.
type LeadsAssigned struct {
	BaseEvent
	OrganizationID uuid.UUID      `json:"organizationId"`
	Strategy       string         `json:"strategy"`
	Assignments    []AssignedLead `json:"assignments"`
}

func (e LeadsAssigned) EventName() string { return "automation.leads.assigned" }
