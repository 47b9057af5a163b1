package repository

import (
	"context"

	"leadengine_backend/internal/scoring/domain"

	"github.com/google/uuid"
)

// LeadReader provides read access to leads and their activity aggregates.
type LeadReader interface {
	GetActiveLeads(ctx context.Context, organizationID uuid.UUID) ([]domain.Lead, error)
	GetLead(ctx context.Context, organizationID, leadID uuid.UUID) (domain.Lead, error)
	GetActivityFacts(ctx context.Context, organizationID uuid.UUID) (map[uuid.UUID]domain.ActivityFacts, error)
	GetLeadActivityFacts(ctx context.Context, organizationID, leadID uuid.UUID) (*domain.ActivityFacts, error)
}

// BaselineReader provides the organization-level reference data the engine
// calibrates against.
type BaselineReader interface {
	GetBaselines(ctx context.Context, organizationID uuid.UUID) (domain.Baselines, error)
}

// ScoreStore persists computed scores across restarts.
type ScoreStore interface {
	UpsertScores(ctx context.Context, organizationID uuid.UUID, scores []domain.LeadScore) error
	LoadScores(ctx context.Context, organizationID uuid.UUID) ([]domain.LeadScore, error)
	ListScoredOrganizations(ctx context.Context) ([]uuid.UUID, error)
}
