package service

import (
	"context"
	"errors"

	"leadengine_backend/internal/assignment/domain"
	"leadengine_backend/internal/assignment/executor"
	"leadengine_backend/internal/assignment/planner"
	"leadengine_backend/internal/assignment/strategy"
	"leadengine_backend/internal/events"
	"leadengine_backend/platform/apperr"
	"leadengine_backend/platform/logger"

	"github.com/google/uuid"
)

// RosterStore is the read surface for planning: roster, workloads, close
// rates, the unassigned queue, and territory rules.
type RosterStore interface {
	GetActiveSalespeople(ctx context.Context, organizationID uuid.UUID) ([]domain.Salesperson, error)
	GetOpenLeadCounts(ctx context.Context, organizationID uuid.UUID) (map[uuid.UUID]int, error)
	GetCloseRatesByProfile(ctx context.Context, organizationID uuid.UUID) (map[uuid.UUID]map[string]float64, error)
	GetUnassignedLeads(ctx context.Context, organizationID uuid.UUID) ([]domain.UnassignedLead, error)
	GetTerritoryRules(ctx context.Context, organizationID uuid.UUID) ([]domain.TerritoryRule, error)
	GetAssignmentStats(ctx context.Context, organizationID uuid.UUID) (domain.Stats, error)
}

type Service struct {
	repo RosterStore
	exec *executor.Executor
	bus  events.Bus
	log  *logger.Logger
}

func New(repo RosterStore, exec *executor.Executor, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, exec: exec, bus: bus, log: log}
}

// Strategies returns the fixed strategy catalogue.
func (s *Service) Strategies() []domain.StrategyInfo {
	return strategy.List()
}

// Preview simulates a strategy run over the current snapshot. It is
// read-only; repeated calls with no intervening assignments return the same
// shares.
func (s *Service) Preview(ctx context.Context, organizationID uuid.UUID, strategyID string) (domain.Plan, error) {
	strat, err := strategy.Get(strategyID)
	if err != nil {
		return domain.Plan{}, apperr.Wrap(apperr.KindValidation, "unknown strategy: "+strategyID, err)
	}

	in, err := s.buildInput(ctx, organizationID)
	if err != nil {
		return domain.Plan{}, apperr.Wrap(apperr.KindInternal, "failed to load planning snapshot", err).WithOp("assignment.Preview")
	}

	return planner.Preview(strat, in), nil
}

// BulkAssign commits up to limit assignments under the given strategy. The
// distribution is recomputed at commit time against a fresh snapshot; a
// stale preview is never reused.
func (s *Service) BulkAssign(ctx context.Context, organizationID uuid.UUID, strategyID string, limit int) (domain.BulkResult, error) {
	strat, err := strategy.Get(strategyID)
	if err != nil {
		return domain.BulkResult{}, apperr.Wrap(apperr.KindValidation, "unknown strategy: "+strategyID, err)
	}
	if limit < 0 {
		return domain.BulkResult{}, apperr.Validation("limit must not be negative")
	}

	in, err := s.buildInput(ctx, organizationID)
	if err != nil {
		return domain.BulkResult{}, apperr.Wrap(apperr.KindInternal, "failed to load assignment snapshot", err).WithOp("assignment.BulkAssign")
	}

	result, execErr := s.exec.Execute(ctx, organizationID, strat, in, limit)
	s.log.AssignmentBatch(organizationID.String(), strategyID, result.Requested, result.AssignmentsMade, result.Skipped)

	if result.AssignmentsMade > 0 {
		s.publishAssigned(ctx, organizationID, strategyID, in, result)
	}

	// Commits made before a cancellation stand; the truncated result is
	// still reported to whoever is listening.
	if execErr != nil && !isCancellation(execErr) {
		return result, apperr.Wrap(apperr.KindInternal, "bulk assignment aborted", execErr).WithOp("assignment.BulkAssign")
	}
	return result, nil
}

// Stats returns assignment coverage aggregates.
func (s *Service) Stats(ctx context.Context, organizationID uuid.UUID) (domain.Stats, error) {
	stats, err := s.repo.GetAssignmentStats(ctx, organizationID)
	if err != nil {
		return domain.Stats{}, apperr.Wrap(apperr.KindInternal, "failed to load assignment stats", err).WithOp("assignment.Stats")
	}
	return stats, nil
}

// buildInput assembles the planning snapshot: roster enriched with workloads
// and close-rate profiles, the unassigned queue oldest first, and territory
// rules.
func (s *Service) buildInput(ctx context.Context, organizationID uuid.UUID) (strategy.Input, error) {
	roster, err := s.repo.GetActiveSalespeople(ctx, organizationID)
	if err != nil {
		return strategy.Input{}, err
	}

	workloads, err := s.repo.GetOpenLeadCounts(ctx, organizationID)
	if err != nil {
		return strategy.Input{}, err
	}
	profiles, err := s.repo.GetCloseRatesByProfile(ctx, organizationID)
	if err != nil {
		return strategy.Input{}, err
	}
	for i := range roster {
		roster[i].OpenLeadCount = workloads[roster[i].ID]
		roster[i].CloseRateByProfile = profiles[roster[i].ID]
	}

	leads, err := s.repo.GetUnassignedLeads(ctx, organizationID)
	if err != nil {
		return strategy.Input{}, err
	}
	rules, err := s.repo.GetTerritoryRules(ctx, organizationID)
	if err != nil {
		return strategy.Input{}, err
	}

	return strategy.Input{Roster: roster, Leads: leads, Territories: rules}, nil
}

func (s *Service) publishAssigned(ctx context.Context, organizationID uuid.UUID, strategyID string, in strategy.Input, result domain.BulkResult) {
	leadsByID := make(map[uuid.UUID]domain.UnassignedLead, len(in.Leads))
	for _, lead := range in.Leads {
		leadsByID[lead.ID] = lead
	}
	repsByID := make(map[uuid.UUID]domain.Salesperson, len(in.Roster))
	for _, rep := range in.Roster {
		repsByID[rep.ID] = rep
	}

	assigned := make([]events.AssignedLead, 0, len(result.Assignments))
	for _, record := range result.Assignments {
		lead := leadsByID[record.LeadID]
		assigned = append(assigned, events.AssignedLead{
			LeadID:        record.LeadID,
			LeadEmail:     lead.Email,
			LeadCompany:   lead.Company,
			AssignedToID:  record.AssignedToID,
			AssignedTo:    record.AssignedTo,
			AssigneeEmail: repsByID[record.AssignedToID].Email,
			AssignedAt:    record.AssignedAt,
		})
	}

	s.bus.Publish(ctx, events.LeadsAssigned{
		BaseEvent:      events.NewBaseEvent(),
		OrganizationID: organizationID,
		Strategy:       strategyID,
		Assignments:    assigned,
	})
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
