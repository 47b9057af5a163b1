package service

import (
	"context"
	"errors"
	"time"

	"leadengine_backend/internal/events"
	"leadengine_backend/internal/scoring/domain"
	"leadengine_backend/internal/scoring/engine"
	"leadengine_backend/internal/scoring/insights"
	"leadengine_backend/internal/scoring/repository"
	"leadengine_backend/platform/apperr"
	"leadengine_backend/platform/config"
	"leadengine_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var ErrLeadNotFound = errors.New("lead not found")

// LeadStore is the persistence surface the service depends on.
type LeadStore interface {
	repository.LeadReader
	repository.BaselineReader
	repository.ScoreStore
}

// RefreshEnqueuer hands a refresh request to the background queue. Nil means
// refreshes run inline in a detached goroutine.
type RefreshEnqueuer interface {
	EnqueueScoreRefresh(ctx context.Context, organizationID uuid.UUID) error
}

type Service struct {
	repo     LeadStore
	engine   *engine.Engine
	store    *insights.Store
	bus      events.Bus
	log      *logger.Logger
	enqueuer RefreshEnqueuer

	thresholds         insights.Thresholds
	refreshConcurrency int
}

func New(repo LeadStore, eng *engine.Engine, store *insights.Store, bus events.Bus, log *logger.Logger, cfg config.ScoringConfig) *Service {
	tuning := cfg.GetScoringTuning()
	return &Service{
		repo:   repo,
		engine: eng,
		store:  store,
		bus:    bus,
		log:    log,
		thresholds: insights.Thresholds{
			Hot:     tuning.HotThreshold,
			Warm:    tuning.WarmThreshold,
			Cool:    tuning.CoolThreshold,
			RiskLow: tuning.RiskLow,
		},
		refreshConcurrency: cfg.GetRefreshConcurrency(),
	}
}

// SetEnqueuer wires the background queue in after construction; the queue
// worker itself depends on this service, so the cycle is broken here.
func (s *Service) SetEnqueuer(enqueuer RefreshEnqueuer) {
	s.enqueuer = enqueuer
}

// RefreshAllScores recomputes every active lead's score for one organization
// and atomically publishes the new snapshot. A context cancellation mid-run
// leaves the previous snapshot untouched.
func (s *Service) RefreshAllScores(ctx context.Context, organizationID uuid.UUID) (*insights.Snapshot, error) {
	started := time.Now()

	leads, err := s.repo.GetActiveLeads(ctx, organizationID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load active leads", err).WithOp("scoring.RefreshAllScores")
	}

	baselines, err := s.repo.GetBaselines(ctx, organizationID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load scoring baselines", err).WithOp("scoring.RefreshAllScores")
	}

	facts, err := s.repo.GetActivityFacts(ctx, organizationID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load activity facts", err).WithOp("scoring.RefreshAllScores")
	}

	scores := make([]domain.LeadScore, len(leads))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.refreshConcurrency)
	for i, lead := range leads {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			var leadFacts *domain.ActivityFacts
			if f, ok := facts[lead.ID]; ok {
				leadFacts = &f
			}
			scores[i] = s.engine.Score(lead, leadFacts, baselines)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "score refresh aborted", err).WithOp("scoring.RefreshAllScores")
	}

	snap := insights.Build(organizationID, scores, s.thresholds, time.Now())

	if err := s.repo.UpsertScores(ctx, organizationID, snap.Scores); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to persist scores", err).WithOp("scoring.RefreshAllScores")
	}
	s.store.Publish(snap)

	s.log.ScoreRefresh(organizationID.String(), len(snap.Scores), snap.Insights.MeanScore, float64(time.Since(started).Milliseconds()))

	s.bus.Publish(ctx, events.ScoresRefreshed{
		BaseEvent:      events.NewBaseEvent(),
		OrganizationID: organizationID,
		LeadCount:      len(snap.Scores),
		MeanScore:      snap.Insights.MeanScore,
		HotCount:       snap.Insights.HotCount,
	})

	return snap, nil
}

// RequestRefresh acknowledges a refresh without blocking the caller. With a
// queue configured the request is enqueued; otherwise it runs detached.
func (s *Service) RequestRefresh(ctx context.Context, organizationID uuid.UUID) error {
	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueScoreRefresh(ctx, organizationID); err != nil {
			return apperr.Wrap(apperr.KindUnavailable, "failed to enqueue score refresh", err).WithOp("scoring.RequestRefresh")
		}
		return nil
	}

	go func() {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Minute)
		defer cancel()
		if _, err := s.RefreshAllScores(refreshCtx, organizationID); err != nil {
			s.log.Error("inline score refresh failed", "organization_id", organizationID, "error", err)
		}
	}()
	return nil
}

// WarmStart loads persisted scores for every scored organization so reads
// work immediately after a restart, before the first refresh lands.
func (s *Service) WarmStart(ctx context.Context) error {
	orgIDs, err := s.repo.ListScoredOrganizations(ctx)
	if err != nil {
		return err
	}
	for _, orgID := range orgIDs {
		scores, err := s.repo.LoadScores(ctx, orgID)
		if err != nil {
			return err
		}
		if len(scores) == 0 {
			continue
		}
		s.store.Publish(insights.Build(orgID, scores, s.thresholds, time.Now()))
	}
	return nil
}

// GetLeadScore returns the snapshot score for a lead, computing it on demand
// when the lead is not in the current snapshot.
func (s *Service) GetLeadScore(ctx context.Context, organizationID, leadID uuid.UUID) (domain.LeadScore, error) {
	if snap, ok := s.store.Get(organizationID); ok {
		if score, ok := snap.Get(leadID); ok {
			return score, nil
		}
	}

	lead, err := s.repo.GetLead(ctx, organizationID, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.LeadScore{}, apperr.Wrap(apperr.KindNotFound, "lead not found", ErrLeadNotFound)
	}
	if err != nil {
		return domain.LeadScore{}, apperr.Wrap(apperr.KindInternal, "failed to load lead", err).WithOp("scoring.GetLeadScore")
	}

	facts, err := s.repo.GetLeadActivityFacts(ctx, organizationID, leadID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return domain.LeadScore{}, apperr.Wrap(apperr.KindInternal, "failed to load lead activity", err).WithOp("scoring.GetLeadScore")
	}

	baselines, err := s.repo.GetBaselines(ctx, organizationID)
	if err != nil {
		return domain.LeadScore{}, apperr.Wrap(apperr.KindInternal, "failed to load scoring baselines", err).WithOp("scoring.GetLeadScore")
	}

	return s.engine.Score(lead, facts, baselines), nil
}

// snapshot returns the current snapshot or an empty one, so listing endpoints
// degrade to empty results instead of errors before the first refresh.
func (s *Service) snapshot(organizationID uuid.UUID) *insights.Snapshot {
	if snap, ok := s.store.Get(organizationID); ok {
		return snap
	}
	return insights.Build(organizationID, nil, s.thresholds, time.Time{})
}

// ListScores returns snapshot scores filtered and ordered per the request,
// plus counters over the full match set.
func (s *Service) ListScores(organizationID uuid.UUID, filter insights.ListFilter) insights.ListResult {
	return s.snapshot(organizationID).List(filter)
}

// TopHot returns the highest-scoring leads.
func (s *Service) TopHot(organizationID uuid.UUID, limit int) []domain.LeadScore {
	return s.snapshot(organizationID).TopHot(limit)
}

// TopAtRisk returns leads flagged by the risk heuristics.
func (s *Service) TopAtRisk(organizationID uuid.UUID, limit int) []domain.LeadScore {
	return s.snapshot(organizationID).TopAtRisk(limit)
}

// Insights returns the aggregate view for the organization.
func (s *Service) Insights(organizationID uuid.UUID) domain.ScoringInsights {
	return s.snapshot(organizationID).Insights
}
