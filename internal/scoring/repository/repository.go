package repository

import (
	"context"
	"errors"
	"sort"

	"leadengine_backend/internal/scoring/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetActiveLeads returns all open-pipeline leads for an organization.
func (r *Repository) GetActiveLeads(ctx context.Context, organizationID uuid.UUID) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, organization_id, email, company, status, source, deal_value_cents, assigned_rep_id, created_at
		FROM leads
		WHERE organization_id = $1
			AND deleted_at IS NULL
			AND status NOT IN ('won', 'lost')
		ORDER BY created_at ASC
	`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// GetLead returns a single lead scoped to the organization.
func (r *Repository) GetLead(ctx context.Context, organizationID, leadID uuid.UUID) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, organization_id, email, company, status, source, deal_value_cents, assigned_rep_id, created_at
		FROM leads
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`, leadID, organizationID)

	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

func scanLead(row pgx.Row) (domain.Lead, error) {
	var (
		lead           domain.Lead
		dealValueCents int64
	)
	err := row.Scan(
		&lead.ID,
		&lead.OrganizationID,
		&lead.Email,
		&lead.Company,
		&lead.Status,
		&lead.Source,
		&dealValueCents,
		&lead.AssignedRepID,
		&lead.CreatedAt,
	)
	if err != nil {
		return domain.Lead{}, err
	}
	lead.DealValue = float64(dealValueCents) / 100
	return lead, nil
}

// GetActivityFacts aggregates activity counts and recency per lead in one pass.
// Leads with no activity rows are absent from the returned map.
func (r *Repository) GetActivityFacts(ctx context.Context, organizationID uuid.UUID) (map[uuid.UUID]domain.ActivityFacts, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			l.id,
			COUNT(*) FILTER (WHERE la.type = 'email') AS email_count,
			COUNT(*) FILTER (WHERE la.type = 'call') AS call_count,
			COUNT(*) FILTER (WHERE la.type = 'meeting') AS meeting_count,
			EXTRACT(EPOCH FROM (NOW() - MAX(la.occurred_at))) / 86400 AS days_since_last,
			EXTRACT(EPOCH FROM (NOW() - l.created_at)) / 86400 AS days_since_created,
			EXTRACT(EPOCH FROM (NOW() - l.stage_entered_at)) / 86400 AS days_in_stage
		FROM leads l
		JOIN lead_activity la ON la.lead_id = l.id
		WHERE l.organization_id = $1
			AND l.deleted_at IS NULL
			AND l.status NOT IN ('won', 'lost')
		GROUP BY l.id, l.created_at, l.stage_entered_at
	`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	facts := make(map[uuid.UUID]domain.ActivityFacts)
	for rows.Next() {
		var (
			leadID uuid.UUID
			f      domain.ActivityFacts
		)
		if err := rows.Scan(
			&leadID,
			&f.EmailCount,
			&f.CallCount,
			&f.MeetingCount,
			&f.DaysSinceLastActivity,
			&f.DaysSinceCreated,
			&f.DaysInStage,
		); err != nil {
			return nil, err
		}
		facts[leadID] = f
	}
	return facts, rows.Err()
}

// GetLeadActivityFacts returns activity aggregates for one lead, or nil when
// the lead has no recorded activity.
func (r *Repository) GetLeadActivityFacts(ctx context.Context, organizationID, leadID uuid.UUID) (*domain.ActivityFacts, error) {
	var (
		f     domain.ActivityFacts
		count int
	)
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(la.id),
			COUNT(*) FILTER (WHERE la.type = 'email'),
			COUNT(*) FILTER (WHERE la.type = 'call'),
			COUNT(*) FILTER (WHERE la.type = 'meeting'),
			COALESCE(EXTRACT(EPOCH FROM (NOW() - MAX(la.occurred_at))) / 86400, 0),
			EXTRACT(EPOCH FROM (NOW() - l.created_at)) / 86400,
			EXTRACT(EPOCH FROM (NOW() - l.stage_entered_at)) / 86400
		FROM leads l
		LEFT JOIN lead_activity la ON la.lead_id = l.id
		WHERE l.id = $1 AND l.organization_id = $2 AND l.deleted_at IS NULL
		GROUP BY l.id, l.created_at, l.stage_entered_at
	`, leadID, organizationID).Scan(
		&count,
		&f.EmailCount,
		&f.CallCount,
		&f.MeetingCount,
		&f.DaysSinceLastActivity,
		&f.DaysSinceCreated,
		&f.DaysInStage,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	return &f, nil
}

// GetBaselines builds the organization-level reference data scoring needs:
// per-source conversion rates, the closed deal value distribution, median
// stage durations, and average sub-scores from previously persisted scores.
func (r *Repository) GetBaselines(ctx context.Context, organizationID uuid.UUID) (domain.Baselines, error) {
	base := domain.Baselines{
		SourceConversion: make(map[string]float64),
		StageMedianDays:  make(map[domain.LeadStatus]float64),
	}

	rows, err := r.pool.Query(ctx, `
		SELECT
			LOWER(source),
			COUNT(*) FILTER (WHERE status = 'won')::float / COUNT(*)
		FROM leads
		WHERE organization_id = $1
			AND deleted_at IS NULL
			AND status IN ('won', 'lost')
			AND source <> ''
		GROUP BY LOWER(source)
	`, organizationID)
	if err != nil {
		return domain.Baselines{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			source string
			rate   float64
		)
		if err := rows.Scan(&source, &rate); err != nil {
			return domain.Baselines{}, err
		}
		base.SourceConversion[source] = rate
	}
	if rows.Err() != nil {
		return domain.Baselines{}, rows.Err()
	}

	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(COUNT(*) FILTER (WHERE status = 'won')::float / NULLIF(COUNT(*), 0), 0)
		FROM leads
		WHERE organization_id = $1 AND deleted_at IS NULL AND status IN ('won', 'lost')
	`, organizationID).Scan(&base.OverallConversion)
	if err != nil {
		return domain.Baselines{}, err
	}

	valueRows, err := r.pool.Query(ctx, `
		SELECT deal_value_cents
		FROM leads
		WHERE organization_id = $1 AND deleted_at IS NULL AND deal_value_cents > 0
	`, organizationID)
	if err != nil {
		return domain.Baselines{}, err
	}
	defer valueRows.Close()
	for valueRows.Next() {
		var cents int64
		if err := valueRows.Scan(&cents); err != nil {
			return domain.Baselines{}, err
		}
		base.DealValues = append(base.DealValues, float64(cents)/100)
	}
	if valueRows.Err() != nil {
		return domain.Baselines{}, valueRows.Err()
	}
	sort.Float64s(base.DealValues)

	stageRows, err := r.pool.Query(ctx, `
		SELECT
			stage,
			PERCENTILE_CONT(0.5) WITHIN GROUP (
				ORDER BY EXTRACT(EPOCH FROM (exited_at - entered_at)) / 86400
			)
		FROM lead_stage_history
		WHERE organization_id = $1 AND exited_at IS NOT NULL
		GROUP BY stage
	`, organizationID)
	if err != nil {
		return domain.Baselines{}, err
	}
	defer stageRows.Close()
	for stageRows.Next() {
		var (
			stage  string
			median float64
		)
		if err := stageRows.Scan(&stage, &median); err != nil {
			return domain.Baselines{}, err
		}
		base.StageMedianDays[domain.LeadStatus(stage)] = median
	}
	if stageRows.Err() != nil {
		return domain.Baselines{}, stageRows.Err()
	}

	var scored int
	err = r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(AVG(engagement_score), 0),
			COALESCE(AVG(source_score), 0),
			COALESCE(AVG(value_score), 0),
			COALESCE(AVG(velocity_score), 0),
			COALESCE(AVG(fit_score), 0)
		FROM lead_scores
		WHERE organization_id = $1
	`, organizationID).Scan(
		&scored,
		&base.DefaultSubScores.Engagement,
		&base.DefaultSubScores.Source,
		&base.DefaultSubScores.Value,
		&base.DefaultSubScores.Velocity,
		&base.DefaultSubScores.Fit,
	)
	if err != nil {
		return domain.Baselines{}, err
	}
	base.HasDefaults = scored > 0

	return base, nil
}

// UpsertScores persists a refreshed score set so restarts can warm-start the
// in-memory snapshot.
func (r *Repository) UpsertScores(ctx context.Context, organizationID uuid.UUID, scores []domain.LeadScore) error {
	batch := &pgx.Batch{}
	for _, score := range scores {
		batch.Queue(`
			INSERT INTO lead_scores (
				lead_id, organization_id, status, source,
				engagement_score, source_score, value_score, velocity_score, fit_score,
				total_score, win_probability, predicted_close_days,
				reasons, risks, best_next_action, computed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			ON CONFLICT (lead_id) DO UPDATE SET
				status = EXCLUDED.status,
				source = EXCLUDED.source,
				engagement_score = EXCLUDED.engagement_score,
				source_score = EXCLUDED.source_score,
				value_score = EXCLUDED.value_score,
				velocity_score = EXCLUDED.velocity_score,
				fit_score = EXCLUDED.fit_score,
				total_score = EXCLUDED.total_score,
				win_probability = EXCLUDED.win_probability,
				predicted_close_days = EXCLUDED.predicted_close_days,
				reasons = EXCLUDED.reasons,
				risks = EXCLUDED.risks,
				best_next_action = EXCLUDED.best_next_action,
				computed_at = EXCLUDED.computed_at
		`,
			score.LeadID, organizationID, score.Status, score.SourceChannel,
			score.Sub.Engagement, score.Sub.Source, score.Sub.Value, score.Sub.Velocity, score.Sub.Fit,
			score.TotalScore, score.WinProbability, score.PredictedCloseDays,
			score.Reasons, score.Risks, score.BestNextAction, score.ComputedAt,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range scores {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadScores reads the persisted score set for warm-starting a snapshot.
func (r *Repository) LoadScores(ctx context.Context, organizationID uuid.UUID) ([]domain.LeadScore, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			s.lead_id, s.status, s.source,
			s.engagement_score, s.source_score, s.value_score, s.velocity_score, s.fit_score,
			s.total_score, s.win_probability, s.predicted_close_days,
			s.reasons, s.risks, s.best_next_action, s.computed_at
		FROM lead_scores s
		JOIN leads l ON l.id = s.lead_id
		WHERE s.organization_id = $1
			AND l.deleted_at IS NULL
			AND l.status NOT IN ('won', 'lost')
	`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := make([]domain.LeadScore, 0)
	for rows.Next() {
		var score domain.LeadScore
		if err := rows.Scan(
			&score.LeadID, &score.Status, &score.SourceChannel,
			&score.Sub.Engagement, &score.Sub.Source, &score.Sub.Value, &score.Sub.Velocity, &score.Sub.Fit,
			&score.TotalScore, &score.WinProbability, &score.PredictedCloseDays,
			&score.Reasons, &score.Risks, &score.BestNextAction, &score.ComputedAt,
		); err != nil {
			return nil, err
		}
		score.OrganizationID = organizationID
		scores = append(scores, score)
	}
	return scores, rows.Err()
}

// ListScoredOrganizations returns organizations that have active leads,
// used by scheduled refreshes that sweep every tenant.
func (r *Repository) ListScoredOrganizations(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT organization_id
		FROM leads
		WHERE deleted_at IS NULL AND status NOT IN ('won', 'lost')
		ORDER BY organization_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
