package repository

import (
	"context"

	"leadengine_backend/internal/assignment/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetActiveSalespeople returns the current roster with overall close rates,
// ordered by id for deterministic planning.
func (r *Repository) GetActiveSalespeople(ctx context.Context, organizationID uuid.UUID) ([]domain.Salesperson, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			s.id,
			s.name,
			s.email,
			s.region,
			COALESCE(c.close_rate, 0)
		FROM salespeople s
		LEFT JOIN (
			SELECT
				assigned_rep_id,
				COUNT(*) FILTER (WHERE status = 'won')::float / COUNT(*) AS close_rate
			FROM leads
			WHERE status IN ('won', 'lost') AND deleted_at IS NULL
			GROUP BY assigned_rep_id
		) c ON c.assigned_rep_id = s.id
		WHERE s.organization_id = $1 AND s.is_active = true
		ORDER BY s.id
	`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reps := make([]domain.Salesperson, 0)
	for rows.Next() {
		var rep domain.Salesperson
		if err := rows.Scan(&rep.ID, &rep.Name, &rep.Email, &rep.Region, &rep.CloseRate); err != nil {
			return nil, err
		}
		reps = append(reps, rep)
	}
	return reps, rows.Err()
}

// GetOpenLeadCounts returns the current open-lead count per salesperson.
func (r *Repository) GetOpenLeadCounts(ctx context.Context, organizationID uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT assigned_rep_id, COUNT(*)
		FROM leads
		WHERE organization_id = $1
			AND deleted_at IS NULL
			AND assigned_rep_id IS NOT NULL
			AND status NOT IN ('won', 'lost')
		GROUP BY assigned_rep_id
	`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var (
			repID uuid.UUID
			count int
		)
		if err := rows.Scan(&repID, &count); err != nil {
			return nil, err
		}
		counts[repID] = count
	}
	return counts, rows.Err()
}

// GetCloseRatesByProfile returns, per salesperson, the close rate on each
// source and deal-value band they have closed history for.
func (r *Repository) GetCloseRatesByProfile(ctx context.Context, organizationID uuid.UUID) (map[uuid.UUID]map[string]float64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			assigned_rep_id,
			LOWER(source),
			CASE
				WHEN deal_value_cents >= 2500000 THEN 'large'
				WHEN deal_value_cents >= 500000 THEN 'medium'
				ELSE 'small'
			END AS band,
			COUNT(*) FILTER (WHERE status = 'won')::float / COUNT(*)
		FROM leads
		WHERE organization_id = $1
			AND deleted_at IS NULL
			AND status IN ('won', 'lost')
			AND assigned_rep_id IS NOT NULL
		GROUP BY assigned_rep_id, LOWER(source), band
	`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rates := make(map[uuid.UUID]map[string]float64)
	for rows.Next() {
		var (
			repID  uuid.UUID
			source string
			band   string
			rate   float64
		)
		if err := rows.Scan(&repID, &source, &band, &rate); err != nil {
			return nil, err
		}
		if rates[repID] == nil {
			rates[repID] = make(map[string]float64)
		}
		rates[repID][source+"|"+band] = rate
	}
	return rates, rows.Err()
}

// GetUnassignedLeads returns open leads without an owner, oldest first.
func (r *Repository) GetUnassignedLeads(ctx context.Context, organizationID uuid.UUID) ([]domain.UnassignedLead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, email, company, source, region, deal_value_cents, created_at
		FROM leads
		WHERE organization_id = $1
			AND deleted_at IS NULL
			AND assigned_rep_id IS NULL
			AND status NOT IN ('won', 'lost')
		ORDER BY created_at ASC, id ASC
	`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]domain.UnassignedLead, 0)
	for rows.Next() {
		var (
			lead           domain.UnassignedLead
			dealValueCents int64
		)
		if err := rows.Scan(&lead.ID, &lead.Email, &lead.Company, &lead.Source, &lead.Region, &dealValueCents, &lead.CreatedAt); err != nil {
			return nil, err
		}
		lead.DealValue = float64(dealValueCents) / 100
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// AssignOwner claims a lead for a salesperson. The update only fires while
// the lead is still unowned, which closes the race between selection and
// commit; false means another writer got there first.
func (r *Repository) AssignOwner(ctx context.Context, organizationID, leadID, salespersonID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET assigned_rep_id = $3, updated_at = NOW()
		WHERE id = $1
			AND organization_id = $2
			AND deleted_at IS NULL
			AND assigned_rep_id IS NULL
	`, leadID, organizationID, salespersonID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// InsertAssignmentRecord writes the audit row for one committed assignment.
func (r *Repository) InsertAssignmentRecord(ctx context.Context, record domain.AssignmentRecord) (domain.AssignmentRecord, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO assignment_records (id, lead_id, organization_id, assigned_to_id, assigned_to_name, strategy, assigned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`,
		record.ID, record.LeadID, record.OrganizationID,
		record.AssignedToID, record.AssignedTo, record.Strategy, record.AssignedAt,
	).Scan(&record.ID)
	return record, err
}

// GetTerritoryRules returns the fixed region-to-salesperson mapping.
func (r *Repository) GetTerritoryRules(ctx context.Context, organizationID uuid.UUID) ([]domain.TerritoryRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT region, salesperson_id
		FROM territory_rules
		WHERE organization_id = $1
		ORDER BY region
	`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]domain.TerritoryRule, 0)
	for rows.Next() {
		var rule domain.TerritoryRule
		if err := rows.Scan(&rule.Region, &rule.SalespersonID); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// GetAssignmentStats aggregates assignment coverage for the organization.
func (r *Repository) GetAssignmentStats(ctx context.Context, organizationID uuid.UUID) (domain.Stats, error) {
	var stats domain.Stats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE assigned_rep_id IS NOT NULL),
			COUNT(*) FILTER (WHERE assigned_rep_id IS NULL),
			(
				SELECT COUNT(*)
				FROM salespeople
				WHERE organization_id = $1 AND is_active = true
			)
		FROM leads
		WHERE organization_id = $1
			AND deleted_at IS NULL
			AND status NOT IN ('won', 'lost')
	`, organizationID).Scan(
		&stats.TotalLeads,
		&stats.AssignedLeads,
		&stats.UnassignedLeads,
		&stats.ActiveReps,
	)
	if err != nil {
		return domain.Stats{}, err
	}

	if stats.TotalLeads > 0 {
		stats.AssignmentRate = float64(stats.AssignedLeads) / float64(stats.TotalLeads)
	}
	if stats.ActiveReps > 0 {
		stats.AverageWorkload = float64(stats.AssignedLeads) / float64(stats.ActiveReps)
	}
	return stats, nil
}
