// Package planner turns a strategy distribution into the preview shown to
// callers. Previews are pure simulations over the current snapshot and never
// touch lead state or workload counters.
package planner

import (
	"sort"

	"leadengine_backend/internal/assignment/domain"
	"leadengine_backend/internal/assignment/strategy"

	"github.com/google/uuid"
)

// Preview computes the proposed distribution for one strategy without
// mutating anything. An empty roster yields an explicit no-eligible-assignees
// plan rather than an error.
func Preview(strat strategy.Strategy, in strategy.Input) domain.Plan {
	plan := domain.Plan{
		Strategy:        strat.Info.ID,
		Description:     strat.Info.Description,
		PerSalesperson:  []domain.Share{},
		UnassignedCount: len(in.Leads),
	}

	if len(in.Roster) == 0 {
		plan.Description = domain.NoEligibleAssignees
		return plan
	}

	dist := strat.Distribute(in)
	plan.UnassignableCount = len(dist.Unassignable)

	assignable := len(in.Leads) - len(dist.Unassignable)
	projected := ProjectCounts(dist.Shares, assignable)

	for _, rep := range in.Roster {
		plan.PerSalesperson = append(plan.PerSalesperson, domain.Share{
			SalespersonID:  rep.ID,
			Name:           rep.Name,
			OpenLeadCount:  rep.OpenLeadCount,
			CloseRate:      rep.CloseRate,
			Percent:        dist.Shares[rep.ID],
			ProjectedLeads: projected[rep.ID],
		})
	}
	sort.Slice(plan.PerSalesperson, func(i, j int) bool {
		if plan.PerSalesperson[i].Percent != plan.PerSalesperson[j].Percent {
			return plan.PerSalesperson[i].Percent > plan.PerSalesperson[j].Percent
		}
		return plan.PerSalesperson[i].SalespersonID.String() < plan.PerSalesperson[j].SalespersonID.String()
	})

	return plan
}

// ProjectCounts converts percentage shares into whole-lead quotas for a batch
// of the given size, using largest-remainder rounding so quotas sum exactly
// to the batch size. Ties resolve by salesperson id ascending.
func ProjectCounts(shares map[uuid.UUID]int, batchSize int) map[uuid.UUID]int {
	counts := make(map[uuid.UUID]int, len(shares))
	if batchSize <= 0 || len(shares) == 0 {
		return counts
	}

	ids := make([]uuid.UUID, 0, len(shares))
	for id := range shares {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	type remainder struct {
		id   uuid.UUID
		frac float64
	}
	remainders := make([]remainder, 0, len(ids))
	allocated := 0
	for _, id := range ids {
		exact := float64(shares[id]) / 100 * float64(batchSize)
		floor := int(exact)
		counts[id] = floor
		allocated += floor
		remainders = append(remainders, remainder{id: id, frac: exact - float64(floor)})
	}

	sort.SliceStable(remainders, func(i, j int) bool {
		if remainders[i].frac != remainders[j].frac {
			return remainders[i].frac > remainders[j].frac
		}
		return remainders[i].id.String() < remainders[j].id.String()
	})
	for i := 0; i < batchSize-allocated; i++ {
		counts[remainders[i%len(remainders)].id]++
	}

	return counts
}
