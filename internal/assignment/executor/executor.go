// Package executor commits bulk assignments. Each lead transitions from
// unowned to owned at most once, enforced by a conditional update immediately
// before each individual commit; the batch as a whole is never atomic and
// partial success is reported, not raised.
package executor

import (
	"context"
	"sort"
	"time"

	"leadengine_backend/internal/assignment/domain"
	"leadengine_backend/internal/assignment/planner"
	"leadengine_backend/internal/assignment/strategy"
	"leadengine_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the commit surface. AssignOwner must be conditional: it returns
// false without error when the lead already holds an owner.
type Store interface {
	AssignOwner(ctx context.Context, organizationID, leadID, salespersonID uuid.UUID) (bool, error)
	InsertAssignmentRecord(ctx context.Context, record domain.AssignmentRecord) (domain.AssignmentRecord, error)
}

type Executor struct {
	store    Store
	log      *logger.Logger
	batchCap int
	now      func() time.Time
}

func New(store Store, log *logger.Logger, batchCap int) *Executor {
	return &Executor{
		store:    store,
		log:      log,
		batchCap: batchCap,
		now:      time.Now,
	}
}

// Execute assigns up to limit unassigned leads, oldest first, following the
// distribution computed fresh over this batch. Leads claimed between
// selection and commit are skipped. Cancellation stops further commits and
// returns what was already done together with the context error; committed
// assignments are never rolled back.
func (e *Executor) Execute(ctx context.Context, organizationID uuid.UUID, strat strategy.Strategy, in strategy.Input, limit int) (domain.BulkResult, error) {
	if limit <= 0 || limit > e.batchCap {
		limit = e.batchCap
	}
	batch := in.Leads
	if len(batch) > limit {
		batch = batch[:limit]
	}

	result := domain.BulkResult{
		Strategy:    strat.Info.ID,
		Requested:   len(batch),
		Assignments: []domain.AssignmentRecord{},
	}
	if len(batch) == 0 || len(in.Roster) == 0 {
		return result, nil
	}

	// Distribution is recomputed over the actual batch at commit time;
	// a stale preview is never trusted here.
	dist := strat.Distribute(strategy.Input{
		Roster:      in.Roster,
		Leads:       batch,
		Territories: in.Territories,
	})
	result.Unassignable = len(dist.Unassignable)

	unassignable := make(map[uuid.UUID]bool, len(dist.Unassignable))
	for _, leadID := range dist.Unassignable {
		unassignable[leadID] = true
	}
	quotas := planner.ProjectCounts(dist.Shares, len(batch)-len(dist.Unassignable))
	names := make(map[uuid.UUID]string, len(in.Roster))
	for _, rep := range in.Roster {
		names[rep.ID] = rep.Name
	}

	for _, lead := range batch {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if unassignable[lead.ID] {
			continue
		}

		repID, ok := e.pickAssignee(lead.ID, dist, quotas)
		if !ok {
			continue
		}

		assigned, err := e.store.AssignOwner(ctx, organizationID, lead.ID, repID)
		if err != nil {
			return result, err
		}
		if !assigned {
			// Claimed concurrently; skip and keep the quota for a
			// later lead in this batch.
			result.Skipped++
			continue
		}
		quotas[repID]--

		record := domain.AssignmentRecord{
			ID:             uuid.New(),
			LeadID:         lead.ID,
			OrganizationID: organizationID,
			AssignedToID:   repID,
			AssignedTo:     names[repID],
			Strategy:       strat.Info.ID,
			AssignedAt:     e.now(),
		}
		stored, err := e.store.InsertAssignmentRecord(ctx, record)
		if err != nil {
			// The owner update already committed; report the
			// assignment and keep going.
			e.log.Error("failed to persist assignment record", "lead_id", lead.ID, "error", err)
			stored = record
		}
		result.Assignments = append(result.Assignments, stored)
		result.AssignmentsMade++
	}

	return result, nil
}

// pickAssignee resolves the salesperson for one lead: the pinned target for
// strategies that set one, otherwise the rep with the most remaining quota,
// ties broken by id ascending.
func (e *Executor) pickAssignee(leadID uuid.UUID, dist strategy.Distribution, quotas map[uuid.UUID]int) (uuid.UUID, bool) {
	if target, ok := dist.LeadTargets[leadID]; ok {
		return target, true
	}

	ids := make([]uuid.UUID, 0, len(quotas))
	for id := range quotas {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	var (
		best  uuid.UUID
		found bool
	)
	for _, id := range ids {
		if quotas[id] <= 0 {
			continue
		}
		if !found || quotas[id] > quotas[best] {
			best = id
			found = true
		}
	}
	return best, found
}
