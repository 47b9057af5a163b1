// Package strategy holds the catalogue of assignment strategies. Each
// strategy is a pure function from roster + leads to percentage shares;
// adding one means registering a new function, never branching the planner.
package strategy

import (
	"errors"
	"sort"

	"leadengine_backend/internal/assignment/domain"

	"github.com/google/uuid"
)

var ErrUnknownStrategy = errors.New("unknown strategy")

const (
	RoundRobin = "round_robin"
	BestFit    = "best_fit"
	Workload   = "workload"
	Territory  = "territory"
)

// Input is the read-only snapshot a distribution is computed over.
type Input struct {
	Roster      []domain.Salesperson
	Leads       []domain.UnassignedLead
	Territories []domain.TerritoryRule
}

// Distribution is a strategy's output: integer percentage shares summing to
// exactly 100 across eligible salespeople, plus optional per-lead targets
// for strategies that pin leads to specific reps.
type Distribution struct {
	Shares map[uuid.UUID]int

	// LeadTargets pins individual leads to a salesperson. Only the
	// territory strategy populates this; other strategies leave quota
	// filling to the caller.
	LeadTargets map[uuid.UUID]uuid.UUID

	// Unassignable lists leads no salesperson can take under this
	// strategy. Surfaced distinctly, never silently dropped.
	Unassignable []uuid.UUID
}

// Strategy couples a catalogue entry to its pure distribution function.
type Strategy struct {
	Info       domain.StrategyInfo
	Distribute func(in Input) Distribution
}

// registry is the fixed catalogue. Order here is the catalogue order.
var registry = []Strategy{
	{
		Info: domain.StrategyInfo{
			ID:          RoundRobin,
			Name:        "Round robin",
			Description: "Equal share across active salespeople, independent of workload or score.",
		},
		Distribute: distributeRoundRobin,
	},
	{
		Info: domain.StrategyInfo{
			ID:          BestFit,
			Name:        "Best fit",
			Description: "Share weighted by each salesperson's close rate on similar lead profiles.",
		},
		Distribute: distributeBestFit,
	},
	{
		Info: domain.StrategyInfo{
			ID:          Workload,
			Name:        "Workload balanced",
			Description: "Share inversely proportional to current open-lead count, rebalancing toward underloaded reps.",
		},
		Distribute: distributeWorkload,
	},
	{
		Info: domain.StrategyInfo{
			ID:          Territory,
			Name:        "Territory",
			Description: "Leads mapped to salespeople by region; leads matching no territory are reported as unassignable.",
		},
		Distribute: distributeTerritory,
	},
}

// List returns the strategy catalogue sorted by id.
func List() []domain.StrategyInfo {
	infos := make([]domain.StrategyInfo, len(registry))
	for i, s := range registry {
		infos[i] = s.Info
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Get looks up a strategy by id.
func Get(id string) (Strategy, error) {
	for _, s := range registry {
		if s.Info.ID == id {
			return s, nil
		}
	}
	return Strategy{}, ErrUnknownStrategy
}

func distributeRoundRobin(in Input) Distribution {
	weights := make(map[uuid.UUID]float64, len(in.Roster))
	for _, rep := range in.Roster {
		weights[rep.ID] = 1
	}
	return Distribution{Shares: sharesFromWeights(weights)}
}

func distributeWorkload(in Input) Distribution {
	weights := make(map[uuid.UUID]float64, len(in.Roster))
	for _, rep := range in.Roster {
		weights[rep.ID] = 1 / float64(1+rep.OpenLeadCount)
	}
	return Distribution{Shares: sharesFromWeights(weights)}
}

// distributeBestFit weighs each rep by their mean close rate over the
// profiles present in this batch, falling back to the rep's overall close
// rate for profiles without history.
func distributeBestFit(in Input) Distribution {
	weights := make(map[uuid.UUID]float64, len(in.Roster))
	for _, rep := range in.Roster {
		if len(in.Leads) == 0 {
			weights[rep.ID] = rep.CloseRate
			continue
		}
		sum := 0.0
		for _, lead := range in.Leads {
			rate, ok := rep.CloseRateByProfile[domain.ProfileKey(lead.Source, lead.DealValue)]
			if !ok {
				rate = rep.CloseRate
			}
			sum += rate
		}
		weights[rep.ID] = sum / float64(len(in.Leads))
	}
	return Distribution{Shares: sharesFromWeights(weights)}
}

func distributeTerritory(in Input) Distribution {
	byRegion := make(map[string]uuid.UUID, len(in.Territories))
	for _, rule := range in.Territories {
		byRegion[rule.Region] = rule.SalespersonID
	}
	onRoster := make(map[uuid.UUID]bool, len(in.Roster))
	for _, rep := range in.Roster {
		onRoster[rep.ID] = true
	}

	targets := make(map[uuid.UUID]uuid.UUID)
	counts := make(map[uuid.UUID]float64)
	var unassignable []uuid.UUID
	for _, lead := range in.Leads {
		repID, ok := byRegion[lead.Region]
		if !ok || !onRoster[repID] {
			unassignable = append(unassignable, lead.ID)
			continue
		}
		targets[lead.ID] = repID
		counts[repID]++
	}

	dist := Distribution{
		LeadTargets:  targets,
		Unassignable: unassignable,
	}
	if len(counts) > 0 {
		dist.Shares = sharesFromWeights(counts)
	} else {
		dist.Shares = map[uuid.UUID]int{}
	}
	return dist
}

// sharesFromWeights converts positive weights into integer percentages that
// sum to exactly 100 using largest-remainder rounding. All-zero weights fall
// back to equal shares. Ties resolve by salesperson id ascending so repeated
// calls on unchanged input return identical shares.
func sharesFromWeights(weights map[uuid.UUID]float64) map[uuid.UUID]int {
	if len(weights) == 0 {
		return map[uuid.UUID]int{}
	}

	ids := make([]uuid.UUID, 0, len(weights))
	total := 0.0
	for id, w := range weights {
		ids = append(ids, id)
		total += w
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	shares := make(map[uuid.UUID]int, len(ids))
	if total <= 0 {
		equal := make(map[uuid.UUID]float64, len(ids))
		for _, id := range ids {
			equal[id] = 1
		}
		return sharesFromWeights(equal)
	}

	type remainder struct {
		id   uuid.UUID
		frac float64
	}
	remainders := make([]remainder, 0, len(ids))
	allocated := 0
	for _, id := range ids {
		exact := weights[id] / total * 100
		floor := int(exact)
		shares[id] = floor
		allocated += floor
		remainders = append(remainders, remainder{id: id, frac: exact - float64(floor)})
	}

	sort.SliceStable(remainders, func(i, j int) bool {
		if remainders[i].frac != remainders[j].frac {
			return remainders[i].frac > remainders[j].frac
		}
		return remainders[i].id.String() < remainders[j].id.String()
	})
	for i := 0; i < 100-allocated; i++ {
		shares[remainders[i%len(remainders)].id]++
	}

	return shares
}
