package strategy

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"leadengine_backend/internal/assignment/domain"

	"github.com/google/uuid"
)

func repID(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0001-%012d", n))
}

func rep(n, openLeads int, closeRate float64, region string) domain.Salesperson {
	return domain.Salesperson{
		ID:            repID(n),
		Name:          fmt.Sprintf("Rep %d", n),
		Region:        region,
		CloseRate:     closeRate,
		OpenLeadCount: openLeads,
	}
}

func lead(n int, source, region string, dealValue float64) domain.UnassignedLead {
	return domain.UnassignedLead{
		ID:        uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0002-%012d", n)),
		Source:    source,
		Region:    region,
		DealValue: dealValue,
		CreatedAt: time.Now(),
	}
}

func sumShares(shares map[uuid.UUID]int) int {
	sum := 0
	for _, pct := range shares {
		sum += pct
	}
	return sum
}

func TestCatalogueIsFixed(t *testing.T) {
	infos := List()
	want := []string{BestFit, RoundRobin, Territory, Workload}
	if len(infos) != len(want) {
		t.Fatalf("catalogue has %d entries, want %d", len(infos), len(want))
	}
	for i, id := range want {
		if infos[i].ID != id {
			t.Errorf("catalogue[%d] = %s, want %s", i, infos[i].ID, id)
		}
	}

	if _, err := Get("alphabetical"); err == nil {
		t.Error("unknown strategy id must be rejected")
	}
}

func TestRoundRobinEqualShares(t *testing.T) {
	in := Input{Roster: []domain.Salesperson{rep(1, 10, 0.2, ""), rep(2, 0, 0.9, ""), rep(3, 3, 0.5, "")}}
	dist := distributeRoundRobin(in)

	if got := sumShares(dist.Shares); got != 100 {
		t.Fatalf("shares sum to %d, want 100", got)
	}
	// 100/3 rounds to 34/33/33; every rep stays within 1 point of equal.
	for id, pct := range dist.Shares {
		if pct < 33 || pct > 34 {
			t.Errorf("rep %s share = %d, want 33 or 34", id, pct)
		}
	}
}

func TestWorkloadFavorsUnderloadedReps(t *testing.T) {
	in := Input{Roster: []domain.Salesperson{rep(1, 10, 0, ""), rep(2, 5, 0, ""), rep(3, 0, 0, "")}}
	dist := distributeWorkload(in)

	if got := sumShares(dist.Shares); got != 100 {
		t.Fatalf("shares sum to %d, want 100", got)
	}
	if dist.Shares[repID(3)] <= dist.Shares[repID(2)] {
		t.Errorf("idle rep share %d must exceed mid rep share %d", dist.Shares[repID(3)], dist.Shares[repID(2)])
	}
	if dist.Shares[repID(2)] <= dist.Shares[repID(1)] {
		t.Errorf("mid rep share %d must exceed loaded rep share %d", dist.Shares[repID(2)], dist.Shares[repID(1)])
	}
}

func TestBestFitWeighsProfileCloseRates(t *testing.T) {
	specialist := rep(1, 0, 0.1, "")
	specialist.CloseRateByProfile = map[string]float64{
		domain.ProfileKey("referral", 10000): 0.8,
	}
	generalist := rep(2, 0, 0.2, "")

	in := Input{
		Roster: []domain.Salesperson{specialist, generalist},
		Leads:  []domain.UnassignedLead{lead(1, "referral", "", 10000), lead(2, "referral", "", 12000)},
	}
	dist := distributeBestFit(in)

	if dist.Shares[repID(1)] <= dist.Shares[repID(2)] {
		t.Errorf("profile specialist share %d must exceed generalist share %d", dist.Shares[repID(1)], dist.Shares[repID(2)])
	}
	if got := sumShares(dist.Shares); got != 100 {
		t.Errorf("shares sum to %d, want 100", got)
	}
}

func TestBestFitAllZeroRatesFallsBackToEqual(t *testing.T) {
	in := Input{
		Roster: []domain.Salesperson{rep(1, 0, 0, ""), rep(2, 0, 0, "")},
		Leads:  []domain.UnassignedLead{lead(1, "web", "", 100)},
	}
	dist := distributeBestFit(in)
	if dist.Shares[repID(1)] != 50 || dist.Shares[repID(2)] != 50 {
		t.Errorf("zero close rates must split equally, got %v", dist.Shares)
	}
}

func TestTerritoryPinsLeadsAndReportsUnassignable(t *testing.T) {
	in := Input{
		Roster: []domain.Salesperson{rep(1, 0, 0, "north"), rep(2, 0, 0, "south")},
		Leads: []domain.UnassignedLead{
			lead(1, "web", "north", 100),
			lead(2, "web", "north", 100),
			lead(3, "web", "south", 100),
			lead(4, "web", "east", 100),
		},
		Territories: []domain.TerritoryRule{
			{Region: "north", SalespersonID: repID(1)},
			{Region: "south", SalespersonID: repID(2)},
		},
	}
	dist := distributeTerritory(in)

	if len(dist.Unassignable) != 1 || dist.Unassignable[0] != lead(4, "", "", 0).ID {
		t.Errorf("lead without a territory must be unassignable, got %v", dist.Unassignable)
	}
	if got := dist.LeadTargets[lead(1, "", "", 0).ID]; got != repID(1) {
		t.Errorf("north lead pinned to %s, want rep 1", got)
	}
	if dist.Shares[repID(1)] <= dist.Shares[repID(2)] {
		t.Errorf("rep with two territory leads must hold the larger share: %v", dist.Shares)
	}
	if got := sumShares(dist.Shares); got != 100 {
		t.Errorf("shares sum to %d, want 100", got)
	}
}

func TestTerritoryRuleForRepOffRoster(t *testing.T) {
	in := Input{
		Roster:      []domain.Salesperson{rep(1, 0, 0, "north")},
		Leads:       []domain.UnassignedLead{lead(1, "web", "south", 100)},
		Territories: []domain.TerritoryRule{{Region: "south", SalespersonID: repID(9)}},
	}
	dist := distributeTerritory(in)
	if len(dist.Unassignable) != 1 {
		t.Errorf("rule pointing at an inactive rep must make the lead unassignable, got %v", dist.Unassignable)
	}
}

func TestSharesDeterministic(t *testing.T) {
	in := Input{Roster: []domain.Salesperson{rep(1, 7, 0, ""), rep(2, 2, 0, ""), rep(3, 4, 0, "")}}
	first := distributeWorkload(in)
	second := distributeWorkload(in)
	if !reflect.DeepEqual(first.Shares, second.Shares) {
		t.Error("repeated distribution on unchanged input must return identical shares")
	}
}
