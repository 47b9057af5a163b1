package insights

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"leadengine_backend/internal/scoring/domain"

	"github.com/google/uuid"
)

func testThresholds() Thresholds {
	return Thresholds{Hot: 70, Warm: 50, Cool: 30, RiskLow: 35}
}

func leadID(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", n))
}

func score(n, total int, source string, velocity float64, risks ...string) domain.LeadScore {
	return domain.LeadScore{
		LeadID:        leadID(n),
		TotalScore:    total,
		SourceChannel: source,
		Sub:           domain.SubScores{Velocity: velocity},
		Risks:         risks,
		Status:        domain.StatusQualified,
	}
}

func TestBuildInsightsDistribution(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	orgID := uuid.New()
	snap := Build(orgID, []domain.LeadScore{
		score(1, 85, "referral", 80),
		score(2, 72, "referral", 70),
		score(3, 55, "website", 60),
		score(4, 40, "cold", 20, "stalled in the current stage"),
		score(5, 10, "cold", 10, "stalled in the current stage", "little recent engagement"),
	}, testThresholds(), now)

	insights := snap.Insights
	if insights.TotalActiveLeads != 5 {
		t.Errorf("total = %d, want 5", insights.TotalActiveLeads)
	}
	if insights.HotCount != 2 {
		t.Errorf("hot count = %d, want 2", insights.HotCount)
	}
	if insights.BucketDistribution[domain.BucketWarm] != 1 {
		t.Errorf("warm count = %d, want 1", insights.BucketDistribution[domain.BucketWarm])
	}
	if insights.BucketDistribution[domain.BucketCold] != 1 {
		t.Errorf("cold count = %d, want 1", insights.BucketDistribution[domain.BucketCold])
	}
	// Leads 4 and 5 stall below the velocity threshold.
	if insights.AtRiskCount != 2 {
		t.Errorf("at-risk count = %d, want 2", insights.AtRiskCount)
	}
	if insights.MeanScore != 52.4 {
		t.Errorf("mean score = %v, want 52.4", insights.MeanScore)
	}
	if len(insights.TopSources) == 0 || insights.TopSources[0].Source != "referral" {
		t.Errorf("top source should be referral, got %+v", insights.TopSources)
	}
}

func TestTopHotStableOrdering(t *testing.T) {
	now := time.Now()
	snap := Build(uuid.New(), []domain.LeadScore{
		score(3, 70, "a", 50),
		score(1, 70, "a", 50),
		score(2, 90, "a", 50),
	}, testThresholds(), now)

	first := snap.TopHot(3)
	second := snap.TopHot(3)
	if !reflect.DeepEqual(first, second) {
		t.Error("repeated TopHot calls must return identical ordering")
	}
	if first[0].LeadID != leadID(2) {
		t.Errorf("highest score must rank first, got %s", first[0].LeadID)
	}
	// Equal scores tie-break on lead id ascending.
	if first[1].LeadID != leadID(1) || first[2].LeadID != leadID(3) {
		t.Errorf("tie-break by lead id broken: %s, %s", first[1].LeadID, first[2].LeadID)
	}
}

func TestTopAtRiskRanking(t *testing.T) {
	snap := Build(uuid.New(), []domain.LeadScore{
		score(1, 40, "a", 60, "one risk"),  // not at risk: one risk, healthy velocity
		score(2, 40, "a", 20, "one risk"),  // at risk via stalled velocity
		score(3, 40, "a", 50, "r1", "r2"),  // at risk via risk count
		score(4, 40, "a", 10, "r1", "r2"),  // most at risk
	}, testThresholds(), time.Now())

	ranked := snap.TopAtRisk(10)
	if len(ranked) != 3 {
		t.Fatalf("at-risk count = %d, want 3", len(ranked))
	}
	if ranked[0].LeadID != leadID(4) {
		t.Errorf("most at-risk lead should rank first, got %s", ranked[0].LeadID)
	}
	if ranked[1].LeadID != leadID(3) {
		t.Errorf("second should be lead 3, got %s", ranked[1].LeadID)
	}
	if ranked[2].LeadID != leadID(2) {
		t.Errorf("third should be lead 2, got %s", ranked[2].LeadID)
	}
}

func TestListFilterAndSort(t *testing.T) {
	snap := Build(uuid.New(), []domain.LeadScore{
		score(1, 90, "a", 50),
		score(2, 60, "a", 50),
		score(3, 30, "a", 50),
	}, testThresholds(), time.Now())

	min := 40
	got := snap.List(ListFilter{MinScore: &min})
	if len(got.Scores) != 2 || got.Scores[0].TotalScore != 90 {
		t.Errorf("filtered list wrong: %+v", got.Scores)
	}
	if got.TotalMatched != 2 {
		t.Errorf("TotalMatched = %d, want 2", got.TotalMatched)
	}

	got = snap.List(ListFilter{Sort: "score_asc", Limit: 1})
	if len(got.Scores) != 1 || got.Scores[0].TotalScore != 30 {
		t.Errorf("score_asc limit 1 wrong: %+v", got.Scores)
	}
}

func TestListCountersCoverFullMatchSet(t *testing.T) {
	snap := Build(uuid.New(), []domain.LeadScore{
		score(1, 90, "a", 50),
		score(2, 75, "a", 50),
		score(3, 60, "a", 50),
		score(4, 40, "a", 50),
		score(5, 10, "a", 50),
	}, testThresholds(), time.Now())

	got := snap.List(ListFilter{Limit: 2})
	if len(got.Scores) != 2 {
		t.Fatalf("limit 2 returned %d scores", len(got.Scores))
	}
	if got.TotalMatched != 5 {
		t.Errorf("TotalMatched = %d, want 5 despite limit", got.TotalMatched)
	}
	want := map[domain.Bucket]int{
		domain.BucketHot:  2,
		domain.BucketWarm: 1,
		domain.BucketCool: 1,
		domain.BucketCold: 1,
	}
	for bucket, count := range want {
		if got.Buckets[bucket] != count {
			t.Errorf("bucket %s = %d, want %d", bucket, got.Buckets[bucket], count)
		}
	}
}

func TestStorePublishReplacesWholeSnapshot(t *testing.T) {
	store := NewStore()
	orgID := uuid.New()

	if _, ok := store.Get(orgID); ok {
		t.Fatal("empty store must report no snapshot")
	}

	old := Build(orgID, []domain.LeadScore{score(1, 10, "a", 50)}, testThresholds(), time.Now())
	store.Publish(old)

	fresh := Build(orgID, []domain.LeadScore{score(1, 80, "a", 50), score(2, 60, "a", 50)}, testThresholds(), time.Now())
	store.Publish(fresh)

	current, ok := store.Get(orgID)
	if !ok {
		t.Fatal("snapshot missing after publish")
	}
	if len(current.Scores) != 2 {
		t.Errorf("reader saw %d scores, want the complete new snapshot of 2", len(current.Scores))
	}
}

func TestEmptySnapshotWellFormed(t *testing.T) {
	snap := Build(uuid.New(), nil, testThresholds(), time.Now())
	if snap.Insights.TotalActiveLeads != 0 {
		t.Errorf("empty snapshot total = %d", snap.Insights.TotalActiveLeads)
	}
	if snap.Insights.TopSources == nil {
		t.Error("top sources must be an empty slice, not nil")
	}
	if got := snap.TopHot(5); len(got) != 0 {
		t.Errorf("TopHot on empty snapshot = %v", got)
	}
}
