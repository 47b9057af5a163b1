package engine

import (
	"reflect"
	"testing"
	"time"

	"leadengine_backend/internal/scoring/domain"
	"leadengine_backend/platform/config"

	"github.com/google/uuid"
)

type fakeScoringConfig struct {
	weights config.ScoringWeights
	tuning  config.ScoringTuning
}

func (f fakeScoringConfig) GetScoringWeights() config.ScoringWeights { return f.weights }
func (f fakeScoringConfig) GetScoringTuning() config.ScoringTuning   { return f.tuning }
func (f fakeScoringConfig) GetRefreshConcurrency() int               { return 4 }

func testConfig() fakeScoringConfig {
	return fakeScoringConfig{
		weights: config.ScoringWeights{
			Engagement: 0.30,
			Source:     0.15,
			Value:      0.20,
			Velocity:   0.20,
			Fit:        0.15,
		},
		tuning: config.ScoringTuning{
			HotThreshold:         70,
			WarmThreshold:        50,
			CoolThreshold:        30,
			ReasonHigh:           70,
			RiskLow:              35,
			EngagementSaturation: 12,
			StallMultiplier:      2.0,
		},
	}
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(testConfig())
	fixed := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }
	return e
}

func testBaselines() domain.Baselines {
	return domain.Baselines{
		SourceConversion:  map[string]float64{"referral": 0.40, "cold": 0.05},
		OverallConversion: 0.20,
		DealValues:        []float64{1000, 2000, 5000, 10000, 20000, 50000},
		StageMedianDays: map[domain.LeadStatus]float64{
			domain.StatusNew:         3,
			domain.StatusContacted:   7,
			domain.StatusQualified:   10,
			domain.StatusProposal:    14,
			domain.StatusNegotiation: 10,
		},
	}
}

func testLead(status domain.LeadStatus) domain.Lead {
	return domain.Lead{
		ID:             uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		OrganizationID: uuid.MustParse("22222222-2222-2222-2222-222222222222"),
		Email:          "buyer@acme-corp.com",
		Company:        "Acme Corp",
		Status:         status,
		Source:         "referral",
		DealValue:      10000,
		CreatedAt:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestScoreBounds(t *testing.T) {
	e := testEngine(t)
	base := testBaselines()

	facts := []*domain.ActivityFacts{
		nil,
		{},
		{EmailCount: 1, DaysInStage: 5},
		{EmailCount: 500, CallCount: 500, MeetingCount: 500, DaysInStage: 1},
		{MeetingCount: 3, DaysSinceLastActivity: 60, DaysInStage: 90},
	}

	for i, f := range facts {
		score := e.Score(testLead(domain.StatusQualified), f, base)
		if score.TotalScore < 0 || score.TotalScore > 100 {
			t.Errorf("case %d: total score %d out of [0,100]", i, score.TotalScore)
		}
		for name, sub := range map[string]float64{
			"engagement": score.Sub.Engagement,
			"source":     score.Sub.Source,
			"value":      score.Sub.Value,
			"velocity":   score.Sub.Velocity,
			"fit":        score.Sub.Fit,
		} {
			if sub < 0 || sub > 100 {
				t.Errorf("case %d: sub-score %s = %v out of [0,100]", i, name, sub)
			}
		}
		if score.WinProbability < 1 || score.WinProbability > 99 {
			t.Errorf("case %d: win probability %d out of [1,99]", i, score.WinProbability)
		}
	}
}

func TestScoreDeterministic(t *testing.T) {
	e := testEngine(t)
	base := testBaselines()
	facts := &domain.ActivityFacts{EmailCount: 4, CallCount: 2, MeetingCount: 1, DaysInStage: 4}

	first := e.Score(testLead(domain.StatusProposal), facts, base)
	second := e.Score(testLead(domain.StatusProposal), facts, base)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical inputs produced different scores:\n%+v\n%+v", first, second)
	}
}

func TestMissingFactsNeverFails(t *testing.T) {
	e := testEngine(t)
	score := e.Score(testLead(domain.StatusNew), nil, testBaselines())

	found := false
	for _, risk := range score.Risks {
		if risk == riskInsufficientData {
			found = true
		}
	}
	if !found {
		t.Errorf("missing facts must add %q risk, got %v", riskInsufficientData, score.Risks)
	}
}

func TestZeroActivityUsesDefaultOrZero(t *testing.T) {
	e := testEngine(t)

	// Without defaults the engagement score is zero.
	score := e.Score(testLead(domain.StatusNew), &domain.ActivityFacts{DaysInStage: 1}, testBaselines())
	if score.Sub.Engagement != 0 {
		t.Errorf("engagement = %v, want 0 when no history exists", score.Sub.Engagement)
	}

	// With defaults the org average fills in.
	base := testBaselines()
	base.HasDefaults = true
	base.DefaultSubScores = domain.SubScores{Engagement: 44}
	score = e.Score(testLead(domain.StatusNew), &domain.ActivityFacts{DaysInStage: 1}, base)
	if score.Sub.Engagement != 44 {
		t.Errorf("engagement = %v, want org default 44", score.Sub.Engagement)
	}

	hasRisk := false
	for _, risk := range score.Risks {
		if risk == riskInsufficientData {
			hasRisk = true
		}
	}
	if !hasRisk {
		t.Errorf("zero-activity lead must carry %q risk", riskInsufficientData)
	}
}

func TestEngagementMonotonicAndSaturating(t *testing.T) {
	e := testEngine(t)
	base := testBaselines()

	prev := -1.0
	var deltas []float64
	for meetings := 0; meetings <= 10; meetings++ {
		facts := &domain.ActivityFacts{MeetingCount: meetings, DaysInStage: 1}
		score := e.Score(testLead(domain.StatusNew), facts, base)
		if score.Sub.Engagement < prev {
			t.Errorf("engagement decreased at %d meetings: %v < %v", meetings, score.Sub.Engagement, prev)
		}
		if prev >= 0 {
			deltas = append(deltas, score.Sub.Engagement-prev)
		}
		prev = score.Sub.Engagement
	}

	// Diminishing returns: later increments must not exceed earlier ones.
	for i := 1; i < len(deltas); i++ {
		if deltas[i] > deltas[i-1]+1e-9 {
			t.Errorf("engagement gain grew with volume: delta[%d]=%v > delta[%d]=%v", i, deltas[i], i-1, deltas[i-1])
		}
	}
}

func TestWinProbabilityMonotonicInTotal(t *testing.T) {
	e := testEngine(t)
	base := testBaselines()

	prev := -1
	for total := 0; total <= 100; total += 5 {
		p := e.winProbability(total, domain.StatusQualified, 5, base)
		if p < prev {
			t.Errorf("win probability decreased: total %d -> %d, previous %d", total, p, prev)
		}
		prev = p
	}
}

func TestWinProbabilityShadesStaleLeads(t *testing.T) {
	e := testEngine(t)
	base := testBaselines()

	fresh := e.winProbability(75, domain.StatusQualified, 2, base)
	stale := e.winProbability(75, domain.StatusQualified, 40, base)
	if stale >= fresh {
		t.Errorf("stale lead probability %d should be below fresh %d", stale, fresh)
	}
}

func TestSourceScoreDefaultsToOrgAverage(t *testing.T) {
	e := testEngine(t)
	base := testBaselines()

	lead := testLead(domain.StatusNew)
	lead.Source = "brand-new-channel"
	unknown := e.sourceScore(lead, base)
	if unknown != 50 {
		t.Errorf("unknown channel score = %v, want org-average 50", unknown)
	}

	lead.Source = "referral"
	if got := e.sourceScore(lead, base); got <= unknown {
		t.Errorf("high-converting channel %v should beat the org average %v", got, unknown)
	}

	lead.Source = "cold"
	if got := e.sourceScore(lead, base); got >= unknown {
		t.Errorf("low-converting channel %v should fall below the org average %v", got, unknown)
	}
}

func TestValueScoreAdaptsToDistribution(t *testing.T) {
	e := testEngine(t)
	base := testBaselines()

	small := testLead(domain.StatusNew)
	small.DealValue = 1500
	big := testLead(domain.StatusNew)
	big.DealValue = 60000

	if e.valueScore(small, base) >= e.valueScore(big, base) {
		t.Error("larger deal must not rank below a smaller one")
	}
	if got := e.valueScore(big, base); got != 100 {
		t.Errorf("deal above the whole distribution = %v, want 100", got)
	}
}

func TestVelocityPenalizesStalledLeads(t *testing.T) {
	e := testEngine(t)
	base := testBaselines()

	fast := e.velocityScore(domain.StatusQualified, 1, base)
	atMedian := e.velocityScore(domain.StatusQualified, 10, base)
	stalled := e.velocityScore(domain.StatusQualified, 30, base)

	if !(fast > atMedian && atMedian > stalled) {
		t.Errorf("velocity ordering broken: fast %v, median %v, stalled %v", fast, atMedian, stalled)
	}
}

func TestBucketConsistentWithScore(t *testing.T) {
	e := testEngine(t)
	base := testBaselines()

	score := e.Score(testLead(domain.StatusProposal), &domain.ActivityFacts{MeetingCount: 5, CallCount: 5, DaysInStage: 2}, base)
	bucket := domain.BucketFor(score.TotalScore, 70, 50, 30)

	switch {
	case score.TotalScore >= 70 && bucket != domain.BucketHot:
		t.Errorf("score %d bucket %s, want hot", score.TotalScore, bucket)
	case score.TotalScore >= 50 && score.TotalScore < 70 && bucket != domain.BucketWarm:
		t.Errorf("score %d bucket %s, want warm", score.TotalScore, bucket)
	}
}

func TestReasonsAndRisksMayBeEmpty(t *testing.T) {
	e := testEngine(t)

	// Mid-range sub-scores everywhere: nothing crosses a threshold.
	reasons, risks := e.explain(domain.SubScores{Engagement: 50, Source: 50, Value: 50, Velocity: 50, Fit: 50})
	if len(reasons) != 0 || len(risks) != 0 {
		t.Errorf("mid-range sub-scores must explain nothing, got reasons %v risks %v", reasons, risks)
	}
}

func TestExplainOrdering(t *testing.T) {
	e := testEngine(t)

	reasons, risks := e.explain(domain.SubScores{Engagement: 90, Source: 80, Value: 10, Velocity: 5, Fit: 50})
	// engagement (0.30*90=27) outweighs source (0.15*80=12).
	if len(reasons) != 2 || reasons[0] != "strong recent engagement across calls and meetings" {
		t.Errorf("reason ordering wrong: %v", reasons)
	}
	// velocity (5) is weaker than value (10), so it leads the risks.
	if len(risks) != 2 || risks[0] != "stalled in the current stage" {
		t.Errorf("risk ordering wrong: %v", risks)
	}
}
