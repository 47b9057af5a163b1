// Package engine computes lead scores. Scoring is pure: the same lead,
// facts and baselines always produce the same LeadScore.
package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"leadengine_backend/internal/scoring/domain"
	"leadengine_backend/platform/config"
)

const (
	// Activity channel weights. Meetings signal far more intent than
	// emails; calls sit in between.
	emailWeight   = 1.0
	callWeight    = 3.0
	meetingWeight = 6.0

	// Engagement decays once a lead goes quiet for more than two weeks.
	quietDays = 14

	// riskInsufficientData is attached when a lead is scored without
	// activity facts.
	riskInsufficientData = "insufficient activity data"
)

// freemailDomains are consumer mail providers; a business address is a fit
// signal, these are not.
var freemailDomains = map[string]struct{}{
	"gmail.com":   {},
	"yahoo.com":   {},
	"hotmail.com": {},
	"outlook.com": {},
	"icloud.com":  {},
	"aol.com":     {},
}

// Engine converts raw lead facts into a LeadScore using the configured
// weight table and tuning constants.
type Engine struct {
	weights config.ScoringWeights
	tuning  config.ScoringTuning
	now     func() time.Time
}

// New creates a scoring engine. The weight table has already been validated
// at startup (weights sum to 1.0).
func New(cfg config.ScoringConfig) *Engine {
	return &Engine{
		weights: cfg.GetScoringWeights(),
		tuning:  cfg.GetScoringTuning(),
		now:     time.Now,
	}
}

// Score computes the full score record for one lead. A nil facts pointer
// means the lead store had no activity data; the affected sub-scores fall
// back to the organization average and a risk note is attached instead of
// failing the computation.
func (e *Engine) Score(lead domain.Lead, facts *domain.ActivityFacts, base domain.Baselines) domain.LeadScore {
	missingFacts := facts == nil

	var daysInStage float64
	if facts != nil {
		daysInStage = facts.DaysInStage
	} else {
		daysInStage = e.now().UTC().Sub(lead.CreatedAt).Hours() / 24
	}

	sub := domain.SubScores{
		Engagement: e.engagementScore(facts, base, &missingFacts),
		Source:     e.sourceScore(lead, base),
		Value:      e.valueScore(lead, base),
		Velocity:   e.velocityScore(lead.Status, daysInStage, base),
		Fit:        e.fitScore(lead),
	}

	total := e.composite(sub)
	winProb := e.winProbability(total, lead.Status, daysInStage, base)
	reasons, risks := e.explain(sub)
	if missingFacts {
		risks = append(risks, riskInsufficientData)
	}

	score := domain.LeadScore{
		LeadID:         lead.ID,
		OrganizationID: lead.OrganizationID,
		Status:         lead.Status,
		SourceChannel:  lead.Source,
		Sub:            sub,
		TotalScore:     total,
		WinProbability: winProb,
		Reasons:        reasons,
		Risks:          risks,
		ComputedAt:     e.now().UTC(),
	}
	score.PredictedCloseDays = e.predictedCloseDays(lead.Status, sub.Velocity, base)
	score.BestNextAction = e.bestNextAction(score)
	return score
}

// engagementScore converts weighted activity counts into [0,100] through a
// saturating curve, so one hyperactive lead cannot dominate the range.
func (e *Engine) engagementScore(facts *domain.ActivityFacts, base domain.Baselines, missingFacts *bool) float64 {
	if facts == nil {
		if base.HasDefaults {
			return clamp(base.DefaultSubScores.Engagement, 0, 100)
		}
		return 0
	}

	weighted := emailWeight*float64(facts.EmailCount) +
		callWeight*float64(facts.CallCount) +
		meetingWeight*float64(facts.MeetingCount)

	saturation := e.tuning.EngagementSaturation
	if saturation <= 0 {
		saturation = 12
	}
	score := 100 * (1 - math.Exp(-weighted/saturation))

	// A lead that went quiet keeps its volume credit but loses some heat.
	if facts.DaysSinceLastActivity > quietDays {
		score *= 0.7
	}

	if facts.TotalActivities() == 0 && missingFacts != nil {
		*missingFacts = true
		if base.HasDefaults {
			return clamp(base.DefaultSubScores.Engagement, 0, 100)
		}
	}

	return clamp(score, 0, 100)
}

// sourceScore rates the lead's channel against the organization's own
// conversion history. A channel converting at the org average lands on 50;
// twice the average saturates toward 100. Channels with no history inherit
// the org average instead of being zeroed.
func (e *Engine) sourceScore(lead domain.Lead, base domain.Baselines) float64 {
	overall := base.OverallConversion
	if overall <= 0 {
		// No closed deals yet anywhere: every channel is unproven.
		return 50
	}

	rate, ok := base.SourceConversion[normalizeSource(lead.Source)]
	if !ok || rate < 0 {
		rate = overall
	}

	return clamp(50*rate/overall, 0, 100)
}

// valueScore is the percentile rank of the deal value inside the
// organization's trailing deal-value distribution, so it adapts across
// organizations of very different deal sizes.
func (e *Engine) valueScore(lead domain.Lead, base domain.Baselines) float64 {
	if lead.DealValue <= 0 || len(base.DealValues) == 0 {
		if base.HasDefaults {
			return clamp(base.DefaultSubScores.Value, 0, 100)
		}
		return 50
	}

	// DealValues is sorted ascending; find the rank of this deal.
	idx := sort.SearchFloat64s(base.DealValues, lead.DealValue)
	return clamp(100*float64(idx)/float64(len(base.DealValues)), 0, 100)
}

// velocityScore rewards leads moving through their stage faster than the
// organization's median and penalizes leads stalled beyond the configured
// multiple of it. Monotonically decreasing in days-in-stage.
func (e *Engine) velocityScore(status domain.LeadStatus, daysInStage float64, base domain.Baselines) float64 {
	if daysInStage < 0 {
		daysInStage = 0
	}
	median := base.MedianDaysFor(status)
	ratio := daysInStage / median

	// ratio 0 -> 100, ratio 1 (at median) -> 50, decaying beyond.
	score := 100 / (1 + ratio)

	stall := e.tuning.StallMultiplier
	if stall <= 0 {
		stall = 2
	}
	if ratio >= stall {
		score -= 15
	}

	return clamp(score, 0, 100)
}

// fitScore measures firmographic/profile completeness. Each absent signal
// degrades the score instead of zeroing it.
func (e *Engine) fitScore(lead domain.Lead) float64 {
	score := 20.0

	if strings.TrimSpace(lead.Company) != "" {
		score += 25
	}
	if lead.DealValue > 0 {
		score += 15
	}
	if normalizeSource(lead.Source) != "" {
		score += 10
	}
	if email := strings.TrimSpace(lead.Email); email != "" {
		score += 10
		if isBusinessEmail(email) {
			score += 20
		}
	}

	return clamp(score, 0, 100)
}

// composite folds the sub-scores into the weighted 0-100 total.
func (e *Engine) composite(sub domain.SubScores) int {
	total := e.weights.Engagement*sub.Engagement +
		e.weights.Source*sub.Source +
		e.weights.Value*sub.Value +
		e.weights.Velocity*sub.Velocity +
		e.weights.Fit*sub.Fit
	return int(math.Round(clamp(total, 0, 100)))
}

// winProbability recalibrates the composite score into a closing-odds
// estimate. It is monotone in the total for a fixed stage-time; a lead that
// has sat in its stage past the org median is shaded down, so two leads with
// equal totals can carry different probabilities.
func (e *Engine) winProbability(total int, status domain.LeadStatus, daysInStage float64, base domain.Baselines) int {
	p := 100 / (1 + math.Exp(-(float64(total)-50)/12))

	median := base.MedianDaysFor(status)
	if daysInStage > median {
		staleness := daysInStage/median - 1
		factor := 1 - 0.15*staleness
		if factor < 0.5 {
			factor = 0.5
		}
		p *= factor
	}

	return int(math.Round(clamp(p, 1, 99)))
}

// predictedCloseDays estimates days to close from the medians of the
// remaining funnel stages, scaled by how fast this lead is moving. Returns
// nil when the organization has no stage history to extrapolate from.
func (e *Engine) predictedCloseDays(status domain.LeadStatus, velocity float64, base domain.Baselines) *int {
	idx := domain.StageIndex(status)
	if idx < 0 || len(base.StageMedianDays) == 0 {
		return nil
	}

	remaining := 0.0
	for _, stage := range domain.PipelineOrder[idx:] {
		remaining += base.MedianDaysFor(stage)
	}
	if remaining <= 0 {
		return nil
	}

	// Faster-moving leads close sooner than the stage medians suggest.
	factor := 1 + (50-velocity)/100
	days := int(math.Round(remaining * factor))
	if days < 1 {
		days = 1
	}
	return &days
}

type contribution struct {
	name     string
	sub      float64
	weighted float64
	reason   string
	risk     string
}

// explain turns threshold crossings into human-readable reasons and risks.
// Reasons are ordered by descending weighted contribution, risks by
// ascending sub-score. If nothing crosses a threshold, the lists stay empty
// rather than fabricating signals.
func (e *Engine) explain(sub domain.SubScores) ([]string, []string) {
	contributions := []contribution{
		{"engagement", sub.Engagement, e.weights.Engagement * sub.Engagement,
			"strong recent engagement across calls and meetings", "little recent engagement"},
		{"source", sub.Source, e.weights.Source * sub.Source,
			"came through a high-converting channel", "channel converts below the organization average"},
		{"value", sub.Value, e.weights.Value * sub.Value,
			"deal value in the top of the organization's range", "deal value below the organization's typical range"},
		{"velocity", sub.Velocity, e.weights.Velocity * sub.Velocity,
			"moving through the pipeline faster than typical", "stalled in the current stage"},
		{"fit", sub.Fit, e.weights.Fit * sub.Fit,
			"strong profile fit", "incomplete profile information"},
	}

	var reasons []contribution
	var risks []contribution
	for _, c := range contributions {
		if c.sub >= e.tuning.ReasonHigh {
			reasons = append(reasons, c)
		}
		if c.sub <= e.tuning.RiskLow {
			risks = append(risks, c)
		}
	}

	sort.SliceStable(reasons, func(i, j int) bool { return reasons[i].weighted > reasons[j].weighted })
	sort.SliceStable(risks, func(i, j int) bool { return risks[i].sub < risks[j].sub })

	reasonStrings := make([]string, 0, len(reasons))
	for _, c := range reasons {
		reasonStrings = append(reasonStrings, c.reason)
	}
	riskStrings := make([]string, 0, len(risks))
	for _, c := range risks {
		riskStrings = append(riskStrings, c.risk)
	}
	return reasonStrings, riskStrings
}

// bestNextAction picks a short recommendation from the bucket and the
// weakest signal.
func (e *Engine) bestNextAction(score domain.LeadScore) string {
	bucket := domain.BucketFor(score.TotalScore, e.tuning.HotThreshold, e.tuning.WarmThreshold, e.tuning.CoolThreshold)

	switch bucket {
	case domain.BucketHot:
		if score.Status == domain.StatusNegotiation || score.Status == domain.StatusProposal {
			return "push for a closing call this week"
		}
		return "fast-track to a proposal while interest is high"
	case domain.BucketWarm:
		if score.Sub.Velocity <= e.tuning.RiskLow {
			return "re-engage before the deal goes cold"
		}
		return "book a discovery meeting to build momentum"
	case domain.BucketCool:
		return fmt.Sprintf("nurture with targeted follow-up (%s stage)", score.Status)
	default:
		return "add to the low-touch nurture sequence"
	}
}

func normalizeSource(source string) string {
	return strings.ToLower(strings.TrimSpace(source))
}

func isBusinessEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return false
	}
	domainPart := strings.ToLower(email[at+1:])
	_, freemail := freemailDomains[domainPart]
	return !freemail
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
