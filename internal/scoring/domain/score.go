package domain

import (
	"time"

	"github.com/google/uuid"
)

// Bucket is the qualitative temperature label derived from the composite
// score. It is always recomputed from the score, never stored independently.
type Bucket string

const (
	BucketHot  Bucket = "hot"
	BucketWarm Bucket = "warm"
	BucketCool Bucket = "cool"
	BucketCold Bucket = "cold"
)

// BucketFor classifies a composite score against the configured thresholds.
func BucketFor(total, hot, warm, cool int) Bucket {
	switch {
	case total >= hot:
		return BucketHot
	case total >= warm:
		return BucketWarm
	case total >= cool:
		return BucketCool
	default:
		return BucketCold
	}
}

// SubScores holds the five weighted components of the composite score,
// each bounded to [0,100].
type SubScores struct {
	Engagement float64 `json:"engagement"`
	Source     float64 `json:"source"`
	Value      float64 `json:"value"`
	Velocity   float64 `json:"velocity"`
	Fit        float64 `json:"fit"`
}

// LeadScore is the full scoring result for one lead. A recompute always
// replaces the whole record; sub-scores and the composite are never patched
// independently, so they cannot drift apart.
type LeadScore struct {
	LeadID             uuid.UUID  `json:"lead_id"`
	OrganizationID     uuid.UUID  `json:"-"`
	Status             LeadStatus `json:"status"`
	SourceChannel      string     `json:"source"`
	Sub                SubScores  `json:"sub_scores"`
	TotalScore         int        `json:"total_score"`
	WinProbability     int        `json:"win_probability"`
	PredictedCloseDays *int       `json:"predicted_close_days,omitempty"`
	Reasons            []string   `json:"reasons"`
	Risks              []string   `json:"risks"`
	BestNextAction     string     `json:"best_next_action"`
	ComputedAt         time.Time  `json:"computed_at"`
}

// SourceStat is one entry of the top-sources ranking inside insights.
type SourceStat struct {
	Source    string  `json:"source"`
	MeanScore float64 `json:"mean_score"`
	LeadCount int     `json:"lead_count"`
}

// ScoringInsights are organization-level aggregates over the current score
// snapshot. Rebuilt whole on every refresh, never incrementally updated.
type ScoringInsights struct {
	TotalActiveLeads   int            `json:"total_active_leads"`
	MeanScore          float64        `json:"mean_score"`
	BucketDistribution map[Bucket]int `json:"bucket_distribution"`
	TopSources         []SourceStat   `json:"top_sources"`
	HotCount           int            `json:"hot_count"`
	AtRiskCount        int            `json:"at_risk_count"`
	ComputedAt         time.Time      `json:"computed_at"`
}
