// Package insights maintains per-organization score snapshots and the
// aggregate statistics derived from them. A refresh builds a complete new
// snapshot off to the side and publishes it with a single atomic store, so
// readers always see either the old or the new snapshot, never a mix.
package insights

import (
	"sort"
	"strings"
	"sync"
	"time"

	"leadengine_backend/internal/scoring/domain"

	"github.com/google/uuid"
)

// topSourcesLimit caps the top-sources ranking inside insights.
const topSourcesLimit = 5

// Snapshot is an immutable view of one organization's scores at a point in
// time. All ranking methods operate on copies; the snapshot itself is never
// mutated after Build.
type Snapshot struct {
	OrganizationID uuid.UUID
	Scores         []domain.LeadScore
	Insights       domain.ScoringInsights
	ComputedAt     time.Time

	byLead map[uuid.UUID]int
	th     Thresholds
}

// Thresholds carries the bucket/risk tuning the snapshot builder needs.
type Thresholds struct {
	Hot     int
	Warm    int
	Cool    int
	RiskLow float64
}

// Build computes the full snapshot for a score set: stable ordering,
// per-lead index, and the rebuilt insights aggregate.
func Build(orgID uuid.UUID, scores []domain.LeadScore, th Thresholds, at time.Time) *Snapshot {
	owned := make([]domain.LeadScore, len(scores))
	copy(owned, scores)

	// Stable base ordering by lead id keeps repeated queries deterministic.
	sort.Slice(owned, func(i, j int) bool {
		return owned[i].LeadID.String() < owned[j].LeadID.String()
	})

	byLead := make(map[uuid.UUID]int, len(owned))
	for i, score := range owned {
		byLead[score.LeadID] = i
	}

	snap := &Snapshot{
		OrganizationID: orgID,
		Scores:         owned,
		ComputedAt:     at,
		byLead:         byLead,
		th:             th,
	}
	snap.Insights = snap.buildInsights(th, at)
	return snap
}

func (s *Snapshot) buildInsights(th Thresholds, at time.Time) domain.ScoringInsights {
	insights := domain.ScoringInsights{
		TotalActiveLeads: len(s.Scores),
		BucketDistribution: map[domain.Bucket]int{
			domain.BucketHot:  0,
			domain.BucketWarm: 0,
			domain.BucketCool: 0,
			domain.BucketCold: 0,
		},
		ComputedAt: at,
	}

	if len(s.Scores) == 0 {
		insights.TopSources = []domain.SourceStat{}
		return insights
	}

	type sourceAgg struct {
		total float64
		count int
	}
	sources := make(map[string]*sourceAgg)

	sum := 0.0
	for _, score := range s.Scores {
		sum += float64(score.TotalScore)
		bucket := domain.BucketFor(score.TotalScore, th.Hot, th.Warm, th.Cool)
		insights.BucketDistribution[bucket]++
		if bucket == domain.BucketHot {
			insights.HotCount++
		}
		if s.isAtRisk(score) {
			insights.AtRiskCount++
		}

		source := strings.ToLower(strings.TrimSpace(score.SourceChannel))
		if source == "" {
			continue
		}
		agg, ok := sources[source]
		if !ok {
			agg = &sourceAgg{}
			sources[source] = agg
		}
		agg.total += float64(score.TotalScore)
		agg.count++
	}
	insights.MeanScore = round1(sum / float64(len(s.Scores)))

	stats := make([]domain.SourceStat, 0, len(sources))
	for name, agg := range sources {
		stats = append(stats, domain.SourceStat{
			Source:    name,
			MeanScore: round1(agg.total / float64(agg.count)),
			LeadCount: agg.count,
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].MeanScore != stats[j].MeanScore {
			return stats[i].MeanScore > stats[j].MeanScore
		}
		return stats[i].Source < stats[j].Source
	})
	if len(stats) > topSourcesLimit {
		stats = stats[:topSourcesLimit]
	}
	insights.TopSources = stats

	return insights
}

// isAtRisk flags leads carrying multiple risk signals or a stalled velocity.
func (s *Snapshot) isAtRisk(score domain.LeadScore) bool {
	return len(score.Risks) >= 2 || score.Sub.Velocity <= s.th.RiskLow
}

// Get returns the score for one lead, if present.
func (s *Snapshot) Get(leadID uuid.UUID) (domain.LeadScore, bool) {
	idx, ok := s.byLead[leadID]
	if !ok {
		return domain.LeadScore{}, false
	}
	return s.Scores[idx], true
}

// TopHot returns up to n scores ranked by total descending, ties broken by
// lead id ascending so unchanged data always ranks identically.
func (s *Snapshot) TopHot(n int) []domain.LeadScore {
	ranked := make([]domain.LeadScore, len(s.Scores))
	copy(ranked, s.Scores)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].TotalScore != ranked[j].TotalScore {
			return ranked[i].TotalScore > ranked[j].TotalScore
		}
		return ranked[i].LeadID.String() < ranked[j].LeadID.String()
	})
	return truncate(ranked, n)
}

// TopAtRisk returns up to n at-risk scores ranked by risk count descending,
// then velocity ascending, ties broken by lead id ascending.
func (s *Snapshot) TopAtRisk(n int) []domain.LeadScore {
	ranked := make([]domain.LeadScore, 0, len(s.Scores))
	for _, score := range s.Scores {
		if s.isAtRisk(score) {
			ranked = append(ranked, score)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if len(ranked[i].Risks) != len(ranked[j].Risks) {
			return len(ranked[i].Risks) > len(ranked[j].Risks)
		}
		if ranked[i].Sub.Velocity != ranked[j].Sub.Velocity {
			return ranked[i].Sub.Velocity < ranked[j].Sub.Velocity
		}
		return ranked[i].LeadID.String() < ranked[j].LeadID.String()
	})
	return truncate(ranked, n)
}

// ListFilter narrows and orders a score listing.
type ListFilter struct {
	MinScore *int
	MaxScore *int
	Status   string
	Sort     string // score_desc (default), score_asc, newest
	Limit    int
}

// ListResult pairs the filtered listing with counters over every matching
// score. The counters cover the full match set even when Limit truncates
// the listing itself.
type ListResult struct {
	Scores       []domain.LeadScore    `json:"scores"`
	TotalMatched int                   `json:"totalMatched"`
	Buckets      map[domain.Bucket]int `json:"buckets"`
}

// List returns scores matching the filter in the requested order, together
// with the match total and per-bucket counts.
func (s *Snapshot) List(filter ListFilter) ListResult {
	matched := make([]domain.LeadScore, 0, len(s.Scores))
	buckets := map[domain.Bucket]int{
		domain.BucketHot:  0,
		domain.BucketWarm: 0,
		domain.BucketCool: 0,
		domain.BucketCold: 0,
	}
	for _, score := range s.Scores {
		if filter.MinScore != nil && score.TotalScore < *filter.MinScore {
			continue
		}
		if filter.MaxScore != nil && score.TotalScore > *filter.MaxScore {
			continue
		}
		if filter.Status != "" && string(score.Status) != filter.Status {
			continue
		}
		matched = append(matched, score)
		buckets[domain.BucketFor(score.TotalScore, s.th.Hot, s.th.Warm, s.th.Cool)]++
	}

	switch filter.Sort {
	case "score_asc":
		sort.SliceStable(matched, func(i, j int) bool {
			if matched[i].TotalScore != matched[j].TotalScore {
				return matched[i].TotalScore < matched[j].TotalScore
			}
			return matched[i].LeadID.String() < matched[j].LeadID.String()
		})
	case "newest":
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].ComputedAt.After(matched[j].ComputedAt)
		})
	default:
		sort.SliceStable(matched, func(i, j int) bool {
			if matched[i].TotalScore != matched[j].TotalScore {
				return matched[i].TotalScore > matched[j].TotalScore
			}
			return matched[i].LeadID.String() < matched[j].LeadID.String()
		})
	}

	return ListResult{
		Scores:       truncate(matched, filter.Limit),
		TotalMatched: len(matched),
		Buckets:      buckets,
	}
}

// Store holds the live snapshot per organization. Publish replaces the whole
// snapshot in one store; readers racing a refresh see the previous complete
// snapshot.
type Store struct {
	snapshots sync.Map // uuid.UUID -> *Snapshot
}

// NewStore creates an empty snapshot store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current snapshot for an organization.
func (s *Store) Get(orgID uuid.UUID) (*Snapshot, bool) {
	value, ok := s.snapshots.Load(orgID)
	if !ok {
		return nil, false
	}
	return value.(*Snapshot), true
}

// Publish atomically swaps in a freshly built snapshot.
func (s *Store) Publish(snap *Snapshot) {
	s.snapshots.Store(snap.OrganizationID, snap)
}

func truncate(scores []domain.LeadScore, n int) []domain.LeadScore {
	if n > 0 && len(scores) > n {
		return scores[:n]
	}
	return scores
}

func round1(value float64) float64 {
	return float64(int(value*10+0.5)) / 10
}
