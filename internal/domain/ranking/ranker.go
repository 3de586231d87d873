// Package ranking orders candidate clubs by their similarity-weighted rating.
package ranking

import (
	"fmt"
	"sort"

	"github.com/okian/fairway/internal/domain/model"
	"github.com/okian/fairway/internal/domain/scoring"
)

// Ranker turns candidates and their reviews into an ordered recommendation
// list. It keeps no state between calls and never touches storage.
type Ranker struct {
	aggregator  *scoring.Aggregator
	minEvidence int
}

// New creates a ranker.
func New(opts ...Option) *Ranker {
	r := &Ranker{
		aggregator:  scoring.NewAggregator(nil),
		minEvidence: DefaultMinEvidence,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MinEvidence returns the confidence threshold.
func (r *Ranker) MinEvidence() int {
	return r.minEvidence
}

// Confidence labels an evidence count against the threshold.
func (r *Ranker) Confidence(evidence int) model.Confidence {
	if evidence < r.minEvidence {
		return model.ConfidenceLow
	}
	return model.ConfidenceHigh
}

// Rank scores every candidate for user and returns them ordered by score,
// then evidence count, then item id. Candidates without reviews are kept
// with zero evidence. A malformed rating fails the call with
// scoring.ErrInvalidReviewData.
func (r *Ranker) Rank(
	user model.PlayerProfile,
	candidates []model.CandidateItem,
	reviewsByItem map[string][]model.ResolvedReview,
) ([]model.RecommendationResult, error) {
	results := make([]model.RecommendationResult, 0, len(candidates))
	for i := range candidates {
		id := candidates[i].ID
		agg, err := r.aggregator.Aggregate(reviewsByItem[id], user)
		if err != nil {
			return nil, fmt.Errorf("rank item %q: %w", id, err)
		}
		results = append(results, model.RecommendationResult{
			ItemID:            id,
			PersonalizedScore: agg.WeightedMeanRating,
			EvidenceCount:     agg.EvidenceCount,
			Confidence:        r.Confidence(agg.EvidenceCount),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.PersonalizedScore != b.PersonalizedScore {
			return a.PersonalizedScore > b.PersonalizedScore
		}
		if a.EvidenceCount != b.EvidenceCount {
			return a.EvidenceCount > b.EvidenceCount
		}
		return a.ItemID < b.ItemID
	})

	return results, nil
}
