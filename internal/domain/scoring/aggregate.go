package scoring

import (
	"fmt"

	"github.com/okian/fairway/internal/domain/model"
)

// WeightedAggregate is the similarity-weighted view of one item's reviews.
type WeightedAggregate struct {
	WeightedMeanRating float64
	EvidenceCount      int
}

// Aggregator weights reviews by how closely their authors resemble the user.
type Aggregator struct {
	comparator *Comparator
}

// NewAggregator creates an aggregator. A nil comparator uses the default weights.
func NewAggregator(c *Comparator) *Aggregator {
	if c == nil {
		c = NewComparator()
	}
	return &Aggregator{comparator: c}
}

// Comparator returns the comparator used for weighting.
func (a *Aggregator) Comparator() *Comparator {
	return a.comparator
}

// Aggregate computes the weighted mean rating of reviews for user. Reviews
// whose profile did not resolve get the maximum distance. Any rating outside
// [0, 5] fails the whole call with ErrInvalidReviewData.
func (a *Aggregator) Aggregate(reviews []model.ResolvedReview, user model.PlayerProfile) (WeightedAggregate, error) {
	for i := range reviews {
		if err := model.ValidateRating(reviews[i].Rating); err != nil {
			return WeightedAggregate{}, fmt.Errorf("%w: review %q of item %q: %w",
				ErrInvalidReviewData, reviews[i].ID, reviews[i].ItemID, err)
		}
	}
	if len(reviews) == 0 {
		return WeightedAggregate{}, nil
	}

	sentinel := a.comparator.MaxDistance()
	var weighted, totalWeight float64
	for i := range reviews {
		distance := sentinel
		if profile, ok := reviews[i].Profile.Get(); ok {
			distance = a.comparator.Similarity(user, profile)
		}
		w := Weight(distance)
		weighted += w * reviews[i].Rating
		totalWeight += w
	}

	return WeightedAggregate{
		WeightedMeanRating: weighted / totalWeight,
		EvidenceCount:      len(reviews),
	}, nil
}
