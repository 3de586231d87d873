package ranking

import "github.com/okian/fairway/internal/domain/scoring"

// DefaultMinEvidence is the review count below which results are flagged low confidence.
const DefaultMinEvidence = 3

// Option applies a configuration option to the Ranker.
type Option func(*Ranker)

// WithMinEvidence sets the confidence threshold. Values below 1 are ignored.
func WithMinEvidence(n int) Option {
	return func(r *Ranker) {
		if n > 0 {
			r.minEvidence = n
		}
	}
}

// WithAggregator sets the aggregator used per candidate.
func WithAggregator(a *scoring.Aggregator) Option {
	return func(r *Ranker) {
		if a != nil {
			r.aggregator = a
		}
	}
}
