package repository

import "github.com/okian/fairway/pkg/logger"

const (
	defaultReviewsPerItem = 500
	defaultListLimit      = 100
	maxListLimit          = 1000
)

// Option applies a configuration option to the GormStore.
type Option func(*GormStore)

// WithReviewsPerItem caps how many of the most recent reviews ReviewsByItems returns per club.
func WithReviewsPerItem(n int) Option {
	return func(s *GormStore) {
		if n > 0 {
			s.reviewsPerItem = n
		}
	}
}

// WithLogger sets the logger used by the store.
func WithLogger(l logger.Logger) Option {
	return func(s *GormStore) {
		if l != nil {
			s.logger = l
		}
	}
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return defaultListLimit
	case n > maxListLimit:
		return maxListLimit
	default:
		return n
	}
}
