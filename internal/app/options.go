package service

import (
	"github.com/okian/fairway/internal/adapters/cache"
	"github.com/okian/fairway/internal/adapters/repository"
	"github.com/okian/fairway/internal/domain/scoring"
	"github.com/okian/fairway/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of ingestion workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the ingestion queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many submission keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWeights sets the similarity weights. Invalid sets are ignored.
func WithWeights(w scoring.Weights) Option {
	return func(s *Service) {
		if w.Validate() == nil {
			s.weights = w
		}
	}
}

// WithMinEvidence sets the default confidence threshold.
func WithMinEvidence(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.minEvidence = n
		}
	}
}

// WithCandidateLimit caps how many candidates one recommendation ranks.
func WithCandidateLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.candidateLimit = n
		}
	}
}

// WithFetchConcurrency bounds the concurrent review batch reads per recommendation.
func WithFetchConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.fetchConcurrency = n
		}
	}
}

// WithFetchBatchSize sets how many clubs one review read covers.
func WithFetchBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.fetchBatchSize = n
		}
	}
}

// WithReviewCache puts c in front of review reads.
func WithReviewCache(c cache.ReviewCache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithResilience configures retries and the circuit breaker around catalog reads.
func WithResilience(cfg repository.ResilienceConfig) Option {
	return func(s *Service) {
		s.resilience = cfg
	}
}
