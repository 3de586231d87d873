// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/okian/fairway/internal/adapters/cache"
	"github.com/okian/fairway/internal/adapters/mq/queue"
	"github.com/okian/fairway/internal/adapters/mq/worker"
	"github.com/okian/fairway/internal/adapters/repository"
	"github.com/okian/fairway/internal/domain/dedupe"
	"github.com/okian/fairway/internal/domain/ranking"
	"github.com/okian/fairway/internal/domain/scoring"
	"github.com/okian/fairway/pkg/logger"
)

const (
	defaultQueueSize        = 10000
	defaultDedupeSize       = 50000
	defaultCandidateLimit   = 200
	defaultFetchConcurrency = 4
	defaultFetchBatchSize   = 25
)

// Service implements the API dependencies for the recommendation system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	catalog    repository.Catalog
	resilient  *repository.ResilientCatalog
	cache      cache.ReviewCache
	aggregator *scoring.Aggregator
	ranker     *ranking.Ranker
	validate   *validator.Validate

	// Ingestion
	deduper    dedupe.Deduper
	queue      *queue.InMemoryQueue
	workerPool *worker.Pool

	// Configuration
	weights          scoring.Weights
	minEvidence      int
	candidateLimit   int
	fetchConcurrency int
	fetchBatchSize   int
	workerCount      int
	queueSize        int
	dedupeSize       int
	resilience       repository.ResilienceConfig

	// State
	started   bool
	startedAt time.Time

	logger logger.Logger
}

// New constructs a Service over store. The read path is usable immediately;
// ingestion needs Start.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:            store,
		cache:            cache.Noop{},
		validate:         validator.New(validator.WithRequiredStructEnabled()),
		weights:          scoring.DefaultWeights(),
		minEvidence:      ranking.DefaultMinEvidence,
		candidateLimit:   defaultCandidateLimit,
		fetchConcurrency: defaultFetchConcurrency,
		fetchBatchSize:   defaultFetchBatchSize,
		workerCount:      runtime.NumCPU() * 2,
		queueSize:        defaultQueueSize,
		dedupeSize:       defaultDedupeSize,
		resilience:       repository.DefaultResilienceConfig(),
		logger:           logger.Get().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.aggregator = scoring.NewAggregator(scoring.NewComparator(scoring.WithWeights(s.weights)))
	s.ranker = ranking.New(ranking.WithAggregator(s.aggregator), ranking.WithMinEvidence(s.minEvidence))
	s.resilient = repository.NewResilientCatalog(store, s.resilience)
	s.catalog = cache.NewCatalog(s.resilient, s.cache)
	return s
}

// Start creates the ingestion queue and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting recommendation service...")

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.workerPool = worker.NewPool(s.workerCount, s.queue, s)
	// Workers outlive request cancellation so Stop can drain the queue.
	s.workerPool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "recommendation service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.Int("min_evidence", s.minEvidence),
	)
	return nil
}

// Stop drains the ingestion queue and stops the workers.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(ctx, "stopping recommendation service...")
	if err := s.workerPool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown failed", logger.Error(err))
	}
	s.started = false
	s.logger.Info(ctx, "recommendation service stopped")
}

// Started reports whether ingestion is running.
func (s *Service) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
