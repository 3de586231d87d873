package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/okian/fairway/internal/domain/model"
	"github.com/okian/fairway/pkg/logger"
	"github.com/okian/fairway/pkg/metrics"
)

// ResilienceConfig tunes retries and the circuit breaker around a Catalog.
type ResilienceConfig struct {
	Name          string
	RetryAttempts int
	RetryBackoff  time.Duration
	// BreakerFailures is the number of consecutive failures that opens the breaker.
	BreakerFailures uint32
	// BreakerTimeout is how long the breaker stays open before probing again.
	BreakerTimeout time.Duration
}

// DefaultResilienceConfig returns the production defaults.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		Name:            "catalog",
		RetryAttempts:   3,
		RetryBackoff:    50 * time.Millisecond,
		BreakerFailures: 5,
		BreakerTimeout:  10 * time.Second,
	}
}

// ResilientCatalog retries transient read failures and stops calling a
// failing backend until it recovers. Lookups of missing records are never
// retried and never count as failures.
type ResilientCatalog struct {
	next    Catalog
	cfg     ResilienceConfig
	breaker *gobreaker.CircuitBreaker[any]
	logger  logger.Logger
}

var _ Catalog = (*ResilientCatalog)(nil)

// NewResilientCatalog wraps next.
func NewResilientCatalog(next Catalog, cfg ResilienceConfig) *ResilientCatalog {
	def := DefaultResilienceConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	if cfg.RetryBackoff < 0 {
		cfg.RetryBackoff = 0
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = def.BreakerFailures
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = def.BreakerTimeout
	}

	r := &ResilientCatalog{
		next:   next,
		cfg:    cfg,
		logger: logger.Get().Named("catalog_breaker"),
	}
	r.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.UpdateBreakerState(name, int(to))
			r.logger.Warn(context.Background(), "circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || permanent(err)
		},
	})
	metrics.UpdateBreakerState(cfg.Name, int(gobreaker.StateClosed))
	return r
}

// State reports the breaker state.
func (r *ResilientCatalog) State() gobreaker.State {
	return r.breaker.State()
}

// Profile implements Catalog.
func (r *ResilientCatalog) Profile(ctx context.Context, id string) (model.PlayerProfile, error) {
	v, err := r.do(ctx, "profile", func() (any, error) {
		return r.next.Profile(ctx, id)
	})
	if err != nil {
		return model.PlayerProfile{}, err
	}
	return v.(model.PlayerProfile), nil
}

// ReviewsByItems implements Catalog.
func (r *ResilientCatalog) ReviewsByItems(ctx context.Context, itemIDs []string) (map[string][]model.ResolvedReview, error) {
	v, err := r.do(ctx, "reviews_by_items", func() (any, error) {
		return r.next.ReviewsByItems(ctx, itemIDs)
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string][]model.ResolvedReview), nil
}

// Candidates implements Catalog.
func (r *ResilientCatalog) Candidates(ctx context.Context, f CandidateFilter) ([]model.CandidateItem, error) {
	v, err := r.do(ctx, "candidates", func() (any, error) {
		return r.next.Candidates(ctx, f)
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.CandidateItem), nil
}

func (r *ResilientCatalog) do(ctx context.Context, op string, fn func() (any, error)) (any, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.RetryAttempts; attempt++ {
		v, err := r.breaker.Execute(fn)
		if err == nil {
			return v, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
		}
		if permanent(err) {
			return nil, err
		}
		lastErr = err
		if attempt == r.cfg.RetryAttempts {
			break
		}

		metrics.RecordStoreRetry(op)
		r.logger.Debug(ctx, "retrying catalog read",
			logger.String("op", op),
			logger.Int("attempt", attempt),
			logger.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * r.cfg.RetryBackoff):
		}
	}
	return nil, fmt.Errorf("%s after %d attempts: %w", op, r.cfg.RetryAttempts, lastErr)
}

// permanent reports errors that retrying cannot fix.
func permanent(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
