// Package cache keeps per-club review snapshots close to the ranker.
package cache

import (
	"context"

	"github.com/okian/fairway/internal/domain/model"
)

// ReviewCache stores resolved reviews keyed by club id.
type ReviewCache interface {
	// Get returns the cached reviews of the requested clubs and the ids that were not cached.
	Get(ctx context.Context, itemIDs []string) (hits map[string][]model.ResolvedReview, misses []string, err error)
	// Set caches the reviews of each club in entries.
	Set(ctx context.Context, entries map[string][]model.ResolvedReview) error
	// Invalidate drops the cached reviews of the given clubs.
	Invalidate(ctx context.Context, itemIDs ...string) error
	Close() error
}

// Noop caches nothing.
type Noop struct{}

var _ ReviewCache = Noop{}

func (Noop) Get(_ context.Context, itemIDs []string) (map[string][]model.ResolvedReview, []string, error) {
	return map[string][]model.ResolvedReview{}, itemIDs, nil
}

func (Noop) Set(context.Context, map[string][]model.ResolvedReview) error { return nil }

func (Noop) Invalidate(context.Context, ...string) error { return nil }

func (Noop) Close() error { return nil }
