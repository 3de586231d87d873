package cache

import (
	"context"

	"github.com/okian/fairway/internal/adapters/repository"
	"github.com/okian/fairway/internal/domain/model"
	"github.com/okian/fairway/pkg/logger"
)

// Catalog serves review reads from a ReviewCache and falls through to the
// wrapped catalog for misses. A failing cache degrades to direct reads.
type Catalog struct {
	repository.Catalog
	cache  ReviewCache
	logger logger.Logger
}

var _ repository.Catalog = (*Catalog)(nil)

// NewCatalog wraps next with cache.
func NewCatalog(next repository.Catalog, cache ReviewCache) *Catalog {
	return &Catalog{
		Catalog: next,
		cache:   cache,
		logger:  logger.Get().Named("cached_catalog"),
	}
}

// ReviewsByItems implements repository.Catalog.
func (c *Catalog) ReviewsByItems(ctx context.Context, itemIDs []string) (map[string][]model.ResolvedReview, error) {
	hits, misses, err := c.cache.Get(ctx, itemIDs)
	if err != nil {
		c.logger.Warn(ctx, "review cache unavailable", logger.Error(err))
		return c.Catalog.ReviewsByItems(ctx, itemIDs)
	}
	if len(misses) == 0 {
		return hits, nil
	}

	loaded, err := c.Catalog.ReviewsByItems(ctx, misses)
	if err != nil {
		return nil, err
	}
	fill := make(map[string][]model.ResolvedReview, len(misses))
	for _, id := range misses {
		reviews := loaded[id]
		fill[id] = reviews
		hits[id] = reviews
	}
	if err := c.cache.Set(ctx, fill); err != nil {
		c.logger.Warn(ctx, "failed to fill review cache", logger.Error(err))
	}
	return hits, nil
}
