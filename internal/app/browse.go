package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/fairway/internal/adapters/repository"
	"github.com/okian/fairway/internal/domain/model"
	"github.com/okian/fairway/internal/domain/scoring"
	"github.com/okian/fairway/pkg/metrics"
)

// ClubDetail is a club together with its reviews and their reviewer profiles.
type ClubDetail struct {
	repository.Club
	ReviewCount   int                    `json:"review_count"`
	AverageRating float64                `json:"average_rating"`
	Reviews       []model.ResolvedReview `json:"reviews"`
}

// Stats summarizes the catalog and the ingestion pipeline.
type Stats struct {
	Catalog       repository.Counts `json:"catalog"`
	Started       bool              `json:"started"`
	Uptime        string            `json:"uptime,omitempty"`
	QueueLength   int               `json:"queue_length"`
	QueueCapacity int               `json:"queue_capacity"`
	Workers       int               `json:"workers"`
	DedupeSize    int64             `json:"dedupe_size"`
	MinEvidence   int               `json:"min_evidence"`
	Breaker       string            `json:"catalog_breaker"`
	Weights       scoring.Weights   `json:"weights"`
}

// Clubs lists clubs.
func (s *Service) Clubs(ctx context.Context, f repository.ClubFilter) ([]repository.Club, error) {
	return s.store.Clubs(ctx, f)
}

// Club returns a club with its reviews, most recent first.
func (s *Service) Club(ctx context.Context, id string) (ClubDetail, error) {
	club, err := s.store.Club(ctx, id)
	if err != nil {
		return ClubDetail{}, err
	}
	reviews, err := s.store.ReviewsForClub(ctx, id)
	if err != nil {
		return ClubDetail{}, fmt.Errorf("load reviews: %w", err)
	}

	d := ClubDetail{Club: club, ReviewCount: len(reviews), Reviews: reviews}
	if len(reviews) > 0 {
		var sum float64
		for _, r := range reviews {
			sum += r.Rating
		}
		d.AverageRating = sum / float64(len(reviews))
	}
	return d, nil
}

// Brands lists brands.
func (s *Service) Brands(ctx context.Context) ([]repository.Brand, error) {
	return s.store.Brands(ctx)
}

// ClubTypes lists club types.
func (s *Service) ClubTypes(ctx context.Context) ([]repository.ClubType, error) {
	return s.store.ClubTypes(ctx)
}

// Profiles searches reviewer profiles.
func (s *Service) Profiles(ctx context.Context, f repository.ProfileFilter) ([]repository.ReviewerProfile, error) {
	return s.store.Profiles(ctx, f)
}

// UpdatePrice records a retailer price for a club.
func (s *Service) UpdatePrice(ctx context.Context, clubID string, price float64, source, url string) error {
	return s.store.UpdatePrice(ctx, clubID, price, source, url)
}

// Stats returns catalog counts and ingestion state.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return Stats{}, err
	}
	metrics.UpdateCatalogCounts(counts.Clubs, counts.Profiles, counts.Reviews)

	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Catalog:     counts,
		Started:     s.started,
		Workers:     s.workerCount,
		MinEvidence: s.minEvidence,
		Breaker:     s.resilient.State().String(),
		Weights:     s.weights,
	}
	if s.started {
		st.Uptime = time.Since(s.startedAt).Round(time.Second).String()
		st.QueueLength = s.queue.Len(ctx)
		st.QueueCapacity = s.queue.Capacity()
		st.DedupeSize = s.deduper.Size()
	}
	return st, nil
}
