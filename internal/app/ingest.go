package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fairway/internal/adapters/cache"
	"github.com/okian/fairway/internal/adapters/repository"
	"github.com/okian/fairway/internal/domain/model"
	"github.com/okian/fairway/pkg/logger"
	"github.com/okian/fairway/pkg/metrics"
)

type submissionRules struct {
	Source           string  `validate:"required,max=100"`
	ExternalReviewID string  `validate:"max=200"`
	ClubID           string  `validate:"required,max=36"`
	Rating           float64 `validate:"gte=0,lte=5"`
	Title            string  `validate:"max=300"`
	ReviewerID       string  `validate:"max=100"`
}

// SubmitReview accepts a review for asynchronous persistence. It returns the
// submission as queued, ErrDuplicate when the same source review was already
// accepted, or ErrBackpressure when the queue is full.
func (s *Service) SubmitReview(ctx context.Context, sub model.ReviewSubmission) (model.ReviewSubmission, error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return sub, ErrNotStarted
	}

	sub.Source = strings.TrimSpace(sub.Source)
	sub.ClubID = strings.TrimSpace(sub.ClubID)
	if sub.SubmissionID == "" {
		sub.SubmissionID = uuid.NewString()
	}
	sub.ReceivedAt = time.Now().UTC()

	if err := s.checkSubmission(sub); err != nil {
		metrics.RecordReviewSubmission("invalid")
		return sub, err
	}

	key := sub.DedupeKey()
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordReviewSubmission("duplicate")
		s.logger.Debug(ctx, "duplicate review submission", logger.String("key", key))
		return sub, ErrDuplicate
	}

	if !s.queue.Enqueue(ctx, sub) {
		s.deduper.Unrecord(ctx, key)
		metrics.RecordReviewSubmission("backpressure")
		return sub, ErrBackpressure
	}

	metrics.RecordReviewSubmission("accepted")
	s.logger.Debug(ctx, "review submission queued",
		logger.String("submission_id", sub.SubmissionID),
		logger.String("club_id", sub.ClubID),
	)
	return sub, nil
}

func (s *Service) checkSubmission(sub model.ReviewSubmission) error {
	if err := model.ValidateRating(sub.Rating); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSubmission, err)
	}
	rules := submissionRules{
		Source:           sub.Source,
		ExternalReviewID: sub.ExternalReviewID,
		ClubID:           sub.ClubID,
		Rating:           sub.Rating,
		Title:            sub.Title,
	}
	if sub.Reviewer != nil {
		rules.ReviewerID = sub.Reviewer.ExternalID
	}
	if err := s.validate.Struct(rules); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSubmission, err)
	}
	return nil
}

// Ingest persists one queued submission: it merges the reviewer profile,
// stores the review and drops the club's cached reviews. It is called by
// the worker pool.
func (s *Service) Ingest(ctx context.Context, sub model.ReviewSubmission) error {
	review := model.Review{
		ItemID:     sub.ClubID,
		Rating:     sub.Rating,
		Title:      sub.Title,
		Text:       sub.Text,
		Source:     sub.Source,
		ReviewedAt: sub.ReviewedAt,
	}
	if review.ReviewedAt.IsZero() {
		review.ReviewedAt = sub.ReceivedAt
	}

	if sub.Reviewer != nil {
		profile := sub.Reviewer.Profile
		profile.ID = ""
		stored, err := s.store.UpsertProfile(ctx, repository.ReviewerProfile{
			ExternalID:  sub.Reviewer.ExternalID,
			SourceName:  sub.Source,
			DisplayName: sub.Reviewer.DisplayName,
			Profile:     profile,
		})
		if err != nil {
			s.deduper.Unrecord(ctx, sub.DedupeKey())
			return fmt.Errorf("store reviewer: %w", err)
		}
		review.ProfileRef = model.Some(stored.ID())
	}

	if _, err := s.store.AddReview(ctx, review); err != nil {
		s.deduper.Unrecord(ctx, sub.DedupeKey())
		return fmt.Errorf("store review: %w", err)
	}
	metrics.RecordReviewPersisted()

	stale := s.staleClubs(ctx, sub.ClubID, review.ProfileRef)
	if err := s.cache.Invalidate(ctx, stale...); err != nil {
		s.logger.Warn(ctx, "failed to invalidate cached reviews",
			logger.String("club_id", sub.ClubID),
			logger.Int("clubs", len(stale)),
			logger.Error(err),
		)
	}
	return nil
}

// staleClubs returns the clubs whose cached reviews no longer hold after a
// review of clubID. A merged reviewer profile changes the resolved profile on
// every club that reviewer has reviewed, not only clubID.
func (s *Service) staleClubs(ctx context.Context, clubID string, profileRef model.Optional[string]) []string {
	profileID, ok := profileRef.Get()
	if _, noop := s.cache.(cache.Noop); noop || !ok {
		return []string{clubID}
	}
	ids, err := s.store.ReviewedClubIDs(ctx, profileID)
	if err != nil {
		s.logger.Warn(ctx, "failed to list clubs reviewed by profile",
			logger.String("profile_id", profileID),
			logger.Error(err),
		)
		return []string{clubID}
	}
	if !slices.Contains(ids, clubID) {
		ids = append(ids, clubID)
	}
	return ids
}
