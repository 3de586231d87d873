package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/fairway/internal/adapters/repository"
	"github.com/okian/fairway/internal/domain/filter"
	"github.com/okian/fairway/internal/domain/model"
	"github.com/okian/fairway/internal/domain/ranking"
	"github.com/okian/fairway/internal/domain/scoring"
	"github.com/okian/fairway/pkg/logger"
	"github.com/okian/fairway/pkg/metrics"
)

// RecommendRequest describes one recommendation query.
type RecommendRequest struct {
	// ProfileID optionally names a stored profile whose attributes fill the
	// ones Profile leaves unknown.
	ProfileID string
	Profile   model.PlayerProfile
	Filter    repository.CandidateFilter
	// Expression is an optional CEL predicate over each candidate.
	Expression string
	// MinEvidence overrides the confidence threshold when positive.
	MinEvidence int
	// Limit truncates the ranked list when positive.
	Limit int
}

// Recommendation is a ranked result together with the club it refers to.
type Recommendation struct {
	model.RecommendationResult
	Club model.CandidateItem `json:"club"`
}

// Recommend ranks the candidate clubs for the requesting golfer.
func (s *Service) Recommend(ctx context.Context, req RecommendRequest) (recs []Recommendation, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordRecommendationLatency(float64(time.Since(start).Milliseconds()))
		switch {
		case err == nil:
			metrics.RecordRecommendation("ok")
		case errors.Is(err, scoring.ErrInvalidReviewData):
			metrics.RecordInvalidReviewData()
			metrics.RecordRecommendation("invalid_review_data")
		case errors.Is(err, filter.ErrInvalidExpression):
			metrics.RecordRecommendation("invalid_expression")
		default:
			metrics.RecordRecommendation("error")
		}
	}()

	expr, err := filter.Compile(req.Expression)
	if err != nil {
		return nil, err
	}

	user := req.Profile
	if req.ProfileID != "" {
		stored, err := s.catalog.Profile(ctx, req.ProfileID)
		if err != nil {
			return nil, fmt.Errorf("load profile: %w", err)
		}
		user = mergeProfile(user, stored)
	}

	f := req.Filter
	if f.Limit <= 0 || f.Limit > s.candidateLimit {
		f.Limit = s.candidateLimit
	}
	candidates, err := s.catalog.Candidates(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}

	kept, failed := expr.Apply(candidates)
	if dropped := len(candidates) - len(kept); dropped > 0 {
		metrics.RecordCandidatesFilteredOut(dropped)
	}
	if failed > 0 {
		s.logger.Debug(ctx, "filter expression failed on some candidates",
			logger.String("expression", expr.String()),
			logger.Int("failed", failed),
		)
	}

	reviews, err := s.fetchReviews(ctx, kept)
	if err != nil {
		return nil, err
	}

	ranker := s.ranker
	if req.MinEvidence > 0 && req.MinEvidence != s.minEvidence {
		ranker = ranking.New(ranking.WithAggregator(s.aggregator), ranking.WithMinEvidence(req.MinEvidence))
	}
	results, err := ranker.Rank(user, kept, reviews)
	if err != nil {
		s.logger.Error(ctx, "ranking failed", logger.Error(err))
		return nil, err
	}
	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}

	byID := make(map[string]model.CandidateItem, len(kept))
	for _, c := range kept {
		byID[c.ID] = c
	}
	recs = make([]Recommendation, 0, len(results))
	examined, low := 0, 0
	for _, r := range results {
		recs = append(recs, Recommendation{RecommendationResult: r, Club: byID[r.ItemID]})
		if r.Confidence == model.ConfidenceLow {
			low++
		}
	}
	for _, rs := range reviews {
		examined += len(rs)
	}

	metrics.RecordCandidatesRanked(len(kept))
	metrics.RecordReviewsExamined(examined)
	metrics.RecordLowConfidenceResults(low)
	s.logger.Debug(ctx, "recommendations computed",
		logger.Int("candidates", len(candidates)),
		logger.Int("ranked", len(kept)),
		logger.Int("returned", len(recs)),
		logger.Int("reviews", examined),
		logger.Duration("elapsed", time.Since(start)),
	)
	return recs, nil
}

// fetchReviews loads reviews for the candidates in concurrent batches.
func (s *Service) fetchReviews(ctx context.Context, candidates []model.CandidateItem) (map[string][]model.ResolvedReview, error) {
	out := make(map[string][]model.ResolvedReview, len(candidates))
	if len(candidates) == 0 {
		return out, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fetchConcurrency)
	for lo := 0; lo < len(candidates); lo += s.fetchBatchSize {
		hi := min(lo+s.fetchBatchSize, len(candidates))
		ids := make([]string, 0, hi-lo)
		for _, c := range candidates[lo:hi] {
			ids = append(ids, c.ID)
		}
		g.Go(func() error {
			batch, err := s.catalog.ReviewsByItems(gctx, ids)
			if err != nil {
				return err
			}
			mu.Lock()
			for id, rs := range batch {
				out[id] = rs
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load reviews: %w", err)
	}
	return out, nil
}

// mergeProfile fills attributes unknown in primary from fallback.
func mergeProfile(primary, fallback model.PlayerProfile) model.PlayerProfile {
	out := primary
	if out.ID == "" {
		out.ID = fallback.ID
	}
	if !out.Handicap.Present() {
		out.Handicap = fallback.Handicap
	}
	if !out.SwingSpeedMph.Present() {
		out.SwingSpeedMph = fallback.SwingSpeedMph
	}
	if !out.SkillLevel.Present() {
		out.SkillLevel = fallback.SkillLevel
	}
	if !out.BallFlight.Present() {
		out.BallFlight = fallback.BallFlight
	}
	if !out.YearsPlaying.Present() {
		out.YearsPlaying = fallback.YearsPlaying
	}
	if !out.BudgetRange.Present() {
		out.BudgetRange = fallback.BudgetRange
	}
	return out
}
