package api

import (
	"context"
	"net/http"

	"github.com/okian/fairway/internal/adapters/repository"
	service "github.com/okian/fairway/internal/app"
	"github.com/okian/fairway/internal/domain/model"
)

// LowConfidenceLabel is shown next to results backed by too few reviews.
const LowConfidenceLabel = "based on limited data"

// Recommender ranks clubs for a golfer.
type Recommender interface {
	Recommend(ctx context.Context, req service.RecommendRequest) ([]service.Recommendation, error)
}

// RecommendationsHandler handles recommendation requests.
type RecommendationsHandler struct {
	recommender Recommender
}

// NewRecommendationsHandler creates a new recommendations handler.
func NewRecommendationsHandler(r Recommender) *RecommendationsHandler {
	return &RecommendationsHandler{recommender: r}
}

type recommendationRow struct {
	Rank int `json:"rank"`
	service.Recommendation
	ConfidenceLabel string `json:"confidence_label,omitempty"`
}

type recommendationsResponse struct {
	Profile model.PlayerProfile `json:"profile"`
	Count   int                 `json:"count"`
	Results []recommendationRow `json:"results"`
}

// HandleGet handles GET /recommendations requests.
func (h *RecommendationsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.recommendations"
	req, err := parseRecommendRequest(newQueryReader(r.URL.Query()))
	if err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}

	recs, err := h.recommender.Recommend(r.Context(), req)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}

	resp := recommendationsResponse{
		Profile: req.Profile,
		Count:   len(recs),
		Results: make([]recommendationRow, 0, len(recs)),
	}
	for i, rec := range recs {
		row := recommendationRow{Rank: i + 1, Recommendation: rec}
		if rec.Confidence == model.ConfidenceLow {
			row.ConfidenceLabel = LowConfidenceLabel
		}
		resp.Results = append(resp.Results, row)
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseRecommendRequest turns the query string into a profile and a
// candidate filter. Absent parameters stay unknown.
func parseRecommendRequest(q *queryReader) (service.RecommendRequest, error) {
	req := service.RecommendRequest{
		ProfileID:  q.string("profile_id"),
		Expression: q.string("filter"),
		Profile:    model.NewPlayerProfile(""),
	}

	if v, ok := q.float("handicap"); ok {
		req.Profile.Handicap = model.Some(v)
	}
	if v, ok := q.int("swing_speed"); ok {
		req.Profile.SwingSpeedMph = model.Some(v)
	}
	if v, ok := parseParam(q, "skill", model.ParseSkillLevel); ok {
		req.Profile.SkillLevel = model.Some(v)
	}
	if v, ok := parseParam(q, "ball_flight", model.ParseBallFlight); ok {
		req.Profile.BallFlight = model.Some(v)
	}
	if v, ok := q.int("years_playing"); ok && v >= 0 {
		req.Profile.YearsPlaying = model.Some(v)
	}
	if v, ok := parseParam(q, "budget", model.ParseBudgetRange); ok {
		req.Profile.BudgetRange = model.Some(v)
	}

	req.Filter = repository.CandidateFilter{
		Category: q.string("category"),
		Brand:    q.string("brand"),
		PriceMin: q.floatPtr("price_min"),
		PriceMax: q.floatPtr("price_max"),
	}
	req.Filter.YearMin, _ = q.int("year_min")
	req.Filter.YearMax, _ = q.int("year_max")
	req.MinEvidence, _ = q.int("min_evidence")
	req.Limit = q.limit("limit")

	return req, q.err
}
