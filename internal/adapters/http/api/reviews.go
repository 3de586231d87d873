package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	service "github.com/okian/fairway/internal/app"
	"github.com/okian/fairway/internal/domain/model"
)

// ReviewSubmitter accepts reviews for asynchronous persistence.
type ReviewSubmitter interface {
	SubmitReview(ctx context.Context, sub model.ReviewSubmission) (model.ReviewSubmission, error)
}

// ReviewsHandler handles review submissions.
type ReviewsHandler struct {
	submitter    ReviewSubmitter
	maxBodyBytes int64
}

// NewReviewsHandler creates a new reviews handler.
func NewReviewsHandler(s ReviewSubmitter, maxBodyBytes int64) *ReviewsHandler {
	return &ReviewsHandler{submitter: s, maxBodyBytes: maxBodyBytes}
}

// reviewRequest mirrors the OpenAPI schema for POST /reviews.
type reviewRequest struct {
	Source           string           `json:"source"`
	ExternalReviewID string           `json:"external_review_id"`
	ClubID           string           `json:"club_id"`
	Rating           *float64         `json:"rating"`
	Title            string           `json:"title"`
	Text             string           `json:"text"`
	ReviewedAt       *time.Time       `json:"reviewed_at"`
	Reviewer         *reviewerRequest `json:"reviewer"`
}

type reviewerRequest struct {
	ExternalID  string              `json:"external_id"`
	DisplayName string              `json:"display_name"`
	Profile     model.PlayerProfile `json:"profile"`
}

func (req reviewRequest) submission() (model.ReviewSubmission, error) {
	if req.Rating == nil {
		return model.ReviewSubmission{}, errors.New("missing rating")
	}
	sub := model.ReviewSubmission{
		Source:           req.Source,
		ExternalReviewID: req.ExternalReviewID,
		ClubID:           req.ClubID,
		Rating:           *req.Rating,
		Title:            req.Title,
		Text:             req.Text,
	}
	if req.ReviewedAt != nil {
		sub.ReviewedAt = req.ReviewedAt.UTC()
	}
	if req.Reviewer != nil {
		sub.Reviewer = &model.ReviewerDetails{
			ExternalID:  req.Reviewer.ExternalID,
			DisplayName: req.Reviewer.DisplayName,
			Profile:     req.Reviewer.Profile,
		}
	}
	return sub, nil
}

type ackResponse struct {
	Status       string `json:"status"`
	Duplicate    bool   `json:"duplicate"`
	SubmissionID string `json:"submission_id,omitempty"`
}

// HandlePost handles POST /reviews requests.
func (h *ReviewsHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_review"
	var req reviewRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	sub, err := req.submission()
	if err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}

	queued, err := h.submitter.SubmitReview(r.Context(), sub)
	switch {
	case errors.Is(err, service.ErrDuplicate):
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
	case err != nil:
		writeError(w, r, Wrap(op, err))
	default:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", SubmissionID: queued.SubmissionID})
	}
}
