package model

import (
	"fmt"
	"math"
	"time"
)

// Rating bounds.
const (
	MinRating = 0.0
	MaxRating = 5.0
)

// Review is one rating of one item. ProfileRef is a weak reference: the
// profile it names may no longer exist.
type Review struct {
	ID         string           `json:"id"`
	ItemID     string           `json:"item_id"`
	Rating     float64          `json:"rating"`
	ProfileRef Optional[string] `json:"profile_ref"`
	Title      string           `json:"title,omitempty"`
	Text       string           `json:"text,omitempty"`
	Source     string           `json:"source,omitempty"`
	ReviewedAt time.Time        `json:"reviewed_at,omitempty"`
}

// ResolvedReview is a Review together with the outcome of resolving its profile reference.
type ResolvedReview struct {
	Review
	Profile Optional[PlayerProfile] `json:"profile"`
}

// ValidateRating returns ErrInvalidRating when r lies outside [MinRating, MaxRating] or is NaN.
func ValidateRating(r float64) error {
	if math.IsNaN(r) || r < MinRating || r > MaxRating {
		return fmt.Errorf("%w: %v", ErrInvalidRating, r)
	}
	return nil
}
