package scoring

import "errors"

// Sentinel errors for scoring.
var (
	ErrInvalidReviewData = errors.New("invalid review data")
	ErrInvalidWeights    = errors.New("invalid similarity weights")
)
