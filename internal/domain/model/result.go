package model

// Confidence is a coarse trust label derived from the evidence count.
type Confidence string

// Confidence levels.
const (
	ConfidenceLow  Confidence = "low"
	ConfidenceHigh Confidence = "high"
)

// RecommendationResult is one ranked row.
type RecommendationResult struct {
	ItemID            string     `json:"item_id"`
	PersonalizedScore float64    `json:"personalized_score"`
	EvidenceCount     int        `json:"evidence_count"`
	Confidence        Confidence `json:"confidence"`
}
