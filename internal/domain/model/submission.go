package model

import "time"

// ReviewSubmission is a review received from an ingestion source together
// with the reviewer details it carried. It flows through the ingestion queue.
type ReviewSubmission struct {
	SubmissionID     string
	Source           string
	ExternalReviewID string
	ClubID           string
	Rating           float64
	Title            string
	Text             string
	ReviewedAt       time.Time
	Reviewer         *ReviewerDetails
	ReceivedAt       time.Time
}

// ReviewerDetails identifies a reviewer at a source and carries whatever
// profile attributes the source exposed.
type ReviewerDetails struct {
	ExternalID  string
	DisplayName string
	Profile     PlayerProfile
}

// DedupeKey identifies the submission across retries from the same source.
func (s ReviewSubmission) DedupeKey() string {
	if s.ExternalReviewID == "" {
		return s.SubmissionID
	}
	return s.Source + "/" + s.ExternalReviewID
}
