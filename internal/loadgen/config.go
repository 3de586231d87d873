// Package loadgen drives a running fairway API with synthetic review
// submissions and checks that ingestion and ranking keep up.
package loadgen

import "time"

// Config holds configuration for a load run.
type Config struct {
	BaseURL  string        // Base URL of the service
	Username string        // Basic auth user, empty when the API is open
	Password string        // Basic auth password
	Reviews  int           // Number of review submissions to generate
	Workers  int           // Number of concurrent submitters
	Timeout  time.Duration // HTTP request timeout
	// DuplicateEvery resends every Nth submission to exercise dedupe. Zero disables it.
	DuplicateEvery int
	// SettleTimeout bounds the wait for the queue to drain.
	SettleTimeout time.Duration
	// Seed makes generated submissions reproducible.
	Seed       uint64
	OutputFile string // Optional JSON dump of the generated submissions
	Verbose    bool
}

// Submission is the POST /reviews payload.
type Submission struct {
	Source           string    `json:"source"`
	ExternalReviewID string    `json:"external_review_id"`
	ClubID           string    `json:"club_id"`
	Rating           float64   `json:"rating"`
	Title            string    `json:"title,omitempty"`
	ReviewedAt       time.Time `json:"reviewed_at"`
	Reviewer         *Reviewer `json:"reviewer,omitempty"`
}

// Reviewer is the reviewer block of a submission.
type Reviewer struct {
	ExternalID  string         `json:"external_id"`
	DisplayName string         `json:"display_name,omitempty"`
	Profile     map[string]any `json:"profile"`
}

// Stats holds run statistics.
type Stats struct {
	Generated       int
	Submitted       int
	Accepted        int
	Duplicate       int
	Failed          int
	ReviewsBefore   int64
	ReviewsAfter    int64
	Recommendations int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
