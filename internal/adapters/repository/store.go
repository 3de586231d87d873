// Package repository persists the club catalog, reviewer profiles and reviews,
// and serves the read snapshots the recommendation engine ranks over.
package repository

import (
	"context"
	"time"

	"github.com/okian/fairway/internal/domain/model"
)

// Catalog is the read side the recommendation engine depends on.
type Catalog interface {
	// Profile returns a reviewer profile. Returns ErrNotFound if it does not exist.
	Profile(ctx context.Context, id string) (model.PlayerProfile, error)

	// ReviewsByItems returns reviews keyed by club id with their profiles
	// resolved. Reviews whose profile no longer exists carry an absent profile.
	ReviewsByItems(ctx context.Context, itemIDs []string) (map[string][]model.ResolvedReview, error)

	// Candidates returns the clubs matching f.
	Candidates(ctx context.Context, f CandidateFilter) ([]model.CandidateItem, error)
}

// Store is the full read/write catalog.
type Store interface {
	Catalog

	Clubs(ctx context.Context, f ClubFilter) ([]Club, error)
	Club(ctx context.Context, id string) (Club, error)
	Brands(ctx context.Context) ([]Brand, error)
	ClubTypes(ctx context.Context) ([]ClubType, error)

	// EnsureBrand returns the brand named name, creating it if needed.
	EnsureBrand(ctx context.Context, name string) (Brand, error)
	// EnsureClubType returns the club type named name, creating it if needed.
	EnsureClubType(ctx context.Context, name, description string) (ClubType, error)
	// CreateClub inserts a club. Returns ErrAlreadyExists for a duplicate brand, model and year.
	CreateClub(ctx context.Context, c Club) (Club, error)
	// UpdatePrice sets the current price and records the offer of source.
	UpdatePrice(ctx context.Context, clubID string, price float64, source, url string) error

	Profiles(ctx context.Context, f ProfileFilter) ([]ReviewerProfile, error)
	// UpsertProfile creates a profile or merges p into the one with the same
	// external id and source. Unknown attributes never overwrite known ones.
	UpsertProfile(ctx context.Context, p ReviewerProfile) (ReviewerProfile, error)
	// DeleteProfile removes a profile. Its reviews remain with no profile reference.
	DeleteProfile(ctx context.Context, id string) error

	// AddReview stores a review. Ratings outside [0, 5] are rejected with model.ErrInvalidRating.
	AddReview(ctx context.Context, r model.Review) (model.Review, error)
	ReviewsForClub(ctx context.Context, clubID string) ([]model.ResolvedReview, error)
	// ReviewedClubIDs returns the distinct clubs a profile has reviewed.
	ReviewedClubIDs(ctx context.Context, profileID string) ([]string, error)

	LogScrape(ctx context.Context, l ScrapeLog) error
	Counts(ctx context.Context) (Counts, error)

	Close() error
}

// CandidateFilter selects the clubs considered for recommendation. Zero values mean "any".
type CandidateFilter struct {
	Category string
	Brand    string
	PriceMin *float64
	PriceMax *float64
	YearMin  int
	YearMax  int
	Limit    int
}

// ClubFilter selects clubs for browsing. Zero values mean "any".
type ClubFilter struct {
	// Query is free text; every word must appear in the brand or model name.
	Query       string
	Brand       string
	ClubType    string
	Year        int
	YearMin     int
	YearMax     int
	SkillLevel  string
	CurrentOnly bool
	Limit       int
}

// ProfileFilter selects reviewer profiles. Nil bounds mean "any".
type ProfileFilter struct {
	HandicapMin   *float64
	HandicapMax   *float64
	SkillLevel    string
	SwingSpeedMin *int
	SwingSpeedMax *int
	Limit         int
}

// Brand is a club manufacturer.
type Brand struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Country     string `json:"country,omitempty"`
	Website     string `json:"website,omitempty"`
	FoundedYear *int   `json:"founded_year,omitempty"`
}

// ClubType is a club category such as Driver or Putter.
type ClubType struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ClubSpec holds the technical specification of a club.
type ClubSpec struct {
	Loft          *float64 `json:"loft,omitempty"`
	LieAngle      *float64 `json:"lie_angle,omitempty"`
	Length        *float64 `json:"length,omitempty"`
	ShaftFlex     string   `json:"shaft_flex,omitempty"`
	ShaftMaterial string   `json:"shaft_material,omitempty"`
	HeadMaterial  string   `json:"head_material,omitempty"`
	Adjustable    bool     `json:"adjustable"`
}

// ProductSource is a retailer offer for a club.
type ProductSource struct {
	SourceName  string    `json:"source_name"`
	ProductURL  string    `json:"product_url,omitempty"`
	Price       *float64  `json:"price,omitempty"`
	InStock     bool      `json:"in_stock"`
	LastChecked time.Time `json:"last_checked"`
}

// Club is a catalog entry.
type Club struct {
	ID           string          `json:"id"`
	BrandID      string          `json:"brand_id"`
	Brand        string          `json:"brand"`
	ClubTypeID   string          `json:"club_type_id"`
	ClubType     string          `json:"club_type"`
	ModelName    string          `json:"model_name"`
	ReleaseYear  int             `json:"release_year"`
	MSRP         *float64        `json:"msrp,omitempty"`
	CurrentPrice *float64        `json:"current_price,omitempty"`
	IsCurrent    bool            `json:"is_current"`
	SkillLevel   string          `json:"skill_level,omitempty"`
	Description  string          `json:"description,omitempty"`
	Spec         *ClubSpec       `json:"spec,omitempty"`
	Sources      []ProductSource `json:"sources,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Price returns the current price, falling back to MSRP.
func (c *Club) Price() *float64 {
	if c.CurrentPrice != nil {
		return c.CurrentPrice
	}
	return c.MSRP
}

// ReviewerProfile is a stored profile together with its origin.
type ReviewerProfile struct {
	ExternalID  string              `json:"external_id,omitempty"`
	SourceName  string              `json:"source_name,omitempty"`
	DisplayName string              `json:"display_name,omitempty"`
	Profile     model.PlayerProfile `json:"profile"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// ID returns the profile identity.
func (p *ReviewerProfile) ID() string {
	return p.Profile.ID
}

// ScrapeLog records one ingestion run.
type ScrapeLog struct {
	Source       string
	Status       string
	ItemsScraped int
	ItemsAdded   int
	ItemsUpdated int
	ErrorMessage string
	StartedAt    time.Time
	CompletedAt  time.Time
}

// Counts summarizes the catalog size.
type Counts struct {
	Brands   int64 `json:"brands"`
	Clubs    int64 `json:"clubs"`
	Profiles int64 `json:"profiles"`
	Reviews  int64 `json:"reviews"`
	Sources  int64 `json:"product_sources"`
	// ByYear covers the most recent release years, newest first.
	ByYear []YearCount `json:"by_year"`
	// ByType lists every club type, including those without clubs.
	ByType []TypeCount `json:"by_type"`
}

// YearCount is the number of clubs released in a year.
type YearCount struct {
	Year  int   `json:"year"`
	Clubs int64 `json:"clubs"`
}

// TypeCount is the number of clubs of a type.
type TypeCount struct {
	ClubType string `json:"club_type"`
	Clubs    int64  `json:"clubs"`
}
