package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/okian/fairway/internal/domain/model"
)

type base struct {
	ID string `gorm:"type:varchar(36);primaryKey"`
}

func (b *base) BeforeCreate(_ *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

type brandRow struct {
	base
	Name        string `gorm:"size:100;not null;uniqueIndex"`
	Country     string `gorm:"size:50"`
	Website     string `gorm:"size:255"`
	FoundedYear *int
	CreatedAt   time.Time
}

func (brandRow) TableName() string { return "brands" }

type clubTypeRow struct {
	base
	Name        string `gorm:"size:50;not null;uniqueIndex"`
	Description string `gorm:"type:text"`
	CreatedAt   time.Time
}

func (clubTypeRow) TableName() string { return "club_types" }

type clubRow struct {
	base
	BrandID      string      `gorm:"type:varchar(36);not null;uniqueIndex:idx_club_identity"`
	Brand        brandRow    `gorm:"foreignKey:BrandID"`
	ClubTypeID   string      `gorm:"type:varchar(36);not null;index"`
	ClubType     clubTypeRow `gorm:"foreignKey:ClubTypeID"`
	ModelName    string      `gorm:"size:200;not null;uniqueIndex:idx_club_identity"`
	ReleaseYear  int         `gorm:"not null;index;uniqueIndex:idx_club_identity"`
	MSRP         *float64
	CurrentPrice *float64
	IsCurrent    bool   `gorm:"not null;default:true;index"`
	SkillLevel   string `gorm:"size:20"`
	Description  string `gorm:"type:text"`
	Spec         *clubSpecRow       `gorm:"foreignKey:ClubID;constraint:OnDelete:CASCADE"`
	Sources      []productSourceRow `gorm:"foreignKey:ClubID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (clubRow) TableName() string { return "golf_clubs" }

type clubSpecRow struct {
	base
	ClubID        string `gorm:"type:varchar(36);not null;uniqueIndex"`
	Loft          *float64
	LieAngle      *float64
	Length        *float64
	ShaftFlex     string `gorm:"size:20"`
	ShaftMaterial string `gorm:"size:50"`
	HeadMaterial  string `gorm:"size:100"`
	Adjustable    bool
}

func (clubSpecRow) TableName() string { return "club_specifications" }

type productSourceRow struct {
	base
	ClubID      string `gorm:"type:varchar(36);not null;uniqueIndex:idx_source_offer"`
	SourceName  string `gorm:"size:100;not null;uniqueIndex:idx_source_offer"`
	ProductURL  string `gorm:"type:text"`
	Price       *float64
	InStock     bool
	LastChecked time.Time
}

func (productSourceRow) TableName() string { return "product_sources" }

type reviewerProfileRow struct {
	base
	ExternalID    *string `gorm:"size:100;uniqueIndex:idx_reviewer_identity"`
	SourceName    string  `gorm:"size:100;uniqueIndex:idx_reviewer_identity"`
	DisplayName   string  `gorm:"size:200"`
	Handicap      *float64 `gorm:"index"`
	SwingSpeedMph *int
	SkillLevel    *string `gorm:"size:20;index"`
	BallFlight    *string `gorm:"size:20"`
	YearsPlaying  *int
	BudgetRange   *string `gorm:"size:20"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (reviewerProfileRow) TableName() string { return "reviewer_profiles" }

type reviewRow struct {
	base
	ClubID            string              `gorm:"type:varchar(36);not null;index"`
	ReviewerProfileID *string             `gorm:"type:varchar(36);index"`
	Profile           *reviewerProfileRow `gorm:"foreignKey:ReviewerProfileID;constraint:OnDelete:SET NULL"`
	SourceName        string              `gorm:"size:100"`
	Rating            float64             `gorm:"not null"`
	Title             string              `gorm:"size:300"`
	Text              string              `gorm:"type:text"`
	ReviewDate        *time.Time
	CreatedAt         time.Time
}

func (reviewRow) TableName() string { return "club_reviews" }

type scrapeLogRow struct {
	base
	Source       string `gorm:"size:100;not null;index"`
	Status       string `gorm:"size:20;not null"`
	ItemsScraped int
	ItemsAdded   int
	ItemsUpdated int
	ErrorMessage string `gorm:"type:text"`
	StartedAt    time.Time
	CompletedAt  time.Time
}

func (scrapeLogRow) TableName() string { return "scraping_logs" }

func allRows() []any {
	return []any{
		&brandRow{}, &clubTypeRow{}, &clubRow{}, &clubSpecRow{},
		&productSourceRow{}, &reviewerProfileRow{}, &reviewRow{}, &scrapeLogRow{},
	}
}

func (r *brandRow) toBrand() Brand {
	return Brand{ID: r.ID, Name: r.Name, Country: r.Country, Website: r.Website, FoundedYear: r.FoundedYear}
}

func (r *clubTypeRow) toClubType() ClubType {
	return ClubType{ID: r.ID, Name: r.Name, Description: r.Description}
}

func (r *clubRow) toClub() Club {
	c := Club{
		ID:           r.ID,
		BrandID:      r.BrandID,
		Brand:        r.Brand.Name,
		ClubTypeID:   r.ClubTypeID,
		ClubType:     r.ClubType.Name,
		ModelName:    r.ModelName,
		ReleaseYear:  r.ReleaseYear,
		MSRP:         r.MSRP,
		CurrentPrice: r.CurrentPrice,
		IsCurrent:    r.IsCurrent,
		SkillLevel:   r.SkillLevel,
		Description:  r.Description,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.Spec != nil {
		c.Spec = &ClubSpec{
			Loft:          r.Spec.Loft,
			LieAngle:      r.Spec.LieAngle,
			Length:        r.Spec.Length,
			ShaftFlex:     r.Spec.ShaftFlex,
			ShaftMaterial: r.Spec.ShaftMaterial,
			HeadMaterial:  r.Spec.HeadMaterial,
			Adjustable:    r.Spec.Adjustable,
		}
	}
	for _, s := range r.Sources {
		c.Sources = append(c.Sources, ProductSource{
			SourceName:  s.SourceName,
			ProductURL:  s.ProductURL,
			Price:       s.Price,
			InStock:     s.InStock,
			LastChecked: s.LastChecked,
		})
	}
	return c
}

func (r *clubRow) toCandidate() model.CandidateItem {
	c := r.toClub()
	return model.CandidateItem{
		ID:         r.ID,
		Brand:      r.Brand.Name,
		Model:      r.ModelName,
		Category:   r.ClubType.Name,
		Year:       r.ReleaseYear,
		Price:      model.FromPtr(c.Price()),
		SkillLevel: r.SkillLevel,
	}
}

// toPlayerProfile maps nullable columns onto optional attributes. Values that
// no longer parse are treated as unknown.
func (r *reviewerProfileRow) toPlayerProfile() model.PlayerProfile {
	p := model.PlayerProfile{
		ID:            r.ID,
		Handicap:      model.FromPtr(r.Handicap),
		SwingSpeedMph: model.FromPtr(r.SwingSpeedMph),
		YearsPlaying:  model.FromPtr(r.YearsPlaying),
	}
	if r.SkillLevel != nil {
		if s, err := model.ParseSkillLevel(*r.SkillLevel); err == nil {
			p.SkillLevel = model.Some(s)
		}
	}
	if r.BallFlight != nil {
		if b, err := model.ParseBallFlight(*r.BallFlight); err == nil {
			p.BallFlight = model.Some(b)
		}
	}
	if r.BudgetRange != nil {
		if b, err := model.ParseBudgetRange(*r.BudgetRange); err == nil {
			p.BudgetRange = model.Some(b)
		}
	}
	return p
}

func (r *reviewerProfileRow) toReviewerProfile() ReviewerProfile {
	p := ReviewerProfile{
		SourceName:  r.SourceName,
		DisplayName: r.DisplayName,
		Profile:     r.toPlayerProfile(),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.ExternalID != nil {
		p.ExternalID = *r.ExternalID
	}
	return p
}

// profileColumns returns the known attributes of p keyed by column name.
func profileColumns(p model.PlayerProfile) map[string]any {
	cols := map[string]any{}
	if v, ok := p.Handicap.Get(); ok {
		cols["handicap"] = v
	}
	if v, ok := p.SwingSpeedMph.Get(); ok {
		cols["swing_speed_mph"] = v
	}
	if v, ok := p.SkillLevel.Get(); ok {
		cols["skill_level"] = v.String()
	}
	if v, ok := p.BallFlight.Get(); ok {
		cols["ball_flight"] = string(v)
	}
	if v, ok := p.YearsPlaying.Get(); ok {
		cols["years_playing"] = v
	}
	if v, ok := p.BudgetRange.Get(); ok {
		cols["budget_range"] = v.String()
	}
	return cols
}

func newProfileRow(p ReviewerProfile) *reviewerProfileRow {
	row := &reviewerProfileRow{
		base:          base{ID: p.Profile.ID},
		SourceName:    p.SourceName,
		DisplayName:   p.DisplayName,
		Handicap:      p.Profile.Handicap.Ptr(),
		SwingSpeedMph: p.Profile.SwingSpeedMph.Ptr(),
		YearsPlaying:  p.Profile.YearsPlaying.Ptr(),
	}
	if p.ExternalID != "" {
		ext := p.ExternalID
		row.ExternalID = &ext
	}
	if v, ok := p.Profile.SkillLevel.Get(); ok {
		s := v.String()
		row.SkillLevel = &s
	}
	if v, ok := p.Profile.BallFlight.Get(); ok {
		s := string(v)
		row.BallFlight = &s
	}
	if v, ok := p.Profile.BudgetRange.Get(); ok {
		s := v.String()
		row.BudgetRange = &s
	}
	return row
}

func (r *reviewRow) toResolved() model.ResolvedReview {
	out := model.ResolvedReview{Review: model.Review{
		ID:     r.ID,
		ItemID: r.ClubID,
		Rating: r.Rating,
		Title:  r.Title,
		Text:   r.Text,
		Source: r.SourceName,
	}}
	if r.ReviewDate != nil {
		out.ReviewedAt = *r.ReviewDate
	}
	if r.ReviewerProfileID != nil {
		out.ProfileRef = model.Some(*r.ReviewerProfileID)
	}
	if r.Profile != nil {
		out.Profile = model.Some(r.Profile.toPlayerProfile())
	}
	return out
}
