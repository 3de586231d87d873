package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/okian/fairway/internal/domain/model"
	"github.com/okian/fairway/pkg/logger"
	"github.com/okian/fairway/pkg/metrics"
)

// statsYears is how many release years Counts breaks down.
const statsYears = 10

// likeEscaper escapes LIKE wildcards in user supplied search words.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// GormStore implements Store on a relational database through gorm.
type GormStore struct {
	db             *gorm.DB
	reviewsPerItem int
	logger         logger.Logger
}

var _ Store = (*GormStore)(nil)

// NewGormStore wraps an open database.
func NewGormStore(db *gorm.DB, opts ...Option) *GormStore {
	s := &GormStore{
		db:             db,
		reviewsPerItem: defaultReviewsPerItem,
		logger:         logger.Get().Named("store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates or updates the schema.
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(allRows()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	s.logger.Debug(ctx, "schema migrated", logger.String("dialect", s.db.Dialector.Name()))
	return nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// observe records latency and failures of one store operation.
func (s *GormStore) observe(op string, start time.Time, err error) {
	metrics.RecordStoreQueryLatency(op, float64(time.Since(start).Milliseconds()))
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrAlreadyExists) {
		metrics.RecordStoreError(op)
	}
}

func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %q: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("load %s %q: %w", what, id, err)
}

// Profile implements Catalog.
func (s *GormStore) Profile(ctx context.Context, id string) (p model.PlayerProfile, err error) {
	defer func(start time.Time) { s.observe("profile", start, err) }(time.Now())

	var row reviewerProfileRow
	if err = s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return model.PlayerProfile{}, notFound(err, "profile", id)
	}
	return row.toPlayerProfile(), nil
}

// ReviewsByItems implements Catalog.
func (s *GormStore) ReviewsByItems(ctx context.Context, itemIDs []string) (out map[string][]model.ResolvedReview, err error) {
	defer func(start time.Time) { s.observe("reviews_by_items", start, err) }(time.Now())

	out = make(map[string][]model.ResolvedReview, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}

	var rows []reviewRow
	err = s.db.WithContext(ctx).
		Preload("Profile").
		Where("club_id IN ?", itemIDs).
		Order("review_date DESC").Order("created_at DESC").Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load reviews: %w", err)
	}

	for i := range rows {
		id := rows[i].ClubID
		if len(out[id]) >= s.reviewsPerItem {
			continue
		}
		out[id] = append(out[id], rows[i].toResolved())
	}
	return out, nil
}

// Candidates implements Catalog.
func (s *GormStore) Candidates(ctx context.Context, f CandidateFilter) (items []model.CandidateItem, err error) {
	defer func(start time.Time) { s.observe("candidates", start, err) }(time.Now())

	db := s.db.WithContext(ctx)
	q := db.Model(&clubRow{}).Preload("Brand").Preload("ClubType")
	if f.Category != "" {
		q = q.Where("club_type_id IN (?)", db.Model(&clubTypeRow{}).Select("id").Where("LOWER(name) = ?", strings.ToLower(f.Category)))
	}
	if f.Brand != "" {
		q = q.Where("brand_id IN (?)", db.Model(&brandRow{}).Select("id").Where("LOWER(name) = ?", strings.ToLower(f.Brand)))
	}
	if f.PriceMin != nil {
		q = q.Where("COALESCE(current_price, msrp) >= ?", *f.PriceMin)
	}
	if f.PriceMax != nil {
		q = q.Where("COALESCE(current_price, msrp) <= ?", *f.PriceMax)
	}
	if f.YearMin > 0 {
		q = q.Where("release_year >= ?", f.YearMin)
	}
	if f.YearMax > 0 {
		q = q.Where("release_year <= ?", f.YearMax)
	}

	var rows []clubRow
	err = q.Order("release_year DESC").Order("model_name").Order("id").
		Limit(clampLimit(f.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}

	items = make([]model.CandidateItem, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].toCandidate())
	}
	return items, nil
}

// Clubs implements Store.
func (s *GormStore) Clubs(ctx context.Context, f ClubFilter) (clubs []Club, err error) {
	defer func(start time.Time) { s.observe("clubs", start, err) }(time.Now())

	db := s.db.WithContext(ctx)
	q := db.Model(&clubRow{}).Preload("Brand").Preload("ClubType")
	for _, word := range strings.Fields(strings.ToLower(f.Query)) {
		pattern := "%" + likeEscaper.Replace(word) + "%"
		q = q.Where("(LOWER(model_name) LIKE ? ESCAPE '\\' OR brand_id IN (?))", pattern,
			db.Model(&brandRow{}).Select("id").Where("LOWER(name) LIKE ? ESCAPE '\\'", pattern))
	}
	if f.Brand != "" {
		q = q.Where("brand_id IN (?)", db.Model(&brandRow{}).Select("id").Where("LOWER(name) = ?", strings.ToLower(f.Brand)))
	}
	if f.ClubType != "" {
		q = q.Where("club_type_id IN (?)", db.Model(&clubTypeRow{}).Select("id").Where("LOWER(name) = ?", strings.ToLower(f.ClubType)))
	}
	if f.Year > 0 {
		q = q.Where("release_year = ?", f.Year)
	}
	if f.YearMin > 0 {
		q = q.Where("release_year >= ?", f.YearMin)
	}
	if f.YearMax > 0 {
		q = q.Where("release_year <= ?", f.YearMax)
	}
	if f.SkillLevel != "" {
		q = q.Where("(skill_level = ? OR skill_level = ?)", f.SkillLevel, "All")
	}
	if f.CurrentOnly {
		q = q.Where("is_current = ?", true)
	}

	var rows []clubRow
	err = q.Order("release_year DESC").Order("model_name").Order("id").
		Limit(clampLimit(f.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load clubs: %w", err)
	}

	clubs = make([]Club, 0, len(rows))
	for i := range rows {
		clubs = append(clubs, rows[i].toClub())
	}
	return clubs, nil
}

// Club implements Store.
func (s *GormStore) Club(ctx context.Context, id string) (c Club, err error) {
	defer func(start time.Time) { s.observe("club", start, err) }(time.Now())

	var row clubRow
	err = s.db.WithContext(ctx).
		Preload("Brand").Preload("ClubType").Preload("Spec").Preload("Sources").
		First(&row, "id = ?", id).Error
	if err != nil {
		return Club{}, notFound(err, "club", id)
	}
	return row.toClub(), nil
}

// Brands implements Store.
func (s *GormStore) Brands(ctx context.Context) (brands []Brand, err error) {
	defer func(start time.Time) { s.observe("brands", start, err) }(time.Now())

	var rows []brandRow
	if err = s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load brands: %w", err)
	}
	brands = make([]Brand, 0, len(rows))
	for i := range rows {
		brands = append(brands, rows[i].toBrand())
	}
	return brands, nil
}

// ClubTypes implements Store.
func (s *GormStore) ClubTypes(ctx context.Context) (types []ClubType, err error) {
	defer func(start time.Time) { s.observe("club_types", start, err) }(time.Now())

	var rows []clubTypeRow
	if err = s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load club types: %w", err)
	}
	types = make([]ClubType, 0, len(rows))
	for i := range rows {
		types = append(types, rows[i].toClubType())
	}
	return types, nil
}

// EnsureBrand implements Store.
func (s *GormStore) EnsureBrand(ctx context.Context, name string) (b Brand, err error) {
	defer func(start time.Time) { s.observe("ensure_brand", start, err) }(time.Now())

	name = strings.TrimSpace(name)
	if name == "" {
		return Brand{}, fmt.Errorf("%w: brand name is empty", ErrInvalidInput)
	}
	row := brandRow{Name: name}
	if err = s.db.WithContext(ctx).Where(brandRow{Name: name}).FirstOrCreate(&row).Error; err != nil {
		return Brand{}, fmt.Errorf("ensure brand %q: %w", name, err)
	}
	return row.toBrand(), nil
}

// EnsureClubType implements Store.
func (s *GormStore) EnsureClubType(ctx context.Context, name, description string) (t ClubType, err error) {
	defer func(start time.Time) { s.observe("ensure_club_type", start, err) }(time.Now())

	name = strings.TrimSpace(name)
	if name == "" {
		return ClubType{}, fmt.Errorf("%w: club type name is empty", ErrInvalidInput)
	}
	row := clubTypeRow{Name: name}
	err = s.db.WithContext(ctx).
		Where(clubTypeRow{Name: name}).
		Attrs(clubTypeRow{Description: description}).
		FirstOrCreate(&row).Error
	if err != nil {
		return ClubType{}, fmt.Errorf("ensure club type %q: %w", name, err)
	}
	return row.toClubType(), nil
}

// CreateClub implements Store.
func (s *GormStore) CreateClub(ctx context.Context, c Club) (out Club, err error) {
	defer func(start time.Time) { s.observe("create_club", start, err) }(time.Now())

	if c.BrandID == "" || c.ClubTypeID == "" || strings.TrimSpace(c.ModelName) == "" || c.ReleaseYear <= 0 {
		return Club{}, fmt.Errorf("%w: club needs brand, type, model and year", ErrInvalidInput)
	}

	row := clubRow{
		BrandID:      c.BrandID,
		ClubTypeID:   c.ClubTypeID,
		ModelName:    strings.TrimSpace(c.ModelName),
		ReleaseYear:  c.ReleaseYear,
		MSRP:         c.MSRP,
		CurrentPrice: c.CurrentPrice,
		IsCurrent:    c.IsCurrent,
		SkillLevel:   c.SkillLevel,
		Description:  c.Description,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&clubRow{}).
			Where("brand_id = ? AND model_name = ? AND release_year = ?", row.BrandID, row.ModelName, row.ReleaseYear).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("club %s %d: %w", row.ModelName, row.ReleaseYear, ErrAlreadyExists)
		}
		if err := tx.Omit(clause.Associations).Create(&row).Error; err != nil {
			return err
		}
		// gorm skips zero values on create, so false would take the column default.
		if !row.IsCurrent {
			if err := tx.Model(&row).Update("is_current", false).Error; err != nil {
				return err
			}
		}
		if c.Spec != nil {
			spec := clubSpecRow{
				ClubID:        row.ID,
				Loft:          c.Spec.Loft,
				LieAngle:      c.Spec.LieAngle,
				Length:        c.Spec.Length,
				ShaftFlex:     c.Spec.ShaftFlex,
				ShaftMaterial: c.Spec.ShaftMaterial,
				HeadMaterial:  c.Spec.HeadMaterial,
				Adjustable:    c.Spec.Adjustable,
			}
			if err := tx.Create(&spec).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return Club{}, err
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Club{}, fmt.Errorf("club %s %d: %w", row.ModelName, row.ReleaseYear, ErrAlreadyExists)
		}
		return Club{}, fmt.Errorf("create club: %w", err)
	}
	return s.Club(ctx, row.ID)
}

// UpdatePrice implements Store.
func (s *GormStore) UpdatePrice(ctx context.Context, clubID string, price float64, source, url string) (err error) {
	defer func(start time.Time) { s.observe("update_price", start, err) }(time.Now())

	if price < 0 || strings.TrimSpace(source) == "" {
		return fmt.Errorf("%w: price must be non-negative and source set", ErrInvalidInput)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&clubRow{}).Where("id = ?", clubID).Update("current_price", price)
		if res.Error != nil {
			return fmt.Errorf("update price: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("club %q: %w", clubID, ErrNotFound)
		}

		offer := productSourceRow{
			ClubID:      clubID,
			SourceName:  source,
			ProductURL:  url,
			Price:       &price,
			InStock:     true,
			LastChecked: time.Now().UTC(),
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "club_id"}, {Name: "source_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"product_url", "price", "in_stock", "last_checked"}),
		}).Create(&offer).Error
		if err != nil {
			return fmt.Errorf("record offer: %w", err)
		}
		return nil
	})
}

// Profiles implements Store.
func (s *GormStore) Profiles(ctx context.Context, f ProfileFilter) (profiles []ReviewerProfile, err error) {
	defer func(start time.Time) { s.observe("profiles", start, err) }(time.Now())

	q := s.db.WithContext(ctx).Model(&reviewerProfileRow{})
	if f.HandicapMin != nil {
		q = q.Where("handicap >= ?", *f.HandicapMin)
	}
	if f.HandicapMax != nil {
		q = q.Where("handicap <= ?", *f.HandicapMax)
	}
	if f.SkillLevel != "" {
		q = q.Where("LOWER(skill_level) = ?", strings.ToLower(f.SkillLevel))
	}
	if f.SwingSpeedMin != nil {
		q = q.Where("swing_speed_mph >= ?", *f.SwingSpeedMin)
	}
	if f.SwingSpeedMax != nil {
		q = q.Where("swing_speed_mph <= ?", *f.SwingSpeedMax)
	}

	var rows []reviewerProfileRow
	if err = q.Order("created_at DESC").Order("id").Limit(clampLimit(f.Limit)).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	profiles = make([]ReviewerProfile, 0, len(rows))
	for i := range rows {
		profiles = append(profiles, rows[i].toReviewerProfile())
	}
	return profiles, nil
}

// UpsertProfile implements Store.
func (s *GormStore) UpsertProfile(ctx context.Context, p ReviewerProfile) (out ReviewerProfile, err error) {
	defer func(start time.Time) { s.observe("upsert_profile", start, err) }(time.Now())

	var row reviewerProfileRow
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if p.ExternalID != "" {
			err := tx.Where("external_id = ? AND source_name = ?", p.ExternalID, p.SourceName).First(&row).Error
			switch {
			case err == nil:
				updates := profileColumns(p.Profile)
				if p.DisplayName != "" {
					updates["display_name"] = p.DisplayName
				}
				if len(updates) == 0 {
					return nil
				}
				if err := tx.Model(&row).Updates(updates).Error; err != nil {
					return err
				}
				return tx.First(&row, "id = ?", row.ID).Error
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}
		}
		row = *newProfileRow(p)
		return tx.Create(&row).Error
	})
	if err != nil {
		return ReviewerProfile{}, fmt.Errorf("upsert profile: %w", err)
	}
	return row.toReviewerProfile(), nil
}

// DeleteProfile implements Store.
func (s *GormStore) DeleteProfile(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { s.observe("delete_profile", start, err) }(time.Now())

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&reviewRow{}).
			Where("reviewer_profile_id = ?", id).
			Update("reviewer_profile_id", nil).Error; err != nil {
			return fmt.Errorf("detach reviews: %w", err)
		}
		res := tx.Delete(&reviewerProfileRow{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("delete profile: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("profile %q: %w", id, ErrNotFound)
		}
		return nil
	})
}

// AddReview implements Store.
func (s *GormStore) AddReview(ctx context.Context, r model.Review) (out model.Review, err error) {
	defer func(start time.Time) { s.observe("add_review", start, err) }(time.Now())

	if err = model.ValidateRating(r.Rating); err != nil {
		return model.Review{}, fmt.Errorf("add review: %w", err)
	}

	row := reviewRow{
		base:              base{ID: r.ID},
		ClubID:            r.ItemID,
		ReviewerProfileID: r.ProfileRef.Ptr(),
		SourceName:        r.Source,
		Rating:            r.Rating,
		Title:             r.Title,
		Text:              r.Text,
	}
	if !r.ReviewedAt.IsZero() {
		t := r.ReviewedAt.UTC()
		row.ReviewDate = &t
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var clubs int64
		if err := tx.Model(&clubRow{}).Where("id = ?", r.ItemID).Count(&clubs).Error; err != nil {
			return err
		}
		if clubs == 0 {
			return fmt.Errorf("club %q: %w", r.ItemID, ErrNotFound)
		}
		return tx.Omit(clause.Associations).Create(&row).Error
	})
	if err != nil {
		return model.Review{}, fmt.Errorf("add review: %w", err)
	}

	out = r
	out.ID = row.ID
	return out, nil
}

// ReviewedClubIDs implements Store.
func (s *GormStore) ReviewedClubIDs(ctx context.Context, profileID string) (ids []string, err error) {
	defer func(start time.Time) { s.observe("reviewed_club_ids", start, err) }(time.Now())

	err = s.db.WithContext(ctx).Model(&reviewRow{}).
		Distinct("club_id").
		Where("reviewer_profile_id = ?", profileID).
		Order("club_id").
		Pluck("club_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("load reviewed clubs: %w", err)
	}
	return ids, nil
}

// ReviewsForClub implements Store.
func (s *GormStore) ReviewsForClub(ctx context.Context, clubID string) ([]model.ResolvedReview, error) {
	byItem, err := s.ReviewsByItems(ctx, []string{clubID})
	if err != nil {
		return nil, err
	}
	reviews := byItem[clubID]
	if reviews == nil {
		reviews = []model.ResolvedReview{}
	}
	return reviews, nil
}

// LogScrape implements Store.
func (s *GormStore) LogScrape(ctx context.Context, l ScrapeLog) (err error) {
	defer func(start time.Time) { s.observe("log_scrape", start, err) }(time.Now())

	row := scrapeLogRow{
		Source:       l.Source,
		Status:       l.Status,
		ItemsScraped: l.ItemsScraped,
		ItemsAdded:   l.ItemsAdded,
		ItemsUpdated: l.ItemsUpdated,
		ErrorMessage: l.ErrorMessage,
		StartedAt:    l.StartedAt,
		CompletedAt:  l.CompletedAt,
	}
	if err = s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("log scrape: %w", err)
	}
	return nil
}

// Counts implements Store.
func (s *GormStore) Counts(ctx context.Context) (c Counts, err error) {
	defer func(start time.Time) { s.observe("counts", start, err) }(time.Now())

	db := s.db.WithContext(ctx)
	targets := []struct {
		model any
		dst   *int64
	}{
		{&brandRow{}, &c.Brands},
		{&clubRow{}, &c.Clubs},
		{&reviewerProfileRow{}, &c.Profiles},
		{&reviewRow{}, &c.Reviews},
		{&productSourceRow{}, &c.Sources},
	}
	for _, t := range targets {
		if err = db.Model(t.model).Count(t.dst).Error; err != nil {
			return Counts{}, fmt.Errorf("count: %w", err)
		}
	}

	c.ByYear = []YearCount{}
	err = db.Model(&clubRow{}).
		Select("release_year AS year, COUNT(*) AS clubs").
		Group("release_year").
		Order("release_year DESC").
		Limit(statsYears).
		Scan(&c.ByYear).Error
	if err != nil {
		return Counts{}, fmt.Errorf("count by year: %w", err)
	}

	c.ByType = []TypeCount{}
	err = db.Table("club_types").
		Select("club_types.name AS club_type, COUNT(clubs.id) AS clubs").
		Joins("LEFT JOIN clubs ON clubs.club_type_id = club_types.id").
		Group("club_types.id, club_types.name").
		Order("club_types.name").
		Scan(&c.ByType).Error
	if err != nil {
		return Counts{}, fmt.Errorf("count by type: %w", err)
	}
	return c, nil
}
