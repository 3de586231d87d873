// Package seed loads the embedded historical club catalog together with a
// set of sample reviewer profiles and reviews.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okian/fairway/internal/adapters/repository"
	"github.com/okian/fairway/internal/domain/model"
	"github.com/okian/fairway/pkg/logger"
)

//go:embed clubs.yaml
var defaultCatalog []byte

const (
	// DefaultYears is the default look-back window.
	DefaultYears = 10
	// currentWindow is how many years a release counts as current.
	currentWindow = 2
	sourceName    = "Historical Data"
)

// Options controls Load.
type Options struct {
	// Years keeps clubs released in the last Years years. Zero means DefaultYears.
	Years int
	// Now is the reference time. Zero means time.Now.
	Now time.Time
	// Data replaces the embedded catalog when set.
	Data []byte
}

// Report summarizes a Load run.
type Report struct {
	ClubsAdded       int `json:"clubs_added"`
	ClubsSkipped     int `json:"clubs_skipped"`
	ProfilesUpserted int `json:"profiles_upserted"`
	ReviewsAdded     int `json:"reviews_added"`
	Failures         int `json:"failures"`
}

type catalogFile struct {
	Brands    []string       `yaml:"brands"`
	ClubTypes []clubTypeSpec `yaml:"club_types"`
	Clubs     []clubSpec     `yaml:"clubs"`
	Profiles  []profileSpec  `yaml:"profiles"`
	Reviews   []reviewSpec   `yaml:"reviews"`
}

type clubTypeSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type clubSpec struct {
	Brand       string    `yaml:"brand"`
	Model       string    `yaml:"model"`
	Year        int       `yaml:"year"`
	Type        string    `yaml:"type"`
	MSRP        *float64  `yaml:"msrp"`
	SkillLevel  string    `yaml:"skill_level"`
	Description string    `yaml:"description"`
	Spec        *specSpec `yaml:"spec"`
}

type specSpec struct {
	Loft          *float64 `yaml:"loft"`
	ShaftMaterial string   `yaml:"shaft_material"`
	HeadMaterial  string   `yaml:"head_material"`
	Adjustable    bool     `yaml:"adjustable"`
}

type profileSpec struct {
	ExternalID    string   `yaml:"external_id"`
	Source        string   `yaml:"source"`
	DisplayName   string   `yaml:"display_name"`
	Handicap      *float64 `yaml:"handicap"`
	SwingSpeedMph *int     `yaml:"swing_speed_mph"`
	SkillLevel    string   `yaml:"skill_level"`
	BallFlight    string   `yaml:"ball_flight"`
	YearsPlaying  *int     `yaml:"years_playing"`
	BudgetRange   string   `yaml:"budget_range"`
}

type reviewSpec struct {
	Brand    string  `yaml:"brand"`
	Model    string  `yaml:"model"`
	Year     int     `yaml:"year"`
	Reviewer string  `yaml:"reviewer"`
	Rating   float64 `yaml:"rating"`
	Title    string  `yaml:"title"`
	Text     string  `yaml:"text"`
}

func clubKey(brand, modelName string, year int) string {
	return fmt.Sprintf("%s|%s|%d", strings.ToLower(brand), strings.ToLower(modelName), year)
}

func parse(data []byte) (*catalogFile, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed catalog: %w", err)
	}
	return &f, nil
}

// playerProfile converts the YAML attributes. Unparseable values are left unknown.
func (p profileSpec) playerProfile() model.PlayerProfile {
	var opts []model.ProfileOption
	if p.Handicap != nil {
		opts = append(opts, model.WithHandicap(*p.Handicap))
	}
	if p.SwingSpeedMph != nil {
		opts = append(opts, model.WithSwingSpeed(*p.SwingSpeedMph))
	}
	if s, err := model.ParseSkillLevel(p.SkillLevel); err == nil {
		opts = append(opts, model.WithSkillLevel(s))
	}
	if b, err := model.ParseBallFlight(p.BallFlight); err == nil {
		opts = append(opts, model.WithBallFlight(b))
	}
	if p.YearsPlaying != nil {
		opts = append(opts, model.WithYearsPlaying(*p.YearsPlaying))
	}
	if b, err := model.ParseBudgetRange(p.BudgetRange); err == nil {
		opts = append(opts, model.WithBudgetRange(b))
	}
	return model.NewPlayerProfile("", opts...)
}

// Load writes the catalog into store. Clubs that already exist are skipped
// and sample reviews are only attached to clubs added by this run, so
// repeated loads are idempotent.
func Load(ctx context.Context, store repository.Store, opts Options) (Report, error) {
	log := logger.Get().Named("seed")
	started := time.Now().UTC()

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	years := opts.Years
	if years <= 0 {
		years = DefaultYears
	}
	data := opts.Data
	if len(data) == 0 {
		data = defaultCatalog
	}

	var report Report
	err := load(ctx, store, data, now, years, &report, log)

	entry := repository.ScrapeLog{
		Source:       sourceName,
		Status:       "success",
		ItemsScraped: report.ClubsAdded + report.ClubsSkipped,
		ItemsAdded:   report.ClubsAdded,
		StartedAt:    started,
		CompletedAt:  time.Now().UTC(),
	}
	if err != nil {
		entry.Status = "failed"
		entry.ErrorMessage = err.Error()
	}
	if logErr := store.LogScrape(ctx, entry); logErr != nil {
		log.Warn(ctx, "failed to record seed run", logger.Error(logErr))
	}
	if err != nil {
		return report, err
	}

	log.Info(ctx, "historical catalog loaded",
		logger.Int("years", years),
		logger.Int("clubs_added", report.ClubsAdded),
		logger.Int("clubs_skipped", report.ClubsSkipped),
		logger.Int("profiles", report.ProfilesUpserted),
		logger.Int("reviews", report.ReviewsAdded),
		logger.Int("failures", report.Failures),
	)
	return report, nil
}

func load(ctx context.Context, store repository.Store, data []byte, now time.Time, years int, report *Report, log logger.Logger) error {
	f, err := parse(data)
	if err != nil {
		return err
	}

	brandIDs := make(map[string]string)
	ensureBrand := func(name string) (string, error) {
		key := strings.ToLower(name)
		if id, ok := brandIDs[key]; ok {
			return id, nil
		}
		b, err := store.EnsureBrand(ctx, name)
		if err != nil {
			return "", err
		}
		brandIDs[key] = b.ID
		return b.ID, nil
	}
	typeIDs := make(map[string]string)
	ensureType := func(name, description string) (string, error) {
		key := strings.ToLower(name)
		if id, ok := typeIDs[key]; ok {
			return id, nil
		}
		t, err := store.EnsureClubType(ctx, name, description)
		if err != nil {
			return "", err
		}
		typeIDs[key] = t.ID
		return t.ID, nil
	}

	for _, name := range f.Brands {
		if _, err := ensureBrand(name); err != nil {
			return fmt.Errorf("brand %q: %w", name, err)
		}
	}
	for _, t := range f.ClubTypes {
		if _, err := ensureType(t.Name, t.Description); err != nil {
			return fmt.Errorf("club type %q: %w", t.Name, err)
		}
	}

	minYear := now.Year() - years
	added := make(map[string]string)
	for _, c := range f.Clubs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.Year < minYear {
			report.ClubsSkipped++
			continue
		}
		brandID, err := ensureBrand(c.Brand)
		if err != nil {
			return fmt.Errorf("brand %q: %w", c.Brand, err)
		}
		typeID, err := ensureType(c.Type, "")
		if err != nil {
			return fmt.Errorf("club type %q: %w", c.Type, err)
		}

		club := repository.Club{
			BrandID:     brandID,
			ClubTypeID:  typeID,
			ModelName:   c.Model,
			ReleaseYear: c.Year,
			MSRP:        c.MSRP,
			IsCurrent:   c.Year >= now.Year()-currentWindow,
			SkillLevel:  c.SkillLevel,
			Description: c.Description,
		}
		if c.Spec != nil {
			club.Spec = &repository.ClubSpec{
				Loft:          c.Spec.Loft,
				ShaftMaterial: c.Spec.ShaftMaterial,
				HeadMaterial:  c.Spec.HeadMaterial,
				Adjustable:    c.Spec.Adjustable,
			}
		}

		created, err := store.CreateClub(ctx, club)
		switch {
		case errors.Is(err, repository.ErrAlreadyExists):
			report.ClubsSkipped++
		case err != nil:
			report.Failures++
			log.Warn(ctx, "failed to load club",
				logger.String("brand", c.Brand),
				logger.String("model", c.Model),
				logger.Error(err),
			)
		default:
			report.ClubsAdded++
			added[clubKey(c.Brand, c.Model, c.Year)] = created.ID
		}
	}

	profileIDs := make(map[string]string)
	for _, p := range f.Profiles {
		stored, err := store.UpsertProfile(ctx, repository.ReviewerProfile{
			ExternalID:  p.ExternalID,
			SourceName:  p.Source,
			DisplayName: p.DisplayName,
			Profile:     p.playerProfile(),
		})
		if err != nil {
			report.Failures++
			log.Warn(ctx, "failed to load profile", logger.String("external_id", p.ExternalID), logger.Error(err))
			continue
		}
		report.ProfilesUpserted++
		profileIDs[p.ExternalID] = stored.ID()
	}

	for i, r := range f.Reviews {
		clubID, ok := added[clubKey(r.Brand, r.Model, r.Year)]
		if !ok {
			continue
		}
		review := model.Review{
			ItemID:     clubID,
			Rating:     r.Rating,
			Title:      r.Title,
			Text:       r.Text,
			Source:     sourceName,
			ReviewedAt: now.AddDate(0, 0, -i),
		}
		if id, ok := profileIDs[r.Reviewer]; ok {
			review.ProfileRef = model.Some(id)
		}
		if _, err := store.AddReview(ctx, review); err != nil {
			report.Failures++
			log.Warn(ctx, "failed to load review", logger.String("club_id", clubID), logger.Error(err))
			continue
		}
		report.ReviewsAdded++
	}
	return nil
}
