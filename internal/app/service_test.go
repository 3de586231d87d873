package service_test

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	cache "github.com/okian/fairway/internal/adapters/cache"
	repository "github.com/okian/fairway/internal/adapters/repository"
	service "github.com/okian/fairway/internal/app"
	filter "github.com/okian/fairway/internal/domain/filter"
	model "github.com/okian/fairway/internal/domain/model"
	scoring "github.com/okian/fairway/internal/domain/scoring"
	"github.com/okian/fairway/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.InitWith(logger.Options{Output: io.Discard}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fixture struct {
	store  *repository.GormStore
	clubA  string
	clubB  string
	clubC  string
	nearID string
	farID  string
}

func newStore(t *testing.T) *repository.GormStore {
	t.Helper()
	db, err := repository.Open(repository.OpenConfig{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s := repository.NewGormStore(db)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// newFixture builds three drivers: A is loved by golfers like the user, B
// only by distant golfers, C has no reviews.
func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	s := newStore(t)
	f := fixture{store: s}

	driver, err := s.EnsureClubType(ctx, "Driver", "")
	if err != nil {
		t.Fatal(err)
	}
	club := func(brand, name string, price float64) string {
		b, err := s.EnsureBrand(ctx, brand)
		if err != nil {
			t.Fatal(err)
		}
		c, err := s.CreateClub(ctx, repository.Club{
			BrandID: b.ID, ClubTypeID: driver.ID, ModelName: name, ReleaseYear: 2023, MSRP: &price, IsCurrent: true,
		})
		if err != nil {
			t.Fatal(err)
		}
		return c.ID
	}
	f.clubA = club("Ping", "G430 Max", 599.99)
	f.clubB = club("Titleist", "TSR3", 599.99)
	f.clubC = club("Callaway", "Paradym", 579.99)

	profile := func(ext string, h float64) string {
		p, err := s.UpsertProfile(ctx, repository.ReviewerProfile{
			ExternalID: ext, SourceName: "test", Profile: model.NewPlayerProfile("", model.WithHandicap(h)),
		})
		if err != nil {
			t.Fatal(err)
		}
		return p.ID()
	}
	f.nearID = profile("near", 14)
	f.farID = profile("far", 30)

	review := func(club, profileID string, rating float64) {
		if _, err := s.AddReview(ctx, model.Review{ItemID: club, Rating: rating, ProfileRef: model.Some(profileID)}); err != nil {
			t.Fatal(err)
		}
	}
	review(f.clubA, f.nearID, 5)
	review(f.clubA, f.nearID, 5)
	review(f.clubA, f.nearID, 5)
	review(f.clubB, f.farID, 5)
	review(f.clubB, f.farID, 5)
	review(f.clubB, f.nearID, 1)
	return f
}

func itemIDs(recs []service.Recommendation) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ItemID)
	}
	return out
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestService_Recommend(t *testing.T) {
	ctx := context.Background()
	user := model.NewPlayerProfile("me", model.WithHandicap(14))

	Convey("Given a service over a small catalog", t, func() {
		f := newFixture(t)
		svc := service.New(f.store, service.WithFetchBatchSize(1))

		Convey("When recommending drivers", func() {
			recs, err := svc.Recommend(ctx, service.RecommendRequest{
				Profile: user,
				Filter:  repository.CandidateFilter{Category: "driver"},
			})

			Convey("Then clubs loved by similar golfers rank first", func() {
				So(err, ShouldBeNil)
				So(itemIDs(recs), ShouldResemble, []string{f.clubA, f.clubB, f.clubC})
				So(recs[0].PersonalizedScore, ShouldAlmostEqual, 5.0, 1e-9)
				So(recs[0].Confidence, ShouldEqual, model.ConfidenceHigh)
				So(recs[1].PersonalizedScore, ShouldBeLessThan, 2.5)
				So(recs[2].EvidenceCount, ShouldEqual, 0)
				So(recs[2].Confidence, ShouldEqual, model.ConfidenceLow)
				So(recs[0].Club.Brand, ShouldEqual, "Ping")
			})
		})

		Convey("When a filter expression is given", func() {
			recs, err := svc.Recommend(ctx, service.RecommendRequest{
				Profile:    user,
				Expression: `item.brand != "Ping"`,
			})

			Convey("Then only matching clubs are ranked", func() {
				So(err, ShouldBeNil)
				So(itemIDs(recs), ShouldResemble, []string{f.clubB, f.clubC})
			})
		})

		Convey("When the filter expression is invalid", func() {
			_, err := svc.Recommend(ctx, service.RecommendRequest{Profile: user, Expression: "item.brand +"})

			Convey("Then ErrInvalidExpression is returned", func() {
				So(errors.Is(err, filter.ErrInvalidExpression), ShouldBeTrue)
			})
		})

		Convey("When a limit and a higher evidence threshold are requested", func() {
			recs, err := svc.Recommend(ctx, service.RecommendRequest{Profile: user, Limit: 1, MinEvidence: 4})

			Convey("Then the list is truncated and confidence uses the override", func() {
				So(err, ShouldBeNil)
				So(recs, ShouldHaveLength, 1)
				So(recs[0].ItemID, ShouldEqual, f.clubA)
				So(recs[0].Confidence, ShouldEqual, model.ConfidenceLow)
			})
		})

		Convey("When recommending for a stored profile", func() {
			recs, err := svc.Recommend(ctx, service.RecommendRequest{ProfileID: f.nearID})

			Convey("Then the stored attributes are used", func() {
				So(err, ShouldBeNil)
				So(itemIDs(recs), ShouldResemble, []string{f.clubA, f.clubB, f.clubC})
			})
		})

		Convey("When the stored profile does not exist", func() {
			_, err := svc.Recommend(ctx, service.RecommendRequest{ProfileID: "missing"})

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When a deleted reviewer's reviews are ranked", func() {
			So(f.store.DeleteProfile(ctx, f.farID), ShouldBeNil)
			recs, err := svc.Recommend(ctx, service.RecommendRequest{Profile: user})

			Convey("Then the reviews still count as evidence", func() {
				So(err, ShouldBeNil)
				So(recs[1].ItemID, ShouldEqual, f.clubB)
				So(recs[1].EvidenceCount, ShouldEqual, 3)
			})
		})
	})
}

// brokenCatalog serves one candidate whose review carries an impossible rating.
type brokenCatalog struct {
	repository.Store
}

func (brokenCatalog) Candidates(context.Context, repository.CandidateFilter) ([]model.CandidateItem, error) {
	return []model.CandidateItem{{ID: "club-x"}}, nil
}

func (brokenCatalog) ReviewsByItems(context.Context, []string) (map[string][]model.ResolvedReview, error) {
	return map[string][]model.ResolvedReview{
		"club-x": {{Review: model.Review{ID: "r-1", ItemID: "club-x", Rating: 5.01}}},
	}, nil
}

func TestService_RecommendInvalidReviewData(t *testing.T) {
	Convey("Given a catalog holding a malformed rating", t, func() {
		svc := service.New(brokenCatalog{})

		Convey("When recommending", func() {
			_, err := svc.Recommend(context.Background(), service.RecommendRequest{})

			Convey("Then ErrInvalidReviewData is propagated", func() {
				So(errors.Is(err, scoring.ErrInvalidReviewData), ShouldBeTrue)
			})
		})
	})
}

func TestService_SubmitReview(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service that has not started", t, func() {
		f := newFixture(t)
		svc := service.New(f.store)

		Convey("When a review is submitted", func() {
			_, err := svc.SubmitReview(ctx, model.ReviewSubmission{Source: "web", ClubID: f.clubC, Rating: 4})

			Convey("Then ErrNotStarted is returned", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})

	Convey("Given a started service with a review cache", t, func() {
		f := newFixture(t)
		mr := miniredis.RunT(t)
		rc := cache.NewRedisReviewCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
		svc := service.New(f.store,
			service.WithReviewCache(rc),
			service.WithWorkerCount(2),
			service.WithQueueSize(16),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		user := model.NewPlayerProfile("me", model.WithHandicap(14))
		before, err := svc.Recommend(ctx, service.RecommendRequest{Profile: user, Expression: `item.model == "Paradym"`})
		So(err, ShouldBeNil)
		So(before[0].EvidenceCount, ShouldEqual, 0)

		sub := model.ReviewSubmission{
			Source:           "golfwrx",
			ExternalReviewID: "rv-1",
			ClubID:           f.clubC,
			Rating:           4.5,
			Title:            "Great driver",
			Reviewer: &model.ReviewerDetails{
				ExternalID:  "u-77",
				DisplayName: "straighthitter",
				Profile:     model.NewPlayerProfile("", model.WithHandicap(13), model.WithBallFlight(model.Straight)),
			},
		}

		Convey("When a valid review is submitted", func() {
			queued, err := svc.SubmitReview(ctx, sub)
			So(err, ShouldBeNil)
			So(queued.SubmissionID, ShouldNotBeEmpty)

			Convey("Then it is persisted with its reviewer and the cache is refreshed", func() {
				ok := waitFor(func() bool {
					rs, err := f.store.ReviewsForClub(ctx, f.clubC)
					return err == nil && len(rs) == 1
				})
				So(ok, ShouldBeTrue)

				rs, _ := f.store.ReviewsForClub(ctx, f.clubC)
				p, present := rs[0].Profile.Get()
				So(present, ShouldBeTrue)
				h, _ := p.Handicap.Get()
				So(h, ShouldEqual, 13)

				refreshed := waitFor(func() bool {
					after, err := svc.Recommend(ctx, service.RecommendRequest{Profile: user, Expression: `item.model == "Paradym"`})
					return err == nil && len(after) == 1 && after[0].EvidenceCount == 1
				})
				So(refreshed, ShouldBeTrue)
			})

			Convey("Then the same source review is rejected as a duplicate", func() {
				_, err := svc.SubmitReview(ctx, sub)
				So(errors.Is(err, service.ErrDuplicate), ShouldBeTrue)
			})
		})

		Convey("When the rating is out of range", func() {
			bad := sub
			bad.Rating = 5.5
			_, err := svc.SubmitReview(ctx, bad)

			Convey("Then ErrInvalidSubmission wraps ErrInvalidRating", func() {
				So(errors.Is(err, service.ErrInvalidSubmission), ShouldBeTrue)
				So(errors.Is(err, model.ErrInvalidRating), ShouldBeTrue)
			})
		})

		Convey("When the club id is missing", func() {
			bad := sub
			bad.ClubID = " "
			_, err := svc.SubmitReview(ctx, bad)

			Convey("Then ErrInvalidSubmission is returned", func() {
				So(errors.Is(err, service.ErrInvalidSubmission), ShouldBeTrue)
			})
		})

		Convey("When stats are requested", func() {
			st, err := svc.Stats(ctx)

			Convey("Then catalog counts and ingestion state are reported", func() {
				So(err, ShouldBeNil)
				So(st.Started, ShouldBeTrue)
				So(st.Catalog.Clubs, ShouldEqual, 3)
				So(st.QueueCapacity, ShouldEqual, 16)
				So(st.Workers, ShouldEqual, 2)
				So(st.Breaker, ShouldEqual, "closed")
			})
		})
	})
}

// recordingCache remembers every club id it was asked to invalidate.
type recordingCache struct {
	cache.Noop
	mu          sync.Mutex
	invalidated []string
}

func (c *recordingCache) Invalidate(_ context.Context, itemIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, itemIDs...)
	return nil
}

func TestService_IngestInvalidation(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service whose reviewer already reviewed two clubs", t, func() {
		f := newFixture(t)
		rc := &recordingCache{}
		svc := service.New(f.store, service.WithReviewCache(rc))

		Convey("When that reviewer's profile is merged by a review of a third club", func() {
			err := svc.Ingest(ctx, model.ReviewSubmission{
				Source:     "test",
				ClubID:     f.clubC,
				Rating:     4,
				ReceivedAt: time.Now().UTC(),
				Reviewer: &model.ReviewerDetails{
					ExternalID: "near",
					Profile:    model.NewPlayerProfile("", model.WithHandicap(12)),
				},
			})
			So(err, ShouldBeNil)

			Convey("Then every club the reviewer touched is dropped from the cache", func() {
				So(rc.invalidated, ShouldHaveLength, 3)
				So(rc.invalidated, ShouldContain, f.clubA)
				So(rc.invalidated, ShouldContain, f.clubB)
				So(rc.invalidated, ShouldContain, f.clubC)
			})
		})

		Convey("When an anonymous review is ingested", func() {
			err := svc.Ingest(ctx, model.ReviewSubmission{Source: "web", ClubID: f.clubA, Rating: 3, ReceivedAt: time.Now().UTC()})
			So(err, ShouldBeNil)

			Convey("Then only the reviewed club is dropped", func() {
				So(rc.invalidated, ShouldResemble, []string{f.clubA})
			})
		})
	})
}

func TestService_Browse(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service over a small catalog", t, func() {
		f := newFixture(t)
		svc := service.New(f.store)

		Convey("When a club detail is requested", func() {
			d, err := svc.Club(ctx, f.clubB)

			Convey("Then reviews and the average rating are included", func() {
				So(err, ShouldBeNil)
				So(d.ReviewCount, ShouldEqual, 3)
				So(d.AverageRating, ShouldAlmostEqual, 11.0/3.0, 1e-9)
				So(d.Brand, ShouldEqual, "Titleist")
			})
		})

		Convey("When a price is updated", func() {
			So(svc.UpdatePrice(ctx, f.clubA, 449.0, "Golf Galaxy", ""), ShouldBeNil)
			recs, err := svc.Recommend(ctx, service.RecommendRequest{Expression: "has(item.price) && item.price < 500.0"})

			Convey("Then candidates see the new price", func() {
				So(err, ShouldBeNil)
				So(itemIDs(recs), ShouldResemble, []string{f.clubA})
			})
		})

		Convey("When lookups are listed", func() {
			brands, err1 := svc.Brands(ctx)
			types, err2 := svc.ClubTypes(ctx)
			profiles, err3 := svc.Profiles(ctx, repository.ProfileFilter{})
			clubs, err4 := svc.Clubs(ctx, repository.ClubFilter{Brand: "ping"})

			Convey("Then the catalog is returned", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(err3, ShouldBeNil)
				So(err4, ShouldBeNil)
				So(brands, ShouldHaveLength, 3)
				So(types, ShouldHaveLength, 1)
				So(profiles, ShouldHaveLength, 2)
				So(clubs, ShouldHaveLength, 1)
			})
		})
	})
}
