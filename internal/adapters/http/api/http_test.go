package api_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/bcrypt"

	"github.com/okian/fairway/internal/adapters/http/api"
	"github.com/okian/fairway/internal/adapters/repository"
	service "github.com/okian/fairway/internal/app"
	"github.com/okian/fairway/internal/domain/filter"
	"github.com/okian/fairway/internal/domain/model"
	"github.com/okian/fairway/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.InitWith(logger.Options{Output: io.Discard}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// mockDependencies records the last request of each kind and returns canned results.
type mockDependencies struct {
	mu sync.Mutex

	recs      []service.Recommendation
	recErr    error
	recCalls  int
	lastRec   service.RecommendRequest
	clubs     []repository.Club
	lastClubs repository.ClubFilter
	detail    service.ClubDetail
	detailErr error
	priceErr  error
	lastPrice struct {
		id, source, url string
		price           float64
	}
	profiles     []repository.ReviewerProfile
	lastProfiles repository.ProfileFilter
	submitErr    error
	submitted    []model.ReviewSubmission
	stats        service.Stats
}

func (m *mockDependencies) Recommend(_ context.Context, req service.RecommendRequest) ([]service.Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recCalls++
	m.lastRec = req
	return m.recs, m.recErr
}

func (m *mockDependencies) Clubs(_ context.Context, f repository.ClubFilter) ([]repository.Club, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastClubs = f
	return m.clubs, nil
}

func (m *mockDependencies) Club(_ context.Context, id string) (service.ClubDetail, error) {
	if m.detailErr != nil {
		return service.ClubDetail{}, fmt.Errorf("club %s: %w", id, m.detailErr)
	}
	return m.detail, nil
}

func (m *mockDependencies) Brands(context.Context) ([]repository.Brand, error) {
	return []repository.Brand{{ID: "b1", Name: "Ping"}, {ID: "b2", Name: "Titleist"}}, nil
}

func (m *mockDependencies) ClubTypes(context.Context) ([]repository.ClubType, error) {
	return nil, nil
}

func (m *mockDependencies) UpdatePrice(_ context.Context, id string, price float64, source, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPrice.id, m.lastPrice.price, m.lastPrice.source, m.lastPrice.url = id, price, source, url
	return m.priceErr
}

func (m *mockDependencies) Profiles(_ context.Context, f repository.ProfileFilter) ([]repository.ReviewerProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastProfiles = f
	return m.profiles, nil
}

func (m *mockDependencies) SubmitReview(_ context.Context, sub model.ReviewSubmission) (model.ReviewSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitErr != nil {
		return sub, m.submitErr
	}
	sub.SubmissionID = "sub-1"
	m.submitted = append(m.submitted, sub)
	return sub, nil
}

func (m *mockDependencies) Stats(context.Context) (service.Stats, error) {
	return m.stats, nil
}

func newHandler(deps api.Dependencies, opts ...api.Option) http.Handler {
	server, err := api.NewServer(deps, opts...)
	So(err, ShouldBeNil)
	return server.Handler(context.Background())
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestRecommendations(t *testing.T) {
	Convey("Given an API server with two ranked clubs", t, func() {
		deps := &mockDependencies{recs: []service.Recommendation{
			{
				RecommendationResult: model.RecommendationResult{ItemID: "a", PersonalizedScore: 4.8, EvidenceCount: 5, Confidence: model.ConfidenceHigh},
				Club:                 model.CandidateItem{ID: "a", Brand: "Ping", Model: "G430 Max", Category: "Driver", Year: 2023},
			},
			{
				RecommendationResult: model.RecommendationResult{ItemID: "b", PersonalizedScore: 3.1, EvidenceCount: 1, Confidence: model.ConfidenceLow},
				Club:                 model.CandidateItem{ID: "b", Brand: "Titleist", Model: "TSR2", Category: "Driver", Year: 2023},
			},
		}}
		h := newHandler(deps)

		Convey("When the golfer describes themselves in the query", func() {
			w := do(h, "GET", "/recommendations?handicap=14.5&swing_speed=95&skill=intermediate&ball_flight=Slight%20Fade"+
				"&budget=500-1000&category=Driver&price_max=600&year_min=2020&min_evidence=2&limit=5"+
				"&filter=item.brand%20!%3D%20%22Cobra%22", "")

			Convey("Then the query becomes a profile and a candidate filter", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				req := deps.lastRec
				hc, _ := req.Profile.Handicap.Get()
				So(hc, ShouldEqual, 14.5)
				s, _ := req.Profile.SkillLevel.Get()
				So(s, ShouldEqual, model.Intermediate)
				f, _ := req.Profile.BallFlight.Get()
				So(f, ShouldEqual, model.Fade)
				So(req.Profile.YearsPlaying.Present(), ShouldBeFalse)
				So(req.Filter.Category, ShouldEqual, "Driver")
				So(*req.Filter.PriceMax, ShouldEqual, 600.0)
				So(req.Filter.PriceMin, ShouldBeNil)
				So(req.Filter.YearMin, ShouldEqual, 2020)
				So(req.MinEvidence, ShouldEqual, 2)
				So(req.Limit, ShouldEqual, 5)
				So(req.Expression, ShouldEqual, `item.brand != "Cobra"`)
			})

			Convey("And results carry a rank and a low-confidence label", func() {
				body := decode(w)
				So(body["count"], ShouldEqual, 2.0)
				results := body["results"].([]any)
				first := results[0].(map[string]any)
				second := results[1].(map[string]any)
				So(first["rank"], ShouldEqual, 1.0)
				So(first["item_id"], ShouldEqual, "a")
				So(first, ShouldNotContainKey, "confidence_label")
				So(first["club"].(map[string]any)["model"], ShouldEqual, "G430 Max")
				So(second["rank"], ShouldEqual, 2.0)
				So(second["confidence_label"], ShouldEqual, api.LowConfidenceLabel)
			})
		})

		Convey("When a numeric parameter is malformed", func() {
			w := do(h, "GET", "/recommendations?handicap=low", "")

			Convey("Then the request is rejected before ranking", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["code"], ShouldEqual, "bad_request")
				So(deps.recCalls, ShouldEqual, 0)
			})
		})

		Convey("When a numeric parameter is not finite", func() {
			for _, target := range []string{
				"/recommendations?handicap=NaN",
				"/recommendations?handicap=Inf",
				"/recommendations?price_max=-Inf",
			} {
				w := do(h, "GET", target, "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["message"], ShouldContainSubstring, "finite")
			}
			So(deps.recCalls, ShouldEqual, 0)
		})

		Convey("When a result cannot be encoded", func() {
			deps.recs = []service.Recommendation{{
				RecommendationResult: model.RecommendationResult{ItemID: "a", PersonalizedScore: math.NaN()},
			}}
			w := do(h, "GET", "/recommendations", "")

			Convey("Then the client gets a 500 rather than an empty body", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(decode(w)["code"], ShouldEqual, "internal")
			})
		})

		Convey("When an enum parameter is unknown", func() {
			w := do(h, "GET", "/recommendations?skill=expert", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["message"], ShouldContainSubstring, "skill")
		})

		Convey("When the limit is out of range", func() {
			w := do(h, "GET", "/recommendations?limit=0", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the filter expression does not compile", func() {
			deps.recErr = fmt.Errorf("%w: bad", filter.ErrInvalidExpression)
			w := do(h, "GET", "/recommendations?filter=item.", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["code"], ShouldEqual, "invalid_filter")
		})

		Convey("When the stored profile does not exist", func() {
			deps.recErr = fmt.Errorf("load profile: %w", repository.ErrNotFound)
			w := do(h, "GET", "/recommendations?profile_id=ghost", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(deps.lastRec.ProfileID, ShouldEqual, "ghost")
		})

		Convey("When the store circuit is open", func() {
			deps.recErr = fmt.Errorf("candidates: %w", repository.ErrUnavailable)
			w := do(h, "GET", "/recommendations", "")

			Convey("Then the cause is hidden from the client", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(decode(w)["message"], ShouldEqual, http.StatusText(http.StatusServiceUnavailable))
			})
		})
	})
}

func TestClubs(t *testing.T) {
	Convey("Given an API server over a club catalog", t, func() {
		deps := &mockDependencies{
			clubs:  []repository.Club{{ID: "c1", Brand: "Ping", ClubType: "Driver", ModelName: "G430 Max", ReleaseYear: 2023}},
			detail: service.ClubDetail{Club: repository.Club{ID: "c1", ModelName: "G430 Max"}, ReviewCount: 2, AverageRating: 4.5},
		}
		h := newHandler(deps)

		Convey("When listing clubs with filters", func() {
			w := do(h, "GET", "/clubs?brand=Ping&type=Driver&year=2023&skill=beginner&current=true&limit=10", "")

			Convey("Then the filter reaches the catalog normalized", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastClubs, ShouldResemble, repository.ClubFilter{
					Brand: "Ping", ClubType: "Driver", Year: 2023, SkillLevel: "Beginner", CurrentOnly: true, Limit: 10,
				})
				body := decode(w)
				So(body["count"], ShouldEqual, 1.0)
			})
		})

		Convey("When searching by free text", func() {
			w := do(h, "GET", "/clubs?q=+ping%20g430+", "")

			Convey("Then the trimmed query reaches the catalog", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastClubs.Query, ShouldEqual, "ping g430")
			})
		})

		Convey("When the search text is too long", func() {
			w := do(h, "GET", "/clubs?q="+strings.Repeat("a", 101), "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["message"], ShouldContainSubstring, "too long")
		})

		Convey("When current is not a boolean", func() {
			w := do(h, "GET", "/clubs?current=maybe", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When fetching one club", func() {
			w := do(h, "GET", "/clubs/c1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["model_name"], ShouldEqual, "G430 Max")
			So(body["average_rating"], ShouldEqual, 4.5)
		})

		Convey("When fetching an unknown club", func() {
			deps.detailErr = repository.ErrNotFound
			w := do(h, "GET", "/clubs/nope", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decode(w)["code"], ShouldEqual, "not_found")
		})

		Convey("When updating a price", func() {
			w := do(h, "PUT", "/clubs/c1/price", `{"price": 449.99, "source": " Golf Galaxy ", "url": "https://example.com/g430"}`)

			Convey("Then the catalog receives the trimmed source", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastPrice.id, ShouldEqual, "c1")
				So(deps.lastPrice.price, ShouldEqual, 449.99)
				So(deps.lastPrice.source, ShouldEqual, "Golf Galaxy")
			})
		})

		Convey("When the price payload is invalid", func() {
			for _, body := range []string{
				`{"price": 0, "source": "Golf Galaxy"}`,
				`{"price": 100}`,
				`{"price": 100, "source": "x", "url": "not a url"}`,
				`{"price": "cheap"`,
			} {
				w := do(h, "PUT", "/clubs/c1/price", body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
			So(deps.lastPrice.id, ShouldEqual, "")
		})

		Convey("When the club is deleted before its price update", func() {
			deps.priceErr = repository.ErrNotFound
			w := do(h, "PUT", "/clubs/c9/price", `{"price": 100, "source": "Golf Galaxy"}`)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When listing lookups", func() {
			brands := decode(do(h, "GET", "/brands", ""))
			So(brands["count"], ShouldEqual, 2.0)

			types := decode(do(h, "GET", "/club-types", ""))
			So(types["count"], ShouldEqual, 0.0)
			So(types["items"], ShouldResemble, []any{})
		})

		Convey("When using a method the route does not serve", func() {
			w := do(h, "DELETE", "/clubs/c1", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestProfiles(t *testing.T) {
	Convey("Given an API server over reviewer profiles", t, func() {
		deps := &mockDependencies{}
		h := newHandler(deps)

		Convey("When searching by handicap and skill", func() {
			w := do(h, "GET", "/profiles?handicap_min=5&handicap_max=15&skill=ADVANCED&swing_speed_min=90", "")

			Convey("Then the bounds reach the store", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				f := deps.lastProfiles
				So(*f.HandicapMin, ShouldEqual, 5.0)
				So(*f.HandicapMax, ShouldEqual, 15.0)
				So(*f.SwingSpeedMin, ShouldEqual, 90)
				So(f.SwingSpeedMax, ShouldBeNil)
				So(f.SkillLevel, ShouldEqual, "Advanced")
				So(decode(w)["items"], ShouldResemble, []any{})
			})
		})

		Convey("When a bound is malformed", func() {
			w := do(h, "GET", "/profiles?swing_speed_max=fast", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestReviews(t *testing.T) {
	Convey("Given an API server accepting reviews", t, func() {
		deps := &mockDependencies{}
		h := newHandler(deps)
		payload := `{
			"source": "GolfWRX",
			"external_review_id": "r-42",
			"club_id": "c1",
			"rating": 4.5,
			"title": "Long and straight",
			"reviewed_at": "2024-05-01T10:00:00Z",
			"reviewer": {
				"external_id": "golfer-7",
				"display_name": "Sam",
				"profile": {"handicap": 12, "skill_level": "Intermediate", "ball_flight": "Draw"}
			}
		}`

		Convey("When a valid review is posted", func() {
			w := do(h, "POST", "/reviews", payload)

			Convey("Then it is accepted for ingestion", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				body := decode(w)
				So(body["status"], ShouldEqual, "accepted")
				So(body["submission_id"], ShouldEqual, "sub-1")

				So(deps.submitted, ShouldHaveLength, 1)
				sub := deps.submitted[0]
				So(sub.Rating, ShouldEqual, 4.5)
				So(sub.ReviewedAt, ShouldEqual, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
				So(sub.Reviewer.ExternalID, ShouldEqual, "golfer-7")
				hc, _ := sub.Reviewer.Profile.Handicap.Get()
				So(hc, ShouldEqual, 12.0)
				So(sub.Reviewer.Profile.SwingSpeedMph.Present(), ShouldBeFalse)
			})
		})

		Convey("When the same review was already accepted", func() {
			deps.submitErr = service.ErrDuplicate
			w := do(h, "POST", "/reviews", payload)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["duplicate"], ShouldBeTrue)
		})

		Convey("When the ingestion queue is full", func() {
			deps.submitErr = service.ErrBackpressure
			w := do(h, "POST", "/reviews", payload)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(decode(w)["code"], ShouldEqual, "backpressure")
		})

		Convey("When the service rejects the submission", func() {
			deps.submitErr = fmt.Errorf("%w: %w", service.ErrInvalidSubmission, model.ErrInvalidRating)
			w := do(h, "POST", "/reviews", payload)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When ingestion has not started", func() {
			deps.submitErr = service.ErrNotStarted
			w := do(h, "POST", "/reviews", payload)
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When the rating is missing", func() {
			w := do(h, "POST", "/reviews", `{"source": "GolfWRX", "club_id": "c1"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["message"], ShouldContainSubstring, "missing rating")
			So(deps.submitted, ShouldBeEmpty)
		})

		Convey("When the body is not JSON", func() {
			w := do(h, "POST", "/reviews", `rating=5`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the reviewer profile carries an unknown skill", func() {
			w := do(h, "POST", "/reviews", `{"source": "x", "club_id": "c1", "rating": 3, "reviewer": {"profile": {"skill_level": "Legend"}}}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestStatsAndHealth(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := &mockDependencies{stats: service.Stats{
			Catalog: repository.Counts{
				Clubs:   33,
				Reviews: 27,
				ByYear:  []repository.YearCount{{Year: 2024, Clubs: 5}, {Year: 2023, Clubs: 9}},
				ByType:  []repository.TypeCount{{ClubType: "Driver", Clubs: 12}, {ClubType: "Wedge", Clubs: 0}},
			},
			Started: true,
			Workers: 4,
			Breaker: "closed",
		}}
		h := newHandler(deps)

		Convey("When requesting stats", func() {
			w := do(h, "GET", "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			catalog := body["catalog"].(map[string]any)
			So(catalog["clubs"], ShouldEqual, 33.0)
			byYear := catalog["by_year"].([]any)
			So(byYear, ShouldHaveLength, 2)
			So(byYear[0].(map[string]any)["year"], ShouldEqual, 2024.0)
			So(byYear[0].(map[string]any)["clubs"], ShouldEqual, 5.0)
			byType := catalog["by_type"].([]any)
			So(byType[1].(map[string]any)["club_type"], ShouldEqual, "Wedge")
			So(byType[1].(map[string]any)["clubs"], ShouldEqual, 0.0)
			So(body["catalog_breaker"], ShouldEqual, "closed")
		})

		Convey("When requesting health", func() {
			w := do(h, "GET", "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("When requesting the OpenAPI document", func() {
			w := do(h, "GET", "/openapi.yaml", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "/recommendations")
		})
	})
}

func TestMiddleware(t *testing.T) {
	Convey("Given request id propagation", t, func() {
		h := newHandler(&mockDependencies{})

		Convey("When the caller sends an id", func() {
			req := httptest.NewRequest("GET", "/clubs/x", http.NoBody)
			req.Header.Set(api.RequestIDHeader, "req-123")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			So(w.Header().Get(api.RequestIDHeader), ShouldEqual, "req-123")
		})

		Convey("When the caller sends none", func() {
			w := do(h, "GET", "/brands", "")
			So(w.Header().Get(api.RequestIDHeader), ShouldHaveLength, 36)
		})

		Convey("When an error response is written", func() {
			deps := &mockDependencies{detailErr: repository.ErrNotFound}
			h := newHandler(deps)
			req := httptest.NewRequest("GET", "/clubs/x", http.NoBody)
			req.Header.Set(api.RequestIDHeader, "req-404")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			So(decode(w)["request_id"], ShouldEqual, "req-404")
		})
	})

	Convey("Given admin basic auth", t, func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
		So(err, ShouldBeNil)
		h := newHandler(&mockDependencies{}, api.WithBasicAuth("admin", string(hash)))

		Convey("When no credentials are sent", func() {
			w := do(h, "GET", "/brands", "")
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
			So(w.Header().Get("WWW-Authenticate"), ShouldContainSubstring, "Basic")
		})

		Convey("When the password is wrong", func() {
			req := httptest.NewRequest("GET", "/brands", http.NoBody)
			req.SetBasicAuth("admin", "guess")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When the credentials match", func() {
			req := httptest.NewRequest("GET", "/brands", http.NoBody)
			req.SetBasicAuth("admin", "s3cret-pass")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("When scraping metrics", func() {
			w := do(h, "GET", "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})
	})

	Convey("Given a malformed admin hash", t, func() {
		_, err := api.NewServer(&mockDependencies{}, api.WithBasicAuth("admin", "plaintext"))

		Convey("Then the server refuses to start", func() {
			So(err, ShouldNotBeNil)
			So(errors.Is(err, api.ErrInvalidAuth), ShouldBeTrue)
		})
	})

	Convey("Given a per-IP rate limit of two requests", t, func() {
		h := newHandler(&mockDependencies{}, api.WithRateLimit(2, time.Minute))

		Convey("When a client sends a third request", func() {
			So(do(h, "GET", "/brands", "").Code, ShouldEqual, http.StatusOK)
			So(do(h, "GET", "/club-types", "").Code, ShouldEqual, http.StatusOK)
			w := do(h, "GET", "/brands", "")

			Convey("Then it is throttled across routes", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(decode(w)["code"], ShouldEqual, "rate_limited")
			})

			Convey("And metrics stay reachable", func() {
				So(do(h, "GET", "/healthz", "").Code, ShouldEqual, http.StatusOK)
			})
		})
	})
}
