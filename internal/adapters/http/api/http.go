// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"

	"github.com/okian/fairway/internal/adapters/http/swagger"
	"github.com/okian/fairway/pkg/logger"
)

const (
	defaultRateRequests = 100
	defaultRateWindow   = time.Minute
	defaultMaxBody      = 1 << 20
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	Recommender
	CatalogBrowser
	ProfileSearcher
	ReviewSubmitter
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler          *HealthHandler
	statsHandler           *StatsHandler
	recommendationsHandler *RecommendationsHandler
	clubsHandler           *ClubsHandler
	profilesHandler        *ProfilesHandler
	reviewsHandler         *ReviewsHandler

	logger       logger.Logger
	rateRequests int
	rateWindow   time.Duration
	adminUser    string
	adminHash    []byte
	maxBodyBytes int64
	limiter      func(http.Handler) http.Handler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) (*Server, error) {
	s := &Server{
		logger:       logger.Get().Named("api"),
		rateRequests: defaultRateRequests,
		rateWindow:   defaultRateWindow,
		maxBodyBytes: defaultMaxBody,
	}
	for _, opt := range opts {
		opt(s)
	}

	if len(s.adminHash) > 0 {
		if _, err := bcrypt.Cost(s.adminHash); err != nil {
			return nil, WrapKind("api.new_server", ErrInvalidAuth, err)
		}
	} else {
		s.logger.Warn(context.Background(), "admin password hash not configured, catalog routes are unauthenticated")
	}

	s.limiter = s.rateLimit()
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps)
	s.recommendationsHandler = NewRecommendationsHandler(deps)
	s.clubsHandler = NewClubsHandler(deps)
	s.profilesHandler = NewProfilesHandler(deps)
	s.reviewsHandler = NewReviewsHandler(deps, s.maxBodyBytes)
	return s, nil
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.Handle("GET /healthz", s.open("healthz", s.healthHandler.HandleHealth))
	mux.Handle("GET /recommendations", s.protected("recommendations", s.recommendationsHandler.HandleGet))
	mux.Handle("GET /clubs", s.protected("clubs", s.clubsHandler.HandleList))
	mux.Handle("GET /clubs/{id}", s.protected("club", s.clubsHandler.HandleGet))
	mux.Handle("PUT /clubs/{id}/price", s.protected("club_price", s.clubsHandler.HandleUpdatePrice))
	mux.Handle("GET /brands", s.protected("brands", s.clubsHandler.HandleBrands))
	mux.Handle("GET /club-types", s.protected("club_types", s.clubsHandler.HandleClubTypes))
	mux.Handle("GET /profiles", s.protected("profiles", s.profilesHandler.HandleSearch))
	mux.Handle("POST /reviews", s.protected("reviews", s.reviewsHandler.HandlePost))
	mux.Handle("GET /stats", s.protected("stats", s.statsHandler.HandleStats))
	swagger.Register(context.Background(), mux)
}

// Handler returns a mux with every route registered, wrapped with request ids.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	s.Register(ctx, mux)
	return RequestID(mux)
}

// open instruments a route that skips auth and rate limiting.
func (s *Server) open(endpoint string, h http.HandlerFunc) http.Handler {
	return MetricsMiddleware(h, endpoint)
}

// protected instruments a route behind the rate limiter and basic auth.
func (s *Server) protected(endpoint string, h http.HandlerFunc) http.Handler {
	return MetricsMiddleware(s.limiter(s.requireAdmin(h)).ServeHTTP, endpoint)
}

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// writeJSON encodes v before writing the header, so a value that cannot be
// encoded becomes a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.Get().Named("api").Error(context.Background(), "encode response", logger.Error(err))
		status = http.StatusInternalServerError
		body = []byte(`{"code":"internal","message":"Internal Server Error"}`)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// writeError renders err with the status its kind maps to. Server-side
// failures are logged with the request id, client errors are not.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	ctx := r.Context()
	msg := http.StatusText(status)
	if status < http.StatusInternalServerError {
		msg = err.Error()
	} else {
		logger.Get().Named("api").Error(ctx, "request failed",
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Error(err),
		)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg, RequestID: logger.RequestID(ctx)})
}
