package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	"github.com/okian/fairway/internal/adapters/repository"
	service "github.com/okian/fairway/internal/app"
	"github.com/okian/fairway/internal/domain/model"
)

// CatalogBrowser exposes the club catalog.
type CatalogBrowser interface {
	Clubs(ctx context.Context, f repository.ClubFilter) ([]repository.Club, error)
	Club(ctx context.Context, id string) (service.ClubDetail, error)
	Brands(ctx context.Context) ([]repository.Brand, error)
	ClubTypes(ctx context.Context) ([]repository.ClubType, error)
	UpdatePrice(ctx context.Context, clubID string, price float64, source, url string) error
}

// ClubsHandler handles club catalog requests.
type ClubsHandler struct {
	catalog  CatalogBrowser
	validate *validator.Validate
}

// NewClubsHandler creates a new clubs handler.
func NewClubsHandler(c CatalogBrowser) *ClubsHandler {
	return &ClubsHandler{catalog: c, validate: validator.New(validator.WithRequiredStructEnabled())}
}

type listResponse[T any] struct {
	Count int `json:"count"`
	Items []T `json:"items"`
}

func newListResponse[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Count: len(items), Items: items}
}

// priceRequest mirrors the OpenAPI schema for PUT /clubs/{id}/price.
type priceRequest struct {
	Price  float64 `json:"price" validate:"gt=0"`
	Source string  `json:"source" validate:"required,max=100"`
	URL    string  `json:"url" validate:"omitempty,url,max=500"`
}

// HandleList handles GET /clubs requests.
func (h *ClubsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_clubs"
	q := newQueryReader(r.URL.Query())
	f := repository.ClubFilter{
		Query:       q.string("q"),
		Brand:       q.string("brand"),
		ClubType:    q.string("type"),
		CurrentOnly: q.bool("current"),
		Limit:       q.limit("limit"),
	}
	f.Year, _ = q.int("year")
	f.YearMin, _ = q.int("year_min")
	f.YearMax, _ = q.int("year_max")
	if level, ok := parseParam(q, "skill", model.ParseSkillLevel); ok {
		f.SkillLevel = level.String()
	}
	if len(f.Query) > maxQueryLength {
		q.fail("q", f.Query[:maxQueryLength]+"...", errors.New("too long"))
	}
	if q.err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, q.err))
		return
	}

	clubs, err := h.catalog.Clubs(r.Context(), f)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(clubs))
}

// HandleGet handles GET /clubs/{id} requests.
func (h *ClubsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_club"
	detail, err := h.catalog.Club(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// HandleUpdatePrice handles PUT /clubs/{id}/price requests.
func (h *ClubsHandler) HandleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_price"
	var req priceRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, defaultMaxBody)).Decode(&req); err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	req.Source = strings.TrimSpace(req.Source)
	if err := h.validate.Struct(req); err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}

	id := r.PathValue("id")
	if err := h.catalog.UpdatePrice(r.Context(), id, req.Price, req.Source, req.URL); err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"club_id": id, "price": req.Price, "source": req.Source})
}

// HandleBrands handles GET /brands requests.
func (h *ClubsHandler) HandleBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := h.catalog.Brands(r.Context())
	if err != nil {
		writeError(w, r, Wrap("api.brands", err))
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(brands))
}

// HandleClubTypes handles GET /club-types requests.
func (h *ClubsHandler) HandleClubTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.catalog.ClubTypes(r.Context())
	if err != nil {
		writeError(w, r, Wrap("api.club_types", err))
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(types))
}
