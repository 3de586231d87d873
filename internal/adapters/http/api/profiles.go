package api

import (
	"context"
	"net/http"

	"github.com/okian/fairway/internal/adapters/repository"
	"github.com/okian/fairway/internal/domain/model"
)

// ProfileSearcher searches reviewer profiles.
type ProfileSearcher interface {
	Profiles(ctx context.Context, f repository.ProfileFilter) ([]repository.ReviewerProfile, error)
}

// ProfilesHandler handles reviewer profile requests.
type ProfilesHandler struct {
	profiles ProfileSearcher
}

// NewProfilesHandler creates a new profiles handler.
func NewProfilesHandler(p ProfileSearcher) *ProfilesHandler {
	return &ProfilesHandler{profiles: p}
}

// HandleSearch handles GET /profiles requests.
func (h *ProfilesHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	const op = "api.search_profiles"
	q := newQueryReader(r.URL.Query())
	f := repository.ProfileFilter{
		HandicapMin:   q.floatPtr("handicap_min"),
		HandicapMax:   q.floatPtr("handicap_max"),
		SwingSpeedMin: q.intPtr("swing_speed_min"),
		SwingSpeedMax: q.intPtr("swing_speed_max"),
		Limit:         q.limit("limit"),
	}
	if level, ok := parseParam(q, "skill", model.ParseSkillLevel); ok {
		f.SkillLevel = level.String()
	}
	if q.err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, q.err))
		return
	}

	profiles, err := h.profiles.Profiles(r.Context(), f)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(profiles))
}
