package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/okian/versus/internal/adapters/repository"
	"github.com/okian/versus/internal/domain/model"
)

const maxProfileBodyBytes = 1 << 16

// ProfileDependencies reads and admits profiles.
type ProfileDependencies interface {
	ListProfiles(ctx context.Context, q repository.ListQuery) (repository.Page, error)
	GetProfile(ctx context.Context, id string) (model.Profile, error)
	CreateProfile(ctx context.Context, p model.Profile) (model.Profile, error)
}

// ProfilesHandler handles profile requests.
type ProfilesHandler struct {
	deps ProfileDependencies
}

// NewProfilesHandler creates a new profiles handler.
func NewProfilesHandler(deps ProfileDependencies) *ProfilesHandler {
	return &ProfilesHandler{deps: deps}
}

// createProfileRequest mirrors the OpenAPI schema for POST /profiles.
// Ratings cannot be set by clients.
type createProfileRequest struct {
	ID             string `json:"id,omitempty" validate:"omitempty,max=128,excludesall=/ "`
	Name           string `json:"name" validate:"required,max=200"`
	Title          string `json:"title,omitempty" validate:"max=200"`
	Company        string `json:"company,omitempty" validate:"max=200"`
	Major          string `json:"major,omitempty" validate:"max=200"`
	GraduationYear int    `json:"graduation_year,omitempty" validate:"omitempty,min=1900,max=2200"`
	IsStudent      bool   `json:"is_student,omitempty"`
	Location       string `json:"location,omitempty" validate:"max=200"`
	LinkedInURL    string `json:"linkedin_url,omitempty" validate:"omitempty,url"`
}

// HandleProfiles routes /profiles by method.
func (h *ProfilesHandler) HandleProfiles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.HandleListProfiles(w, r)
	case http.MethodPost:
		h.HandleCreateProfile(w, r)
	default:
		writeError(w, NewKind("api.profiles", ErrMethodNotAllowed))
	}
}

// HandleListProfiles handles GET /profiles?query&filter&sort&page&limit.
func (h *ProfilesHandler) HandleListProfiles(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_profiles"
	q := r.URL.Query()
	page, err := optionalInt(q.Get("page"))
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	limit, err := optionalInt(q.Get("limit"))
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	sort := q.Get("sort")
	switch sort {
	case "", "elo", repository.SortRating:
		sort = repository.SortRating
	case repository.SortName, repository.SortGraduation:
	default:
		writeError(w, NewKind(op, ErrBadRequest))
		return
	}

	result, err := h.deps.ListProfiles(r.Context(), repository.ListQuery{
		Query:  q.Get("query"),
		Filter: q.Get("filter"),
		Sort:   sort,
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(result))
}

// HandleGetProfile handles GET /profiles/{id}.
func (h *ProfilesHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_profile"
	if r.Method != http.MethodGet {
		writeError(w, NewKind(op, ErrMethodNotAllowed))
		return
	}
	id, ok := pathID(r.URL.Path, "/profiles/")
	if !ok {
		writeError(w, NewKind(op, ErrBadRequest))
		return
	}
	p, err := h.deps.GetProfile(r.Context(), id)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

// HandleCreateProfile handles POST /profiles.
func (h *ProfilesHandler) HandleCreateProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_profile"
	var req createProfileRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxProfileBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	p, err := h.deps.CreateProfile(r.Context(), model.Profile{
		ID:             req.ID,
		Name:           req.Name,
		Title:          req.Title,
		Company:        req.Company,
		Major:          req.Major,
		GraduationYear: req.GraduationYear,
		IsStudent:      req.IsStudent,
		Location:       req.Location,
		LinkedInURL:    req.LinkedInURL,
	})
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, toProfileResponse(p))
}

func optionalInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, ErrBadRequest
	}
	return n, nil
}
