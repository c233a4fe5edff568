// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/okian/versus/internal/adapters/repository"
	service "github.com/okian/versus/internal/app"
	"github.com/okian/versus/internal/domain/model"
	"github.com/okian/versus/internal/domain/types"
	"github.com/okian/versus/pkg/metrics"
)

// DefaultMaxLeaderboardLimit caps GET /leaderboard when no limit is configured.
const DefaultMaxLeaderboardLimit = 100

// Dependencies required by HTTP handlers.
type Dependencies interface {
	PairDependencies
	VoteDependencies
	LeaderboardDependencies
	RankDependencies
	ProfileDependencies
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	pairHandler        *PairHandler
	votesHandler       *VotesHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	profilesHandler    *ProfilesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLeaderboardLimit int) *Server {
	if maxLeaderboardLimit < 1 {
		maxLeaderboardLimit = DefaultMaxLeaderboardLimit
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		pairHandler:        NewPairHandler(deps),
		votesHandler:       NewVotesHandler(deps, maxLeaderboardLimit),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLeaderboardLimit),
		rankHandler:        NewRankHandler(deps),
		profilesHandler:    NewProfilesHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/pair", MetricsMiddleware(s.pairHandler.HandleGetPair, "pair"))
	mux.HandleFunc("/votes", MetricsMiddleware(s.votesHandler.HandleVotes, "votes"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	mux.HandleFunc("/profiles", MetricsMiddleware(s.profilesHandler.HandleProfiles, "profiles"))
	mux.HandleFunc("/profiles/", MetricsMiddleware(s.profilesHandler.HandleGetProfile, "profile"))
}

var validate = validator.New(validator.WithRequiredStructEnabled())

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type profileResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Title          string  `json:"title,omitempty"`
	Company        string  `json:"company,omitempty"`
	Major          string  `json:"major,omitempty"`
	GraduationYear int     `json:"graduation_year,omitempty"`
	IsStudent      bool    `json:"is_student"`
	Location       string  `json:"location,omitempty"`
	LinkedInURL    string  `json:"linkedin_url,omitempty"`
	Rating         float64 `json:"rating"`
	Enriched       bool    `json:"enriched"`
}

func toProfileResponse(p model.Profile) profileResponse {
	return profileResponse{
		ID:             p.ID,
		Name:           p.Name,
		Title:          p.Title,
		Company:        p.Company,
		Major:          p.Major,
		GraduationYear: p.GraduationYear,
		IsStudent:      p.IsStudent,
		Location:       p.Location,
		LinkedInURL:    p.LinkedInURL,
		Rating:         p.Rating,
		Enriched:       p.Enriched,
	}
}

type pageResponse struct {
	Profiles   []profileResponse `json:"profiles"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	TotalPages int               `json:"total_pages"`
}

func toPageResponse(p repository.Page) pageResponse {
	out := pageResponse{
		Profiles:   make([]profileResponse, 0, len(p.Profiles)),
		Total:      p.Total,
		Page:       p.Page,
		TotalPages: p.TotalPages,
	}
	for _, profile := range p.Profiles {
		out.Profiles = append(out.Profiles, toProfileResponse(profile))
	}
	return out
}

type ratingChangeResponse struct {
	ProfileID string  `json:"profile_id"`
	Before    float64 `json:"before"`
	After     float64 `json:"after"`
	Delta     float64 `json:"delta"`
}

func toRatingChange(c model.RatingChange) ratingChangeResponse {
	return ratingChangeResponse{ProfileID: c.ProfileID, Before: c.Before, After: c.After, Delta: c.Delta()}
}

type voteResponse struct {
	VoteID    string `json:"vote_id"`
	SessionID string `json:"session_id,omitempty"`
	LeftID    string `json:"left_id,omitempty"`
	RightID   string `json:"right_id,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

func toVoteResponse(v model.Vote) voteResponse {
	out := voteResponse{
		VoteID:    v.ID,
		SessionID: v.SessionID,
		LeftID:    v.LeftID,
		RightID:   v.RightID,
		Outcome:   string(v.Outcome),
	}
	if !v.CreatedAt.IsZero() {
		out.CreatedAt = v.CreatedAt.UTC().Format(timeLayout)
	}
	return out
}

type historyEntryResponse struct {
	voteResponse
	LeftName  string               `json:"left_name"`
	RightName string               `json:"right_name"`
	Left      ratingChangeResponse `json:"left"`
	Right     ratingChangeResponse `json:"right"`
}

func toHistoryEntry(e service.HistoryEntry) historyEntryResponse {
	return historyEntryResponse{
		voteResponse: toVoteResponse(e.Vote),
		LeftName:     e.LeftName,
		RightName:    e.RightName,
		Left:         toRatingChange(e.Left),
		Right:        toRatingChange(e.Right),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError classifies err and writes the matching status and code.
func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	metrics.RecordErrorByComponent("api", code)
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
