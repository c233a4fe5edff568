package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	service "github.com/okian/versus/internal/app"
	"github.com/okian/versus/internal/domain/model"
	"github.com/okian/versus/internal/domain/rating"
)

const (
	timeLayout          = time.RFC3339
	defaultHistoryLimit = 10
	maxVoteBodyBytes    = 1 << 16
)

// VoteDependencies records votes and reads a session's history.
type VoteDependencies interface {
	Vote(ctx context.Context, req service.VoteRequest) (service.VoteResult, error)
	History(ctx context.Context, sessionID string, limit int) ([]service.HistoryEntry, error)
}

// VotesHandler handles vote submissions and history reads.
type VotesHandler struct {
	deps     VoteDependencies
	maxLimit int
}

// NewVotesHandler creates a new votes handler.
func NewVotesHandler(deps VoteDependencies, maxLimit int) *VotesHandler {
	return &VotesHandler{deps: deps, maxLimit: maxLimit}
}

// voteRequest mirrors the OpenAPI schema for POST /votes.
type voteRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	LeftID    string `json:"left_id" validate:"required"`
	RightID   string `json:"right_id" validate:"required,nefield=LeftID"`
	Outcome   string `json:"outcome" validate:"required"`
	VoteID    string `json:"vote_id,omitempty" validate:"omitempty,max=128"`
}

type voteResultResponse struct {
	Status     string                `json:"status"`
	Duplicate  bool                  `json:"duplicate"`
	Vote       voteResponse          `json:"vote"`
	Left       *ratingChangeResponse `json:"left,omitempty"`
	Right      *ratingChangeResponse `json:"right,omitempty"`
	Prediction *rating.Prediction    `json:"prediction,omitempty"`
}

// HandleVotes routes /votes by method.
func (h *VotesHandler) HandleVotes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.HandlePostVote(w, r)
	case http.MethodGet:
		h.HandleGetVotes(w, r)
	default:
		writeError(w, NewKind("api.votes", ErrMethodNotAllowed))
	}
}

// HandlePostVote handles POST /votes requests.
func (h *VotesHandler) HandlePostVote(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_vote"
	var req voteRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxVoteBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	outcome, err := model.ParseOutcome(req.Outcome)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}

	res, err := h.deps.Vote(r.Context(), service.VoteRequest{
		SessionID: req.SessionID,
		LeftID:    req.LeftID,
		RightID:   req.RightID,
		Outcome:   outcome,
		VoteID:    req.VoteID,
	})
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}

	if res.Duplicate {
		writeJSON(w, http.StatusOK, voteResultResponse{
			Status:    "duplicate",
			Duplicate: true,
			Vote:      voteResponse{VoteID: res.Applied.Vote.ID},
		})
		return
	}
	left, right := toRatingChange(res.Applied.Left), toRatingChange(res.Applied.Right)
	prediction := res.Prediction
	writeJSON(w, http.StatusCreated, voteResultResponse{
		Status:     "applied",
		Vote:       toVoteResponse(res.Applied.Vote),
		Left:       &left,
		Right:      &right,
		Prediction: &prediction,
	})
}

// HandleGetVotes handles GET /votes?session_id=&limit= requests.
func (h *VotesHandler) HandleGetVotes(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_votes"
	q := r.URL.Query()
	sessionID := q.Get("session_id")
	if sessionID == "" {
		writeError(w, NewKind(op, ErrBadRequest))
		return
	}
	limit, err := parseLimit(q.Get("limit"), defaultHistoryLimit, h.maxLimit)
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	entries, err := h.deps.History(r.Context(), sessionID, limit)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	out := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toHistoryEntry(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// parseLimit reads an optional positive limit no larger than maxLimit.
func parseLimit(raw string, def, maxLimit int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, ErrBadRequest
	}
	if n > maxLimit {
		return 0, ErrLimitExceeded
	}
	return n, nil
}
