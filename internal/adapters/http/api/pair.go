package api

import (
	"context"
	"net/http"

	service "github.com/okian/versus/internal/app"
)

// PairDependencies draws pairs for voters.
type PairDependencies interface {
	NextPair(ctx context.Context, sessionID string) (service.PairView, error)
}

// PairHandler handles pair requests.
type PairHandler struct {
	deps PairDependencies
}

// NewPairHandler creates a new pair handler.
func NewPairHandler(deps PairDependencies) *PairHandler {
	return &PairHandler{deps: deps}
}

type pairResponse struct {
	SessionID string          `json:"session_id"`
	Left      profileResponse `json:"left"`
	Right     profileResponse `json:"right"`
	Fallbacks []string        `json:"fallbacks,omitempty"`
}

// HandleGetPair handles GET /pair?session_id= requests. A missing session
// id starts a new session.
func (h *PairHandler) HandleGetPair(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_pair"
	if r.Method != http.MethodGet {
		writeError(w, NewKind(op, ErrMethodNotAllowed))
		return
	}
	view, err := h.deps.NextPair(r.Context(), r.URL.Query().Get("session_id"))
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, pairResponse{
		SessionID: view.SessionID,
		Left:      toProfileResponse(view.Left),
		Right:     toProfileResponse(view.Right),
		Fallbacks: view.Sample.Fallbacks,
	})
}
