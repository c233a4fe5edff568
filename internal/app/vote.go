package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/okian/versus/internal/adapters/repository"
	"github.com/okian/versus/internal/domain/model"
	"github.com/okian/versus/internal/domain/rating"
	"github.com/okian/versus/internal/domain/session"
	"github.com/okian/versus/pkg/logger"
	"github.com/okian/versus/pkg/metrics"
)

// VoteRequest is one judgment on the pair a session was shown.
type VoteRequest struct {
	SessionID string
	LeftID    string
	RightID   string
	Outcome   model.Outcome
	// VoteID makes retries idempotent. Generated when empty.
	VoteID string
}

// VoteResult reports the applied vote. Duplicate results carry only the
// vote id and leave every rating as it was.
type VoteResult struct {
	Applied    model.AppliedVote
	Prediction rating.Prediction
	Duplicate  bool
}

// HistoryEntry is a stored vote with the profile names resolved.
type HistoryEntry struct {
	model.AppliedVote
	LeftName  string
	RightName string
}

func voteKey(id string) string { return "vote:" + id }

// Vote applies a judgment on the pair currently shown to the session. A
// vote for any other pair fails with a *session.PairMismatchError and
// changes no rating. Concurrent submissions of one vote id share a single
// attempt; only the first caller sees the applied vote.
func (s *Service) Vote(ctx context.Context, req VoteRequest) (VoteResult, error) {
	if err := s.running(); err != nil {
		return VoteResult{}, err
	}
	if !req.Outcome.Valid() {
		metrics.RecordVoteRejected("invalid_outcome")
		_, err := model.ParseOutcome(string(req.Outcome))
		return VoteResult{}, err
	}

	if req.VoteID == "" {
		req.VoteID = uuid.NewString()
		s.votes.SeenAndRecord(ctx, voteKey(req.VoteID))
		result, err := s.applyVote(ctx, req)
		if err != nil {
			s.votes.Unrecord(ctx, voteKey(req.VoteID))
			return VoteResult{}, err
		}
		return result, nil
	}

	leader := false
	v, err, _ := s.inflight.Do(voteKey(req.VoteID), func() (any, error) {
		leader = true
		return s.recordVote(ctx, req)
	})
	if err != nil {
		return VoteResult{}, err
	}
	result := v.(VoteResult)
	if !leader && !result.Duplicate {
		metrics.RecordVoteDuplicate()
		return duplicateVote(req.VoteID), nil
	}
	return result, nil
}

func duplicateVote(id string) VoteResult {
	return VoteResult{Applied: model.AppliedVote{Vote: model.Vote{ID: id}}, Duplicate: true}
}

// recordVote applies a vote whose id came from the client. Ids that already
// reached the store are acknowledged as duplicates even after the session
// moved on or the in-memory record was evicted.
func (s *Service) recordVote(ctx context.Context, req VoteRequest) (VoteResult, error) {
	key := voteKey(req.VoteID)
	if s.votes.SeenAndRecord(ctx, key) {
		metrics.RecordVoteDuplicate()
		return duplicateVote(req.VoteID), nil
	}

	result, err := s.applyVote(ctx, req)
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		applied, lookupErr := s.store.HasVote(ctx, req.VoteID)
		if lookupErr != nil || !applied {
			s.votes.Unrecord(ctx, key)
			return VoteResult{}, err
		}
	}
	metrics.RecordVoteDuplicate()
	return duplicateVote(req.VoteID), nil
}

func (s *Service) applyVote(ctx context.Context, req VoteRequest) (VoteResult, error) {
	sess, ok := s.sessions.Get(req.SessionID)
	if !ok {
		metrics.RecordVoteRejected("pair_mismatch")
		return VoteResult{}, &session.PairMismatchError{Submitted: []string{req.LeftID, req.RightID}}
	}
	if err := sess.Submit(req.LeftID, req.RightID); err != nil {
		reason := "invalid_transition"
		if errors.Is(err, session.ErrPairMismatch) {
			reason = "pair_mismatch"
		}
		metrics.RecordVoteRejected(reason)
		s.logger.Debug(ctx, "vote rejected",
			logger.String("session_id", req.SessionID),
			logger.String("reason", reason),
		)
		return VoteResult{}, err
	}

	vote := model.Vote{
		ID:        req.VoteID,
		SessionID: sess.ID(),
		LeftID:    req.LeftID,
		RightID:   req.RightID,
		Outcome:   req.Outcome,
		CreatedAt: s.clock(),
	}
	var prediction rating.Prediction
	rate := func(left, right float64) (float64, float64, error) {
		res, err := s.engine.ApplyVoteOutcome(left, right, vote.Outcome)
		if err != nil {
			return left, right, err
		}
		prediction = rating.ScorePredictionAccuracy(vote.Outcome, left, right)
		return res.Left, res.Right, nil
	}

	start := time.Now()
	applied, err := s.store.InsertVote(ctx, vote, rate)
	if err != nil {
		sess.Abort()
		s.logger.Warn(ctx, "vote not applied",
			logger.String("vote_id", vote.ID),
			logger.String("session_id", vote.SessionID),
			logger.Error(err),
		)
		return VoteResult{}, err
	}
	if err := sess.Rated(); err != nil {
		return VoteResult{}, err
	}
	if err := sess.Complete(); err != nil {
		return VoteResult{}, err
	}

	metrics.RecordVoteApplyLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordVote(string(vote.Outcome))
	metrics.RecordRatingDelta(applied.Left.Delta())
	metrics.RecordRatingDelta(applied.Right.Delta())
	metrics.RecordPrediction(prediction.Correct)
	s.logger.Info(ctx, "vote applied",
		logger.String("vote_id", applied.Vote.ID),
		logger.String("session_id", applied.Vote.SessionID),
		logger.String("outcome", string(applied.Vote.Outcome)),
		logger.Float64("left_delta", applied.Left.Delta()),
		logger.Float64("right_delta", applied.Right.Delta()),
	)
	return VoteResult{Applied: applied, Prediction: prediction}, nil
}

// History returns the latest votes of a session, most recent first.
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]HistoryEntry, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > s.maxLeaderboardLimit {
		limit = s.maxLeaderboardLimit
	}
	votes, err := s.store.RecentVotes(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string)
	name := func(id string) string {
		if n, ok := names[id]; ok {
			return n
		}
		n := id
		if p, err := s.store.Get(ctx, id); err == nil && p.Name != "" {
			n = p.Name
		}
		names[id] = n
		return n
	}

	entries := make([]HistoryEntry, 0, len(votes))
	for _, v := range votes {
		entries = append(entries, HistoryEntry{
			AppliedVote: v,
			LeftName:    name(v.Vote.LeftID),
			RightName:   name(v.Vote.RightID),
		})
	}
	return entries, nil
}
