package service

import (
	"context"
	"errors"

	"github.com/okian/versus/internal/adapters/mq/queue"
	"github.com/okian/versus/internal/domain/model"
	"github.com/okian/versus/internal/domain/sampler"
	"github.com/okian/versus/internal/domain/session"
	"github.com/okian/versus/pkg/logger"
	"github.com/okian/versus/pkg/metrics"
)

// PairView is a pair ready to be shown to a voter.
type PairView struct {
	SessionID string
	Left      model.Profile
	Right     model.Profile
	Sample    sampler.Pair
}

// NextPair draws the next pair for a session and marks it as shown. An
// unknown or empty session id starts a new session; a known id that is no
// longer live has its exclusion window rebuilt from the stored vote log.
func (s *Service) NextPair(ctx context.Context, sessionID string) (PairView, error) {
	if err := s.running(); err != nil {
		return PairView{}, err
	}

	sess, created := s.sessions.GetOrCreate(sessionID)
	if created {
		metrics.UpdateActiveSessions(s.sessions.Len())
		if sessionID != "" {
			if err := s.restoreWindow(ctx, sess); err != nil {
				return PairView{}, err
			}
		}
	}

	profiles, err := s.store.RandomSample(ctx, nil, s.poolSampleSize)
	if err != nil {
		return PairView{}, err
	}
	byID := make(map[string]model.Profile, len(profiles))
	pool := make([]sampler.Candidate, 0, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
		pool = append(pool, sampler.Candidate{ID: p.ID, Rating: p.Rating})
	}

	pair, err := s.sampler.Next(pool, sess.Exclusion())
	if err != nil {
		if errors.Is(err, sampler.ErrInsufficientPool) {
			metrics.RecordInsufficientPool()
		}
		return PairView{}, err
	}
	if err := sess.Show(pair.Left.ID, pair.Right.ID); err != nil {
		return PairView{}, err
	}

	metrics.RecordPairSampled(pair.TopSlots())
	for _, f := range pair.Fallbacks {
		metrics.RecordSamplerFallback(f)
	}
	s.logger.Debug(ctx, "pair shown",
		logger.String("session_id", sess.ID()),
		logger.String("left", pair.Left.ID),
		logger.String("right", pair.Right.ID),
		logger.Strings("fallbacks", pair.Fallbacks),
	)

	view := PairView{
		SessionID: sess.ID(),
		Left:      byID[pair.Left.ID],
		Right:     byID[pair.Right.ID],
		Sample:    pair,
	}
	s.scheduleEnrichment(ctx, view.Left)
	s.scheduleEnrichment(ctx, view.Right)
	return view, nil
}

func (s *Service) restoreWindow(ctx context.Context, sess *session.Session) error {
	size := s.sessions.WindowSize()
	if size == 0 {
		return nil
	}
	recent, err := s.store.RecentVotes(ctx, sess.ID(), size)
	if err != nil {
		return err
	}
	history := make([][2]string, 0, len(recent))
	for _, v := range recent {
		history = append(history, v.Vote.ProfileIDs())
	}
	sess.Restore(history)
	return nil
}

// scheduleEnrichment queues a sparse profile for hydration at most once.
func (s *Service) scheduleEnrichment(ctx context.Context, p model.Profile) {
	if s.queue == nil || !p.Sparse() {
		return
	}
	job := model.EnrichJob{
		ProfileID:   p.ID,
		LinkedInURL: p.LinkedInURL,
		Name:        p.Name,
		RequestedAt: s.clock(),
	}
	if s.enrichSeen.SeenAndRecord(ctx, job.DedupeKey()) {
		return
	}
	if !s.queue.Enqueue(ctx, job) {
		s.enrichSeen.Unrecord(ctx, job.DedupeKey())
		s.logger.Warn(ctx, "enrichment not scheduled",
			logger.String("profile_id", p.ID),
			logger.Error(queue.ErrFull),
		)
	}
}
