package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/versus/internal/adapters/repository"
	"github.com/okian/versus/internal/domain/model"
	"github.com/okian/versus/internal/domain/types"
	"github.com/okian/versus/pkg/logger"
	"github.com/okian/versus/pkg/metrics"
)

// TopN returns the n highest rated profiles. n is capped at the
// configured leaderboard limit.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	if n > s.maxLeaderboardLimit {
		n = s.maxLeaderboardLimit
	}
	return s.store.TopN(ctx, n)
}

// Rank returns the competition rank and rating of a profile.
func (s *Service) Rank(ctx context.Context, profileID string) (types.Entry, error) {
	if err := s.running(); err != nil {
		return types.Entry{}, err
	}
	return s.store.Rank(ctx, profileID)
}

// ListProfiles returns a filtered, sorted page of profiles.
func (s *Service) ListProfiles(ctx context.Context, q repository.ListQuery) (repository.Page, error) {
	if err := s.running(); err != nil {
		return repository.Page{}, err
	}
	return s.store.List(ctx, q)
}

// GetProfile returns one profile.
func (s *Service) GetProfile(ctx context.Context, id string) (model.Profile, error) {
	if err := s.running(); err != nil {
		return model.Profile{}, err
	}
	return s.store.Get(ctx, id)
}

// CreateProfile admits a profile to the pool at the initial rating. Any
// rating on p is ignored.
func (s *Service) CreateProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	if err := s.running(); err != nil {
		return model.Profile{}, err
	}
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Rating = s.initialRating
	p.Enriched = false

	created, err := s.store.Insert(ctx, p)
	if err != nil {
		return model.Profile{}, err
	}
	metrics.UpdateTotalProfiles(s.store.Count(ctx))
	s.logger.Debug(ctx, "profile created",
		logger.String("profile_id", created.ID),
		logger.Float64("rating", created.Rating),
	)
	return created, nil
}
