// Package repository stores profiles, their ratings and the vote log.
package repository

import (
	"context"

	"github.com/okian/versus/internal/domain/model"
	"github.com/okian/versus/internal/domain/types"
)

// List filters.
const (
	FilterAll      = "all"
	FilterStudents = "students"
	FilterAlumni   = "alumni"
)

// List sort orders.
const (
	SortRating     = "rating"
	SortName       = "name"
	SortGraduation = "graduation"
)

// List paging defaults.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ListQuery selects a page of profiles.
type ListQuery struct {
	// Query matches name, title, company or major, case-insensitively.
	Query string
	// Filter is FilterAll, FilterStudents, FilterAlumni or a major name.
	Filter string
	// Sort is SortRating (default), SortName or SortGraduation.
	Sort  string
	Page  int
	Limit int
}

// Page is one page of a profile listing.
type Page struct {
	Profiles   []model.Profile
	Total      int
	Page       int
	TotalPages int
}

// RateFunc computes the new ratings of a vote from the ratings held at the
// moment the vote is applied.
type RateFunc func(left, right float64) (newLeft, newRight float64, err error)

// Store provides read/write access to profiles and votes.
type Store interface {
	// Get returns one profile or ErrNotFound.
	Get(ctx context.Context, id string) (model.Profile, error)
	// List returns a filtered, sorted page of profiles.
	List(ctx context.Context, q ListQuery) (Page, error)
	// Insert admits a profile to the pool at the rating it carries.
	// Returns ErrDuplicate for a known id.
	Insert(ctx context.Context, p model.Profile) (model.Profile, error)
	// InsertVote reads both current ratings, calls rate and persists the
	// vote together with the new ratings. No other vote touching either
	// profile is applied in between. If rate fails nothing is written.
	InsertVote(ctx context.Context, v model.Vote, rate RateFunc) (model.AppliedVote, error)
	// HasVote reports whether a vote with this id was applied.
	HasVote(ctx context.Context, id string) (bool, error)
	// RandomSample returns up to n random profiles whose ids are not in
	// excludeIDs. n <= 0 returns every eligible profile in random order.
	RandomSample(ctx context.Context, excludeIDs []string, n int) ([]model.Profile, error)
	// RecentVotes returns the latest votes of a session, most recent first.
	RecentVotes(ctx context.Context, sessionID string, limit int) ([]model.AppliedVote, error)
	// Enrich merges descriptive attributes into a profile. It never changes
	// the rating.
	Enrich(ctx context.Context, id string, attrs model.Attributes) (model.Profile, error)
	// TopN returns the n highest rated profiles.
	TopN(ctx context.Context, n int) ([]types.Entry, error)
	// Rank returns the competition rank of a profile: one more than the
	// number of profiles rated strictly higher.
	Rank(ctx context.Context, id string) (types.Entry, error)
	// Count returns the number of profiles.
	Count(ctx context.Context) int
	// Close releases resources.
	Close() error
}

// normalize fills defaults and clamps paging.
func (q ListQuery) normalize(maxPageSize int) ListQuery {
	if q.Filter == "" {
		q.Filter = FilterAll
	}
	switch q.Sort {
	case SortName, SortGraduation:
	default:
		q.Sort = SortRating
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	if maxPageSize > 0 && q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}
	return q
}

// offset returns the index of the first profile on q's page. Pages past
// the end of total report ok=false; the product is never computed for them
// so huge page numbers cannot overflow.
func (q ListQuery) offset(total int) (start int, ok bool) {
	if q.Page-1 > total/q.Limit {
		return total, false
	}
	start = (q.Page - 1) * q.Limit
	if start >= total {
		return total, false
	}
	return start, true
}

func totalPages(total, limit int) int {
	if total == 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
