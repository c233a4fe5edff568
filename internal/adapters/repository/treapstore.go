package repository

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/versus/internal/domain/model"
	"github.com/okian/versus/internal/domain/types"
	"github.com/okian/versus/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: rating DESC, then id ASC. "less" means ranks earlier, so an
// in-order traversal yields the leaderboard from best to worst. Subtree
// sizes make rank lookups O(log n).

type node struct {
	id     string
	rating float64
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func less(aRating float64, aID string, bRating float64, bID string) bool {
	if aRating != bRating {
		return aRating > bRating
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, rating float64, prio uint64) *node {
	if n == nil {
		return &node{id: id, rating: rating, prio: prio, size: 1}
	}
	if less(rating, id, n.rating, n.id) {
		n.left = insert(n.left, id, rating, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, rating, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, rating float64) *node {
	if n == nil {
		return nil
	}
	switch {
	case rating == n.rating && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, rating)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, rating)
		}
	case less(rating, id, n.rating, n.id):
		n.left = deleteNode(n.left, id, rating)
	default:
		n.right = deleteNode(n.right, id, rating)
	}
	fix(n)
	return n
}

// countAbove returns how many nodes are rated strictly higher than rating.
func countAbove(n *node, rating float64) int {
	count := 0
	for n != nil {
		if n.rating > rating {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectTopN appends up to limit nodes in rank order.
func collectTopN(n *node, limit int, out *[]*node) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// TreapStore keeps profiles in a treap ordered by rating and the vote log
// in a slice. A single RWMutex serialises writes, which makes InsertVote's
// read-modify-write atomic.
type TreapStore struct {
	mu        sync.RWMutex
	root      *node
	profiles  map[string]model.Profile
	votes     []model.AppliedVote
	bySession map[string][]int
	voteIDs   map[string]struct{}
	closed    bool

	rngMu sync.Mutex
	opts  options

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewTreapStore constructs a treap store with configuration options. A
// background goroutine publishes the profile count until ctx is done or
// Close is called.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		profiles:  make(map[string]model.Profile),
		bySession: make(map[string][]int),
		voteIDs:   make(map[string]struct{}),
		opts:      applyOptions(opts),
		stopChan:  make(chan struct{}),
	}
	s.startMetricsUpdater(ctx)
	return s
}

func (s *TreapStore) priority() uint64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.opts.rng.Uint64()
}

// Close stops the metrics goroutine. Later writes fail with ErrClosed.
func (s *TreapStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *TreapStore) Get(ctx context.Context, id string) (model.Profile, error) {
	defer observeQuery(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.Profile{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, nil
}

func (s *TreapStore) List(ctx context.Context, q ListQuery) (Page, error) {
	defer observeQuery(time.Now())
	q = q.normalize(s.opts.maxPageSize)

	s.mu.RLock()
	matched := make([]model.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		if matchesQuery(p, q.Query) && matchesFilter(p, q.Filter) {
			matched = append(matched, p)
		}
	}
	s.mu.RUnlock()

	sortProfiles(matched, q.Sort)
	return paginate(matched, q), nil
}

func (s *TreapStore) Insert(ctx context.Context, p model.Profile) (model.Profile, error) {
	defer observeUpdate(time.Now())
	if err := validateProfile(p); err != nil {
		return model.Profile{}, err
	}
	now := s.opts.clock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	prio := s.priority()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.Profile{}, ErrClosed
	}
	if _, ok := s.profiles[p.ID]; ok {
		s.mu.Unlock()
		metrics.RecordRepositoryError("insert")
		return model.Profile{}, fmt.Errorf("%w: %s", ErrDuplicate, p.ID)
	}
	s.profiles[p.ID] = p
	s.root = insert(s.root, p.ID, p.Rating, prio)
	count := len(s.profiles)
	s.mu.Unlock()

	metrics.UpdateTotalProfiles(count)
	return p, nil
}

func (s *TreapStore) InsertVote(ctx context.Context, v model.Vote, rate RateFunc) (model.AppliedVote, error) {
	defer observeUpdate(time.Now())
	if err := v.Validate(); err != nil {
		return model.AppliedVote{}, err
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = s.opts.clock()
	}
	prioLeft, prioRight := s.priority(), s.priority()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.AppliedVote{}, ErrClosed
	}
	if _, dup := s.voteIDs[v.ID]; dup {
		return model.AppliedVote{}, fmt.Errorf("%w: vote %s", ErrDuplicate, v.ID)
	}
	left, ok := s.profiles[v.LeftID]
	if !ok {
		return model.AppliedVote{}, fmt.Errorf("%w: %s", ErrNotFound, v.LeftID)
	}
	right, ok := s.profiles[v.RightID]
	if !ok {
		return model.AppliedVote{}, fmt.Errorf("%w: %s", ErrNotFound, v.RightID)
	}

	newLeft, newRight, err := rate(left.Rating, right.Rating)
	if err != nil {
		metrics.RecordRepositoryError("insert_vote")
		return model.AppliedVote{}, err
	}

	applied := model.AppliedVote{
		Vote:  v,
		Left:  model.RatingChange{ProfileID: left.ID, Before: left.Rating, After: newLeft},
		Right: model.RatingChange{ProfileID: right.ID, Before: right.Rating, After: newRight},
	}
	s.setRating(left, newLeft, prioLeft, v.CreatedAt)
	s.setRating(right, newRight, prioRight, v.CreatedAt)

	s.votes = append(s.votes, applied)
	s.voteIDs[v.ID] = struct{}{}
	if v.SessionID != "" {
		s.bySession[v.SessionID] = append(s.bySession[v.SessionID], len(s.votes)-1)
	}
	return applied, nil
}

// setRating repositions a profile in the treap. Must be called with s.mu held.
func (s *TreapStore) setRating(p model.Profile, rating float64, prio uint64, at time.Time) {
	s.root = deleteNode(s.root, p.ID, p.Rating)
	p.Rating = rating
	p.UpdatedAt = at
	s.profiles[p.ID] = p
	s.root = insert(s.root, p.ID, rating, prio)
}

func (s *TreapStore) RandomSample(ctx context.Context, excludeIDs []string, n int) ([]model.Profile, error) {
	defer observeQuery(time.Now())
	excluded := make(map[string]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	s.mu.RLock()
	eligible := make([]model.Profile, 0, len(s.profiles))
	for id, p := range s.profiles {
		if _, skip := excluded[id]; !skip {
			eligible = append(eligible, p)
		}
	}
	s.mu.RUnlock()

	// Map iteration order is not a shuffle; sort first so the seeded rng
	// alone decides the sample.
	sortProfiles(eligible, SortRating)
	if n <= 0 || n > len(eligible) {
		n = len(eligible)
	}
	s.rngMu.Lock()
	partialShuffle(s.opts.rng, eligible, n)
	s.rngMu.Unlock()
	return eligible[:n], nil
}

// partialShuffle moves a uniform random selection of k elements to the front.
func partialShuffle(rng *rand.Rand, ps []model.Profile, k int) {
	for i := 0; i < k; i++ {
		j := i + rng.Intn(len(ps)-i)
		ps[i], ps[j] = ps[j], ps[i]
	}
}

func (s *TreapStore) HasVote(ctx context.Context, id string) (bool, error) {
	defer observeQuery(time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.voteIDs[id]
	return ok, nil
}

func (s *TreapStore) RecentVotes(ctx context.Context, sessionID string, limit int) ([]model.AppliedVote, error) {
	defer observeQuery(time.Now())
	if limit < 1 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.bySession[sessionID]
	out := make([]model.AppliedVote, 0, min(limit, len(idx)))
	for i := len(idx) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.votes[idx[i]])
	}
	return out, nil
}

func (s *TreapStore) Enrich(ctx context.Context, id string, attrs model.Attributes) (model.Profile, error) {
	defer observeUpdate(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return model.Profile{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	p = attrs.Apply(p)
	p.UpdatedAt = s.opts.clock()
	s.profiles[id] = p
	return p, nil
}

func (s *TreapStore) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	defer observeQuery(time.Now())
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	nodes := make([]*node, 0, min(n, len(s.profiles)))
	collectTopN(s.root, n, &nodes)

	out := make([]types.Entry, len(nodes))
	for i, nd := range nodes {
		rank := i + 1
		if i > 0 && nd.rating == nodes[i-1].rating {
			rank = out[i-1].Rank
		}
		out[i] = types.Entry{Rank: rank, ProfileID: nd.id, Name: s.profiles[nd.id].Name, Rating: nd.rating}
	}
	return out, nil
}

func (s *TreapStore) Rank(ctx context.Context, id string) (types.Entry, error) {
	defer observeQuery(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return types.Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return types.Entry{
		Rank:      countAbove(s.root, p.Rating) + 1,
		ProfileID: p.ID,
		Name:      p.Name,
		Rating:    p.Rating,
	}, nil
}

func (s *TreapStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}

// startMetricsUpdater publishes the profile count periodically.
func (s *TreapStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.opts.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateTotalProfiles(s.Count(ctx))
			}
		}
	}()
}

func observeQuery(start time.Time) {
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
}

func observeUpdate(start time.Time) {
	metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
}
