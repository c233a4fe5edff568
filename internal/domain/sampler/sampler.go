// Package sampler selects the next pair of profiles to compare.
//
// The pool is split into a top stratum (the highest rated fraction) and the
// remainder. Each slot of the pair draws from the top stratum with a fixed
// probability and from the remainder otherwise, so strong profiles appear
// more often than uniform sampling would show them. Recently shown ids are
// avoided when enough other candidates exist.
package sampler

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// Default stratification.
const (
	DefaultTopFraction        = 0.15
	DefaultTopPickProbability = 0.30
)

// ceilTolerance keeps products like 0.15*20 from rounding up past 3.
const ceilTolerance = 1e-9

// Fallback kinds reported on a Pair.
const (
	FallbackNone      = ""
	FallbackStratum   = "stratum"
	FallbackExclusion = "exclusion"
	FallbackUniform   = "uniform"
)

// Candidate is a profile as the sampler sees it.
type Candidate struct {
	ID     string  `json:"id"`
	Rating float64 `json:"rating"`
}

// Config controls stratification.
type Config struct {
	// TopFraction is the share of the pool, by descending rating, that forms
	// the top stratum.
	TopFraction float64 `json:"top_fraction"`
	// TopPickProbability is the per-slot chance of drawing from the top stratum.
	TopPickProbability float64 `json:"top_pick_probability"`
}

// DefaultConfig returns the 15% / 30% stratification.
func DefaultConfig() Config {
	return Config{TopFraction: DefaultTopFraction, TopPickProbability: DefaultTopPickProbability}
}

func (c Config) normalized() Config {
	c.TopFraction = clamp01(c.TopFraction)
	c.TopPickProbability = clamp01(c.TopPickProbability)
	return c
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Pair is the result of one sampling request.
type Pair struct {
	Left         Candidate `json:"left"`
	Right        Candidate `json:"right"`
	LeftFromTop  bool      `json:"left_from_top"`
	RightFromTop bool      `json:"right_from_top"`
	// Fallbacks lists the relaxations applied, in the order they happened.
	Fallbacks []string `json:"fallbacks,omitempty"`
}

// IDs returns both ids in presentation order.
func (p Pair) IDs() []string {
	return []string{p.Left.ID, p.Right.ID}
}

// TopSlots counts how many slots were drawn from the top stratum.
func (p Pair) TopSlots() int {
	n := 0
	if p.LeftFromTop {
		n++
	}
	if p.RightFromTop {
		n++
	}
	return n
}

// Sampler draws pairs. It holds no pool state and is safe for concurrent use.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
	cfg Config
}

// New creates a sampler with the default config and a time-seeded source.
func New(opts ...Option) *Sampler {
	s := &Sampler{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // sampling is not security sensitive
		cfg: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the sampler's default stratification.
func (s *Sampler) Config() Config { return s.cfg }

// Next samples with the sampler's own config.
func (s *Sampler) Next(pool []Candidate, excludeIDs []string) (Pair, error) {
	return s.Sample(pool, excludeIDs, s.cfg)
}

// Sample selects two distinct candidates from pool.
//
// Duplicate ids in pool count once. excludeIDs is a soft constraint: when
// at least two candidates remain outside it the pair avoids it entirely,
// otherwise excluded candidates are used to complete the pair. Pools with
// fewer than two distinct ids fail with *InsufficientPoolError.
func (s *Sampler) Sample(pool []Candidate, excludeIDs []string, cfg Config) (Pair, error) {
	ranked := rank(pool)
	if len(ranked) < 2 {
		return Pair{}, &InsufficientPoolError{Size: len(ranked)}
	}
	cfg = cfg.normalized()

	topN := int(math.Ceil(cfg.TopFraction*float64(len(ranked)) - ceilTolerance))
	if topN > len(ranked) {
		topN = len(ranked)
	}
	d := draw{
		top:      ranked[:topN],
		rest:     ranked[topN:],
		excluded: make(map[string]struct{}, len(excludeIDs)),
		used:     make(map[string]struct{}, 2),
	}
	for _, id := range excludeIDs {
		d.excluded[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var pair Pair
	left, leftTop, ok := s.pick(&d, cfg.TopPickProbability, &pair.Fallbacks)
	if ok {
		d.used[left.ID] = struct{}{}
		var right Candidate
		var rightTop bool
		right, rightTop, ok = s.pick(&d, cfg.TopPickProbability, &pair.Fallbacks)
		if ok {
			pair.Left, pair.Right = left, right
			pair.LeftFromTop, pair.RightFromTop = leftTop, rightTop
			return pair, nil
		}
	}

	// Unreachable for well-formed pools; kept so a pair is always produced.
	i := s.rng.Intn(len(ranked))
	j := s.rng.Intn(len(ranked) - 1)
	if j >= i {
		j++
	}
	return Pair{
		Left:      ranked[i],
		Right:     ranked[j],
		Fallbacks: append(pair.Fallbacks, FallbackUniform),
	}, nil
}

type draw struct {
	top      []Candidate
	rest     []Candidate
	excluded map[string]struct{}
	used     map[string]struct{}
}

func (d *draw) eligible(stratum []Candidate, honourExclusion bool) []Candidate {
	out := make([]Candidate, 0, len(stratum))
	for _, c := range stratum {
		if _, ok := d.used[c.ID]; ok {
			continue
		}
		if honourExclusion {
			if _, ok := d.excluded[c.ID]; ok {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// pick draws one slot. The stratum chosen by the coin flip is tried first,
// then the other stratum, first with exclusions honoured and then without.
func (s *Sampler) pick(d *draw, topProbability float64, fallbacks *[]string) (Candidate, bool, bool) {
	fromTop := s.rng.Float64() < topProbability
	chosen, other := d.rest, d.top
	if fromTop {
		chosen, other = d.top, d.rest
	}

	steps := []struct {
		stratum  []Candidate
		top      bool
		exclude  bool
		fallback string
	}{
		{chosen, fromTop, true, FallbackNone},
		{other, !fromTop, true, FallbackStratum},
		{chosen, fromTop, false, FallbackExclusion},
		{other, !fromTop, false, FallbackExclusion},
	}
	for _, step := range steps {
		candidates := d.eligible(step.stratum, step.exclude)
		if len(candidates) == 0 {
			continue
		}
		if step.fallback != FallbackNone {
			*fallbacks = append(*fallbacks, step.fallback)
		}
		return candidates[s.rng.Intn(len(candidates))], step.top, true
	}
	return Candidate{}, false, false
}

// rank dedupes by id and orders by rating descending, ties by id.
func rank(pool []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(pool))
	out := make([]Candidate, 0, len(pool))
	for _, c := range pool {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].ID < out[j].ID
	})
	return out
}
