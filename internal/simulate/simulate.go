// Package simulate drives a running versus API with synthetic voters whose
// choices follow hidden strengths, then checks that the resulting ratings
// recover the hidden order.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/okian/versus/pkg/logger"
)

var (
	// ErrInvalidConfig is returned when Config fails validation.
	ErrInvalidConfig = errors.New("invalid simulation config")
	// ErrWeakCorrelation is returned when ratings do not follow the hidden order.
	ErrWeakCorrelation = errors.New("ratings do not follow hidden strengths")
)

// Config controls a simulation run.
type Config struct {
	BaseURL        string
	Prefix         string
	Profiles       int
	Voters         int
	VotesPerVoter  int
	Concurrency    int
	Seed           int64
	Timeout        time.Duration
	MinCorrelation float64
}

// DefaultConfig returns a config that finishes in a few seconds against a
// local server.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://localhost:9080",
		Prefix:         "sim-",
		Profiles:       20,
		Voters:         8,
		VotesPerVoter:  50,
		Concurrency:    4,
		Seed:           1,
		Timeout:        5 * time.Second,
		MinCorrelation: 0.5,
	}
}

// Validate checks the config.
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	case c.Profiles < 2:
		return fmt.Errorf("%w: need at least 2 profiles", ErrInvalidConfig)
	case c.Voters < 1 || c.VotesPerVoter < 1:
		return fmt.Errorf("%w: voters and votes per voter must be positive", ErrInvalidConfig)
	case c.Concurrency < 1:
		return fmt.Errorf("%w: concurrency must be positive", ErrInvalidConfig)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	case c.MinCorrelation < -1 || c.MinCorrelation > 1:
		return fmt.Errorf("%w: min correlation must be within [-1, 1]", ErrInvalidConfig)
	}
	return nil
}

// Report summarises a run.
type Report struct {
	Created     int
	Skipped     int
	Applied     int64
	Duplicates  int64
	Rejected    int64
	Correlation float64
	Top         []Entry
	Duration    time.Duration
}

// Run creates the simulated profiles (reusing ones left by a previous run),
// lets the voters vote and compares the final ratings with the hidden
// strengths. The report is returned even when the correlation check fails.
func Run(ctx context.Context, cfg Config) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}
	log := logger.Named("simulate")
	start := time.Now()
	client := NewClient(cfg.BaseURL, cfg.Timeout)

	if err := client.Health(ctx); err != nil {
		return Report{}, fmt.Errorf("health check: %w", err)
	}

	ids, strengths := hiddenStrengths(cfg.Prefix, cfg.Profiles)
	var report Report
	for _, id := range ids {
		_, err := client.CreateProfile(ctx, Profile{ID: id, Name: "Simulated " + id, Title: "Engineer"})
		switch {
		case err == nil:
			report.Created++
		case IsCode(err, "duplicate"):
			report.Skipped++
		default:
			return report, fmt.Errorf("create profile %s: %w", id, err)
		}
	}
	log.Info(ctx, "profiles ready",
		logger.Int("created", report.Created),
		logger.Int("skipped", report.Skipped),
	)

	var applied, duplicates, rejected atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for v := 0; v < cfg.Voters; v++ {
		rng := rand.New(rand.NewSource(cfg.Seed + int64(v)))
		g.Go(func() error {
			sessionID := ""
			for i := 0; i < cfg.VotesPerVoter; i++ {
				pair, err := client.NextPair(gctx, sessionID)
				if err != nil {
					return fmt.Errorf("next pair: %w", err)
				}
				sessionID = pair.SessionID
				res, err := client.Vote(gctx, Vote{
					SessionID: sessionID,
					LeftID:    pair.Left.ID,
					RightID:   pair.Right.ID,
					Outcome:   choose(rng, strengths, pair.Left.ID, pair.Right.ID),
					VoteID:    uuid.NewString(),
				})
				switch {
				case err == nil && res.Duplicate:
					duplicates.Add(1)
				case err == nil:
					applied.Add(1)
				case IsCode(err, "pair_mismatch"), IsCode(err, "vote_in_progress"):
					rejected.Add(1)
				default:
					return fmt.Errorf("vote: %w", err)
				}
			}
			return nil
		})
	}
	err := g.Wait()
	report.Applied, report.Duplicates, report.Rejected = applied.Load(), duplicates.Load(), rejected.Load()
	if err != nil {
		return report, err
	}

	ratings, err := fetchRatings(ctx, client, ids, cfg.Concurrency)
	if err != nil {
		return report, err
	}
	hidden := lo.Map(ids, func(id string, _ int) float64 { return strengths[id] })
	report.Correlation = Spearman(hidden, ratings)

	top, err := client.Leaderboard(ctx, min(10, cfg.Profiles))
	if err != nil {
		return report, fmt.Errorf("leaderboard: %w", err)
	}
	report.Top = top
	report.Duration = time.Since(start)

	log.Info(ctx, "simulation finished",
		logger.Any("applied", report.Applied),
		logger.Any("rejected", report.Rejected),
		logger.Float64("correlation", report.Correlation),
		logger.String("duration", report.Duration.String()),
	)
	if report.Correlation < cfg.MinCorrelation {
		return report, fmt.Errorf("%w: spearman %.3f < %.3f", ErrWeakCorrelation, report.Correlation, cfg.MinCorrelation)
	}
	return report, nil
}

// hiddenStrengths spreads strengths geometrically from 1 to 100.
func hiddenStrengths(prefix string, n int) ([]string, map[string]float64) {
	ids := make([]string, n)
	strengths := make(map[string]float64, n)
	for i := range n {
		ids[i] = fmt.Sprintf("%s%03d", prefix, i)
		strengths[ids[i]] = math.Pow(10, 2*float64(i)/float64(n-1))
	}
	return ids, strengths
}

// choose picks left with probability sL/(sL+sR). Pairs involving profiles
// outside the simulation are called a draw.
func choose(rng *rand.Rand, strengths map[string]float64, left, right string) string {
	sl, okL := strengths[left]
	sr, okR := strengths[right]
	if !okL || !okR {
		return "draw"
	}
	if rng.Float64() < sl/(sl+sr) {
		return "left"
	}
	return "right"
}

func fetchRatings(ctx context.Context, client *Client, ids []string, concurrency int) ([]float64, error) {
	ratings := make([]float64, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, id := range ids {
		g.Go(func() error {
			entry, err := client.Rank(gctx, id)
			if err != nil {
				return fmt.Errorf("rank %s: %w", id, err)
			}
			ratings[i] = entry.Rating
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ratings, nil
}
