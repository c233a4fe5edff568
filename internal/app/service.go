// Package service wires the rating engine, pair sampler, session flow and
// storage into the operations the HTTP API exposes.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/versus/internal/adapters/mq/queue"
	"github.com/okian/versus/internal/adapters/mq/worker"
	"github.com/okian/versus/internal/adapters/repository"
	"github.com/okian/versus/internal/domain/dedupe"
	"github.com/okian/versus/internal/domain/model"
	"github.com/okian/versus/internal/domain/rating"
	"github.com/okian/versus/internal/domain/sampler"
	"github.com/okian/versus/internal/domain/session"
	"github.com/okian/versus/pkg/logger"
	"github.com/okian/versus/pkg/metrics"
)

const (
	defaultWorkerCount         = 2
	defaultQueueSize           = 1024
	defaultVoteDedupeSize      = 50000
	defaultEnrichDedupeSize    = 100000
	defaultMaxLeaderboardLimit = 100
	defaultHistoryLimit        = 10
	stopTimeout                = 10 * time.Second
)

// Service implements the API dependencies for the rating system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	engine     *rating.Engine
	sampler    *sampler.Sampler
	sessions   *session.Manager
	votes      dedupe.Deduper
	inflight   singleflight.Group
	enrichSeen dedupe.Deduper
	queue      *queue.InMemoryQueue
	pool       *worker.Pool
	enricher   worker.Enricher

	// Configuration
	storeDriver         string
	sqlitePath          string
	maxPageSize         int
	kFactor             float64
	initialRating       float64
	samplerCfg          sampler.Config
	samplerOpts         []sampler.Option
	poolSampleSize      int
	windowSize          int
	sessionTTL          time.Duration
	sessionCapacity     int
	voteDedupeSize      int
	maxLeaderboardLimit int
	workerCount         int
	queueSize           int
	clock               func() time.Time

	// State
	started bool

	logger logger.Logger
}

// New constructs a Service. Components are built by Start.
func New(opts ...Option) *Service {
	s := &Service{
		storeDriver:         DriverMemory,
		maxPageSize:         repository.MaxPageSize,
		kFactor:             rating.DefaultKFactor,
		initialRating:       model.DefaultRating,
		samplerCfg:          sampler.DefaultConfig(),
		windowSize:          session.DefaultWindowSize,
		sessionTTL:          session.DefaultTTL,
		sessionCapacity:     session.DefaultCapacity,
		voteDedupeSize:      defaultVoteDedupeSize,
		maxLeaderboardLimit: defaultMaxLeaderboardLimit,
		workerCount:         defaultWorkerCount,
		queueSize:           defaultQueueSize,
		clock:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the components and starts the enrichment workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	if s.store == nil {
		store, err := s.openStore(ctx)
		if err != nil {
			return err
		}
		s.store = store
	}

	s.engine = rating.NewEngine(rating.WithKFactor(s.kFactor))
	s.sampler = sampler.New(append([]sampler.Option{sampler.WithConfig(s.samplerCfg)}, s.samplerOpts...)...)
	s.sessions = session.NewManager(
		session.WithCapacity(s.sessionCapacity),
		session.WithTTL(s.sessionTTL),
		session.WithWindowSize(s.windowSize),
	)
	s.votes = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.voteDedupeSize))

	if s.enricher != nil {
		s.enrichSeen = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(defaultEnrichDedupeSize))
		s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
		s.pool = worker.NewPool(s.workerCount, s.queue, s.enricher, s.store,
			worker.WithDeduper(s.enrichSeen),
			worker.WithLogger(s.logger.Named("enrich")),
		)
		s.pool.Start(ctx)
	}

	s.started = true
	s.logger.Info(ctx, "rating service started",
		logger.String("store", s.storeDriver),
		logger.Float64("k_factor", s.kFactor),
		logger.Float64("top_fraction", s.sampler.Config().TopFraction),
		logger.Float64("top_pick_probability", s.sampler.Config().TopPickProbability),
		logger.Int("exclusion_window", s.windowSize),
		logger.Bool("enrichment", s.enricher != nil),
	)
	metrics.UpdateTotalProfiles(s.store.Count(ctx))
	return nil
}

func (s *Service) openStore(ctx context.Context) (repository.Store, error) {
	switch s.storeDriver {
	case DriverMemory:
		return repository.NewTreapStore(ctx, repository.WithMaxPageSize(s.maxPageSize)), nil
	case DriverSQLite:
		store, err := repository.OpenSQLStore(ctx, s.sqlitePath, repository.WithMaxPageSize(s.maxPageSize))
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", s.storeDriver)
	}
}

// Stop drains the enrichment workers and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping rating service...")

	if s.pool != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, stopTimeout)
		if err := s.pool.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(ctx, "enrichment workers did not drain", logger.Error(err))
		}
		cancel()
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "closing store failed", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "rating service stopped")
}

// running returns an error unless Start has completed.
func (s *Service) running() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":         s.started,
		"storeDriver":     s.storeDriver,
		"kFactor":         s.kFactor,
		"topFraction":     s.samplerCfg.TopFraction,
		"exclusionWindow": s.windowSize,
		"workerCount":     0,
		"queueSize":       s.queueSize,
	}
	if !s.started {
		return stats
	}

	totalProfiles := s.store.Count(ctx)
	activeSessions := s.sessions.Len()
	stats["totalProfiles"] = totalProfiles
	stats["activeSessions"] = activeSessions
	stats["rememberedVoteIDs"] = s.votes.Size()
	metrics.UpdateTotalProfiles(totalProfiles)
	metrics.UpdateActiveSessions(activeSessions)

	if s.pool != nil {
		queueLen := s.queue.Len(ctx)
		stats["workerCount"] = s.pool.Size()
		stats["queueLength"] = queueLen
		metrics.UpdateQueueSize(queueLen)
	}
	return stats
}
