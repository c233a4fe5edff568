package service

import (
	"time"

	"github.com/okian/versus/internal/adapters/mq/worker"
	"github.com/okian/versus/internal/adapters/repository"
	"github.com/okian/versus/internal/domain/sampler"
	"github.com/okian/versus/pkg/logger"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects a ready store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithStoreDriver selects the store built on Start when none was injected.
func WithStoreDriver(driver, sqlitePath string) Option {
	return func(s *Service) {
		if driver != "" {
			s.storeDriver = driver
		}
		if sqlitePath != "" {
			s.sqlitePath = sqlitePath
		}
	}
}

// WithMaxPageSize caps profile listing pages.
func WithMaxPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPageSize = n
		}
	}
}

// WithKFactor sets the Elo sensitivity.
func WithKFactor(k float64) Option {
	return func(s *Service) {
		if k > 0 {
			s.kFactor = k
		}
	}
}

// WithInitialRating sets the rating new profiles enter the pool with.
func WithInitialRating(r float64) Option {
	return func(s *Service) {
		if r > 0 {
			s.initialRating = r
		}
	}
}

// WithSamplerConfig sets the stratification parameters.
func WithSamplerConfig(cfg sampler.Config) Option {
	return func(s *Service) {
		s.samplerCfg = cfg
	}
}

// WithSamplerSeed makes pair selection reproducible.
func WithSamplerSeed(seed int64) Option {
	return func(s *Service) {
		s.samplerOpts = append(s.samplerOpts, sampler.WithSeed(seed))
	}
}

// WithPoolSampleSize bounds the number of profiles fetched per pair
// request. Zero fetches the whole pool.
func WithPoolSampleSize(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.poolSampleSize = n
		}
	}
}

// WithExclusionWindow sets how many recent pairs a session avoids.
func WithExclusionWindow(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.windowSize = n
		}
	}
}

// WithSessionTTL sets the idle time after which a session is forgotten.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithSessionCapacity bounds the number of live sessions.
func WithSessionCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sessionCapacity = n
		}
	}
}

// WithVoteDedupeSize sets how many vote ids are remembered for idempotency.
func WithVoteDedupeSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.voteDedupeSize = n
		}
	}
}

// WithMaxLeaderboardLimit caps TopN and history requests.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLeaderboardLimit = n
		}
	}
}

// WithEnricher turns on background enrichment of sparse profiles.
func WithEnricher(e worker.Enricher) Option {
	return func(s *Service) {
		s.enricher = e
	}
}

// WithWorkerCount sets the number of enrichment workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the enrichment queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now for vote timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}
