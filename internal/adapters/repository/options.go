package repository

import (
	"math/rand"
	"time"
)

// Option applies a configuration option to the stores.
type Option func(*options)

type options struct {
	maxPageSize           int
	metricsUpdateInterval time.Duration
	rng                   *rand.Rand
	clock                 func() time.Time
}

func defaultOptions() options {
	return options{
		maxPageSize:           MaxPageSize,
		metricsUpdateInterval: 5 * time.Second,
		rng:                   rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // sampling is not security sensitive
		clock:                 time.Now,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithMaxPageSize caps List page sizes.
func WithMaxPageSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxPageSize = n
		}
	}
}

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.metricsUpdateInterval = interval
		}
	}
}

// WithSeed makes RandomSample deterministic.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // sampling is not security sensitive
	}
}

// WithClock replaces time.Now for timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}
