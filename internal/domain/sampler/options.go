package sampler

import "math/rand"

// Option applies a configuration option to the Sampler.
type Option func(*Sampler)

// WithConfig sets the stratification used when Sample is called without an
// explicit config.
func WithConfig(cfg Config) Option {
	return func(s *Sampler) {
		s.cfg = cfg.normalized()
	}
}

// WithSeed makes the sampler deterministic.
func WithSeed(seed int64) Option {
	return func(s *Sampler) {
		s.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // sampling is not security sensitive
	}
}

// WithSource injects a random source, typically for tests.
func WithSource(src rand.Source) Option {
	return func(s *Sampler) {
		if src != nil {
			s.rng = rand.New(src) //nolint:gosec // sampling is not security sensitive
		}
	}
}
