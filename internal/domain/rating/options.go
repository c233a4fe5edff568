package rating

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithKFactor sets the adjustment magnitude. Non-positive values are ignored.
func WithKFactor(k float64) Option {
	return func(e *Engine) {
		if k > 0 {
			e.kFactor = k
		}
	}
}
