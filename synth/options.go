package synth

import "github.com/marcin-laskowski/Feature-Engineering/primitives"

// ============================================================================
// SYNTH OPTIONS — Functional options for DFS
// ============================================================================

// Option configures deep feature synthesis.
type Option func(*config) error

type config struct {
	aggs        []primitives.AggPrimitive
	trans       []primitives.TransformPrimitive
	maxDepth    int
	maxFeatures int
	workers     int
}

// WithAggPrimitives selects the aggregation primitives by name
// ("mean", "max", "percent_true", "last", ...).
func WithAggPrimitives(names ...string) Option {
	return func(c *config) error {
		aggs, err := primitives.LookupAgg(names)
		if err != nil {
			return err
		}
		c.aggs = aggs
		return nil
	}
}

// WithTransPrimitives selects the transform primitives by name
// ("year", "month", "subtract", "divide", ...).
func WithTransPrimitives(names ...string) Option {
	return func(c *config) error {
		trans, err := primitives.LookupTransform(names)
		if err != nil {
			return err
		}
		c.trans = trans
		return nil
	}
}

// WithMaxDepth bounds how many primitives may stack. Features deeper
// than 2 become very convoluted to understand; the default is 2.
func WithMaxDepth(depth int) Option {
	return func(c *config) error {
		c.maxDepth = depth
		return nil
	}
}

// WithMaxFeatures truncates the enumerated feature list. 0 = unlimited.
func WithMaxFeatures(n int) Option {
	return func(c *config) error {
		c.maxFeatures = n
		return nil
	}
}

// WithWorkers bounds the number of features computed concurrently.
// 0 = one worker per feature within a depth level.
func WithWorkers(n int) Option {
	return func(c *config) error {
		c.workers = n
		return nil
	}
}

// applyOptions creates a config from functional options. When no
// primitives are selected, the default sets are used — automated deep
// feature synthesis.
func applyOptions(opts []Option) (*config, error) {
	cfg := &config{maxDepth: 2}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.aggs == nil && cfg.trans == nil {
		cfg.aggs = primitives.DefaultAggregations()
		cfg.trans = primitives.DefaultTransforms()
	}
	if cfg.maxDepth < 1 {
		cfg.maxDepth = 1
	}
	return cfg, nil
}
