package synth

import (
	"context"
	"fmt"

	"github.com/marcin-laskowski/Feature-Engineering/entityset"
	"github.com/marcin-laskowski/Feature-Engineering/logging"
)

// ============================================================================
// DEEP FEATURE SYNTHESIS
// ============================================================================
// Entry point: DFS(ctx, es, target, opts...)
//
// Pipeline:
//   1. Enumerate feature definitions (BuildFeatures)
//   2. Compute feature columns bottom-up by depth level
//   3. Assemble the feature matrix, one row per target instance
//
// With no primitive options, DFS runs in automated mode and tries the
// default primitive combinations up to the configured depth.
// ============================================================================

// DFS enumerates and computes a feature matrix for the target entity.
func DFS(ctx context.Context, es *entityset.EntitySet, target string, opts ...Option) (*FeatureMatrix, error) {
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	feats, err := buildFeatures(es, target, cfg)
	if err != nil {
		return nil, err
	}

	log := logging.WithComponent("synth")
	log.Info().
		Str("entityset", es.Name).
		Str("target", target).
		Int("max_depth", cfg.maxDepth).
		Int("features", len(feats)).
		Msg("enumerated features")

	matrix, err := CalculateMatrix(ctx, es, target, feats, cfg.workers)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("rows", matrix.NumRows()).
		Int("features", matrix.NumFeatures()).
		Msg("computed feature matrix")

	return matrix, nil
}

// CalculateMatrix computes values for already-enumerated features.
// workers bounds concurrency within a depth level (0 = unbounded).
func CalculateMatrix(ctx context.Context, es *entityset.EntitySet, target string, feats []*Feature, workers int) (*FeatureMatrix, error) {
	e, ok := es.Entity(target)
	if !ok {
		return nil, fmt.Errorf("unknown target entity %q", target)
	}
	for _, f := range feats {
		if f.Entity != target {
			return nil, fmt.Errorf("feature %s belongs to entity %q, not target %q", f.Name(), f.Entity, target)
		}
	}

	comp := newComputer(es)
	if err := comp.run(ctx, feats, workers); err != nil {
		return nil, err
	}

	index := make([]string, e.NumRows())
	for i := range index {
		index[i] = e.IndexKey(i)
	}

	columns := make([]*entityset.Column, len(feats))
	for i, f := range feats {
		col, err := comp.column(f)
		if err != nil {
			return nil, err
		}
		columns[i] = col
	}

	return &FeatureMatrix{
		Target:    target,
		IndexName: e.Index,
		Index:     index,
		features:  feats,
		columns:   columns,
	}, nil
}
