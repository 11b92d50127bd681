package synth

import (
	"context"
	"fmt"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/marcin-laskowski/Feature-Engineering/entityset"
	"github.com/marcin-laskowski/Feature-Engineering/schema"
)

// ============================================================================
// FEATURE COMPUTATION
// ============================================================================
// Features are evaluated bottom-up by depth level: a feature's inputs
// always sit at a lower depth, so once level d-1 is done every feature at
// level d can be computed independently. Within a level, features run
// concurrently under an errgroup.
// ============================================================================

type computer struct {
	es *entityset.EntitySet

	mu   sync.Mutex
	cols map[string]*entityset.Column
}

func newComputer(es *entityset.EntitySet) *computer {
	return &computer{es: es, cols: make(map[string]*entityset.Column)}
}

func cacheKey(f *Feature) string {
	return f.Entity + "\x00" + f.Name()
}

// run computes the given features and everything they depend on.
func (c *computer) run(ctx context.Context, feats []*Feature, workers int) error {
	levels := map[int][]*Feature{}
	maxDepth := 0
	seen := map[string]bool{}

	var collect func(f *Feature)
	collect = func(f *Feature) {
		key := cacheKey(f)
		if seen[key] {
			return
		}
		seen[key] = true
		levels[f.Depth] = append(levels[f.Depth], f)
		if f.Depth > maxDepth {
			maxDepth = f.Depth
		}
		for _, in := range f.Inputs {
			collect(in)
		}
	}
	for _, f := range feats {
		collect(f)
	}

	for depth := 0; depth <= maxDepth; depth++ {
		level := levels[depth]
		if len(level) == 0 {
			continue
		}
		g, gctx := errgroup.WithContext(ctx)
		if workers > 0 {
			g.SetLimit(workers)
		}
		for _, f := range level {
			f := f
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				col, err := c.eval(f)
				if err != nil {
					return err
				}
				c.mu.Lock()
				c.cols[cacheKey(f)] = col
				c.mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// column returns a computed feature column from the cache.
func (c *computer) column(f *Feature) (*entityset.Column, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	col, ok := c.cols[cacheKey(f)]
	if !ok {
		return nil, fmt.Errorf("feature %s on %s has not been computed", f.Name(), f.Entity)
	}
	return col, nil
}

// eval computes one feature column. Inputs are read from the cache and
// are guaranteed computed by the level ordering in run.
func (c *computer) eval(f *Feature) (*entityset.Column, error) {
	switch f.Kind {
	case Identity:
		e, ok := c.es.Entity(f.Entity)
		if !ok {
			return nil, fmt.Errorf("unknown entity %q", f.Entity)
		}
		col, ok := e.Frame.Column(f.Column)
		if !ok {
			return nil, fmt.Errorf("entity %q has no column %q", f.Entity, f.Column)
		}
		return col, nil

	case TransformFeature:
		in := make([]entityset.Series, len(f.Inputs))
		for i, input := range f.Inputs {
			col, err := c.column(input)
			if err != nil {
				return nil, err
			}
			in[i] = col.Series()
		}
		return numericColumn(f.Name(), f.Trans.Apply(in...)), nil

	case AggregationFeature:
		return c.evalAggregation(f)
	}
	return nil, fmt.Errorf("unknown feature kind %d", f.Kind)
}

// evalAggregation reduces child rows under each parent row.
func (c *computer) evalAggregation(f *Feature) (*entityset.Column, error) {
	parent, ok := c.es.Entity(f.Rel.ParentEntity)
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", f.Rel.ParentEntity)
	}
	child, ok := c.es.Entity(f.Rel.ChildEntity)
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", f.Rel.ChildEntity)
	}

	// Input column lives on the child entity. Entity-level aggregations
	// (count) read the child's index column, which every entity has.
	var childCol *entityset.Column
	if len(f.Inputs) > 0 {
		col, err := c.column(f.Inputs[0])
		if err != nil {
			return nil, err
		}
		childCol = col
	} else {
		col, ok := child.Frame.Column(child.Index)
		if !ok {
			return nil, fmt.Errorf("entity %q has no index column", child.Name)
		}
		childCol = col
	}

	n := parent.NumRows()
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		rows := c.es.ChildRows(f.Rel, parent.IndexKey(i))
		vals[i] = f.Agg.Aggregate(childCol.Take(rows))
	}
	return numericColumn(f.Name(), vals), nil
}

// numericColumn wraps derived values; NaN cells are null.
func numericColumn(key string, vals []float64) *entityset.Column {
	col := &entityset.Column{
		Key:   key,
		Type:  schema.Numeric,
		Nums:  vals,
		Valid: make([]bool, len(vals)),
	}
	for i, v := range vals {
		col.Valid[i] = !math.IsNaN(v)
	}
	return col
}
