package synth

import (
	"fmt"

	"github.com/marcin-laskowski/Feature-Engineering/entityset"
	"github.com/marcin-laskowski/Feature-Engineering/schema"
)

// ============================================================================
// FEATURE ENUMERATION
// ============================================================================
// Recursive over relationships: the features of an entity are its own
// columns, transforms of those columns, and aggregations of each child
// entity's features one depth level down. Stacking an aggregation on a
// child's aggregation is what produces depth-2 features like
// LAST(loans.MEAN(payments.payment_amount)).
//
// Index and foreign-key columns never feed primitives. Enumeration order
// is deterministic: column order, then primitive order, then
// relationship order.
// ============================================================================

// BuildFeatures enumerates the features DFS would compute for a target
// entity, without computing any values.
func BuildFeatures(es *entityset.EntitySet, target string, opts ...Option) ([]*Feature, error) {
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return buildFeatures(es, target, cfg)
}

func buildFeatures(es *entityset.EntitySet, target string, cfg *config) ([]*Feature, error) {
	if _, ok := es.Entity(target); !ok {
		return nil, fmt.Errorf("unknown target entity %q", target)
	}

	feats := enumerateEntity(es, cfg, target, cfg.maxDepth, map[string]bool{target: true})

	if cfg.maxFeatures > 0 && len(feats) > cfg.maxFeatures {
		feats = feats[:cfg.maxFeatures]
	}
	return feats, nil
}

// enumerateEntity returns all features of an entity with depth <= budget.
func enumerateEntity(es *entityset.EntitySet, cfg *config, entity string, budget int, visited map[string]bool) []*Feature {
	e, _ := es.Entity(entity)

	var identities []*Feature // usable in the matrix and as primitive input
	var datetimes []*Feature  // transform input only
	for _, key := range e.Frame.Keys() {
		col, _ := e.Frame.Column(key)
		switch col.Type {
		case schema.Numeric, schema.Categorical, schema.Boolean:
			identities = append(identities, identityFeature(entity, col))
		case schema.Datetime:
			datetimes = append(datetimes, identityFeature(entity, col))
		}
		// Index, Id, and Skip columns never become features
	}

	feats := make([]*Feature, 0, len(identities))
	feats = append(feats, identities...)

	if budget < 1 {
		return feats
	}

	// Transforms over the entity's own columns
	var numerics []*Feature
	for _, f := range identities {
		if f.Type == schema.Numeric {
			numerics = append(numerics, f)
		}
	}
	for _, tr := range cfg.trans {
		switch {
		case tr.Arity() == 1 && tr.InputType() == schema.Datetime:
			for _, in := range datetimes {
				feats = append(feats, transformFeature(entity, tr, in))
			}
		case tr.Arity() == 1 && tr.InputType() == schema.Numeric:
			for _, in := range numerics {
				feats = append(feats, transformFeature(entity, tr, in))
			}
		case tr.Arity() == 2 && tr.InputType() == schema.Numeric:
			for i, a := range numerics {
				for j, b := range numerics {
					if i == j {
						continue
					}
					if tr.Commutative() && j < i {
						continue
					}
					feats = append(feats, transformFeature(entity, tr, a, b))
				}
			}
		}
	}

	// Aggregations over each child entity's features one level down
	for _, rel := range es.ChildRelationships(entity) {
		if visited[rel.ChildEntity] {
			continue
		}
		child, _ := es.Entity(rel.ChildEntity)

		childVisited := make(map[string]bool, len(visited)+1)
		for k := range visited {
			childVisited[k] = true
		}
		childVisited[rel.ChildEntity] = true

		childFeats := enumerateEntity(es, cfg, rel.ChildEntity, budget-1, childVisited)

		for _, agg := range cfg.aggs {
			if agg.NeedsTimeIndex() && child.TimeIndex == "" {
				continue
			}
			inputTypes := agg.InputTypes()
			if len(inputTypes) == 0 {
				// Entity-level aggregation (count)
				feats = append(feats, aggregationFeature(rel, agg, nil))
				continue
			}
			for _, cf := range childFeats {
				if !typeAccepted(cf.Type, inputTypes) {
					continue
				}
				feats = append(feats, aggregationFeature(rel, agg, cf))
			}
		}
	}

	return feats
}

func typeAccepted(t schema.VarType, accepted []schema.VarType) bool {
	for _, a := range accepted {
		if a == t {
			return true
		}
	}
	return false
}
