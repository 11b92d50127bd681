package synth

import (
	"fmt"
	"strings"

	"github.com/marcin-laskowski/Feature-Engineering/entityset"
	"github.com/marcin-laskowski/Feature-Engineering/primitives"
	"github.com/marcin-laskowski/Feature-Engineering/schema"
)

// ============================================================================
// FEATURE DEFINITIONS
// ============================================================================
// A feature is a recipe, not values: identity features pass a column
// through, transform features derive a column within one entity, and
// aggregation features reduce child rows across a relationship. The depth
// of a feature is the number of primitives stacked to make it — so
// MEAN(loans.loan_amount) has depth 1 and
// LAST(loans.MEAN(payments.payment_amount)) has depth 2.
// ============================================================================

// FeatureKind distinguishes the three feature shapes.
type FeatureKind int

const (
	Identity FeatureKind = iota
	TransformFeature
	AggregationFeature
)

func (k FeatureKind) String() string {
	switch k {
	case Identity:
		return "identity"
	case TransformFeature:
		return "transform"
	default:
		return "aggregation"
	}
}

// Feature describes one synthesized column on an entity.
type Feature struct {
	Entity string
	Kind   FeatureKind
	Depth  int

	// Identity features
	Column string

	// Transform features
	Trans primitives.TransformPrimitive

	// Aggregation features
	Agg primitives.AggPrimitive
	Rel entityset.Relationship

	// Inputs are the features this one is built from (empty for identity
	// and for entity-level aggregations such as count).
	Inputs []*Feature

	// Type of the produced column. Derived features are always numeric.
	Type schema.VarType

	name string // memoized
}

// Name renders the canonical feature name: loan_amount,
// MONTH(joined), SUBTRACT(income, credit_score),
// MEAN(loans.loan_amount), LAST(loans.MEAN(payments.payment_amount)).
func (f *Feature) Name() string {
	if f.name != "" {
		return f.name
	}
	switch f.Kind {
	case Identity:
		f.name = f.Column
	case TransformFeature:
		args := make([]string, len(f.Inputs))
		for i, in := range f.Inputs {
			args[i] = in.Name()
		}
		f.name = fmt.Sprintf("%s(%s)", strings.ToUpper(f.Trans.Name()), strings.Join(args, ", "))
	case AggregationFeature:
		if len(f.Inputs) == 0 {
			f.name = fmt.Sprintf("%s(%s)", strings.ToUpper(f.Agg.Name()), f.Rel.ChildEntity)
		} else {
			f.name = fmt.Sprintf("%s(%s.%s)", strings.ToUpper(f.Agg.Name()), f.Rel.ChildEntity, f.Inputs[0].Name())
		}
	}
	return f.name
}

// PrimitiveName returns the primitive behind the feature, "" for identity.
func (f *Feature) PrimitiveName() string {
	switch f.Kind {
	case TransformFeature:
		return f.Trans.Name()
	case AggregationFeature:
		return f.Agg.Name()
	}
	return ""
}

// identityFeature wraps an entity column.
func identityFeature(entity string, col *entityset.Column) *Feature {
	return &Feature{
		Entity: entity,
		Kind:   Identity,
		Column: col.Key,
		Type:   col.Type,
	}
}

// transformFeature stacks a transform primitive on input features.
func transformFeature(entity string, tr primitives.TransformPrimitive, inputs ...*Feature) *Feature {
	depth := 0
	for _, in := range inputs {
		if in.Depth > depth {
			depth = in.Depth
		}
	}
	return &Feature{
		Entity: entity,
		Kind:   TransformFeature,
		Depth:  depth + 1,
		Trans:  tr,
		Inputs: inputs,
		Type:   schema.Numeric,
	}
}

// aggregationFeature stacks an aggregation across a relationship.
// input may be nil for entity-level aggregations (count).
func aggregationFeature(rel entityset.Relationship, agg primitives.AggPrimitive, input *Feature) *Feature {
	f := &Feature{
		Entity: rel.ParentEntity,
		Kind:   AggregationFeature,
		Depth:  1,
		Agg:    agg,
		Rel:    rel,
		Type:   schema.Numeric,
	}
	if input != nil {
		f.Inputs = []*Feature{input}
		f.Depth = input.Depth + 1
	}
	return f
}
