package primitives

import (
	"fmt"
	"sort"
	"strings"

	"github.com/marcin-laskowski/Feature-Engineering/entityset"
	"github.com/marcin-laskowski/Feature-Engineering/schema"
)

// ============================================================================
// FEATURE PRIMITIVES
// ============================================================================
// A feature primitive is an operation applied to data to create a feature.
// Primitives fall into two categories:
//
//   Aggregation: groups child rows under each parent across a relationship
//   and computes a statistic — the maximum loan amount for each client.
//
//   Transform: operates on one or more columns of a single table — the
//   month of a date, or the difference between two numeric columns.
//
// Simple primitives stack on top of each other to make deep features.
// ============================================================================

// Kind distinguishes aggregation from transform primitives.
type Kind int

const (
	Aggregation Kind = iota
	Transform
)

func (k Kind) String() string {
	if k == Aggregation {
		return "aggregation"
	}
	return "transform"
}

// Primitive is the common surface of all feature primitives.
type Primitive interface {
	Name() string
	Description() string
	Kind() Kind
}

// AggPrimitive reduces the child rows of one parent to a single value.
// Aggregate receives the child cells in time order when the child entity
// has a time index.
type AggPrimitive interface {
	Primitive

	// InputTypes lists acceptable child column types. Empty means the
	// primitive applies to the entity itself rather than a column (count).
	InputTypes() []schema.VarType

	// NeedsTimeIndex reports whether the child entity must carry a time
	// index for the primitive to be meaningful.
	NeedsTimeIndex() bool

	Aggregate(s entityset.Series) float64
}

// TransformPrimitive derives a numeric column from one or two columns of
// the same table.
type TransformPrimitive interface {
	Primitive

	// Arity is 1 for unary transforms, 2 for binary.
	Arity() int

	// InputType is the column type the transform accepts.
	InputType() schema.VarType

	// Commutative reports whether swapped inputs give the same result,
	// so enumeration can skip mirrored pairs (add, multiply).
	Commutative() bool

	Apply(in ...entityset.Series) []float64
}

// ============================================================================
// REGISTRY
// ============================================================================

var registry = map[string]Primitive{}

func register(p Primitive) {
	registry[p.Name()] = p
}

// Lookup returns the primitive registered under a name.
func Lookup(name string) (Primitive, error) {
	p, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown primitive %q", name)
	}
	return p, nil
}

// LookupAgg resolves a list of names to aggregation primitives.
func LookupAgg(names []string) ([]AggPrimitive, error) {
	out := make([]AggPrimitive, 0, len(names))
	for _, name := range names {
		p, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		agg, ok := p.(AggPrimitive)
		if !ok {
			return nil, fmt.Errorf("%q is a %s primitive, not an aggregation", name, p.Kind())
		}
		out = append(out, agg)
	}
	return out, nil
}

// LookupTransform resolves a list of names to transform primitives.
func LookupTransform(names []string) ([]TransformPrimitive, error) {
	out := make([]TransformPrimitive, 0, len(names))
	for _, name := range names {
		p, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		tr, ok := p.(TransformPrimitive)
		if !ok {
			return nil, fmt.Errorf("%q is an %s primitive, not a transform", name, p.Kind())
		}
		out = append(out, tr)
	}
	return out, nil
}

// Info describes one registered primitive for listings.
type Info struct {
	Name        string   `json:"name"`
	Kind        string   `json:"type"`
	Inputs      []string `json:"inputs,omitempty"`
	Description string   `json:"description"`
}

// inputNames renders the column types a primitive accepts. Entity-level
// aggregations (count) accept none.
func inputNames(p Primitive) []string {
	switch t := p.(type) {
	case TransformPrimitive:
		out := make([]string, t.Arity())
		for i := range out {
			out[i] = t.InputType().String()
		}
		return out
	case AggPrimitive:
		types := t.InputTypes()
		out := make([]string, len(types))
		for i, vt := range types {
			out[i] = vt.String()
		}
		return out
	}
	return nil
}

// List returns all registered primitives sorted by kind then name,
// aggregations first.
func List() []Info {
	out := make([]Info, 0, len(registry))
	for _, p := range registry {
		out = append(out, Info{
			Name:        p.Name(),
			Kind:        p.Kind().String(),
			Inputs:      inputNames(p),
			Description: p.Description(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// DefaultAggregations returns the aggregation set used when DFS is run
// without explicit primitives.
func DefaultAggregations() []AggPrimitive {
	aggs, _ := LookupAgg([]string{"sum", "mean", "min", "max", "count", "std", "num_unique"})
	return aggs
}

// DefaultTransforms returns the transform set used when DFS is run
// without explicit primitives.
func DefaultTransforms() []TransformPrimitive {
	trs, _ := LookupTransform([]string{"year", "month", "day", "weekday"})
	return trs
}
