package primitives

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcin-laskowski/Feature-Engineering/entityset"
	"github.com/marcin-laskowski/Feature-Engineering/schema"
)

func numSeries(vals ...float64) entityset.Series {
	s := entityset.Series{Type: schema.Numeric, Nums: vals, Valid: make([]bool, len(vals))}
	for i := range s.Valid {
		s.Valid[i] = !math.IsNaN(vals[i])
	}
	return s
}

func TestNumericAggregations(t *testing.T) {
	s := numSeries(10, 20, 30, math.NaN(), 40)

	tests := []struct {
		name string
		want float64
	}{
		{"sum", 100},
		{"mean", 25},
		{"min", 10},
		{"max", 40},
		{"count", 5}, // count includes null cells: it counts rows
	}
	for _, tt := range tests {
		p, err := Lookup(tt.name)
		require.NoError(t, err, tt.name)
		agg := p.(AggPrimitive)
		assert.InDelta(t, tt.want, agg.Aggregate(s), 1e-9, tt.name)
	}
}

func TestStd(t *testing.T) {
	p, err := Lookup("std")
	require.NoError(t, err)
	agg := p.(AggPrimitive)

	// Sample std of {2, 4, 4, 4, 5, 5, 7, 9} is ~2.138
	got := agg.Aggregate(numSeries(2, 4, 4, 4, 5, 5, 7, 9))
	assert.InDelta(t, 2.13809, got, 1e-4)

	// Fewer than two values has no spread
	assert.True(t, math.IsNaN(agg.Aggregate(numSeries(3))))
}

func TestEmptyAggregations(t *testing.T) {
	empty := numSeries()
	for _, name := range []string{"sum", "mean", "min", "max", "std", "last"} {
		p, err := Lookup(name)
		require.NoError(t, err, name)
		agg := p.(AggPrimitive)
		assert.True(t, math.IsNaN(agg.Aggregate(empty)), "%s over no rows should be NaN", name)
	}

	p, _ := Lookup("count")
	assert.Zero(t, p.(AggPrimitive).Aggregate(empty), "count over no rows should be 0")
}

func TestLastTakesLatestValid(t *testing.T) {
	p, err := Lookup("last")
	require.NoError(t, err)
	agg := p.(AggPrimitive)
	assert.True(t, agg.NeedsTimeIndex())

	// Series arrives already time-ordered; trailing null is skipped.
	got := agg.Aggregate(numSeries(5, 7, 9, math.NaN()))
	assert.InDelta(t, 9, got, 1e-9)
}

func TestPercentTrue(t *testing.T) {
	p, err := Lookup("percent_true")
	require.NoError(t, err)
	agg := p.(AggPrimitive)

	s := entityset.Series{
		Type:  schema.Boolean,
		Bools: []bool{true, false, true, true, false},
		Valid: []bool{true, true, true, true, false},
	}
	assert.InDelta(t, 0.75, agg.Aggregate(s), 1e-9, "3 of 4 valid cells are true")
}

func TestNumUnique(t *testing.T) {
	p, err := Lookup("num_unique")
	require.NoError(t, err)
	agg := p.(AggPrimitive)

	s := entityset.Series{
		Type:  schema.Categorical,
		Strs:  []string{"home", "credit", "home", "cash", ""},
		Valid: []bool{true, true, true, true, true},
	}
	assert.InDelta(t, 3, agg.Aggregate(s), 1e-9)
}

func TestDateTransforms(t *testing.T) {
	s := entityset.Series{
		Type:  schema.Datetime,
		Times: []time.Time{time.Date(2002, time.April, 16, 0, 0, 0, 0, time.UTC), {}},
		Valid: []bool{true, false},
	}

	tests := map[string]float64{
		"year":    2002,
		"month":   4,
		"day":     16,
		"weekday": 2, // a Tuesday
	}
	for name, want := range tests {
		p, err := Lookup(name)
		require.NoError(t, err, name)
		tr := p.(TransformPrimitive)
		got := tr.Apply(s)
		require.Len(t, got, 2)
		assert.InDelta(t, want, got[0], 1e-9, name)
		assert.True(t, math.IsNaN(got[1]), "%s of a null cell should be NaN", name)
	}
}

func TestUnaryNumericTransforms(t *testing.T) {
	s := numSeries(-3, 0, math.E)

	p, _ := Lookup("absolute")
	got := p.(TransformPrimitive).Apply(s)
	assert.InDelta(t, 3, got[0], 1e-9)
	assert.InDelta(t, 0, got[1], 1e-9)

	p, _ = Lookup("natural_log")
	got = p.(TransformPrimitive).Apply(s)
	assert.True(t, math.IsNaN(got[0]), "log of a negative should be NaN")
	assert.True(t, math.IsNaN(got[1]), "log of zero should be NaN")
	assert.InDelta(t, 1, got[2], 1e-9)
}

func TestBinaryTransforms(t *testing.T) {
	a := numSeries(10, 6, 4)
	b := numSeries(2, 0, math.NaN())

	tests := map[string][]float64{
		"add":      {12, 6, math.NaN()},
		"subtract": {8, 6, math.NaN()},
		"multiply": {20, 0, math.NaN()},
		"divide":   {5, math.NaN(), math.NaN()},
	}
	for name, want := range tests {
		p, err := Lookup(name)
		require.NoError(t, err, name)
		tr := p.(TransformPrimitive)
		require.Equal(t, 2, tr.Arity())
		got := tr.Apply(a, b)
		for i := range want {
			if math.IsNaN(want[i]) {
				assert.True(t, math.IsNaN(got[i]), "%s[%d]", name, i)
			} else {
				assert.InDelta(t, want[i], got[i], 1e-9, "%s[%d]", name, i)
			}
		}
	}

	add, _ := Lookup("add")
	sub, _ := Lookup("subtract")
	assert.True(t, add.(TransformPrimitive).Commutative())
	assert.False(t, sub.(TransformPrimitive).Commutative())
}

func TestLookupErrors(t *testing.T) {
	_, err := Lookup("mode")
	assert.Error(t, err)

	_, err = LookupAgg([]string{"mean", "month"})
	assert.Error(t, err, "month is a transform, not an aggregation")

	_, err = LookupTransform([]string{"mean"})
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	infos := List()
	require.NotEmpty(t, infos)

	byName := make(map[string]Info)
	for _, info := range infos {
		byName[info.Name] = info
	}
	assert.Equal(t, "aggregation", byName["mean"].Kind)
	assert.Equal(t, "aggregation", byName["percent_true"].Kind)
	assert.Equal(t, "transform", byName["month"].Kind)
	assert.Equal(t, "transform", byName["divide"].Kind)

	assert.Equal(t, []string{"numeric"}, byName["mean"].Inputs)
	assert.Equal(t, []string{"datetime"}, byName["month"].Inputs)
	assert.Equal(t, []string{"numeric", "numeric"}, byName["divide"].Inputs)
	assert.Empty(t, byName["count"].Inputs)

	// Aggregations sort before transforms
	assert.Equal(t, "aggregation", infos[0].Kind)
}
