package primitives

import (
	"math"

	"github.com/marcin-laskowski/Feature-Engineering/entityset"
	"github.com/marcin-laskowski/Feature-Engineering/schema"
)

// ============================================================================
// AGGREGATION PRIMITIVES
// ============================================================================
// Each reduces the child rows of one parent to a single value. Empty
// groups yield NaN, except count which yields 0 — matching how a client
// with no loans has an undefined mean loan amount but a zero loan count.
// ============================================================================

func init() {
	register(sumAgg{})
	register(meanAgg{})
	register(minAgg{})
	register(maxAgg{})
	register(countAgg{})
	register(stdAgg{})
	register(lastAgg{})
	register(percentTrueAgg{})
	register(numUniqueAgg{})
}

// numericInputs is shared by the plain numeric reducers.
var numericInputs = []schema.VarType{schema.Numeric}

// validNums collects the non-null numeric cells of a series.
func validNums(s entityset.Series) []float64 {
	out := make([]float64, 0, s.Len())
	for i, ok := range s.Valid {
		if ok && !math.IsNaN(s.Nums[i]) {
			out = append(out, s.Nums[i])
		}
	}
	return out
}

// ── sum ─────────────────────────────────────────────────────────────────

type sumAgg struct{}

func (sumAgg) Name() string                 { return "sum" }
func (sumAgg) Description() string          { return "Total of a numeric column across child rows" }
func (sumAgg) Kind() Kind                   { return Aggregation }
func (sumAgg) InputTypes() []schema.VarType { return numericInputs }
func (sumAgg) NeedsTimeIndex() bool         { return false }

func (sumAgg) Aggregate(s entityset.Series) float64 {
	nums := validNums(s)
	if len(nums) == 0 {
		return math.NaN()
	}
	var total float64
	for _, v := range nums {
		total += v
	}
	return total
}

// ── mean ────────────────────────────────────────────────────────────────

type meanAgg struct{}

func (meanAgg) Name() string                 { return "mean" }
func (meanAgg) Description() string          { return "Average of a numeric column across child rows" }
func (meanAgg) Kind() Kind                   { return Aggregation }
func (meanAgg) InputTypes() []schema.VarType { return numericInputs }
func (meanAgg) NeedsTimeIndex() bool         { return false }

func (meanAgg) Aggregate(s entityset.Series) float64 {
	nums := validNums(s)
	if len(nums) == 0 {
		return math.NaN()
	}
	var total float64
	for _, v := range nums {
		total += v
	}
	return total / float64(len(nums))
}

// ── min ─────────────────────────────────────────────────────────────────

type minAgg struct{}

func (minAgg) Name() string                 { return "min" }
func (minAgg) Description() string          { return "Smallest value of a numeric column across child rows" }
func (minAgg) Kind() Kind                   { return Aggregation }
func (minAgg) InputTypes() []schema.VarType { return numericInputs }
func (minAgg) NeedsTimeIndex() bool         { return false }

func (minAgg) Aggregate(s entityset.Series) float64 {
	nums := validNums(s)
	if len(nums) == 0 {
		return math.NaN()
	}
	m := nums[0]
	for _, v := range nums[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// ── max ─────────────────────────────────────────────────────────────────

type maxAgg struct{}

func (maxAgg) Name() string                 { return "max" }
func (maxAgg) Description() string          { return "Largest value of a numeric column across child rows" }
func (maxAgg) Kind() Kind                   { return Aggregation }
func (maxAgg) InputTypes() []schema.VarType { return numericInputs }
func (maxAgg) NeedsTimeIndex() bool         { return false }

func (maxAgg) Aggregate(s entityset.Series) float64 {
	nums := validNums(s)
	if len(nums) == 0 {
		return math.NaN()
	}
	m := nums[0]
	for _, v := range nums[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// ── count ───────────────────────────────────────────────────────────────

type countAgg struct{}

func (countAgg) Name() string                 { return "count" }
func (countAgg) Description() string          { return "Number of child rows for each parent" }
func (countAgg) Kind() Kind                   { return Aggregation }
func (countAgg) InputTypes() []schema.VarType { return nil } // applies to the entity
func (countAgg) NeedsTimeIndex() bool         { return false }

func (countAgg) Aggregate(s entityset.Series) float64 {
	return float64(s.Len())
}

// ── std ─────────────────────────────────────────────────────────────────

type stdAgg struct{}

func (stdAgg) Name() string { return "std" }
func (stdAgg) Description() string {
	return "Sample standard deviation of a numeric column across child rows"
}
func (stdAgg) Kind() Kind                   { return Aggregation }
func (stdAgg) InputTypes() []schema.VarType { return numericInputs }
func (stdAgg) NeedsTimeIndex() bool         { return false }

func (stdAgg) Aggregate(s entityset.Series) float64 {
	nums := validNums(s)
	if len(nums) < 2 {
		return math.NaN()
	}
	var total float64
	for _, v := range nums {
		total += v
	}
	mean := total / float64(len(nums))
	var sq float64
	for _, v := range nums {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(nums)-1))
}

// ── last ────────────────────────────────────────────────────────────────

type lastAgg struct{}

func (lastAgg) Name() string { return "last" }
func (lastAgg) Description() string {
	return "Most recent value of a numeric column, ordered by the child time index"
}
func (lastAgg) Kind() Kind                   { return Aggregation }
func (lastAgg) InputTypes() []schema.VarType { return numericInputs }
func (lastAgg) NeedsTimeIndex() bool         { return true }

func (lastAgg) Aggregate(s entityset.Series) float64 {
	// Series arrives in time order; take the latest non-null cell.
	for i := s.Len() - 1; i >= 0; i-- {
		if s.Valid[i] && !math.IsNaN(s.Nums[i]) {
			return s.Nums[i]
		}
	}
	return math.NaN()
}

// ── percent_true ────────────────────────────────────────────────────────

type percentTrueAgg struct{}

func (percentTrueAgg) Name() string { return "percent_true" }
func (percentTrueAgg) Description() string {
	return "Fraction of child rows where a boolean column is true"
}
func (percentTrueAgg) Kind() Kind                   { return Aggregation }
func (percentTrueAgg) InputTypes() []schema.VarType { return []schema.VarType{schema.Boolean} }
func (percentTrueAgg) NeedsTimeIndex() bool         { return false }

func (percentTrueAgg) Aggregate(s entityset.Series) float64 {
	total := 0
	trues := 0
	for i, ok := range s.Valid {
		if !ok {
			continue
		}
		total++
		if s.Bools[i] {
			trues++
		}
	}
	if total == 0 {
		return math.NaN()
	}
	return float64(trues) / float64(total)
}

// ── num_unique ──────────────────────────────────────────────────────────

type numUniqueAgg struct{}

func (numUniqueAgg) Name() string { return "num_unique" }
func (numUniqueAgg) Description() string {
	return "Number of distinct values of a categorical column across child rows"
}
func (numUniqueAgg) Kind() Kind                   { return Aggregation }
func (numUniqueAgg) InputTypes() []schema.VarType { return []schema.VarType{schema.Categorical} }
func (numUniqueAgg) NeedsTimeIndex() bool         { return false }

func (numUniqueAgg) Aggregate(s entityset.Series) float64 {
	seen := make(map[string]bool)
	for i, ok := range s.Valid {
		if ok && s.Strs[i] != "" {
			seen[s.Strs[i]] = true
		}
	}
	if len(seen) == 0 {
		return math.NaN()
	}
	return float64(len(seen))
}
