package entityset

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/marcin-laskowski/Feature-Engineering/schema"
)

// ============================================================================
// FRAME — Column-Oriented Table
// ============================================================================
// A Frame holds one typed slice per column plus a validity mask, so the
// synth engine can aggregate millions of cells without per-row maps.
// Frames are built by the helpers CSV loader or assembled by consumers.
// ============================================================================

// Column is a single typed column. Exactly one of the value slices is
// populated, matching Type. Valid marks non-null cells.
type Column struct {
	Key  string
	Type schema.VarType

	Nums  []float64
	Strs  []string
	Bools []bool
	Times []time.Time

	Valid []bool
}

// Len returns the number of cells in the column.
func (c *Column) Len() int { return len(c.Valid) }

// StringAt renders the cell at row i for display, CSV output, and index keys.
// Null cells render as "".
func (c *Column) StringAt(i int) string {
	if i < 0 || i >= len(c.Valid) || !c.Valid[i] {
		return ""
	}
	switch c.Type {
	case schema.Numeric, schema.Index, schema.Id:
		if c.Nums != nil {
			return formatNum(c.Nums[i])
		}
		return c.Strs[i]
	case schema.Boolean:
		if c.Bools[i] {
			return "true"
		}
		return "false"
	case schema.Datetime:
		return c.Times[i].Format("2006-01-02")
	default:
		return c.Strs[i]
	}
}

// formatNum renders a float without a trailing ".0" for whole values.
func formatNum(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Retype converts a column between numeric and categorical representations.
// Used by variable type overrides at entity creation.
func (c *Column) Retype(to schema.VarType) error {
	if to == c.Type {
		return nil
	}
	switch {
	case (c.Type == schema.Numeric || c.Type == schema.Boolean) && to == schema.Categorical:
		strs := make([]string, c.Len())
		for i := range strs {
			strs[i] = c.StringAt(i)
		}
		c.Strs = strs
		c.Nums = nil
		c.Bools = nil
		c.Type = schema.Categorical
		return nil
	case c.Type == schema.Categorical && to == schema.Numeric:
		nums := make([]float64, c.Len())
		for i := range nums {
			nums[i] = math.NaN()
			if !c.Valid[i] {
				continue
			}
			v, err := schema.ParseNumeric(c.Strs[i])
			if err != nil {
				c.Valid[i] = false
				continue
			}
			nums[i] = v
		}
		c.Nums = nums
		c.Strs = nil
		c.Type = schema.Numeric
		return nil
	case to == schema.Id && (c.Type == schema.Numeric || c.Type == schema.Index):
		c.Type = schema.Id
		return nil
	case to == schema.Index && (c.Type == schema.Numeric || c.Type == schema.Id):
		c.Type = schema.Index
		return nil
	}
	return fmt.Errorf("cannot retype column %q from %s to %s", c.Key, c.Type, to)
}

// ============================================================================
// SERIES — a typed view over selected rows of a column
// ============================================================================

// Series carries the cells of one column at the given row positions, in
// order. Aggregation primitives consume Series.
type Series struct {
	Type schema.VarType

	Nums  []float64
	Strs  []string
	Bools []bool
	Times []time.Time

	Valid []bool
}

// Len returns the number of cells in the series.
func (s Series) Len() int { return len(s.Valid) }

// Series returns a view of the whole column as a Series.
func (c *Column) Series() Series {
	return Series{
		Type:  c.Type,
		Nums:  c.Nums,
		Strs:  c.Strs,
		Bools: c.Bools,
		Times: c.Times,
		Valid: c.Valid,
	}
}

// Take builds a Series from the column cells at the given row indices.
func (c *Column) Take(indices []int) Series {
	s := Series{Type: c.Type, Valid: make([]bool, len(indices))}
	if c.Nums != nil {
		s.Nums = make([]float64, len(indices))
	}
	if c.Strs != nil {
		s.Strs = make([]string, len(indices))
	}
	if c.Bools != nil {
		s.Bools = make([]bool, len(indices))
	}
	if c.Times != nil {
		s.Times = make([]time.Time, len(indices))
	}
	for out, in := range indices {
		s.Valid[out] = c.Valid[in]
		if c.Nums != nil {
			s.Nums[out] = c.Nums[in]
		}
		if c.Strs != nil {
			s.Strs[out] = c.Strs[in]
		}
		if c.Bools != nil {
			s.Bools[out] = c.Bools[in]
		}
		if c.Times != nil {
			s.Times[out] = c.Times[in]
		}
	}
	return s
}

// ============================================================================
// FRAME
// ============================================================================

// Frame is an ordered collection of equal-length columns.
type Frame struct {
	keys  []string
	cols  map[string]*Column
	nrows int
}

// NewFrame creates an empty frame.
func NewFrame() *Frame {
	return &Frame{cols: make(map[string]*Column)}
}

// AddColumn appends a column. All columns of a frame must share one length.
func (f *Frame) AddColumn(c *Column) error {
	if c.Key == "" {
		return fmt.Errorf("column has no key")
	}
	if _, exists := f.cols[c.Key]; exists {
		return fmt.Errorf("duplicate column %q", c.Key)
	}
	if len(f.keys) > 0 && c.Len() != f.nrows {
		return fmt.Errorf("column %q has %d rows, frame has %d", c.Key, c.Len(), f.nrows)
	}
	if len(f.keys) == 0 {
		f.nrows = c.Len()
	}
	f.keys = append(f.keys, c.Key)
	f.cols[c.Key] = c
	return nil
}

// Column returns the column for a key, if present.
func (f *Frame) Column(key string) (*Column, bool) {
	c, ok := f.cols[key]
	return c, ok
}

// Keys returns column keys in insertion order.
func (f *Frame) Keys() []string {
	out := make([]string, len(f.keys))
	copy(out, f.keys)
	return out
}

// NumRows returns the row count.
func (f *Frame) NumRows() int { return f.nrows }

// NumCols returns the column count.
func (f *Frame) NumCols() int { return len(f.keys) }
