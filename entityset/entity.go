package entityset

import (
	"fmt"
	"math"

	"github.com/marcin-laskowski/Feature-Engineering/schema"
)

// ============================================================================
// ENTITY — a named table inside an EntitySet
// ============================================================================

// Entity is a frame with an identity: a unique index column and an
// optional time index used for time-ordered aggregations.
type Entity struct {
	Name      string
	Frame     *Frame
	Index     string
	TimeIndex string

	rowByKey map[string]int
}

// EntityOption configures AddEntity via functional options.
type EntityOption func(*entityConfig)

type entityConfig struct {
	index         string
	timeIndex     string
	makeIndex     bool
	variableTypes map[string]schema.VarType
}

// WithIndex declares which column uniquely identifies each row.
func WithIndex(key string) EntityOption {
	return func(c *entityConfig) { c.index = key }
}

// WithTimeIndex declares the column that orders rows in time.
func WithTimeIndex(key string) EntityOption {
	return func(c *entityConfig) { c.timeIndex = key }
}

// WithMakeIndex synthesizes a sequential index column with the given key,
// for tables that have no uniquely identifying column.
func WithMakeIndex(key string) EntityOption {
	return func(c *entityConfig) {
		c.index = key
		c.makeIndex = true
	}
}

// WithVariableTypes overrides column types after loading, e.g. forcing a
// 0/1 integer flag to categorical.
func WithVariableTypes(types map[string]schema.VarType) EntityOption {
	return func(c *entityConfig) { c.variableTypes = types }
}

// newEntity builds and validates an Entity from a frame.
func newEntity(name string, frame *Frame, opts ...EntityOption) (*Entity, error) {
	if name == "" {
		return nil, fmt.Errorf("entity has no name")
	}
	if frame == nil || frame.NumCols() == 0 {
		return nil, fmt.Errorf("entity %q has no columns", name)
	}

	var cfg entityConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	for key, t := range cfg.variableTypes {
		col, ok := frame.Column(key)
		if !ok {
			return nil, fmt.Errorf("entity %q: variable type override for unknown column %q", name, key)
		}
		if err := col.Retype(t); err != nil {
			return nil, fmt.Errorf("entity %q: %w", name, err)
		}
	}

	if cfg.makeIndex {
		if _, exists := frame.Column(cfg.index); exists {
			return nil, fmt.Errorf("entity %q: make-index column %q already exists", name, cfg.index)
		}
		if err := frame.AddColumn(sequentialIndex(cfg.index, frame.NumRows())); err != nil {
			return nil, fmt.Errorf("entity %q: %w", name, err)
		}
	}

	if cfg.index == "" {
		return nil, fmt.Errorf("entity %q has no index column; pass WithIndex or WithMakeIndex", name)
	}

	idxCol, ok := frame.Column(cfg.index)
	if !ok {
		return nil, fmt.Errorf("entity %q: index column %q not found", name, cfg.index)
	}
	if idxCol.Type != schema.Index {
		// Promote whatever column was chosen; it must still be unique.
		idxCol.Type = schema.Index
	}

	rowByKey := make(map[string]int, frame.NumRows())
	for i := 0; i < frame.NumRows(); i++ {
		key := idxCol.StringAt(i)
		if key == "" {
			return nil, fmt.Errorf("entity %q: index column %q has a null value at row %d", name, cfg.index, i)
		}
		if prev, dup := rowByKey[key]; dup {
			return nil, fmt.Errorf("entity %q: index column %q has duplicate value %q (rows %d and %d)",
				name, cfg.index, key, prev, i)
		}
		rowByKey[key] = i
	}

	if cfg.timeIndex != "" {
		tCol, ok := frame.Column(cfg.timeIndex)
		if !ok {
			return nil, fmt.Errorf("entity %q: time index column %q not found", name, cfg.timeIndex)
		}
		if tCol.Type != schema.Datetime {
			return nil, fmt.Errorf("entity %q: time index column %q is %s, want datetime",
				name, cfg.timeIndex, tCol.Type)
		}
	}

	return &Entity{
		Name:      name,
		Frame:     frame,
		Index:     cfg.index,
		TimeIndex: cfg.timeIndex,
		rowByKey:  rowByKey,
	}, nil
}

// sequentialIndex builds a synthetic 0..n-1 index column.
func sequentialIndex(key string, n int) *Column {
	col := &Column{
		Key:   key,
		Type:  schema.Index,
		Nums:  make([]float64, n),
		Valid: make([]bool, n),
	}
	for i := 0; i < n; i++ {
		col.Nums[i] = float64(i)
		col.Valid[i] = true
	}
	return col
}

// Row returns the row position for an index value.
func (e *Entity) Row(indexValue string) (int, bool) {
	i, ok := e.rowByKey[indexValue]
	return i, ok
}

// IndexKey returns the index value at a row position.
func (e *Entity) IndexKey(row int) string {
	col, _ := e.Frame.Column(e.Index)
	return col.StringAt(row)
}

// NumRows returns the entity's row count.
func (e *Entity) NumRows() int { return e.Frame.NumRows() }

// timeAt returns the time index value at a row, or zero time when absent.
func (e *Entity) timeAt(row int) (float64, bool) {
	if e.TimeIndex == "" {
		return math.NaN(), false
	}
	col, ok := e.Frame.Column(e.TimeIndex)
	if !ok || !col.Valid[row] {
		return math.NaN(), false
	}
	return float64(col.Times[row].UnixNano()), true
}
