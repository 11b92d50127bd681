package synth

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/marcin-laskowski/Feature-Engineering/entityset"
)

// ============================================================================
// FEATURE MATRIX
// ============================================================================
// One row per target entity instance, one column per feature, in the
// target frame's row order. Null cells (NaN aggregates over empty
// groups, failed transforms) render as empty CSV cells and JSON nulls.
// ============================================================================

// FeatureMatrix is the render-ready output of DFS.
type FeatureMatrix struct {
	Target    string
	IndexName string
	Index     []string

	features []*Feature
	columns  []*entityset.Column
}

// NumRows returns the number of target instances.
func (m *FeatureMatrix) NumRows() int { return len(m.Index) }

// NumFeatures returns the number of feature columns.
func (m *FeatureMatrix) NumFeatures() int { return len(m.features) }

// Features returns the feature definitions in column order.
func (m *FeatureMatrix) Features() []*Feature {
	out := make([]*Feature, len(m.features))
	copy(out, m.features)
	return out
}

// FeatureNames returns the feature names in column order.
func (m *FeatureMatrix) FeatureNames() []string {
	names := make([]string, len(m.features))
	for i, f := range m.features {
		names[i] = f.Name()
	}
	return names
}

// Column returns the values of one feature column by name.
func (m *FeatureMatrix) Column(name string) (*entityset.Column, bool) {
	for i, f := range m.features {
		if f.Name() == name {
			return m.columns[i], true
		}
	}
	return nil, false
}

// CellString renders one cell for display or CSV; null cells are "".
func (m *FeatureMatrix) CellString(row, col int) string {
	return m.columns[col].StringAt(row)
}

// Head returns a matrix holding only the first n rows, for previews.
func (m *FeatureMatrix) Head(n int) *FeatureMatrix {
	if n >= m.NumRows() {
		return m
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	cols := make([]*entityset.Column, len(m.columns))
	for i, c := range m.columns {
		s := c.Take(indices)
		cols[i] = &entityset.Column{
			Key: c.Key, Type: s.Type,
			Nums: s.Nums, Strs: s.Strs, Bools: s.Bools, Times: s.Times,
			Valid: s.Valid,
		}
	}
	return &FeatureMatrix{
		Target:    m.Target,
		IndexName: m.IndexName,
		Index:     m.Index[:n],
		features:  m.features,
		columns:   cols,
	}
}

// WriteCSV writes the matrix with the index as the first column.
func (m *FeatureMatrix) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := append([]string{m.IndexName}, m.FeatureNames()...)
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(header))
	for i := 0; i < m.NumRows(); i++ {
		row[0] = m.Index[i]
		for j := range m.columns {
			row[j+1] = m.CellString(i, j)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// RenderText renders a fixed-width preview of up to maxRows rows and
// maxCols feature columns, in the spirit of a dataframe head() dump.
func (m *FeatureMatrix) RenderText(maxRows, maxCols int) string {
	rows := m.NumRows()
	if maxRows > 0 && rows > maxRows {
		rows = maxRows
	}
	cols := len(m.columns)
	truncatedCols := false
	if maxCols > 0 && cols > maxCols {
		cols = maxCols
		truncatedCols = true
	}

	widths := make([]int, cols+1)
	widths[0] = len(m.IndexName)
	for i := 0; i < rows; i++ {
		if len(m.Index[i]) > widths[0] {
			widths[0] = len(m.Index[i])
		}
	}
	for j := 0; j < cols; j++ {
		widths[j+1] = len(m.features[j].Name())
		for i := 0; i < rows; i++ {
			if n := len(m.CellString(i, j)); n > widths[j+1] {
				widths[j+1] = n
			}
		}
	}

	var b strings.Builder
	writeCell := func(val string, w int, last bool) {
		fmt.Fprintf(&b, "%-*s", w, val)
		if !last {
			b.WriteString("  ")
		}
	}

	writeCell(m.IndexName, widths[0], cols == 0)
	for j := 0; j < cols; j++ {
		writeCell(m.features[j].Name(), widths[j+1], j == cols-1)
	}
	if truncatedCols {
		fmt.Fprintf(&b, "  ... (%d more)", len(m.columns)-cols)
	}
	b.WriteByte('\n')

	for i := 0; i < rows; i++ {
		writeCell(m.Index[i], widths[0], cols == 0)
		for j := 0; j < cols; j++ {
			writeCell(m.CellString(i, j), widths[j+1], j == cols-1)
		}
		b.WriteByte('\n')
	}
	if rows < m.NumRows() {
		fmt.Fprintf(&b, "... (%d more rows)\n", m.NumRows()-rows)
	}
	return b.String()
}

// matrixJSON is the wire shape of a feature matrix.
type matrixJSON struct {
	Target    string          `json:"target"`
	IndexName string          `json:"indexName"`
	Index     []string        `json:"index"`
	Features  []featureJSON   `json:"features"`
	Rows      [][]interface{} `json:"rows"`
}

type featureJSON struct {
	Name      string `json:"name"`
	Entity    string `json:"entity"`
	Kind      string `json:"kind"`
	Depth     int    `json:"depth"`
	Primitive string `json:"primitive,omitempty"`
}

// MarshalJSON renders the matrix with nulls for missing cells.
func (m *FeatureMatrix) MarshalJSON() ([]byte, error) {
	out := matrixJSON{
		Target:    m.Target,
		IndexName: m.IndexName,
		Index:     m.Index,
		Features:  make([]featureJSON, len(m.features)),
		Rows:      make([][]interface{}, m.NumRows()),
	}
	for i, f := range m.features {
		out.Features[i] = featureJSON{
			Name:      f.Name(),
			Entity:    f.Entity,
			Kind:      f.Kind.String(),
			Depth:     f.Depth,
			Primitive: f.PrimitiveName(),
		}
	}
	for i := 0; i < m.NumRows(); i++ {
		row := make([]interface{}, len(m.columns))
		for j, c := range m.columns {
			row[j] = cellJSON(c, i)
		}
		out.Rows[i] = row
	}
	return json.Marshal(out)
}

// cellJSON converts a cell to a JSON-safe value (NaN is not valid JSON).
func cellJSON(c *entityset.Column, i int) interface{} {
	if !c.Valid[i] {
		return nil
	}
	switch {
	case c.Nums != nil:
		return c.Nums[i]
	case c.Bools != nil:
		return c.Bools[i]
	case c.Times != nil:
		return c.Times[i].Format("2006-01-02")
	default:
		return c.Strs[i]
	}
}
