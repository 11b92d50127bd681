package helpers

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/marcin-laskowski/Feature-Engineering/entityset"
	"github.com/marcin-laskowski/Feature-Engineering/schema"
)

// ============================================================================
// CSV HELPER — Parses CSV data into entityset Frames
// ============================================================================
// Consumer reads the CSV from wherever it lives (file, S3, Sheets).
// This helper converts the raw bytes into typed columns using the schema.
// ============================================================================

// LoadCSV parses CSV bytes into a Frame using a table schema for typing.
// Columns absent from the schema (skipped during inference) are dropped.
// Cells that fail to parse become nulls.
func LoadCSV(data []byte, ts schema.TableSchema) (*entityset.Frame, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}

	// Column position → schema metadata
	metas := make([]*schema.ColumnMeta, len(headers))
	for i, h := range headers {
		key := schema.ToKey(strings.TrimSpace(h))
		if meta, ok := ts.Column(key); ok {
			m := meta
			metas[i] = &m
		}
		// Unmapped columns are silently skipped
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // skip malformed rows
		}
		rows = append(rows, row)
	}

	frame := entityset.NewFrame()
	for i, meta := range metas {
		if meta == nil {
			continue
		}
		col := buildColumn(*meta, rows, i)
		if err := frame.AddColumn(col); err != nil {
			return nil, err
		}
	}
	if frame.NumCols() == 0 {
		return nil, fmt.Errorf("no schema columns matched the CSV headers")
	}
	return frame, nil
}

// LoadCSVAuto infers a schema and loads the frame in one call.
// Returns the frame together with the inferred schema so callers can
// inspect the suggested index and time index.
func LoadCSVAuto(data []byte, opts ...schema.InferOptions) (*entityset.Frame, *schema.TableSchema, error) {
	ts, err := schema.Infer(data, opts...)
	if err != nil {
		return nil, nil, err
	}
	frame, err := LoadCSV(data, *ts)
	if err != nil {
		return nil, nil, err
	}
	return frame, ts, nil
}

// LoadCSVFile reads a CSV file and loads it with an inferred schema.
func LoadCSVFile(path string, opts ...schema.InferOptions) (*entityset.Frame, *schema.TableSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	opt := schema.InferOptions{}
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.Name == "" {
		opt.Name = tableNameFromPath(path)
	}
	return LoadCSVAuto(data, opt)
}

// buildColumn parses one raw column into a typed entityset.Column.
func buildColumn(meta schema.ColumnMeta, rows [][]string, pos int) *entityset.Column {
	n := len(rows)
	col := &entityset.Column{
		Key:   meta.Key,
		Type:  meta.Type,
		Valid: make([]bool, n),
	}

	cell := func(i int) (string, bool) {
		if pos >= len(rows[i]) {
			return "", false
		}
		v := strings.TrimSpace(rows[i][pos])
		if v == "" || v == "null" || v == "NULL" || v == "N/A" || v == "n/a" {
			return "", false
		}
		return v, true
	}

	switch meta.Type {
	case schema.Numeric, schema.Index, schema.Id:
		col.Nums = make([]float64, n)
		for i := range rows {
			col.Nums[i] = math.NaN()
			raw, ok := cell(i)
			if !ok {
				continue
			}
			if v, err := schema.ParseNumeric(raw); err == nil {
				col.Nums[i] = v
				col.Valid[i] = true
			} else if meta.Type != schema.Numeric {
				// Non-numeric identifiers stay as strings
				return buildStringKeyColumn(meta, rows, pos)
			}
		}

	case schema.Datetime:
		col.Times = make([]time.Time, n)
		for i := range rows {
			raw, ok := cell(i)
			if !ok {
				continue
			}
			if t, ok := parseTime(raw, meta.TimeLayout); ok {
				col.Times[i] = t
				col.Valid[i] = true
			}
		}

	case schema.Boolean:
		col.Bools = make([]bool, n)
		for i := range rows {
			raw, ok := cell(i)
			if !ok {
				continue
			}
			if b, ok := schema.ParseBool(raw); ok {
				col.Bools[i] = b
				col.Valid[i] = true
			}
		}

	default: // Categorical and anything else stays textual
		col.Strs = make([]string, n)
		for i := range rows {
			if raw, ok := cell(i); ok {
				col.Strs[i] = raw
				col.Valid[i] = true
			}
		}
	}

	return col
}

// buildStringKeyColumn loads an index/id column whose values are not numeric.
func buildStringKeyColumn(meta schema.ColumnMeta, rows [][]string, pos int) *entityset.Column {
	n := len(rows)
	col := &entityset.Column{
		Key:   meta.Key,
		Type:  meta.Type,
		Strs:  make([]string, n),
		Valid: make([]bool, n),
	}
	for i := range rows {
		if pos >= len(rows[i]) {
			continue
		}
		v := strings.TrimSpace(rows[i][pos])
		if v != "" {
			col.Strs[i] = v
			col.Valid[i] = true
		}
	}
	return col
}

// parseTime tries the schema's detected layout first, then the shared table.
func parseTime(s, layout string) (time.Time, bool) {
	if layout != "" {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, l := range schema.DateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// tableNameFromPath derives an entity name from a file path:
// "data/clients.csv" → "clients".
func tableNameFromPath(path string) string {
	base := path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return schema.ToKey(base)
}
