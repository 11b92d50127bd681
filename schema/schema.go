package schema

import (
	"fmt"
	"strings"
)

// ============================================================================
// SCHEMA — Describes the shape of a table for the entity set + synth engine
// ============================================================================
// Auto-inferred from raw CSV (Infer) or built by consumer apps.
// The helpers package uses schema metadata to parse rows into typed columns.
// The synth engine uses variable types to decide which columns can feed
// which primitives.
// ============================================================================

// VarType classifies a column for feature synthesis.
type VarType int

const (
	Unknown VarType = iota
	Index           // uniquely identifies each row of its table
	Id              // references another table's index (foreign key)
	Numeric
	Categorical
	Boolean
	Datetime
	Skip // unusable for synthesis (free text, all-null, ...)
)

var varTypeNames = map[VarType]string{
	Unknown:     "unknown",
	Index:       "index",
	Id:          "id",
	Numeric:     "numeric",
	Categorical: "categorical",
	Boolean:     "boolean",
	Datetime:    "datetime",
	Skip:        "skip",
}

func (t VarType) String() string {
	if name, ok := varTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseVarType parses a type name ("numeric", "categorical", ...).
// Used for variable type overrides in config files.
func ParseVarType(s string) (VarType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range varTypeNames {
		if name == s {
			return t, nil
		}
	}
	return Unknown, fmt.Errorf("unknown variable type %q", s)
}

// ColumnMeta describes a single column.
type ColumnMeta struct {
	Key          string   `json:"key"`
	DisplayName  string   `json:"displayName"`
	Type         VarType  `json:"-"`
	TypeName     string   `json:"type"`
	SampleValues []string `json:"sampleValues,omitempty"`
	UniqueCount  int      `json:"uniqueCount"`
	NullCount    int      `json:"nullCount"`

	// Datetime columns carry the Go layout the values matched,
	// so the loader can parse without re-guessing.
	TimeLayout string `json:"timeLayout,omitempty"`
}

// SkippedColumn records why a column was excluded during inference.
type SkippedColumn struct {
	Column      string `json:"column"`
	Reason      string `json:"reason"`
	Recoverable bool   `json:"recoverable"`
}

// TableSchema describes the complete shape of one table.
type TableSchema struct {
	Name    string       `json:"name"`
	Columns []ColumnMeta `json:"columns"`

	// Suggested index / time index (may be empty).
	Index     string `json:"index,omitempty"`
	TimeIndex string `json:"timeIndex,omitempty"`

	SkippedColumns []SkippedColumn `json:"skippedColumns,omitempty"`

	// Inference metadata
	InferredFrom string `json:"inferredFrom,omitempty"`
	InferredAt   string `json:"inferredAt,omitempty"`
}

// Column returns the metadata for a column key, if present.
func (ts TableSchema) Column(key string) (ColumnMeta, bool) {
	for _, c := range ts.Columns {
		if c.Key == key {
			return c, true
		}
	}
	return ColumnMeta{}, false
}

// ColumnKeys returns all column keys in order.
func (ts TableSchema) ColumnKeys() []string {
	keys := make([]string, len(ts.Columns))
	for i, c := range ts.Columns {
		keys[i] = c.Key
	}
	return keys
}
