package schema

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ============================================================================
// INFERENCE — Heuristic Column Classification
// ============================================================================
// Inspects raw CSV data and generates a TableSchema automatically.
//
// Classification pipeline per column:
//   1. Sample values → detect type (numeric, datetime, bool, string)
//   2. Type + cardinality → classify variable type for synthesis
//   3. Unique-per-row columns → index candidates; *_id columns → foreign keys
//   4. Suggest table index and time index
//
// Explicit overrides (InferOptions.VariableTypes) win over heuristics,
// mirroring how a repaid/missed flag stored as 0/1 integers is forced to
// categorical when the heuristic would call it boolean.
// ============================================================================

// InferOptions controls inference behavior.
type InferOptions struct {
	SampleSize     int                // Max rows to inspect (0 = default 1000)
	Name           string             // Table name (used in output and *_id matching)
	Index          string             // Force a specific index column
	TimeIndex      string             // Force a specific time index column
	VariableTypes  map[string]VarType // Per-column type overrides (by key)
	RecoverColumns []string           // Force-include columns that would be skipped
}

// Infer generates a TableSchema by inspecting CSV data.
func Infer(data []byte, opts ...InferOptions) (*TableSchema, error) {
	var opt InferOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.SampleSize <= 0 {
		opt.SampleSize = 1000
	}

	reader := csv.NewReader(strings.NewReader(string(data)))

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("CSV has no columns")
	}

	var rows [][]string
	for i := 0; i < opt.SampleSize; i++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // skip malformed rows
		}
		rows = append(rows, row)
	}

	totalRows := len(rows)
	if totalRows == 0 {
		return nil, fmt.Errorf("CSV has no data rows")
	}

	columns := make([]columnAnalysis, len(headers))
	for i, header := range headers {
		columns[i] = analyzeColumn(header, i, rows, totalRows)
	}

	recoverSet := make(map[string]bool)
	for _, col := range opt.RecoverColumns {
		recoverSet[strings.ToLower(col)] = true
	}

	ts := &TableSchema{
		Name:         opt.Name,
		InferredFrom: "CSV",
		InferredAt:   time.Now().Format(time.RFC3339),
	}
	if ts.Name == "" {
		ts.Name = "table"
	}

	for i := range columns {
		col := &columns[i]

		// Explicit override wins
		if override, ok := opt.VariableTypes[col.key]; ok {
			col.varType = override
		}

		if col.varType == Skip {
			if recoverSet[strings.ToLower(col.header)] || recoverSet[col.key] {
				col.varType = Categorical
			} else {
				ts.SkippedColumns = append(ts.SkippedColumns, SkippedColumn{
					Column:      col.header,
					Reason:      col.skipReason,
					Recoverable: col.recoverable,
				})
				continue
			}
		}

		ts.Columns = append(ts.Columns, col.toMeta())
	}

	chooseIndexes(ts, opt)

	return ts, nil
}

// chooseIndexes picks the table index and time index, honoring forced options.
// Only one column can be the index; other index candidates demote to Id.
func chooseIndexes(ts *TableSchema, opt InferOptions) {
	if opt.Index != "" {
		ts.Index = toSnakeCase(opt.Index)
	}
	if opt.TimeIndex != "" {
		ts.TimeIndex = toSnakeCase(opt.TimeIndex)
	}

	for i := range ts.Columns {
		c := &ts.Columns[i]

		switch c.Type {
		case Index:
			if ts.Index == "" {
				ts.Index = c.Key
			} else if c.Key != ts.Index {
				c.Type = Id
				c.TypeName = Id.String()
			}
		case Datetime:
			if ts.TimeIndex == "" {
				ts.TimeIndex = c.Key
			}
		}

		if c.Key == ts.Index && c.Type != Index {
			c.Type = Index
			c.TypeName = Index.String()
		}
	}
}

// ============================================================================
// COLUMN ANALYSIS
// ============================================================================

type columnAnalysis struct {
	header      string
	key         string
	index       int
	varType     VarType
	skipReason  string
	recoverable bool

	uniqueCount int
	totalCount  int
	nullCount   int
	sampleVals  []string
	hasDecimals bool
	timeLayout  string
}

// analyzeColumn inspects all sampled values of a column and classifies it.
func analyzeColumn(header string, index int, rows [][]string, totalRows int) columnAnalysis {
	col := columnAnalysis{
		header:     header,
		key:        toSnakeCase(header),
		index:      index,
		totalCount: totalRows,
	}

	values := make([]string, 0, len(rows))
	uniqueSet := make(map[string]bool)

	for _, row := range rows {
		if index >= len(row) {
			col.nullCount++
			continue
		}
		val := strings.TrimSpace(row[index])
		if val == "" || val == "null" || val == "NULL" || val == "N/A" || val == "n/a" {
			col.nullCount++
			continue
		}
		values = append(values, val)
		uniqueSet[val] = true
	}

	col.uniqueCount = len(uniqueSet)

	if len(values) == 0 {
		col.varType = Skip
		col.skipReason = "All values are empty/null"
		col.recoverable = false
		return col
	}

	col.sampleVals = collectSamples(uniqueSet, 10)

	detected := detectType(values)

	if detected == typeNumeric {
		for _, v := range values {
			if strings.Contains(v, ".") {
				col.hasDecimals = true
				break
			}
		}
	}
	if detected == typeDate {
		col.timeLayout = detectTimeLayout(col.sampleVals)
	}

	col.classify(detected, totalRows)
	return col
}

// classify maps detected raw type + cardinality to a variable type.
func (col *columnAnalysis) classify(detected rawType, totalRows int) {
	uniquePerRow := col.uniqueCount == totalRows && totalRows > 10
	looksLikeKey := strings.HasSuffix(col.key, "_id") || col.key == "id"

	switch detected {

	case typeNumeric:
		if col.hasDecimals {
			// Continuous values are never identifiers
			col.varType = Numeric
			return
		}
		if uniquePerRow {
			// Every value unique — the table's natural index
			col.varType = Index
			return
		}
		if looksLikeKey {
			// Repeating *_id values reference another table
			col.varType = Id
			return
		}
		// Ratio-based: few unique integers at low ratio → coded dimension.
		// Absolute < 20 alone fails on small samples where 6/12 looks "low".
		uniqueRatio := float64(col.uniqueCount) / float64(totalRows)
		if col.uniqueCount < 20 && uniqueRatio < 0.3 {
			col.varType = Categorical
			return
		}
		col.varType = Numeric

	case typeDate:
		col.varType = Datetime

	case typeBool:
		col.varType = Boolean

	case typeString:
		if uniquePerRow {
			if looksLikeKey {
				col.varType = Index
				return
			}
			col.varType = Skip
			col.skipReason = "Unique per row — likely an identifier or free text"
			col.recoverable = false
			return
		}
		if looksLikeKey {
			col.varType = Id
			return
		}
		if col.uniqueCount > totalRows/2 && col.uniqueCount > 50 {
			col.varType = Skip
			col.skipReason = fmt.Sprintf("High cardinality (%d unique values) — not useful for synthesis", col.uniqueCount)
			col.recoverable = true
			return
		}
		col.varType = Categorical
	}
}

func (col *columnAnalysis) toMeta() ColumnMeta {
	return ColumnMeta{
		Key:          col.key,
		DisplayName:  toDisplayName(col.header),
		Type:         col.varType,
		TypeName:     col.varType.String(),
		SampleValues: col.sampleVals,
		UniqueCount:  col.uniqueCount,
		NullCount:    col.nullCount,
		TimeLayout:   col.timeLayout,
	}
}

// ============================================================================
// TYPE DETECTION
// ============================================================================

type rawType int

const (
	typeString rawType = iota
	typeNumeric
	typeDate
	typeBool
)

// detectType inspects values to determine raw column type.
// Requires 80%+ of non-null values to match for numeric/date/bool.
func detectType(values []string) rawType {
	if len(values) == 0 {
		return typeString
	}

	numCount := 0
	dateCount := 0
	boolCount := 0

	for _, v := range values {
		if IsNumeric(v) {
			numCount++
		}
		if isDate(v) {
			dateCount++
		}
		if isBool(v) {
			boolCount++
		}
	}

	threshold := int(float64(len(values)) * 0.8)

	if boolCount >= threshold {
		return typeBool
	}
	if dateCount >= threshold {
		return typeDate
	}
	if numCount >= threshold {
		return typeNumeric
	}
	return typeString
}

// IsNumeric reports whether a raw cell value parses as a number.
// Handles thousand separators and common currency prefixes.
func IsNumeric(s string) bool {
	_, err := ParseNumeric(s)
	return err == nil
}

// ParseNumeric parses a raw cell value as float64, tolerating
// thousand separators and common currency prefixes.
func ParseNumeric(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "") // handle "1,234.56"
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, "€")
	s = strings.TrimPrefix(s, "£")
	if neg {
		s = "-" + s
	}
	return strconv.ParseFloat(s, 64)
}

// DateLayouts lists the Go time layouts inference and loading try, in order.
var DateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"02/01/2006",
	"Jan-2006",
	"January 2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

func isDate(s string) bool {
	s = strings.TrimSpace(s)
	for _, layout := range DateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// detectTimeLayout finds the layout most samples match.
func detectTimeLayout(samples []string) string {
	best := ""
	bestCount := 0
	for _, layout := range DateLayouts {
		count := 0
		for _, s := range samples {
			if _, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
				count++
			}
		}
		if count > bestCount {
			best = layout
			bestCount = count
		}
	}
	return best
}

func isBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "false" || s == "yes" || s == "no" || s == "1" || s == "0"
}

// ParseBool converts a raw cell value to a bool. Second return reports
// whether the value was recognized.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1":
		return true, true
	case "false", "no", "0":
		return false, true
	}
	return false, false
}

// ============================================================================
// STRING UTILITIES
// ============================================================================

// toSnakeCase converts "Column Name" or "columnName" → "column_name".
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) && i > 0 {
			prev := rune(s[i-1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) {
				result.WriteRune('_')
			}
		}
		result.WriteRune(r)
	}

	s = result.String()
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "__", "_")
	s = strings.Trim(s, "_")
	return s
}

// ToKey exposes snake_case key derivation for consumers (helpers, CLI).
func ToKey(s string) string { return toSnakeCase(s) }

// toDisplayName cleans a header for human display.
// "loan_amount" → "Loan Amount", "joined" → "Joined"
func toDisplayName(s string) string {
	if strings.Contains(s, " ") {
		return strings.TrimSpace(s)
	}

	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")

	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
		}
	}
	return strings.Join(words, " ")
}

// collectSamples picks up to maxSamples representative values.
func collectSamples(uniqueSet map[string]bool, maxSamples int) []string {
	samples := make([]string, 0, len(uniqueSet))
	for v := range uniqueSet {
		samples = append(samples, v)
	}

	// Sort for deterministic output
	sort.Strings(samples)

	if len(samples) > maxSamples {
		samples = samples[:maxSamples]
	}
	return samples
}
