package synth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcin-laskowski/Feature-Engineering/entityset"
	"github.com/marcin-laskowski/Feature-Engineering/helpers"
	"github.com/marcin-laskowski/Feature-Engineering/schema"
	"github.com/marcin-laskowski/Feature-Engineering/synth"
)

// ============================================================================
// DEEP FEATURE SYNTHESIS TESTS
// ============================================================================
// Three-table fixture: clients (parent) → loans (child) → payments
// (grandchild). Client 3 has no loans, so empty-group semantics are
// visible in every aggregate.
// ============================================================================

var clientsCSV = []byte(`client_id,joined,income
1,2002-04-16,100000
2,2007-11-14,50000
3,2013-03-11,75000
`)

var loansCSV = []byte(`loan_id,client_id,loan_type,loan_amount,repaid,loan_start
10,1,home,1000,1,2002-05-01
11,1,credit,3000,0,2003-06-01
12,1,cash,2000,1,2004-07-01
20,2,home,4000,1,2005-01-15
21,2,cash,6000,0,2006-02-20
`)

var paymentsCSV = []byte(`loan_id,payment_amount,payment_date,missed
10,100,2002-06-01,0
10,200,2002-07-01,1
11,300,2003-07-01,0
12,250,2004-08-01,0
12,350,2004-09-01,0
20,400,2005-02-01,0
21,500,2006-03-01,1
21,700,2006-04-01,0
`)

func buildSet(t *testing.T) *entityset.EntitySet {
	t.Helper()

	clients, err := helpers.LoadCSV(clientsCSV, schema.TableSchema{
		Name: "clients",
		Columns: []schema.ColumnMeta{
			{Key: "client_id", Type: schema.Index},
			{Key: "joined", Type: schema.Datetime, TimeLayout: "2006-01-02"},
			{Key: "income", Type: schema.Numeric},
		},
	})
	require.NoError(t, err)

	loans, err := helpers.LoadCSV(loansCSV, schema.TableSchema{
		Name: "loans",
		Columns: []schema.ColumnMeta{
			{Key: "loan_id", Type: schema.Index},
			{Key: "client_id", Type: schema.Id},
			{Key: "loan_type", Type: schema.Categorical},
			{Key: "loan_amount", Type: schema.Numeric},
			{Key: "repaid", Type: schema.Boolean},
			{Key: "loan_start", Type: schema.Datetime, TimeLayout: "2006-01-02"},
		},
	})
	require.NoError(t, err)

	payments, err := helpers.LoadCSV(paymentsCSV, schema.TableSchema{
		Name: "payments",
		Columns: []schema.ColumnMeta{
			{Key: "loan_id", Type: schema.Id},
			{Key: "payment_amount", Type: schema.Numeric},
			{Key: "payment_date", Type: schema.Datetime, TimeLayout: "2006-01-02"},
			{Key: "missed", Type: schema.Boolean},
		},
	})
	require.NoError(t, err)

	es := entityset.New("clients")
	require.NoError(t, es.AddEntity("clients", clients,
		entityset.WithIndex("client_id"), entityset.WithTimeIndex("joined")))
	require.NoError(t, es.AddEntity("loans", loans,
		entityset.WithIndex("loan_id"), entityset.WithTimeIndex("loan_start")))
	require.NoError(t, es.AddEntity("payments", payments,
		entityset.WithMakeIndex("payment_id"), entityset.WithTimeIndex("payment_date")))
	require.NoError(t, es.AddRelationship("clients", "client_id", "loans", "client_id"))
	require.NoError(t, es.AddRelationship("loans", "loan_id", "payments", "loan_id"))
	return es
}

// value reads a single cell by feature name and client id.
func value(t *testing.T, m *synth.FeatureMatrix, feature, client string) (float64, bool) {
	t.Helper()
	col, ok := m.Column(feature)
	require.True(t, ok, "feature %s not in matrix", feature)
	for i, idx := range m.Index {
		if idx == client {
			return col.Nums[i], col.Valid[i]
		}
	}
	t.Fatalf("client %s not in matrix index", client)
	return 0, false
}

func TestDFSDepthOneAggregations(t *testing.T) {
	es := buildSet(t)

	m, err := synth.DFS(context.Background(), es, "clients",
		synth.WithAggPrimitives("mean", "max", "min", "count", "percent_true", "last"),
		synth.WithTransPrimitives("month", "year"),
		synth.WithMaxDepth(1),
	)
	require.NoError(t, err)
	assert.Equal(t, 3, m.NumRows())

	v, ok := value(t, m, "MEAN(loans.loan_amount)", "1")
	require.True(t, ok)
	assert.InDelta(t, 2000, v, 1e-9)

	v, _ = value(t, m, "MAX(loans.loan_amount)", "1")
	assert.InDelta(t, 3000, v, 1e-9)

	v, _ = value(t, m, "MIN(loans.loan_amount)", "2")
	assert.InDelta(t, 4000, v, 1e-9)

	v, _ = value(t, m, "COUNT(loans)", "1")
	assert.InDelta(t, 3, v, 1e-9)

	v, _ = value(t, m, "PERCENT_TRUE(loans.repaid)", "1")
	assert.InDelta(t, 2.0/3.0, v, 1e-9)

	// Last loan of client 1 by loan_start is loan 12 (2004-07-01)
	v, _ = value(t, m, "LAST(loans.loan_amount)", "1")
	assert.InDelta(t, 2000, v, 1e-9)
}

func TestDFSEmptyGroupIsNull(t *testing.T) {
	es := buildSet(t)

	m, err := synth.DFS(context.Background(), es, "clients",
		synth.WithAggPrimitives("mean", "count"),
		synth.WithMaxDepth(1),
	)
	require.NoError(t, err)

	// Client 3 has no loans: undefined mean, zero count.
	_, ok := value(t, m, "MEAN(loans.loan_amount)", "3")
	assert.False(t, ok, "aggregate over no child rows should be null")

	v, ok := value(t, m, "COUNT(loans)", "3")
	require.True(t, ok)
	assert.Zero(t, v)
}

func TestDFSTransformFeatures(t *testing.T) {
	es := buildSet(t)

	m, err := synth.DFS(context.Background(), es, "clients",
		synth.WithAggPrimitives("mean"),
		synth.WithTransPrimitives("month", "year", "natural_log"),
		synth.WithMaxDepth(1),
	)
	require.NoError(t, err)

	v, _ := value(t, m, "MONTH(joined)", "1")
	assert.InDelta(t, 4, v, 1e-9)

	v, _ = value(t, m, "YEAR(joined)", "2")
	assert.InDelta(t, 2007, v, 1e-9)

	v, _ = value(t, m, "NATURAL_LOG(income)", "1")
	assert.InDelta(t, math.Log(100000), v, 1e-9)
}

func TestDFSDepthTwoStacking(t *testing.T) {
	es := buildSet(t)

	m, err := synth.DFS(context.Background(), es, "clients",
		synth.WithAggPrimitives("mean", "last"),
		synth.WithTransPrimitives("month"),
		synth.WithMaxDepth(2),
	)
	require.NoError(t, err)

	// Depth 2: average payment of the most recent loan.
	// Client 1's latest loan is 12, whose payments average (250+350)/2.
	v, ok := value(t, m, "LAST(loans.MEAN(payments.payment_amount))", "1")
	require.True(t, ok)
	assert.InDelta(t, 300, v, 1e-9)

	// Client 2's latest loan is 21, payments (500+700)/2.
	v, _ = value(t, m, "LAST(loans.MEAN(payments.payment_amount))", "2")
	assert.InDelta(t, 600, v, 1e-9)

	// Client 3 has no loans at all.
	_, ok = value(t, m, "LAST(loans.MEAN(payments.payment_amount))", "3")
	assert.False(t, ok)

	// Depth 2: mean over a child transform.
	// Client 2's loans start in January and February.
	v, _ = value(t, m, "MEAN(loans.MONTH(loan_start))", "2")
	assert.InDelta(t, 1.5, v, 1e-9)

	// Every feature respects the depth bound.
	for _, f := range m.Features() {
		assert.LessOrEqual(t, f.Depth, 2, f.Name())
	}
}

func TestDFSBinaryTransforms(t *testing.T) {
	// A second numeric column on clients gives binary transforms a pair.
	clients, err := helpers.LoadCSV([]byte(`client_id,income,spending
1,100000,40000
2,50000,25000
`), schema.TableSchema{
		Name: "clients",
		Columns: []schema.ColumnMeta{
			{Key: "client_id", Type: schema.Index},
			{Key: "income", Type: schema.Numeric},
			{Key: "spending", Type: schema.Numeric},
		},
	})
	require.NoError(t, err)

	es := entityset.New("clients")
	require.NoError(t, es.AddEntity("clients", clients, entityset.WithIndex("client_id")))

	m, err := synth.DFS(context.Background(), es, "clients",
		synth.WithTransPrimitives("subtract", "divide", "add"),
		synth.WithMaxDepth(1),
	)
	require.NoError(t, err)

	v, _ := value(t, m, "SUBTRACT(income, spending)", "1")
	assert.InDelta(t, 60000, v, 1e-9)

	// Non-commutative transforms keep both orderings
	v, _ = value(t, m, "SUBTRACT(spending, income)", "1")
	assert.InDelta(t, -60000, v, 1e-9)

	v, _ = value(t, m, "DIVIDE(income, spending)", "2")
	assert.InDelta(t, 2, v, 1e-9)

	// Commutative transforms keep only one ordering
	names := m.FeatureNames()
	assert.Contains(t, names, "ADD(income, spending)")
	assert.NotContains(t, names, "ADD(spending, income)")
}

func TestBuildFeaturesDeterministic(t *testing.T) {
	es := buildSet(t)

	first, err := synth.BuildFeatures(es, "clients",
		synth.WithAggPrimitives("mean", "max", "last", "count", "percent_true"),
		synth.WithTransPrimitives("month", "year"),
	)
	require.NoError(t, err)

	second, err := synth.BuildFeatures(es, "clients",
		synth.WithAggPrimitives("mean", "max", "last", "count", "percent_true"),
		synth.WithTransPrimitives("month", "year"),
	)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Name(), second[i].Name())
	}
}

func TestBuildFeaturesSkipsKeysAndRespectsTime(t *testing.T) {
	es := buildSet(t)

	feats, err := synth.BuildFeatures(es, "clients",
		synth.WithAggPrimitives("mean", "last"),
		synth.WithTransPrimitives("month"),
	)
	require.NoError(t, err)

	for _, f := range feats {
		name := f.Name()
		assert.NotEqual(t, "client_id", name, "index columns never become features")
		assert.False(t, strings.Contains(name, "loans.client_id"), "foreign keys never feed primitives: %s", name)
		assert.False(t, strings.Contains(name, "payments.loan_id"), "foreign keys never feed primitives: %s", name)
	}
}

func TestLastSkippedWithoutTimeIndex(t *testing.T) {
	// Same fixture, but loans carries no time index: last cannot order
	// child rows, so no LAST features over loans may be enumerated.
	clients, err := helpers.LoadCSV(clientsCSV, schema.TableSchema{
		Name: "clients",
		Columns: []schema.ColumnMeta{
			{Key: "client_id", Type: schema.Index},
			{Key: "income", Type: schema.Numeric},
		},
	})
	require.NoError(t, err)
	loans, err := helpers.LoadCSV(loansCSV, schema.TableSchema{
		Name: "loans",
		Columns: []schema.ColumnMeta{
			{Key: "loan_id", Type: schema.Index},
			{Key: "client_id", Type: schema.Id},
			{Key: "loan_amount", Type: schema.Numeric},
		},
	})
	require.NoError(t, err)

	es := entityset.New("clients")
	require.NoError(t, es.AddEntity("clients", clients, entityset.WithIndex("client_id")))
	require.NoError(t, es.AddEntity("loans", loans, entityset.WithIndex("loan_id")))
	require.NoError(t, es.AddRelationship("clients", "client_id", "loans", "client_id"))

	feats, err := synth.BuildFeatures(es, "clients", synth.WithAggPrimitives("mean", "last"))
	require.NoError(t, err)

	for _, f := range feats {
		assert.False(t, strings.HasPrefix(f.Name(), "LAST("), "last needs a child time index: %s", f.Name())
	}
}

func TestDFSAutomatedMode(t *testing.T) {
	es := buildSet(t)

	// No primitives given: DFS applies the default combinations.
	m, err := synth.DFS(context.Background(), es, "clients", synth.WithMaxDepth(2))
	require.NoError(t, err)

	names := m.FeatureNames()
	assert.Contains(t, names, "income")
	assert.Contains(t, names, "MEAN(loans.loan_amount)")
	assert.Contains(t, names, "COUNT(loans)")
	assert.Contains(t, names, "MONTH(joined)")
	assert.Contains(t, names, "MEAN(loans.MEAN(payments.payment_amount))")
	assert.Greater(t, len(names), 30, "automated mode should synthesize many features")
}

func TestDFSMaxFeatures(t *testing.T) {
	es := buildSet(t)

	m, err := synth.DFS(context.Background(), es, "clients",
		synth.WithMaxDepth(2), synth.WithMaxFeatures(10))
	require.NoError(t, err)
	assert.Equal(t, 10, m.NumFeatures())
}

func TestDFSUnknownInputs(t *testing.T) {
	es := buildSet(t)

	_, err := synth.DFS(context.Background(), es, "nobody")
	assert.ErrorContains(t, err, "unknown target entity")

	_, err = synth.DFS(context.Background(), es, "clients",
		synth.WithAggPrimitives("median"))
	assert.ErrorContains(t, err, "unknown primitive")

	_, err = synth.DFS(context.Background(), es, "clients",
		synth.WithAggPrimitives("month"))
	assert.ErrorContains(t, err, "not an aggregation")
}

func TestDFSContextCancellation(t *testing.T) {
	es := buildSet(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := synth.DFS(ctx, es, "clients", synth.WithMaxDepth(2))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMatrixCSVRoundtrip(t *testing.T) {
	es := buildSet(t)

	m, err := synth.DFS(context.Background(), es, "clients",
		synth.WithAggPrimitives("mean", "count"),
		synth.WithTransPrimitives("year"),
		synth.WithMaxDepth(1),
	)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.WriteCSV(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4, "header + one row per client")
	assert.True(t, strings.HasPrefix(lines[0], "client_id,"))
	assert.Contains(t, lines[0], "MEAN(loans.loan_amount)")

	// Client 3's null mean renders as an empty cell
	assert.Contains(t, lines[3], ",,")
}

func TestMatrixJSON(t *testing.T) {
	es := buildSet(t)

	m, err := synth.DFS(context.Background(), es, "clients",
		synth.WithAggPrimitives("mean"),
		synth.WithMaxDepth(1),
	)
	require.NoError(t, err)

	data, err := json.Marshal(m)
	require.NoError(t, err, "null cells must not break JSON encoding")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "clients", decoded["target"])
	assert.Len(t, decoded["rows"], 3)
}

func TestMatrixHeadAndRenderText(t *testing.T) {
	es := buildSet(t)

	m, err := synth.DFS(context.Background(), es, "clients",
		synth.WithAggPrimitives("mean", "count"),
		synth.WithMaxDepth(1),
	)
	require.NoError(t, err)

	head := m.Head(2)
	assert.Equal(t, 2, head.NumRows())
	assert.Equal(t, m.NumFeatures(), head.NumFeatures())

	out := m.RenderText(2, 3)
	assert.Contains(t, out, "client_id")
	assert.Contains(t, out, "... (1 more rows)")
}
