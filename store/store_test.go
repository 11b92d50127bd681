package store_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcin-laskowski/Feature-Engineering/entityset"
	"github.com/marcin-laskowski/Feature-Engineering/helpers"
	"github.com/marcin-laskowski/Feature-Engineering/schema"
	"github.com/marcin-laskowski/Feature-Engineering/store"
	"github.com/marcin-laskowski/Feature-Engineering/synth"
)

func fixtureMatrix(t *testing.T) *synth.FeatureMatrix {
	t.Helper()

	clients, err := helpers.LoadCSV([]byte(`client_id,income
1,100000
2,50000
`), schema.TableSchema{
		Name: "clients",
		Columns: []schema.ColumnMeta{
			{Key: "client_id", Type: schema.Index},
			{Key: "income", Type: schema.Numeric},
		},
	})
	require.NoError(t, err)

	loans, err := helpers.LoadCSV([]byte(`loan_id,client_id,loan_amount
10,1,1000
11,1,3000
20,2,4000
`), schema.TableSchema{
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

	m, err := synth.DFS(context.Background(), es, "clients",
		synth.WithAggPrimitives("mean", "count"),
		synth.WithMaxDepth(1),
	)
	require.NoError(t, err)
	return m
}

func TestStoreRoundtrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	s, err := store.Open(dbPath)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	m := fixtureMatrix(t)

	id, err := s.SaveRun(ctx, "clients", 1, m)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "clients", run.EntitySet)
	assert.Equal(t, "clients", run.Target)
	assert.Equal(t, 1, run.MaxDepth)
	assert.Equal(t, m.NumRows(), run.NumRows)
	assert.Equal(t, m.NumFeatures(), run.NumFeatures)
	assert.False(t, run.CreatedAt.IsZero())

	require.Len(t, run.Features, m.NumFeatures())
	assert.Equal(t, m.FeatureNames(), featureNames(run))
	assert.True(t, strings.HasPrefix(run.MatrixCSV, "client_id,"))
	assert.Contains(t, run.MatrixCSV, "MEAN(loans.loan_amount)")
}

func TestStoreListAndDelete(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	s, err := store.Open(dbPath)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	m := fixtureMatrix(t)

	first, err := s.SaveRun(ctx, "clients", 1, m)
	require.NoError(t, err)
	second, err := s.SaveRun(ctx, "clients", 1, m)
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Empty(t, runs[0].MatrixCSV, "listing skips the matrix payload")

	require.NoError(t, s.DeleteRun(ctx, first))

	runs, err = s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, second, runs[0].ID)

	_, err = s.GetRun(ctx, first)
	assert.ErrorContains(t, err, "run not found")

	err = s.DeleteRun(ctx, first)
	assert.ErrorContains(t, err, "run not found")
}

func TestStoreOpenCreatesParentDirs(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "runs.db")
	s, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func featureNames(run *store.Run) []string {
	names := make([]string, len(run.Features))
	for i, f := range run.Features {
		names[i] = f.Name
	}
	return names
}
