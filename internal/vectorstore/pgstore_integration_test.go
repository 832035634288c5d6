package vectorstore_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serafis/podreco/internal/model"
	"github.com/serafis/podreco/internal/testutil"
	"github.com/serafis/podreco/internal/vectorstore"
)

// testPool holds a shared pooled connection for all tests in this package.
var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	tc := testutil.MustStartPostgres()
	defer tc.Terminate()

	pool, err := tc.NewTestPool(ctx)
	if err != nil {
		panic(err)
	}
	defer pool.Close()
	testPool = pool

	m.Run()
}

func newTestStore(t *testing.T) *vectorstore.PGStore {
	t.Helper()
	s := vectorstore.NewPGStore(testPool)
	require.NoError(t, s.EnsureSchema(context.Background(), 3))
	return s
}

func TestPGStoreUpsertAndQueryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ns := model.Namespace{AlgorithmVersion: "1", StrategyVersion: "1.1", DatasetVersion: t.Name()}
	ctx := context.Background()

	ok, err := s.HasNamespace(ctx, ns)
	require.NoError(t, err)
	assert.False(t, ok)

	err = s.Upsert(ctx, ns, []model.Embedding{
		{EpisodeID: "close", Vector: []float32{1, 0, 0}},
		{EpisodeID: "far", Vector: []float32{0, 1, 0}},
	})
	require.NoError(t, err)

	ok, err = s.HasNamespace(ctx, ns)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.FetchByIDs(ctx, ns, []string{"close", "missing"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, "close")

	results, err := s.Query(ctx, ns, []float32{1, 0, 0}, 2, vectorstore.Filter{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "close", results[0].EpisodeID)
}

func TestPGStoreUpsertMetadataFiltersQuery(t *testing.T) {
	s := newTestStore(t)
	ns := model.Namespace{AlgorithmVersion: "1", StrategyVersion: "1.1", DatasetVersion: t.Name()}
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, ns, []model.Embedding{
		{EpisodeID: "low-cred", Vector: []float32{1, 0, 0}},
	}))
	require.NoError(t, s.UpsertMetadata(ctx, ns, "low-cred", 1, 1, 0))

	results, err := s.Query(ctx, ns, []float32{1, 0, 0}, 10, vectorstore.Filter{MinCredibility: 5})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestPGStoreHealthy(t *testing.T) {
	s := vectorstore.NewPGStore(testPool)
	assert.NoError(t, s.Healthy(context.Background()))
}
