package engagement_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serafis/podreco/internal/engagement"
	"github.com/serafis/podreco/internal/model"
	"github.com/serafis/podreco/internal/testutil"
)

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

func newTestStore(t *testing.T) *engagement.PostgresStore {
	t.Helper()
	logger := testutil.TestLogger()
	s := engagement.NewPostgresStore(testPool, logger, 10, time.Minute)
	require.NoError(t, s.EnsureSchema(context.Background()))
	s.Start(context.Background())
	return s
}

func TestPostgresStoreRecordFlushAndRetrieve(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID := "user-" + t.Name()

	require.NoError(t, s.RecordEngagement(ctx, userID, model.Engagement{
		EpisodeID: "ep1",
		Type:      model.EngagementClick,
		Timestamp: time.Now().UTC(),
	}))
	s.Drain(ctx)

	got, err := s.GetEngagementsForRanking(ctx, userID, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ep1", got[0].EpisodeID)
}

func TestPostgresStoreRecordEngagementNoOpWithoutUserID(t *testing.T) {
	s := newTestStore(t)
	err := s.RecordEngagement(context.Background(), "", model.Engagement{EpisodeID: "ep1"})
	assert.NoError(t, err)
}

func TestPostgresStoreDeleteAllEngagements(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID := "user-" + t.Name()

	require.NoError(t, s.RecordEngagement(ctx, userID, model.Engagement{
		EpisodeID: "ep1", Type: model.EngagementListen, Timestamp: time.Now().UTC(),
	}))
	s.Drain(ctx)

	require.NoError(t, s.DeleteAllEngagements(ctx, userID))

	got, err := s.GetEngagementsForRanking(ctx, userID, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
