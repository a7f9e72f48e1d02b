package data

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("axctl"),
		postgres.WithUsername("axctl"),
		postgres.WithPassword("axctl"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.True(t, IsPostgres(dsn))

	require.NoError(t, Init(dsn))
	require.NoError(t, Init(dsn))

	db, err := GetDB(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	assert.Equal(t, "SELECT $1, $2", rebind(db, "SELECT ?, ?"))

	for _, ok := range []bool{true, true, false} {
		_, err := UpdateStats(db, testProvider, ok)
		require.NoError(t, err)
	}
	n, err := RecalcScores(db, WilsonZDefault)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	s, err := GetStat(db, testProvider)
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.Served)
	assert.InDelta(t, Wilson(2, 3, WilsonZDefault), s.Score, 0.00001)

	require.NoError(t, SaveDeployment(db, &Deployment{ChainID: 545, Module: "RewardGaugeModule", Future: "gauge", Address: "0x01"}))
	list, err := ListDeployments(db, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, SaveSubmission(db, &Submission{ChainID: 545, Provider: testProvider, Epoch: 3, ScoreBps: 4100}))
	subs, err := ListSubmissions(db, testProvider)
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	state, err := GetDataState(db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), state["providers"])
}
