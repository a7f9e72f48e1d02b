package cli

import (
	"testing"

	"github.com/axintera/axctl/pkg/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsCommands(t *testing.T) {
	e := newTestEnv(t)
	provider := "0xAbC0000000000000000000000000000000000001"

	for _, ok := range []bool{true, true, true, false} {
		args := []string{"stats", "record", "--provider", provider}
		if ok {
			args = append(args, "--ok")
		}
		_, err := e.run(t, args...)
		require.NoError(t, err)
	}

	var s data.ProviderStat
	e.runJSON(t, &s, "stats", "get", "--provider", provider)
	assert.Equal(t, data.NormalizeProviderID(provider), s.ProviderID)
	assert.Equal(t, int64(4), s.Served)
	assert.Equal(t, int64(3), s.Success)
	assert.InDelta(t, 0.0, s.Score, 0.00001)

	var rc recalcResult
	e.runJSON(t, &rc, "stats", "recalc")
	assert.Equal(t, 1, rc.Providers)

	var list []*data.ProviderStat
	e.runJSON(t, &list, "stats", "list")
	require.Len(t, list, 1)
	assert.InDelta(t, 0.3006, list[0].Score, 0.00001)

	var state map[string]int64
	e.runJSON(t, &state, "stats", "state")
	assert.Equal(t, int64(1), state["providers"])
	assert.Equal(t, int64(1), state["schema"])
}

func TestStatsGet_NotFound(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.run(t, "stats", "get", "--provider", "nobody")
	assert.ErrorIs(t, err, data.ErrNotFound)
}

func TestStatsRecord_MissingProvider(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.run(t, "stats", "record")
	assert.Error(t, err)
}
