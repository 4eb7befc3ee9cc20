package performance_test

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midastrader/midas/performance"
)

func newTestStore(t *testing.T) *performance.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.db")
	store, err := performance.NewStore(path, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreInsertAndQueryByStrategy(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Insert(performance.SessionRecord{
		RunID: "run-1", StartedAtNs: 1, EndedAtNs: 100,
		StrategyName: "ma_crossover", FinalEquity: 105000, ArtifactPath: "/tmp/run-1.json",
	}))
	require.NoError(t, store.Insert(performance.SessionRecord{
		RunID: "run-2", StartedAtNs: 50, EndedAtNs: 150,
		StrategyName: "ma_crossover", FinalEquity: 98000, ArtifactPath: "/tmp/run-2.json", Quarantined: true,
	}))
	require.NoError(t, store.Insert(performance.SessionRecord{
		RunID: "run-3", StartedAtNs: 10, EndedAtNs: 90,
		StrategyName: "rsi_momentum", FinalEquity: 101000, ArtifactPath: "/tmp/run-3.json",
	}))

	recs, err := store.ByStrategy("ma_crossover")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "run-2", recs[0].RunID, "most recent (by started_at_ns) comes first")
	assert.True(t, recs[0].Quarantined)
	assert.Equal(t, "run-1", recs[1].RunID)
}

func TestStoreInsertUpsertsOnRunID(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Insert(performance.SessionRecord{
		RunID: "run-1", StartedAtNs: 1, EndedAtNs: 50,
		StrategyName: "ma_crossover", FinalEquity: 100000, ArtifactPath: "/tmp/run-1.json",
	}))
	require.NoError(t, store.Insert(performance.SessionRecord{
		RunID: "run-1", StartedAtNs: 1, EndedAtNs: 200,
		StrategyName: "ma_crossover", FinalEquity: 110000, ArtifactPath: "/tmp/run-1-final.json",
	}))

	recs, err := store.ByStrategy("ma_crossover")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(200), recs[0].EndedAtNs)
	assert.Equal(t, 110000.0, recs[0].FinalEquity)
}

func TestStoreByStrategyReturnsEmptyForUnknown(t *testing.T) {
	store := newTestStore(t)
	recs, err := store.ByStrategy("nonexistent")
	require.NoError(t, err)
	assert.Empty(t, recs)
}
