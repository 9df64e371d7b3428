package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustEngine(t *testing.T, dataDir string, dim int, maxBytes uint64) *Engine {
	t.Helper()
	e, err := New(dataDir, dim, maxBytes, nil)
	require.NoError(t, err)
	return e
}

func TestRoundTripInsertAndSearch(t *testing.T) {
	e := mustEngine(t, t.TempDir(), 4, 1<<30)
	ctx := context.Background()

	vectors := [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}}
	n, err := e.AddVectors(ctx, "c1", vectors, []string{"a", "b", "c"}, "")
	require.NoError(t, err)
	require.Equal(t, 3, n)

	results, err := e.Search(ctx, "c1", []float32{1, 0, 0, 0}, 2, "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "a", results[0].DocID)
	require.InDelta(t, 1.0, float64(results[0].Score), 1e-4)
}

func TestNextIDMatchesIDMapCardinality(t *testing.T) {
	e := mustEngine(t, t.TempDir(), 4, 1<<30)
	ctx := context.Background()

	_, err := e.AddVectors(ctx, "c1", [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}, []string{"a", "b"}, "")
	require.NoError(t, err)

	shard := e.getShard("c1", "")
	require.NotNil(t, shard)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	require.EqualValues(t, len(shard.idMap), shard.nextID)
}

func TestEachInsertedVectorIsSearchable(t *testing.T) {
	e := mustEngine(t, t.TempDir(), 4, 1<<30)
	ctx := context.Background()

	vectors := [][]float32{{1, 2, 3, 4}, {4, 3, 2, 1}, {0, 0, 0, 5}}
	docIDs := []string{"d0", "d1", "d2"}
	_, err := e.AddVectors(ctx, "c1", vectors, docIDs, "")
	require.NoError(t, err)

	for i, v := range vectors {
		results, err := e.Search(ctx, "c1", v, 3, "")
		require.NoError(t, err)
		require.NotEmpty(t, results)
		require.Equal(t, docIDs[i], results[0].DocID)
		require.GreaterOrEqual(t, float64(results[0].Score), 0.9999)
	}
}

func TestSearchResultCountAndMonotonicScores(t *testing.T) {
	e := mustEngine(t, t.TempDir(), 3, 1<<30)
	ctx := context.Background()

	vectors := [][]float32{{1, 0, 0}, {1, 1, 0}, {0, 1, 0}, {0, 0, 1}}
	docIDs := []string{"a", "b", "c", "d"}
	_, err := e.AddVectors(ctx, "c1", vectors, docIDs, "")
	require.NoError(t, err)

	results, err := e.Search(ctx, "c1", []float32{1, 0, 0}, 10, "")
	require.NoError(t, err)
	require.LessOrEqual(t, len(results), 4)
	for i := 1; i < len(results); i++ {
		require.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestSearchBoundaryBehaviors(t *testing.T) {
	e := mustEngine(t, t.TempDir(), 4, 1<<30)
	ctx := context.Background()

	results, err := e.Search(ctx, "absent", []float32{1, 0, 0, 0}, 5, "")
	require.NoError(t, err)
	require.Empty(t, results)

	_, err = e.AddVectors(ctx, "c1", [][]float32{{1, 0, 0, 0}}, []string{"a"}, "")
	require.NoError(t, err)

	results, err = e.Search(ctx, "c1", []float32{1, 0, 0, 0}, 0, "")
	require.NoError(t, err)
	require.Empty(t, results)

	results, err = e.Search(ctx, "c1", []float32{0, 0, 0, 0}, 5, "")
	require.NoError(t, err)
	require.Empty(t, results)

	results, err = e.Search(ctx, "c1", []float32{1, 0, 0, 0}, 5, "nosuchshard")
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestAddVectorsDimensionAndCountMismatch(t *testing.T) {
	e := mustEngine(t, t.TempDir(), 4, 1<<30)
	ctx := context.Background()

	_, err := e.AddVectors(ctx, "c1", [][]float32{{1, 0, 0}}, []string{"a"}, "")
	require.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = e.AddVectors(ctx, "c1", [][]float32{{1, 0, 0, 0}}, []string{"a", "b"}, "")
	require.ErrorIs(t, err, ErrCountMismatch)
}

func TestShardingIsolation(t *testing.T) {
	e := mustEngine(t, t.TempDir(), 4, 1<<30)
	ctx := context.Background()

	_, err := e.AddVectors(ctx, "c1", [][]float32{{1, 0, 0, 0}}, []string{"a"}, "x")
	require.NoError(t, err)
	_, err = e.AddVectors(ctx, "c1", [][]float32{{0, 1, 0, 0}}, []string{"b"}, "y")
	require.NoError(t, err)

	resX, err := e.Search(ctx, "c1", []float32{1, 0, 0, 0}, 10, "x")
	require.NoError(t, err)
	require.Len(t, resX, 1)
	require.Equal(t, "a", resX[0].DocID)

	resY, err := e.Search(ctx, "c1", []float32{0, 1, 0, 0}, 10, "y")
	require.NoError(t, err)
	require.Len(t, resY, 1)
	require.Equal(t, "b", resY[0].DocID)
}

func TestSaveAllThenLoadAllPreservesState(t *testing.T) {
	dataDir := t.TempDir()
	ctx := context.Background()

	e1 := mustEngine(t, dataDir, 4, 1<<30)
	_, err := e1.AddVectors(ctx, "c1", [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}}, []string{"a", "b", "c"}, "")
	require.NoError(t, err)
	require.NoError(t, e1.SaveAll())

	e2 := mustEngine(t, dataDir, 4, 1<<30)
	require.NoError(t, e2.LoadAll())
	require.EqualValues(t, 3, e2.GetTotalVectors())

	results, err := e2.Search(ctx, "c1", []float32{1, 0, 0, 0}, 1, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "a", results[0].DocID)
}

func TestLoadLegacyFlatLayout(t *testing.T) {
	dataDir := t.TempDir()
	ctx := context.Background()

	staging := mustEngine(t, t.TempDir(), 4, 1<<30)
	_, err := staging.AddVectors(ctx, "c1", [][]float32{{1, 0, 0, 0}}, []string{"legacy-a"}, "")
	require.NoError(t, err)
	require.NoError(t, staging.SaveAll())

	// Relocate the current-layout files into a flat legacy layout.
	stagingDir := staging.cfg.dataDir
	require.NoError(t, os.Rename(
		filepath.Join(stagingDir, "c1", "shard_default.bin"),
		filepath.Join(dataDir, "c1.bin"),
	))
	require.NoError(t, os.Rename(
		filepath.Join(stagingDir, "c1", "shard_default_map.json"),
		filepath.Join(dataDir, "c1_map.json"),
	))

	e := mustEngine(t, dataDir, 4, 1<<30)
	require.NoError(t, e.LoadAll())
	require.EqualValues(t, 1, e.GetTotalVectors())

	results, err := e.Search(ctx, "c1", []float32{1, 0, 0, 0}, 1, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "legacy-a", results[0].DocID)
}

func TestInspectReportsPerShardCounts(t *testing.T) {
	e := mustEngine(t, t.TempDir(), 4, 1<<30)
	ctx := context.Background()

	_, err := e.AddVectors(ctx, "c1", [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}, []string{"a", "b"}, "x")
	require.NoError(t, err)
	_, err = e.AddVectors(ctx, "c1", [][]float32{{0, 0, 1, 0}}, []string{"c"}, "y")
	require.NoError(t, err)

	stats := e.Inspect()
	require.Len(t, stats, 2)

	byShard := make(map[string]ShardStat, len(stats))
	for _, s := range stats {
		require.Equal(t, "c1", s.CollectionID)
		byShard[s.ShardID] = s
	}
	require.Equal(t, 2, byShard["x"].VectorCount)
	require.Equal(t, 1, byShard["y"].VectorCount)
	require.EqualValues(t, 2*4*4, byShard["x"].BytesUsed)
}

func TestCanAcceptCapacityBoundary(t *testing.T) {
	const dim = 384
	maxBytes := uint64(1) << 30
	e := mustEngine(t, t.TempDir(), dim, maxBytes)

	n := int(maxBytes / (dim * 4))
	require.True(t, e.CanAccept(n))
	require.False(t, e.CanAccept(n+1))
}
