package flatcosine

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vecmesh/worker/internal/annindex"
)

func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	scale := float32(1.0 / math.Sqrt(sumSq))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x * scale
	}
	return out
}

func TestAddSearchRoundTrip(t *testing.T) {
	ix := New(4)
	err := ix.Add(
		[]uint64{0, 1, 2},
		[][]float32{
			normalize([]float32{1, 0, 0, 0}),
			normalize([]float32{0, 1, 0, 0}),
			normalize([]float32{0, 0, 1, 0}),
		},
	)
	require.NoError(t, err)
	require.Equal(t, 3, ix.Len())

	results, err := ix.Search(normalize([]float32{1, 0, 0, 0}), 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, uint64(0), results[0].ID)
	require.InDelta(t, 1.0, results[0].Score, 1e-4)
}

func TestSearchEmptyOrZeroK(t *testing.T) {
	ix := New(3)
	results, err := ix.Search([]float32{1, 0, 0}, 0)
	require.NoError(t, err)
	require.Empty(t, results)

	require.NoError(t, ix.Add([]uint64{0}, [][]float32{{1, 0, 0}}))
	results, err = ix.Search([]float32{1, 0, 0}, -1)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestAddDimensionMismatch(t *testing.T) {
	ix := New(4)
	err := ix.Add([]uint64{0}, [][]float32{{1, 2, 3}})
	require.ErrorIs(t, err, annindex.ErrDimensionMismatch)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ix := New(2)
	require.NoError(t, ix.Add([]uint64{10, 20}, [][]float32{{0.6, 0.8}, {1, 0}}))

	var buf bytes.Buffer
	require.NoError(t, ix.Save(&buf))

	loaded := New(2)
	require.NoError(t, loaded.Load(&buf))
	require.Equal(t, 2, loaded.Len())

	results, err := loaded.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(20), results[0].ID)
}
