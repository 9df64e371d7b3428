package veccodec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeVectorsRoundTrip(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{-0.5, 0.5, math.MaxFloat32, -math.MaxFloat32},
	}

	b64, shape, err := EncodeVectors(vectors)
	require.NoError(t, err)
	require.Equal(t, [2]int{3, 4}, shape)

	decoded, err := DecodeVectors(b64, shape)
	require.NoError(t, err)
	require.Equal(t, vectors, decoded)
}

func TestEncodeDecodeVectorsEmpty(t *testing.T) {
	b64, shape, err := EncodeVectors(nil)
	require.NoError(t, err)
	require.Equal(t, "", b64)
	require.Equal(t, [2]int{0, 0}, shape)

	decoded, err := DecodeVectors(b64, shape)
	require.NoError(t, err)
	require.Nil(t, decoded)
}

func TestEncodeDecodeQueryRoundTrip(t *testing.T) {
	query := []float32{0.1, -0.2, 0.3, 0.0}

	b64, shape, err := EncodeQuery(query)
	require.NoError(t, err)
	require.Equal(t, [1]int{4}, shape)

	decoded, err := DecodeQuery(b64, shape)
	require.NoError(t, err)
	require.Equal(t, query, decoded)
}

func TestEncodeVectorsDimensionMismatch(t *testing.T) {
	_, _, err := EncodeVectors([][]float32{{1, 2}, {1, 2, 3}})
	require.Error(t, err)
}
