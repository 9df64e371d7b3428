package poram

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsNonPositive(t *testing.T) {
	_, err := New(0)
	require.Error(t, err)
	_, err = New(-1)
	require.Error(t, err)
}

func TestNewCommitsRequestedCapacity(t *testing.T) {
	res, err := New(1)
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalGB())
	require.Equal(t, int64(blockSize), res.TotalBytes())
	require.Len(t, res.blocks, 1)
	require.Len(t, res.blocks[0], blockSize)
}
