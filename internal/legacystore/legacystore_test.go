package legacystore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	m := Manifest{CollectionID: "docs", ShardID: "default", VectorCount: 42, BytesUsed: 4096}
	require.NoError(t, s.Put(m))

	got, ok, err := s.Get("docs", "default")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, m, got)
}

func TestGetMissingReturnsNotOK(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Get("nope", "default")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeleteRemovesManifest(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(Manifest{CollectionID: "c", ShardID: "s", VectorCount: 1}))
	require.NoError(t, s.Delete("c", "s"))

	_, ok, err := s.Get("c", "s")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestForEachCollectionVisitsDistinctIDs(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(Manifest{CollectionID: "a", ShardID: "s0"}))
	require.NoError(t, s.Put(Manifest{CollectionID: "a", ShardID: "s1"}))
	require.NoError(t, s.Put(Manifest{CollectionID: "b", ShardID: "s0"}))

	var seen []string
	require.NoError(t, s.ForEachCollection(func(cid string) {
		seen = append(seen, cid)
	}))
	require.ElementsMatch(t, []string{"a", "b"}, seen)
}
