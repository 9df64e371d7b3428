package challenge

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeDeterministic(t *testing.T) {
	req := Request{
		ChallengeID: "c1",
		EpochSeed:   make([]byte, 32),
		Offsets:     []uint64{0, 100},
		ChunkSize:   32,
	}

	r1 := Compute(req)
	r2 := Compute(req)

	require.Equal(t, r1.Chunks, r2.Chunks)
	require.Equal(t, "c1", r1.ChallengeID)
}

func TestComputeMatchesSpecExample(t *testing.T) {
	seed := make([]byte, 32) // 32 zero bytes
	req := Request{ChallengeID: "x", EpochSeed: seed, Offsets: []uint64{0}, ChunkSize: 32}

	resp := Compute(req)
	require.Len(t, resp.Chunks, 1)

	var offsetBuf [8]byte
	binary.BigEndian.PutUint64(offsetBuf[:], 0)
	h := sha256.Sum256(append(append([]byte{}, seed...), offsetBuf[:]...))
	want := base64.StdEncoding.EncodeToString(h[:])

	require.Equal(t, want, resp.Chunks[0])
}

func TestComputeChunkSizeNotMultipleOf32(t *testing.T) {
	req := Request{ChallengeID: "y", EpochSeed: []byte("seed"), Offsets: []uint64{5}, ChunkSize: 50}
	resp := Compute(req)
	require.Len(t, resp.Chunks, 1)

	raw, err := base64.StdEncoding.DecodeString(resp.Chunks[0])
	require.NoError(t, err)
	require.Len(t, raw, 50)
}

func TestComputeMultipleOffsetsIndependent(t *testing.T) {
	req := Request{ChallengeID: "z", EpochSeed: []byte("seed"), Offsets: []uint64{0, 32, 64}, ChunkSize: 16}
	resp := Compute(req)
	require.Len(t, resp.Chunks, 3)
	require.NotEqual(t, resp.Chunks[0], resp.Chunks[1])
	require.NotEqual(t, resp.Chunks[1], resp.Chunks[2])
}
