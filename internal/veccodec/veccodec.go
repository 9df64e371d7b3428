// Package veccodec implements the wire encoding for embedding vectors
// carried inside JSON protocol frames.
//
// A batch of vectors is laid out as raw float32, little-endian, row-major
// (matching numpy's default tobytes() layout for a (n, dim) float32 array),
// compressed with a generic block compressor, then base64-framed so the
// result fits inside a JSON string field. The shape travels alongside as a
// parallel field and is what disambiguates the reshape on decode — the
// codec itself is shape-agnostic and only moves bytes.
//
// We use zstd as the block compressor: it is a streaming LZ-family codec
// with framed output, present in this module's dependency graph via
// dgraph-io/badger's own use of klauspost/compress, and is the direct
// analogue of the zstandard codec used by the coordinator's reference
// implementation.
//
// © 2025 worker authors. MIT License.
package veccodec

import (
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/vecmesh/worker/internal/unsafehelpers"
)

// encoders/decoders are expensive to construct and safe for concurrent use
// once built, so we keep one package-level pair instead of allocating per
// call on the hot store/search path.
var (
	encOnce sync.Once
	enc     *zstd.Encoder
	encErr  error

	decOnce sync.Once
	dec     *zstd.Decoder
	decErr  error
)

func encoder() (*zstd.Encoder, error) {
	encOnce.Do(func() {
		enc, encErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	return enc, encErr
}

func decoder() (*zstd.Decoder, error) {
	decOnce.Do(func() {
		dec, decErr = zstd.NewReader(nil)
	})
	return dec, decErr
}

// EncodeVectors compresses and base64-frames a batch of n vectors of width
// dim, returning the wire string and the (n, dim) shape to send alongside
// it.
func EncodeVectors(vectors [][]float32) (b64 string, shape [2]int, err error) {
	n := len(vectors)
	if n == 0 {
		return "", [2]int{0, 0}, nil
	}
	dim := len(vectors[0])
	raw := make([]byte, 0, n*dim*4)
	for i, v := range vectors {
		if len(v) != dim {
			return "", [2]int{}, fmt.Errorf("veccodec: row %d has width %d, expected %d", i, len(v), dim)
		}
		raw = append(raw, unsafehelpers.Float32SliceToBytes(v)...)
	}
	encoded, err := compress(raw)
	if err != nil {
		return "", [2]int{}, err
	}
	return encoded, [2]int{n, dim}, nil
}

// DecodeVectors reverses EncodeVectors, reshaping the decompressed bytes
// into shape[0] rows of shape[1] float32 each.
func DecodeVectors(b64 string, shape [2]int) ([][]float32, error) {
	n, dim := shape[0], shape[1]
	if n == 0 {
		return nil, nil
	}
	raw, err := decompress(b64)
	if err != nil {
		return nil, err
	}
	want := n * dim * 4
	if len(raw) != want {
		return nil, fmt.Errorf("veccodec: decoded %d bytes, want %d for shape %v", len(raw), want, shape)
	}
	flat := unsafehelpers.BytesToFloat32Slice(raw)
	out := make([][]float32, n)
	for i := 0; i < n; i++ {
		row := make([]float32, dim)
		copy(row, flat[i*dim:(i+1)*dim])
		out[i] = row
	}
	return out, nil
}

// EncodeQuery compresses and base64-frames a single 1-D query vector.
func EncodeQuery(vector []float32) (b64 string, shape [1]int, err error) {
	raw := unsafehelpers.Float32SliceToBytes(vector)
	encoded, err := compress(raw)
	if err != nil {
		return "", [1]int{}, err
	}
	return encoded, [1]int{len(vector)}, nil
}

// DecodeQuery reverses EncodeQuery.
func DecodeQuery(b64 string, shape [1]int) ([]float32, error) {
	dim := shape[0]
	raw, err := decompress(b64)
	if err != nil {
		return nil, err
	}
	if len(raw) != dim*4 {
		return nil, fmt.Errorf("veccodec: decoded %d bytes, want %d for dim %d", len(raw), dim*4, dim)
	}
	flat := unsafehelpers.BytesToFloat32Slice(raw)
	out := make([]float32, dim)
	copy(out, flat)
	return out, nil
}

func compress(raw []byte) (string, error) {
	e, err := encoder()
	if err != nil {
		return "", err
	}
	compressed := e.EncodeAll(raw, nil)
	return base64.StdEncoding.EncodeToString(compressed), nil
}

func decompress(b64 string) ([]byte, error) {
	compressed, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("veccodec: base64 decode: %w", err)
	}
	d, err := decoder()
	if err != nil {
		return nil, err
	}
	raw, err := d.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("veccodec: zstd decode: %w", err)
	}
	return raw, nil
}
