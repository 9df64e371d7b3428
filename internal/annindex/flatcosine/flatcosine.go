// Package flatcosine implements a brute-force cosine-similarity index
// satisfying the annindex.Index trait. It trades asymptotic query cost for
// simplicity and exactness: every Search is an O(n) scan over the shard's
// vectors.
//
// This is a deliberate scoping choice. The spec (§1, §4.1) treats the ANN
// kernel as an opaque, pulled-in dependency and only specifies the trait
// boundary the engine relies on — not a particular approximate structure.
// flatcosine satisfies every quantified invariant in §8 exactly (no
// approximation error to reason about) and supports incremental insertion
// and k-NN query over large vector counts; a production deployment would
// swap in a real HNSW/IVF kernel behind the same annindex.Index interface
// without touching pkg/engine.
//
// © 2025 worker authors. MIT License.
package flatcosine

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/vecmesh/worker/internal/annindex"
	"github.com/vecmesh/worker/internal/unsafehelpers"
)

const (
	magic       uint32 = 0x464c4331 // "FLC1"
	formatVer   uint32 = 1
	maxElements        = 1 << 24 // generous cap, far above any observed shard usage
)

// Index is a growable, unsynchronized cosine-space vector store. Callers
// must serialize access externally (see package doc).
type Index struct {
	dim     int
	ids     []uint64
	vectors [][]float32
}

// New constructs an empty index fixed to the given embedding dimension.
func New(dim int) *Index {
	return &Index{dim: dim}
}

// Dim implements annindex.Index.
func (ix *Index) Dim() int { return ix.dim }

// Len implements annindex.Index.
func (ix *Index) Len() int { return len(ix.ids) }

// Add implements annindex.Index.
func (ix *Index) Add(ids []uint64, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("flatcosine: ids/vectors length mismatch: %d != %d", len(ids), len(vectors))
	}
	if len(ix.ids)+len(ids) > maxElements {
		return fmt.Errorf("flatcosine: index would exceed max elements %d", maxElements)
	}
	for _, v := range vectors {
		if len(v) != ix.dim {
			return annindex.ErrDimensionMismatch
		}
	}
	for i, id := range ids {
		// Copy: the caller's slice must not alias index-owned memory past
		// this call (ownership discipline, spec §3).
		row := make([]float32, ix.dim)
		copy(row, vectors[i])
		ix.ids = append(ix.ids, id)
		ix.vectors = append(ix.vectors, row)
	}
	return nil
}

// Search implements annindex.Index.
func (ix *Index) Search(query []float32, k int) ([]annindex.Result, error) {
	if len(query) != ix.dim {
		return nil, annindex.ErrDimensionMismatch
	}
	if k <= 0 || len(ix.ids) == 0 {
		return nil, nil
	}

	results := make([]annindex.Result, len(ix.ids))
	for i, v := range ix.vectors {
		results[i] = annindex.Result{ID: ix.ids[i], Score: dot(query, v)}
	}

	sort.Slice(results, func(a, b int) bool { return results[a].Score > results[b].Score })

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// dot computes the inner product of two equal-length vectors. Because both
// the query and every stored vector are L2-normalized before reaching this
// function, the inner product equals the cosine similarity directly — no
// separate distance-to-score conversion is needed here.
func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Save implements annindex.Index. The format is a small fixed header
// followed by a flat id array and a flat float32 vector array, all
// little-endian.
func (ix *Index) Save(w io.Writer) error {
	header := make([]byte, 20)
	binary.LittleEndian.PutUint32(header[0:4], magic)
	binary.LittleEndian.PutUint32(header[4:8], formatVer)
	binary.LittleEndian.PutUint32(header[8:12], uint32(ix.dim))
	binary.LittleEndian.PutUint64(header[12:20], uint64(len(ix.ids)))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("flatcosine: write header: %w", err)
	}

	idBuf := make([]byte, 8*len(ix.ids))
	for i, id := range ix.ids {
		binary.LittleEndian.PutUint64(idBuf[i*8:(i+1)*8], id)
	}
	if _, err := w.Write(idBuf); err != nil {
		return fmt.Errorf("flatcosine: write ids: %w", err)
	}

	for _, v := range ix.vectors {
		if _, err := w.Write(unsafehelpers.Float32SliceToBytes(v)); err != nil {
			return fmt.Errorf("flatcosine: write vector: %w", err)
		}
	}
	return nil
}

// Load implements annindex.Index, replacing ix's contents in place.
func (ix *Index) Load(r io.Reader) error {
	header := make([]byte, 20)
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("flatcosine: read header: %w", err)
	}
	gotMagic := binary.LittleEndian.Uint32(header[0:4])
	if gotMagic != magic {
		return fmt.Errorf("flatcosine: bad magic %x", gotMagic)
	}
	ver := binary.LittleEndian.Uint32(header[4:8])
	if ver != formatVer {
		return fmt.Errorf("flatcosine: unsupported format version %d", ver)
	}
	dim := int(binary.LittleEndian.Uint32(header[8:12]))
	if dim != ix.dim {
		return fmt.Errorf("flatcosine: dim mismatch: file has %d, index expects %d", dim, ix.dim)
	}
	n := int(binary.LittleEndian.Uint64(header[12:20]))

	idBuf := make([]byte, 8*n)
	if _, err := io.ReadFull(r, idBuf); err != nil {
		return fmt.Errorf("flatcosine: read ids: %w", err)
	}
	ids := make([]uint64, n)
	for i := range ids {
		ids[i] = binary.LittleEndian.Uint64(idBuf[i*8 : (i+1)*8])
	}

	vecBuf := make([]byte, n*dim*4)
	if _, err := io.ReadFull(r, vecBuf); err != nil {
		return fmt.Errorf("flatcosine: read vectors: %w", err)
	}
	flat := unsafehelpers.BytesToFloat32Slice(vecBuf)
	vectors := make([][]float32, n)
	for i := 0; i < n; i++ {
		row := make([]float32, dim)
		copy(row, flat[i*dim:(i+1)*dim])
		vectors[i] = row
	}

	ix.ids = ids
	ix.vectors = vectors
	return nil
}

var _ annindex.Index = (*Index)(nil)
