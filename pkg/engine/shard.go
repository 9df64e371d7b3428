package engine

// shard.go owns the per-shard mutable state: one ANN index, one internal-id
// to doc_id map, one next-id counter, one mutex. All mutation happens while
// the shard's own mutex is held; the index itself is not internally
// synchronized — an "external synchronisation guaranteed" stance.
//
// © 2025 worker authors. MIT License.

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/vecmesh/worker/internal/annindex"
)

const defaultShardID = "default"

// normalizeShardID maps an absent or empty shard id to the synthetic
// "default" shard, per spec.
func normalizeShardID(shardID string) string {
	if shardID == "" {
		return defaultShardID
	}
	return shardID
}

// shardState is one shard's exclusively-owned state.
type shardState struct {
	mu     sync.Mutex
	index  annindex.Index
	idMap  map[uint64]string
	nextID uint64
	legacy bool // loaded from the legacy flat layout; informational only
}

func newShardState(dim int, index annindex.Index) *shardState {
	return &shardState{
		index: index,
		idMap: make(map[uint64]string),
	}
}

// Result is one scored hit returned from Search.
type Result struct {
	DocID string
	Score float32
}

// addLocked inserts n (vector, doc_id) pairs under the caller's already-held
// shard lock, assigning internal ids [nextID, nextID+n) atomically with
// respect to that lock and the id-map/counter update.
func (s *shardState) addLocked(ctx context.Context, pool submitter, vectors [][]float32, docIDs []string) error {
	n := len(vectors)
	ids := make([]uint64, n)
	start := s.nextID
	for i := range ids {
		ids[i] = start + uint64(i)
	}

	normalized := make([][]float32, n)
	for i, v := range vectors {
		normalized[i] = l2Normalize(v)
	}

	if err := pool.Submit(ctx, func() error {
		return s.index.Add(ids, normalized)
	}); err != nil {
		return err
	}

	for i, id := range ids {
		s.idMap[id] = docIDs[i]
	}
	s.nextID = start + uint64(n)
	return nil
}

// searchLocked runs a k-NN query under the caller's already-held shard lock
// and translates internal ids back to doc_ids.
func (s *shardState) searchLocked(ctx context.Context, pool submitter, query []float32, k int) ([]Result, error) {
	var hits []annindex.Result
	if err := pool.Submit(ctx, func() error {
		var searchErr error
		hits, searchErr = s.index.Search(query, k)
		return searchErr
	}); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		docID, ok := s.idMap[h.ID]
		if !ok {
			continue
		}
		results = append(results, Result{DocID: docID, Score: h.Score})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// l2Normalize returns v scaled to unit norm. A zero vector is returned
// unchanged per spec: "a zero vector is replaced with itself divided by 1".
func l2Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// vectorNorm reports the L2 norm of v, used by Search to detect and reject
// zero-norm queries per spec §4.1.
func vectorNorm(v []float32) float64 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	return math.Sqrt(sumSq)
}
