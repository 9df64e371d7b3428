// Package engine implements the worker's Vector Engine: a two-level map of
// ANN indices (collection -> shard -> index), per-shard locks, an
// internal-id to doc_id mapping, and checkpoint-to-disk persistence with
// both current and legacy on-disk layouts.
//
// The shape follows pkg/cache.go's sharded design (independent locks,
// lazily created entries, a background checkpoint analogue) generalized
// from a fixed-cardinality shard array to a growing map of (collection,
// shard) keys, per the "per-shard mutexes as a growing map" design note:
// a single engine-wide mutex guards only the lookup-or-insert step, never
// the index operations themselves.
//
// © 2025 worker authors. MIT License.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/vecmesh/worker/internal/annindex/flatcosine"
	"github.com/vecmesh/worker/internal/legacystore"
	"github.com/vecmesh/worker/internal/telemetry"
	"github.com/vecmesh/worker/internal/workerpool"
)

// submitter abstracts internal/workerpool.Pool so tests can substitute a
// synchronous stand-in without pulling in goroutines.
type submitter interface {
	Submit(ctx context.Context, fn func() error) error
}

// collection groups the shards belonging to one collection_id.
type collection struct {
	mu     sync.Mutex
	shards map[string]*shardState
}

// Engine is the top-level Vector Engine: collection -> shard -> index, with
// durable checkpointing. The zero value is not usable; construct with New.
type Engine struct {
	cfg     *config
	pool    submitter
	ownPool *workerpool.Pool // non-nil when New created its own pool (Close releases it)
	sink    telemetry.Sink
	logger  *zap.Logger

	manifest *legacystore.Store // optional Badger-backed accelerator, may be nil

	collsMu     sync.Mutex
	collections map[string]*collection

	totalVectors atomic.Uint64
}

// New constructs an Engine rooted at dataDir for embedding dimension dim,
// soft-capped at maxBytes. The engine owns a fixed-size worker pool
// (internal/workerpool) that offloads CPU-bound ANN add/search calls from
// the caller's goroutine, per the "dedicated worker thread pool (≥ 2
// threads)" requirement; its size is set via WithWorkerThreads and defaults
// to 2. Passing a non-nil pool lets a caller share one pool across several
// engines or components instead of each owning its own.
func New(dataDir string, dim int, maxBytes uint64, pool submitter, opts ...Option) (*Engine, error) {
	cfg := defaultConfig(dataDir, dim, maxBytes)
	if err := applyOptions(cfg, opts); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:         cfg,
		sink:        cfg.metricsSink(),
		logger:      cfg.logger,
		collections: make(map[string]*collection),
	}

	if pool != nil {
		e.pool = pool
	} else {
		owned := workerpool.New(cfg.workerThreads)
		e.pool = owned
		e.ownPool = owned
	}

	return e, nil
}

// Close releases resources owned by the engine. If the worker pool was
// supplied externally to New, Close leaves it running — the caller owns
// its lifecycle.
func (e *Engine) Close() {
	if e.ownPool != nil {
		e.ownPool.Close()
	}
}

// WithManifest attaches a legacystore.Store to which SaveCollection writes a
// manifest entry for each shard it saves. LoadAll does not read it. It never
// changes the on-disk layout written by SaveAll/SaveCollection.
func (e *Engine) WithManifest(m *legacystore.Store) *Engine {
	e.manifest = m
	return e
}

// Dim returns the engine's configured embedding dimension.
func (e *Engine) Dim() int { return e.cfg.dim }

// CanAccept reports whether inserting n more vectors would keep bytes_used
// within max_bytes. Advisory only: concurrent inserts may race past the
// limit by a bounded amount.
func (e *Engine) CanAccept(n int) bool {
	total := e.totalVectors.Load() + uint64(n)
	return total*uint64(e.cfg.dim)*4 <= e.cfg.maxBytes
}

// GetTotalVectors returns the current total vector count across all
// collections and shards.
func (e *Engine) GetTotalVectors() uint64 { return e.totalVectors.Load() }

// GetBytesUsed returns total_vectors * dim * 4.
func (e *Engine) GetBytesUsed() uint64 {
	return e.totalVectors.Load() * uint64(e.cfg.dim) * 4
}

// getOrCreateShard returns the shard for (collectionID, shardID), lazily
// creating the collection and/or shard if absent. Only the lookup-or-insert
// step is guarded by collsMu/collection.mu; the returned shard's own mutex
// guards everything else.
func (e *Engine) getOrCreateShard(collectionID, shardID string) *shardState {
	shardID = normalizeShardID(shardID)

	e.collsMu.Lock()
	c, ok := e.collections[collectionID]
	if !ok {
		c = &collection{shards: make(map[string]*shardState)}
		e.collections[collectionID] = c
	}
	e.collsMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.shards[shardID]
	if !ok {
		s = newShardState(e.cfg.dim, flatcosine.New(e.cfg.dim))
		c.shards[shardID] = s
		e.logger.Debug("shard created", zap.String("collection_id", collectionID), zap.String("shard_id", shardID))
	}
	return s
}

// getShard returns the shard for (collectionID, shardID) without creating
// it, or nil if the collection or shard does not exist.
func (e *Engine) getShard(collectionID, shardID string) *shardState {
	shardID = normalizeShardID(shardID)

	e.collsMu.Lock()
	c, ok := e.collections[collectionID]
	e.collsMu.Unlock()
	if !ok {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shards[shardID]
}

// AddVectors inserts vectors[i] under docIDs[i] into (collectionID,
// shardID). All n pairs are inserted atomically with respect to the shard
// lock: no search interleaves mid-batch.
func (e *Engine) AddVectors(ctx context.Context, collectionID string, vectors [][]float32, docIDs []string, shardID string) (int, error) {
	if len(docIDs) != len(vectors) {
		return 0, fmt.Errorf("%w: %d doc ids for %d vectors", ErrCountMismatch, len(docIDs), len(vectors))
	}
	for _, v := range vectors {
		if len(v) != e.cfg.dim {
			return 0, fmt.Errorf("%w: got width %d, want %d", ErrDimensionMismatch, len(v), e.cfg.dim)
		}
	}

	shard := e.getOrCreateShard(collectionID, shardID)
	shard.mu.Lock()
	err := shard.addLocked(ctx, e.pool, vectors, docIDs)
	shard.mu.Unlock()
	if err != nil {
		return 0, err
	}

	n := len(vectors)
	e.totalVectors.Add(uint64(n))
	e.sink.ObserveVectorsStored(collectionID, n)
	e.sink.SetVectorsTotal(e.totalVectors.Load())
	e.sink.SetBytesUsed(e.GetBytesUsed())
	return n, nil
}

// Search runs a k-NN query against (collectionID, shardID). It returns an
// empty (nil) result set, not an error, when the collection/shard is
// absent, k<=0, or query has zero norm — these are explicit non-error
// cases per spec.
func (e *Engine) Search(ctx context.Context, collectionID string, query []float32, k int, shardID string) ([]Result, error) {
	e.sink.IncSearchRequests()

	if k <= 0 {
		return nil, nil
	}
	if vectorNorm(query) == 0 {
		return nil, nil
	}

	shard := e.getShard(collectionID, shardID)
	if shard == nil {
		return nil, nil
	}

	normalized := l2Normalize(query)

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if shard.nextID == 0 {
		return nil, nil
	}
	return shard.searchLocked(ctx, e.pool, normalized, k)
}
