package engine

// stats.go exposes read-only snapshots of engine state for diagnostic
// tooling (cmd/workerctl), separate from the hot insert/search path.
//
// © 2025 worker authors. MIT License.

import "sort"

// ShardStat is one (collection, shard)'s diagnostic snapshot.
type ShardStat struct {
	CollectionID string
	ShardID      string
	VectorCount  int
	BytesUsed    uint64
	Legacy       bool
}

// Inspect returns a snapshot of every loaded shard, sorted by collection
// then shard id for stable, diffable output.
func (e *Engine) Inspect() []ShardStat {
	e.collsMu.Lock()
	collectionIDs := make([]string, 0, len(e.collections))
	colls := make(map[string]*collection, len(e.collections))
	for id, c := range e.collections {
		collectionIDs = append(collectionIDs, id)
		colls[id] = c
	}
	e.collsMu.Unlock()
	sort.Strings(collectionIDs)

	var out []ShardStat
	for _, collectionID := range collectionIDs {
		c := colls[collectionID]
		c.mu.Lock()
		shardIDs := make([]string, 0, len(c.shards))
		shards := make(map[string]*shardState, len(c.shards))
		for id, s := range c.shards {
			shardIDs = append(shardIDs, id)
			shards[id] = s
		}
		c.mu.Unlock()
		sort.Strings(shardIDs)

		for _, shardID := range shardIDs {
			s := shards[shardID]
			s.mu.Lock()
			count := s.index.Len()
			legacy := s.legacy
			s.mu.Unlock()

			out = append(out, ShardStat{
				CollectionID: collectionID,
				ShardID:      shardID,
				VectorCount:  count,
				BytesUsed:    uint64(count) * uint64(e.cfg.dim) * 4,
				Legacy:       legacy,
			})
		}
	}
	return out
}
