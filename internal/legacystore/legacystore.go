// Package legacystore is an internal accelerator sitting beside the
// worker's canonical on-disk layout (flat .bin/.json pairs per collection
// and shard, per spec §6). It never replaces that layout — it is a
// manifest of per-shard summaries, backed by an embedded BadgerDB instance.
//
// Keys are "<collection_id>/<shard_id>" and values are the JSON-encoded
// Manifest for that shard. The engine is the source of truth for what gets
// written to flat files; when a Store is attached with
// engine.Engine.WithManifest, SaveCollection mirrors a summary of each saved
// shard here. The engine's LoadAll does not read the manifest. Losing the
// Badger directory entirely never loses vectors — the next save writes the
// summaries again.
//
// © 2025 worker authors. MIT License.
package legacystore

import (
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// Manifest summarizes one shard's on-disk state without requiring a full
// id-map parse.
type Manifest struct {
	CollectionID string `json:"collection_id"`
	ShardID      string `json:"shard_id"`
	VectorCount  int    `json:"vector_count"`
	BytesUsed    uint64 `json:"bytes_used"`
	Legacy       bool   `json:"legacy"`
}

// Store wraps a BadgerDB handle dedicated to shard manifests.
type Store struct {
	db *badger.DB
}

// Open opens (creating if absent) a Badger instance rooted at dir.
func Open(dir string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("legacystore: open %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying Badger handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func manifestKey(collectionID, shardID string) []byte {
	return []byte(collectionID + "/" + shardID)
}

// Put records or overwrites the manifest for one shard.
func (s *Store) Put(m Manifest) error {
	val, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("legacystore: marshal manifest: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(manifestKey(m.CollectionID, m.ShardID), val)
	})
}

// Get returns the manifest for a shard, or ok=false if none is recorded.
func (s *Store) Get(collectionID, shardID string) (m Manifest, ok bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get(manifestKey(collectionID, shardID))
		if getErr == badger.ErrKeyNotFound {
			return nil
		}
		if getErr != nil {
			return getErr
		}
		return item.Value(func(val []byte) error {
			ok = true
			return json.Unmarshal(val, &m)
		})
	})
	if err != nil {
		return Manifest{}, false, fmt.Errorf("legacystore: get %s/%s: %w", collectionID, shardID, err)
	}
	return m, ok, nil
}

// Delete removes a shard's manifest, e.g. after a collection is dropped.
func (s *Store) Delete(collectionID, shardID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(manifestKey(collectionID, shardID))
	})
}

// ForEachCollection invokes fn once per distinct collection_id known to the
// manifest store. Nothing in this module calls it.
func (s *Store) ForEachCollection(fn func(collectionID string)) error {
	seen := make(map[string]struct{})
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			for i, b := range key {
				if b == '/' {
					cid := string(key[:i])
					if _, ok := seen[cid]; !ok {
						seen[cid] = struct{}{}
						fn(cid)
					}
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("legacystore: iterate: %w", err)
	}
	return nil
}
