package engine

// persistence.go implements checkpoint-to-disk and reload, both the current
// per-collection-directory layout and read-only compatibility with the
// legacy flat-file layout. Writes are atomic per file (write to a .tmp
// path, then os.Rename) so an interrupted checkpoint never leaves a
// half-written file behind — incomplete files are simply re-derived on
// the next save.
//
// © 2025 worker authors. MIT License.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/vecmesh/worker/internal/annindex/flatcosine"
	"github.com/vecmesh/worker/internal/legacystore"
)

type idMapFile struct {
	IDMap  map[string]string `json:"id_map"`
	NextID uint64            `json:"next_id"`
}

func (e *Engine) collectionDir(collectionID string) string {
	return filepath.Join(e.cfg.dataDir, collectionID)
}

func (e *Engine) shardBinPath(collectionID, shardID string) string {
	return filepath.Join(e.collectionDir(collectionID), "shard_"+shardID+".bin")
}

func (e *Engine) shardMapPath(collectionID, shardID string) string {
	return filepath.Join(e.collectionDir(collectionID), "shard_"+shardID+"_map.json")
}

func (e *Engine) legacyBinPath(collectionID string) string {
	return filepath.Join(e.cfg.dataDir, collectionID+".bin")
}

func (e *Engine) legacyMapPath(collectionID string) string {
	return filepath.Join(e.cfg.dataDir, collectionID+"_map.json")
}

// SaveAll durably writes every shard's index and id-map. Partial failure of
// one shard is logged and does not abort the rest.
func (e *Engine) SaveAll() error {
	e.collsMu.Lock()
	ids := make([]string, 0, len(e.collections))
	for id := range e.collections {
		ids = append(ids, id)
	}
	e.collsMu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := e.SaveCollection(id); err != nil {
			e.logger.Error("save collection failed", zap.String("collection_id", id), zap.Error(err))
			e.sink.IncCheckpointErrors()
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// SaveCollection durably writes every shard of one collection atomically
// per file. A failing shard is logged; the remaining shards still save.
func (e *Engine) SaveCollection(collectionID string) error {
	e.collsMu.Lock()
	c, ok := e.collections[collectionID]
	e.collsMu.Unlock()
	if !ok {
		return nil
	}

	if err := os.MkdirAll(e.collectionDir(collectionID), 0o755); err != nil {
		return fmt.Errorf("engine: mkdir %s: %w", e.collectionDir(collectionID), err)
	}

	c.mu.Lock()
	shardIDs := make([]string, 0, len(c.shards))
	for id := range c.shards {
		shardIDs = append(shardIDs, id)
	}
	c.mu.Unlock()

	var firstErr error
	for _, shardID := range shardIDs {
		c.mu.Lock()
		shard := c.shards[shardID]
		c.mu.Unlock()

		if err := e.saveShard(collectionID, shardID, shard); err != nil {
			e.logger.Error("save shard failed",
				zap.String("collection_id", collectionID), zap.String("shard_id", shardID), zap.Error(err))
			e.sink.IncCheckpointErrors()
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if e.manifest != nil {
			shard.mu.Lock()
			count := shard.index.Len()
			shard.mu.Unlock()
			_ = e.manifest.Put(legacystore.Manifest{
				CollectionID: collectionID,
				ShardID:      shardID,
				VectorCount:  count,
				BytesUsed:    uint64(count) * uint64(e.cfg.dim) * 4,
			})
		}
	}
	return firstErr
}

func (e *Engine) saveShard(collectionID, shardID string, shard *shardState) error {
	shard.mu.Lock()
	defer shard.mu.Unlock()

	binPath := e.shardBinPath(collectionID, shardID)
	if err := writeAtomic(binPath, shard.index.Save); err != nil {
		return err
	}

	m := idMapFile{IDMap: make(map[string]string, len(shard.idMap)), NextID: shard.nextID}
	for id, docID := range shard.idMap {
		m.IDMap[strconv.FormatUint(id, 10)] = docID
	}
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("engine: marshal id map: %w", err)
	}
	mapPath := e.shardMapPath(collectionID, shardID)
	if err := writeAtomicBytes(mapPath, body); err != nil {
		return err
	}
	return nil
}

func writeAtomic(path string, write func(w io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("engine: create %s: %w", tmp, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("engine: write %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("engine: close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("engine: rename %s: %w", tmp, err)
	}
	return nil
}

func writeAtomicBytes(path string, body []byte) error {
	return writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(body)
		return err
	})
}

// LoadAll rebuilds engine state from data_dir, ingesting both the current
// per-collection-directory layout and the legacy flat-file layout. Errors
// on individual shards are logged and loading continues.
func (e *Engine) LoadAll() error {
	entries, err := os.ReadDir(e.cfg.dataDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("engine: read data dir %s: %w", e.cfg.dataDir, err)
	}

	legacyBinSeen := make(map[string]bool)

	for _, ent := range entries {
		name := ent.Name()
		switch {
		case ent.IsDir():
			if err := e.loadCollectionDir(name); err != nil {
				e.logger.Error("load collection failed", zap.String("collection_id", name), zap.Error(err))
			}
		case strings.HasSuffix(name, ".bin"):
			collectionID := strings.TrimSuffix(name, ".bin")
			legacyBinSeen[collectionID] = true
		}
	}

	for collectionID := range legacyBinSeen {
		if err := e.loadLegacyCollection(collectionID); err != nil {
			e.logger.Error("load legacy collection failed", zap.String("collection_id", collectionID), zap.Error(err))
		}
	}
	return nil
}

func (e *Engine) loadCollectionDir(collectionID string) error {
	dir := e.collectionDir(collectionID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("engine: read collection dir %s: %w", dir, err)
	}

	shardIDs := make(map[string]bool)
	for _, ent := range entries {
		name := ent.Name()
		if strings.HasPrefix(name, "shard_") && strings.HasSuffix(name, ".bin") {
			shardID := strings.TrimSuffix(strings.TrimPrefix(name, "shard_"), ".bin")
			shardIDs[shardID] = true
		}
	}

	for shardID := range shardIDs {
		if err := e.loadShardFiles(collectionID, shardID, e.shardBinPath(collectionID, shardID), e.shardMapPath(collectionID, shardID), false); err != nil {
			e.logger.Error("load shard failed",
				zap.String("collection_id", collectionID), zap.String("shard_id", shardID), zap.Error(err))
		}
	}
	return nil
}

func (e *Engine) loadLegacyCollection(collectionID string) error {
	return e.loadShardFiles(collectionID, defaultShardID, e.legacyBinPath(collectionID), e.legacyMapPath(collectionID), true)
}

func (e *Engine) loadShardFiles(collectionID, shardID, binPath, mapPath string, legacy bool) error {
	mapBody, err := os.ReadFile(mapPath)
	if err != nil {
		return fmt.Errorf("engine: read %s: %w", mapPath, err)
	}
	var m idMapFile
	if err := json.Unmarshal(mapBody, &m); err != nil {
		return fmt.Errorf("engine: parse %s: %w", mapPath, err)
	}

	f, err := os.Open(binPath)
	if err != nil {
		return fmt.Errorf("engine: open %s: %w", binPath, err)
	}
	defer f.Close()

	idx := flatcosine.New(e.cfg.dim)
	if err := idx.Load(f); err != nil {
		return fmt.Errorf("engine: load index %s: %w", binPath, err)
	}

	shard := newShardState(e.cfg.dim, idx)
	shard.nextID = m.NextID
	shard.legacy = legacy
	for idStr, docID := range m.IDMap {
		id, err := strconv.ParseUint(idStr, 10, 64)
		if err != nil {
			continue
		}
		shard.idMap[id] = docID
	}

	e.collsMu.Lock()
	c, ok := e.collections[collectionID]
	if !ok {
		c = &collection{shards: make(map[string]*shardState)}
		e.collections[collectionID] = c
	}
	e.collsMu.Unlock()

	c.mu.Lock()
	c.shards[shardID] = shard
	c.mu.Unlock()

	e.totalVectors.Add(uint64(idx.Len()))
	e.sink.SetVectorsTotal(e.totalVectors.Load())
	e.sink.SetBytesUsed(e.GetBytesUsed())
	return nil
}
