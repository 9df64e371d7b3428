// Command vecset_gen generates a deterministic synthetic vector dataset and
// emits it as a ready-to-send store_request wire frame, the analogue of
// tools/dataset_gen's synthetic key generator for this domain: instead of a
// flat list of uint64 keys for a cache benchmark, it produces a batch of
// random unit-ish embedding vectors and doc_ids for feeding a worker's
// store path over a session.
//
// Usage:
//
//	go run ./tools/vecset_gen -n 1000 -dim 384 -collection demo -seed 42 -out batch.json
//
// © 2025 worker authors. MIT License.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/vecmesh/worker/internal/session"
	"github.com/vecmesh/worker/internal/veccodec"
)

func main() {
	var (
		n            = flag.Int("n", 1000, "number of vectors to generate")
		dim          = flag.Int("dim", 384, "embedding dimension")
		collectionID = flag.String("collection", "demo", "collection_id to target")
		shardID      = flag.String("shard", "", "shard_id to target (empty means default)")
		seedVal      = flag.Int64("seed", 42, "PRNG seed")
		outPath      = flag.String("out", "", "output file (default stdout)")
	)
	flag.Parse()

	if *n <= 0 || *dim <= 0 {
		fmt.Fprintln(os.Stderr, "n and dim must be > 0")
		os.Exit(1)
	}

	rnd := rand.New(rand.NewSource(*seedVal))

	vectors := make([][]float32, *n)
	docIDs := make([]string, *n)
	for i := 0; i < *n; i++ {
		v := make([]float32, *dim)
		for j := range v {
			v[j] = rnd.Float32()*2 - 1
		}
		vectors[i] = v
		docIDs[i] = fmt.Sprintf("doc-%08d", i)
	}

	b64, shape, err := veccodec.EncodeVectors(vectors)
	if err != nil {
		fmt.Fprintln(os.Stderr, "encode:", err)
		os.Exit(1)
	}

	frame := session.StoreRequestFrame{
		Type:         "store_request",
		RequestID:    fmt.Sprintf("vecset_gen-%d", *seedVal),
		CollectionID: *collectionID,
		ShardID:      *shardID,
		DocIDs:       docIDs,
		VectorsB64:   b64,
		Shape:        shape,
	}

	var out *os.File
	if *outPath == "" {
		out = os.Stdout
	} else {
		out, err = os.Create(*outPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "cannot create file:", err)
			os.Exit(1)
		}
		defer out.Close()
	}

	enc := json.NewEncoder(out)
	if err := enc.Encode(frame); err != nil {
		fmt.Fprintln(os.Stderr, "write:", err)
		os.Exit(1)
	}
}
