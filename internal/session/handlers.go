package session

// handlers.go implements the store/search/challenge request handlers
// described in the design's §4.4, translating wire frames into
// pkg/engine and internal/challenge calls and back.
//
// © 2025 worker authors. MIT License.

import (
	"context"
	"encoding/hex"
	"encoding/json"

	"github.com/vecmesh/worker/internal/challenge"
	"github.com/vecmesh/worker/internal/veccodec"
)

const defaultTopK = 50

// handleStore parses and executes a store_request. Once the frame parses,
// it always returns a store_response — exceptions are converted to
// status=error rather than propagated, per spec §4.4. A frame that does not
// parse as a store_request gets an INVALID_MESSAGE error frame instead.
func (n *Node) handleStore(ctx context.Context, raw []byte) ([]byte, error) {
	var req StoreRequestFrame
	if err := json.Unmarshal(raw, &req); err != nil {
		return marshalFrame(newErrorFrame("", ErrCodeInvalidMessage, err.Error()))
	}

	resp := StoreResponseFrame{Type: "store_response", RequestID: req.RequestID, NodeID: n.cfg.NodeID}
	defer func() { n.sink.IncStoreRequests(resp.Status) }()

	vectors, err := veccodec.DecodeVectors(req.VectorsB64, req.Shape)
	if err != nil {
		resp.Status = "error"
		resp.ErrorMessage = err.Error()
		return marshalFrame(resp)
	}

	if !n.engine.CanAccept(len(vectors)) {
		resp.Status = "full"
		resp.StoredCount = 0
		return marshalFrame(resp)
	}

	stored, err := n.engine.AddVectors(ctx, req.CollectionID, vectors, req.DocIDs, req.ShardID)
	if err != nil {
		resp.Status = "error"
		resp.ErrorMessage = err.Error()
		return marshalFrame(resp)
	}

	resp.Status = "ok"
	resp.StoredCount = stored
	return marshalFrame(resp)
}

// handleSearch parses and executes a search_request. Any decode or search
// error yields an empty result list, not an error frame — the coordinator
// fans out across many shards and tolerates individual empty responses.
func (n *Node) handleSearch(ctx context.Context, raw []byte) ([]byte, error) {
	var req SearchRequestFrame
	resp := SearchResponseFrame{Type: "search_response", NodeID: n.cfg.NodeID, Results: []SearchResultItem{}}

	if err := json.Unmarshal(raw, &req); err != nil {
		return marshalFrame(resp)
	}
	resp.RequestID = req.RequestID

	topK := req.TopK
	if topK == 0 {
		topK = defaultTopK
	}

	query, err := veccodec.DecodeQuery(req.QueryB64, req.Shape)
	if err != nil {
		return marshalFrame(resp)
	}

	results, err := n.engine.Search(ctx, req.CollectionID, query, topK, req.ShardID)
	if err != nil {
		return marshalFrame(resp)
	}

	resp.Results = make([]SearchResultItem, len(results))
	for i, r := range results {
		resp.Results[i] = SearchResultItem{DocID: r.DocID, Score: r.Score}
	}
	return marshalFrame(resp)
}

// handleChallenge parses and executes a challenge_request. Any exception
// (malformed hex, etc.) yields an empty chunks list and response_time_ms=0
// per spec §4.5, never an error frame.
func (n *Node) handleChallenge(raw []byte) ([]byte, error) {
	var req ChallengeRequestFrame
	resp := ChallengeResponseFrame{Type: "challenge_response", Chunks: []string{}}
	status := "error"
	defer func() { n.sink.IncChallenges(status) }()

	if err := json.Unmarshal(raw, &req); err != nil {
		return marshalFrame(resp)
	}
	resp.ChallengeID = req.ChallengeID

	seed, err := hex.DecodeString(req.EpochSeed)
	if err != nil {
		return marshalFrame(resp)
	}

	status = "ok"
	result := challenge.Compute(challenge.Request{
		ChallengeID: req.ChallengeID,
		EpochSeed:   seed,
		Offsets:     req.Offsets,
		ChunkSize:   req.ChunkSize,
		DeadlineMS:  req.DeadlineMS,
	})

	resp.Chunks = result.Chunks
	resp.ResponseTimeMS = result.ResponseTimeMS
	return marshalFrame(resp)
}
