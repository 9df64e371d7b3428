// Package session implements the worker's reconnecting client to the
// coordinator: the registration handshake, the message-dispatch loop, the
// heartbeat task, and the checkpoint task, torn down together on
// disconnect. It is the Go analogue of the state machine described for the
// coordinator-facing half of the worker.
//
// © 2025 worker authors. MIT License.
package session

import "encoding/json"

// Frame is the envelope every wire message shares: a discriminator field
// decoded first, then re-decoded into the type-specific struct below. This
// is the tagged-union decode-then-dispatch idiom for the dynamic,
// duck-typed JSON messages the coordinator speaks.
type Frame struct {
	Type string `json:"type"`
}

// Error codes carried in ErrorFrame.ErrorCode.
const (
	ErrCodeStorageFull        = "STORAGE_FULL"
	ErrCodeIndexCorrupted     = "INDEX_CORRUPTED"
	ErrCodeUnknownCollection  = "UNKNOWN_COLLECTION"
	ErrCodeInvalidMessage     = "INVALID_MESSAGE"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// RegisterFrame is sent once, node -> coordinator, at the start of a
// session.
type RegisterFrame struct {
	Type          string `json:"type"`
	NodeID        string `json:"node_id"`
	CapacityGB    int    `json:"capacity_gb"`
	EmbeddingDim  int    `json:"embedding_dim"`
	IndexVersion  int    `json:"index_version"`
	Secret        string `json:"secret"`
	SuiAddress    string `json:"sui_address"`
	SuiSignature  string `json:"sui_signature,omitempty"`
	Timestamp     int64  `json:"timestamp,omitempty"`
	ReferralCode  string `json:"referral_code,omitempty"`
}

// HeartbeatFrame is sent periodically, node -> coordinator.
type HeartbeatFrame struct {
	Type          string `json:"type"`
	NodeID        string `json:"node_id"`
	VectorsStored uint64 `json:"vectors_stored"`
	BytesUsed     uint64 `json:"bytes_used"`
	Timestamp     string `json:"timestamp"`
}

// StoreRequestFrame is a write request, coordinator -> node.
type StoreRequestFrame struct {
	Type         string   `json:"type"`
	RequestID    string   `json:"request_id"`
	CollectionID string   `json:"collection_id"`
	ShardID      string   `json:"shard_id,omitempty"`
	DocIDs       []string `json:"doc_ids"`
	VectorsB64   string   `json:"vectors_b64"`
	Shape        [2]int   `json:"shape"`
}

// StoreResponseFrame answers a StoreRequestFrame, node -> coordinator.
type StoreResponseFrame struct {
	Type         string `json:"type"`
	RequestID    string `json:"request_id"`
	NodeID       string `json:"node_id"`
	StoredCount  int    `json:"stored_count"`
	Status       string `json:"status"` // ok | full | error
	ErrorMessage string `json:"error_message,omitempty"`
}

// SearchRequestFrame is a query request, coordinator -> node.
type SearchRequestFrame struct {
	Type         string `json:"type"`
	RequestID    string `json:"request_id"`
	CollectionID string `json:"collection_id"`
	ShardID      string `json:"shard_id,omitempty"`
	QueryB64     string `json:"query_b64"`
	Shape        [1]int `json:"shape"`
	TopK         int    `json:"top_k"`
}

// SearchResultItem is one scored hit in a SearchResponseFrame.
type SearchResultItem struct {
	DocID string  `json:"doc_id"`
	Score float32 `json:"score"`
}

// SearchResponseFrame answers a SearchRequestFrame, node -> coordinator.
type SearchResponseFrame struct {
	Type    string             `json:"type"`
	RequestID string           `json:"request_id"`
	NodeID  string             `json:"node_id"`
	Results []SearchResultItem `json:"results"`
}

// ChallengeRequestFrame is a PoRAM challenge, coordinator -> node.
type ChallengeRequestFrame struct {
	Type        string   `json:"type"`
	ChallengeID string   `json:"challenge_id"`
	EpochSeed   string   `json:"epoch_seed"` // hex
	Offsets     []uint64 `json:"offsets"`
	ChunkSize   int      `json:"chunk_size"`
	DeadlineMS  int64    `json:"deadline_ms"`
}

// ChallengeResponseFrame answers a ChallengeRequestFrame, node -> coordinator.
type ChallengeResponseFrame struct {
	Type           string   `json:"type"`
	ChallengeID    string   `json:"challenge_id"`
	Chunks         []string `json:"chunks"`
	ResponseTimeMS int64    `json:"response_time_ms"`
}

// ErrorFrame may flow in either direction.
type ErrorFrame struct {
	Type         string `json:"type"`
	RequestID    string `json:"request_id,omitempty"`
	NodeID       string `json:"node_id,omitempty"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func newErrorFrame(requestID, code, message string) ErrorFrame {
	return ErrorFrame{Type: "error", RequestID: requestID, ErrorCode: code, ErrorMessage: message}
}

// marshalFrame is a small helper so callers never forget the type
// discriminator is already embedded in the struct literal.
func marshalFrame(v any) ([]byte, error) {
	return json.Marshal(v)
}
