package engine

// errors.go collects the sentinel values the engine surfaces to callers, in
// the style of pkg/config.go's errInvalidCap/errInvalidTTL/errInvalidShards:
// plain stdlib errors.New values, wrapped with %w at the point they occur so
// callers can errors.Is against them.
//
// © 2025 worker authors. MIT License.

import "errors"

var (
	// ErrDimensionMismatch is returned when a vector's width does not equal
	// the collection's configured embedding dimension.
	ErrDimensionMismatch = errors.New("engine: vector dimension mismatch")

	// ErrCountMismatch is returned when len(docIDs) != number of vectors in
	// a store request.
	ErrCountMismatch = errors.New("engine: doc id count does not match vector count")

	// ErrInvalidDim is returned by New when the configured embedding
	// dimension is not positive.
	ErrInvalidDim = errors.New("engine: embedding dimension must be > 0")

	// ErrInvalidMaxBytes is returned by New when the configured capacity is
	// not positive.
	ErrInvalidMaxBytes = errors.New("engine: max bytes must be > 0")
)
