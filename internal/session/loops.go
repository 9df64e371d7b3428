package session

// loops.go implements the three Registered-state tasks: the receive loop
// (frame dispatch), the heartbeat loop, and the checkpoint loop. All three
// are structured-concurrency siblings spawned together in runRegistered and
// torn down together — none is allowed to outlive the session's transport.
//
// © 2025 worker authors. MIT License.

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// receiveLoop reads frames with a 1 s poll timeout, dispatches each to the
// matching handler, and writes the response back on the same connection.
// Response order equals request order because this loop is single-task and
// runs each handler to completion before reading the next frame.
func (n *Node) receiveLoop(ctx context.Context, fc *frameConn, cancel context.CancelFunc, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, ok, err := fc.readFrame(n.cfg.ReceivePollTimeout)
		if err != nil {
			n.logger.Info("receive loop: transport closed", zap.Error(err))
			cancel()
			return
		}
		if !ok {
			continue // poll timeout, recheck ctx.Done()
		}

		n.dispatch(ctx, fc, []byte(line))
	}
}

// dispatch decodes the frame's type discriminator, routes to the matching
// handler, and writes the response. A panic inside a handler is recovered
// and converted to an INTERNAL_ERROR error frame so the session continues,
// per spec §4.3's "exceptions inside a handler produce an error frame...
// and the session continues".
func (n *Node) dispatch(ctx context.Context, fc *frameConn, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		n.writeError(fc, "", ErrCodeInvalidMessage, err.Error())
		return
	}

	resp, err := n.dispatchRecovered(ctx, frame.Type, raw)
	if err != nil {
		n.writeError(fc, "", ErrCodeInternalError, err.Error())
		return
	}
	if resp == nil {
		n.writeError(fc, "", ErrCodeInvalidMessage, fmt.Sprintf("unrecognized frame type %q", frame.Type))
		return
	}

	if err := fc.writeLine(resp); err != nil {
		n.logger.Warn("write response failed", zap.Error(err))
	}
}

func (n *Node) dispatchRecovered(ctx context.Context, frameType string, raw []byte) (resp []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	switch frameType {
	case "store_request":
		return n.handleStore(ctx, raw)
	case "search_request":
		return n.handleSearch(ctx, raw)
	case "challenge_request":
		return n.handleChallenge(raw)
	default:
		return nil, nil
	}
}

func (n *Node) writeError(fc *frameConn, requestID, code, message string) {
	body, err := marshalFrame(newErrorFrame(requestID, code, message))
	if err != nil {
		return
	}
	if err := fc.writeLine(body); err != nil {
		n.logger.Warn("write error frame failed", zap.Error(err))
	}
}

// heartbeatLoop sends a heartbeat frame every HeartbeatInterval carrying
// the current vector count, bytes used, and an ISO-8601 UTC timestamp.
func (n *Node) heartbeatLoop(ctx context.Context, fc *frameConn, cancel context.CancelFunc, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(n.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hb := HeartbeatFrame{
				Type:          "heartbeat",
				NodeID:        n.cfg.NodeID,
				VectorsStored: n.engine.GetTotalVectors(),
				BytesUsed:     n.engine.GetBytesUsed(),
				Timestamp:     time.Now().UTC().Format(time.RFC3339),
			}
			body, err := marshalFrame(hb)
			if err != nil {
				continue
			}
			if err := fc.writeLine(body); err != nil {
				n.logger.Info("heartbeat loop: transport closed", zap.Error(err))
				cancel()
				return
			}
			n.sink.IncHeartbeats()
		}
	}
}

// checkpointLoop invokes SaveAll every CheckpointInterval. Disk I/O errors
// are logged and do not tear down the session.
func (n *Node) checkpointLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(n.cfg.CheckpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := n.engine.SaveAll(); err != nil {
				n.logger.Error("periodic checkpoint failed", zap.Error(err))
				n.sink.IncCheckpointErrors()
			}
		}
	}
}
