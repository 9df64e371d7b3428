package session

// reconnect.go implements the Connecting state and handshake, with
// singleflight-based deduplication so a reconnect triggered through the
// exported Connect never races a reconnect already under way from Run's
// own loop — only one dial +
// handshake attempt is in flight at a time, and every caller waiting on it
// receives the same result, the same sharing guarantee
// pkg/loader.go documents for its cache-fill path.
//
// © 2025 worker authors. MIT License.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type singleflightGroup = singleflight.Group

// ensureConnected dials and hands back a Registered frameConn, deduping
// concurrent callers onto a single attempt.
func (n *Node) ensureConnected(ctx context.Context) (*frameConn, error) {
	v, err, shared := n.sf.Do("connect", func() (any, error) {
		return n.connectOnce(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		n.logger.Debug("reconnect attempt shared with an in-flight caller")
	}
	return v.(*frameConn), nil
}

// Connect forces an immediate reconnect attempt outside the normal
// 5 s backoff schedule, deduped against any attempt already in flight.
// Nothing in this module calls it (cmd/workerctl is an offline inspector);
// Run's own loop uses the same ensureConnected path.
func (n *Node) Connect(ctx context.Context) error {
	_, err := n.ensureConnected(ctx)
	return err
}

func (n *Node) connectOnce(ctx context.Context) (*frameConn, error) {
	n.state.set(StateConnecting)

	if len(n.cfg.CoordinatorURLs) == 0 {
		return nil, fmt.Errorf("session: no coordinator_url configured")
	}

	fc, url, err := dial(n.cfg.CoordinatorURLs, n.cfg.TLSInsecureSkipVerify)
	if err != nil {
		return nil, err
	}
	n.logger.Info("connected to coordinator", zap.String("url", url))

	if err := n.handshake(fc); err != nil {
		_ = fc.close()
		return nil, err
	}

	n.state.set(StateRegistered)
	n.logger.Info("registered with coordinator", zap.String("url", url))
	return fc, nil
}

// handshake sends one register frame and awaits exactly one response
// within the configured handshake timeout. A message with type=="error"
// rejects the session; any other response, including a bare timeout, is
// treated as success, per spec §4.3.
func (n *Node) handshake(fc *frameConn) error {
	reg := RegisterFrame{
		Type:         "register",
		NodeID:       n.cfg.NodeID,
		CapacityGB:   n.cfg.CapacityGB,
		EmbeddingDim: n.cfg.EmbeddingDim,
		IndexVersion: n.cfg.IndexVersion,
		Secret:       n.cfg.Secret,
		SuiAddress:   n.cfg.SuiAddress,
		SuiSignature: n.cfg.SuiSignature,
		Timestamp:    time.Now().Unix(),
		ReferralCode: n.cfg.ReferralCode,
	}
	body, err := marshalFrame(reg)
	if err != nil {
		return fmt.Errorf("session: marshal register frame: %w", err)
	}
	if err := fc.writeLine(body); err != nil {
		return fmt.Errorf("session: send register frame: %w", err)
	}

	line, ok, err := fc.readFrame(n.cfg.HandshakeTimeout)
	if err != nil {
		return fmt.Errorf("session: handshake transport error: %w", err)
	}
	if !ok {
		return nil // timeout: treated as success
	}

	var frame Frame
	if err := json.Unmarshal([]byte(line), &frame); err != nil {
		return nil // malformed non-error response: still "any other response"
	}
	if frame.Type == "error" {
		return ErrRegistrationRejected
	}
	return nil
}
