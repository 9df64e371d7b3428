package session

// session.go owns the Node type and its top-level Offline/Connecting/
// Backoff/Registered loop (Run). Each Registered session spawns the three
// structured-concurrency sibling tasks (receive, heartbeat, checkpoint) and
// tears them all down together on disconnect, matching the "background
// tasks + cancellation" design note.
//
// © 2025 worker authors. MIT License.

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vecmesh/worker/internal/poram"
	"github.com/vecmesh/worker/internal/telemetry"
	"github.com/vecmesh/worker/pkg/engine"
)

// Option configures a Node at construction time.
type Option func(*Node)

// WithLogger plugs an external zap.Logger.
func WithLogger(l *zap.Logger) Option {
	return func(n *Node) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithMetrics supplies a telemetry.Sink; pass telemetry.NewSink(nil) (the
// default) to disable metrics.
func WithMetrics(sink telemetry.Sink) Option {
	return func(n *Node) {
		if sink != nil {
			n.sink = sink
		}
	}
}

// Node is the worker's coordinator-facing session. The zero value is not
// usable; construct with New.
type Node struct {
	cfg         Config
	engine      *engine.Engine
	reservation *poram.Reservation

	logger *zap.Logger
	sink   telemetry.Sink

	state stateHolder
	sf    singleflightGroup

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// New constructs a Node. reservation is held only for its process-lifetime
// side effect (the committed RAM backing the node's PoRAM claim); Node
// never reads from it, per internal/poram's package doc.
func New(cfg Config, eng *engine.Engine, reservation *poram.Reservation, opts ...Option) *Node {
	n := &Node{
		cfg:         cfg,
		engine:      eng,
		reservation: reservation,
		logger:      zap.NewNop(),
		sink:        telemetry.NewSink(nil),
		shutdown:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// State returns the node's current state machine position.
func (n *Node) State() State { return n.state.get() }

// Shutdown requests a graceful teardown: the current session (if any) is
// torn down, the engine is checkpointed once, and Run returns. Safe to call
// more than once or concurrently with Run.
func (n *Node) Shutdown() {
	n.shutdownOnce.Do(func() { close(n.shutdown) })
}

// Run drives the state machine until ctx is cancelled or Shutdown is
// called. It always returns nil; errors at any stage are logged and
// answered with the Backoff detour, never propagated to the caller — the
// node reconnects forever rather than giving up.
func (n *Node) Run(ctx context.Context) error {
	defer func() {
		if err := n.engine.SaveAll(); err != nil {
			n.logger.Error("final checkpoint failed", zap.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			n.state.set(StateOffline)
			return nil
		case <-n.shutdown:
			n.state.set(StateOffline)
			return nil
		default:
		}

		fc, err := n.ensureConnected(ctx)
		if err != nil {
			n.logger.Warn("connect failed, backing off", zap.Error(err), zap.Duration("backoff", n.cfg.ReconnectBackoff))
			n.state.set(StateBackoff)
			if !n.sleep(ctx, n.cfg.ReconnectBackoff) {
				n.state.set(StateOffline)
				return nil
			}
			continue
		}

		n.runRegistered(ctx, fc)
		n.state.set(StateOffline)
	}
}

// sleep blocks for d or until ctx/shutdown fires, returning false in the
// latter case so callers can exit promptly instead of finishing the sleep.
func (n *Node) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-n.shutdown:
		return false
	}
}

// runRegistered spawns the three Registered-state tasks and blocks until
// all three have exited (transport closed by either side, or shutdown),
// then checkpoints synchronously before returning. When the node is
// shutting down (Shutdown called or ctx cancelled) the checkpoint is left
// to Run's final save, so the engine is saved once.
func (n *Node) runRegistered(ctx context.Context, fc *frameConn) {
	rctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-n.shutdown:
			cancel()
		case <-rctx.Done():
		}
	}()

	var wg sync.WaitGroup
	wg.Add(3)
	go n.receiveLoop(rctx, fc, cancel, &wg)
	go n.heartbeatLoop(rctx, fc, cancel, &wg)
	go n.checkpointLoop(rctx, &wg)
	wg.Wait()

	_ = fc.close()

	select {
	case <-n.shutdown:
		return
	default:
	}
	if ctx.Err() != nil {
		return
	}

	if err := n.engine.SaveAll(); err != nil {
		n.logger.Error("session teardown checkpoint failed", zap.Error(err))
		n.sink.IncCheckpointErrors()
	}
}
