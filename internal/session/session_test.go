package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vecmesh/worker/pkg/engine"
)

func TestRunBacksOffWhenNoCoordinatorReachable(t *testing.T) {
	eng, err := engine.New(t.TempDir(), 4, 1<<30, nil)
	require.NoError(t, err)

	cfg := Default("127.0.0.1:1") // nothing listening
	cfg.ReconnectBackoff = 5 * time.Millisecond
	n := New(cfg, eng, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	require.NoError(t, n.Run(ctx))
	require.Equal(t, StateOffline, n.State())
}

func TestShutdownStopsRun(t *testing.T) {
	eng, err := engine.New(t.TempDir(), 4, 1<<30, nil)
	require.NoError(t, err)

	cfg := Default("127.0.0.1:1")
	cfg.ReconnectBackoff = 50 * time.Millisecond
	n := New(cfg, eng, nil)

	done := make(chan error, 1)
	go func() { done <- n.Run(context.Background()) }()

	time.Sleep(5 * time.Millisecond)
	n.Shutdown()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Shutdown")
	}
}

func TestStateString(t *testing.T) {
	require.Equal(t, "offline", StateOffline.String())
	require.Equal(t, "connecting", StateConnecting.String())
	require.Equal(t, "backoff", StateBackoff.String())
	require.Equal(t, "registered", StateRegistered.String())
}
