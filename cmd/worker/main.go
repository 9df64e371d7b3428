// Command worker runs one vector-search worker node: it commits the
// declared RAM budget, opens the on-disk vector engine, and maintains a
// reconnecting session to the coordinator until terminated.
//
// Configuration is read entirely from the environment, following
// cmd/node/main.go's getenv/mustGetenv idiom rather than a flags package —
// operators run this under a process supervisor that sets env vars, not a
// human typing flags.
//
// © 2025 worker authors. MIT License.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vecmesh/worker/internal/challenge"
	"github.com/vecmesh/worker/internal/poram"
	"github.com/vecmesh/worker/internal/session"
	"github.com/vecmesh/worker/internal/telemetry"
	"github.com/vecmesh/worker/pkg/engine"
)

var version = "dev"

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "worker",
		Short:   "Run a vector-search worker node",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context())
		},
	}
	cmd.AddCommand(newChallengeCmd())
	return cmd
}

// newChallengeCmd offers an offline PoRAM self-test: it commits a fresh
// reservation and runs the same crypto/sha256 chain the coordinator would
// ask for (the chain does not read the reservation), without ever dialing a
// coordinator. Useful for an
// operator verifying a box can actually back its claimed RAM budget before
// pointing it at a real coordinator_url.
func newChallengeCmd() *cobra.Command {
	var gb int
	var chunkSize int
	cmd := &cobra.Command{
		Use:   "challenge",
		Short: "Run a local PoRAM self-test and print the resulting chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := poram.New(gb)
			if err != nil {
				return err
			}
			seed := make([]byte, 32)
			result := challenge.Compute(challenge.Request{
				ChallengeID: "self-test",
				EpochSeed:   seed,
				Offsets:     []uint64{0, uint64(chunkSize)},
				ChunkSize:   chunkSize,
				DeadlineMS:  1000,
			})
			fmt.Printf("committed %d GiB, %d chunks, response_time_ms=%d\n", res.TotalGB(), len(result.Chunks), result.ResponseTimeMS)
			return nil
		},
	}
	cmd.Flags().IntVar(&gb, "ram-gb", 1, "GiB to commit for the self-test")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 4096, "challenge chunk size in bytes")
	return cmd
}

func runWorker(ctx context.Context) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("worker: build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	nodeID := getenv("NODE_ID", "")
	if nodeID == "" {
		nodeID = uuid.NewString()
		logger.Info("NODE_ID unset, generated a random one", zap.String("node_id", nodeID))
	}

	dataDir := getenv("DATA_DIR", "./data")
	coordinatorURL := mustGetenv(logger, "COORDINATOR_URL")
	capacityGB := mustGetenvInt(logger, "MAX_RAM_GB")
	embeddingDim := mustGetenvInt(logger, "EMBEDDING_DIM")
	indexVersion := getenvInt(logger, "INDEX_VERSION", 1)
	secret := mustGetenv(logger, "SECRET")
	suiAddress := mustGetenv(logger, "SUI_ADDRESS")
	suiSignature := getenv("SUI_SIGNATURE", "")
	referralCode := getenv("REFERRAL_CODE", "")
	metricsAddr := getenv("METRICS_ADDR", "")

	reservation, err := poram.New(capacityGB)
	if err != nil {
		return fmt.Errorf("worker: ram reservation: %w", err)
	}

	var registry *prometheus.Registry
	if metricsAddr != "" {
		registry = prometheus.NewRegistry()
		go serveMetrics(logger, metricsAddr, registry)
	}
	// Built once and shared with the engine below: telemetry.NewSink
	// registers collectors on registry, and registering the same names
	// twice on one registry panics.
	sink := telemetry.NewSink(registry)

	maxBytes := uint64(capacityGB) << 30
	eng, err := engine.New(dataDir, embeddingDim, maxBytes, nil,
		engine.WithLogger(logger),
		engine.WithMetricsSink(sink),
	)
	if err != nil {
		return fmt.Errorf("worker: build engine: %w", err)
	}
	defer eng.Close()

	if err := eng.LoadAll(); err != nil {
		return fmt.Errorf("worker: load existing data: %w", err)
	}

	cfg := session.Default(coordinatorURL)
	cfg.NodeID = nodeID
	cfg.CapacityGB = capacityGB
	cfg.EmbeddingDim = embeddingDim
	cfg.IndexVersion = indexVersion
	cfg.Secret = secret
	cfg.SuiAddress = suiAddress
	cfg.SuiSignature = suiSignature
	cfg.ReferralCode = referralCode

	node := session.New(cfg, eng, reservation,
		session.WithLogger(logger),
		session.WithMetrics(sink),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("shutdown signal received")
		node.Shutdown()
		cancel()
	}()

	logger.Info("worker starting",
		zap.String("node_id", nodeID),
		zap.Int("capacity_gb", capacityGB),
		zap.Int("embedding_dim", embeddingDim),
		zap.Strings("coordinator_urls", cfg.CoordinatorURLs),
	)

	return node.Run(runCtx)
}

func serveMetrics(logger *zap.Logger, addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logger.Info("metrics endpoint listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil { //nolint:gosec
		logger.Error("metrics server exited", zap.Error(err))
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(logger *zap.Logger, k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Fatal("invalid integer env var", zap.String("var", k), zap.String("value", v))
	}
	return n
}

func mustGetenv(logger *zap.Logger, k string) string {
	v := os.Getenv(k)
	if v == "" {
		logger.Fatal("missing required env var", zap.String("var", k))
	}
	return v
}

func mustGetenvInt(logger *zap.Logger, k string) int {
	v := mustGetenv(logger, k)
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Fatal("invalid integer env var", zap.String("var", k), zap.String("value", v))
	}
	return n
}
