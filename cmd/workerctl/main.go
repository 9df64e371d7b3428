// Command workerctl inspects a worker's on-disk state without starting a
// session: it opens data_dir read-only, loads every collection/shard, and
// prints a snapshot as text or JSON. This is an offline alternative to
// polling a live debug endpoint — the diagnostic surface here is the
// checkpoint files themselves (the on-disk layout), not a live
// process snapshot.
//
// © 2025 worker authors. MIT License.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vecmesh/worker/pkg/engine"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dataDir string
	var dim int
	var asJSON bool
	var watch bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:     "workerctl",
		Short:   "Inspect a worker node's on-disk vector data",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					if err := dumpOnce(dataDir, dim, asJSON); err != nil {
						fmt.Fprintln(os.Stderr, "error:", err)
					}
					<-ticker.C
				}
			}
			return dumpOnce(dataDir, dim, asJSON)
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", "./data", "engine data directory to inspect")
	cmd.Flags().IntVar(&dim, "dim", 384, "embedding dimension the data was written with")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print machine-readable JSON instead of a table")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-scan data-dir on an interval instead of exiting")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "re-scan interval when --watch is set")
	return cmd
}

func dumpOnce(dataDir string, dim int, asJSON bool) error {
	eng, err := engine.New(dataDir, dim, 1<<62, nil)
	if err != nil {
		return fmt.Errorf("workerctl: open engine: %w", err)
	}
	defer eng.Close()

	if err := eng.LoadAll(); err != nil {
		return fmt.Errorf("workerctl: load data-dir: %w", err)
	}

	stats := eng.Inspect()
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	return printTable(stats)
}

func printTable(stats []engine.ShardStat) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COLLECTION\tSHARD\tVECTORS\tBYTES\tLEGACY")
	var totalVectors int
	var totalBytes uint64
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%v\n", s.CollectionID, s.ShardID, s.VectorCount, s.BytesUsed, s.Legacy)
		totalVectors += s.VectorCount
		totalBytes += s.BytesUsed
	}
	fmt.Fprintf(w, "TOTAL\t\t%d\t%d\t\n", totalVectors, totalBytes)
	return w.Flush()
}
