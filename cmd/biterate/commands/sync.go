package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/biterate/socialagent/internal/indexer"
)

var syncForce bool

// NewSyncCmd creates the sync command
func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync Notion content into the knowledge base",
		Long: `Pull the configured Notion pages, review databases and local documents
into the knowledge base.

A knowledge base that already holds records is left alone unless --force
is given, which empties it and rebuilds it from scratch.

Examples:
  biterate sync
  biterate sync --force`,
		Args: cobra.NoArgs,
		RunE: runSync,
	}
	cmd.Flags().BoolVarP(&syncForce, "force", "f", false, "Empty the knowledge base and rebuild it")
	return cmd
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	idx, err := a.indexer()
	if err != nil {
		return err
	}

	req := indexer.SyncRequest{Force: syncForce}
	var bar syncProgress
	if progressEnabled() {
		req.OnProgress = bar.Report
	}
	stats, err := idx.Sync(cmd.Context(), req)
	bar.Finish()
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	printStatistics(cmd.OutOrStdout(), stats)
	return nil
}

func printStatistics(w io.Writer, stats *indexer.Statistics) {
	if stats.Skipped {
		fmt.Fprintln(w, "Knowledge base already populated; use --force to rebuild it.")
		return
	}
	fmt.Fprintf(w, "Documents synced: %d\n", stats.DocumentsSynced)
	fmt.Fprintf(w, "Documents failed: %d\n", stats.DocumentsFailed)
	fmt.Fprintf(w, "Chunks created:   %d\n", stats.ChunksCreated)
	if stats.ChunksFailed > 0 {
		fmt.Fprintf(w, "Chunks failed:    %d\n", stats.ChunksFailed)
	}
	fmt.Fprintf(w, "Duration:         %s\n", stats.Duration.Round(1e6))
	for _, msg := range stats.ErrorMessages {
		fmt.Fprintf(w, "  error: %s\n", msg)
	}
}
