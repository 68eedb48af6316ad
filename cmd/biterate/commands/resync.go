package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/biterate/socialagent/pkg/types"
)

var resyncSourceType string

// NewResyncCmd creates the resync command
func NewResyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resync <source-id>",
		Short: "Replace one document in the knowledge base",
		Long: `Delete every record of one document and ingest a fresh copy.

The source id is a Notion page id (with or without hyphens) or, for
--type local_file, a file path. Records are only removed once the new
copy has been fetched.

Examples:
  biterate resync 1f2e3d4c5b6a79881f2e3d4c5b6a7988
  biterate resync --type notion_database_entry 1f2e3d4c-5b6a-7988-1f2e-3d4c5b6a7988
  biterate resync --type local_file docs/voice.md`,
		Args: cobra.ExactArgs(1),
		RunE: runResync,
	}
	cmd.Flags().StringVarP(&resyncSourceType, "type", "t", types.SourceNotionPage,
		"Source type: notion_page, notion_database_entry or local_file")
	return cmd
}

func runResync(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	idx, err := a.indexer()
	if err != nil {
		return err
	}
	stats, err := idx.Resync(cmd.Context(), args[0], resyncSourceType)
	if err != nil {
		return fmt.Errorf("resync failed: %w", err)
	}
	printStatistics(cmd.OutOrStdout(), stats)
	return nil
}
