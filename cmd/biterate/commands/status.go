package commands

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/biterate/socialagent/internal/storage"
)

var statusRecentPosts int

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show knowledge base and post history",
		Long: `Show knowledge base size per source type, index health and the most
recent posts with their publication state.`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
	cmd.Flags().IntVar(&statusRecentPosts, "posts", 5, "Number of recent posts to list")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	status, err := a.store.GetStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Database:       %s (%s, %s)\n", a.cfg.Database.Path, storage.DriverName, status.SchemaVersion)
	fmt.Fprintf(out, "Records:        %d\n", status.RecordsCount)
	fmt.Fprintf(out, "Vectors:        %d\n", status.VectorsCount)
	fmt.Fprintf(out, "Sources:        %d\n", status.SourcesCount)
	fmt.Fprintf(out, "Index size:     %.2f MB\n", status.IndexSizeMB)
	fmt.Fprintf(out, "Full-text:      %s\n", okString(status.Health.FTSIndexBuilt))
	fmt.Fprintf(out, "Vector index:   %s\n", okString(status.Health.VectorIndexAvailable))

	sourceTypes := make([]string, 0, len(status.BySourceType))
	for t := range status.BySourceType {
		sourceTypes = append(sourceTypes, t)
	}
	sort.Strings(sourceTypes)
	for _, t := range sourceTypes {
		fmt.Fprintf(out, "  %-24s %d\n", t, status.BySourceType[t])
	}

	audit, err := a.store.AuditStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get audit stats: %w", err)
	}
	fmt.Fprintf(out, "Posts:          %d (published %d, pending %d, rejected %d, failed %d)\n",
		audit.TotalPosts,
		audit.PostsByStatus[storage.PostPublished], audit.PostsByStatus[storage.PostPending],
		audit.PostsByStatus[storage.PostRejected], audit.PostsByStatus[storage.PostFailed])
	fmt.Fprintf(out, "Reviews:        %d\n", audit.TotalReviews)
	fmt.Fprintf(out, "Replies:        %d\n", audit.TotalReplies)

	if statusRecentPosts <= 0 {
		return nil
	}
	posts, err := a.store.RecentPosts(ctx, statusRecentPosts)
	if err != nil {
		return fmt.Errorf("failed to list posts: %w", err)
	}
	fmt.Fprintln(out)
	if len(posts) == 0 {
		fmt.Fprintln(out, "No posts yet.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tCREATED\tSTATUS\tPREVIEW\n")
	for _, p := range posts {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
			p.ID, p.CreatedAt.Format("2006-01-02 15:04"), p.Status, truncate(oneLine(p.Content), 60))
	}
	return w.Flush()
}

func okString(ok bool) string {
	if ok {
		return "ok"
	}
	return "unavailable"
}
