package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/biterate/socialagent/internal/searcher"
)

var (
	searchTopK           int
	searchKeywordWeight  float64
	searchSemanticWeight float64
	searchMode           string
	searchJSON           bool
)

// NewSearchCmd creates the search command
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the knowledge base",
		Long: `Search the knowledge base with fused keyword and semantic retrieval.

Weights left at zero fall back to rag.keyword_weight and
rag.semantic_weight from the configuration.

Examples:
  biterate search "best ramen"
  biterate search --top-k 3 --keyword-weight 0.2 --semantic-weight 0.8 "spicy noodles"
  biterate search --mode keyword --json "tiramisu"`,
		Args: cobra.ExactArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "Maximum results to return (default rag.top_k)")
	cmd.Flags().Float64Var(&searchKeywordWeight, "keyword-weight", 0, "Weight of the full-text score")
	cmd.Flags().Float64Var(&searchSemanticWeight, "semantic-weight", 0, "Weight of the vector similarity score")
	cmd.Flags().StringVar(&searchMode, "mode", string(searcher.SearchModeHybrid), "hybrid, semantic or keyword")
	cmd.Flags().BoolVar(&searchJSON, "json", false, "Print results as JSON")
	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchTopK < 0 {
		return fmt.Errorf("--top-k must not be negative")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	srch, err := a.searcher()
	if err != nil {
		return err
	}
	resp, err := srch.Search(cmd.Context(), searcher.SearchRequest{
		Query:          args[0],
		Limit:          searchTopK,
		Mode:           searcher.SearchMode(searchMode),
		KeywordWeight:  searchKeywordWeight,
		SemanticWeight: searchSemanticWeight,
		MatchAnyTerm:   true,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if searchJSON {
		data, err := json.MarshalIndent(resp.Results, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(out, "%s\n", data)
		return nil
	}

	if len(resp.Results) == 0 {
		fmt.Fprintln(out, searcher.NoContext)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RANK\tSCORE\tSOURCE\tPREVIEW\n")
	for _, r := range resp.Results {
		fmt.Fprintf(w, "%d\t%.3f\t%s\t%s\n",
			r.Rank, r.FinalScore, truncate(r.SourceType+":"+r.SourceID, 40), truncate(oneLine(r.Content), 60))
	}
	_ = w.Flush()
	fmt.Fprintf(out, "\n%d result(s) in %s\n", resp.TotalResults, resp.Duration.Round(1e6))
	return nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate keeps at most n runes, marking the cut with "..."
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
