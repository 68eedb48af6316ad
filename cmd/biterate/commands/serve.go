package commands

import (
	"github.com/spf13/cobra"

	"github.com/biterate/socialagent/internal/mcp"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the knowledge base over MCP on stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing the
search_knowledge, sync_knowledge and get_status tools.

Logs go to stderr; stdout carries the protocol.`,
		Args: cobra.NoArgs,
		RunE: runServe,
		Example: `  # claude_desktop_config.json
  # {
  #   "mcpServers": {
  #     "biterate": {"command": "biterate", "args": ["serve"]}
  #   }
  # }`,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	idx, err := a.indexer()
	if err != nil {
		return err
	}
	srch, err := a.searcher()
	if err != nil {
		return err
	}
	server, err := mcp.NewServer(a.store, idx, srch, mcp.WithLogger(a.logger))
	if err != nil {
		return err
	}
	return server.Serve(cmd.Context())
}
