package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/biterate/socialagent/internal/api"
)

var apiAddr string

// NewAPICmd creates the api command
func NewAPICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Serve the agent over HTTP",
		Long: `Start an HTTP server to trigger runs and inspect post history.

Routes: GET /, GET /health, POST /run, GET /posts, GET /reviews, GET /stats.
When BITERATE_API_TOKEN is set, every route but /health requires
"Authorization: Bearer <token>".

Examples:
  biterate api
  biterate api --addr 127.0.0.1:9000
  curl -X POST localhost:8000/run -d '{"dry_run": true}'`,
		Args: cobra.NoArgs,
		RunE: runAPI,
	}
	cmd.Flags().StringVar(&apiAddr, "addr", "", "Listen address (default api.addr)")
	return cmd
}

func runAPI(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	opts := []api.Option{api.WithLogger(a.logger), api.WithToken(a.secrets.APIToken)}
	var srv *api.Server
	if ag, err := a.agent(); err == nil {
		srv = api.NewServer(a.store, ag, opts...)
	} else {
		a.logger.Warn("agent unavailable, POST /run disabled", "error", err)
		srv = api.NewServer(a.store, nil, opts...)
	}

	addr := a.cfg.API.Addr
	if apiAddr != "" {
		addr = apiAddr
	}
	err = srv.ListenAndServe(cmd.Context(), addr)
	if errors.Is(err, context.Canceled) {
		a.logger.Info("api stopped")
		return nil
	}
	return err
}
