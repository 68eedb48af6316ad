package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/biterate/socialagent/internal/config"
)

var (
	configPath string
	verbose    bool
)

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "biterate",
		Short: "BiteRate social media agent",
		Long: `BiteRate drafts social media posts from restaurant reviews kept in Notion,
grounds them in a hybrid keyword and semantic knowledge base, asks a human
on Telegram for approval and publishes to Mastodon.

Configuration is read from config.yaml; credentials come from the
environment or a .env file.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the configuration file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		NewSyncCmd(),
		NewSearchCmd(),
		NewResyncCmd(),
		NewRunCmd(),
		NewListenCmd(),
		NewWatchCmd(),
		NewServeCmd(),
		NewAPICmd(),
		NewStatusCmd(),
		NewVersionCmd(),
	)
	return root
}

// Execute runs the CLI until it finishes or the process is interrupted
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// newLogger writes text logs to stderr; stdout stays free for command
// output and the MCP protocol
func newLogger(cfg *config.Config) *slog.Logger {
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
