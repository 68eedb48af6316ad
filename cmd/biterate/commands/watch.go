package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/biterate/socialagent/internal/watcher"
)

var watchOnce bool

// NewWatchCmd creates the watch command
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-index Notion pages when they change",
		Long: `Poll the configured Notion pages for edits. A changed page is re-indexed
on its own and, with watcher.auto_post, the posting workflow runs once
for every poll that saw a change.

The first poll only records each page's edit time. --once polls a single
time and exits.

Examples:
  biterate watch
  biterate watch --once`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
	cmd.Flags().BoolVar(&watchOnce, "once", false, "Poll once and exit")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.cfg.Watcher.Enabled && !watchOnce {
		return errors.New("watcher is disabled; set watcher.enabled in the configuration or pass --once")
	}
	if len(a.cfg.Notion.PageIDs) == 0 {
		return errors.New("no notion.page_ids configured to watch")
	}

	w, err := a.watcher()
	if err != nil {
		return err
	}

	if watchOnce {
		result, err := w.Check(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Pages checked: %d, new: %d, changed: %d, re-indexed: %d, failed: %d\n",
			result.Checked, result.Initialized, len(result.Changed), result.Resynced, result.Failed)
		if result.Post != nil {
			printResult(cmd, result.Post)
		}
		return nil
	}

	err = w.Run(cmd.Context())
	if errors.Is(err, context.Canceled) {
		a.logger.Info("watcher stopped")
		return nil
	}
	return err
}

func (a *app) watcher() (*watcher.Watcher, error) {
	pages, err := a.notion()
	if err != nil {
		return nil, err
	}
	idx, err := a.indexer()
	if err != nil {
		return nil, err
	}

	deps := watcher.Deps{Pages: pages, State: a.store, Indexer: idx}
	if a.cfg.Watcher.AutoPost {
		ag, err := a.agent()
		if err != nil {
			return nil, err
		}
		deps.Agent = ag
	}

	cfg := a.cfg.Watcher
	return watcher.New(deps, watcher.Settings{
		PageIDs:      a.cfg.Notion.PageIDs,
		PollInterval: cfg.PollInterval,
		AutoPost:     cfg.AutoPost,
	}, watcher.WithLogger(a.logger))
}
