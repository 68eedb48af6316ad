package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/biterate/socialagent/internal/listener"
)

var listenOnce bool

// NewListenCmd creates the listen command
func NewListenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Reply to comments on Mastodon",
		Long: `Poll Mastodon notifications and reply to comments on BiteRate posts
with answers grounded in the knowledge base.

Replies go through Telegram approval when it is enabled and are posted at
most listener.replies_per_minute times a minute. --once polls a single
time and exits.

Examples:
  biterate listen
  biterate listen --once`,
		Args: cobra.NoArgs,
		RunE: runListen,
	}
	cmd.Flags().BoolVar(&listenOnce, "once", false, "Poll once and exit")
	return cmd
}

func runListen(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.cfg.Listener.Enabled && !listenOnce {
		return errors.New("listener is disabled; set listener.enabled in the configuration or pass --once")
	}

	l, err := a.listener()
	if err != nil {
		return err
	}

	if listenOnce {
		result, err := l.Poll(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Notifications: %d, relevant: %d, replied: %d, rejected: %d, failed: %d\n",
			result.Seen, result.Relevant, result.Replied, result.Rejected, result.Failed)
		return nil
	}

	err = l.Run(cmd.Context())
	if errors.Is(err, context.Canceled) {
		a.logger.Info("listener stopped")
		return nil
	}
	return err
}

func (a *app) listener() (*listener.Listener, error) {
	social, err := a.mastodon()
	if err != nil {
		return nil, err
	}
	replier, err := a.llm()
	if err != nil {
		return nil, err
	}

	deps := listener.Deps{Social: social, Replier: replier, Log: a.store}
	if srch, err := a.searcher(); err == nil {
		deps.Retriever = srch
	} else {
		a.logger.Warn("retrieval unavailable", "error", err)
	}
	if gate := a.approver(); gate != nil {
		deps.Approver = gate
	}

	cfg := a.cfg.Listener
	return listener.New(deps, listener.Settings{
		PollInterval:     cfg.PollInterval,
		RepliesPerMinute: cfg.RepliesPerMinute,
		MaxReplyLength:   cfg.MaxReplyLength,
		AutoReply:        cfg.AutoReply,
	}, listener.WithLogger(a.logger))
}
