package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/biterate/socialagent/internal/agent"
)

var (
	runSchedule bool
	runCron     string
)

// NewRunCmd creates the run command
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Draft, review and publish a post",
		Long: `Run the posting workflow once: read company pages and reviews from
Notion, retrieve related knowledge, draft a post, optionally generate an
image and ask for approval on Telegram, then publish to Mastodon.

mastodon.dry_run keeps the post local. With --schedule the workflow repeats
on schedule.cron (or --cron) until interrupted.

Examples:
  biterate run
  biterate run --schedule
  biterate run --schedule --cron "0 9 * * 1-5"`,
		Args: cobra.NoArgs,
		RunE: runRun,
	}
	cmd.Flags().BoolVar(&runSchedule, "schedule", false, "Repeat on the configured cron schedule")
	cmd.Flags().StringVar(&runCron, "cron", "", "Cron expression overriding schedule.cron")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ag, err := a.agent()
	if err != nil {
		return err
	}

	if runSchedule {
		expr := a.cfg.Schedule.Cron
		if runCron != "" {
			expr = runCron
		}
		err := ag.RunScheduled(cmd.Context(), expr)
		if errors.Is(err, context.Canceled) {
			a.logger.Info("scheduler stopped")
			return nil
		}
		return err
	}

	result, err := ag.Run(cmd.Context())
	if errors.Is(err, agent.ErrNoContent) {
		return fmt.Errorf("%w: check NOTION_API_KEY, the configured page and database ids and that they are shared with the integration", err)
	}
	if result != nil {
		printResult(cmd, result)
	}
	return err
}

func printResult(cmd *cobra.Command, result *agent.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, result.Content)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Status: %s\n", result.Status)
	if result.Reason != "" {
		fmt.Fprintf(out, "Reason: %s\n", result.Reason)
	}
	if result.Publish != nil {
		if result.Publish.DryRun {
			fmt.Fprintln(out, "Dry run: not published")
		} else {
			fmt.Fprintf(out, "Published: %s\n", result.Publish.URL)
		}
	}
}

// agent wires the workflow with every optional stage that is configured
func (a *app) agent() (*agent.Agent, error) {
	src, err := a.notion()
	if err != nil {
		return nil, err
	}
	drafter, err := a.llm()
	if err != nil {
		return nil, err
	}
	publisher, err := a.mastodon()
	if err != nil {
		return nil, err
	}

	deps := agent.Deps{
		Source:    src,
		Store:     a.store,
		Drafter:   drafter,
		Publisher: publisher,
	}
	if idx, err := a.indexer(); err == nil {
		deps.Syncer = idx
	} else {
		a.logger.Warn("knowledge base sync unavailable", "error", err)
	}
	if srch, err := a.searcher(); err == nil {
		deps.Retriever = srch
	} else {
		a.logger.Warn("retrieval unavailable", "error", err)
	}
	if gen := a.images(); gen != nil {
		deps.Images = gen
	}
	if gate := a.approver(); gate != nil {
		deps.Approver = gate
	}

	post := a.cfg.PostGeneration
	return agent.New(deps, agent.Settings{
		PageIDs:         a.cfg.Notion.PageIDs,
		DatabaseIDs:     a.cfg.Notion.DatabaseIDs,
		MaxReviews:      a.cfg.Notion.MaxReviews,
		Tone:            post.Tone,
		MaxLength:       post.MaxLength,
		IncludeHashtags: post.IncludeHashtags,
		Hashtags:        post.Hashtags,
		Guidelines:      post.Guidelines,
		TriggerWord:     a.cfg.ImageGeneration.TriggerWord,
		DryRun:          a.cfg.Mastodon.DryRun,
	}, agent.WithLogger(a.logger))
}
