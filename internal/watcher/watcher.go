package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/biterate/socialagent/internal/agent"
	"github.com/biterate/socialagent/internal/indexer"
	"github.com/biterate/socialagent/internal/notion"
	"github.com/biterate/socialagent/internal/storage"
	"github.com/biterate/socialagent/pkg/types"
)

// DefaultPollInterval applies when Settings leaves it unset
const DefaultPollInterval = 5 * time.Minute

// PageClock reports page edit times
type PageClock interface {
	LastEdited(ctx context.Context, pageID string) (time.Time, error)
}

// Resyncer re-indexes one source
type Resyncer interface {
	Resync(ctx context.Context, sourceID, sourceType string) (*indexer.Statistics, error)
}

// Runner runs the posting workflow
type Runner interface {
	Run(ctx context.Context) (*agent.Result, error)
}

// Settings controls what is watched
type Settings struct {
	PageIDs      []string
	PollInterval time.Duration
	AutoPost     bool
}

// Deps are the collaborators of a Watcher. Agent is optional.
type Deps struct {
	Pages   PageClock
	State   storage.PageStateStore
	Indexer Resyncer
	Agent   Runner
}

// CheckResult reports one poll
type CheckResult struct {
	Checked     int
	Initialized int
	Changed     []string
	Resynced    int
	Failed      int
	Post        *agent.Result
}

// Watcher re-indexes pages when they change
type Watcher struct {
	deps     Deps
	settings Settings
	logger   *slog.Logger
}

// Option configures a Watcher
type Option func(*Watcher)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// New creates a Watcher
func New(deps Deps, settings Settings, opts ...Option) (*Watcher, error) {
	if deps.Pages == nil || deps.State == nil || deps.Indexer == nil {
		return nil, errors.New("watcher: page source, state store and indexer are required")
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = DefaultPollInterval
	}
	w := &Watcher{deps: deps, settings: settings, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run checks the pages every poll interval until ctx is done
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watcher starting",
		"pages", len(w.settings.PageIDs), "poll_interval", w.settings.PollInterval, "auto_post", w.settings.AutoPost)

	ticker := time.NewTicker(w.settings.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.Check(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Check compares every page's edit time with the stored one. A page whose
// resync fails keeps its old state so the next check retries it. Only
// cancellation is returned as an error.
func (w *Watcher) Check(ctx context.Context) (*CheckResult, error) {
	result := &CheckResult{}
	for _, raw := range w.settings.PageIDs {
		pageID := notion.NormalizeID(raw)
		result.Checked++

		edited, err := w.deps.Pages.LastEdited(ctx, pageID)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			w.logger.Warn("failed to read page edit time", "page_id", pageID, "error", err)
			result.Failed++
			continue
		}
		current := edited.UTC().Format(time.RFC3339Nano)

		stored, ok, err := w.deps.State.PageState(ctx, pageID)
		if err != nil {
			w.logger.Warn("failed to read page state", "page_id", pageID, "error", err)
			result.Failed++
			continue
		}
		if !ok {
			if err := w.deps.State.SetPageState(ctx, pageID, current); err != nil {
				w.logger.Warn("failed to save page state", "page_id", pageID, "error", err)
				result.Failed++
				continue
			}
			w.logger.Info("tracking page", "page_id", pageID, "last_edited", current)
			result.Initialized++
			continue
		}
		if stored == current {
			continue
		}

		w.logger.Info("page changed", "page_id", pageID, "previous", stored, "current", current)
		result.Changed = append(result.Changed, pageID)
		if err := w.resync(ctx, pageID); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			w.logger.Warn("failed to resync page", "page_id", pageID, "error", err)
			result.Failed++
			continue
		}
		if err := w.deps.State.SetPageState(ctx, pageID, current); err != nil {
			w.logger.Warn("failed to save page state", "page_id", pageID, "error", err)
		}
		result.Resynced++
	}

	if result.Resynced > 0 && w.settings.AutoPost && w.deps.Agent != nil {
		post, err := w.deps.Agent.Run(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			w.logger.Warn("post after page change failed", "error", err)
		}
		result.Post = post
	}
	return result, nil
}

func (w *Watcher) resync(ctx context.Context, pageID string) error {
	stats, err := w.deps.Indexer.Resync(ctx, pageID, types.SourceNotionPage)
	if err != nil {
		return err
	}
	if stats.DocumentsFailed > 0 {
		return fmt.Errorf("resync %s: %d document(s) failed", pageID, stats.DocumentsFailed)
	}
	w.logger.Info("page re-indexed", "page_id", pageID, "chunks", stats.ChunksCreated)
	return nil
}
