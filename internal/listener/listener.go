package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/biterate/socialagent/internal/approval"
	"github.com/biterate/socialagent/internal/llm"
	"github.com/biterate/socialagent/internal/mastodon"
	"github.com/biterate/socialagent/internal/storage"
	"github.com/biterate/socialagent/pkg/types"
)

const (
	// notificationLimit is how many notifications one poll reads
	notificationLimit = 20

	// queryRunes is how much of a comment becomes the retrieval query
	queryRunes = 100

	// contextTopK is how many passages are retrieved for a reply
	contextTopK = 3

	// previewRunes is how much of a comment the reviewer sees
	previewRunes = 200

	// ReplyTitle heads approval messages for replies
	ReplyTitle = "New Reply for Approval"

	DefaultPollInterval     = time.Minute
	DefaultRepliesPerMinute = 5
	DefaultMaxReplyLength   = 200
)

// Social is the account the listener answers for
type Social interface {
	VerifyCredentials(ctx context.Context) (string, error)
	Notifications(ctx context.Context, limit int) ([]mastodon.Notification, error)
	Status(ctx context.Context, id string) (*mastodon.Status, error)
	Reply(ctx context.Context, inReplyTo, text string, dryRun bool) (*mastodon.PostResult, error)
}

// Replier drafts replies
type Replier interface {
	GenerateReply(ctx context.Context, req llm.ReplyRequest) (string, error)
}

// Retriever returns formatted knowledge base context for a query
type Retriever interface {
	RetrieveContext(ctx context.Context, query string, topK int) (string, []types.SearchResult, error)
}

// Approver asks a human about a reply
type Approver interface {
	Request(ctx context.Context, draft approval.Draft) (approval.Decision, error)
}

// ReplyLog remembers answered notifications across restarts
type ReplyLog interface {
	IsReplied(ctx context.Context, notificationID string) (bool, error)
	MarkReplied(ctx context.Context, reply *storage.RepliedNotification) error
}

// Settings controls polling and replying
type Settings struct {
	PollInterval     time.Duration
	RepliesPerMinute int
	MaxReplyLength   int  // runes, replies are cut to fit
	AutoReply        bool // false drafts replies without posting them
}

// Deps are the collaborators of a listener. Retriever and Approver are
// optional.
type Deps struct {
	Social    Social
	Replier   Replier
	Log       ReplyLog
	Retriever Retriever
	Approver  Approver
}

// PollResult counts what one poll did
type PollResult struct {
	Seen     int
	Relevant int
	Replied  int
	Rejected int
	Failed   int
}

// Listener answers comments on the account's posts
type Listener struct {
	deps     Deps
	settings Settings
	limiter  *rate.Limiter
	selfID   string
	logger   *slog.Logger
}

// Option configures a Listener
type Option func(*Listener)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(l *Listener) {
		l.logger = logger
	}
}

// New creates a Listener
func New(deps Deps, settings Settings, opts ...Option) (*Listener, error) {
	if deps.Social == nil || deps.Replier == nil || deps.Log == nil {
		return nil, errors.New("listener: social client, replier and reply log are required")
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = DefaultPollInterval
	}
	if settings.RepliesPerMinute <= 0 {
		settings.RepliesPerMinute = DefaultRepliesPerMinute
	}
	if settings.MaxReplyLength <= 0 {
		settings.MaxReplyLength = DefaultMaxReplyLength
	}

	l := &Listener{
		deps:     deps,
		settings: settings,
		limiter:  rate.NewLimiter(rate.Limit(float64(settings.RepliesPerMinute)/60.0), 1),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Run polls until ctx is done
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info("listener starting", "poll_interval", l.settings.PollInterval, "auto_reply", l.settings.AutoReply)

	ticker := time.NewTicker(l.settings.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := l.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Warn("poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll reads recent notifications once and answers the relevant ones
func (l *Listener) Poll(ctx context.Context) (*PollResult, error) {
	if l.selfID == "" {
		id, err := l.deps.Social.VerifyCredentials(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve own account: %w", err)
		}
		l.selfID = id
	}

	notifications, err := l.deps.Social.Notifications(ctx, notificationLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch notifications: %w", err)
	}
	result := &PollResult{Seen: len(notifications)}

	for _, n := range notifications {
		parent, ok := l.relevant(ctx, n)
		if !ok {
			continue
		}
		result.Relevant++

		switch err := l.handle(ctx, n, parent); {
		case err == nil:
			result.Replied++
		case errors.Is(err, errRejected):
			result.Rejected++
		case ctx.Err() != nil:
			return result, ctx.Err()
		default:
			result.Failed++
			l.logger.Warn("failed to answer notification", "notification_id", n.ID, "error", err)
		}
	}
	if result.Relevant > 0 {
		l.logger.Info("poll complete",
			"relevant", result.Relevant, "replied", result.Replied,
			"rejected", result.Rejected, "failed", result.Failed)
	}
	return result, nil
}

// relevant keeps unanswered mentions and replies. A comment that answers
// a status must answer one of ours; a mention outside any thread is kept.
// The parent status is returned when there is one.
func (l *Listener) relevant(ctx context.Context, n mastodon.Notification) (*mastodon.Status, bool) {
	if n.Type != mastodon.NotificationMention && n.Type != mastodon.NotificationReply {
		return nil, false
	}
	if n.Status == nil {
		return nil, false
	}

	replied, err := l.deps.Log.IsReplied(ctx, n.ID)
	if err != nil {
		l.logger.Warn("failed to check reply log", "notification_id", n.ID, "error", err)
		return nil, false
	}
	if replied {
		return nil, false
	}

	if n.Status.InReplyToID == "" {
		return nil, n.Type == mastodon.NotificationMention
	}
	parent, err := l.deps.Social.Status(ctx, n.Status.InReplyToID)
	if err != nil {
		l.logger.Debug("parent status unavailable", "status_id", n.Status.InReplyToID, "error", err)
		return nil, false
	}
	return parent, parent.AccountID == l.selfID
}

var errRejected = errors.New("reply rejected")

func (l *Listener) handle(ctx context.Context, n mastodon.Notification, parent *mastodon.Status) error {
	comment := mastodon.StripHTML(n.Status.Content)
	var original string
	if parent != nil {
		original = mastodon.StripHTML(parent.Content)
	}
	l.logger.Info("answering comment", "notification_id", n.ID, "comment", truncate(comment, queryRunes))

	reply, err := l.deps.Replier.GenerateReply(ctx, llm.ReplyRequest{
		OriginalPost: original,
		Comment:      comment,
		Context:      l.retrieve(ctx, comment),
	})
	if err != nil {
		return fmt.Errorf("draft reply: %w", err)
	}
	reply = truncate(strings.TrimSpace(reply), l.settings.MaxReplyLength)
	if reply == "" {
		return errors.New("draft reply: empty reply")
	}

	if !l.settings.AutoReply {
		l.logger.Info("auto reply disabled, not posting", "notification_id", n.ID, "reply", reply)
		return nil
	}

	if l.deps.Approver != nil {
		decision, err := l.deps.Approver.Request(ctx, approval.Draft{
			Title: ReplyTitle,
			Text:  ReplyDraft(comment, reply),
		})
		if err != nil {
			return fmt.Errorf("request approval: %w", err)
		}
		if !decision.Approved() {
			l.logger.Info("reply rejected", "notification_id", n.ID, "outcome", decision.Outcome, "reason", decision.Reason)
			return errRejected
		}
	}

	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	posted, err := l.deps.Social.Reply(ctx, n.Status.ID, reply, false)
	if err != nil {
		return fmt.Errorf("post reply: %w", err)
	}
	if err := l.deps.Log.MarkReplied(ctx, &storage.RepliedNotification{
		NotificationID: n.ID,
		StatusID:       n.Status.ID,
		ReplyID:        posted.ID,
	}); err != nil {
		l.logger.Warn("failed to record reply", "notification_id", n.ID, "error", err)
	}
	l.logger.Info("reply posted", "notification_id", n.ID, "reply_id", posted.ID)
	return nil
}

func (l *Listener) retrieve(ctx context.Context, comment string) string {
	if l.deps.Retriever == nil {
		return ""
	}
	query := truncate(comment, queryRunes)
	if strings.TrimSpace(query) == "" {
		return ""
	}
	text, results, err := l.deps.Retriever.RetrieveContext(ctx, query, contextTopK)
	if err != nil {
		l.logger.Warn("context retrieval failed", "error", err)
		return ""
	}
	if len(results) == 0 {
		return ""
	}
	return text
}

// ReplyDraft is the approval text for a reply
func ReplyDraft(comment, reply string) string {
	return "Reply to comment:\n\n" + truncate(comment, previewRunes) + "\n\nReply:\n" + reply
}

// truncate keeps at most n runes of s
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
