package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/biterate/socialagent/internal/approval"
	"github.com/biterate/socialagent/internal/indexer"
	"github.com/biterate/socialagent/internal/llm"
	"github.com/biterate/socialagent/internal/mastodon"
	"github.com/biterate/socialagent/internal/notion"
	"github.com/biterate/socialagent/internal/storage"
	"github.com/biterate/socialagent/pkg/types"
)

const (
	// FallbackQuery is searched when no review names a restaurant or cuisine
	FallbackQuery = "food review restaurant"

	// queryReviews is how many reviews contribute to the retrieval query
	queryReviews = 3

	// contextTopK is how many passages are retrieved for a post
	contextTopK = 5

	// FeedbackRejection tags feedback recorded from a rejected draft
	FeedbackRejection = "rejection"
)

// ErrNoContent is returned when the workspace yields neither company
// information nor reviews
var ErrNoContent = errors.New("no content fetched from the workspace")

// ContentSource reads pages and review databases
type ContentSource interface {
	FetchPlainText(ctx context.Context, pageID string) (string, error)
	ListDatabaseEntries(ctx context.Context, databaseID string, limit int) ([]notion.Entry, error)
}

// Retriever returns formatted knowledge base context for a query
type Retriever interface {
	RetrieveContext(ctx context.Context, query string, topK int) (string, []types.SearchResult, error)
}

// Drafter writes posts
type Drafter interface {
	GeneratePost(ctx context.Context, req llm.PostRequest) (string, error)
}

// ImageSource produces the optional post image
type ImageSource interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// Approver asks a human about a draft
type Approver interface {
	Request(ctx context.Context, draft approval.Draft) (approval.Decision, error)
}

// Publisher posts to the social network
type Publisher interface {
	Post(ctx context.Context, text string, media [][]byte, dryRun bool) (*mastodon.PostResult, error)
}

// Syncer fills an empty knowledge base before the first run
type Syncer interface {
	Sync(ctx context.Context, req indexer.SyncRequest) (*indexer.Statistics, error)
}

// Settings shapes what a run fetches and drafts
type Settings struct {
	PageIDs         []string
	DatabaseIDs     []string
	MaxReviews      int
	Tone            string
	MaxLength       int
	IncludeHashtags bool
	Hashtags        []string
	Guidelines      string
	TriggerWord     string
	DryRun          bool
}

// Deps are the collaborators of a run. Retriever, Images, Approver and
// Syncer are optional.
type Deps struct {
	Source    ContentSource
	Store     storage.AuditStore
	Drafter   Drafter
	Publisher Publisher
	Retriever Retriever
	Images    ImageSource
	Approver  Approver
	Syncer    Syncer
}

// Result reports how a run ended
type Result struct {
	PostID   int64
	Content  string
	Status   string // one of the storage.Post* states
	Reason   string // rejection reason
	ImageURL string
	Publish  *mastodon.PostResult
}

// Agent drafts, reviews and publishes one post per run
type Agent struct {
	deps     Deps
	settings Settings
	logger   *slog.Logger
}

// Option configures an Agent
type Option func(*Agent)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// New creates an Agent
func New(deps Deps, settings Settings, opts ...Option) (*Agent, error) {
	if deps.Source == nil || deps.Store == nil || deps.Drafter == nil || deps.Publisher == nil {
		return nil, errors.New("agent: source, store, drafter and publisher are required")
	}
	if settings.MaxReviews <= 0 {
		settings.MaxReviews = notion.DefaultMaxEntries
	}
	a := &Agent{deps: deps, settings: settings, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// RunOptions adjusts a single run
type RunOptions struct {
	// DryRun keeps this run's post local even when publishing is enabled
	DryRun bool
}

// Run executes the workflow once
func (a *Agent) Run(ctx context.Context) (*Result, error) {
	return a.RunWith(ctx, RunOptions{})
}

// RunWith executes the workflow once with per-run options
func (a *Agent) RunWith(ctx context.Context, opts RunOptions) (*Result, error) {
	dryRun := a.settings.DryRun || opts.DryRun
	a.logger.Info("agent run starting", "dry_run", dryRun)
	a.ensureKnowledge(ctx)

	pages := a.fetchPages(ctx)
	companyInfo := joinPages(a.settings.PageIDs, pages)
	reviews := a.fetchReviews(ctx, pages)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if companyInfo == "" && len(reviews) == 0 {
		return nil, ErrNoContent
	}
	a.logger.Info("fetched workspace content", "company_info_chars", len(companyInfo), "reviews", len(reviews))

	for _, r := range reviews {
		if err := a.deps.Store.SaveReview(ctx, r); err != nil {
			a.logger.Warn("failed to save review", "review_id", r.ID, "error", err)
		}
	}

	req := llm.PostRequest{
		CompanyInfo:     companyInfo,
		Reviews:         reviews,
		Context:         a.retrieve(ctx, reviews),
		Tone:            a.settings.Tone,
		MaxLength:       a.settings.MaxLength,
		IncludeHashtags: a.settings.IncludeHashtags,
		Hashtags:        llm.NormalizeHashtags(a.settings.Hashtags),
		Guidelines:      a.settings.Guidelines,
	}
	content, err := a.deps.Drafter.GeneratePost(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.logger.Warn("drafting failed, using fallback post", "error", err)
		content = llm.Fallback(req)
	}
	a.logger.Info("drafted post", "chars", len([]rune(content)))

	result := &Result{Content: content, Status: storage.PostPending}
	var media [][]byte
	result.ImageURL, media = a.image(ctx)

	post := &storage.Post{
		Content:  content,
		Hashtags: req.Hashtags,
		Tone:     req.Tone,
		ImageURL: result.ImageURL,
		Status:   storage.PostPending,
	}
	if len(reviews) > 0 {
		post.RestaurantMentioned = reviews[0].Restaurant
		post.RatingMentioned = reviews[0].Rating
	}
	if result.PostID, err = a.deps.Store.SavePost(ctx, post); err != nil {
		a.logger.Warn("failed to save post", "error", err)
	}

	if a.deps.Approver != nil {
		decision, err := a.deps.Approver.Request(ctx, approval.Draft{Text: content, ImageURL: result.ImageURL})
		if err != nil {
			return result, fmt.Errorf("request approval: %w", err)
		}
		a.recordDecision(ctx, result.PostID, decision)
		if !decision.Approved() {
			a.logger.Info("post rejected", "outcome", decision.Outcome, "reason", decision.Reason)
			result.Status = storage.PostRejected
			result.Reason = decision.Reason
			a.setStatus(ctx, result.PostID, storage.StatusUpdate{Status: storage.PostRejected})
			return result, nil
		}
		a.logger.Info("post approved")
		a.setStatus(ctx, result.PostID, storage.StatusUpdate{Status: storage.PostApproved})
	}

	published, err := a.deps.Publisher.Post(ctx, content, media, dryRun)
	if err != nil {
		result.Status = storage.PostFailed
		a.setStatus(ctx, result.PostID, storage.StatusUpdate{Status: storage.PostFailed})
		return result, fmt.Errorf("publish: %w", err)
	}
	result.Publish = published

	if published.DryRun {
		a.setStatus(ctx, result.PostID, storage.StatusUpdate{Status: storage.PostPending})
	} else {
		result.Status = storage.PostPublished
		a.setStatus(ctx, result.PostID, storage.StatusUpdate{
			Status:         storage.PostPublished,
			MastodonPostID: published.ID,
			MastodonURL:    published.URL,
		})
	}
	a.logger.Info("agent run complete", "post_id", result.PostID, "status", result.Status, "dry_run", published.DryRun)
	return result, nil
}

// ensureKnowledge syncs the knowledge base when it is still empty
func (a *Agent) ensureKnowledge(ctx context.Context) {
	if a.deps.Syncer == nil {
		return
	}
	stats, err := a.deps.Syncer.Sync(ctx, indexer.SyncRequest{})
	switch {
	case errors.Is(err, indexer.ErrSyncInProgress):
		a.logger.Info("knowledge base sync already running")
	case err != nil:
		a.logger.Warn("knowledge base sync failed", "error", err)
	case !stats.Skipped:
		a.logger.Info("knowledge base synced", "documents", stats.DocumentsSynced, "chunks", stats.ChunksCreated)
	}
}

// fetchPages reads every configured page once; pages that fail or are
// empty are left out
func (a *Agent) fetchPages(ctx context.Context) map[string]string {
	pages := make(map[string]string, len(a.settings.PageIDs))
	for _, id := range a.settings.PageIDs {
		text, err := a.deps.Source.FetchPlainText(ctx, id)
		if err != nil {
			a.logger.Warn("failed to fetch page", "page_id", id, "error", err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			pages[id] = text
		}
	}
	return pages
}

func joinPages(ids []string, pages map[string]string) string {
	parts := make([]string, 0, len(pages))
	for _, id := range ids {
		if text, ok := pages[id]; ok {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// fetchReviews gathers database rows first, then pages parsed as
// free-form reviews, capped at MaxReviews
func (a *Agent) fetchReviews(ctx context.Context, pages map[string]string) []*storage.Review {
	var reviews []*storage.Review
	for _, dbID := range a.settings.DatabaseIDs {
		entries, err := a.deps.Source.ListDatabaseEntries(ctx, dbID, a.settings.MaxReviews)
		if err != nil {
			a.logger.Warn("failed to query review database", "database_id", dbID, "error", err)
			continue
		}
		for _, e := range entries {
			reviews = append(reviews, notion.ReviewFromEntry(e))
		}
	}
	for _, id := range a.settings.PageIDs {
		if text, ok := pages[id]; ok {
			reviews = append(reviews, notion.ParsePageAsReview(id, text))
		}
	}
	if len(reviews) > a.settings.MaxReviews {
		reviews = reviews[:a.settings.MaxReviews]
	}
	return reviews
}

// ContextQuery names the restaurants and cuisines of the leading reviews
func ContextQuery(reviews []*storage.Review) string {
	var words []string
	for _, r := range reviews[:min(queryReviews, len(reviews))] {
		if r.Restaurant != "" {
			words = append(words, r.Restaurant)
		}
		if r.Cuisine != "" {
			words = append(words, r.Cuisine)
		}
	}
	if len(words) == 0 {
		return FallbackQuery
	}
	return strings.Join(words, " ")
}

// retrieve returns knowledge base context for the reviews, or "" when
// retrieval is unavailable
func (a *Agent) retrieve(ctx context.Context, reviews []*storage.Review) string {
	if a.deps.Retriever == nil || len(reviews) == 0 {
		a.logger.Debug("skipping retrieval")
		return ""
	}
	query := ContextQuery(reviews)
	text, results, err := a.deps.Retriever.RetrieveContext(ctx, query, contextTopK)
	if err != nil {
		a.logger.Warn("context retrieval failed", "query", query, "error", err)
		return ""
	}
	if len(results) == 0 {
		return ""
	}
	a.logger.Info("retrieved context", "query", query, "passages", len(results))
	return text
}

// image generates and downloads the post image. A URL without bytes is
// still shown to the reviewer.
func (a *Agent) image(ctx context.Context) (string, [][]byte) {
	if a.deps.Images == nil {
		return "", nil
	}
	url, err := a.deps.Images.Generate(ctx, llm.ImagePrompt(a.settings.TriggerWord))
	if err != nil {
		a.logger.Warn("image generation failed", "error", err)
		return "", nil
	}
	data, err := a.deps.Images.Download(ctx, url)
	if err != nil {
		a.logger.Warn("image download failed", "url", url, "error", err)
		return url, nil
	}
	return url, [][]byte{data}
}

func (a *Agent) recordDecision(ctx context.Context, postID int64, d approval.Decision) {
	if postID == 0 {
		return
	}
	if err := a.deps.Store.SaveApproval(ctx, &storage.Approval{
		PostID:          postID,
		Decision:        string(d.Outcome),
		RejectionReason: d.Reason,
	}); err != nil {
		a.logger.Warn("failed to save approval", "post_id", postID, "error", err)
	}
	if d.Approved() || d.Reason == "" {
		return
	}
	if err := a.deps.Store.SaveFeedback(ctx, &storage.Feedback{
		PostID: &postID,
		Type:   FeedbackRejection,
		Text:   d.Reason,
	}); err != nil {
		a.logger.Warn("failed to save feedback", "post_id", postID, "error", err)
	}
}

func (a *Agent) setStatus(ctx context.Context, postID int64, update storage.StatusUpdate) {
	if postID == 0 {
		return
	}
	if err := a.deps.Store.UpdatePostStatus(ctx, postID, update); err != nil {
		a.logger.Warn("failed to update post status", "post_id", postID, "status", update.Status, "error", err)
	}
}
