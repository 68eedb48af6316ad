package mastodon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	gomastodon "github.com/mattn/go-mastodon"
)

// Visibility values accepted by Mastodon
const (
	VisibilityPublic   = "public"
	VisibilityUnlisted = "unlisted"
	VisibilityPrivate  = "private"
	VisibilityDirect   = "direct"
)

// Notification types the listener reacts to
const (
	NotificationMention = "mention"
	NotificationReply   = "reply"
)

// ErrMissingCredentials is returned when the instance URL or token is absent
var ErrMissingCredentials = errors.New("mastodon: instance url and access token are required")

// Status is a published toot
type Status struct {
	ID          string
	URL         string
	Content     string // HTML as served by the instance
	AccountID   string
	InReplyToID string
}

// Notification is an entry of the account's notification timeline
type Notification struct {
	ID     string
	Type   string
	Status *Status // nil for notifications without a status, such as follows
}

// PostResult describes a publish attempt
type PostResult struct {
	ID     string
	URL    string
	DryRun bool
}

// Client publishes to one Mastodon account
type Client struct {
	api        *gomastodon.Client
	server     string
	visibility string
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithVisibility sets the visibility of new statuses
func WithVisibility(visibility string) Option {
	return func(c *Client) {
		if visibility != "" {
			c.visibility = visibility
		}
	}
}

// New creates a Client for server authenticated with accessToken
func New(server, accessToken string, opts ...Option) (*Client, error) {
	server = strings.TrimRight(strings.TrimSpace(server), "/")
	accessToken = strings.TrimSpace(accessToken)
	if server == "" || accessToken == "" {
		return nil, ErrMissingCredentials
	}

	c := &Client{
		api: gomastodon.NewClient(&gomastodon.Config{
			Server:      server,
			AccessToken: accessToken,
		}),
		server:     server,
		visibility: VisibilityPublic,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// VerifyCredentials returns the id of the authenticated account
func (c *Client) VerifyCredentials(ctx context.Context) (string, error) {
	account, err := c.api.GetAccountCurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("mastodon: verify credentials: %w", err)
	}
	return string(account.ID), nil
}

// Post publishes text with optional image attachments. In dry-run mode
// nothing is sent and the attempt is only logged.
func (c *Client) Post(ctx context.Context, text string, media [][]byte, dryRun bool) (*PostResult, error) {
	if dryRun {
		c.logger.Info("dry run: would post to mastodon",
			"instance", c.server, "visibility", c.visibility, "media", len(media), "content", text)
		return &PostResult{DryRun: true}, nil
	}

	var mediaIDs []gomastodon.ID
	for i, data := range media {
		attachment, err := c.api.UploadMediaFromReader(ctx, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("mastodon: upload media %d: %w", i, err)
		}
		mediaIDs = append(mediaIDs, attachment.ID)
	}

	status, err := c.api.PostStatus(ctx, &gomastodon.Toot{
		Status:     text,
		MediaIDs:   mediaIDs,
		Visibility: c.visibility,
	})
	if err != nil {
		return nil, fmt.Errorf("mastodon: post status: %w", err)
	}
	c.logger.Info("posted to mastodon", "id", status.ID, "url", status.URL, "media", len(mediaIDs))
	return &PostResult{ID: string(status.ID), URL: status.URL}, nil
}

// Reply answers the status inReplyTo
func (c *Client) Reply(ctx context.Context, inReplyTo, text string, dryRun bool) (*PostResult, error) {
	if dryRun {
		c.logger.Info("dry run: would reply on mastodon", "in_reply_to", inReplyTo, "content", text)
		return &PostResult{DryRun: true}, nil
	}

	status, err := c.api.PostStatus(ctx, &gomastodon.Toot{
		Status:      text,
		InReplyToID: gomastodon.ID(inReplyTo),
		Visibility:  c.visibility,
	})
	if err != nil {
		return nil, fmt.Errorf("mastodon: reply to %s: %w", inReplyTo, err)
	}
	return &PostResult{ID: string(status.ID), URL: status.URL}, nil
}

// Notifications returns the newest notifications, at most limit
func (c *Client) Notifications(ctx context.Context, limit int) ([]Notification, error) {
	items, err := c.api.GetNotifications(ctx, &gomastodon.Pagination{Limit: int64(limit)})
	if err != nil {
		return nil, fmt.Errorf("mastodon: notifications: %w", err)
	}

	out := make([]Notification, 0, len(items))
	for _, n := range items {
		out = append(out, Notification{
			ID:     string(n.ID),
			Type:   n.Type,
			Status: convertStatus(n.Status),
		})
	}
	return out, nil
}

// Status fetches a single status
func (c *Client) Status(ctx context.Context, id string) (*Status, error) {
	s, err := c.api.GetStatus(ctx, gomastodon.ID(id))
	if err != nil {
		return nil, fmt.Errorf("mastodon: status %s: %w", id, err)
	}
	return convertStatus(s), nil
}

func convertStatus(s *gomastodon.Status) *Status {
	if s == nil {
		return nil
	}
	return &Status{
		ID:          string(s.ID),
		URL:         s.URL,
		Content:     s.Content,
		AccountID:   string(s.Account.ID),
		InReplyToID: idString(s.InReplyToID),
	}
}

// idString reads an id field that the API may encode as a string or a number
func idString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return fmt.Sprint(id)
	}
}
