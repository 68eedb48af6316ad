package notion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jomei/notionapi"
)

const (
	// DefaultMaxEntries caps database queries when the caller passes no limit
	DefaultMaxEntries = 100

	// pageSize is the largest page Notion serves
	pageSize = 100
)

// ErrMissingToken is returned when no integration token is configured
var ErrMissingToken = errors.New("notion: integration token is required")

// BlockService lists the children of a page or block
type BlockService interface {
	GetChildren(ctx context.Context, id notionapi.BlockID, pagination *notionapi.Pagination) (*notionapi.GetChildrenResponse, error)
}

// DatabaseService queries a database
type DatabaseService interface {
	Query(ctx context.Context, id notionapi.DatabaseID, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

// PageService loads a page with its properties
type PageService interface {
	Get(ctx context.Context, id notionapi.PageID) (*notionapi.Page, error)
}

// Client reads pages and databases from a Notion workspace
type Client struct {
	blocks    BlockService
	databases DatabaseService
	pages     PageService
	logger    *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client backed by the Notion API
func New(token string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	api := notionapi.NewClient(notionapi.Token(token))
	return NewWithServices(api.Block, api.Database, api.Page, opts...), nil
}

// NewWithServices creates a Client over explicit services
func NewWithServices(blocks BlockService, databases DatabaseService, pages PageService, opts ...Option) *Client {
	c := &Client{
		blocks:    blocks,
		databases: databases,
		pages:     pages,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPlainText returns the page's top-level blocks rendered as text, one
// block per paragraph. Blocks without text are skipped.
func (c *Client) FetchPlainText(ctx context.Context, pageID string) (string, error) {
	id := notionapi.BlockID(NormalizeID(pageID))

	var (
		parts  []string
		cursor notionapi.Cursor
	)
	for {
		resp, err := c.blocks.GetChildren(ctx, id, &notionapi.Pagination{
			StartCursor: cursor,
			PageSize:    pageSize,
		})
		if err != nil {
			return "", fmt.Errorf("notion: fetch page %s: %w", pageID, err)
		}

		for _, block := range resp.Results {
			if text := strings.TrimSpace(BlockText(block)); text != "" {
				parts = append(parts, text)
			}
		}

		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		cursor = notionapi.Cursor(resp.NextCursor)
	}

	c.logger.Debug("fetched notion page", "page_id", pageID, "blocks", len(parts))
	return strings.Join(parts, "\n\n"), nil
}

// ListDatabaseEntries returns up to limit rows of a database, following
// pagination. A non-positive limit uses DefaultMaxEntries.
func (c *Client) ListDatabaseEntries(ctx context.Context, databaseID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultMaxEntries
	}
	id := notionapi.DatabaseID(NormalizeID(databaseID))

	var (
		entries []Entry
		cursor  notionapi.Cursor
	)
	for len(entries) < limit {
		resp, err := c.databases.Query(ctx, id, &notionapi.DatabaseQueryRequest{
			StartCursor: cursor,
			PageSize:    min(pageSize, limit-len(entries)),
		})
		if err != nil {
			return nil, fmt.Errorf("notion: query database %s: %w", databaseID, err)
		}

		for _, page := range resp.Results {
			if len(entries) == limit {
				break
			}
			entries = append(entries, entryFromPage(page))
		}

		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		cursor = notionapi.Cursor(resp.NextCursor)
	}

	c.logger.Debug("queried notion database", "database_id", databaseID, "entries", len(entries))
	return entries, nil
}

// GetEntry loads a single database row by page id
func (c *Client) GetEntry(ctx context.Context, pageID string) (Entry, error) {
	page, err := c.pages.Get(ctx, notionapi.PageID(NormalizeID(pageID)))
	if err != nil {
		return Entry{}, fmt.Errorf("notion: get page %s: %w", pageID, err)
	}
	return entryFromPage(*page), nil
}

// LastEdited returns when a page was last changed
func (c *Client) LastEdited(ctx context.Context, pageID string) (time.Time, error) {
	page, err := c.pages.Get(ctx, notionapi.PageID(NormalizeID(pageID)))
	if err != nil {
		return time.Time{}, fmt.Errorf("notion: get page %s: %w", pageID, err)
	}
	return page.LastEditedTime, nil
}

// BlockText renders one block. Headings become markdown headings so the
// markdown_header chunking strategy can split on them.
func BlockText(block notionapi.Block) string {
	switch b := block.(type) {
	case *notionapi.ParagraphBlock:
		return plainText(b.Paragraph.RichText)
	case *notionapi.Heading1Block:
		return prefixed("# ", plainText(b.Heading1.RichText))
	case *notionapi.Heading2Block:
		return prefixed("## ", plainText(b.Heading2.RichText))
	case *notionapi.Heading3Block:
		return prefixed("### ", plainText(b.Heading3.RichText))
	case *notionapi.BulletedListItemBlock:
		return prefixed("- ", plainText(b.BulletedListItem.RichText))
	case *notionapi.NumberedListItemBlock:
		return prefixed("1. ", plainText(b.NumberedListItem.RichText))
	case *notionapi.ToDoBlock:
		mark := "[ ] "
		if b.ToDo.Checked {
			mark = "[x] "
		}
		return prefixed(mark, plainText(b.ToDo.RichText))
	case *notionapi.QuoteBlock:
		return prefixed("> ", plainText(b.Quote.RichText))
	case *notionapi.CalloutBlock:
		return plainText(b.Callout.RichText)
	case *notionapi.CodeBlock:
		return plainText(b.Code.RichText)
	default:
		return ""
	}
}

func prefixed(prefix, text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return prefix + text
}

// NormalizeID hyphenates a bare 32-character Notion id into 8-4-4-4-12 form.
// Anything else is returned trimmed but otherwise unchanged.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) != 32 || strings.Contains(id, "-") {
		return id
	}
	return id[0:8] + "-" + id[8:12] + "-" + id[12:16] + "-" + id[16:20] + "-" + id[20:32]
}
