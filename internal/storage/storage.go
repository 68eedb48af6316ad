package storage

import (
	"context"
	"time"

	"github.com/biterate/socialagent/pkg/types"
)

// EmbeddingDimension is the vector length the index accepts
const EmbeddingDimension = 384

// KnowledgeStore persists knowledge base records and searches them
type KnowledgeStore interface {
	// Save inserts a record, mirrors it into the full-text index and, when
	// the embedding has EmbeddingDimension components, into the vector index.
	Save(ctx context.Context, record *types.Record, embedding []float32) (int64, error)

	// KeywordSearch returns raw bm25 scores keyed by record id.
	// More negative scores are better matches.
	KeywordSearch(ctx context.Context, query string, limit int) (map[int64]float64, error)

	// SemanticSearch returns raw cosine distances in [0, 2] keyed by record id
	SemanticSearch(ctx context.Context, vector []float32, limit int) (map[int64]float64, error)

	// GetMetadata returns the records that exist among ids
	GetMetadata(ctx context.Context, ids []int64) (map[int64]*types.Record, error)

	// DeleteBySource removes every record of one source document
	DeleteBySource(ctx context.Context, sourceID string) (int, error)

	// Reset empties the knowledge base
	Reset(ctx context.Context) error

	// Count returns the number of stored records
	Count(ctx context.Context) (int, error)

	// GetStatus reports index statistics and health
	GetStatus(ctx context.Context) (*Status, error)
}

// AuditStore records reviews, posts, approvals and replies for auditing
type AuditStore interface {
	SaveReview(ctx context.Context, review *Review) error
	ListReviews(ctx context.Context, limit int) ([]*Review, error)

	SavePost(ctx context.Context, post *Post) (int64, error)
	GetPost(ctx context.Context, id int64) (*Post, error)
	UpdatePostStatus(ctx context.Context, id int64, update StatusUpdate) error
	RecentPosts(ctx context.Context, limit int) ([]*Post, error)

	SaveApproval(ctx context.Context, approval *Approval) error
	SaveFeedback(ctx context.Context, feedback *Feedback) error
	ListFeedback(ctx context.Context, limit int) ([]*Feedback, error)

	MarkReplied(ctx context.Context, reply *RepliedNotification) error
	IsReplied(ctx context.Context, notificationID string) (bool, error)

	ListPosts(ctx context.Context, limit int, status string) ([]*Post, error)
	AuditStats(ctx context.Context) (*AuditStats, error)
}

// PageStateStore remembers the last edit time seen for each watched page
type PageStateStore interface {
	PageState(ctx context.Context, pageID string) (string, bool, error)
	SetPageState(ctx context.Context, pageID, lastEdited string) error
}

// Storage is the complete single-file store
type Storage interface {
	KnowledgeStore
	AuditStore
	PageStateStore
	Close() error
}

// Status reports knowledge base statistics
type Status struct {
	RecordsCount  int
	VectorsCount  int
	SourcesCount  int
	BySourceType  map[string]int
	IndexSizeMB   float64
	SchemaVersion string
	Health        HealthStatus
}

// HealthStatus reports which indices answer queries
type HealthStatus struct {
	DatabaseAccessible   bool
	VectorIndexAvailable bool
	FTSIndexBuilt        bool
}

// Post publication states
const (
	PostPending   = "pending"
	PostApproved  = "approved"
	PostRejected  = "rejected"
	PostPublished = "published"
	PostFailed    = "failed"
)

// Review is a restaurant review mirrored from the document workspace
type Review struct {
	ID           string
	NotionPageID string
	Restaurant   string
	Rating       *float64
	Review       string
	Cuisine      string
	Location     string
	UpdatedAt    time.Time
}

// Post is a generated social media post
type Post struct {
	ID                  int64
	Content             string
	Hashtags            []string
	Tone                string
	RestaurantMentioned string
	RatingMentioned     *float64
	ImageURL            string
	Status              string
	MastodonPostID      string
	MastodonURL         string
	CreatedAt           time.Time
	PublishedAt         *time.Time
}

// StatusUpdate moves a post to a new state. Remote ids are recorded only
// when Status is PostPublished.
type StatusUpdate struct {
	Status         string
	MastodonPostID string
	MastodonURL    string
}

// Approval is one human decision about a post
type Approval struct {
	ID              int64
	PostID          int64
	Decision        string
	RejectionReason string
	DecidedAt       time.Time
}

// Feedback is free-text input kept for improving future drafts
type Feedback struct {
	ID        int64
	PostID    *int64
	Type      string
	Text      string
	CreatedAt time.Time
}

// RepliedNotification marks a notification the listener has answered
type RepliedNotification struct {
	NotificationID string
	StatusID       string
	ReplyID        string
	RepliedAt      time.Time
}

// AuditStats counts posts by state together with reviews and replies
type AuditStats struct {
	TotalPosts    int
	PostsByStatus map[string]int
	TotalReviews  int
	TotalReplies  int
	TotalFeedback int
}
