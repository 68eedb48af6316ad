package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/biterate/socialagent/internal/chunker"
	"github.com/biterate/socialagent/internal/embedder"
	"github.com/biterate/socialagent/internal/notion"
	"github.com/biterate/socialagent/internal/storage"
	"github.com/biterate/socialagent/pkg/types"
)

var (
	// ErrSyncInProgress is returned when another sync holds the lock
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrNoSource is returned when a document must be fetched but no source is configured
	ErrNoSource = errors.New("no document source configured")
	// ErrUnknownSourceType is returned by Resync for a source type it cannot refetch
	ErrUnknownSourceType = errors.New("unknown source type")
)

// Indexer keeps the knowledge base in step with the workspace:
// fetch -> chunk -> embed -> store
type Indexer struct {
	store    storage.KnowledgeStore
	embedder embedder.Embedder
	chunker  *chunker.Chunker
	source   DocumentSource
	config   Config
	lock     SyncLock
	logger   *slog.Logger
}

// Config names what a sync pulls in
type Config struct {
	PageIDs     []string
	DatabaseIDs []string
	MaxEntries  int    // per database
	DocsGlob    string // local documents, empty to skip
	Workers     int    // concurrent fetches (default: runtime.NumCPU())
}

// Progress is reported after each document is ingested
type Progress struct {
	Total    int
	Done     int
	SourceID string
}

// Statistics summarizes a sync or resync
type Statistics struct {
	DocumentsSynced int
	DocumentsFailed int
	ChunksCreated   int
	ChunksFailed    int
	Skipped         bool // the knowledge base was already populated
	Duration        time.Duration
	ErrorMessages   []string
}

func (s *Statistics) fail(format string, args ...any) {
	s.DocumentsFailed++
	s.ErrorMessages = append(s.ErrorMessages, fmt.Sprintf(format, args...))
}

// SyncRequest controls one sync run
type SyncRequest struct {
	// Force empties the knowledge base and rebuilds it
	Force bool
	// OnProgress is called after each document, from the calling goroutine
	OnProgress func(Progress)
}

// IngestResult counts the chunks of one document
type IngestResult struct {
	ChunksCreated int
	ChunksFailed  int
}

// Option configures an Indexer
type Option func(*Indexer)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(idx *Indexer) {
		idx.logger = logger
	}
}

// WithSource sets the workspace document source
func WithSource(source DocumentSource) Option {
	return func(idx *Indexer) {
		idx.source = source
	}
}

// WithConfig sets what Sync pulls in
func WithConfig(cfg Config) Option {
	return func(idx *Indexer) {
		idx.config = cfg
	}
}

// New creates an Indexer
func New(store storage.KnowledgeStore, emb embedder.Embedder, chk *chunker.Chunker, opts ...Option) *Indexer {
	idx := &Indexer{
		store:    store,
		embedder: emb,
		chunker:  chk,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	if idx.config.Workers <= 0 {
		idx.config.Workers = runtime.NumCPU()
	}
	return idx
}

// Syncing reports whether a sync is running in this process
func (idx *Indexer) Syncing() bool {
	return idx.lock.Held()
}

// IngestDocument chunks content, embeds the chunks in one batch and saves
// them. A chunk that fails to save is counted and logged; chunking and
// embedding failures fail the whole document.
func (idx *Indexer) IngestDocument(ctx context.Context, content, sourceID, sourceType string) (*IngestResult, error) {
	chunks, err := idx.chunker.Chunk(content, sourceID)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", sourceID, err)
	}
	result := &IngestResult{}
	if len(chunks) == 0 {
		return result, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := idx.embedBatches(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", sourceID, err)
	}

	for i, c := range chunks {
		record := &types.Record{
			SourceType: sourceType,
			SourceID:   sourceID,
			Content:    c.Content,
			Metadata:   c.Metadata,
		}
		if _, err := idx.store.Save(ctx, record, vectors[i]); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.ChunksFailed++
			idx.logger.Warn("failed to save chunk",
				"source_id", sourceID, "chunk_index", i, "error", err)
			continue
		}
		result.ChunksCreated++
	}
	return result, nil
}

// embedBatches embeds texts in slices the provider accepts
func (idx *Indexer) embedBatches(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedder.MaxBatchSize {
		end := min(start+embedder.MaxBatchSize, len(texts))
		batch, err := idx.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// document is one unit of a sync, fetched concurrently and ingested in order
type document struct {
	sourceID   string
	sourceType string
	content    string
	err        error
}

// Sync pulls every configured page, database row and local document into
// the knowledge base. Without Force a populated knowledge base is left
// alone. Fetch failures are recorded per document; only cancellation and
// storage-level failures abort the run.
func (idx *Indexer) Sync(ctx context.Context, req SyncRequest) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrSyncInProgress
	}
	defer idx.lock.Release()

	start := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	if req.Force {
		if err := idx.store.Reset(ctx); err != nil {
			return nil, fmt.Errorf("reset knowledge base: %w", err)
		}
		idx.logger.Info("knowledge base reset for forced sync")
	} else {
		count, err := idx.store.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("count records: %w", err)
		}
		if count > 0 {
			idx.logger.Info("knowledge base already populated, skipping sync", "records", count)
			stats.Skipped = true
			stats.Duration = time.Since(start)
			return stats, nil
		}
	}

	docs, err := idx.collect(ctx, stats)
	if err != nil {
		return nil, err
	}

	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		idx.ingest(ctx, doc, stats)
		if req.OnProgress != nil {
			req.OnProgress(Progress{Total: len(docs), Done: i + 1, SourceID: doc.sourceID})
		}
	}

	stats.Duration = time.Since(start)
	idx.logger.Info("sync complete",
		"documents", stats.DocumentsSynced,
		"failed", stats.DocumentsFailed,
		"chunks", stats.ChunksCreated,
		"duration", stats.Duration)
	return stats, nil
}

// Resync replaces the records of one document with a fresh copy
func (idx *Indexer) Resync(ctx context.Context, sourceID, sourceType string) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrSyncInProgress
	}
	defer idx.lock.Release()

	start := time.Now()
	if sourceType != types.SourceLocalFile {
		sourceID = notion.NormalizeID(sourceID)
	}
	doc := document{sourceID: sourceID, sourceType: sourceType}
	doc.content, doc.err = idx.fetch(ctx, sourceID, sourceType)
	if errors.Is(doc.err, ErrUnknownSourceType) || errors.Is(doc.err, ErrNoSource) {
		return nil, doc.err
	}

	stats := &Statistics{ErrorMessages: make([]string, 0)}
	if doc.err == nil {
		removed, err := idx.store.DeleteBySource(ctx, sourceID)
		if err != nil {
			return nil, fmt.Errorf("delete %s: %w", sourceID, err)
		}
		idx.logger.Info("removed previous records", "source_id", sourceID, "records", removed)
	}
	idx.ingest(ctx, doc, stats)
	stats.Duration = time.Since(start)
	return stats, nil
}

// ingest stores one fetched document and folds the outcome into stats
func (idx *Indexer) ingest(ctx context.Context, doc document, stats *Statistics) {
	if doc.err != nil {
		idx.logger.Warn("failed to fetch document", "source_id", doc.sourceID, "error", doc.err)
		stats.fail("%s: %v", doc.sourceID, doc.err)
		return
	}
	if strings.TrimSpace(doc.content) == "" {
		idx.logger.Debug("document is empty", "source_id", doc.sourceID)
		return
	}

	result, err := idx.IngestDocument(ctx, doc.content, doc.sourceID, doc.sourceType)
	if err != nil {
		idx.logger.Warn("failed to ingest document", "source_id", doc.sourceID, "error", err)
		stats.fail("%s: %v", doc.sourceID, err)
		return
	}
	stats.DocumentsSynced++
	stats.ChunksCreated += result.ChunksCreated
	stats.ChunksFailed += result.ChunksFailed
	idx.logger.Info("synced document",
		"source_id", doc.sourceID, "source_type", doc.sourceType, "chunks", result.ChunksCreated)
}

// collect lists every document of the sync and fetches their content
// concurrently, keeping the listing order
func (idx *Indexer) collect(ctx context.Context, stats *Statistics) ([]document, error) {
	var docs []document
	for _, id := range idx.config.PageIDs {
		docs = append(docs, document{sourceID: notion.NormalizeID(id), sourceType: types.SourceNotionPage})
	}

	entries := make(map[string]notion.Entry)
	if len(idx.config.DatabaseIDs) > 0 && idx.source == nil {
		return nil, ErrNoSource
	}
	for _, dbID := range idx.config.DatabaseIDs {
		rows, err := idx.source.ListDatabaseEntries(ctx, dbID, idx.config.MaxEntries)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			idx.logger.Warn("failed to query database", "database_id", dbID, "error", err)
			stats.fail("%s: %v", dbID, err)
			continue
		}
		for _, e := range rows {
			entries[e.ID] = e
			docs = append(docs, document{sourceID: e.ID, sourceType: types.SourceNotionDatabase})
		}
	}

	files, err := FileSource{Pattern: idx.config.DocsGlob}.List()
	if err != nil {
		return nil, err
	}
	for _, path := range files {
		docs = append(docs, document{sourceID: path, sourceType: types.SourceLocalFile})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.config.Workers)
	for i := range docs {
		g.Go(func() error {
			d := docs[i]
			var content string
			var err error
			if e, ok := entries[d.sourceID]; ok && d.sourceType == types.SourceNotionDatabase {
				content, err = idx.entryDocument(gctx, e)
			} else {
				content, err = idx.fetch(gctx, d.sourceID, d.sourceType)
			}
			if gctx.Err() != nil {
				return gctx.Err()
			}
			docs[i].content, docs[i].err = content, err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// fetch reads one document by source type
func (idx *Indexer) fetch(ctx context.Context, sourceID, sourceType string) (string, error) {
	switch sourceType {
	case types.SourceLocalFile:
		return FileSource{}.Read(ctx, sourceID)
	case types.SourceNotionPage, types.SourceNotionDatabase:
		if idx.source == nil {
			return "", ErrNoSource
		}
		if sourceType == types.SourceNotionPage {
			return idx.source.FetchPlainText(ctx, sourceID)
		}
		entry, err := idx.source.GetEntry(ctx, sourceID)
		if err != nil {
			return "", err
		}
		return idx.entryDocument(ctx, entry)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSourceType, sourceType)
	}
}

// entryDocument renders a database row with its page body. A row whose
// body cannot be read still contributes its properties.
func (idx *Indexer) entryDocument(ctx context.Context, e notion.Entry) (string, error) {
	body, err := idx.source.FetchPlainText(ctx, e.ID)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		idx.logger.Debug("database row has no readable body", "source_id", e.ID, "error", err)
		body = ""
	}
	return EntryDocument(e, body), nil
}
