package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/biterate/socialagent/internal/embedder"
	"github.com/biterate/socialagent/internal/storage"
	"github.com/biterate/socialagent/pkg/types"
)

// SearchMode defines how search is performed
type SearchMode string

const (
	SearchModeHybrid   SearchMode = "hybrid"   // Keyword + semantic, weighted
	SearchModeSemantic SearchMode = "semantic" // Vector similarity only
	SearchModeKeyword  SearchMode = "keyword"  // BM25 text search only
)

const (
	// DefaultTopK is the number of fused results returned
	DefaultTopK = 10
	// DefaultCandidateLimit caps each search mode before fusion
	DefaultCandidateLimit = 100
	// DefaultWeight applies to both sides unless configured
	DefaultWeight = 0.5

	// NoContext is returned by RetrieveContext when nothing matches
	NoContext = "No relevant context found."
)

// ErrEmptyQuery is returned for a blank query string
var ErrEmptyQuery = errors.New("query cannot be empty")

// Options controls one fused search
type Options struct {
	TopK           int
	KeywordWeight  float64
	SemanticWeight float64
	CandidateLimit int
	// MatchAnyTerm rewrites free text into an OR of its quoted words before
	// the keyword search, so conversational input cannot trip the
	// full-text query parser.
	MatchAnyTerm bool
}

// DefaultOptions returns equal weights, top 10, 100 candidates per mode
func DefaultOptions() Options {
	return Options{
		TopK:           DefaultTopK,
		KeywordWeight:  DefaultWeight,
		SemanticWeight: DefaultWeight,
		CandidateLimit: DefaultCandidateLimit,
	}
}

func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.CandidateLimit <= 0 {
		o.CandidateLimit = DefaultCandidateLimit
	}
	return o
}

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query string
	Limit int
	Mode  SearchMode
	// KeywordWeight and SemanticWeight apply to hybrid mode; both zero
	// means the configured defaults
	KeywordWeight  float64
	SemanticWeight float64
	MatchAnyTerm   bool
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results      []types.SearchResult
	TotalResults int
	SearchMode   SearchMode
	Duration     time.Duration
}

// Searcher fuses keyword and semantic search over a knowledge store
type Searcher struct {
	store    storage.KnowledgeStore
	embedder embedder.Embedder
	defaults Options
	logger   *slog.Logger
}

// Option configures a Searcher
type Option func(*Searcher)

// WithLogger sets the logger used for degraded search paths
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDefaults sets the options used by RetrieveContext and Search
func WithDefaults(opts Options) Option {
	return func(s *Searcher) {
		s.defaults = opts.withDefaults()
	}
}

// NewSearcher creates a new Searcher instance
func NewSearcher(store storage.KnowledgeStore, emb embedder.Embedder, opts ...Option) *Searcher {
	s := &Searcher{
		store:    store,
		embedder: emb,
		defaults: DefaultOptions(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Defaults returns the options RetrieveContext uses
func (s *Searcher) Defaults() Options {
	return s.defaults
}

// Hybrid runs both searches, normalizes each onto [0, 1] and ranks the
// union of candidates by the weighted sum. A failing search mode is logged
// and contributes no candidates. A side whose weight is zero is still
// searched so its scores appear on the results.
func (s *Searcher) Hybrid(ctx context.Context, query string, queryVector []float32, opts Options) ([]types.SearchResult, error) {
	opts = opts.withDefaults()

	keywordQuery := query
	if opts.MatchAnyTerm {
		keywordQuery = storage.MatchAnyTerms(query)
	}

	var keywordRaw, semanticRaw map[int64]float64
	if strings.TrimSpace(keywordQuery) != "" {
		raw, err := s.store.KeywordSearch(ctx, keywordQuery, opts.CandidateLimit)
		if err != nil {
			s.logger.Warn("keyword search failed; continuing without it", "query", query, "error", err)
		}
		keywordRaw = raw
	}
	if queryVector != nil {
		raw, err := s.store.SemanticSearch(ctx, queryVector, opts.CandidateLimit)
		if err != nil {
			s.logger.Warn("semantic search failed; continuing without it", "error", err)
		}
		semanticRaw = raw
	}

	return s.fuse(ctx, NormalizeKeywordScores(keywordRaw), NormalizeDistances(semanticRaw), opts)
}

// fuse combines normalized scores and attaches stored records
func (s *Searcher) fuse(ctx context.Context, keyword, semantic map[int64]float64, opts Options) ([]types.SearchResult, error) {
	ids := make([]int64, 0, len(keyword)+len(semantic))
	for id := range keyword {
		ids = append(ids, id)
	}
	for id := range semantic {
		if _, ok := keyword[id]; !ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []types.SearchResult{}, nil
	}

	records, err := s.store.GetMetadata(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	candidates := make([]types.SearchResult, 0, len(ids))
	for _, id := range ids {
		rec, ok := records[id]
		if !ok {
			continue // deleted between search and load
		}
		kw, sem := keyword[id], semantic[id]
		candidates = append(candidates, types.SearchResult{
			ID:            id,
			KeywordScore:  kw,
			SemanticScore: sem,
			FinalScore:    opts.KeywordWeight*kw + opts.SemanticWeight*sem,
			SourceType:    rec.SourceType,
			SourceID:      rec.SourceID,
			Content:       rec.Content,
			Metadata:      rec.Metadata,
		})
	}

	rankResults(candidates)

	if len(candidates) > opts.TopK {
		candidates = candidates[:opts.TopK]
	}
	for i := range candidates {
		candidates[i].Rank = i + 1
	}
	return candidates, nil
}

// rankResults orders by descending final score. Ids ascending is the base
// order, so equal scores keep it.
func rankResults(results []types.SearchResult) {
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FinalScore > results[j].FinalScore
	})
}

// Search embeds the query when needed and runs it in the requested mode
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if err := s.validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	opts := s.defaults
	opts.TopK = req.Limit
	opts.MatchAnyTerm = req.MatchAnyTerm || opts.MatchAnyTerm
	if req.KeywordWeight != 0 || req.SemanticWeight != 0 {
		opts.KeywordWeight = req.KeywordWeight
		opts.SemanticWeight = req.SemanticWeight
	}

	var (
		vector []float32
		err    error
	)
	switch req.Mode {
	case SearchModeKeyword:
		opts.KeywordWeight, opts.SemanticWeight = 1, 0
	case SearchModeSemantic:
		opts.KeywordWeight, opts.SemanticWeight = 0, 1
		opts.MatchAnyTerm = false
	}

	if req.Mode != SearchModeKeyword {
		vector, err = s.embedQuery(ctx, req.Query)
		if err != nil {
			return nil, err
		}
	}

	query := req.Query
	if req.Mode == SearchModeSemantic {
		query = ""
	}

	results, err := s.Hybrid(ctx, query, vector, opts)
	if err != nil {
		return nil, err
	}

	return &SearchResponse{
		Results:      results,
		TotalResults: len(results),
		SearchMode:   req.Mode,
		Duration:     time.Since(startTime),
	}, nil
}

// validateRequest ensures search request is valid
func (s *Searcher) validateRequest(req *SearchRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return ErrEmptyQuery
	}

	if req.Limit <= 0 {
		req.Limit = s.defaults.TopK
	}

	if req.Limit > DefaultCandidateLimit {
		req.Limit = DefaultCandidateLimit
	}

	if req.Mode == "" {
		req.Mode = SearchModeHybrid
	}

	switch req.Mode {
	case SearchModeHybrid, SearchModeSemantic, SearchModeKeyword:
	default:
		return fmt.Errorf("unsupported search mode: %s", req.Mode)
	}

	if req.KeywordWeight < 0 || req.SemanticWeight < 0 {
		return fmt.Errorf("weights must not be negative")
	}

	return nil
}

func (s *Searcher) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("embedder not initialized")
	}
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	return vector, nil
}

// RetrieveContext embeds query once, fuses with the default weights and
// renders the results as a numbered block for prompt injection. The query
// is treated as free text, so questions keep their keyword candidates.
func (s *Searcher) RetrieveContext(ctx context.Context, query string, topK int) (string, []types.SearchResult, error) {
	vector, err := s.embedQuery(ctx, query)
	if err != nil {
		return "", nil, err
	}

	opts := s.defaults
	opts.MatchAnyTerm = true
	if topK > 0 {
		opts.TopK = topK
	}

	results, err := s.Hybrid(ctx, query, vector, opts)
	if err != nil {
		return "", nil, err
	}
	return FormatContext(results), results, nil
}

// FormatContext renders results as "[i. source_type] (score: x.xx)" blocks
// separated by a blank line
func FormatContext(results []types.SearchResult) string {
	if len(results) == 0 {
		return NoContext
	}

	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("[%d. %s] (score: %.2f)\n%s", i+1, r.SourceType, r.FinalScore, r.Content)
	}
	return strings.Join(parts, "\n\n")
}
