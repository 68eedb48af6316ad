package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/biterate/socialagent/internal/indexer"
	"github.com/biterate/socialagent/internal/searcher"
)

// MCP error codes
const (
	ErrorCodeInvalidParams  = -32602 // Invalid method parameters
	ErrorCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrorCodeSyncInProgress = -32002 // Another sync is already running
	ErrorCodeKnowledgeEmpty = -32003 // Nothing has been synced yet
	ErrorCodeEmptyQuery     = -32004 // Query parameter is empty
)

const (
	maxReportedErrors = 5
	previewRunes      = 500
)

// handleSearchKnowledge handles the search_knowledge tool invocation
func (s *Server) handleSearchKnowledge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	topK := getIntDefault(args, "top_k", s.searcher.Defaults().TopK)
	if topK < 1 || topK > searcher.DefaultCandidateLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("top_k must be between 1 and %d", searcher.DefaultCandidateLimit), map[string]interface{}{
			"param": "top_k",
			"value": topK,
		})
	}

	keywordWeight := getFloatDefault(args, "keyword_weight", 0)
	semanticWeight := getFloatDefault(args, "semantic_weight", 0)
	if keywordWeight < 0 || semanticWeight < 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "weights must not be negative", map[string]interface{}{
			"keyword_weight":  keywordWeight,
			"semantic_weight": semanticWeight,
		})
	}

	mode := searcher.SearchMode(getStringDefault(args, "search_mode", string(searcher.SearchModeHybrid)))
	switch mode {
	case searcher.SearchModeHybrid, searcher.SearchModeSemantic, searcher.SearchModeKeyword:
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid search_mode", map[string]interface{}{
			"param":   "search_mode",
			"value":   mode,
			"allowed": []searcher.SearchMode{searcher.SearchModeHybrid, searcher.SearchModeSemantic, searcher.SearchModeKeyword},
		})
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read knowledge base", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if count == 0 {
		return nil, newMCPError(ErrorCodeKnowledgeEmpty, "knowledge base is empty; run sync_knowledge first", nil)
	}

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		Query:          query,
		Limit:          topK,
		Mode:           mode,
		KeywordWeight:  keywordWeight,
		SemanticWeight: semanticWeight,
		MatchAnyTerm:   true,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, map[string]interface{}{
			"rank":           r.Rank,
			"id":             r.ID,
			"source_type":    r.SourceType,
			"source_id":      r.SourceID,
			"score":          round(r.FinalScore),
			"keyword_score":  round(r.KeywordScore),
			"semantic_score": round(r.SemanticScore),
			"content":        preview(r.Content),
		})
	}

	response := map[string]interface{}{
		"query":       query,
		"search_mode": resp.SearchMode,
		"total":       resp.TotalResults,
		"duration_ms": resp.Duration.Milliseconds(),
		"results":     results,
	}
	if len(results) == 0 {
		response["message"] = searcher.NoContext
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSyncKnowledge handles the sync_knowledge tool invocation
func (s *Server) handleSyncKnowledge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	force := getBoolDefault(args, "force", false)

	stats, err := s.indexer.Sync(ctx, indexer.SyncRequest{Force: force})
	if errors.Is(err, indexer.ErrSyncInProgress) {
		return nil, newMCPError(ErrorCodeSyncInProgress, "a sync is already running", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "sync failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"skipped":          stats.Skipped,
		"documents_synced": stats.DocumentsSynced,
		"documents_failed": stats.DocumentsFailed,
		"chunks_created":   stats.ChunksCreated,
		"chunks_failed":    stats.ChunksFailed,
		"duration_ms":      stats.Duration.Milliseconds(),
	}
	if stats.Skipped {
		response["message"] = "Knowledge base already populated. Pass force=true to rebuild it."
	}
	if n := len(stats.ErrorMessages); n > 0 {
		if n > maxReportedErrors {
			response["errors"] = stats.ErrorMessages[:maxReportedErrors]
			response["error_count"] = n
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.store.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"syncing": s.indexer.Syncing(),
		"statistics": map[string]interface{}{
			"records_count":  status.RecordsCount,
			"vectors_count":  status.VectorsCount,
			"sources_count":  status.SourcesCount,
			"by_source_type": status.BySourceType,
			"index_size_mb":  fmt.Sprintf("%.2f", status.IndexSizeMB),
			"schema_version": status.SchemaVersion,
		},
		"health": map[string]interface{}{
			"database_accessible":    status.Health.DatabaseAccessible,
			"vector_index_available": status.Health.VectorIndexAvailable,
			"fts_index_built":        status.Health.FTSIndexBuilt,
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

func round(v float64) float64 {
	return float64(int(v*10000+0.5)) / 10000
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewRunes {
		return content
	}
	return string(runes[:previewRunes]) + "..."
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a number parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	switch val := args[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
