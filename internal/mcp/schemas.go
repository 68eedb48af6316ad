package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/biterate/socialagent/internal/searcher"
)

// searchKnowledgeTool returns the tool definition for search_knowledge
func searchKnowledgeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_knowledge",
		Description: "Search the BiteRate knowledge base (company pages, restaurant reviews, local documents) with keyword and semantic retrieval",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of passages to return (1-100)",
					"default":     searcher.DefaultTopK,
					"minimum":     1,
					"maximum":     searcher.DefaultCandidateLimit,
				},
				"keyword_weight": map[string]interface{}{
					"type":        "number",
					"description": "Weight of the full-text score in the fused ranking",
					"minimum":     0.0,
				},
				"semantic_weight": map[string]interface{}{
					"type":        "number",
					"description": "Weight of the vector similarity score in the fused ranking",
					"minimum":     0.0,
				},
				"search_mode": map[string]interface{}{
					"type":        "string",
					"description": "hybrid (weighted fusion), semantic (vectors only) or keyword (full-text only)",
					"enum":        []string{string(searcher.SearchModeHybrid), string(searcher.SearchModeSemantic), string(searcher.SearchModeKeyword)},
					"default":     string(searcher.SearchModeHybrid),
				},
			},
			Required: []string{"query"},
		},
	}
}

// syncKnowledgeTool returns the tool definition for sync_knowledge
func syncKnowledgeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "sync_knowledge",
		Description: "Pull the configured Notion pages, review databases and local documents into the knowledge base",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, empty the knowledge base and rebuild it; otherwise a populated knowledge base is left alone",
					"default":     false,
				},
			},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report knowledge base size, sources and index health",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
