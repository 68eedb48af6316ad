// Package mcp serves the knowledge base over the Model Context Protocol.
//
// The server speaks JSON-RPC 2.0 on stdio and exposes three tools:
//   - search_knowledge: fused keyword and semantic search over the synced passages
//   - sync_knowledge: pull the configured workspace content into the knowledge base
//   - get_status: record counts per source type and index health
//
// It is started with:
//
//	biterate serve
//
// # Tool: search_knowledge
//
//	Request:
//	{
//	  "name": "search_knowledge",
//	  "arguments": {
//	    "query": "best ramen",
//	    "top_k": 5,
//	    "keyword_weight": 0.3,
//	    "semantic_weight": 0.7
//	  }
//	}
//
//	Response:
//	{
//	  "query": "best ramen",
//	  "search_mode": "hybrid",
//	  "total": 1,
//	  "results": [
//	    {
//	      "rank": 1,
//	      "source_type": "notion_database_entry",
//	      "source_id": "1f2e...",
//	      "score": 0.92,
//	      "content": "Restaurant: Ramen House\nRating: 4.5 ..."
//	    }
//	  ]
//	}
//
// Weights left out (or both zero) fall back to the configured rag weights.
// search_mode "keyword" and "semantic" pin the weights to one side.
//
// # Tool: sync_knowledge
//
// Without force a knowledge base that already holds records is left
// alone and the response carries "skipped": true. With force it is emptied
// and rebuilt. A second sync while one runs fails with code -32002.
//
// # Errors
//
// Invalid arguments return -32602, a blank query -32004, a search against
// an empty knowledge base -32003 and storage failures -32603. Errors are
// returned as *MCPError so mcp-go encodes them as protocol errors.
package mcp
