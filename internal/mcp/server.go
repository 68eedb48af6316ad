package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/biterate/socialagent/internal/indexer"
	"github.com/biterate/socialagent/internal/searcher"
	"github.com/biterate/socialagent/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "biterate-knowledge"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server exposes the knowledge base as MCP tools
type Server struct {
	mcp      *server.MCPServer
	store    storage.KnowledgeStore
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	logger   *slog.Logger
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer registers the tools over already opened components. The
// indexer and searcher should share one embedder so vectors cached while
// syncing serve later queries.
func NewServer(store storage.KnowledgeStore, idx *indexer.Indexer, srch *searcher.Searcher, opts ...Option) (*Server, error) {
	if store == nil || idx == nil || srch == nil {
		return nil, errors.New("mcp: store, indexer and searcher are required")
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		store:    store,
		indexer:  idx,
		searcher: srch,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerTools()
	return s, nil
}

// Serve answers MCP requests on stdio until the client disconnects. The
// caller owns the store.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio", "name", ServerName, "version", ServerVersion)
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(searchKnowledgeTool(), s.handleSearchKnowledge)
	s.mcp.AddTool(syncKnowledgeTool(), s.handleSyncKnowledge)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
