package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/biterate/socialagent/internal/agent"
	"github.com/biterate/socialagent/internal/storage"
)

const (
	// Version is reported by the root route
	Version = "1.0.0"

	defaultLimit   = 10
	maxLimit       = 100
	maxBodyBytes   = 1 << 10
	shutdownPeriod = 5 * time.Second
)

// Runner runs the posting workflow
type Runner interface {
	RunWith(ctx context.Context, opts agent.RunOptions) (*agent.Result, error)
}

// Store reads the audit tables
type Store interface {
	ListPosts(ctx context.Context, limit int, status string) ([]*storage.Post, error)
	ListReviews(ctx context.Context, limit int) ([]*storage.Review, error)
	AuditStats(ctx context.Context) (*storage.AuditStats, error)
}

// Server exposes the agent and its audit history over HTTP
type Server struct {
	store  Store
	runner Runner
	token  string
	logger *slog.Logger

	// running serializes workflow runs
	running sync.Mutex
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithToken requires a bearer token on every route but /health
func WithToken(token string) Option {
	return func(s *Server) {
		s.token = token
	}
}

// NewServer creates a Server. runner may be nil, in which case /run
// answers 503.
func NewServer(store Store, runner Runner, opts ...Option) *Server {
	s := &Server{store: store, runner: runner, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.auth(s.handleRoot))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /run", s.auth(s.handleRun))
	mux.HandleFunc("GET /posts", s.auth(s.handlePosts))
	mux.HandleFunc("GET /reviews", s.auth(s.handleReviews))
	mux.HandleFunc("GET /stats", s.auth(s.handleStats))
	return mux
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("api listening", "addr", ln.Addr().String(), "auth", s.token != "")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownPeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !tokenMatch(bearerToken(r), s.token) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}

// tokenMatch is true when no token is configured or the tokens are equal
func tokenMatch(provided, expected string) bool {
	if expected == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
