package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/biterate/socialagent/internal/agent"
	"github.com/biterate/socialagent/internal/storage"
)

type runRequest struct {
	DryRun bool `json:"dry_run"`
}

type runResult struct {
	PostID   int64  `json:"post_id"`
	Content  string `json:"content"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	URL      string `json:"mastodon_url,omitempty"`
	DryRun   bool   `json:"dry_run"`
}

type postResponse struct {
	ID          int64      `json:"id"`
	Content     string     `json:"content"`
	Hashtags    []string   `json:"hashtags"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	MastodonURL string     `json:"mastodon_url,omitempty"`
}

type reviewResponse struct {
	ID         string   `json:"id"`
	Restaurant string   `json:"restaurant"`
	Rating     *float64 `json:"rating,omitempty"`
	Cuisine    string   `json:"cuisine,omitempty"`
	Location   string   `json:"location,omitempty"`
}

type statsResponse struct {
	TotalPosts     int `json:"total_posts"`
	PublishedPosts int `json:"published_posts"`
	PendingPosts   int `json:"pending_posts"`
	RejectedPosts  int `json:"rejected_posts"`
	FailedPosts    int `json:"failed_posts"`
	TotalReviews   int `json:"total_reviews"`
	TotalReplies   int `json:"total_replies"`
	TotalFeedback  int `json:"total_feedback"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "BiteRate social media agent API",
		"version": Version,
		"endpoints": map[string]string{
			"POST /run":    "Trigger agent workflow",
			"GET /posts":   "Get recent posts",
			"GET /reviews": "Get reviews",
			"GET /stats":   "Get statistics",
			"GET /health":  "Health check",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":               "healthy",
		"agent_initialized":    s.runner != nil,
		"database_initialized": s.store != nil,
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "agent not initialized")
		return
	}

	var req runRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if !s.running.TryLock() {
		writeError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	defer s.running.Unlock()

	result, err := s.runner.RunWith(r.Context(), agent.RunOptions{DryRun: req.DryRun})
	if errors.Is(err, agent.ErrNoContent) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil && result == nil {
		s.logger.Error("agent run failed", "error", err)
		writeError(w, http.StatusInternalServerError, "error running agent: "+err.Error())
		return
	}

	out := runResult{
		PostID:   result.PostID,
		Content:  result.Content,
		Status:   result.Status,
		Reason:   result.Reason,
		ImageURL: result.ImageURL,
	}
	if result.Publish != nil {
		out.URL = result.Publish.URL
		out.DryRun = result.Publish.DryRun
	}
	resp := map[string]any{
		"status":  "success",
		"message": "Agent workflow completed",
		"result":  out,
	}
	if err != nil {
		resp["status"] = "error"
		resp["message"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	status := r.URL.Query().Get("status")
	switch status {
	case "", storage.PostPending, storage.PostApproved, storage.PostRejected, storage.PostPublished, storage.PostFailed:
	default:
		writeError(w, http.StatusBadRequest, "unknown status: "+status)
		return
	}

	posts, err := s.store.ListPosts(r.Context(), limit, status)
	if err != nil {
		s.logger.Error("failed to list posts", "error", err)
		writeError(w, http.StatusInternalServerError, "error fetching posts")
		return
	}
	out := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		hashtags := p.Hashtags
		if hashtags == nil {
			hashtags = []string{}
		}
		out = append(out, postResponse{
			ID:          p.ID,
			Content:     p.Content,
			Hashtags:    hashtags,
			Status:      p.Status,
			CreatedAt:   p.CreatedAt,
			PublishedAt: p.PublishedAt,
			MastodonURL: p.MastodonURL,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReviews(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	reviews, err := s.store.ListReviews(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list reviews", "error", err)
		writeError(w, http.StatusInternalServerError, "error fetching reviews")
		return
	}
	out := make([]reviewResponse, 0, len(reviews))
	for _, rv := range reviews {
		out = append(out, reviewResponse{
			ID:         rv.ID,
			Restaurant: rv.Restaurant,
			Rating:     rv.Rating,
			Cuisine:    rv.Cuisine,
			Location:   rv.Location,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.AuditStats(r.Context())
	if err != nil {
		s.logger.Error("failed to read stats", "error", err)
		writeError(w, http.StatusInternalServerError, "error fetching stats")
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		TotalPosts:     stats.TotalPosts,
		PublishedPosts: stats.PostsByStatus[storage.PostPublished],
		PendingPosts:   stats.PostsByStatus[storage.PostPending],
		RejectedPosts:  stats.PostsByStatus[storage.PostRejected],
		FailedPosts:    stats.PostsByStatus[storage.PostFailed],
		TotalReviews:   stats.TotalReviews,
		TotalReplies:   stats.TotalReplies,
		TotalFeedback:  stats.TotalFeedback,
	})
}

// parseLimit reads ?limit=, defaulting to 10 and capping at 100
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return min(n, maxLimit), true
}
