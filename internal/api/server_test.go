package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biterate/socialagent/internal/agent"
	"github.com/biterate/socialagent/internal/mastodon"
	"github.com/biterate/socialagent/internal/storage"
)

type fakeRunner struct {
	opts    []agent.RunOptions
	result  *agent.Result
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeRunner) RunWith(ctx context.Context, opts agent.RunOptions) (*agent.Result, error) {
	f.opts = append(f.opts, opts)
	if f.started != nil {
		close(f.started)
		<-f.release
	}
	return f.result, f.err
}

func newStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func do(t *testing.T, h http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestRootAndHealth(t *testing.T) {
	h := NewServer(newStore(t), nil).Handler()

	rec := do(t, h, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var root map[string]any
	decode(t, rec, &root)
	assert.Equal(t, Version, root["version"])
	assert.Contains(t, root["endpoints"], "POST /run")

	rec = do(t, h, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	decode(t, rec, &health)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, false, health["agent_initialized"])
	assert.Equal(t, true, health["database_initialized"])

	rec = do(t, h, http.MethodGet, "/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRun(t *testing.T) {
	runner := &fakeRunner{result: &agent.Result{
		PostID:  7,
		Content: "Ramen time",
		Status:  storage.PostPending,
		Publish: &mastodon.PostResult{DryRun: true},
	}}
	h := NewServer(newStore(t), runner).Handler()

	rec := do(t, h, http.MethodPost, "/run", `{"dry_run": true}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Status string    `json:"status"`
		Result runResult `json:"result"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, int64(7), resp.Result.PostID)
	assert.True(t, resp.Result.DryRun)
	assert.Equal(t, []agent.RunOptions{{DryRun: true}}, runner.opts)

	rec = do(t, h, http.MethodPost, "/run", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, "an empty body is allowed")
	assert.False(t, runner.opts[1].DryRun)

	rec = do(t, h, http.MethodPost, "/run", "{not json", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/run", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRun_Errors(t *testing.T) {
	store := newStore(t)

	rec := do(t, NewServer(store, nil).Handler(), http.MethodPost, "/run", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, NewServer(store, &fakeRunner{err: agent.ErrNoContent}).Handler(), http.MethodPost, "/run", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, NewServer(store, &fakeRunner{err: errors.New("llm down")}).Handler(), http.MethodPost, "/run", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	partial := &fakeRunner{
		result: &agent.Result{PostID: 3, Status: storage.PostFailed},
		err:    errors.New("publish: 502"),
	}
	rec = do(t, NewServer(store, partial).Handler(), http.MethodPost, "/run", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	decode(t, rec, &resp)
	assert.Equal(t, "error", resp["status"])
	assert.Equal(t, "publish: 502", resp["message"])
}

func TestRun_RejectsOverlap(t *testing.T) {
	runner := &fakeRunner{
		result:  &agent.Result{Status: storage.PostPublished},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	h := NewServer(newStore(t), runner).Handler()

	done := make(chan int)
	go func() {
		done <- do(t, h, http.MethodPost, "/run", "", nil).Code
	}()
	<-runner.started

	rec := do(t, h, http.MethodPost, "/run", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(runner.release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestPosts(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	for _, content := range []string{"first", "second", "third"} {
		_, err := store.SavePost(ctx, &storage.Post{Content: content, Hashtags: []string{"#BiteRate"}})
		require.NoError(t, err)
	}
	posts, err := store.RecentPosts(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, store.UpdatePostStatus(ctx, posts[0].ID, storage.StatusUpdate{
		Status: storage.PostPublished, MastodonPostID: "1", MastodonURL: "https://social.example/1",
	}))
	h := NewServer(store, nil).Handler()

	rec := do(t, h, http.MethodGet, "/posts?limit=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got []postResponse
	decode(t, rec, &got)
	require.Len(t, got, 2)
	assert.Equal(t, "third", got[0].Content)
	assert.Equal(t, "https://social.example/1", got[0].MastodonURL)
	assert.NotNil(t, got[0].PublishedAt)
	assert.Equal(t, []string{"#BiteRate"}, got[0].Hashtags)

	rec = do(t, h, http.MethodGet, "/posts?status=pending", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got = nil
	decode(t, rec, &got)
	assert.Len(t, got, 2)

	rec = do(t, h, http.MethodGet, "/posts?status=bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/posts?limit=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewsAndStats(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	rating := 4.5
	require.NoError(t, store.SaveReview(ctx, &storage.Review{ID: "r1", Restaurant: "Ramen House", Rating: &rating, Cuisine: "Japanese"}))
	_, err := store.SavePost(ctx, &storage.Post{Content: "draft"})
	require.NoError(t, err)
	require.NoError(t, store.MarkReplied(ctx, &storage.RepliedNotification{NotificationID: "n1"}))
	h := NewServer(store, nil).Handler()

	rec := do(t, h, http.MethodGet, "/reviews", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var reviews []reviewResponse
	decode(t, rec, &reviews)
	require.Len(t, reviews, 1)
	assert.Equal(t, "Ramen House", reviews[0].Restaurant)
	assert.Equal(t, 4.5, *reviews[0].Rating)

	rec = do(t, h, http.MethodGet, "/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats statsResponse
	decode(t, rec, &stats)
	assert.Equal(t, statsResponse{TotalPosts: 1, PendingPosts: 1, TotalReviews: 1, TotalReplies: 1}, stats)
}

func TestToken(t *testing.T) {
	h := NewServer(newStore(t), nil, WithToken("s3cret")).Handler()

	rec := do(t, h, http.MethodGet, "/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/stats", "", map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/stats", "", map[string]string{"Authorization": "Bearer s3cret"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health stays open")
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(newStore(t), nil)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
