package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestReviews(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	review := &Review{
		ID:           "page-1",
		NotionPageID: "page-1",
		Restaurant:   "Trattoria Roma",
		Rating:       floatPtr(4.5),
		Review:       "Great tiramisu",
		Cuisine:      "Italian",
	}
	require.NoError(t, s.SaveReview(ctx, review))

	review.Rating = floatPtr(5)
	require.NoError(t, s.SaveReview(ctx, review), "saving the same id replaces")
	require.NoError(t, s.SaveReview(ctx, &Review{ID: "page-2", Restaurant: "Noodle Bar"}))

	reviews, err := s.ListReviews(ctx, 10)
	require.NoError(t, err)
	require.Len(t, reviews, 2)

	byID := map[string]*Review{}
	for _, r := range reviews {
		byID[r.ID] = r
	}
	require.Contains(t, byID, "page-1")
	assert.Equal(t, 5.0, *byID["page-1"].Rating)
	assert.Equal(t, "Italian", byID["page-1"].Cuisine)
	assert.Empty(t, byID["page-1"].Location)
	assert.Nil(t, byID["page-2"].Rating)
	assert.False(t, byID["page-2"].UpdatedAt.IsZero())

	limited, err := s.ListReviews(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSaveReview_RequiresID(t *testing.T) {
	s := setupTestDB(t)
	assert.Error(t, s.SaveReview(context.Background(), &Review{Restaurant: "x"}))
}

func TestPostLifecycle(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	post := &Post{
		Content:             "Tried the tiramisu at Trattoria Roma #food",
		Hashtags:            []string{"#food", "#AIGenerated"},
		Tone:                "casual",
		RestaurantMentioned: "Trattoria Roma",
		RatingMentioned:     floatPtr(4.5),
	}
	id, err := s.SavePost(ctx, post)
	require.NoError(t, err)
	assert.Equal(t, id, post.ID)

	got, err := s.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, PostPending, got.Status)
	assert.Equal(t, post.Hashtags, got.Hashtags)
	assert.Equal(t, 4.5, *got.RatingMentioned)
	assert.Nil(t, got.PublishedAt)
	assert.False(t, got.CreatedAt.IsZero())

	require.NoError(t, s.UpdatePostStatus(ctx, id, StatusUpdate{Status: PostApproved}))
	got, err = s.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, PostApproved, got.Status)
	assert.Empty(t, got.MastodonPostID)

	require.NoError(t, s.UpdatePostStatus(ctx, id, StatusUpdate{
		Status:         PostPublished,
		MastodonPostID: "1099",
		MastodonURL:    "https://mastodon.example/@biterate/1099",
	}))
	got, err = s.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, PostPublished, got.Status)
	assert.Equal(t, "1099", got.MastodonPostID)
	assert.Equal(t, "https://mastodon.example/@biterate/1099", got.MastodonURL)
	assert.NotNil(t, got.PublishedAt)
}

func TestPosts_NotFound(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	_, err := s.GetPost(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.UpdatePostStatus(ctx, 42, StatusUpdate{Status: PostRejected})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.SavePost(ctx, &Post{})
	assert.Error(t, err)
}

func TestRecentPosts(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	for _, content := range []string{"first", "second", "third"} {
		_, err := s.SavePost(ctx, &Post{Content: content})
		require.NoError(t, err)
	}

	posts, err := s.RecentPosts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "third", posts[0].Content)
	assert.Equal(t, "second", posts[1].Content)
	assert.Nil(t, posts[0].Hashtags)
}

func TestApprovalsAndFeedback(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	postID, err := s.SavePost(ctx, &Post{Content: "draft"})
	require.NoError(t, err)

	approval := &Approval{PostID: postID, Decision: "rejected", RejectionReason: "too long"}
	require.NoError(t, s.SaveApproval(ctx, approval))
	assert.NotZero(t, approval.ID)

	require.NoError(t, s.SaveFeedback(ctx, &Feedback{PostID: &postID, Type: "rejection", Text: "too long"}))
	require.NoError(t, s.SaveFeedback(ctx, &Feedback{Type: "general", Text: "more emoji"}))

	items, err := s.ListFeedback(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "more emoji", items[0].Text)
	assert.Nil(t, items[0].PostID)
	require.NotNil(t, items[1].PostID)
	assert.Equal(t, postID, *items[1].PostID)
}

func TestSaveApproval_UnknownPost(t *testing.T) {
	s := setupTestDB(t)
	err := s.SaveApproval(context.Background(), &Approval{PostID: 999, Decision: "approved"})
	assert.Error(t, err, "foreign key should reject unknown post")
}

func TestRepliedNotifications(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	replied, err := s.IsReplied(ctx, "n-1")
	require.NoError(t, err)
	assert.False(t, replied)

	require.NoError(t, s.MarkReplied(ctx, &RepliedNotification{NotificationID: "n-1", StatusID: "s-1", ReplyID: "r-1"}))
	require.NoError(t, s.MarkReplied(ctx, &RepliedNotification{NotificationID: "n-1"}), "marking twice is a no-op")

	replied, err = s.IsReplied(ctx, "n-1")
	require.NoError(t, err)
	assert.True(t, replied)
}

func TestListPosts_StatusFilter(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	for _, content := range []string{"one", "two", "three"} {
		_, err := s.SavePost(ctx, &Post{Content: content})
		require.NoError(t, err)
	}
	posts, err := s.RecentPosts(ctx, 10)
	require.NoError(t, err)
	require.NoError(t, s.UpdatePostStatus(ctx, posts[0].ID, StatusUpdate{Status: PostRejected}))

	pending, err := s.ListPosts(ctx, 10, PostPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	rejected, err := s.ListPosts(ctx, 10, PostRejected)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, "three", rejected[0].Content)

	all, err := s.ListPosts(ctx, 10, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestAuditStats(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	stats, err := s.AuditStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalPosts)
	assert.Empty(t, stats.PostsByStatus)

	published, err := s.SavePost(ctx, &Post{Content: "live"})
	require.NoError(t, err)
	require.NoError(t, s.UpdatePostStatus(ctx, published, StatusUpdate{Status: PostPublished, MastodonPostID: "1"}))
	_, err = s.SavePost(ctx, &Post{Content: "waiting"})
	require.NoError(t, err)
	require.NoError(t, s.SaveReview(ctx, &Review{ID: "r1", Restaurant: "Noodle Bar"}))
	require.NoError(t, s.MarkReplied(ctx, &RepliedNotification{NotificationID: "n1"}))
	require.NoError(t, s.SaveFeedback(ctx, &Feedback{Type: "rejection", Text: "bland"}))

	stats, err = s.AuditStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalPosts)
	assert.Equal(t, 1, stats.PostsByStatus[PostPublished])
	assert.Equal(t, 1, stats.PostsByStatus[PostPending])
	assert.Equal(t, 1, stats.TotalReviews)
	assert.Equal(t, 1, stats.TotalReplies)
	assert.Equal(t, 1, stats.TotalFeedback)
}

func TestPageState(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	_, ok, err := s.PageState(ctx, "page-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetPageState(ctx, "page-1", "2026-01-01T10:00:00Z"))
	require.NoError(t, s.SetPageState(ctx, "page-1", "2026-01-02T10:00:00Z"))

	edited, ok, err := s.PageState(ctx, "page-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2026-01-02T10:00:00Z", edited)
}
