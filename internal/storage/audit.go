package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Audit operations

// SaveReview inserts or replaces a review by id
func (s *SQLiteStorage) SaveReview(ctx context.Context, review *Review) error {
	if review.ID == "" {
		return fmt.Errorf("review id is required")
	}
	return s.withConn(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `
			INSERT OR REPLACE INTO reviews
			(id, notion_page_id, restaurant, rating, review, cuisine, location, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		`, review.ID, nullString(review.NotionPageID), review.Restaurant, nullFloat(review.Rating),
			nullString(review.Review), nullString(review.Cuisine), nullString(review.Location))
		if err != nil {
			return fmt.Errorf("failed to save review: %w", err)
		}
		return nil
	})
}

// ListReviews returns the most recently updated reviews
func (s *SQLiteStorage) ListReviews(ctx context.Context, limit int) ([]*Review, error) {
	var reviews []*Review
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `
			SELECT id, notion_page_id, restaurant, rating, review, cuisine, location, updated_at
			FROM reviews
			ORDER BY updated_at DESC, id
			LIMIT ?
		`, limit)
		if err != nil {
			return fmt.Errorf("failed to list reviews: %w", err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var (
				r                               Review
				pageID, text, cuisine, location sql.NullString
				rating                          sql.NullFloat64
				updatedAt                       sql.NullTime
			)
			if err := rows.Scan(&r.ID, &pageID, &r.Restaurant, &rating, &text, &cuisine, &location, &updatedAt); err != nil {
				return err
			}
			r.NotionPageID = pageID.String
			r.Review = text.String
			r.Cuisine = cuisine.String
			r.Location = location.String
			if rating.Valid {
				v := rating.Float64
				r.Rating = &v
			}
			r.UpdatedAt = updatedAt.Time
			reviews = append(reviews, &r)
		}
		return rows.Err()
	})
	return reviews, err
}

// SavePost inserts a post and returns its id
func (s *SQLiteStorage) SavePost(ctx context.Context, post *Post) (int64, error) {
	if post.Content == "" {
		return 0, fmt.Errorf("post content is required")
	}
	if post.Status == "" {
		post.Status = PostPending
	}

	hashtags, err := json.Marshal(post.Hashtags)
	if err != nil {
		return 0, fmt.Errorf("failed to encode hashtags: %w", err)
	}

	err = s.withConn(ctx, func(conn *sql.Conn) error {
		result, err := conn.ExecContext(ctx, `
			INSERT INTO posts
			(content, hashtags, tone, restaurant_mentioned, rating_mentioned, image_url, status)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, post.Content, string(hashtags), nullString(post.Tone), nullString(post.RestaurantMentioned),
			nullFloat(post.RatingMentioned), nullString(post.ImageURL), post.Status)
		if err != nil {
			return fmt.Errorf("failed to save post: %w", err)
		}
		post.ID, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	return post.ID, nil
}

// GetPost loads one post
func (s *SQLiteStorage) GetPost(ctx context.Context, id int64) (*Post, error) {
	var post *Post
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, postColumns+" FROM posts WHERE id = ?", id)
		p, err := scanPost(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		post = p
		return err
	})
	return post, err
}

// UpdatePostStatus changes a post's state. Publishing also records the
// remote id, url and publication time.
func (s *SQLiteStorage) UpdatePostStatus(ctx context.Context, id int64, update StatusUpdate) error {
	return s.withConn(ctx, func(conn *sql.Conn) error {
		var (
			result sql.Result
			err    error
		)
		if update.Status == PostPublished {
			result, err = conn.ExecContext(ctx, `
				UPDATE posts
				SET status = ?, mastodon_post_id = ?, mastodon_url = ?, published_at = CURRENT_TIMESTAMP
				WHERE id = ?
			`, update.Status, nullString(update.MastodonPostID), nullString(update.MastodonURL), id)
		} else {
			result, err = conn.ExecContext(ctx, "UPDATE posts SET status = ? WHERE id = ?", update.Status, id)
		}
		if err != nil {
			return fmt.Errorf("failed to update post status: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// RecentPosts returns the newest posts first
func (s *SQLiteStorage) RecentPosts(ctx context.Context, limit int) ([]*Post, error) {
	return s.ListPosts(ctx, limit, "")
}

// ListPosts returns the newest posts first, restricted to one status when
// status is not empty
func (s *SQLiteStorage) ListPosts(ctx context.Context, limit int, status string) ([]*Post, error) {
	query := postColumns + " FROM posts"
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	var posts []*Post
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to list posts: %w", err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			p, err := scanPost(rows)
			if err != nil {
				return err
			}
			posts = append(posts, p)
		}
		return rows.Err()
	})
	return posts, err
}

// SaveApproval records a decision for a post
func (s *SQLiteStorage) SaveApproval(ctx context.Context, approval *Approval) error {
	return s.withConn(ctx, func(conn *sql.Conn) error {
		result, err := conn.ExecContext(ctx, `
			INSERT INTO approvals (post_id, decision, rejection_reason)
			VALUES (?, ?, ?)
		`, approval.PostID, approval.Decision, nullString(approval.RejectionReason))
		if err != nil {
			return fmt.Errorf("failed to save approval: %w", err)
		}
		approval.ID, err = result.LastInsertId()
		return err
	})
}

// SaveFeedback stores free-text feedback, optionally tied to a post
func (s *SQLiteStorage) SaveFeedback(ctx context.Context, feedback *Feedback) error {
	return s.withConn(ctx, func(conn *sql.Conn) error {
		var postID sql.NullInt64
		if feedback.PostID != nil {
			postID = sql.NullInt64{Int64: *feedback.PostID, Valid: true}
		}
		result, err := conn.ExecContext(ctx, `
			INSERT INTO feedback (post_id, feedback_type, feedback_text)
			VALUES (?, ?, ?)
		`, postID, feedback.Type, feedback.Text)
		if err != nil {
			return fmt.Errorf("failed to save feedback: %w", err)
		}
		feedback.ID, err = result.LastInsertId()
		return err
	})
}

// ListFeedback returns the newest feedback first
func (s *SQLiteStorage) ListFeedback(ctx context.Context, limit int) ([]*Feedback, error) {
	var items []*Feedback
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `
			SELECT id, post_id, feedback_type, feedback_text, created_at
			FROM feedback ORDER BY id DESC LIMIT ?
		`, limit)
		if err != nil {
			return fmt.Errorf("failed to list feedback: %w", err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var (
				f         Feedback
				postID    sql.NullInt64
				createdAt sql.NullTime
			)
			if err := rows.Scan(&f.ID, &postID, &f.Type, &f.Text, &createdAt); err != nil {
				return err
			}
			if postID.Valid {
				id := postID.Int64
				f.PostID = &id
			}
			f.CreatedAt = createdAt.Time
			items = append(items, &f)
		}
		return rows.Err()
	})
	return items, err
}

// MarkReplied records that a notification was answered. Marking the same
// notification twice is a no-op.
func (s *SQLiteStorage) MarkReplied(ctx context.Context, reply *RepliedNotification) error {
	return s.withConn(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `
			INSERT OR IGNORE INTO replied_notifications (notification_id, status_id, reply_id)
			VALUES (?, ?, ?)
		`, reply.NotificationID, nullString(reply.StatusID), nullString(reply.ReplyID))
		if err != nil {
			return fmt.Errorf("failed to mark notification replied: %w", err)
		}
		return nil
	})
}

// IsReplied reports whether a notification was already answered
func (s *SQLiteStorage) IsReplied(ctx context.Context, notificationID string) (bool, error) {
	var n int
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM replied_notifications WHERE notification_id = ?", notificationID,
		).Scan(&n)
	})
	return n > 0, err
}

// AuditStats counts the audit tables
func (s *SQLiteStorage) AuditStats(ctx context.Context) (*AuditStats, error) {
	stats := &AuditStats{PostsByStatus: make(map[string]int)}
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, "SELECT status, COUNT(*) FROM posts GROUP BY status")
		if err != nil {
			return fmt.Errorf("failed to count posts: %w", err)
		}
		defer func() { _ = rows.Close() }()
		for rows.Next() {
			var (
				status string
				n      int
			)
			if err := rows.Scan(&status, &n); err != nil {
				return err
			}
			stats.PostsByStatus[status] = n
			stats.TotalPosts += n
		}
		if err := rows.Err(); err != nil {
			return err
		}

		counts := []struct {
			table string
			dest  *int
		}{
			{"reviews", &stats.TotalReviews},
			{"replied_notifications", &stats.TotalReplies},
			{"feedback", &stats.TotalFeedback},
		}
		for _, c := range counts {
			if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dest); err != nil {
				return fmt.Errorf("failed to count %s: %w", c.table, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// PageState returns the last edit time recorded for a page
func (s *SQLiteStorage) PageState(ctx context.Context, pageID string) (string, bool, error) {
	var edited string
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx,
			"SELECT last_edited_time FROM page_states WHERE page_id = ?", pageID,
		).Scan(&edited)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read page state: %w", err)
	}
	return edited, true, nil
}

// SetPageState records the last edit time seen for a page
func (s *SQLiteStorage) SetPageState(ctx context.Context, pageID, lastEdited string) error {
	return s.withConn(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `
			INSERT OR REPLACE INTO page_states (page_id, last_edited_time, last_checked)
			VALUES (?, ?, CURRENT_TIMESTAMP)
		`, pageID, lastEdited)
		if err != nil {
			return fmt.Errorf("failed to save page state: %w", err)
		}
		return nil
	})
}

const postColumns = `
	SELECT id, content, hashtags, tone, restaurant_mentioned, rating_mentioned, image_url,
	       status, mastodon_post_id, mastodon_url, created_at, published_at`

func scanPost(row rowScanner) (*Post, error) {
	var (
		p                                    Post
		hashtags, tone, restaurant, imageURL sql.NullString
		remoteID, remoteURL                  sql.NullString
		rating                               sql.NullFloat64
		createdAt, publishedAt               sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.Content, &hashtags, &tone, &restaurant, &rating, &imageURL,
		&p.Status, &remoteID, &remoteURL, &createdAt, &publishedAt); err != nil {
		return nil, err
	}

	if hashtags.Valid && hashtags.String != "" {
		if err := json.Unmarshal([]byte(hashtags.String), &p.Hashtags); err != nil {
			return nil, fmt.Errorf("post %d: invalid hashtags: %w", p.ID, err)
		}
	}
	p.Tone = tone.String
	p.RestaurantMentioned = restaurant.String
	p.ImageURL = imageURL.String
	p.MastodonPostID = remoteID.String
	p.MastodonURL = remoteURL.String
	if rating.Valid {
		v := rating.Float64
		p.RatingMentioned = &v
	}
	p.CreatedAt = createdAt.Time
	if publishedAt.Valid {
		t := publishedAt.Time
		p.PublishedAt = &t
	}
	return &p, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// ensure the sqlite implementation satisfies the interface
var _ Storage = (*SQLiteStorage)(nil)
