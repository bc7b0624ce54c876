package repositories

import (
	"context"

	"github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgxv5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dateloop/backend/internal/db"
	"github.com/dateloop/backend/internal/feed"
	"github.com/dateloop/backend/internal/models"
)

// PostgresFeedRepository persists dates, posts, likes and comments.
type PostgresFeedRepository struct {
	pool db.Pool
}

// NewPostgresFeedRepository constructs a feed repository backed by PostgreSQL.
func NewPostgresFeedRepository(pool db.Pool) *PostgresFeedRepository {
	return &PostgresFeedRepository{pool: pool}
}

// ListPosts returns posts newest first, joined with author and date. An empty
// authorID lists every post.
func (r *PostgresFeedRepository) ListPosts(ctx context.Context, authorID string) ([]models.PostRecord, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, acquireError(err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT p.id, p.user_id, p.date_id, p.description, p.created_at,
               pr.id, pr.username, pr.full_name, pr.bio, pr.avatar_url, pr.created_at, pr.updated_at,
               d.id, d.datetime, d.location, d.sender_id, d.created_at
        FROM posts p
        JOIN profiles pr ON pr.id = p.user_id
        JOIN dates d ON d.id = p.date_id
        WHERE $1 = '' OR p.user_id::TEXT = $1
        ORDER BY p.created_at DESC
        LIMIT 200
    `, authorID)
	if err != nil {
		return nil, translate("query posts", err)
	}
	defer rows.Close()

	posts := []models.PostRecord{}
	for rows.Next() {
		var rec models.PostRecord
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.DateID, &rec.Description, &rec.CreatedAt,
			&rec.Author.ID, &rec.Author.Username, &rec.Author.FullName, &rec.Author.Bio, &rec.Author.AvatarURL, &rec.Author.CreatedAt, &rec.Author.UpdatedAt,
			&rec.Date.ID, &rec.Date.DateTime, &rec.Date.Location, &rec.Date.SenderID, &rec.Date.CreatedAt,
		); err != nil {
			return nil, translate("scan post", err)
		}
		rec.CreatedAt = rec.CreatedAt.UTC()
		rec.Date.DateTime = rec.Date.DateTime.UTC()
		posts = append(posts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("iterate posts", err)
	}
	return posts, nil
}

// CountLikes returns the like count per post. Posts without likes are absent.
func (r *PostgresFeedRepository) CountLikes(ctx context.Context, postIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(postIDs))
	if len(postIDs) == 0 {
		return counts, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, acquireError(err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT post_id, COUNT(*)
        FROM likes
        WHERE post_id = ANY($1)
        GROUP BY post_id
    `, postIDs)
	if err != nil {
		return nil, translate("count likes", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			postID string
			count  int64
		)
		if err := rows.Scan(&postID, &count); err != nil {
			return nil, translate("scan like count", err)
		}
		counts[postID] = int(count)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("iterate like counts", err)
	}
	return counts, nil
}

// LikedPostIDs reports which of postIDs the viewer has liked.
func (r *PostgresFeedRepository) LikedPostIDs(ctx context.Context, viewerID string, postIDs []string) (map[string]bool, error) {
	liked := make(map[string]bool)
	if len(postIDs) == 0 || viewerID == "" {
		return liked, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, acquireError(err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT post_id
        FROM likes
        WHERE user_id = $1 AND post_id = ANY($2)
    `, viewerID, postIDs)
	if err != nil {
		return nil, translate("query viewer likes", err)
	}
	defer rows.Close()

	for rows.Next() {
		var postID string
		if err := rows.Scan(&postID); err != nil {
			return nil, translate("scan viewer like", err)
		}
		liked[postID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, translate("iterate viewer likes", err)
	}
	return liked, nil
}

// ListComments returns the comments on postIDs with their authors, oldest first.
func (r *PostgresFeedRepository) ListComments(ctx context.Context, postIDs []string) ([]models.CommentRecord, error) {
	if len(postIDs) == 0 {
		return []models.CommentRecord{}, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, acquireError(err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT c.id, c.post_id, c.user_id, c.content, c.created_at,
               pr.id, pr.username, pr.full_name, pr.bio, pr.avatar_url, pr.created_at, pr.updated_at
        FROM comments c
        JOIN profiles pr ON pr.id = c.user_id
        WHERE c.post_id = ANY($1)
        ORDER BY c.created_at
    `, postIDs)
	if err != nil {
		return nil, translate("query comments", err)
	}
	defer rows.Close()

	comments := []models.CommentRecord{}
	for rows.Next() {
		var rec models.CommentRecord
		if err := rows.Scan(
			&rec.ID, &rec.PostID, &rec.UserID, &rec.Content, &rec.CreatedAt,
			&rec.Author.ID, &rec.Author.Username, &rec.Author.FullName, &rec.Author.Bio, &rec.Author.AvatarURL, &rec.Author.CreatedAt, &rec.Author.UpdatedAt,
		); err != nil {
			return nil, translate("scan comment", err)
		}
		rec.CreatedAt = rec.CreatedAt.UTC()
		comments = append(comments, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("iterate comments", err)
	}
	return comments, nil
}

// InsertLike records a like. Liking an already liked post is a no-op.
func (r *PostgresFeedRepository) InsertLike(ctx context.Context, like models.Like) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return acquireError(err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO likes (post_id, user_id, created_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (post_id, user_id) DO NOTHING
    `, like.PostID, like.UserID, like.CreatedAt)
	return translate("insert like", err)
}

// DeleteLike removes a like. Unliking a post that is not liked is a no-op.
func (r *PostgresFeedRepository) DeleteLike(ctx context.Context, postID, userID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return acquireError(err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `DELETE FROM likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
	return translate("delete like", err)
}

// InsertComment appends a comment.
func (r *PostgresFeedRepository) InsertComment(ctx context.Context, comment models.Comment) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return acquireError(err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO comments (id, post_id, user_id, content, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, comment.ID, comment.PostID, comment.UserID, comment.Content, comment.CreatedAt)
	return translate("insert comment", err)
}

// InsertDate stores a date row.
func (r *PostgresFeedRepository) InsertDate(ctx context.Context, date models.Date) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return acquireError(err)
	}
	defer conn.Release()

	return insertDate(ctx, conn, date)
}

// InsertPost stores a post row. The referenced date must exist.
func (r *PostgresFeedRepository) InsertPost(ctx context.Context, post models.Post) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return acquireError(err)
	}
	defer conn.Release()

	return insertPost(ctx, conn, post)
}

// DeleteDate removes a date and, through the foreign key, any post on it.
func (r *PostgresFeedRepository) DeleteDate(ctx context.Context, dateID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return acquireError(err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM dates WHERE id = $1`, dateID)
	if err != nil {
		return translate("delete date", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreatePostWithDate writes the date and its post in one transaction,
// retrying on serialization failures.
func (r *PostgresFeedRepository) CreatePostWithDate(ctx context.Context, date models.Date, post models.Post) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return acquireError(err)
	}
	defer conn.Release()

	return crdbpgx.ExecuteTx(ctx, conn, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := insertDate(ctx, tx, date); err != nil {
			return err
		}
		return insertPost(ctx, tx, post)
	})
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertDate(ctx context.Context, q execer, date models.Date) error {
	_, err := q.Exec(ctx, `
        INSERT INTO dates (id, datetime, location, sender_id, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, date.ID, date.DateTime, date.Location, date.SenderID, date.CreatedAt)
	return translate("insert date", err)
}

func insertPost(ctx context.Context, q execer, post models.Post) error {
	_, err := q.Exec(ctx, `
        INSERT INTO posts (id, user_id, date_id, description, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, post.ID, post.UserID, post.DateID, post.Description, post.CreatedAt)
	return translate("insert post", err)
}

var (
	_ feed.Store             = (*PostgresFeedRepository)(nil)
	_ feed.AtomicPostCreator = (*PostgresFeedRepository)(nil)
)
