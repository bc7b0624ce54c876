// Package feed assembles the post feed and handles likes, comments and post composition.
package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dateloop/backend/internal/apperr"
	"github.com/dateloop/backend/internal/dates"
	"github.com/dateloop/backend/internal/logging"
	"github.com/dateloop/backend/internal/models"
	"github.com/dateloop/backend/internal/realtime"
)

// Store captures the persistence the feed needs.
type Store interface {
	ListPosts(ctx context.Context, authorID string) ([]models.PostRecord, error)
	CountLikes(ctx context.Context, postIDs []string) (map[string]int, error)
	LikedPostIDs(ctx context.Context, viewerID string, postIDs []string) (map[string]bool, error)
	ListComments(ctx context.Context, postIDs []string) ([]models.CommentRecord, error)
	InsertLike(ctx context.Context, like models.Like) error
	DeleteLike(ctx context.Context, postID, userID string) error
	InsertComment(ctx context.Context, comment models.Comment) error
	InsertDate(ctx context.Context, date models.Date) error
	InsertPost(ctx context.Context, post models.Post) error
	DeleteDate(ctx context.Context, dateID string) error
}

// AtomicPostCreator is implemented by stores able to insert a post and its date
// in one transaction.
type AtomicPostCreator interface {
	CreatePostWithDate(ctx context.Context, date models.Date, post models.Post) error
}

// PostInput carries the compose form.
type PostInput struct {
	DateTime    time.Time `json:"dateTime"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
}

// Service implements the feed operations.
type Service struct {
	Store     Store
	Publisher realtime.Publisher
	NowFunc   func() time.Time
}

// LoadFeed returns every post, newest first, as seen by viewerID.
func (s Service) LoadFeed(ctx context.Context, viewerID string) ([]Item, error) {
	return s.load(ctx, viewerID, "")
}

// LoadUserPosts returns the posts of one author, newest first, as seen by viewerID.
func (s Service) LoadUserPosts(ctx context.Context, viewerID, authorID string) ([]Item, error) {
	if strings.TrimSpace(authorID) == "" {
		return nil, apperr.Invalid("userId", "author is required")
	}
	return s.load(ctx, viewerID, authorID)
}

func (s Service) load(ctx context.Context, viewerID, authorID string) ([]Item, error) {
	posts, err := s.Store.ListPosts(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	if len(posts) == 0 {
		return []Item{}, nil
	}

	ids := make([]string, 0, len(posts))
	for _, post := range posts {
		ids = append(ids, post.ID)
	}

	counts, err := s.Store.CountLikes(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("count likes: %w", err)
	}
	liked, err := s.Store.LikedPostIDs(ctx, viewerID, ids)
	if err != nil {
		return nil, fmt.Errorf("load viewer likes: %w", err)
	}
	comments, err := s.Store.ListComments(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	return Assemble(posts, counts, liked, comments), nil
}

// ToggleLike removes the viewer's like when currentlyLiked is set and adds one
// otherwise, then refetches the post's like state.
func (s Service) ToggleLike(ctx context.Context, postID, viewerID string, currentlyLiked bool) (LikeState, error) {
	if strings.TrimSpace(postID) == "" {
		return LikeState{}, apperr.Invalid("postId", "post is required")
	}

	op := realtime.OpInsert
	if currentlyLiked {
		op = realtime.OpDelete
		if err := s.Store.DeleteLike(ctx, postID, viewerID); err != nil {
			return LikeState{}, fmt.Errorf("unlike post: %w", err)
		}
	} else {
		like := models.Like{PostID: postID, UserID: viewerID, CreatedAt: s.now()}
		if err := s.Store.InsertLike(ctx, like); err != nil {
			return LikeState{}, fmt.Errorf("like post: %w", err)
		}
	}

	realtime.Notify(ctx, s.Publisher, realtime.Change{
		Table:   realtime.TableLikes,
		Op:      op,
		RowID:   postID,
		UserIDs: []string{viewerID},
	})

	return s.likeState(ctx, postID, viewerID)
}

func (s Service) likeState(ctx context.Context, postID, viewerID string) (LikeState, error) {
	ids := []string{postID}
	counts, err := s.Store.CountLikes(ctx, ids)
	if err != nil {
		return LikeState{}, fmt.Errorf("count likes: %w", err)
	}
	liked, err := s.Store.LikedPostIDs(ctx, viewerID, ids)
	if err != nil {
		return LikeState{}, fmt.Errorf("load viewer likes: %w", err)
	}
	return LikeState{PostID: postID, LikesCount: max(counts[postID], 0), IsLiked: liked[postID]}, nil
}

// AddComment appends a comment to a post.
func (s Service) AddComment(ctx context.Context, postID, authorID, content string) (models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Comment{}, apperr.Invalid("content", "EmptyContent")
	}
	if strings.TrimSpace(postID) == "" {
		return models.Comment{}, apperr.Invalid("postId", "post is required")
	}

	comment := models.Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		UserID:    authorID,
		Content:   content,
		CreatedAt: s.now(),
	}
	if err := s.Store.InsertComment(ctx, comment); err != nil {
		return models.Comment{}, fmt.Errorf("add comment: %w", err)
	}

	realtime.Notify(ctx, s.Publisher, realtime.Change{
		Table:   realtime.TableComments,
		Op:      realtime.OpInsert,
		RowID:   comment.ID,
		UserIDs: []string{authorID},
	})
	return comment, nil
}

// CreatePost inserts a date and the post referring to it. Stores that support
// transactions write both rows atomically; otherwise the date is deleted again
// when the post cannot be written.
func (s Service) CreatePost(ctx context.Context, authorID string, input PostInput) (models.Post, error) {
	input.Location = strings.TrimSpace(input.Location)
	input.Description = strings.TrimSpace(input.Description)

	now := s.now()
	switch {
	case input.Location == "":
		return models.Post{}, apperr.Invalid("location", "location is required")
	case input.Description == "":
		return models.Post{}, apperr.Invalid("description", "description is required")
	case !dates.InFuture(input.DateTime, now):
		return models.Post{}, apperr.Invalid("dateTime", "date must be in the future")
	}

	ctx, span := logging.StartSpan(ctx, "feed.create_post")
	defer span.End()
	logger := logging.FromContext(ctx)

	date := models.Date{
		ID:        uuid.NewString(),
		DateTime:  input.DateTime.UTC(),
		Location:  input.Location,
		SenderID:  authorID,
		CreatedAt: now,
	}
	post := models.Post{
		ID:          uuid.NewString(),
		UserID:      authorID,
		DateID:      date.ID,
		Description: input.Description,
		CreatedAt:   now,
	}

	if err := s.insertPostWithDate(ctx, date, post); err != nil {
		span.Fail(err)
		return models.Post{}, err
	}

	logger.Info("post created", "postId", post.ID, "dateId", date.ID)

	realtime.Notify(ctx, s.Publisher, realtime.Change{Table: realtime.TableDates, Op: realtime.OpInsert, RowID: date.ID, UserIDs: []string{authorID}})
	realtime.Notify(ctx, s.Publisher, realtime.Change{Table: realtime.TablePosts, Op: realtime.OpInsert, RowID: post.ID, UserIDs: []string{authorID}})
	return post, nil
}

func (s Service) insertPostWithDate(ctx context.Context, date models.Date, post models.Post) error {
	if txStore, ok := s.Store.(AtomicPostCreator); ok {
		if err := txStore.CreatePostWithDate(ctx, date, post); err != nil {
			return fmt.Errorf("create post: %w", err)
		}
		return nil
	}

	if err := s.Store.InsertDate(ctx, date); err != nil {
		return fmt.Errorf("create post date: %w", err)
	}
	if err := s.Store.InsertPost(ctx, post); err != nil {
		if cleanupErr := s.Store.DeleteDate(context.WithoutCancel(ctx), date.ID); cleanupErr != nil {
			logging.FromContext(ctx).Error("orphaned date after failed post insert", "dateId", date.ID, "error", cleanupErr)
		}
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

func (s Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now().UTC()
}
