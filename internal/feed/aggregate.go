package feed

import (
	"sort"

	"github.com/dateloop/backend/internal/models"
)

// Item is a post joined with everything a viewer sees alongside it.
type Item struct {
	Post       models.Post            `json:"post"`
	Author     models.Profile         `json:"author"`
	Date       models.Date            `json:"date"`
	LikesCount int                    `json:"likesCount"`
	IsLiked    bool                   `json:"isLiked"`
	Comments   []models.CommentRecord `json:"comments"`
}

// LikeState is the like summary of one post for one viewer.
type LikeState struct {
	PostID     string `json:"postId"`
	LikesCount int    `json:"likesCount"`
	IsLiked    bool   `json:"isLiked"`
}

// Assemble joins posts with their like counts, the viewer's likes and their
// comments. Post order is preserved; comments are ordered oldest first. Every
// item carries a non-nil comment list and a non-negative like count.
func Assemble(posts []models.PostRecord, likeCounts map[string]int, liked map[string]bool, comments []models.CommentRecord) []Item {
	byPost := make(map[string][]models.CommentRecord, len(posts))
	for _, comment := range comments {
		byPost[comment.PostID] = append(byPost[comment.PostID], comment)
	}

	items := make([]Item, 0, len(posts))
	for _, post := range posts {
		thread := byPost[post.ID]
		if thread == nil {
			thread = []models.CommentRecord{}
		}
		sort.SliceStable(thread, func(i, j int) bool {
			return thread[i].CreatedAt.Before(thread[j].CreatedAt)
		})

		count := likeCounts[post.ID]
		if count < 0 {
			count = 0
		}

		items = append(items, Item{
			Post:       post.Post,
			Author:     post.Author,
			Date:       post.Date,
			LikesCount: count,
			IsLiked:    liked[post.ID],
			Comments:   thread,
		})
	}
	return items
}
