package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dateloop/backend/internal/feed"
)

// FeedHandler serves posts and their likes and comments.
type FeedHandler struct {
	Feed FeedService
}

type likeBody struct {
	CurrentlyLiked bool `json:"currentlyLiked"`
}

type commentBody struct {
	Content string `json:"content"`
}

// List handles GET /api/v1/feed.
func (h FeedHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	items, err := h.Feed.LoadFeed(r.Context(), userID)
	respondRead(r.Context(), w, items, []feed.Item{}, err)
}

// UserPosts handles GET /api/v1/users/{userID}/posts.
func (h FeedHandler) UserPosts(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	items, err := h.Feed.LoadUserPosts(r.Context(), userID, chi.URLParam(r, "userID"))
	respondRead(r.Context(), w, items, []feed.Item{}, err)
}

// Create handles POST /api/v1/posts.
func (h FeedHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	var input feed.PostInput
	if err := decodeJSON(w, r, &input); err != nil {
		respondError(r.Context(), w, err)
		return
	}

	post, err := h.Feed.CreatePost(r.Context(), userID, input)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondData(r.Context(), w, http.StatusCreated, post)
}

// ToggleLike handles POST /api/v1/posts/{postID}/like.
func (h FeedHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	var body likeBody
	if err := decodeJSON(w, r, &body); err != nil {
		respondError(r.Context(), w, err)
		return
	}

	state, err := h.Feed.ToggleLike(r.Context(), chi.URLParam(r, "postID"), userID, body.CurrentlyLiked)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondData(r.Context(), w, http.StatusOK, state)
}

// Comment handles POST /api/v1/posts/{postID}/comments.
func (h FeedHandler) Comment(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	var body commentBody
	if err := decodeJSON(w, r, &body); err != nil {
		respondError(r.Context(), w, err)
		return
	}

	comment, err := h.Feed.AddComment(r.Context(), chi.URLParam(r, "postID"), userID, body.Content)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondData(r.Context(), w, http.StatusCreated, comment)
}
