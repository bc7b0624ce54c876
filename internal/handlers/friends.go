package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dateloop/backend/internal/models"
	"github.com/dateloop/backend/internal/social"
)

// FriendHandler exposes the friend graph.
type FriendHandler struct {
	Social SocialService
}

type friendRequestBody struct {
	FriendID string `json:"friendId"`
}

type respondBody struct {
	Accept bool `json:"accept"`
}

// List handles GET /api/v1/friends.
func (h FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	friends, err := h.Social.ListFriends(r.Context(), userID)
	respondRead(r.Context(), w, friends, []models.Profile{}, err)
}

// Pending handles GET /api/v1/friends/requests.
func (h FriendHandler) Pending(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	requests, err := h.Social.ListPendingRequests(r.Context(), userID)
	respondRead(r.Context(), w, requests, []social.PendingRequest{}, err)
}

// Status handles GET /api/v1/friends/{userID}/pending.
func (h FriendHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	pending, err := h.Social.IsPending(r.Context(), userID, chi.URLParam(r, "userID"))
	respondRead(r.Context(), w, map[string]bool{"pending": pending}, map[string]bool{"pending": false}, err)
}

// Send handles POST /api/v1/friends/requests.
func (h FriendHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	var body friendRequestBody
	if err := decodeJSON(w, r, &body); err != nil {
		respondError(r.Context(), w, err)
		return
	}

	edge, err := h.Social.SendRequest(r.Context(), userID, body.FriendID)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondData(r.Context(), w, http.StatusCreated, edge)
}

// Respond handles POST /api/v1/friends/requests/{requestID}/respond.
func (h FriendHandler) Respond(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	var body respondBody
	if err := decodeJSON(w, r, &body); err != nil {
		respondError(r.Context(), w, err)
		return
	}

	edge, err := h.Social.Respond(r.Context(), userID, chi.URLParam(r, "requestID"), body.Accept)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondData(r.Context(), w, http.StatusOK, edge)
}

// Remove handles DELETE /api/v1/friends/{userID}.
func (h FriendHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	if err := h.Social.RemoveFriend(r.Context(), userID, chi.URLParam(r, "userID")); err != nil {
		respondError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
