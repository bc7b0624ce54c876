package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dateloop/backend/internal/models"
)

// MessageHandler exposes direct messages.
type MessageHandler struct {
	Messages MessageService
}

type sendMessageBody struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

// Thread handles GET /api/v1/messages/{peerID}.
func (h MessageHandler) Thread(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	thread, err := h.Messages.Thread(r.Context(), userID, chi.URLParam(r, "peerID"))
	respondRead(r.Context(), w, thread, []models.Message{}, err)
}

// Unread handles GET /api/v1/messages/unread.
func (h MessageHandler) Unread(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	count, err := h.Messages.UnreadCount(r.Context(), userID)
	respondRead(r.Context(), w, map[string]int{"unread": count}, map[string]int{"unread": 0}, err)
}

// Send handles POST /api/v1/messages.
func (h MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	var body sendMessageBody
	if err := decodeJSON(w, r, &body); err != nil {
		respondError(r.Context(), w, err)
		return
	}

	message, err := h.Messages.Send(r.Context(), userID, body.ReceiverID, body.Content)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondData(r.Context(), w, http.StatusCreated, message)
}
