package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dateloop/backend/internal/models"
	"github.com/dateloop/backend/internal/profiles"
)

// ProfileHandler exposes public profiles.
type ProfileHandler struct {
	Profiles ProfileService
}

// Me handles GET /api/v1/profiles/me.
func (h ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	h.respondProfile(w, r, userID)
}

// Get handles GET /api/v1/profiles/{userID}.
func (h ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := viewer(w, r); !ok {
		return
	}
	h.respondProfile(w, r, chi.URLParam(r, "userID"))
}

func (h ProfileHandler) respondProfile(w http.ResponseWriter, r *http.Request, profileID string) {
	profile, err := h.Profiles.Get(r.Context(), profileID)
	if err != nil {
		respondRead(r.Context(), w, nil, nil, err)
		return
	}
	respondData(r.Context(), w, http.StatusOK, profile)
}

// Search handles GET /api/v1/profiles?query=.
func (h ProfileHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	results, err := h.Profiles.Search(r.Context(), userID, r.URL.Query().Get("query"))
	respondRead(r.Context(), w, results, []models.Profile{}, err)
}

// Save handles PUT /api/v1/profiles/me.
func (h ProfileHandler) Save(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	var input profiles.Input
	if err := decodeJSON(w, r, &input); err != nil {
		respondError(r.Context(), w, err)
		return
	}

	profile, err := h.Profiles.Save(r.Context(), userID, input)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondData(r.Context(), w, http.StatusOK, profile)
}

// UploadAvatar handles PUT /api/v1/profiles/me/avatar. The request body is the
// raw image and Content-Type names its format.
func (h ProfileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	if r.ContentLength > profiles.MaxAvatarBytes {
		respondJSON(r.Context(), w, http.StatusRequestEntityTooLarge, errorResponse{Error: "avatar is too large", Field: "avatar"})
		return
	}

	// The extra byte lets the service see and reject an oversized chunked body.
	body := http.MaxBytesReader(w, r.Body, profiles.MaxAvatarBytes+1)
	profile, err := h.Profiles.UploadAvatar(r.Context(), userID, r.Header.Get("Content-Type"), body)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondData(r.Context(), w, http.StatusOK, profile)
}
