package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dateloop/backend/internal/dates"
	"github.com/dateloop/backend/internal/models"
)

// InvitationHandler exposes date invitations and their challenges.
type InvitationHandler struct {
	Dates DateService
}

type decisionBody struct {
	Decision string `json:"decision"`
}

type challengeBody struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Inbox handles GET /api/v1/invitations.
func (h InvitationHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	invitations, err := h.Dates.ListInbox(r.Context(), userID)
	respondRead(r.Context(), w, invitations, []models.DateInvitation{}, err)
}

// Sent handles GET /api/v1/invitations/sent.
func (h InvitationHandler) Sent(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	invitations, err := h.Dates.ListSentInvitations(r.Context(), userID)
	respondRead(r.Context(), w, invitations, []models.DateInvitation{}, err)
}

// Create handles POST /api/v1/invitations.
func (h InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	var input dates.InvitationInput
	if err := decodeJSON(w, r, &input); err != nil {
		respondError(r.Context(), w, err)
		return
	}

	invitation, err := h.Dates.CreateInvitation(r.Context(), userID, input)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondData(r.Context(), w, http.StatusCreated, invitation)
}

// Respond handles POST /api/v1/invitations/{invitationID}/respond.
func (h InvitationHandler) Respond(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	var body decisionBody
	if err := decodeJSON(w, r, &body); err != nil {
		respondError(r.Context(), w, err)
		return
	}
	decision, err := dates.ParseDecision(body.Decision)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}

	invitation, err := h.Dates.RespondToInvitation(r.Context(), userID, chi.URLParam(r, "invitationID"), decision)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondData(r.Context(), w, http.StatusOK, invitation)
}

// Challenges handles GET /api/v1/invitations/{invitationID}/challenges.
func (h InvitationHandler) Challenges(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	challenges, err := h.Dates.ListChallenges(r.Context(), userID, chi.URLParam(r, "invitationID"))
	respondRead(r.Context(), w, challenges, []models.Challenge{}, err)
}

// AddChallenge handles POST /api/v1/invitations/{invitationID}/challenges.
func (h InvitationHandler) AddChallenge(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	var body challengeBody
	if err := decodeJSON(w, r, &body); err != nil {
		respondError(r.Context(), w, err)
		return
	}

	challenge, err := h.Dates.AddChallenge(r.Context(), userID, chi.URLParam(r, "invitationID"), body.Title, body.Description)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondData(r.Context(), w, http.StatusCreated, challenge)
}

// ToggleChallenge handles POST /api/v1/challenges/{challengeID}/toggle.
func (h InvitationHandler) ToggleChallenge(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	challenge, err := h.Dates.ToggleChallenge(r.Context(), userID, chi.URLParam(r, "challengeID"))
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondData(r.Context(), w, http.StatusOK, challenge)
}
