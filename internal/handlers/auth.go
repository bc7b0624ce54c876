package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dateloop/backend/internal/apperr"
	"github.com/dateloop/backend/internal/auth"
	"github.com/dateloop/backend/internal/logging"
	"github.com/dateloop/backend/internal/models"
)

const minPasswordLength = 8

const passwordResetAccepted = "If an account exists for that email, password reset instructions have been sent."

// AuthHandler implements the session endpoints under /api/v1/auth.
type AuthHandler struct {
	Users    UserStore
	Sessions SessionManager
	NowFunc  func() time.Time
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// normalize lowercases the email and checks that both fields are present.
func (c *credentials) normalize() error {
	c.Email = strings.TrimSpace(strings.ToLower(c.Email))
	if c.Email == "" {
		return apperr.Invalid("email", "email is required")
	}
	if c.Password == "" {
		return apperr.Invalid("password", "password is required")
	}
	return nil
}

func (c credentials) validateNew() error {
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return apperr.Invalid("email", "invalid email address")
	}
	if len(c.Password) < minPasswordLength {
		return apperr.Invalid("password", "password must be at least 8 characters")
	}
	return nil
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

type authResponse struct {
	Tokens models.SessionTokens `json:"tokens"`
}

// Login exchanges an email and password for a token pair.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w, true) {
		return
	}

	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}
	if err := req.normalize(); err != nil {
		respondError(ctx, w, err)
		return
	}

	logger := logging.FromContext(ctx).With("email", req.Email)

	user, err := h.Users.FindByEmail(ctx, req.Email)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		logger.Warn("login unknown account")
		unauthorized(ctx, w, "invalid credentials")
		return
	case err != nil:
		respondError(ctx, w, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logger.Warn("login password mismatch", "userId", user.ID)
		unauthorized(ctx, w, "invalid credentials")
		return
	}

	h.issue(ctx, w, http.StatusOK, user.ID)
}

// SignUp creates an account and signs it in.
func (h AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w, true) {
		return
	}

	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}
	if err := req.normalize(); err != nil {
		respondError(ctx, w, err)
		return
	}
	if err := req.validateNew(); err != nil {
		respondError(ctx, w, err)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	now := h.now()
	user := models.User{
		ID:        uuid.NewString(),
		Email:     req.Email,
		Password:  string(hashed),
		CreatedAt: now,
		UpdatedAt: now,
	}

	// The unique index on email decides races between concurrent signups.
	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			respondJSON(ctx, w, http.StatusConflict, errorResponse{Error: "account already exists", Field: "email"})
			return
		}
		respondError(ctx, w, err)
		return
	}

	logging.FromContext(ctx).Info("account created", "userId", user.ID)
	h.issue(ctx, w, http.StatusCreated, user.ID)
}

// Refresh rotates a refresh token into a new token pair.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w, false) {
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}
	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		respondError(ctx, w, apperr.Invalid("refreshToken", "refresh token is required"))
		return
	}

	tokens, err := h.Sessions.Refresh(ctx, token)
	switch {
	case errors.Is(err, auth.ErrRefreshTokenExpired), errors.Is(err, auth.ErrSessionNotFound):
		logging.FromContext(ctx).Warn("refresh rejected", "error", err)
		unauthorized(ctx, w, "unable to refresh session")
	case err != nil:
		respondError(ctx, w, err)
	default:
		respondJSON(ctx, w, http.StatusOK, authResponse{Tokens: tokens})
	}
}

// Logout revokes a refresh token. Unknown tokens are accepted so the call is idempotent.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w, false) {
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	h.Sessions.Revoke(ctx, strings.TrimSpace(req.RefreshToken))
	w.WriteHeader(http.StatusNoContent)
}

// RequestPasswordReset always answers 202 for well-formed addresses so the
// response does not reveal which accounts exist.
func (h AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w, true) {
		return
	}

	var req passwordResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" {
		respondError(ctx, w, apperr.Invalid("email", "email is required"))
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		respondError(ctx, w, apperr.Invalid("email", "invalid email address"))
		return
	}

	if _, err := h.Users.FindByEmail(ctx, email); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusAccepted, map[string]string{"status": passwordResetAccepted})
}

func (h AuthHandler) issue(ctx context.Context, w http.ResponseWriter, status int, userID string) {
	tokens, err := h.Sessions.Issue(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("issue session", "error", err, "userId", userID)
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, status, authResponse{Tokens: tokens})
}

// ready reports whether the handler was wired with what the endpoint needs.
func (h AuthHandler) ready(ctx context.Context, w http.ResponseWriter, needUsers bool) bool {
	if h.Sessions != nil && (!needUsers || h.Users != nil) {
		return true
	}
	logging.FromContext(ctx).Error("authentication dependencies unavailable",
		"hasUsers", h.Users != nil, "hasSessions", h.Sessions != nil)
	respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "authentication services unavailable"})
	return false
}

func unauthorized(ctx context.Context, w http.ResponseWriter, msg string) {
	respondJSON(ctx, w, http.StatusUnauthorized, errorResponse{Error: msg})
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
