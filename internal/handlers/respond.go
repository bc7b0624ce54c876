package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dateloop/backend/internal/apperr"
	"github.com/dateloop/backend/internal/logging"
	"github.com/dateloop/backend/internal/middleware"
)

const maxJSONBody = 1 << 20

// envelope wraps every domain payload. Degraded is set when a read could not
// reach the backend and Data holds an empty value instead.
type envelope struct {
	Data     any  `json:"data"`
	Degraded bool `json:"degraded,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

// respondData writes a successful domain payload.
func respondData(ctx context.Context, w http.ResponseWriter, status int, data any) {
	respondJSON(ctx, w, status, envelope{Data: data})
}

// respondRead writes the result of a read. Caller mistakes still fail with
// their status; backend failures degrade to 200 with the empty value.
func respondRead(ctx context.Context, w http.ResponseWriter, data, empty any, err error) {
	if err == nil {
		respondData(ctx, w, http.StatusOK, data)
		return
	}
	if status := statusFor(err); status < http.StatusInternalServerError {
		respondError(ctx, w, err)
		return
	}

	logging.FromContext(ctx).Error("read failed, serving degraded response", "error", err)
	respondJSON(ctx, w, http.StatusOK, envelope{Data: empty, Degraded: true})
}

// respondError maps err onto its status code and a client-safe message.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: messageFor(err, status)}

	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		resp.Error = verr.Message
		resp.Field = verr.Field
	}

	if status >= http.StatusInternalServerError {
		logging.FromContext(ctx).Error("write failed", "error", err)
	}
	respondJSON(ctx, w, status, resp)
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrDuplicateRequest),
		errors.Is(err, apperr.ErrAlreadyResolved),
		errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrTransient):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error, status int) string {
	switch {
	case errors.Is(err, apperr.ErrDuplicateRequest):
		return "a friend request already links these users"
	case errors.Is(err, apperr.ErrAlreadyResolved):
		return "already resolved"
	case errors.Is(err, apperr.ErrConflict):
		return "conflict"
	case status == http.StatusServiceUnavailable:
		return "service temporarily unavailable"
	}
	return http.StatusText(status)
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(dst); err != nil {
		return apperr.Invalid("body", fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

// viewer returns the authenticated user or writes 401.
func viewer(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return "", false
	}
	return userID, true
}
