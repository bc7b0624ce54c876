package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dateloop/backend/internal/logging"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// TokenVerifier resolves an access token to the user it was issued to.
type TokenVerifier interface {
	Verify(accessToken string) (string, error)
}

// WithUserID stores the authenticated user id on the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

// Authenticate rejects requests without a valid bearer token. Browsers cannot
// set headers on websocket handshakes, so the access_token query parameter is
// accepted as a fallback.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := logging.FromContext(r.Context())

			token := bearerToken(r)
			if token == "" {
				token = strings.TrimSpace(r.URL.Query().Get("access_token"))
			}
			if token == "" {
				unauthorized(w, "missing access token")
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				logger.Warn("access token rejected", "error", err)
				unauthorized(w, "invalid access token")
				return
			}

			ctx := WithUserID(r.Context(), userID)
			ctx = logging.WithLogger(ctx, logger.With(slog.String("user_id", userID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
