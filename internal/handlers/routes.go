package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dateloop/backend/internal/middleware"
	"github.com/dateloop/backend/internal/realtime"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users    UserStore
	Sessions SessionManager
	Verifier middleware.TokenVerifier

	Social   SocialService
	Feed     FeedService
	Dates    DateService
	Messages MessageService
	Profiles ProfileService
	Hub      *realtime.Hub

	AuthLimiter    middleware.RateLimiter
	WriteLimiter   middleware.RateLimiter
	RequestTimeout time.Duration
	Logger         *slog.Logger
	Ready          func(ctx context.Context) error
}

// NewRouter wires every HTTP handler onto a chi router.
func NewRouter(deps Dependencies) http.Handler {
	health := HealthHandler{Ready: deps.Ready}
	auth := AuthHandler{Users: deps.Users, Sessions: deps.Sessions}
	friends := FriendHandler{Social: deps.Social}
	feed := FeedHandler{Feed: deps.Feed}
	invitations := InvitationHandler{Dates: deps.Dates}
	messages := MessageHandler{Messages: deps.Messages}
	profiles := ProfileHandler{Profiles: deps.Profiles}
	live := RealtimeHandler{
		Hub:      deps.Hub,
		Feed:     deps.Feed,
		Dates:    deps.Dates,
		Social:   deps.Social,
		Messages: deps.Messages,
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))

	r.Get("/healthz", health.Handle)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(timeout))
			r.Use(middleware.RateLimit(deps.AuthLimiter, "auth"))
			r.Post("/auth/login", auth.Login)
			r.Post("/auth/signup", auth.SignUp)
			r.Post("/auth/refresh", auth.Refresh)
			r.Post("/auth/logout", auth.Logout)
			r.Post("/auth/password-reset", auth.RequestPasswordReset)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(deps.Verifier))

			r.Get("/realtime", live.Connect)

			r.Group(func(r chi.Router) {
				r.Use(chimw.Timeout(timeout))

				r.Get("/profiles", profiles.Search)
				r.Get("/profiles/me", profiles.Me)
				r.Get("/profiles/{userID}", profiles.Get)
				r.Get("/friends", friends.List)
				r.Get("/friends/requests", friends.Pending)
				r.Get("/friends/{userID}/pending", friends.Status)
				r.Get("/feed", feed.List)
				r.Get("/users/{userID}/posts", feed.UserPosts)
				r.Get("/invitations", invitations.Inbox)
				r.Get("/invitations/sent", invitations.Sent)
				r.Get("/invitations/{invitationID}/challenges", invitations.Challenges)
				r.Get("/messages/unread", messages.Unread)
				r.Get("/messages/{peerID}", messages.Thread)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RateLimit(deps.WriteLimiter, "write"))

					r.Put("/profiles/me", profiles.Save)
					r.Put("/profiles/me/avatar", profiles.UploadAvatar)
					r.Post("/friends/requests", friends.Send)
					r.Post("/friends/requests/{requestID}/respond", friends.Respond)
					r.Delete("/friends/{userID}", friends.Remove)
					r.Post("/posts", feed.Create)
					r.Post("/posts/{postID}/like", feed.ToggleLike)
					r.Post("/posts/{postID}/comments", feed.Comment)
					r.Post("/invitations", invitations.Create)
					r.Post("/invitations/{invitationID}/respond", invitations.Respond)
					r.Post("/invitations/{invitationID}/challenges", invitations.AddChallenge)
					r.Post("/challenges/{challengeID}/toggle", invitations.ToggleChallenge)
					r.Post("/messages", messages.Send)
				})
			})
		})
	})

	return r
}
