package handlers

import (
	"context"
	"io"

	"github.com/dateloop/backend/internal/dates"
	"github.com/dateloop/backend/internal/feed"
	"github.com/dateloop/backend/internal/messages"
	"github.com/dateloop/backend/internal/models"
	"github.com/dateloop/backend/internal/profiles"
	"github.com/dateloop/backend/internal/social"
)

// UserStore captures the persistence operations required by the auth handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
}

// SessionManager issues, refreshes and revokes authentication tokens for users.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Revoke(ctx context.Context, refreshToken string)
}

// SocialService is the friend graph as seen by the friend handlers.
type SocialService interface {
	SendRequest(ctx context.Context, requesterID, targetID string) (models.FriendEdge, error)
	Respond(ctx context.Context, actorID, edgeID string, accept bool) (models.FriendEdge, error)
	RemoveFriend(ctx context.Context, actorID, friendID string) error
	ListFriends(ctx context.Context, userID string) ([]models.Profile, error)
	ListPendingRequests(ctx context.Context, userID string) ([]social.PendingRequest, error)
	IsPending(ctx context.Context, userID, otherID string) (bool, error)
}

// FeedService serves posts, likes and comments.
type FeedService interface {
	LoadFeed(ctx context.Context, viewerID string) ([]feed.Item, error)
	LoadUserPosts(ctx context.Context, viewerID, authorID string) ([]feed.Item, error)
	ToggleLike(ctx context.Context, postID, viewerID string, currentlyLiked bool) (feed.LikeState, error)
	AddComment(ctx context.Context, postID, authorID, content string) (models.Comment, error)
	CreatePost(ctx context.Context, authorID string, input feed.PostInput) (models.Post, error)
}

// DateService drives date invitations and their challenges.
type DateService interface {
	CreateInvitation(ctx context.Context, senderID string, input dates.InvitationInput) (models.DateInvitation, error)
	RespondToInvitation(ctx context.Context, actorID, invitationID string, decision dates.Decision) (models.DateInvitation, error)
	ListInbox(ctx context.Context, viewerID string) ([]models.DateInvitation, error)
	ListSentInvitations(ctx context.Context, viewerID string) ([]models.DateInvitation, error)
	ListChallenges(ctx context.Context, actorID, dateID string) ([]models.Challenge, error)
	AddChallenge(ctx context.Context, actorID, dateID, title, description string) (models.Challenge, error)
	ToggleChallenge(ctx context.Context, actorID, challengeID string) (models.Challenge, error)
}

// MessageService handles direct messages.
type MessageService interface {
	Send(ctx context.Context, senderID, receiverID, content string) (models.Message, error)
	Thread(ctx context.Context, viewerID, peerID string) ([]models.Message, error)
	UnreadCount(ctx context.Context, viewerID string) (int, error)
}

// ProfileService manages public profiles and avatars.
type ProfileService interface {
	Get(ctx context.Context, profileID string) (models.Profile, error)
	Save(ctx context.Context, actorID string, input profiles.Input) (models.Profile, error)
	Search(ctx context.Context, viewerID, query string) ([]models.Profile, error)
	UploadAvatar(ctx context.Context, actorID, contentType string, body io.Reader) (models.Profile, error)
}

var (
	_ SocialService  = social.Service{}
	_ FeedService    = feed.Service{}
	_ DateService    = dates.Service{}
	_ MessageService = messages.Service{}
	_ ProfileService = profiles.Service{}
)
