package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/dateloop/backend/internal/dates"
	"github.com/dateloop/backend/internal/feed"
	"github.com/dateloop/backend/internal/models"
	"github.com/dateloop/backend/internal/profiles"
	"github.com/dateloop/backend/internal/social"
)

// tokenVerifier maps opaque test tokens to user ids.
type tokenVerifier map[string]string

func (v tokenVerifier) Verify(token string) (string, error) {
	if userID, ok := v[token]; ok {
		return userID, nil
	}
	return "", errors.New("unknown token")
}

type denyLimiter struct{}

func (denyLimiter) Allow(string) bool { return false }

// stubBackend implements every domain service. Each call is recorded and
// returns err when set.
type stubBackend struct {
	mu    sync.Mutex
	calls []string
	err   error

	items []feed.Item
}

func (s *stubBackend) record(format string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
	return s.err
}

func (s *stubBackend) lastCall() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return ""
	}
	return s.calls[len(s.calls)-1]
}

func (s *stubBackend) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubBackend) SendRequest(_ context.Context, requesterID, targetID string) (models.FriendEdge, error) {
	err := s.record("SendRequest %s %s", requesterID, targetID)
	return models.FriendEdge{ID: "edge-1", UserID: requesterID, FriendID: targetID, Status: models.StatusPending}, err
}

func (s *stubBackend) Respond(_ context.Context, actorID, edgeID string, accept bool) (models.FriendEdge, error) {
	err := s.record("Respond %s %s %t", actorID, edgeID, accept)
	return models.FriendEdge{ID: edgeID}, err
}

func (s *stubBackend) RemoveFriend(_ context.Context, actorID, friendID string) error {
	return s.record("RemoveFriend %s %s", actorID, friendID)
}

func (s *stubBackend) ListFriends(_ context.Context, userID string) ([]models.Profile, error) {
	err := s.record("ListFriends %s", userID)
	return []models.Profile{{ID: "friend-1", Username: "ben"}}, err
}

func (s *stubBackend) ListPendingRequests(_ context.Context, userID string) ([]social.PendingRequest, error) {
	err := s.record("ListPendingRequests %s", userID)
	return nil, err
}

func (s *stubBackend) IsPending(_ context.Context, userID, otherID string) (bool, error) {
	err := s.record("IsPending %s %s", userID, otherID)
	return true, err
}

func (s *stubBackend) LoadFeed(_ context.Context, viewerID string) ([]feed.Item, error) {
	err := s.record("LoadFeed %s", viewerID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items, err
}

func (s *stubBackend) LoadUserPosts(_ context.Context, viewerID, authorID string) ([]feed.Item, error) {
	err := s.record("LoadUserPosts %s %s", viewerID, authorID)
	return nil, err
}

func (s *stubBackend) ToggleLike(_ context.Context, postID, viewerID string, currentlyLiked bool) (feed.LikeState, error) {
	err := s.record("ToggleLike %s %s %t", postID, viewerID, currentlyLiked)
	return feed.LikeState{PostID: postID, LikesCount: 1, IsLiked: !currentlyLiked}, err
}

func (s *stubBackend) AddComment(_ context.Context, postID, authorID, content string) (models.Comment, error) {
	err := s.record("AddComment %s %s %s", postID, authorID, content)
	return models.Comment{ID: "comment-1", PostID: postID, UserID: authorID, Content: content}, err
}

func (s *stubBackend) CreatePost(_ context.Context, authorID string, input feed.PostInput) (models.Post, error) {
	err := s.record("CreatePost %s %s", authorID, input.Location)
	return models.Post{ID: "post-1", UserID: authorID}, err
}

func (s *stubBackend) CreateInvitation(_ context.Context, senderID string, input dates.InvitationInput) (models.DateInvitation, error) {
	err := s.record("CreateInvitation %s %s", senderID, input.ReceiverID)
	return models.DateInvitation{ID: "inv-1", SenderID: senderID, ReceiverID: input.ReceiverID}, err
}

func (s *stubBackend) RespondToInvitation(_ context.Context, actorID, invitationID string, decision dates.Decision) (models.DateInvitation, error) {
	err := s.record("RespondToInvitation %s %s %s", actorID, invitationID, decision)
	return models.DateInvitation{ID: invitationID, Status: string(decision)}, err
}

func (s *stubBackend) ListInbox(_ context.Context, viewerID string) ([]models.DateInvitation, error) {
	err := s.record("ListInbox %s", viewerID)
	return nil, err
}

func (s *stubBackend) ListSentInvitations(_ context.Context, viewerID string) ([]models.DateInvitation, error) {
	err := s.record("ListSentInvitations %s", viewerID)
	return nil, err
}

func (s *stubBackend) ListChallenges(_ context.Context, actorID, dateID string) ([]models.Challenge, error) {
	err := s.record("ListChallenges %s %s", actorID, dateID)
	return nil, err
}

func (s *stubBackend) AddChallenge(_ context.Context, actorID, dateID, title, description string) (models.Challenge, error) {
	err := s.record("AddChallenge %s %s %s", actorID, dateID, title)
	return models.Challenge{ID: "challenge-1", DateID: dateID, Title: title, Description: description}, err
}

func (s *stubBackend) ToggleChallenge(_ context.Context, actorID, challengeID string) (models.Challenge, error) {
	err := s.record("ToggleChallenge %s %s", actorID, challengeID)
	return models.Challenge{ID: challengeID, IsCompleted: true}, err
}

func (s *stubBackend) Send(_ context.Context, senderID, receiverID, content string) (models.Message, error) {
	err := s.record("Send %s %s %s", senderID, receiverID, content)
	return models.Message{ID: "msg-1", SenderID: senderID, ReceiverID: receiverID, Content: content}, err
}

func (s *stubBackend) Thread(_ context.Context, viewerID, peerID string) ([]models.Message, error) {
	err := s.record("Thread %s %s", viewerID, peerID)
	return nil, err
}

func (s *stubBackend) UnreadCount(_ context.Context, viewerID string) (int, error) {
	err := s.record("UnreadCount %s", viewerID)
	return 3, err
}

func (s *stubBackend) Get(_ context.Context, profileID string) (models.Profile, error) {
	err := s.record("Get %s", profileID)
	return models.Profile{ID: profileID, Username: "ana"}, err
}

func (s *stubBackend) Save(_ context.Context, actorID string, input profiles.Input) (models.Profile, error) {
	err := s.record("Save %s %s", actorID, input.Username)
	return models.Profile{ID: actorID, Username: input.Username}, err
}

func (s *stubBackend) Search(_ context.Context, viewerID, query string) ([]models.Profile, error) {
	err := s.record("Search %s %s", viewerID, query)
	return nil, err
}

func (s *stubBackend) UploadAvatar(_ context.Context, actorID, contentType string, body io.Reader) (models.Profile, error) {
	data, _ := io.ReadAll(body)
	err := s.record("UploadAvatar %s %s %d", actorID, contentType, len(data))
	return models.Profile{ID: actorID}, err
}

const (
	testToken  = "token-ana"
	testUserID = "ana"
)

func newTestRouter(backend *stubBackend) http.Handler {
	return NewRouter(Dependencies{
		Verifier: tokenVerifier{testToken: testUserID},
		Social:   backend,
		Feed:     backend,
		Dates:    backend,
		Messages: backend,
		Profiles: backend,
	})
}

func authedRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}
