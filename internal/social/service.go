// Package social implements the friend-request lifecycle over directed edges
// while presenting the relationship between two users symmetrically.
package social

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dateloop/backend/internal/apperr"
	"github.com/dateloop/backend/internal/logging"
	"github.com/dateloop/backend/internal/models"
	"github.com/dateloop/backend/internal/realtime"
)

// Store captures the persistence the social graph needs.
type Store interface {
	InsertEdge(ctx context.Context, edge models.FriendEdge) error
	FindEdge(ctx context.Context, edgeID string) (models.FriendEdge, error)
	EdgesBetween(ctx context.Context, userID, otherID string) ([]models.FriendEdge, error)
	EdgesForUser(ctx context.Context, userID, status string) ([]models.FriendEdge, error)
	ResolveEdge(ctx context.Context, edgeID, status string, at time.Time) (models.FriendEdge, error)
	DeleteEdges(ctx context.Context, edgeIDs []string) error
	ProfilesByID(ctx context.Context, ids []string) ([]models.Profile, error)
}

// Direction tells whether a pending request was received or sent by the viewer.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// PendingRequest is a pending edge seen from one of its two users.
type PendingRequest struct {
	Edge         models.FriendEdge `json:"edge"`
	Direction    Direction         `json:"direction"`
	Counterparty models.Profile    `json:"counterparty"`
}

// Service implements the social graph operations.
type Service struct {
	Store     Store
	Publisher realtime.Publisher
	NowFunc   func() time.Time
}

// SendRequest records a pending request from requesterID to targetID.
func (s Service) SendRequest(ctx context.Context, requesterID, targetID string) (models.FriendEdge, error) {
	requesterID = strings.TrimSpace(requesterID)
	targetID = strings.TrimSpace(targetID)

	switch {
	case requesterID == "":
		return models.FriendEdge{}, apperr.Invalid("requesterId", "requester is required")
	case targetID == "":
		return models.FriendEdge{}, apperr.Invalid("friendId", "friend is required")
	case requesterID == targetID:
		return models.FriendEdge{}, apperr.Invalid("friendId", "cannot send a friend request to yourself")
	}

	pair, err := s.Pair(ctx, requesterID, targetID)
	if err != nil {
		return models.FriendEdge{}, err
	}
	if pair.Active() {
		return models.FriendEdge{}, fmt.Errorf("send friend request: %w", apperr.ErrDuplicateRequest)
	}

	edge := models.FriendEdge{
		ID:        uuid.NewString(),
		UserID:    requesterID,
		FriendID:  targetID,
		Status:    models.StatusPending,
		CreatedAt: s.now(),
	}

	if err := s.Store.InsertEdge(ctx, edge); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return models.FriendEdge{}, fmt.Errorf("send friend request: %w", apperr.ErrDuplicateRequest)
		}
		return models.FriendEdge{}, fmt.Errorf("send friend request: %w", err)
	}

	s.notify(ctx, realtime.OpInsert, edge)
	return edge, nil
}

// Respond accepts or rejects a pending request. Only the receiver may respond.
// Accepting removes any opposite-direction request still pending for the pair.
func (s Service) Respond(ctx context.Context, actorID, edgeID string, accept bool) (models.FriendEdge, error) {
	if strings.TrimSpace(edgeID) == "" {
		return models.FriendEdge{}, apperr.Invalid("id", "request id is required")
	}

	edge, err := s.Store.FindEdge(ctx, edgeID)
	if err != nil {
		return models.FriendEdge{}, fmt.Errorf("load friend request: %w", err)
	}
	if edge.FriendID != actorID {
		return models.FriendEdge{}, fmt.Errorf("respond to friend request: %w", apperr.ErrForbidden)
	}
	if edge.Status != models.StatusPending {
		return models.FriendEdge{}, fmt.Errorf("respond to friend request: %w", apperr.ErrAlreadyResolved)
	}

	status := models.StatusRejected
	if accept {
		status = models.StatusAccepted
	}

	resolved, err := s.Store.ResolveEdge(ctx, edgeID, status, s.now())
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			// Lost a race with another response or a removal.
			if _, findErr := s.Store.FindEdge(ctx, edgeID); findErr == nil {
				return models.FriendEdge{}, fmt.Errorf("respond to friend request: %w", apperr.ErrAlreadyResolved)
			}
		}
		return models.FriendEdge{}, fmt.Errorf("respond to friend request: %w", err)
	}

	if accept {
		if err := s.collapseSiblings(ctx, resolved); err != nil {
			logging.FromContext(ctx).Warn("collapse sibling friend requests", "edgeId", resolved.ID, "error", err)
		}
	}

	s.notify(ctx, realtime.OpUpdate, resolved)
	return resolved, nil
}

// RemoveFriend deletes every edge between the two users.
func (s Service) RemoveFriend(ctx context.Context, actorID, friendID string) error {
	if strings.TrimSpace(friendID) == "" || actorID == friendID {
		return apperr.Invalid("friendId", "a different user is required")
	}

	pair, err := s.Pair(ctx, actorID, friendID)
	if err != nil {
		return err
	}
	if len(pair.Edges) == 0 {
		return fmt.Errorf("remove friend: %w", apperr.ErrNotFound)
	}

	ids := make([]string, 0, len(pair.Edges))
	for _, edge := range pair.Edges {
		ids = append(ids, edge.ID)
	}
	if err := s.Store.DeleteEdges(ctx, ids); err != nil {
		return fmt.Errorf("remove friend: %w", err)
	}

	realtime.Notify(ctx, s.Publisher, realtime.Change{
		Table:   realtime.TableFriends,
		Op:      realtime.OpDelete,
		RowID:   ids[0],
		UserIDs: []string{actorID, friendID},
	})
	return nil
}

// ListFriends returns the profiles linked to userID by an accepted edge, in either direction.
func (s Service) ListFriends(ctx context.Context, userID string) ([]models.Profile, error) {
	edges, err := s.Store.EdgesForUser(ctx, userID, models.StatusAccepted)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}

	seen := make(map[string]struct{}, len(edges))
	ids := make([]string, 0, len(edges))
	for _, edge := range edges {
		other := counterpart(edge, userID)
		if _, ok := seen[other]; ok {
			continue
		}
		seen[other] = struct{}{}
		ids = append(ids, other)
	}
	if len(ids) == 0 {
		return []models.Profile{}, nil
	}

	profiles, err := s.Store.ProfilesByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list friend profiles: %w", err)
	}
	return profiles, nil
}

// ListPendingRequests returns pending edges on either side of userID, tagged with their direction.
func (s Service) ListPendingRequests(ctx context.Context, userID string) ([]PendingRequest, error) {
	edges, err := s.Store.EdgesForUser(ctx, userID, models.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	if len(edges) == 0 {
		return []PendingRequest{}, nil
	}

	ids := make([]string, 0, len(edges))
	for _, edge := range edges {
		ids = append(ids, counterpart(edge, userID))
	}
	profiles, err := s.Store.ProfilesByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list pending request profiles: %w", err)
	}
	byID := make(map[string]models.Profile, len(profiles))
	for _, profile := range profiles {
		byID[profile.ID] = profile
	}

	requests := make([]PendingRequest, 0, len(edges))
	for _, edge := range edges {
		direction := DirectionOutgoing
		if edge.FriendID == userID {
			direction = DirectionIncoming
		}
		other := counterpart(edge, userID)
		profile, ok := byID[other]
		if !ok {
			profile = models.Profile{ID: other}
		}
		requests = append(requests, PendingRequest{Edge: edge, Direction: direction, Counterparty: profile})
	}
	return requests, nil
}

// IsPending reports whether a pending edge links the two users in either direction.
func (s Service) IsPending(ctx context.Context, userID, otherID string) (bool, error) {
	pair, err := s.Pair(ctx, userID, otherID)
	if err != nil {
		return false, err
	}
	return len(pair.PendingEdges()) > 0, nil
}

// Pair loads the undirected relationship between two users.
func (s Service) Pair(ctx context.Context, userID, otherID string) (FriendPair, error) {
	edges, err := s.Store.EdgesBetween(ctx, userID, otherID)
	if err != nil {
		return FriendPair{}, fmt.Errorf("load friend pair: %w", err)
	}
	return NewFriendPair(userID, otherID, edges), nil
}

func (s Service) collapseSiblings(ctx context.Context, accepted models.FriendEdge) error {
	pair, err := s.Pair(ctx, accepted.UserID, accepted.FriendID)
	if err != nil {
		return err
	}

	var stale []string
	for _, edge := range pair.PendingEdges() {
		if edge.ID != accepted.ID {
			stale = append(stale, edge.ID)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	logging.FromContext(ctx).Debug("removing pending requests superseded by acceptance", "edgeId", accepted.ID, "count", len(stale))
	return s.Store.DeleteEdges(ctx, stale)
}

func (s Service) notify(ctx context.Context, op realtime.Op, edge models.FriendEdge) {
	realtime.Notify(ctx, s.Publisher, realtime.Change{
		Table:   realtime.TableFriends,
		Op:      op,
		RowID:   edge.ID,
		UserIDs: []string{edge.UserID, edge.FriendID},
	})
}

func (s Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now().UTC()
}

func counterpart(edge models.FriendEdge, userID string) string {
	if edge.UserID == userID {
		return edge.FriendID
	}
	return edge.UserID
}
