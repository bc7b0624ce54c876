package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dateloop/backend/internal/logging"
	"github.com/dateloop/backend/internal/realtime"
)

const (
	pongWait       = 60 * time.Second
	maxClientFrame = 4 << 10
)

// Aggregates a realtime client may watch.
const (
	aggregateFeed        = "feed"
	aggregateInvitations = "invitations"
	aggregateSent        = "sent"
	aggregateFriends     = "friends"
	aggregateThread      = "thread"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// RealtimeHandler upgrades authenticated clients to a websocket and keeps the
// aggregates they watch fresh.
type RealtimeHandler struct {
	Hub      *realtime.Hub
	Feed     FeedService
	Dates    DateService
	Social   SocialService
	Messages MessageService
}

type watchRequest struct {
	Action    string `json:"action"`
	Aggregate string `json:"aggregate"`
	PeerID    string `json:"peerId,omitempty"`
}

// Connect handles GET /api/v1/realtime.
func (h RealtimeHandler) Connect(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewer(w, r)
	if !ok {
		return
	}
	if h.Hub == nil {
		respondJSON(r.Context(), w, http.StatusServiceUnavailable, errorResponse{Error: "realtime updates are disabled"})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.FromContext(r.Context()).Warn("upgrade realtime connection", "error", err)
		return
	}

	client := h.Hub.Attach(userID, conn)
	defer h.Hub.Detach(client)

	conn.SetReadLimit(maxClientFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var req watchRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.FromContext(r.Context()).Warn("read realtime message", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		if err := h.handle(client, req); err != nil {
			client.Push(realtime.Event{Type: "error", Message: err.Error()})
		}
	}
}

func (h RealtimeHandler) handle(client *realtime.Client, req watchRequest) error {
	name, filter, fetch, err := h.aggregate(client.UserID(), req)
	if err != nil {
		return err
	}

	switch strings.ToLower(req.Action) {
	case "watch":
		return client.Watch(name, filter, fetch)
	case "unwatch":
		client.Unwatch(name)
		return nil
	default:
		return errUnknownAction
	}
}

// aggregate resolves the watch name, change filter and fetcher for a request.
func (h RealtimeHandler) aggregate(userID string, req watchRequest) (string, realtime.Filter, realtime.FetchFunc[any], error) {
	switch req.Aggregate {
	case aggregateFeed:
		filter := realtime.Filter{Tables: []string{
			realtime.TablePosts,
			realtime.TableLikes,
			realtime.TableComments,
			realtime.TableDates,
			realtime.TableProfiles,
		}}
		return aggregateFeed, filter, func(ctx context.Context) (any, error) {
			return h.Feed.LoadFeed(ctx, userID)
		}, nil
	case aggregateInvitations:
		filter := realtime.Filter{
			Tables:       []string{realtime.TableInvitations, realtime.TableChallenges},
			Participants: []string{userID},
		}
		return aggregateInvitations, filter, func(ctx context.Context) (any, error) {
			return h.Dates.ListInbox(ctx, userID)
		}, nil
	case aggregateSent:
		filter := realtime.Filter{
			Tables:       []string{realtime.TableInvitations, realtime.TableChallenges},
			Participants: []string{userID},
		}
		return aggregateSent, filter, func(ctx context.Context) (any, error) {
			return h.Dates.ListSentInvitations(ctx, userID)
		}, nil
	case aggregateFriends:
		filter := realtime.Filter{
			Tables:       []string{realtime.TableFriends},
			Participants: []string{userID},
		}
		return aggregateFriends, filter, func(ctx context.Context) (any, error) {
			return h.Social.ListFriends(ctx, userID)
		}, nil
	case aggregateThread:
		peerID := strings.TrimSpace(req.PeerID)
		if peerID == "" {
			return "", realtime.Filter{}, nil, errMissingPeer
		}
		filter := realtime.Filter{
			Tables:       []string{realtime.TableMessages},
			Participants: []string{userID, peerID},
		}
		return aggregateThread + ":" + peerID, filter, func(ctx context.Context) (any, error) {
			return h.Messages.Thread(ctx, userID, peerID)
		}, nil
	default:
		return "", realtime.Filter{}, nil, errUnknownAggregate
	}
}

var (
	errUnknownAction    = errors.New("unknown action")
	errUnknownAggregate = errors.New("unknown aggregate")
	errMissingPeer      = errors.New("peerId is required for thread")
)
