// Package messages implements direct messaging between two users.
package messages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dateloop/backend/internal/apperr"
	"github.com/dateloop/backend/internal/logging"
	"github.com/dateloop/backend/internal/models"
	"github.com/dateloop/backend/internal/realtime"
)

// Store captures message persistence.
type Store interface {
	InsertMessage(ctx context.Context, message models.Message) error
	ListThread(ctx context.Context, userID, peerID string) ([]models.Message, error)
	// MarkRead flags every unread message from senderID to receiverID as read
	// and returns how many rows changed.
	MarkRead(ctx context.Context, receiverID, senderID string) (int64, error)
	CountUnread(ctx context.Context, receiverID string) (int, error)
}

// Service implements the messaging operations.
type Service struct {
	Store     Store
	Publisher realtime.Publisher
	NowFunc   func() time.Time
}

// Send appends a message from senderID to receiverID.
func (s Service) Send(ctx context.Context, senderID, receiverID, content string) (models.Message, error) {
	receiverID = strings.TrimSpace(receiverID)
	content = strings.TrimSpace(content)

	switch {
	case receiverID == "":
		return models.Message{}, apperr.Invalid("receiverId", "receiver is required")
	case receiverID == senderID:
		return models.Message{}, apperr.Invalid("receiverId", "cannot message yourself")
	case content == "":
		return models.Message{}, apperr.Invalid("content", "EmptyContent")
	}

	message := models.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  s.now(),
	}
	if err := s.Store.InsertMessage(ctx, message); err != nil {
		return models.Message{}, fmt.Errorf("send message: %w", err)
	}

	s.notify(ctx, realtime.OpInsert, message.ID, senderID, receiverID)
	return message, nil
}

// Thread returns the conversation between viewerID and peerID, oldest first,
// and marks the messages the viewer received as read.
func (s Service) Thread(ctx context.Context, viewerID, peerID string) ([]models.Message, error) {
	if strings.TrimSpace(peerID) == "" {
		return nil, apperr.Invalid("peerId", "peer is required")
	}

	thread, err := s.Store.ListThread(ctx, viewerID, peerID)
	if err != nil {
		return nil, fmt.Errorf("list thread: %w", err)
	}
	if thread == nil {
		return []models.Message{}, nil
	}

	unread := false
	for _, message := range thread {
		if message.ReceiverID == viewerID && !message.IsRead {
			unread = true
			break
		}
	}
	if !unread {
		return thread, nil
	}

	// The thread is already loaded; a failed mark leaves the messages unread
	// for the next read instead of failing this one.
	marked, err := s.Store.MarkRead(ctx, viewerID, peerID)
	if err != nil {
		logging.FromContext(ctx).Warn("mark thread read", "viewer_id", viewerID, "peer_id", peerID, "error", err)
		return thread, nil
	}
	for i := range thread {
		if thread[i].ReceiverID == viewerID {
			thread[i].IsRead = true
		}
	}
	if marked > 0 {
		s.notify(ctx, realtime.OpUpdate, "", viewerID, peerID)
	}
	return thread, nil
}

// UnreadCount returns how many messages addressed to viewerID are still unread.
func (s Service) UnreadCount(ctx context.Context, viewerID string) (int, error) {
	count, err := s.Store.CountUnread(ctx, viewerID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (s Service) notify(ctx context.Context, op realtime.Op, rowID, userID, peerID string) {
	realtime.Notify(ctx, s.Publisher, realtime.Change{
		Table:   realtime.TableMessages,
		Op:      op,
		RowID:   rowID,
		UserIDs: []string{userID, peerID},
	})
}

func (s Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now().UTC()
}
