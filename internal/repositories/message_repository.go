package repositories

import (
	"context"

	"github.com/dateloop/backend/internal/db"
	"github.com/dateloop/backend/internal/messages"
	"github.com/dateloop/backend/internal/models"
)

// PostgresMessageRepository persists direct messages.
type PostgresMessageRepository struct {
	pool db.Pool
}

// NewPostgresMessageRepository constructs a message repository backed by PostgreSQL.
func NewPostgresMessageRepository(pool db.Pool) *PostgresMessageRepository {
	return &PostgresMessageRepository{pool: pool}
}

// InsertMessage stores a message.
func (r *PostgresMessageRepository) InsertMessage(ctx context.Context, message models.Message) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return acquireError(err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO messages (id, sender_id, receiver_id, content, created_at, is_read)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, message.ID, message.SenderID, message.ReceiverID, message.Content, message.CreatedAt, message.IsRead)
	return translate("insert message", err)
}

// ListThread returns the messages exchanged between the two users, oldest first.
func (r *PostgresMessageRepository) ListThread(ctx context.Context, userID, peerID string) ([]models.Message, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, acquireError(err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, sender_id, receiver_id, content, created_at, is_read
        FROM messages
        WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
        ORDER BY created_at
    `, userID, peerID)
	if err != nil {
		return nil, translate("query thread", err)
	}
	defer rows.Close()

	thread := []models.Message{}
	for rows.Next() {
		var message models.Message
		if err := rows.Scan(&message.ID, &message.SenderID, &message.ReceiverID, &message.Content, &message.CreatedAt, &message.IsRead); err != nil {
			return nil, translate("scan message", err)
		}
		message.CreatedAt = message.CreatedAt.UTC()
		thread = append(thread, message)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("iterate thread", err)
	}
	return thread, nil
}

// MarkRead flags the unread messages from senderID to receiverID as read.
func (r *PostgresMessageRepository) MarkRead(ctx context.Context, receiverID, senderID string) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, acquireError(err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE messages
        SET is_read = true
        WHERE receiver_id = $1 AND sender_id = $2 AND NOT is_read
    `, receiverID, senderID)
	if err != nil {
		return 0, translate("mark messages read", err)
	}
	return tag.RowsAffected(), nil
}

// CountUnread returns how many messages addressed to receiverID are unread.
func (r *PostgresMessageRepository) CountUnread(ctx context.Context, receiverID string) (int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, acquireError(err)
	}
	defer conn.Release()

	var count int64
	if err := conn.QueryRow(ctx, `
        SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND NOT is_read
    `, receiverID).Scan(&count); err != nil {
		return 0, translate("count unread messages", err)
	}
	return int(count), nil
}

var _ messages.Store = (*PostgresMessageRepository)(nil)
