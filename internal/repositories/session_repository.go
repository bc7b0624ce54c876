package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dateloop/backend/internal/auth"
	"github.com/dateloop/backend/internal/db"
	"github.com/dateloop/backend/internal/logging"
)

// PostgresSessionStore keeps refresh sessions in the sessions table. Each
// refresh token can be deleted exactly once, so two concurrent refreshes
// with the same token cannot both rotate it.
type PostgresSessionStore struct {
	pool db.Pool
}

var _ auth.SessionStore = (*PostgresSessionStore)(nil)

func NewPostgresSessionStore(pool db.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

// Save inserts the session and drops the user's expired sessions in the same
// round trip. Refresh tokens are random, so a collision is reported as a conflict.
func (s *PostgresSessionStore) Save(ctx context.Context, session auth.Session) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return acquireError(err)
	}
	defer conn.Release()

	expiresAt := session.ExpiresAt.UTC()

	batch := &pgx.Batch{}
	batch.Queue(`
        INSERT INTO sessions (refresh_token, user_id, expires_at)
        VALUES ($1, $2, $3)
    `, session.RefreshToken, session.UserID, expiresAt)
	batch.Queue(`
        DELETE FROM sessions
        WHERE user_id = $1 AND refresh_token <> $2 AND expires_at < now()
    `, session.UserID, session.RefreshToken)

	results := conn.SendBatch(ctx, batch)
	if _, err := results.Exec(); err != nil {
		_ = results.Close()
		return translate("insert session", err)
	}
	pruned, err := results.Exec()
	if err != nil {
		_ = results.Close()
		return translate("prune sessions", err)
	}
	if err := results.Close(); err != nil {
		return translate("save session", err)
	}

	if n := pruned.RowsAffected(); n > 0 {
		logging.FromContext(ctx).Debug("pruned expired sessions", "user_id", session.UserID, "count", n)
	}
	return nil
}

// Find loads a session by its refresh token. Expired sessions are returned
// as found; the manager decides what expiry means.
func (s *PostgresSessionStore) Find(ctx context.Context, refreshToken string) (auth.Session, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return auth.Session{}, acquireError(err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT refresh_token, user_id, expires_at
        FROM sessions
        WHERE refresh_token = $1
    `, refreshToken)
	if err != nil {
		return auth.Session{}, translate("select session", err)
	}

	session, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[sessionRow])
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return auth.Session{}, auth.ErrSessionNotFound
	case err != nil:
		return auth.Session{}, translate("scan session", err)
	}
	return session.toSession(), nil
}

// Delete consumes a refresh token. It returns ErrSessionNotFound when the
// token was never issued or has already been consumed.
func (s *PostgresSessionStore) Delete(ctx context.Context, refreshToken string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return acquireError(err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM sessions WHERE refresh_token = $1`, refreshToken)
	if err != nil {
		return translate("delete session", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete session: %w", auth.ErrSessionNotFound)
	}
	return nil
}

type sessionRow struct {
	RefreshToken string    `db:"refresh_token"`
	UserID       string    `db:"user_id"`
	ExpiresAt    time.Time `db:"expires_at"`
}

func (r sessionRow) toSession() auth.Session {
	return auth.Session{
		RefreshToken: r.RefreshToken,
		UserID:       r.UserID,
		ExpiresAt:    r.ExpiresAt.UTC(),
	}
}
