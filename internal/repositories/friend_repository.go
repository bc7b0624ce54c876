package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dateloop/backend/internal/db"
	"github.com/dateloop/backend/internal/models"
	"github.com/dateloop/backend/internal/social"
)

const friendEdgeColumns = `id, user_id, friend_id, status, created_at, responded_at`

// PostgresFriendRepository persists directed friend edges.
type PostgresFriendRepository struct {
	pool db.Pool
}

// NewPostgresFriendRepository constructs a friend repository backed by PostgreSQL.
func NewPostgresFriendRepository(pool db.Pool) *PostgresFriendRepository {
	return &PostgresFriendRepository{pool: pool}
}

// InsertEdge stores a new edge. A second active edge for the same pair is rejected with ErrConflict.
func (r *PostgresFriendRepository) InsertEdge(ctx context.Context, edge models.FriendEdge) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return acquireError(err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO friends (id, user_id, friend_id, status, created_at, responded_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, edge.ID, edge.UserID, edge.FriendID, edge.Status, edge.CreatedAt, edge.RespondedAt)
	return translate("insert friend edge", err)
}

// FindEdge loads a single edge by id.
func (r *PostgresFriendRepository) FindEdge(ctx context.Context, edgeID string) (models.FriendEdge, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.FriendEdge{}, acquireError(err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+friendEdgeColumns+` FROM friends WHERE id = $1`, edgeID)
	edge, err := scanFriendEdge(row)
	if err != nil {
		return models.FriendEdge{}, translate("select friend edge", err)
	}
	return edge, nil
}

// EdgesBetween returns every edge linking the two users in either direction.
func (r *PostgresFriendRepository) EdgesBetween(ctx context.Context, userID, otherID string) ([]models.FriendEdge, error) {
	return r.queryEdges(ctx, "select friend pair", `
        SELECT `+friendEdgeColumns+`
        FROM friends
        WHERE (user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1)
        ORDER BY created_at
    `, userID, otherID)
}

// EdgesForUser returns edges with the given status where userID is either side.
func (r *PostgresFriendRepository) EdgesForUser(ctx context.Context, userID, status string) ([]models.FriendEdge, error) {
	return r.queryEdges(ctx, "select friend edges", `
        SELECT `+friendEdgeColumns+`
        FROM friends
        WHERE (user_id = $1 OR friend_id = $1) AND status = $2
        ORDER BY created_at DESC
    `, userID, status)
}

// ResolveEdge moves a pending edge to status. Edges that are no longer pending report ErrNotFound.
func (r *PostgresFriendRepository) ResolveEdge(ctx context.Context, edgeID, status string, at time.Time) (models.FriendEdge, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.FriendEdge{}, acquireError(err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        UPDATE friends
        SET status = $2, responded_at = $3
        WHERE id = $1 AND status = 'pending'
        RETURNING `+friendEdgeColumns, edgeID, status, at)
	edge, err := scanFriendEdge(row)
	if err != nil {
		return models.FriendEdge{}, translate("resolve friend edge", err)
	}
	return edge, nil
}

// DeleteEdges removes the listed edges. Missing ids are ignored.
func (r *PostgresFriendRepository) DeleteEdges(ctx context.Context, edgeIDs []string) error {
	if len(edgeIDs) == 0 {
		return nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return acquireError(err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `DELETE FROM friends WHERE id = ANY($1)`, edgeIDs)
	return translate("delete friend edges", err)
}

// ProfilesByID loads the profiles with the given ids, ordered by username.
func (r *PostgresFriendRepository) ProfilesByID(ctx context.Context, ids []string) ([]models.Profile, error) {
	if len(ids) == 0 {
		return []models.Profile{}, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, acquireError(err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+profileColumns+`
        FROM profiles
        WHERE id = ANY($1)
        ORDER BY username
    `, ids)
	if err != nil {
		return nil, translate("query profiles", err)
	}
	defer rows.Close()

	profiles := []models.Profile{}
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, translate("scan profile", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("iterate profiles", err)
	}
	return profiles, nil
}

func (r *PostgresFriendRepository) queryEdges(ctx context.Context, op, query string, args ...any) ([]models.FriendEdge, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, acquireError(err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(op, err)
	}
	defer rows.Close()

	edges := []models.FriendEdge{}
	for rows.Next() {
		edge, err := scanFriendEdge(rows)
		if err != nil {
			return nil, translate(op, err)
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(op, err)
	}
	return edges, nil
}

func scanFriendEdge(row pgx.Row) (models.FriendEdge, error) {
	var (
		edge        models.FriendEdge
		respondedAt *time.Time
	)
	if err := row.Scan(&edge.ID, &edge.UserID, &edge.FriendID, &edge.Status, &edge.CreatedAt, &respondedAt); err != nil {
		return models.FriendEdge{}, err
	}
	edge.CreatedAt = edge.CreatedAt.UTC()
	if respondedAt != nil {
		t := respondedAt.UTC()
		edge.RespondedAt = &t
	}
	return edge, nil
}

var _ social.Store = (*PostgresFriendRepository)(nil)
