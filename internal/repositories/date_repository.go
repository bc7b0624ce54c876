package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dateloop/backend/internal/dates"
	"github.com/dateloop/backend/internal/db"
	"github.com/dateloop/backend/internal/models"
)

const (
	invitationColumns = `id, sender_id, receiver_id, date_time, location, notes, status, created_at, responded_at`
	challengeColumns  = `id, date_id, title, description, is_completed, created_at`
)

// PostgresDateRepository persists date invitations and their challenges.
type PostgresDateRepository struct {
	pool db.Pool
}

// NewPostgresDateRepository constructs a date repository backed by PostgreSQL.
func NewPostgresDateRepository(pool db.Pool) *PostgresDateRepository {
	return &PostgresDateRepository{pool: pool}
}

// InsertInvitation stores a new invitation. Unknown participants report ErrNotFound.
func (r *PostgresDateRepository) InsertInvitation(ctx context.Context, invitation models.DateInvitation) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return acquireError(err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO date_invitations (id, sender_id, receiver_id, date_time, location, notes, status, created_at, responded_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, invitation.ID, invitation.SenderID, invitation.ReceiverID, invitation.DateTime, invitation.Location,
		invitation.Notes, invitation.Status, invitation.CreatedAt, invitation.RespondedAt)
	return translate("insert invitation", err)
}

// FindInvitation loads an invitation by id.
func (r *PostgresDateRepository) FindInvitation(ctx context.Context, invitationID string) (models.DateInvitation, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.DateInvitation{}, acquireError(err)
	}
	defer conn.Release()

	invitation, err := scanInvitation(conn.QueryRow(ctx, `SELECT `+invitationColumns+` FROM date_invitations WHERE id = $1`, invitationID))
	if err != nil {
		return models.DateInvitation{}, translate("select invitation", err)
	}
	return invitation, nil
}

// ResolveInvitation moves a pending invitation to status. Invitations that
// are no longer pending report ErrNotFound.
func (r *PostgresDateRepository) ResolveInvitation(ctx context.Context, invitationID, status string, at time.Time) (models.DateInvitation, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.DateInvitation{}, acquireError(err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        UPDATE date_invitations
        SET status = $2, responded_at = $3
        WHERE id = $1 AND status = 'pending'
        RETURNING `+invitationColumns, invitationID, status, at)
	invitation, err := scanInvitation(row)
	if err != nil {
		return models.DateInvitation{}, translate("resolve invitation", err)
	}
	return invitation, nil
}

// ListByReceiver returns invitations addressed to receiverID, soonest date first.
func (r *PostgresDateRepository) ListByReceiver(ctx context.Context, receiverID string) ([]models.DateInvitation, error) {
	return r.queryInvitations(ctx, "list received invitations", `
        SELECT `+invitationColumns+`
        FROM date_invitations
        WHERE receiver_id = $1
        ORDER BY date_time, created_at
    `, receiverID)
}

// ListBySender returns invitations sent by senderID, soonest date first.
func (r *PostgresDateRepository) ListBySender(ctx context.Context, senderID string) ([]models.DateInvitation, error) {
	return r.queryInvitations(ctx, "list sent invitations", `
        SELECT `+invitationColumns+`
        FROM date_invitations
        WHERE sender_id = $1
        ORDER BY date_time, created_at
    `, senderID)
}

// InsertChallenge attaches a challenge to an invitation.
func (r *PostgresDateRepository) InsertChallenge(ctx context.Context, challenge models.Challenge) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return acquireError(err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO challenges (id, date_id, title, description, is_completed, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, challenge.ID, challenge.DateID, challenge.Title, challenge.Description, challenge.IsCompleted, challenge.CreatedAt)
	return translate("insert challenge", err)
}

// FindChallenge loads a challenge by id.
func (r *PostgresDateRepository) FindChallenge(ctx context.Context, challengeID string) (models.Challenge, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Challenge{}, acquireError(err)
	}
	defer conn.Release()

	challenge, err := scanChallenge(conn.QueryRow(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = $1`, challengeID))
	if err != nil {
		return models.Challenge{}, translate("select challenge", err)
	}
	return challenge, nil
}

// ListChallenges returns the challenges of an invitation, oldest first.
func (r *PostgresDateRepository) ListChallenges(ctx context.Context, dateID string) ([]models.Challenge, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, acquireError(err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+challengeColumns+`
        FROM challenges
        WHERE date_id = $1
        ORDER BY created_at
    `, dateID)
	if err != nil {
		return nil, translate("list challenges", err)
	}
	defer rows.Close()

	challenges := []models.Challenge{}
	for rows.Next() {
		challenge, err := scanChallenge(rows)
		if err != nil {
			return nil, translate("scan challenge", err)
		}
		challenges = append(challenges, challenge)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("iterate challenges", err)
	}
	return challenges, nil
}

// ToggleChallenge flips is_completed in a single statement and returns the new row.
func (r *PostgresDateRepository) ToggleChallenge(ctx context.Context, challengeID string) (models.Challenge, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Challenge{}, acquireError(err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        UPDATE challenges
        SET is_completed = NOT is_completed
        WHERE id = $1
        RETURNING `+challengeColumns, challengeID)
	challenge, err := scanChallenge(row)
	if err != nil {
		return models.Challenge{}, translate("toggle challenge", err)
	}
	return challenge, nil
}

func (r *PostgresDateRepository) queryInvitations(ctx context.Context, op, query string, args ...any) ([]models.DateInvitation, error) {
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

	invitations := []models.DateInvitation{}
	for rows.Next() {
		invitation, err := scanInvitation(rows)
		if err != nil {
			return nil, translate(op, err)
		}
		invitations = append(invitations, invitation)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(op, err)
	}
	return invitations, nil
}

func scanInvitation(row pgx.Row) (models.DateInvitation, error) {
	var (
		invitation  models.DateInvitation
		respondedAt *time.Time
	)
	if err := row.Scan(
		&invitation.ID, &invitation.SenderID, &invitation.ReceiverID, &invitation.DateTime, &invitation.Location,
		&invitation.Notes, &invitation.Status, &invitation.CreatedAt, &respondedAt,
	); err != nil {
		return models.DateInvitation{}, err
	}
	invitation.DateTime = invitation.DateTime.UTC()
	invitation.CreatedAt = invitation.CreatedAt.UTC()
	if respondedAt != nil {
		t := respondedAt.UTC()
		invitation.RespondedAt = &t
	}
	return invitation, nil
}

func scanChallenge(row pgx.Row) (models.Challenge, error) {
	var challenge models.Challenge
	if err := row.Scan(&challenge.ID, &challenge.DateID, &challenge.Title, &challenge.Description, &challenge.IsCompleted, &challenge.CreatedAt); err != nil {
		return models.Challenge{}, err
	}
	challenge.CreatedAt = challenge.CreatedAt.UTC()
	return challenge, nil
}

var _ dates.Store = (*PostgresDateRepository)(nil)
