package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dateloop/backend/internal/db"
	"github.com/dateloop/backend/internal/models"
	"github.com/dateloop/backend/internal/profiles"
)

const profileColumns = `id, username, full_name, bio, avatar_url, created_at, updated_at`

// PostgresProfileRepository persists public profiles.
type PostgresProfileRepository struct {
	pool db.Pool
}

// NewPostgresProfileRepository constructs a profile repository backed by PostgreSQL.
func NewPostgresProfileRepository(pool db.Pool) *PostgresProfileRepository {
	return &PostgresProfileRepository{pool: pool}
}

// FindProfile loads the profile owned by id.
func (r *PostgresProfileRepository) FindProfile(ctx context.Context, id string) (models.Profile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Profile{}, acquireError(err)
	}
	defer conn.Release()

	profile, err := scanProfile(conn.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if err != nil {
		return models.Profile{}, translate("select profile", err)
	}
	return profile, nil
}

// UpsertProfile creates the profile or updates its editable fields. The
// avatar and creation time of an existing profile are preserved.
func (r *PostgresProfileRepository) UpsertProfile(ctx context.Context, profile models.Profile) (models.Profile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Profile{}, acquireError(err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        INSERT INTO profiles (id, username, full_name, bio, avatar_url, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO UPDATE
        SET username = EXCLUDED.username,
            full_name = EXCLUDED.full_name,
            bio = EXCLUDED.bio,
            updated_at = EXCLUDED.updated_at
        RETURNING `+profileColumns,
		profile.ID, profile.Username, profile.FullName, profile.Bio, profile.AvatarURL, profile.CreatedAt, profile.UpdatedAt)

	saved, err := scanProfile(row)
	if err != nil {
		return models.Profile{}, translate("upsert profile", err)
	}
	return saved, nil
}

// SearchProfiles returns up to limit profiles whose username starts with prefix, excluding excludeID.
func (r *PostgresProfileRepository) SearchProfiles(ctx context.Context, prefix, excludeID string, limit int) ([]models.Profile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, acquireError(err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+profileColumns+`
        FROM profiles
        WHERE username LIKE $1 || '%' AND ($2 = '' OR id::TEXT <> $2)
        ORDER BY username
        LIMIT $3
    `, escapeLike(prefix), excludeID, limit)
	if err != nil {
		return nil, translate("search profiles", err)
	}
	defer rows.Close()

	results := []models.Profile{}
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, translate("scan profile", err)
		}
		results = append(results, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("iterate profiles", err)
	}
	return results, nil
}

// SetAvatarURL records the uploaded avatar address for the profile.
func (r *PostgresProfileRepository) SetAvatarURL(ctx context.Context, id, url string, at time.Time) (models.Profile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Profile{}, acquireError(err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        UPDATE profiles
        SET avatar_url = $2, updated_at = $3
        WHERE id = $1
        RETURNING `+profileColumns, id, url, at)
	profile, err := scanProfile(row)
	if err != nil {
		return models.Profile{}, translate("update avatar", err)
	}
	return profile, nil
}

func scanProfile(row pgx.Row) (models.Profile, error) {
	var profile models.Profile
	if err := row.Scan(&profile.ID, &profile.Username, &profile.FullName, &profile.Bio, &profile.AvatarURL, &profile.CreatedAt, &profile.UpdatedAt); err != nil {
		return models.Profile{}, err
	}
	profile.CreatedAt = profile.CreatedAt.UTC()
	profile.UpdatedAt = profile.UpdatedAt.UTC()
	return profile, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

var _ profiles.Store = (*PostgresProfileRepository)(nil)
