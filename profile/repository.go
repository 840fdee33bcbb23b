package profile

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobtracker/apperr"
)

// Repository provides read access to user profiles.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByIDs resolves many profiles in one round trip. Ids with no matching
// user are absent from the result.
func (r *Repository) GetByIDs(ctx context.Context, ids []string) (map[string]Profile, error) {
	out := make(map[string]Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	const query = `
		SELECT id, email, full_name, profile, created_at
		FROM users
		WHERE id = ANY($1)
	`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, apperr.FromStore("profile: get by ids", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, apperr.FromStore("profile: scan", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromStore("profile: iterate", err)
	}
	return out, nil
}

func scanProfile(row pgx.Row) (Profile, error) {
	var (
		p      Profile
		fields []byte
	)
	if err := row.Scan(&p.ID, &p.Email, &p.FullName, &fields, &p.CreatedAt); err != nil {
		return Profile{}, err
	}
	if len(fields) > 0 {
		p.Fields = fields
	}
	return p, nil
}
