package posting

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobtracker/apperr"
)

// Repository provides read access to postings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListByAuthor returns every posting authored by authorID in creation order.
func (r *Repository) ListByAuthor(ctx context.Context, authorID string) ([]Posting, error) {
	const query = `
		SELECT id, author_id, title, description, details, created_at
		FROM postings
		WHERE author_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, authorID)
	if err != nil {
		return nil, apperr.FromStore("posting: list by author", err)
	}
	defer rows.Close()

	out := make([]Posting, 0, 8)
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, apperr.FromStore("posting: scan", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromStore("posting: iterate", err)
	}
	return out, nil
}

func scanPosting(row pgx.Row) (Posting, error) {
	var (
		p       Posting
		details []byte
	)
	if err := row.Scan(&p.ID, &p.AuthorID, &p.Title, &p.Description, &details, &p.CreatedAt); err != nil {
		return Posting{}, err
	}
	if len(details) > 0 {
		p.Details = details
	}
	return p, nil
}
