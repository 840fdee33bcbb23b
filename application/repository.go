package application

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobtracker/apperr"
	"jobtracker/ident"
)

var (
	// ErrNotFound signals no record has the requested id.
	ErrNotFound = errors.New("application: not found")
	// ErrNotAcknowledged signals the store did not confirm a write.
	ErrNotAcknowledged = errors.New("application: write not acknowledged")
)

// Repository is the record store used by Service.
type Repository interface {
	FindByPostingAndCandidate(ctx context.Context, postingID, candidateID string) ([]Record, error)
	FindByPosting(ctx context.Context, postingID string) ([]Record, error)
	CountByPosting(ctx context.Context, postingID string) (int, error)
	FindByID(ctx context.Context, id string) (Record, error)
	Insert(ctx context.Context, rec Record) (Record, error)
	UpdateByID(ctx context.Context, id string, fields UpdateFields) error
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool  *pgxpool.Pool
	newID func() string
}

// NewRepository creates a PostgreSQL-backed record store.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool, newID: ident.New}
}

const selectColumns = `id, posting_id, candidate_id, status, candidate_info, created_at, updated_at`

func (r *PGRepository) FindByPostingAndCandidate(ctx context.Context, postingID, candidateID string) ([]Record, error) {
	const query = `
		SELECT ` + selectColumns + `
		FROM application_statuses
		WHERE posting_id = $1 AND candidate_id = $2
		ORDER BY created_at ASC, id ASC
	`
	return r.list(ctx, "application: find by posting and candidate", query, postingID, candidateID)
}

func (r *PGRepository) FindByPosting(ctx context.Context, postingID string) ([]Record, error) {
	const query = `
		SELECT ` + selectColumns + `
		FROM application_statuses
		WHERE posting_id = $1
		ORDER BY created_at ASC, id ASC
	`
	return r.list(ctx, "application: find by posting", query, postingID)
}

// FindByPostings returns the records of every given posting in one query,
// insertion-ordered within each posting. Callers regroup in memory.
func (r *PGRepository) FindByPostings(ctx context.Context, postingIDs []string) ([]Record, error) {
	if len(postingIDs) == 0 {
		return []Record{}, nil
	}
	const query = `
		SELECT ` + selectColumns + `
		FROM application_statuses
		WHERE posting_id = ANY($1)
		ORDER BY posting_id ASC, created_at ASC, id ASC
	`
	return r.list(ctx, "application: find by postings", query, postingIDs)
}

func (r *PGRepository) CountByPosting(ctx context.Context, postingID string) (int, error) {
	const query = `SELECT COUNT(*) FROM application_statuses WHERE posting_id = $1`

	var total int
	if err := r.pool.QueryRow(ctx, query, postingID).Scan(&total); err != nil {
		return 0, apperr.FromStore("application: count by posting", err)
	}
	return total, nil
}

// CountByPostings counts records for many postings in one query. Postings
// without records map to zero.
func (r *PGRepository) CountByPostings(ctx context.Context, postingIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(postingIDs))
	for _, id := range postingIDs {
		counts[id] = 0
	}
	if len(postingIDs) == 0 {
		return counts, nil
	}

	const query = `
		SELECT posting_id, COUNT(*)
		FROM application_statuses
		WHERE posting_id = ANY($1)
		GROUP BY posting_id
	`
	rows, err := r.pool.Query(ctx, query, postingIDs)
	if err != nil {
		return nil, apperr.FromStore("application: count by postings", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			postingID string
			total     int
		)
		if err := rows.Scan(&postingID, &total); err != nil {
			return nil, apperr.FromStore("application: scan count", err)
		}
		counts[postingID] = total
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromStore("application: iterate counts", err)
	}
	return counts, nil
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (Record, error) {
	const query = `
		SELECT ` + selectColumns + `
		FROM application_statuses
		WHERE id = $1
	`
	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, apperr.New(apperr.CodeNotFound, "application: find by id", ErrNotFound)
		}
		return Record{}, apperr.FromStore("application: find by id", err)
	}
	return rec, nil
}

// Insert stores rec under a freshly assigned id and returns the stored row.
func (r *PGRepository) Insert(ctx context.Context, rec Record) (Record, error) {
	const query = `
		INSERT INTO application_statuses (id, posting_id, candidate_id, status, candidate_info)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + selectColumns

	row := r.pool.QueryRow(ctx, query,
		r.newID(),
		rec.PostingID,
		rec.CandidateID,
		rec.Status,
		jsonParam(rec.CandidateInfo),
	)
	created, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, apperr.New(apperr.CodePersistence, "application: insert", ErrNotAcknowledged)
		}
		return Record{}, apperr.FromStore("application: insert", err)
	}
	return created, nil
}

// UpdateByID sets status and candidate info. Matching zero rows is not an error.
func (r *PGRepository) UpdateByID(ctx context.Context, id string, fields UpdateFields) error {
	const query = `
		UPDATE application_statuses
		SET status = $2,
		    candidate_info = $3,
		    updated_at = clock_timestamp()
		WHERE id = $1
	`
	if _, err := r.pool.Exec(ctx, query, id, fields.Status, jsonParam(fields.CandidateInfo)); err != nil {
		return apperr.FromStore("application: update by id", err)
	}
	return nil
}

func (r *PGRepository) list(ctx context.Context, op, query string, args ...any) ([]Record, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, apperr.FromStore(op, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromStore(op, err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec  Record
		info []byte
	)
	err := row.Scan(
		&rec.ID,
		&rec.PostingID,
		&rec.CandidateID,
		&rec.Status,
		&info,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return Record{}, err
	}
	if info != nil {
		rec.CandidateInfo = info
	}
	return rec, nil
}

// jsonParam passes raw JSON through verbatim; absent info is stored as NULL.
func jsonParam(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
