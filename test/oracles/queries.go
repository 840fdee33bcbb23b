package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type Oracle struct {
	Name string
	SQL  string
}

// All lists queries that must return no rows while the stress actors run.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_identifier_format",
			SQL: `SELECT id, posting_id, candidate_id FROM application_statuses
                  WHERE id !~ '^[0-9a-f]{32}$'
                     OR posting_id !~ '^[0-9a-f]{32}$'
                     OR candidate_id !~ '^[0-9a-f]{32}$'`,
		},
		{
			Name: "O2_known_status",
			SQL: `SELECT id, status FROM application_statuses
                  WHERE status NOT IN ('pending','reviewing','interview','accepted','rejected')`,
		},
		{
			Name: "O3_updated_not_before_created",
			SQL:  `SELECT id FROM application_statuses WHERE updated_at < created_at`,
		},
		{
			Name: "O4_candidate_info_object",
			SQL: `SELECT id FROM application_statuses
                  WHERE candidate_info IS NOT NULL AND json_typeof(candidate_info) <> 'object'`,
		},
		{
			Name: "O5_seeded_postings_only",
			SQL: `SELECT a.id, a.posting_id FROM application_statuses a
                  LEFT JOIN postings p ON p.id = a.posting_id
                  WHERE p.id IS NULL`,
		},
		{
			Name: "O6_seeded_candidates_only",
			SQL: `SELECT a.id, a.candidate_id FROM application_statuses a
                  LEFT JOIN users u ON u.id = a.candidate_id
                  WHERE u.id IS NULL`,
		},
	}
}

// Querier is the subset of *pgxpool.Pool the oracles need.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
// A query that dies mid-stream is an error, never a pass.
func Run(ctx context.Context, pool Querier) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		if rows.Next() {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
	}
	return "", "", nil
}
