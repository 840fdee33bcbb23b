package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Harness owns the database used by one stress run: where it came from, the
// migrated pool, and how to tear both down.
type Harness struct {
	container *PGContainer
	pool      *pgxpool.Pool
	dsn       string
	teardown  func(context.Context) error
}

// NewHarness resolves a database in order of preference: overrideDSN,
// STRESS_TEST_PG_DSN, a Postgres 16 container when Docker answers, then a
// local server on 127.0.0.1:5432. Shared databases get an isolated schema.
func NewHarness(ctx context.Context, overrideDSN string) (*Harness, error) {
	h := &Harness{container: &PGContainer{}}
	shared := false

	switch {
	case overrideDSN != "":
		h.dsn, shared = overrideDSN, true
	case os.Getenv("STRESS_TEST_PG_DSN") != "":
		h.dsn, shared = os.Getenv("STRESS_TEST_PG_DSN"), true
	case dockerAvailable(ctx):
		c, dsn, err := StartPostgres16(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("start postgres container: %w", err)
		}
		h.container, h.dsn = c, dsn
	default:
		dsn, err := InitLocalDatabase(ctx)
		if err != nil {
			return nil, fmt.Errorf("init local database: %w", err)
		}
		h.dsn = dsn
	}

	pool, teardown, err := ApplyMigrations(ctx, h.dsn, shared)
	if err != nil {
		_ = h.container.Terminate(ctx)
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	h.pool, h.teardown = pool, teardown
	return h, nil
}

// Pool exposes the migrated pgx pool.
func (h *Harness) Pool() *pgxpool.Pool {
	return h.pool
}

// DSN returns the connection string for direct connections.
func (h *Harness) DSN() string {
	return h.dsn
}

// Close tears down resources. Errors are returned only from schema teardown.
func (h *Harness) Close(ctx context.Context) error {
	if h.pool != nil {
		h.pool.Close()
	}
	var err error
	if h.teardown != nil {
		err = h.teardown(ctx)
	}
	_ = h.container.Terminate(ctx)
	return err
}

// Reset truncates mutable tables to provide a clean slate for the next epoch.
func (h *Harness) Reset(ctx context.Context) error {
	tables := []string{
		"application_statuses",
		"postings",
		"users",
	}

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("reset begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, tbl := range tables {
		if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+tbl); err != nil {
			return fmt.Errorf("truncate %s: %w", tbl, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("reset commit: %w", err)
	}
	return nil
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}
