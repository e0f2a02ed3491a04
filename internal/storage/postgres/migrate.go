package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrator applies the embedded warden_tuples/warden_string_uuid
// schema. Unlike the teacher's pkg/migrator, it never compiles a
// permission schema into generated SQL functions: warden evaluates
// permissions in the Go core, so migration here only creates the
// tables core/eval's collaborators read and write.
type Migrator struct {
	pool *pgxpool.Pool
}

// NewMigrator wraps a pool for migration use.
func NewMigrator(pool *pgxpool.Pool) *Migrator {
	return &Migrator{pool: pool}
}

// Migrate applies every embedded migration not already recorded in
// warden_migrations, in filename order. It is idempotent: re-running
// it after all migrations have applied is a no-op.
func (m *Migrator) Migrate(ctx context.Context) error {
	if _, err := m.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS warden_migrations (
			version     TEXT PRIMARY KEY,
			applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("postgres: creating migrations table: %w", err)
	}

	names, err := migrationNames()
	if err != nil {
		return err
	}

	for _, name := range names {
		applied, err := m.isApplied(ctx, name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		contents, err := migrationFiles.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("postgres: reading migration %s: %w", name, err)
		}

		tx, err := m.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("postgres: beginning migration %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, string(contents)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("postgres: applying migration %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO warden_migrations (version) VALUES ($1)`, name); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("postgres: recording migration %s: %w", name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("postgres: committing migration %s: %w", name, err)
		}
	}

	return nil
}

// Status reports whether warden's tables exist, for the doctor checks
// behind `warden status`.
type Status struct {
	TuplesTableExists     bool
	StringUUIDTableExists bool
	AppliedMigrations     []string
}

// Status inspects the database without applying anything.
func (m *Migrator) Status(ctx context.Context) (Status, error) {
	var s Status

	if err := m.pool.QueryRow(ctx, existsQuery, "warden_tuples").Scan(&s.TuplesTableExists); err != nil {
		return s, fmt.Errorf("postgres: checking warden_tuples: %w", err)
	}
	if err := m.pool.QueryRow(ctx, existsQuery, "warden_string_uuid").Scan(&s.StringUUIDTableExists); err != nil {
		return s, fmt.Errorf("postgres: checking warden_string_uuid: %w", err)
	}

	var migrationsTableExists bool
	if err := m.pool.QueryRow(ctx, existsQuery, "warden_migrations").Scan(&migrationsTableExists); err != nil {
		return s, fmt.Errorf("postgres: checking warden_migrations: %w", err)
	}
	if !migrationsTableExists {
		return s, nil
	}

	rows, err := m.pool.Query(ctx, `SELECT version FROM warden_migrations ORDER BY version`)
	if err != nil {
		return s, fmt.Errorf("postgres: listing applied migrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return s, err
		}
		s.AppliedMigrations = append(s.AppliedMigrations, v)
	}
	return s, rows.Err()
}

const existsQuery = `
	SELECT EXISTS (
		SELECT 1 FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relname = $1
		AND n.nspname = current_schema()
	)
`

func (m *Migrator) isApplied(ctx context.Context, version string) (bool, error) {
	var applied bool
	err := m.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM warden_migrations WHERE version = $1)`, version).Scan(&applied)
	if err != nil {
		return false, fmt.Errorf("postgres: checking migration %s: %w", version, err)
	}
	return applied, nil
}

func migrationNames() ([]string, error) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("postgres: listing embedded migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
