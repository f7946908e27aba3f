package database

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"

	"github.com/jackc/pgx/v5"
)

// migrationLockID keys the advisory lock that serialises migrations across
// replicas starting at the same time.
const migrationLockID int64 = 0x636f6e74616374

// RunMigrations applies every *.up.sql file at the root of migrations that is
// not yet recorded in schema_migrations, in file name order. Each file runs in
// its own transaction together with its bookkeeping row. Connection errors are
// retried with backoff; SQL errors are returned immediately.
func RunMigrations(ctx context.Context, pool DBTX, migrations fs.FS, logger *slog.Logger) error {
	return startupRetry.do(ctx, "run migrations", logger, isConnectionError, func(ctx context.Context) error {
		return migrate(ctx, pool, migrations, logger)
	})
}

func migrate(ctx context.Context, pool DBTX, migrations fs.FS, logger *slog.Logger) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	files, err := fs.Glob(migrations, "*.up.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	slices.Sort(files)

	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return err
	}

	for _, name := range files {
		if applied[name] {
			continue
		}
		content, err := fs.ReadFile(migrations, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		ran, err := apply(ctx, pool, name, string(content))
		if err != nil {
			return err
		}
		if ran {
			logger.Info("migration applied", slog.String("version", name))
		}
	}
	return nil
}

func appliedVersions(ctx context.Context, pool DBTX) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}

	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

// apply runs one migration under the advisory lock. It reports false when
// another replica applied it while this one waited for the lock.
func apply(ctx context.Context, pool DBTX, name, sql string) (ran bool, err error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx for migration %s: %w", name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockID); err != nil {
		return false, fmt.Errorf("lock migrations: %w", err)
	}

	var done bool
	err = tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, name).Scan(&done)
	if err != nil {
		return false, fmt.Errorf("check migration %s: %w", name, err)
	}
	if done {
		return false, tx.Commit(ctx)
	}

	if _, err = tx.Exec(ctx, sql); err != nil {
		return false, fmt.Errorf("execute migration %s: %w", name, err)
	}
	if _, err = tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
		return false, fmt.Errorf("record migration %s: %w", name, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit migration %s: %w", name, err)
	}
	return true, nil
}
