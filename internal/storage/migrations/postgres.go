package migrations

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// PostgresDB is the subset of *pgxpool.Pool the migrator needs.
type PostgresDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const postgresLedger = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    name       TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL
)`

// ApplyPostgres runs every embedded PostgreSQL migration not yet recorded in
// schema_migrations. Each file runs in its own transaction together with its
// ledger row. Returns the names applied by this call.
func ApplyPostgres(ctx context.Context, db PostgresDB, log zerolog.Logger) ([]string, error) {
	all, err := Postgres()
	if err != nil {
		return nil, err
	}

	if err := execTx(ctx, db, postgresLedger, ""); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	applied, err := appliedPostgres(ctx, db)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, m := range pending(all, applied) {
		if err := execTx(ctx, db, m.SQL, m.Name); err != nil {
			return names, fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
		log.Info().Str("db", "postgres").Str("file", m.Name).Msg("applied migration")
		names = append(names, m.Name)
	}
	return names, nil
}

func appliedPostgres(ctx context.Context, db PostgresDB) (map[string]bool, error) {
	rows, err := db.Query(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

// execTx runs script and, when name is set, records it in schema_migrations,
// in one transaction. pgx sends an argument-free script through the simple
// protocol, so multi-statement files are accepted.
func execTx(ctx context.Context, db PostgresDB, script, name string) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, script); err != nil {
		return err
	}
	if name != "" {
		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (name, applied_at) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
			name, time.Now().UTC(),
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
