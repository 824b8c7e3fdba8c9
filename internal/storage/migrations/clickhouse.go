package migrations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/rs/zerolog"
)

// ClickhouseDB is the subset of driver.Conn the migrator needs.
type ClickhouseDB interface {
	Exec(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
}

const clickhouseLedger = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    name       String,
    applied_at DateTime64(3)
) ENGINE = ReplacingMergeTree(applied_at)
ORDER BY name`

// ApplyClickhouse runs every embedded ClickHouse migration not yet recorded
// in schema_migrations. ClickHouse has no transactional DDL, so a file that
// fails halfway is retried in full on the next run; files must stay
// idempotent (CREATE ... IF NOT EXISTS).
func ApplyClickhouse(ctx context.Context, db ClickhouseDB, log zerolog.Logger) ([]string, error) {
	all, err := Clickhouse()
	if err != nil {
		return nil, err
	}
	if err := db.Exec(ctx, clickhouseLedger); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	applied, err := appliedClickhouse(ctx, db)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, m := range pending(all, applied) {
		if err := validateNoSemicolonInStrings(m.SQL); err != nil {
			return names, fmt.Errorf("validate migration %s: %w", m.Name, err)
		}
		// The native protocol executes one statement per Exec.
		for _, stmt := range splitStatements(m.SQL) {
			if err := db.Exec(ctx, stmt); err != nil {
				return names, fmt.Errorf("apply migration %s: %w", m.Name, err)
			}
		}
		if err := db.Exec(ctx, `INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`, m.Name, time.Now().UTC()); err != nil {
			return names, fmt.Errorf("record migration %s: %w", m.Name, err)
		}
		log.Info().Str("db", "clickhouse").Str("file", m.Name).Msg("applied migration")
		names = append(names, m.Name)
	}
	return names, nil
}

func appliedClickhouse(ctx context.Context, db ClickhouseDB) (map[string]bool, error) {
	rows, err := db.Query(ctx, `SELECT DISTINCT name FROM schema_migrations`)
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

// splitStatements drops -- comment lines and splits on semicolons.
func splitStatements(input string) []string {
	var kept []string
	for _, line := range strings.Split(input, "\n") {
		if t := strings.TrimSpace(line); t != "" && !strings.HasPrefix(t, "--") {
			kept = append(kept, line)
		}
	}
	var stmts []string
	for _, part := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// validateNoSemicolonInStrings rejects semicolons inside single-quoted
// literals, which splitStatements would cut.
func validateNoSemicolonInStrings(sql string) error {
	quoted := false
	for i := 0; i < len(sql); i++ {
		switch sql[i] {
		case '\'':
			if quoted && i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			quoted = !quoted
		case ';':
			if quoted {
				return fmt.Errorf("semicolon inside string literal at offset %d", i)
			}
		}
	}
	return nil
}
