// Package migrations embeds the SQL schema for the PostgreSQL job/result
// store and the ClickHouse bar/rate store, and applies it once per file.
// Applied file names are recorded in a schema_migrations table on each
// database so restarts only run new files.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed postgres/*.sql
var postgresFS embed.FS

//go:embed clickhouse/*.sql
var clickhouseFS embed.FS

// Migration is one embedded SQL file.
type Migration struct {
	Name string
	SQL  string
}

// Postgres returns the PostgreSQL migrations in apply order.
func Postgres() ([]Migration, error) { return load(postgresFS, "postgres") }

// Clickhouse returns the ClickHouse migrations in apply order.
func Clickhouse() ([]Migration, error) { return load(clickhouseFS, "clickhouse") }

// load reads every .sql file under dir sorted by name. Blank files are skipped.
func load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("list %s migrations: %w", dir, err)
	}
	var out []Migration
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		out = append(out, Migration{Name: e.Name(), SQL: string(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// pending drops migrations whose name is in applied.
func pending(all []Migration, applied map[string]bool) []Migration {
	var out []Migration
	for _, m := range all {
		if !applied[m.Name] {
			out = append(out, m)
		}
	}
	return out
}
