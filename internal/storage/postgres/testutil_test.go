package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"portfolio-lab/internal/storage/migrations"
)

// setupTestDB starts a disposable PostgreSQL, connects a pool and applies
// the embedded migrations. Skipped with -short.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("portfolio"),
		postgres.WithUsername("portfolio"),
		postgres.WithPassword("portfolio"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, dsn, WithMaxConns(4))
	require.NoError(t, err)

	applied, err := migrations.ApplyPostgres(ctx, pool, zerolog.Nop())
	require.NoError(t, err)
	require.NotEmpty(t, applied)

	// A second run finds everything recorded.
	again, err := migrations.ApplyPostgres(ctx, pool, zerolog.Nop())
	require.NoError(t, err)
	require.Empty(t, again)

	return pool, func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}
}
