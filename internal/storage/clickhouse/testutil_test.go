package clickhouse

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"portfolio-lab/internal/storage/migrations"
)

// setupTestDB starts a disposable ClickHouse server and opens the "portfolio"
// database on it. Open creates the database, so the container starts empty.
// Skipped with -short.
func setupTestDB(t *testing.T) (*Conn, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "clickhouse/clickhouse-server:24.8-alpine",
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"CLICKHOUSE_USER":     "default",
				"CLICKHOUSE_PASSWORD": "",
			},
			WaitingFor: wait.ForAll(
				wait.ForLog("Ready for connections").WithStartupTimeout(90*time.Second),
				wait.ForListeningPort("9000/tcp"),
			),
		},
		Started: true,
	})
	require.NoError(t, err, "start clickhouse container")

	endpoint, err := container.PortEndpoint(ctx, "9000/tcp", "")
	require.NoError(t, err)

	conn, err := Open(ctx, fmt.Sprintf("clickhouse://default:@%s/portfolio", endpoint))
	require.NoError(t, err)
	require.Equal(t, "portfolio", conn.Database())

	_, err = migrations.ApplyClickhouse(ctx, conn, zerolog.Nop())
	require.NoError(t, err)

	return conn, func() {
		_ = conn.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}
}
