package testutil

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/zwaldoo1/Cerveza-artesanal/internal/db"
)

const (
	dbUser     = "cart_user"
	dbPassword = "cart_pass"
	dbName     = "carts"
)

// RequireIntegration skips the test unless INTEGRATION is set, since the
// helpers below need a Docker daemon.
func RequireIntegration(t *testing.T) {
	t.Helper()
	if testing.Short() || os.Getenv("INTEGRATION") == "" {
		t.Skip("set INTEGRATION=1 to run container-backed tests")
	}
}

// StartPostgres launches a Postgres container, applies the migrations and
// returns its DSN. The container is terminated with t.Cleanup.
func StartPostgres(t *testing.T) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     dbUser,
			"POSTGRES_PASSWORD": dbPassword,
			"POSTGRES_DB":       dbName,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(90 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cleanupCancel()
		_ = container.Terminate(cleanupCtx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", dbUser, dbPassword, host, mappedPort.Port(), dbName)
	require.NoError(t, db.MigrateCartSchema(dsn, log.New(io.Discard, "", 0)))
	return dsn
}
