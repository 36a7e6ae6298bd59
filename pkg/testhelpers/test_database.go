package testhelpers

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/floroz/livebid/migrations"
)

// TestDatabase is a migrated Postgres running in a container
type TestDatabase struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// NewTestDatabase starts a container, applies the embedded migrations and
// terminates everything when the test finishes.
func NewTestDatabase(t *testing.T) *TestDatabase {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if termErr := pgContainer.Terminate(context.Background()); termErr != nil {
			t.Logf("failed to terminate container: %v", termErr)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err, "failed to connect to database")
	t.Cleanup(pool.Close)
	require.NoError(t, pool.Ping(ctx), "failed to ping database")

	// goose needs a *sql.DB
	db, err := sql.Open("pgx", stdlib.RegisterConnConfig(pool.Config().ConnConfig))
	require.NoError(t, err, "failed to open sql db for migrations")
	defer db.Close()

	require.NoError(t, migrations.Up(db))

	return &TestDatabase{
		Container: pgContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// Clean truncates every table to reset state between subtests sharing a container
func (td *TestDatabase) Clean(t *testing.T) {
	t.Helper()

	_, err := td.Pool.Exec(context.Background(),
		"TRUNCATE TABLE bids, auctions, outbox_events, bidder_stats, processed_events CASCADE")
	require.NoError(t, err, "failed to truncate tables")
}
