//go:build integration

// Package pgtest provides a migrated Postgres pool for store integration
// tests. UNIEATS_TEST_DSN points at an existing database; otherwise a
// throwaway container is started.
package pgtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Lm7452/UniEats/migrations"
)

func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	dsn := os.Getenv("UNIEATS_TEST_DSN")
	if dsn == "" {
		pgContainer, err := tcpostgres.RunContainer(ctx,
			testcontainers.WithImage("postgres:15-alpine"),
			tcpostgres.WithDatabase("unieats_test"),
			tcpostgres.WithUsername("test"),
			tcpostgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		require.NoError(t, err)
		t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

		dsn, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	db, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, migrations.Apply(ctx, db))
	_, err = db.Exec(ctx, "TRUNCATE TABLE order_state_events, orders, users")
	require.NoError(t, err)
	return db
}

// SeedUser inserts a bare user row so orders can reference it.
func SeedUser(t *testing.T, db *pgxpool.Pool, id, role string, available bool) {
	t.Helper()
	_, err := db.Exec(context.Background(), `
		INSERT INTO users (id, subject, name, email, role, is_available)
		VALUES ($1, $1, $1, $1 || '@example.edu', $2, $3)`, id, role, available)
	require.NoError(t, err)
}
