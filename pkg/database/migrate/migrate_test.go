//go:build integration

package migrate

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	kvpostgres "github.com/txn2/ai-notebook/pkg/kvstore/postgres"
)

func TestMigrations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := postgres.Run(ctx, "postgres:15",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	defer func() { _ = pgContainer.Terminate(ctx) }()

	// Get connection string
	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Open database connection
	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	// Test Run (up)
	t.Run("Run applies migrations", func(t *testing.T) {
		err := Run(db)
		require.NoError(t, err)

		// Verify tables exist
		var exists bool
		err = db.QueryRow(`
			SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_name = 'auth_events'
			)
		`).Scan(&exists)
		require.NoError(t, err)
		require.True(t, exists, "auth_events table should exist")

		err = db.QueryRow(`
			SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_name = 'records'
			)
		`).Scan(&exists)
		require.NoError(t, err)
		require.True(t, exists, "records table should exist")
	})

	t.Run("Schema matches the stores", func(t *testing.T) {
		var dataType string
		err := db.QueryRow(`
			SELECT data_type FROM information_schema.columns
			WHERE table_name = 'records' AND column_name = 'seq'
		`).Scan(&dataType)
		require.NoError(t, err)
		require.Equal(t, "bigint", dataType)

		var pkColumn string
		err = db.QueryRow(`
			SELECT kcu.column_name
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
			  ON tc.constraint_name = kcu.constraint_name
			WHERE tc.table_name = 'kv_store' AND tc.constraint_type = 'PRIMARY KEY'
		`).Scan(&pkColumn)
		require.NoError(t, err)
		require.Equal(t, "key", pkColumn)

		store := kvpostgres.New(db)
		require.NoError(t, store.Set(ctx, "migrate.test", []byte("one")))
		require.NoError(t, store.Set(ctx, "migrate.test", []byte("two")))
		value, err := store.Get(ctx, "migrate.test")
		require.NoError(t, err)
		require.Equal(t, []byte("two"), value)
		require.NoError(t, store.Remove(ctx, "migrate.test"))

		for _, index := range []string{
			"idx_records_owner",
			"idx_records_data",
			"idx_auth_events_occurred_at",
			"idx_auth_events_user_id",
			"idx_auth_events_event_type",
		} {
			var exists bool
			err := db.QueryRow(`SELECT EXISTS (SELECT FROM pg_indexes WHERE indexname = $1)`, index).Scan(&exists)
			require.NoError(t, err)
			require.True(t, exists, "index %s should exist", index)
		}

		var method string
		err = db.QueryRow(`
			SELECT am.amname FROM pg_class c JOIN pg_am am ON c.relam = am.oid
			WHERE c.relname = 'idx_records_data'
		`).Scan(&method)
		require.NoError(t, err)
		require.Equal(t, "gin", method)
	})

	// Test Version
	t.Run("Version returns current version", func(t *testing.T) {
		version, dirty, err := Version(db)
		require.NoError(t, err)
		require.False(t, dirty)
		require.Equal(t, uint(3), version)
	})

	// Test Run is idempotent
	t.Run("Run is idempotent", func(t *testing.T) {
		err := Run(db)
		require.NoError(t, err)

		version, dirty, err := Version(db)
		require.NoError(t, err)
		require.False(t, dirty)
		require.Equal(t, uint(3), version)
	})

	// Test Down
	t.Run("Down rolls back migrations", func(t *testing.T) {
		err := Down(db)
		require.NoError(t, err)

		// Verify tables don't exist
		var exists bool
		err = db.QueryRow(`
			SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_name = 'auth_events'
			)
		`).Scan(&exists)
		require.NoError(t, err)
		require.False(t, exists, "auth_events table should not exist after down")
	})

	// Test Steps
	t.Run("Steps applies n migrations", func(t *testing.T) {
		// Apply just first migration
		err := Steps(db, 1)
		require.NoError(t, err)

		version, _, err := Version(db)
		require.NoError(t, err)
		require.Equal(t, uint(1), version)

		// Apply remaining
		err = Steps(db, 2)
		require.NoError(t, err)

		version, _, err = Version(db)
		require.NoError(t, err)
		require.Equal(t, uint(3), version)
	})
}
