package identity

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authcore/cmd/internal/pgtest"
)

// Integration tests are opt-in and require AUTHCORE_TEST_DATABASE_URL.

func TestDirectory_Postgres(t *testing.T) {
	runDirectoryContract(t, func(t *testing.T) directoryUnderTest {
		pool, schema := pgtest.OpenSchema(t)
		return mustNewPostgresDirectory(t, pool, schema)
	})
}

func TestPostgresDirectory_RejectsBadSchema(t *testing.T) {
	_, err := NewPostgresDirectory(&pgxpool.Pool{}, WithSchema("bad;schema"))
	assert.Error(t, err, "invalid schema")

	_, err = NewPostgresDirectory(nil)
	assert.Error(t, err, "nil pool")
}

func TestPostgresDirectory_BootstrapIsIdempotent(t *testing.T) {
	pool, schema := pgtest.OpenSchema(t)
	d := mustNewPostgresDirectory(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	u, err := d.Create(ctx, CreateUserInput{Email: "frank@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		require.NoError(t, d.BootstrapPreferences(ctx, u.ID, time.Now().UTC()), "bootstrap #%d", i)
	}

	var n int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT count(*) FROM `+pgIdent(schema, "notification_preferences")+` WHERE user_id = $1`, u.ID,
	).Scan(&n))
	assert.Equal(t, 1, n)
}

func mustNewPostgresDirectory(t *testing.T, pool *pgxpool.Pool, schema string) *PostgresDirectory {
	t.Helper()
	d, err := NewPostgresDirectory(pool, WithSchema(schema))
	require.NoError(t, err)
	return d
}
