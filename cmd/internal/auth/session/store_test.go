package session

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"authcore/cmd/identity/ids"
	"authcore/cmd/internal/migrations"
	"authcore/cmd/internal/pgtest"
)

// redisEnvKey names the address that enables Redis store tests.
const redisEnvKey = "AUTHCORE_TEST_REDIS_ADDR"

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = migrations.Up(context.Background(), db, migrations.SQLite)
	require.NoError(t, err)

	s, err := NewSQLiteStore(db)
	require.NoError(t, err)
	return s
}

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	addr := strings.TrimSpace(os.Getenv(redisEnvKey))
	if addr == "" {
		t.Skipf("integration test skipped: %s is not set", redisEnvKey)
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("integration test skipped: redis unreachable: %v", err)
	}

	id, err := ids.NewULID(time.Now().UTC())
	require.NoError(t, err)
	prefix := "authcore-test:" + strings.ToLower(id) + ":"

	t.Cleanup(func() {
		ctx := context.Background()
		iter := rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			_ = rdb.Del(ctx, iter.Val()).Err()
		}
	})
	return NewRedisStore(rdb, WithKeyPrefix(prefix))
}

func TestStore_Memory(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func TestStore_SQLite(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store { return newSQLiteStore(t) })
}

func TestStore_Postgres(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		pool, schema := pgtest.OpenSchema(t)
		s, err := NewPostgresStore(pool, WithSchema(schema))
		require.NoError(t, err)
		return s
	})
}

func TestStore_Redis(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store { return newRedisStore(t) })
}

func runStoreContract(t *testing.T, open func(t *testing.T) Store) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := func(owner, digest string, ttl time.Duration, created time.Time) NewRecord {
		return NewRecord{OwnerID: owner, TokenDigest: digest, ExpiresAt: created.Add(ttl), CreatedAt: created}
	}

	t.Run("create and find", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		got, err := s.Create(ctx, rec("u1", "d1", time.Hour, now))
		require.NoError(t, err)
		assert.Len(t, got.ID, 26)
		assert.False(t, got.Revoked)

		found, err := s.FindByDigest(ctx, "d1")
		require.NoError(t, err)
		assert.Equal(t, got.ID, found.ID)
		assert.Equal(t, "u1", found.OwnerID)
		assert.True(t, now.Add(time.Hour).Equal(found.ExpiresAt), "expires_at %v", found.ExpiresAt)
		assert.True(t, now.Equal(found.CreatedAt), "created_at %v", found.CreatedAt)

		_, err = s.FindByDigest(ctx, "missing")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("duplicate digest", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		_, err := s.Create(ctx, rec("u1", "dup", time.Hour, now))
		require.NoError(t, err)
		_, err = s.Create(ctx, rec("u2", "dup", time.Hour, now))
		assert.ErrorIs(t, err, ErrDuplicateDigest)
	})

	t.Run("revoke is idempotent", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		_, err := s.Create(ctx, rec("u1", "d1", time.Hour, now))
		require.NoError(t, err)

		require.NoError(t, s.Revoke(ctx, "d1"))
		require.NoError(t, s.Revoke(ctx, "d1"))
		require.NoError(t, s.Revoke(ctx, "never-stored"))

		found, err := s.FindByDigest(ctx, "d1")
		require.NoError(t, err)
		assert.True(t, found.Revoked)
	})

	t.Run("revoke all for owner", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		for _, d := range []string{"a1", "a2", "a3"} {
			_, err := s.Create(ctx, rec("alice", d, time.Hour, now))
			require.NoError(t, err)
		}
		_, err := s.Create(ctx, rec("bob", "b1", time.Hour, now))
		require.NoError(t, err)

		require.NoError(t, s.RevokeAllForOwner(ctx, "alice"))
		require.NoError(t, s.RevokeAllForOwner(ctx, "alice"))
		require.NoError(t, s.RevokeAllForOwner(ctx, "nobody"))

		active, err := s.ListActiveForOwner(ctx, "alice", now)
		require.NoError(t, err)
		assert.Empty(t, active)

		active, err = s.ListActiveForOwner(ctx, "bob", now)
		require.NoError(t, err)
		assert.Len(t, active, 1)
	})

	t.Run("revoke by id checks owner", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		r, err := s.Create(ctx, rec("alice", "a1", time.Hour, now))
		require.NoError(t, err)

		ok, err := s.RevokeByID(ctx, "bob", r.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = s.RevokeByID(ctx, "alice", "01HZZZZZZZZZZZZZZZZZZZZZZZ")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = s.RevokeByID(ctx, "alice", r.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		found, err := s.FindByDigest(ctx, "a1")
		require.NoError(t, err)
		assert.True(t, found.Revoked)
	})

	t.Run("list active skips revoked and expired", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		first, err := s.Create(ctx, rec("alice", "live1", time.Hour, now))
		require.NoError(t, err)
		second, err := s.Create(ctx, rec("alice", "live2", time.Hour, now.Add(time.Second)))
		require.NoError(t, err)
		_, err = s.Create(ctx, rec("alice", "gone", time.Hour, now))
		require.NoError(t, err)
		_, err = s.Create(ctx, rec("alice", "old", time.Minute, now.Add(-time.Hour)))
		require.NoError(t, err)
		require.NoError(t, s.Revoke(ctx, "gone"))

		active, err := s.ListActiveForOwner(ctx, "alice", now.Add(2*time.Second))
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, first.ID, active[0].ID)
		assert.Equal(t, second.ID, active[1].ID)

		// Exactly at expiry the record is no longer active.
		active, err = s.ListActiveForOwner(ctx, "alice", now.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, second.ID, active[0].ID)
	})

	t.Run("sweep deletes expired only", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		_, err := s.Create(ctx, rec("u", "expired", time.Minute, now.Add(-time.Hour)))
		require.NoError(t, err)
		_, err = s.Create(ctx, rec("u", "boundary", time.Hour, now.Add(-time.Hour)))
		require.NoError(t, err)
		_, err = s.Create(ctx, rec("u", "revoked-live", time.Hour, now))
		require.NoError(t, err)
		_, err = s.Create(ctx, rec("u", "live", time.Hour, now))
		require.NoError(t, err)
		require.NoError(t, s.Revoke(ctx, "revoked-live"))

		n, err := s.SweepExpired(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		for _, d := range []string{"expired", "boundary"} {
			_, err := s.FindByDigest(ctx, d)
			assert.ErrorIs(t, err, ErrRecordNotFound, d)
		}
		for _, d := range []string{"revoked-live", "live"} {
			_, err := s.FindByDigest(ctx, d)
			assert.NoError(t, err, d)
		}

		n, err = s.SweepExpired(ctx, now)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("replace", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		_, err := s.Create(ctx, rec("u", "old", time.Hour, now))
		require.NoError(t, err)

		fresh, err := s.Replace(ctx, "old", rec("u", "new", time.Hour, now.Add(time.Second)))
		require.NoError(t, err)
		assert.Equal(t, "new", fresh.TokenDigest)

		old, err := s.FindByDigest(ctx, "old")
		require.NoError(t, err)
		assert.True(t, old.Revoked)

		_, err = s.Replace(ctx, "old", rec("u", "newer", time.Hour, now))
		assert.ErrorIs(t, err, ErrRecordNotFound)
		_, err = s.Replace(ctx, "missing", rec("u", "newest", time.Hour, now))
		assert.ErrorIs(t, err, ErrRecordNotFound)

		_, err = s.FindByDigest(ctx, "newer")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("concurrent replace has one winner", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		_, err := s.Create(ctx, rec("u", "contested", time.Hour, now))
		require.NoError(t, err)

		const n = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				digest := "next-" + string(rune('a'+i))
				_, err := s.Replace(ctx, "contested", rec("u", digest, time.Hour, now))
				if err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
					return
				}
				if !errors.Is(err, ErrRecordNotFound) {
					t.Errorf("replace %d: %v", i, err)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})
}
