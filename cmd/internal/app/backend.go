package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"authcore/cmd/identity"
	"authcore/cmd/internal/auth/session"
	"authcore/cmd/internal/migrations"
)

// backend owns the persistence resources the service runs on.
type backend struct {
	users  identity.Directory
	prefs  identity.PreferencesBootstrapper
	tokens session.Store

	// persistent is false for the in-memory mode.
	persistent bool

	pool   *pgxpool.Pool
	sqlite *sql.DB
	rdb    *redis.Client
}

// openBackend decides between PostgreSQL, SQLite and in-memory persistence,
// with Redis optionally taking over refresh-token records.
func openBackend(ctx context.Context, cfg Config, log Logger) (*backend, error) {
	b := &backend{}
	ok := false
	defer func() {
		if !ok {
			b.Close()
		}
	}()

	switch {
	case cfg.DatabaseURL != "":
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		b.pool = pool
		if cfg.AutoMigrate {
			db := stdlib.OpenDBFromPool(pool)
			n, err := migrations.Up(ctx, db, migrations.Postgres)
			_ = db.Close()
			if err != nil {
				return nil, fmt.Errorf("postgres migrate: %w", err)
			}
			log.Info("db.migrated", "dialect", "postgres", "applied", n)
		}

		dir, err := identity.NewPostgresDirectory(pool, identity.WithSchema(cfg.DBSchema))
		if err != nil {
			return nil, err
		}
		st, err := session.NewPostgresStore(pool, session.WithSchema(cfg.DBSchema))
		if err != nil {
			return nil, err
		}
		b.users, b.prefs, b.tokens, b.persistent = dir, dir, st, true

	case cfg.SQLitePath != "":
		db, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		b.sqlite = db
		if cfg.AutoMigrate {
			n, err := migrations.Up(ctx, db, migrations.SQLite)
			if err != nil {
				return nil, fmt.Errorf("sqlite migrate: %w", err)
			}
			log.Info("db.migrated", "dialect", "sqlite", "applied", n)
		}

		dir, err := identity.NewSQLiteDirectory(db)
		if err != nil {
			return nil, err
		}
		st, err := session.NewSQLiteStore(db)
		if err != nil {
			return nil, err
		}
		b.users, b.prefs, b.tokens, b.persistent = dir, dir, st, true

	default:
		log.Warn("db.disabled.inmemory_store")
		dir := identity.NewMemoryDirectory()
		b.users, b.prefs, b.tokens = dir, dir, session.NewMemoryStore()
	}

	if cfg.RedisAddr != "" {
		rdb, err := NewRedisClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		b.rdb = rdb
		b.tokens = session.NewRedisStore(rdb, session.WithKeyPrefix(cfg.RedisPrefix))
	}

	log.Info("db.enabled", "users", cfg.backendName(), "sessions", b.sessionBackendName(cfg))
	ok = true
	return b, nil
}

func (b *backend) sessionBackendName(cfg Config) string {
	if b.rdb != nil {
		return "redis"
	}
	return cfg.backendName()
}

// Ready pings every external dependency.
func (b *backend) Ready(ctx context.Context) error {
	var errs []error
	if b.pool != nil {
		if err := PingDB(ctx, b.pool, 2*time.Second); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if b.sqlite != nil {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := b.sqlite.PingContext(pctx)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("sqlite: %w", err))
		}
	}
	if b.rdb != nil {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := b.rdb.Ping(pctx).Err()
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Close releases every resource. Safe to call on a partially opened backend.
func (b *backend) Close() {
	if b == nil {
		return
	}
	if b.rdb != nil {
		_ = b.rdb.Close()
	}
	if b.sqlite != nil {
		_ = b.sqlite.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}
