package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"authcore/cmd/identity"
)

// PostgresStore implements Store over the refresh_tokens table.
// The pool is owned by the caller.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore) error

// WithSchema selects the schema holding refresh_tokens (default "public").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if !identity.PGIdentIsValid(schema) {
			return fmt.Errorf("session: invalid schema identifier")
		}
		s.table = pgx.Identifier{schema, "refresh_tokens"}.Sanitize()
		return nil
	}
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	s := &PostgresStore{
		pool:  pool,
		table: pgx.Identifier{"public", "refresh_tokens"}.Sanitize(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.pool == nil {
		return nil, fmt.Errorf("session: nil pool")
	}
	return s, nil
}

const pgRecordColumns = `id, owner_id, token_digest, expires_at, revoked, created_at`

// Create inserts a new record.
func (s *PostgresStore) Create(ctx context.Context, in NewRecord) (Record, error) {
	rec, err := newRecord(in)
	if err != nil {
		return Record{}, err
	}
	if err := insertRecord(ctx, s.pool, s.table, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// FindByDigest loads a record by digest.
func (s *PostgresStore) FindByDigest(ctx context.Context, digest string) (Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgRecordColumns+` FROM `+s.table+` WHERE token_digest = $1`,
		digest,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Revoke revokes a single record (idempotent).
func (s *PostgresStore) Revoke(ctx context.Context, digest string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE `+s.table+` SET revoked = true WHERE token_digest = $1 AND NOT revoked`,
		digest,
	)
	return err
}

// RevokeAllForOwner revokes all records for an owner (idempotent).
func (s *PostgresStore) RevokeAllForOwner(ctx context.Context, ownerID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE `+s.table+` SET revoked = true WHERE owner_id = $1 AND NOT revoked`,
		ownerID,
	)
	return err
}

func (s *PostgresStore) RevokeByID(ctx context.Context, ownerID, id string) (bool, error) {
	// revoked = true on an already revoked row still counts as a match.
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+s.table+` SET revoked = true WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListActiveForOwner(ctx context.Context, ownerID string, now time.Time) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgRecordColumns+` FROM `+s.table+`
		  WHERE owner_id = $1 AND NOT revoked AND expires_at > $2
		  ORDER BY created_at, id`,
		ownerID, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+s.table+` WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.OwnerID, &rec.TokenDigest, &rec.ExpiresAt, &rec.Revoked, &rec.CreatedAt)
	return rec, err
}

// pgExecer is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertRecord(ctx context.Context, db pgExecer, table string, rec Record) error {
	_, err := db.Exec(ctx,
		`INSERT INTO `+table+` (`+pgRecordColumns+`) VALUES ($1, $2, $3, $4, false, $5)`,
		rec.ID, rec.OwnerID, rec.TokenDigest, rec.ExpiresAt, rec.CreatedAt,
	)
	if pgIsUniqueViolation(err) {
		return ErrDuplicateDigest
	}
	return err
}

func pgIsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
