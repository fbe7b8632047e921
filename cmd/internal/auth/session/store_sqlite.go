package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore implements Store over database/sql with the modernc SQLite
// driver. Instants are stored as unix milliseconds. The *sql.DB is owned by
// the caller.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("session: nil db")
	}
	return &SQLiteStore{db: db}, nil
}

// sqlExecer is satisfied by both *sql.DB and *sql.Tx.
type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) Create(ctx context.Context, in NewRecord) (Record, error) {
	rec, err := newRecord(truncateMillis(in))
	if err != nil {
		return Record{}, err
	}
	if err := sqliteInsert(ctx, s.db, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *SQLiteStore) FindByDigest(ctx context.Context, digest string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, token_digest, expires_at, revoked, created_at
		   FROM refresh_tokens WHERE token_digest = ?`,
		digest,
	)
	rec, err := sqliteScan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *SQLiteStore) Revoke(ctx context.Context, digest string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1 WHERE token_digest = ? AND revoked = 0`,
		digest,
	)
	return err
}

func (s *SQLiteStore) RevokeAllForOwner(ctx context.Context, ownerID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1 WHERE owner_id = ? AND revoked = 0`,
		ownerID,
	)
	return err
}

func (s *SQLiteStore) RevokeByID(ctx context.Context, ownerID, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1 WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListActiveForOwner(ctx context.Context, ownerID string, now time.Time) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, token_digest, expires_at, revoked, created_at
		   FROM refresh_tokens
		  WHERE owner_id = ? AND revoked = 0 AND expires_at > ?
		  ORDER BY created_at, id`,
		ownerID, now.UnixMilli(),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []Record{}
	for rows.Next() {
		rec, err := sqliteScan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Replace revokes the old row and inserts the new one in a single
// transaction. The conditional UPDATE is the race guard: only one caller can
// flip revoked from 0 to 1.
func (s *SQLiteStore) Replace(ctx context.Context, oldDigest string, in NewRecord) (Record, error) {
	rec, err := newRecord(truncateMillis(in))
	if err != nil {
		return Record{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1 WHERE token_digest = ? AND revoked = 0`,
		oldDigest,
	)
	if err != nil {
		return Record{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return Record{}, err
	} else if n == 0 {
		return Record{}, ErrRecordNotFound
	}

	if err := sqliteInsert(ctx, tx, rec); err != nil {
		return Record{}, err
	}
	if err := tx.Commit(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func sqliteInsert(ctx context.Context, db sqlExecer, rec Record) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, owner_id, token_digest, expires_at, revoked, created_at)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		rec.ID, rec.OwnerID, rec.TokenDigest, rec.ExpiresAt.UnixMilli(), rec.CreatedAt.UnixMilli(),
	)
	if sqliteIsUniqueViolation(err) {
		return ErrDuplicateDigest
	}
	return err
}

type sqlScanner interface {
	Scan(dest ...any) error
}

func sqliteScan(row sqlScanner) (Record, error) {
	var (
		rec             Record
		expMs, createMs int64
	)
	if err := row.Scan(&rec.ID, &rec.OwnerID, &rec.TokenDigest, &expMs, &rec.Revoked, &createMs); err != nil {
		return Record{}, err
	}
	rec.ExpiresAt = time.UnixMilli(expMs).UTC()
	rec.CreatedAt = time.UnixMilli(createMs).UTC()
	return rec, nil
}

// truncateMillis matches the stored precision so the returned Record equals
// what a later read produces.
func truncateMillis(in NewRecord) NewRecord {
	in.ExpiresAt = time.UnixMilli(in.ExpiresAt.UnixMilli()).UTC()
	in.CreatedAt = time.UnixMilli(in.CreatedAt.UnixMilli()).UTC()
	return in
}

func sqliteIsUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT
}
