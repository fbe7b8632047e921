package session

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// Replace rotates a refresh token inside one transaction. The old row is
// locked with SELECT ... FOR UPDATE so two concurrent rotations of the same
// token serialize and the loser sees it revoked.
func (s *PostgresStore) Replace(ctx context.Context, oldDigest string, in NewRecord) (Record, error) {
	rec, err := newRecord(in)
	if err != nil {
		return Record{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return Record{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var oldID string
	var revoked bool
	err = tx.QueryRow(ctx,
		`SELECT id, revoked FROM `+s.table+` WHERE token_digest = $1 FOR UPDATE`,
		oldDigest,
	).Scan(&oldID, &revoked)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && revoked) {
		return Record{}, ErrRecordNotFound
	}
	if err != nil {
		return Record{}, err
	}

	if _, err := tx.Exec(ctx, `UPDATE `+s.table+` SET revoked = true WHERE id = $1`, oldID); err != nil {
		return Record{}, err
	}
	if err := insertRecord(ctx, tx, s.table, rec); err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, err
	}
	return rec, nil
}
