package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteDirectory implements Directory over database/sql with the modernc
// SQLite driver. Instants are stored as unix milliseconds.
// The *sql.DB is owned by the caller.
type SQLiteDirectory struct {
	db *sql.DB
}

func NewSQLiteDirectory(db *sql.DB) (*SQLiteDirectory, error) {
	if db == nil {
		return nil, fmt.Errorf("identity: nil db")
	}
	return &SQLiteDirectory{db: db}, nil
}

const sqliteUserColumns = `id, email, email_norm, username, username_norm, password_hash,
       is_admin, enabled, first_name, last_name, created_at, updated_at`

func (d *SQLiteDirectory) FindByID(ctx context.Context, id string) (User, error) {
	return d.findOne(ctx, "identity.FindByID", "id = ?", id)
}

func (d *SQLiteDirectory) FindByEmail(ctx context.Context, email string) (User, error) {
	return d.findOne(ctx, "identity.FindByEmail", "email_norm = ?", NormalizeEmail(email))
}

func (d *SQLiteDirectory) FindByLogin(ctx context.Context, identifier string) (User, error) {
	if isEmailLogin(identifier) {
		return d.findOne(ctx, "identity.FindByLogin", "email_norm = ?", NormalizeEmail(identifier))
	}
	return d.findOne(ctx, "identity.FindByLogin", "username_norm = ?", NormalizeUsername(identifier))
}

func (d *SQLiteDirectory) findOne(ctx context.Context, op, where string, arg any) (User, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+sqliteUserColumns+` FROM users WHERE `+where,
		arg,
	)

	var (
		u                    User
		username, usernameN  sql.NullString
		first, last          sql.NullString
		createdMs, updatedMs int64
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.EmailNorm, &username, &usernameN, &u.PasswordHash,
		&u.IsAdmin, &u.Enabled, &first, &last, &createdMs, &updatedMs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, userNotFound(op)
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}

	u.Username = nullToPtr(username)
	u.UsernameNorm = nullToPtr(usernameN)
	u.FirstName = nullToPtr(first)
	u.LastName = nullToPtr(last)
	u.CreatedAt = time.UnixMilli(createdMs).UTC()
	u.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return u, nil
}

func (d *SQLiteDirectory) Create(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.Create"

	u, err := prepareUser(op, in)
	if err != nil {
		return User{}, err
	}
	// Match the stored precision so callers see what a later read returns.
	u.CreatedAt = time.UnixMilli(u.CreatedAt.UnixMilli()).UTC()
	u.UpdatedAt = u.CreatedAt

	_, err = d.db.ExecContext(ctx,
		`INSERT INTO users (
		     id, email, email_norm, username, username_norm, password_hash,
		     is_admin, enabled, first_name, last_name, created_at, updated_at
		   ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.EmailNorm, ptrToNull(u.Username), ptrToNull(u.UsernameNorm), u.PasswordHash,
		u.IsAdmin, u.Enabled, ptrToNull(u.FirstName), ptrToNull(u.LastName),
		u.CreatedAt.UnixMilli(), u.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		if field, ok := sqliteClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (d *SQLiteDirectory) UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error {
	const op = "identity.UpdatePasswordHash"
	if hash == "" {
		return invalid(op, "password hash is required")
	}
	return d.exec(ctx, op,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, now.UnixMilli(), id,
	)
}

func (d *SQLiteDirectory) SetEnabled(ctx context.Context, id string, enabled bool, now time.Time) error {
	return d.exec(ctx, "identity.SetEnabled",
		`UPDATE users SET enabled = ?, updated_at = ? WHERE id = ?`,
		enabled, now.UnixMilli(), id,
	)
}

func (d *SQLiteDirectory) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return userNotFound(op)
	}
	return nil
}

// BootstrapPreferences inserts default preferences; an existing row is kept.
func (d *SQLiteDirectory) BootstrapPreferences(ctx context.Context, userID string, now time.Time) error {
	const op = "identity.BootstrapPreferences"

	res, err := d.db.ExecContext(ctx,
		`INSERT INTO notification_preferences (user_id, push_enabled, email_enabled, created_at)
		 SELECT id, 1, 1, ? FROM users WHERE id = ?
		 ON CONFLICT (user_id) DO NOTHING`,
		now.UnixMilli(), userID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Either the user is missing or preferences already exist.
		if _, err := d.FindByID(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}

func nullToPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func ptrToNull(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func sqliteClassifyUniqueViolation(err error) (field string, ok bool) {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return "", false
	}
	code := sqliteErr.Code()
	if code != sqlite3.SQLITE_CONSTRAINT_UNIQUE && code != sqlite3.SQLITE_CONSTRAINT {
		return "", false
	}

	// "UNIQUE constraint failed: users.email_norm"
	msg := strings.ToLower(sqliteErr.Error())
	switch {
	case strings.Contains(msg, "username"):
		return "username", true
	case strings.Contains(msg, "email"):
		return "email", true
	default:
		return "unique", true
	}
}
