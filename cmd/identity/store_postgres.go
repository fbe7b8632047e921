package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDirectory implements Directory over PostgreSQL.
//
// Design notes:
// - The pgx pool is owned by the caller; this store must NOT close it.
// - Schema/table identifiers are safely quoted to avoid SQL injection via identifiers.
// - Unique violations are mapped to ConflictError by constraint name.
type PostgresDirectory struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the directory.
type PostgresOption func(*PostgresDirectory) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema (default "public").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresDirectory) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !PGIdentIsValid(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresDirectory constructs a PostgresDirectory.
func NewPostgresDirectory(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresDirectory, error) {
	d := &PostgresDirectory{
		pool:   pool,
		schema: "public",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	if d.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return d, nil
}

const pgUserColumns = `id, email, email_norm, username, username_norm, password_hash,
       is_admin, enabled, first_name, last_name, created_at, updated_at`

func (d *PostgresDirectory) FindByID(ctx context.Context, id string) (User, error) {
	return d.findOne(ctx, "identity.FindByID", "id = $1", id)
}

func (d *PostgresDirectory) FindByEmail(ctx context.Context, email string) (User, error) {
	return d.findOne(ctx, "identity.FindByEmail", "email_norm = $1", NormalizeEmail(email))
}

func (d *PostgresDirectory) FindByLogin(ctx context.Context, identifier string) (User, error) {
	if isEmailLogin(identifier) {
		return d.findOne(ctx, "identity.FindByLogin", "email_norm = $1", NormalizeEmail(identifier))
	}
	return d.findOne(ctx, "identity.FindByLogin", "username_norm = $1", NormalizeUsername(identifier))
}

func (d *PostgresDirectory) findOne(ctx context.Context, op, where string, arg any) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	row := d.pool.QueryRow(ctx,
		`SELECT `+pgUserColumns+` FROM `+pgIdent(d.schema, "users")+` WHERE `+where,
		arg,
	)

	var u User
	err := row.Scan(
		&u.ID, &u.Email, &u.EmailNorm, &u.Username, &u.UsernameNorm, &u.PasswordHash,
		&u.IsAdmin, &u.Enabled, &u.FirstName, &u.LastName, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, userNotFound(op)
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (d *PostgresDirectory) Create(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.Create"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	u, err := prepareUser(op, in)
	if err != nil {
		return User{}, err
	}

	_, err = d.pool.Exec(ctx,
		`INSERT INTO `+pgIdent(d.schema, "users")+` (
		     id, email, email_norm, username, username_norm, password_hash,
		     is_admin, enabled, first_name, last_name, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`,
		u.ID, u.Email, u.EmailNorm, u.Username, u.UsernameNorm, u.PasswordHash,
		u.IsAdmin, u.Enabled, u.FirstName, u.LastName, u.CreatedAt,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (d *PostgresDirectory) UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error {
	const op = "identity.UpdatePasswordHash"
	if hash == "" {
		return invalid(op, "password hash is required")
	}
	return d.exec(ctx, op,
		`UPDATE `+pgIdent(d.schema, "users")+` SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, hash, now,
	)
}

func (d *PostgresDirectory) SetEnabled(ctx context.Context, id string, enabled bool, now time.Time) error {
	return d.exec(ctx, "identity.SetEnabled",
		`UPDATE `+pgIdent(d.schema, "users")+` SET enabled = $2, updated_at = $3 WHERE id = $1`,
		id, enabled, now,
	)
}

func (d *PostgresDirectory) exec(ctx context.Context, op, sql string, args ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tag, err := d.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return userNotFound(op)
	}
	return nil
}

// BootstrapPreferences inserts default preferences; an existing row is kept.
func (d *PostgresDirectory) BootstrapPreferences(ctx context.Context, userID string, now time.Time) error {
	const op = "identity.BootstrapPreferences"
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := d.pool.Exec(ctx,
		`INSERT INTO `+pgIdent(d.schema, "notification_preferences")+`
		     (user_id, push_enabled, email_enabled, created_at)
		 VALUES ($1, true, true, $2)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, now,
	)
	if err != nil {
		if pgIsForeignKeyViolation(err) {
			return userNotFound(op)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ---- helpers ----

// PGIdentIsValid checks if a string is a safe Postgres identifier.
func PGIdentIsValid(s string) bool {
	return pgIdentRe.MatchString(s)
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgIsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23503" // foreign_key_violation
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable schema constraint names. Fall back to substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))

	switch c {
	case "uq_users_username_norm":
		return "username", true
	case "uq_users_email_norm":
		return "email", true
	default:
		switch {
		case strings.Contains(c, "username"):
			return "username", true
		case strings.Contains(c, "email"):
			return "email", true
		default:
			return "unique", true
		}
	}
}
