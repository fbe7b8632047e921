package identity

import (
	"context"
	"strings"
	"time"
)

// User is the canonical security principal.
type User struct {
	ID           string
	Email        string
	EmailNorm    string
	Username     *string
	UsernameNorm *string

	// PasswordHash is an encoded digest; it never leaves the server.
	PasswordHash string

	IsAdmin bool
	Enabled bool

	FirstName *string
	LastName  *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateUserInput describes a new account. PasswordHash must already be hashed.
type CreateUserInput struct {
	Email        string
	Username     *string
	PasswordHash string
	FirstName    *string
	LastName     *string
	IsAdmin      bool
	Now          time.Time
}

// NotificationPreferences are the per-user defaults created after registration.
type NotificationPreferences struct {
	UserID       string
	PushEnabled  bool
	EmailEnabled bool
	CreatedAt    time.Time
}

// Directory is the user persistence boundary.
type Directory interface {
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	// FindByLogin matches identifier against email when it contains '@',
	// otherwise against username. Both comparisons are case-insensitive.
	FindByLogin(ctx context.Context, identifier string) (User, error)

	Create(ctx context.Context, in CreateUserInput) (User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error
	SetEnabled(ctx context.Context, id string, enabled bool, now time.Time) error
}

// PreferencesBootstrapper creates default notification preferences for a new user.
type PreferencesBootstrapper interface {
	BootstrapPreferences(ctx context.Context, userID string, now time.Time) error
}

// NoopBootstrapper satisfies PreferencesBootstrapper without doing anything.
type NoopBootstrapper struct{}

func (NoopBootstrapper) BootstrapPreferences(context.Context, string, time.Time) error { return nil }

// prepareUser validates in and builds the row to insert.
func prepareUser(op string, in CreateUserInput) (User, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return User{}, invalid(op, "valid email is required")
	}
	if strings.TrimSpace(in.PasswordHash) == "" {
		return User{}, invalid(op, "password hash is required")
	}

	username := trimPtr(in.Username)
	var usernameNorm *string
	if username != nil {
		if strings.Contains(*username, "@") {
			return User{}, invalid(op, "username must not contain '@'")
		}
		n := NormalizeUsername(*username)
		usernameNorm = &n
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := NewULID(now)
	if err != nil {
		return User{}, err
	}

	return User{
		ID:           id,
		Email:        email,
		EmailNorm:    NormalizeEmail(email),
		Username:     username,
		UsernameNorm: usernameNorm,
		PasswordHash: in.PasswordHash,
		IsAdmin:      in.IsAdmin,
		Enabled:      true,
		FirstName:    trimPtr(in.FirstName),
		LastName:     trimPtr(in.LastName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
