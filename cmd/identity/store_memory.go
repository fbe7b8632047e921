package identity

import (
	"context"
	"sync"
	"time"
)

// MemoryDirectory is an in-process Directory and PreferencesBootstrapper.
type MemoryDirectory struct {
	mu         sync.RWMutex
	byID       map[string]User
	byEmail    map[string]string
	byUsername map[string]string
	prefs      map[string]NotificationPreferences
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		byID:       make(map[string]User),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
		prefs:      make(map[string]NotificationPreferences),
	}
}

func (d *MemoryDirectory) FindByID(ctx context.Context, id string) (User, error) {
	const op = "identity.FindByID"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.byID[id]
	if !ok {
		return User{}, userNotFound(op)
	}
	return u, nil
}

func (d *MemoryDirectory) FindByEmail(ctx context.Context, email string) (User, error) {
	const op = "identity.FindByEmail"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.byEmail[NormalizeEmail(email)]
	if !ok {
		return User{}, userNotFound(op)
	}
	return d.byID[id], nil
}

func (d *MemoryDirectory) FindByLogin(ctx context.Context, identifier string) (User, error) {
	const op = "identity.FindByLogin"
	if isEmailLogin(identifier) {
		return d.FindByEmail(ctx, identifier)
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.byUsername[NormalizeUsername(identifier)]
	if !ok {
		return User{}, userNotFound(op)
	}
	return d.byID[id], nil
}

func (d *MemoryDirectory) Create(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.Create"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	u, err := prepareUser(op, in)
	if err != nil {
		return User{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, taken := d.byEmail[u.EmailNorm]; taken {
		return User{}, ConflictError{Op: op, Field: "email"}
	}
	if u.UsernameNorm != nil {
		if _, taken := d.byUsername[*u.UsernameNorm]; taken {
			return User{}, ConflictError{Op: op, Field: "username"}
		}
		d.byUsername[*u.UsernameNorm] = u.ID
	}
	d.byEmail[u.EmailNorm] = u.ID
	d.byID[u.ID] = u
	return u, nil
}

func (d *MemoryDirectory) UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error {
	const op = "identity.UpdatePasswordHash"
	if hash == "" {
		return invalid(op, "password hash is required")
	}
	return d.update(ctx, op, id, func(u *User) {
		u.PasswordHash = hash
		u.UpdatedAt = now
	})
}

func (d *MemoryDirectory) SetEnabled(ctx context.Context, id string, enabled bool, now time.Time) error {
	return d.update(ctx, "identity.SetEnabled", id, func(u *User) {
		u.Enabled = enabled
		u.UpdatedAt = now
	})
}

func (d *MemoryDirectory) update(ctx context.Context, op, id string, fn func(*User)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.byID[id]
	if !ok {
		return userNotFound(op)
	}
	fn(&u)
	d.byID[id] = u
	return nil
}

// BootstrapPreferences stores default preferences once; repeated calls keep the first row.
func (d *MemoryDirectory) BootstrapPreferences(ctx context.Context, userID string, now time.Time) error {
	const op = "identity.BootstrapPreferences"
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.byID[userID]; !ok {
		return userNotFound(op)
	}
	if _, ok := d.prefs[userID]; ok {
		return nil
	}
	d.prefs[userID] = NotificationPreferences{
		UserID:       userID,
		PushEnabled:  true,
		EmailEnabled: true,
		CreatedAt:    now,
	}
	return nil
}

// Preferences returns the stored preferences for userID, if any.
func (d *MemoryDirectory) Preferences(userID string) (NotificationPreferences, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.prefs[userID]
	return p, ok
}

// Count returns the number of users.
func (d *MemoryDirectory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID)
}
