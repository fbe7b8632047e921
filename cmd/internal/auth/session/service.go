package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"authcore/cmd/identity"
	"authcore/cmd/internal/auth/codec"
	"authcore/cmd/security/password"
	"authcore/cmd/security/token"
)

// Hasher hashes and checks passwords. *password.Pool implements it.
type Hasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	// Verify returns an error only when ctx ends before a slot frees up.
	Verify(ctx context.Context, plain, encoded string) (bool, error)
	NeedsRehash(encoded string) bool
	CheckStrength(plain string) password.Strength
}

// TokenCodec mints and checks signed tokens. *codec.JWT implements it.
type TokenCodec interface {
	IssueAccess(id codec.Identity, now time.Time) (string, time.Time, error)
	IssueRefresh(id codec.Identity, now time.Time) (string, time.Time, error)
	VerifyType(tok string, typ codec.Type, now time.Time) (codec.Claims, error)
	ExpiryOf(tok string) (time.Time, bool)
}

// Digester maps a refresh token to its storage digest. token.Digester implements it.
type Digester interface {
	Digest(tok string) string
}

// Service implements the session lifecycle.
//
// It holds no mutable state between calls: everything durable lives in the
// Store and the user Directory, and every mutation is one atomic store call.
type Service struct {
	cfg     Config
	store   Store
	users   identity.Directory
	prefs   identity.PreferencesBootstrapper
	hasher  Hasher
	tokens  TokenCodec
	digest  Digester
	log     *slog.Logger
	metrics Metrics
	now     func() time.Time

	// dummyHash is verified against when a login names an unknown account,
	// so that path costs the same as a wrong password.
	dummyHash string
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithDigester(d Digester) Option {
	return func(s *Service) {
		if d != nil {
			s.digest = d
		}
	}
}

func WithPreferences(p identity.PreferencesBootstrapper) Option {
	return func(s *Service) {
		if p != nil {
			s.prefs = p
		}
	}
}

// NewService wires a Service. It hashes one throwaway password up front for
// the unknown-account login path.
func NewService(cfg Config, store Store, users identity.Directory, hasher Hasher, tokens TokenCodec, opts ...Option) (*Service, error) {
	if store == nil || users == nil || hasher == nil || tokens == nil {
		return nil, fmt.Errorf("%w: missing dependency", ErrConfig)
	}
	if cfg.MaxTokenLength <= 0 {
		cfg.MaxTokenLength = DefaultConfig().MaxTokenLength
	}

	s := &Service{
		cfg:     cfg,
		store:   store,
		users:   users,
		prefs:   identity.NoopBootstrapper{},
		hasher:  hasher,
		tokens:  tokens,
		digest:  token.NewDigester(nil),
		log:     slog.Default(),
		metrics: noopMetrics{},
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		if o != nil {
			o(s)
		}
	}

	dummy, err := hasher.Hash(context.Background(), "authcore-unknown-account-0")
	if err != nil {
		return nil, fmt.Errorf("session: dummy hash: %w", err)
	}
	s.dummyHash = dummy
	return s, nil
}

// PublicUser is the caller-safe projection of identity.User.
type PublicUser struct {
	ID        string
	Email     string
	Username  *string
	FirstName *string
	LastName  *string
	IsAdmin   bool
	CreatedAt time.Time
}

func publicUser(u identity.User) PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
	}
}

// Grant is what login, register and refresh hand back.
// RefreshToken is empty after a refresh unless rotation is enabled.
type Grant struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	ExpiresIn        time.Duration
	RefreshToken     string
	RefreshExpiresAt time.Time
	// SessionID is the stored record id of the refresh token in use.
	SessionID string
	User      *PublicUser
}

// RegisterInput is the registration request.
type RegisterInput struct {
	Email     string
	Password  string
	Username  *string
	FirstName *string
	LastName  *string
}

// SessionView is one active session as shown to its owner. It never carries
// the digest.
type SessionView struct {
	TokenID   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (s *Service) authFail(op, reason string) error {
	s.log.Info("auth.fail", "op", op, "reason", reason)
	return AuthenticationError{Op: op, Reason: reason}
}

// expiresIn measures the access lifetime at the codec's one-second precision,
// so a clock with a sub-second part does not lose a second.
func expiresIn(exp, now time.Time) time.Duration {
	d := exp.Sub(now.Truncate(time.Second))
	if d < 0 {
		return 0
	}
	return d
}

func (s *Service) validToken(tok string) bool {
	return tok != "" && len(tok) <= s.cfg.MaxTokenLength
}

// Login authenticates by email or username and issues a token pair.
func (s *Service) Login(ctx context.Context, identifier, plain string) (g Grant, err error) {
	const op = "session.Login"
	defer func() { s.metrics.ObserveOp(op, err) }()

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || plain == "" {
		return Grant{}, s.authFail(op, "missing credentials")
	}

	u, err := s.users.FindByLogin(ctx, identifier)
	if err != nil {
		if !identity.IsNotFound(err) {
			return Grant{}, fmt.Errorf("%s: %w", op, err)
		}
		if _, verr := s.hasher.Verify(ctx, plain, s.dummyHash); verr != nil {
			return Grant{}, fmt.Errorf("%s: %w", op, verr)
		}
		return Grant{}, s.authFail(op, "unknown account")
	}

	ok, err := s.hasher.Verify(ctx, plain, u.PasswordHash)
	if err != nil {
		return Grant{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return Grant{}, s.authFail(op, "password mismatch")
	}
	if !u.Enabled {
		return Grant{}, s.authFail(op, "account disabled")
	}

	s.rehashIfNeeded(ctx, u, plain)

	return s.issue(ctx, op, u)
}

// Register creates an account and returns an already-authenticated grant.
func (s *Service) Register(ctx context.Context, in RegisterInput) (g Grant, err error) {
	const op = "session.Register"
	defer func() { s.metrics.ObserveOp(op, err) }()

	email := strings.TrimSpace(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return Grant{}, ValidationError{Op: op, Violations: []string{"email_invalid"}}
	}
	if in.Username != nil && strings.Contains(*in.Username, "@") {
		return Grant{}, ValidationError{Op: op, Violations: []string{"username_invalid"}}
	}

	switch _, err := s.users.FindByEmail(ctx, email); {
	case err == nil:
		return Grant{}, ConflictError{Op: op, Field: "email"}
	case !identity.IsNotFound(err):
		return Grant{}, fmt.Errorf("%s: %w", op, err)
	}

	if st := s.hasher.CheckStrength(in.Password); !st.OK {
		return Grant{}, ValidationError{Op: op, Violations: violationStrings(st.Violations)}
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return Grant{}, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	u, err := s.users.Create(ctx, identity.CreateUserInput{
		Email:        email,
		Username:     in.Username,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Now:          now,
	})
	if err != nil {
		var ce identity.ConflictError
		switch {
		case errors.As(err, &ce):
			// Lost a race with a concurrent registration.
			return Grant{}, ConflictError{Op: op, Field: ce.Field}
		case identity.IsInvalidInput(err):
			return Grant{}, ValidationError{Op: op, Violations: []string{"invalid_input"}}
		default:
			return Grant{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := s.prefs.BootstrapPreferences(ctx, u.ID, now); err != nil {
		s.log.Warn("auth.register.preferences.fail", "user_id", u.ID, "err", err)
	}

	s.log.Info("auth.register.success", "user_id", u.ID)
	return s.issue(ctx, op, u)
}

// issue mints an access/refresh pair for u and persists the refresh digest.
func (s *Service) issue(ctx context.Context, op string, u identity.User) (Grant, error) {
	now := s.now()
	id := codec.Identity{OwnerID: u.ID, Email: u.Email, IsAdmin: u.IsAdmin}

	access, accessExp, err := s.tokens.IssueAccess(id, now)
	if err != nil {
		return Grant{}, fmt.Errorf("%s: issue access: %w", op, err)
	}
	refresh, rec, err := s.newRefresh(ctx, id, now, "")
	if err != nil {
		return Grant{}, fmt.Errorf("%s: %w", op, err)
	}

	pu := publicUser(u)
	return Grant{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		ExpiresIn:        expiresIn(accessExp, now),
		RefreshToken:     refresh,
		RefreshExpiresAt: rec.ExpiresAt,
		SessionID:        rec.ID,
		User:             &pu,
	}, nil
}

// newRefresh mints a refresh token and stores its record. With a non-empty
// replaces, the record for that digest is revoked in the same store call.
func (s *Service) newRefresh(ctx context.Context, id codec.Identity, now time.Time, replaces string) (string, Record, error) {
	refresh, _, err := s.tokens.IssueRefresh(id, now)
	if err != nil {
		return "", Record{}, fmt.Errorf("issue refresh: %w", err)
	}
	// The record lives exactly as long as the token says it does.
	exp, ok := s.tokens.ExpiryOf(refresh)
	if !ok {
		return "", Record{}, errors.New("issue refresh: token has no expiry")
	}

	in := NewRecord{
		OwnerID:     id.OwnerID,
		TokenDigest: s.digest.Digest(refresh),
		ExpiresAt:   exp,
		CreatedAt:   now,
	}

	var rec Record
	if replaces == "" {
		rec, err = s.store.Create(ctx, in)
	} else {
		rec, err = s.store.Replace(ctx, replaces, in)
	}
	if err != nil {
		return "", Record{}, err
	}
	return refresh, rec, nil
}

// Refresh exchanges a live refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (g Grant, err error) {
	const op = "session.Refresh"
	defer func() { s.metrics.ObserveOp(op, err) }()

	tok := strings.TrimSpace(refreshToken)
	if !s.validToken(tok) {
		return Grant{}, s.authFail(op, "malformed token")
	}
	digest := s.digest.Digest(tok)

	rec, err := s.store.FindByDigest(ctx, digest)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return Grant{}, s.authFail(op, "unknown token")
		}
		return Grant{}, fmt.Errorf("%s: %w", op, err)
	}
	if rec.Revoked {
		return Grant{}, s.authFail(op, "revoked")
	}

	now := s.now()
	if !now.Before(rec.ExpiresAt) {
		if err := s.store.Revoke(ctx, digest); err != nil {
			s.log.Warn("auth.refresh.expire_revoke.fail", "token_id", rec.ID, "err", err)
		}
		return Grant{}, s.authFail(op, "expired")
	}

	claims, err := s.tokens.VerifyType(tok, codec.TypeRefresh, now)
	if err != nil {
		return Grant{}, s.authFail(op, "invalid signature")
	}
	if claims.OwnerID != rec.OwnerID {
		return Grant{}, s.authFail(op, "owner mismatch")
	}

	u, err := s.users.FindByID(ctx, rec.OwnerID)
	if err != nil {
		if identity.IsNotFound(err) {
			return Grant{}, s.authFail(op, "owner missing")
		}
		return Grant{}, fmt.Errorf("%s: %w", op, err)
	}
	if !u.Enabled {
		return Grant{}, s.authFail(op, "account disabled")
	}

	// Claims come from the directory, not the old token, so an email or
	// admin change shows up on the next refresh.
	id := codec.Identity{OwnerID: u.ID, Email: u.Email, IsAdmin: u.IsAdmin}
	access, accessExp, err := s.tokens.IssueAccess(id, now)
	if err != nil {
		return Grant{}, fmt.Errorf("%s: issue access: %w", op, err)
	}

	g = Grant{
		AccessToken:     access,
		AccessExpiresAt: accessExp,
		ExpiresIn:       expiresIn(accessExp, now),
		SessionID:       rec.ID,
	}

	if s.cfg.RotateRefresh {
		refresh, newRec, err := s.newRefresh(ctx, id, now, digest)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				return Grant{}, s.authFail(op, "rotated concurrently")
			}
			return Grant{}, fmt.Errorf("%s: %w", op, err)
		}
		g.RefreshToken = refresh
		g.RefreshExpiresAt = newRec.ExpiresAt
		g.SessionID = newRec.ID
	}

	return g, nil
}

// Logout revokes the record behind refreshToken. Unknown, expired and
// already revoked tokens succeed the same way; only store failures are
// returned.
func (s *Service) Logout(ctx context.Context, refreshToken string) (err error) {
	const op = "session.Logout"
	defer func() { s.metrics.ObserveOp(op, err) }()

	tok := strings.TrimSpace(refreshToken)
	if !s.validToken(tok) {
		return nil
	}
	if err := s.store.Revoke(ctx, s.digest.Digest(tok)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// LogoutAll revokes every refresh token of ownerID.
func (s *Service) LogoutAll(ctx context.Context, ownerID string) (err error) {
	const op = "session.LogoutAll"
	defer func() { s.metrics.ObserveOp(op, err) }()

	if err := s.store.RevokeAllForOwner(ctx, ownerID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("auth.logout_all", "user_id", ownerID)
	return nil
}

// ChangePassword replaces the password and revokes every refresh token of
// the owner, including the one the caller is using.
func (s *Service) ChangePassword(ctx context.Context, ownerID, current, next string) (err error) {
	const op = "session.ChangePassword"
	defer func() { s.metrics.ObserveOp(op, err) }()

	u, err := s.users.FindByID(ctx, ownerID)
	if err != nil {
		if identity.IsNotFound(err) {
			return s.authFail(op, "owner missing")
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	ok, err := s.hasher.Verify(ctx, current, u.PasswordHash)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return s.authFail(op, "password mismatch")
	}

	if st := s.hasher.CheckStrength(next); !st.OK {
		return ValidationError{Op: op, Violations: violationStrings(st.Violations)}
	}

	hash, err := s.hasher.Hash(ctx, next)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.users.UpdatePasswordHash(ctx, u.ID, hash, s.now()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.store.RevokeAllForOwner(ctx, u.ID); err != nil {
		return fmt.Errorf("%s: revoke: %w", op, err)
	}
	s.log.Info("auth.password.changed", "user_id", u.ID)
	return nil
}

// Authenticate verifies an access token and re-checks that its owner still
// exists and is enabled.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (codec.Claims, error) {
	const op = "session.Authenticate"

	tok := strings.TrimSpace(accessToken)
	if !s.validToken(tok) {
		return codec.Claims{}, AuthenticationError{Op: op, Reason: "malformed token"}
	}

	claims, err := s.tokens.VerifyType(tok, codec.TypeAccess, s.now())
	if err != nil {
		return codec.Claims{}, AuthenticationError{Op: op, Reason: "invalid token"}
	}

	u, err := s.users.FindByID(ctx, claims.OwnerID)
	if err != nil {
		if identity.IsNotFound(err) {
			return codec.Claims{}, AuthenticationError{Op: op, Reason: "owner missing"}
		}
		return codec.Claims{}, fmt.Errorf("%s: %w", op, err)
	}
	if !u.Enabled {
		return codec.Claims{}, AuthenticationError{Op: op, Reason: "account disabled"}
	}
	return claims, nil
}

// ValidateToken is Authenticate reduced to a bool.
func (s *Service) ValidateToken(ctx context.Context, accessToken string) bool {
	_, err := s.Authenticate(ctx, accessToken)
	if err != nil && KindOf(err) == KindInternal {
		s.log.Error("auth.validate.fail", "err", err)
	}
	return err == nil
}

// ListActiveSessions returns the owner's live sessions, oldest first.
func (s *Service) ListActiveSessions(ctx context.Context, ownerID string) (_ []SessionView, err error) {
	const op = "session.ListActiveSessions"
	defer func() { s.metrics.ObserveOp(op, err) }()

	recs, err := s.store.ListActiveForOwner(ctx, ownerID, s.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := make([]SessionView, 0, len(recs))
	for _, r := range recs {
		out = append(out, SessionView{TokenID: r.ID, CreatedAt: r.CreatedAt, ExpiresAt: r.ExpiresAt})
	}
	return out, nil
}

// RevokeSession revokes one of the owner's sessions by record id.
func (s *Service) RevokeSession(ctx context.Context, ownerID, tokenID string) (err error) {
	const op = "session.RevokeSession"
	defer func() { s.metrics.ObserveOp(op, err) }()

	found, err := s.store.RevokeByID(ctx, ownerID, tokenID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return NotFoundError{Op: op, Resource: "session"}
	}
	return nil
}

// DisableAccount blocks login and refresh for ownerID and revokes every
// refresh token it holds.
func (s *Service) DisableAccount(ctx context.Context, ownerID string) (err error) {
	const op = "session.DisableAccount"
	defer func() { s.metrics.ObserveOp(op, err) }()

	if err := s.users.SetEnabled(ctx, ownerID, false, s.now()); err != nil {
		if identity.IsNotFound(err) {
			return NotFoundError{Op: op, Resource: "user"}
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.store.RevokeAllForOwner(ctx, ownerID); err != nil {
		return fmt.Errorf("%s: revoke: %w", op, err)
	}
	s.log.Info("auth.account.disabled", "user_id", ownerID)
	return nil
}

// Profile returns the public projection of ownerID.
func (s *Service) Profile(ctx context.Context, ownerID string) (PublicUser, error) {
	const op = "session.Profile"

	u, err := s.users.FindByID(ctx, ownerID)
	if err != nil {
		if identity.IsNotFound(err) {
			return PublicUser{}, NotFoundError{Op: op, Resource: "user"}
		}
		return PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}
	return publicUser(u), nil
}

// SweepExpiredTokens deletes expired records.
func (s *Service) SweepExpiredTokens(ctx context.Context) (n int64, err error) {
	const op = "session.SweepExpiredTokens"
	defer func() { s.metrics.ObserveOp(op, err) }()

	n, err = s.store.SweepExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.ObserveSweep(n)
	return n, nil
}

// rehashIfNeeded upgrades a legacy or under-cost digest after a successful
// login. Failures are logged; the login itself already succeeded.
func (s *Service) rehashIfNeeded(ctx context.Context, u identity.User, plain string) {
	if !s.hasher.NeedsRehash(u.PasswordHash) {
		return
	}
	h, err := s.hasher.Hash(ctx, plain)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, u.ID, h, s.now())
	}
	if err != nil {
		s.log.Warn("auth.login.rehash.fail", "user_id", u.ID, "err", err)
		return
	}
	s.log.Info("auth.login.rehashed", "user_id", u.ID)
}

func violationStrings(vs []password.Violation) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}
