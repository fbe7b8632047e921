package codec

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Type distinguishes access tokens from refresh tokens.
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

// Identity is the part of the claims supplied by the caller.
type Identity struct {
	OwnerID string
	Email   string
	IsAdmin bool
}

// Claims is the verified content of a token.
type Claims struct {
	Identity
	Type      Type
	ID        string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type jwtClaims struct {
	Email   string `json:"email"`
	IsAdmin bool   `json:"adm,omitempty"`
	Type    Type   `json:"typ"`
	jwt.RegisteredClaims
}

// JWT issues and verifies HS256 tokens.
type JWT struct {
	issuer     string
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// New builds a JWT codec. The config must pass Validate.
func New(cfg Config) (*JWT, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &JWT{
		issuer:     cfg.Issuer,
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}, nil
}

// IssueAccess signs a short-lived access token.
func (j *JWT) IssueAccess(id Identity, now time.Time) (string, time.Time, error) {
	return j.issue(id, TypeAccess, j.accessTTL, now)
}

// IssueRefresh signs a long-lived refresh token.
func (j *JWT) IssueRefresh(id Identity, now time.Time) (string, time.Time, error) {
	return j.issue(id, TypeRefresh, j.refreshTTL, now)
}

func (j *JWT) issue(id Identity, typ Type, ttl time.Duration, now time.Time) (string, time.Time, error) {
	iat := jwt.NewNumericDate(now)
	exp := jwt.NewNumericDate(now.Add(ttl))

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		Email:   id.Email,
		IsAdmin: id.IsAdmin,
		Type:    typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   id.OwnerID,
			ID:        uuid.NewString(),
			IssuedAt:  iat,
			ExpiresAt: exp,
		},
	})

	signed, err := tok.SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	// NumericDate is second-precision; return what is actually in the token.
	return signed, exp.Time, nil
}

// Verify checks signature, algorithm, issuer and expiry at now, and returns
// the claims. Every failure is ErrInvalidToken.
func (j *JWT) Verify(token string, now time.Time) (Claims, error) {
	// Fresh parser per call so the time func never leaks between verifies.
	p := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	var c jwtClaims
	parsed, err := p.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return j.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if c.Subject == "" || (c.Type != TypeAccess && c.Type != TypeRefresh) {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{
		Identity: Identity{
			OwnerID: c.Subject,
			Email:   c.Email,
			IsAdmin: c.IsAdmin,
		},
		Type:      c.Type,
		ID:        c.ID,
		Issuer:    c.Issuer,
		ExpiresAt: c.ExpiresAt.Time,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	return out, nil
}

// VerifyType is Verify plus a check that the token is of kind typ.
func (j *JWT) VerifyType(token string, typ Type, now time.Time) (Claims, error) {
	c, err := j.Verify(token, now)
	if err != nil {
		return Claims{}, err
	}
	if c.Type != typ {
		return Claims{}, ErrInvalidToken
	}
	return c, nil
}

// ExpiryOf reads the "exp" claim without verifying the signature.
func (j *JWT) ExpiryOf(token string) (time.Time, bool) {
	var c jwtClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return time.Time{}, false
	}
	if c.ExpiresAt == nil {
		return time.Time{}, false
	}
	return c.ExpiresAt.Time, true
}
