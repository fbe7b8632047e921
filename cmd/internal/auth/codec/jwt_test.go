package codec

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testCodec(t *testing.T) *JWT {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Secret = strings.Repeat("s", 32)
	j, err := New(cfg)
	require.NoError(t, err)
	return j
}

func TestIssueAndVerifyAccess(t *testing.T) {
	j := testCodec(t)
	id := Identity{OwnerID: "01HXOWNER", Email: "alice@example.com", IsAdmin: true}

	tok, exp, err := j.IssueAccess(id, t0)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Hour), exp)

	c, err := j.Verify(tok, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, id, c.Identity)
	assert.Equal(t, TypeAccess, c.Type)
	assert.Equal(t, "authcore", c.Issuer)
	assert.Equal(t, t0, c.IssuedAt.UTC())
	assert.Equal(t, exp, c.ExpiresAt.UTC())
	assert.NotEmpty(t, c.ID)
}

func TestRefreshLifetime(t *testing.T) {
	j := testCodec(t)

	tok, exp, err := j.IssueRefresh(Identity{OwnerID: "u1"}, t0)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(14*24*time.Hour), exp)

	got, ok := j.ExpiryOf(tok)
	require.True(t, ok)
	assert.True(t, exp.Equal(got))
}

func TestVerify_Expired(t *testing.T) {
	j := testCodec(t)

	tok, exp, err := j.IssueAccess(Identity{OwnerID: "u1"}, t0)
	require.NoError(t, err)

	_, err = j.Verify(tok, exp.Add(-time.Second))
	require.NoError(t, err)

	_, err = j.Verify(tok, exp.Add(time.Second))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Tampered(t *testing.T) {
	j := testCodec(t)

	tok, _, err := j.IssueAccess(Identity{OwnerID: "u1"}, t0)
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	bad := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = j.Verify(bad, t0)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = j.Verify("not.a.token", t0)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = j.Verify("", t0)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_OtherSecret(t *testing.T) {
	j := testCodec(t)

	cfg := DefaultConfig()
	cfg.Secret = strings.Repeat("x", 32)
	other, err := New(cfg)
	require.NoError(t, err)

	tok, _, err := other.IssueAccess(Identity{OwnerID: "u1"}, t0)
	require.NoError(t, err)

	_, err = j.Verify(tok, t0)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RejectsNoneAlg(t *testing.T) {
	j := testCodec(t)

	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwtClaims{
		Type: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "authcore",
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(t0.Add(time.Hour)),
		},
	})
	s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = j.Verify(s, t0)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyType(t *testing.T) {
	j := testCodec(t)

	refresh, _, err := j.IssueRefresh(Identity{OwnerID: "u1"}, t0)
	require.NoError(t, err)

	_, err = j.VerifyType(refresh, TypeAccess, t0)
	assert.ErrorIs(t, err, ErrInvalidToken)

	c, err := j.VerifyType(refresh, TypeRefresh, t0)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.OwnerID)
}

func TestTokensAreUniqueWithinOneSecond(t *testing.T) {
	j := testCodec(t)
	id := Identity{OwnerID: "u1", Email: "a@b.c"}

	a, _, err := j.IssueRefresh(id, t0)
	require.NoError(t, err)
	b, _, err := j.IssueRefresh(id, t0)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestExpiryOf_Garbage(t *testing.T) {
	j := testCodec(t)

	_, ok := j.ExpiryOf("garbage")
	assert.False(t, ok)
}
