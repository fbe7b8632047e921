package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// HMACEnvKey is the env var that carries the token HMAC secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	HMACEnvKey = "AUTHCORE_TOKEN_HMAC_KEY"

	// MinHMACKeyBytes is the shortest key accepted in enforced mode.
	MinHMACKeyBytes = 32
)

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// Digester maps a refresh token to its storage digest.
type Digester struct {
	key []byte
}

// NewDigester returns a Digester. A nil or empty key selects plain SHA-256.
func NewDigester(key []byte) Digester {
	if len(key) == 0 {
		return Digester{}
	}
	k := make([]byte, len(key))
	copy(k, key)
	return Digester{key: k}
}

// ParseDigester builds a Digester from a configured key (surrounding spaces
// ignored). With requireHMAC, an empty key is ErrHMACKeyMissing and one
// shorter than MinHMACKeyBytes is ErrHMACKeyTooShort.
func ParseDigester(key string, requireHMAC bool) (Digester, error) {
	raw := strings.TrimSpace(key)
	if raw == "" {
		if requireHMAC {
			return Digester{}, ErrHMACKeyMissing
		}
		return Digester{}, nil
	}
	if requireHMAC && len(raw) < MinHMACKeyBytes {
		return Digester{}, ErrHMACKeyTooShort
	}
	return NewDigester([]byte(raw)), nil
}

// Keyed reports whether HMAC mode is active.
func (d Digester) Keyed() bool { return len(d.key) > 0 }

// Digest returns the hex digest of tok.
func (d Digester) Digest(tok string) string {
	if len(d.key) == 0 {
		return HashSHA256Hex(tok)
	}
	return HashHMACSHA256Hex(tok, d.key)
}
