package app

import (
	"errors"
	"fmt"

	"authcore/cmd/internal/auth/session"
	"authcore/cmd/security/token"
)

// newDigester builds the refresh-token digester and enforces the HMAC policy
// at startup. Falling back to plain SHA-256 when HMAC is required is refused.
func newDigester(cfg session.Config) (token.Digester, error) {
	requireHMAC := cfg.RequireTokenHMAC
	d, err := token.ParseDigester(cfg.TokenHMACKey, requireHMAC)
	switch {
	case err == nil:
	case errors.Is(err, token.ErrHMACKeyMissing):
		return token.Digester{}, fmt.Errorf("security policy: AUTHCORE_REQUIRE_TOKEN_HMAC=true but %s is missing", token.HMACEnvKey)
	case errors.Is(err, token.ErrHMACKeyTooShort):
		return token.Digester{}, fmt.Errorf("security policy: %s is too short (min %d bytes)", token.HMACEnvKey, token.MinHMACKeyBytes)
	default:
		return token.Digester{}, err
	}

	if requireHMAC && !d.Keyed() {
		return token.Digester{}, errors.New("security policy: token digester is not in HMAC mode")
	}
	return d, nil
}
