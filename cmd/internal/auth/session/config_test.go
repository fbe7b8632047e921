package session

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsetSessionEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"AUTHCORE_ROTATE_REFRESH",
		"AUTHCORE_SWEEP_INTERVAL",
		"AUTHCORE_REQUIRE_TOKEN_HMAC",
		"AUTHCORE_TOKEN_HMAC_KEY",
		"AUTHCORE_MAX_TOKEN_LENGTH",
	} {
		if v, ok := os.LookupEnv(k); ok {
			t.Cleanup(func() { _ = os.Setenv(k, v) })
		}
		_ = os.Unsetenv(k)
	}
}

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	unsetSessionEnv(t)

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	unsetSessionEnv(t)
	t.Setenv("AUTHCORE_ROTATE_REFRESH", "true")
	t.Setenv("AUTHCORE_SWEEP_INTERVAL", "5m")
	t.Setenv("AUTHCORE_REQUIRE_TOKEN_HMAC", "true")
	t.Setenv("AUTHCORE_TOKEN_HMAC_KEY", "0123456789abcdef0123456789abcdef")

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.RotateRefresh)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.True(t, cfg.RequireTokenHMAC)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", cfg.TokenHMACKey)
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	unsetSessionEnv(t)
	t.Setenv("AUTHCORE_MAX_TOKEN_LENGTH", "10")

	_, err := LoadConfigFromEnv()
	assert.ErrorIs(t, err, ErrConfig)

	t.Setenv("AUTHCORE_MAX_TOKEN_LENGTH", "4096")
	t.Setenv("AUTHCORE_SWEEP_INTERVAL", "soon")
	_, err = LoadConfigFromEnv()
	assert.ErrorIs(t, err, ErrConfig)
}
