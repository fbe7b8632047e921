package authapi

import (
	"os"
	"testing"
)

func TestLoadConfigFromEnv_ClampsBodyLimit(t *testing.T) {
	_ = os.Unsetenv("AUTHCORE_AUTH_TRUST_PROXY")
	t.Setenv("AUTHCORE_AUTH_MAX_BODY_BYTES", "-5")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.MaxBodyBytes != 1<<20 {
		t.Fatalf("MaxBodyBytes=%d, want %d", cfg.MaxBodyBytes, 1<<20)
	}
	if cfg.TrustProxy {
		t.Fatalf("TrustProxy should default to false")
	}
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	t.Setenv("AUTHCORE_AUTH_TRUST_PROXY", "maybe")

	if _, err := LoadConfigFromEnv(); err == nil {
		t.Fatalf("expected error for non-bool AUTHCORE_AUTH_TRUST_PROXY")
	}
}
