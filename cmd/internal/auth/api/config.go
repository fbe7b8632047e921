package authapi

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config controls HTTP-level auth behavior.
type Config struct {
	// TrustProxy makes audit records use X-Forwarded-For / X-Real-IP.
	TrustProxy bool `env:"AUTHCORE_AUTH_TRUST_PROXY" envDefault:"false"`

	// MaxBodyBytes caps JSON request bodies.
	MaxBodyBytes int64 `env:"AUTHCORE_AUTH_MAX_BODY_BYTES" envDefault:"1048576"`
}

// DefaultConfig returns the configuration used when no env overrides are present.
func DefaultConfig() Config {
	return Config{MaxBodyBytes: 1 << 20}
}

// LoadConfigFromEnv loads auth API config from environment variables.
func LoadConfigFromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("auth api config: %w", err)
	}
	// Clamp to keep the decoder bounded.
	if cfg.MaxBodyBytes <= 0 || cfg.MaxBodyBytes > 16<<20 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return cfg, nil
}
