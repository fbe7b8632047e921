package session

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds session lifecycle knobs that are not token-codec settings.
type Config struct {
	// RotateRefresh issues a new refresh token on every refresh and revokes
	// the presented one. Off by default: the presented token stays valid
	// until it expires or is revoked.
	RotateRefresh bool `env:"AUTHCORE_ROTATE_REFRESH" envDefault:"false"`

	// SweepInterval is how often expired records are deleted. Zero disables
	// the background sweeper.
	SweepInterval time.Duration `env:"AUTHCORE_SWEEP_INTERVAL" envDefault:"1h"`

	// RequireTokenHMAC refuses to start without a TokenHMACKey of at least
	// 32 bytes.
	RequireTokenHMAC bool `env:"AUTHCORE_REQUIRE_TOKEN_HMAC" envDefault:"false"`

	// TokenHMACKey keys refresh-token digests. Empty means plain SHA-256.
	TokenHMACKey string `env:"AUTHCORE_TOKEN_HMAC_KEY"`

	// MaxTokenLength bounds presented tokens before any hashing or parsing.
	MaxTokenLength int `env:"AUTHCORE_MAX_TOKEN_LENGTH" envDefault:"4096"`
}

// DefaultConfig returns the configuration used when no env overrides are present.
func DefaultConfig() Config {
	return Config{
		SweepInterval:  time.Hour,
		MaxTokenLength: 4096,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional:
//   - AUTHCORE_ROTATE_REFRESH
//   - AUTHCORE_SWEEP_INTERVAL (Go duration; 0 disables)
//   - AUTHCORE_REQUIRE_TOKEN_HMAC, AUTHCORE_TOKEN_HMAC_KEY
//   - AUTHCORE_MAX_TOKEN_LENGTH
func LoadConfigFromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if cfg.SweepInterval < 0 {
		return Config{}, fmt.Errorf("%w: negative sweep interval", ErrConfig)
	}
	if cfg.MaxTokenLength < 256 || cfg.MaxTokenLength > 64*1024 {
		return Config{}, fmt.Errorf("%w: max token length out of range [256..65536]", ErrConfig)
	}
	return cfg, nil
}
