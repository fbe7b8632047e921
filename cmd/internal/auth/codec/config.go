package codec

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// MinSecretBytes is the shortest HS256 signing secret accepted.
const MinSecretBytes = 32

// Config controls token signing and lifetimes.
type Config struct {
	// Issuer is written to and required in the "iss" claim.
	Issuer string `env:"AUTHCORE_AUTH_ISSUER" envDefault:"authcore"`

	// Secret is the HS256 signing key.
	Secret string `env:"AUTHCORE_JWT_SECRET"`

	AccessTTL  time.Duration `env:"AUTHCORE_AUTH_ACCESS_TTL"  envDefault:"1h"`
	RefreshTTL time.Duration `env:"AUTHCORE_AUTH_REFRESH_TTL" envDefault:"336h"`
}

// DefaultConfig returns the default lifetimes with no secret set.
func DefaultConfig() Config {
	return Config{
		Issuer:     "authcore",
		AccessTTL:  time.Hour,
		RefreshTTL: 14 * 24 * time.Hour,
	}
}

// LoadConfigFromEnv reads Config from the environment.
//
// Required:
//   - AUTHCORE_JWT_SECRET (at least 32 bytes)
//
// Optional:
//   - AUTHCORE_AUTH_ISSUER
//   - AUTHCORE_AUTH_ACCESS_TTL, AUTHCORE_AUTH_REFRESH_TTL (Go durations)
func LoadConfigFromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the secret length and lifetime ordering.
func (c Config) Validate() error {
	if len(c.Secret) < MinSecretBytes {
		return fmt.Errorf("%w: secret must be at least %d bytes", ErrConfig, MinSecretBytes)
	}
	if c.Issuer == "" {
		return fmt.Errorf("%w: issuer is required", ErrConfig)
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return fmt.Errorf("%w: ttl must be positive", ErrConfig)
	}
	if c.RefreshTTL < c.AccessTTL {
		return fmt.Errorf("%w: refresh ttl shorter than access ttl", ErrConfig)
	}
	return nil
}
