package password

import (
	"fmt"
	"runtime"

	"github.com/caarlos0/env/v11"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy controls password strength rules.
type Policy struct {
	MinLength     int
	MaxLength     int
	RequireLetter bool
	RequireDigit  bool
	// If true, also reject a short list of trivially guessable passwords.
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Params Argon2idParams
	Policy Policy
	// Concurrency caps simultaneous Hash/Verify calls made through a Pool.
	Concurrency int
}

// DefaultConfig returns the baseline used when no env overrides are present.
func DefaultConfig() Config {
	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024, // 64 MiB
			Iterations:  3,
			Parallelism: uint8(defaultThreads()), // #nosec G115 -- clamped to [1..4].
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength:     6,
			MaxLength:     255,
			RequireLetter: true,
			RequireDigit:  true,
		},
		Concurrency: runtime.NumCPU(),
	}
}

// CPU-aware parallelism clamped to [1..4] to keep container usage predictable.
func defaultThreads() int {
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}
	return threads
}

// passwordEnv holds raw env values; a zero value means "keep the default".
type passwordEnv struct {
	MinLen         int    `env:"AUTHCORE_PASSWORD_MIN_LEN"`
	MaxLen         int    `env:"AUTHCORE_PASSWORD_MAX_LEN"`
	RequireLetter  *bool  `env:"AUTHCORE_PASSWORD_REQUIRE_LETTER"`
	RequireDigit   *bool  `env:"AUTHCORE_PASSWORD_REQUIRE_DIGIT"`
	RejectVeryWeak bool   `env:"AUTHCORE_PASSWORD_REJECT_VERY_WEAK"`
	MemoryKiB      uint32 `env:"AUTHCORE_ARGON2_MEMORY_KIB"`
	Iterations     uint32 `env:"AUTHCORE_ARGON2_ITERATIONS"`
	Parallelism    uint8  `env:"AUTHCORE_ARGON2_PARALLELISM"`
	SaltLen        uint32 `env:"AUTHCORE_ARGON2_SALT_LEN"`
	KeyLen         uint32 `env:"AUTHCORE_ARGON2_KEY_LEN"`
	Concurrency    int    `env:"AUTHCORE_HASH_CONCURRENCY"`
}

// FromEnv loads config from environment variables on top of DefaultConfig.
//
// Env surface:
// - AUTHCORE_PASSWORD_MIN_LEN, AUTHCORE_PASSWORD_MAX_LEN
// - AUTHCORE_PASSWORD_REQUIRE_LETTER, AUTHCORE_PASSWORD_REQUIRE_DIGIT
// - AUTHCORE_PASSWORD_REJECT_VERY_WEAK
// - AUTHCORE_ARGON2_MEMORY_KIB, AUTHCORE_ARGON2_ITERATIONS, AUTHCORE_ARGON2_PARALLELISM
// - AUTHCORE_ARGON2_SALT_LEN, AUTHCORE_ARGON2_KEY_LEN
// - AUTHCORE_HASH_CONCURRENCY
func FromEnv() (Config, error) {
	raw, err := env.ParseAs[passwordEnv]()
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	cfg := DefaultConfig()
	if raw.MinLen != 0 {
		cfg.Policy.MinLength = raw.MinLen
	}
	if raw.MaxLen != 0 {
		cfg.Policy.MaxLength = raw.MaxLen
	}
	if raw.RequireLetter != nil {
		cfg.Policy.RequireLetter = *raw.RequireLetter
	}
	if raw.RequireDigit != nil {
		cfg.Policy.RequireDigit = *raw.RequireDigit
	}
	cfg.Policy.RejectVeryWeak = raw.RejectVeryWeak
	if raw.MemoryKiB != 0 {
		cfg.Params.MemoryKiB = raw.MemoryKiB
	}
	if raw.Iterations != 0 {
		cfg.Params.Iterations = raw.Iterations
	}
	if raw.Parallelism != 0 {
		cfg.Params.Parallelism = raw.Parallelism
	}
	if raw.SaltLen != 0 {
		cfg.Params.SaltLength = raw.SaltLen
	}
	if raw.KeyLen != 0 {
		cfg.Params.KeyLength = raw.KeyLen
	}
	if raw.Concurrency != 0 {
		cfg.Concurrency = raw.Concurrency
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every field is inside its supported range.
func (c Config) Validate() error {
	checks := []struct {
		name     string
		val      int64
		min, max int64
	}{
		{"AUTHCORE_PASSWORD_MIN_LEN", int64(c.Policy.MinLength), 1, 1024},
		{"AUTHCORE_PASSWORD_MAX_LEN", int64(c.Policy.MaxLength), 1, 4096},
		{"AUTHCORE_ARGON2_MEMORY_KIB", int64(c.Params.MemoryKiB), 8 * 1024, 1024 * 1024}, // 8 MiB .. 1 GiB
		{"AUTHCORE_ARGON2_ITERATIONS", int64(c.Params.Iterations), 1, 20},
		{"AUTHCORE_ARGON2_PARALLELISM", int64(c.Params.Parallelism), 1, 64},
		{"AUTHCORE_ARGON2_SALT_LEN", int64(c.Params.SaltLength), 8, 64},
		{"AUTHCORE_ARGON2_KEY_LEN", int64(c.Params.KeyLength), 16, 64},
		{"AUTHCORE_HASH_CONCURRENCY", int64(c.Concurrency), 1, 1024},
	}
	for _, ch := range checks {
		if ch.val < ch.min || ch.val > ch.max {
			return fmt.Errorf("%w: %s out of range [%d..%d]", ErrConfig, ch.name, ch.min, ch.max)
		}
	}

	if c.Policy.MinLength > c.Policy.MaxLength {
		return fmt.Errorf(
			"%w: min_len(%d) > max_len(%d)",
			ErrConfig,
			c.Policy.MinLength,
			c.Policy.MaxLength,
		)
	}
	return nil
}
