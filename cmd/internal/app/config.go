package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config contains all runtime configuration loaded from environment variables.
// Component settings (password policy, token lifetimes, session knobs) are
// loaded by their own packages.
type Config struct {
	HTTPAddr  string `env:"AUTHCORE_HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	LogLevel  string `env:"AUTHCORE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"AUTHCORE_LOG_FORMAT" envDefault:"json"`
	LogColor  bool   `env:"AUTHCORE_LOG_COLOR" envDefault:"false"`

	ReadHeaderTimeout time.Duration `env:"AUTHCORE_HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"AUTHCORE_HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout      time.Duration `env:"AUTHCORE_HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `env:"AUTHCORE_HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	MaxHeaderBytes    int           `env:"AUTHCORE_HTTP_MAX_HEADER_BYTES" envDefault:"1048576"`

	// DatabaseURL selects PostgreSQL for users and sessions.
	DatabaseURL string `env:"AUTHCORE_DATABASE_URL"`
	DBSchema    string `env:"AUTHCORE_DB_SCHEMA" envDefault:"public"`
	DBMaxConns  int32  `env:"AUTHCORE_DB_MAX_CONNS" envDefault:"10"`
	DBMinConns  int32  `env:"AUTHCORE_DB_MIN_CONNS" envDefault:"0"`

	// SQLitePath selects SQLite when DatabaseURL is empty.
	SQLitePath string `env:"AUTHCORE_SQLITE_PATH"`

	// RedisAddr moves refresh-token records to Redis. Users stay in the
	// relational (or in-memory) directory.
	RedisAddr     string `env:"AUTHCORE_REDIS_ADDR"`
	RedisPassword string `env:"AUTHCORE_REDIS_PASSWORD"`
	RedisDB       int    `env:"AUTHCORE_REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"AUTHCORE_REDIS_PREFIX" envDefault:"authcore:"`

	// AutoMigrate applies embedded migrations at startup.
	AutoMigrate bool `env:"AUTHCORE_AUTO_MIGRATE" envDefault:"true"`

	// If true, /readyz returns 503 unless a persistent backend is configured and reachable.
	ReadinessRequireDB bool `env:"AUTHCORE_READINESS_REQUIRE_DB" envDefault:"false"`

	MetricsEnabled bool `env:"AUTHCORE_METRICS_ENABLED" envDefault:"true"`
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the runtime cannot serve.
func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "json", "pretty":
	default:
		return fmt.Errorf("config: AUTHCORE_LOG_FORMAT must be json or pretty")
	}
	if c.DatabaseURL != "" && c.SQLitePath != "" {
		return fmt.Errorf("config: set only one of AUTHCORE_DATABASE_URL and AUTHCORE_SQLITE_PATH")
	}
	if c.DBMinConns < 0 || c.DBMaxConns < 0 || (c.DBMaxConns > 0 && c.DBMinConns > c.DBMaxConns) {
		return fmt.Errorf("config: invalid db pool bounds")
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("config: AUTHCORE_REDIS_DB must be >= 0")
	}
	return nil
}

// backendName names the user directory backend for logs.
func (c Config) backendName() string {
	switch {
	case c.DatabaseURL != "":
		return "postgres"
	case c.SQLitePath != "":
		return "sqlite"
	default:
		return "memory"
	}
}
