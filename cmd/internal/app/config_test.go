package app

import (
	"os"
	"testing"
	"time"
)

func clearAppEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"AUTHCORE_HTTP_ADDR", "AUTHCORE_LOG_LEVEL", "AUTHCORE_LOG_FORMAT",
		"AUTHCORE_DATABASE_URL", "AUTHCORE_SQLITE_PATH", "AUTHCORE_REDIS_ADDR",
		"AUTHCORE_DB_MAX_CONNS", "AUTHCORE_DB_MIN_CONNS", "AUTHCORE_HTTP_READ_TIMEOUT",
	} {
		if v, ok := os.LookupEnv(k); ok {
			t.Cleanup(func() { _ = os.Setenv(k, v) })
		}
		_ = os.Unsetenv(k)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearAppEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPAddr != "0.0.0.0:8080" {
		t.Fatalf("HTTPAddr=%q", cfg.HTTPAddr)
	}
	if cfg.LogFormat != "json" {
		t.Fatalf("LogFormat=%q", cfg.LogFormat)
	}
	if cfg.ReadTimeout != 15*time.Second {
		t.Fatalf("ReadTimeout=%v", cfg.ReadTimeout)
	}
	if cfg.DBSchema != "public" {
		t.Fatalf("DBSchema=%q", cfg.DBSchema)
	}
	if !cfg.AutoMigrate || !cfg.MetricsEnabled {
		t.Fatalf("expected migrations and metrics on by default: %+v", cfg)
	}
	if got := cfg.backendName(); got != "memory" {
		t.Fatalf("backendName=%q want=memory", got)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearAppEnv(t)
	t.Setenv("AUTHCORE_SQLITE_PATH", "/tmp/authcore.db")
	t.Setenv("AUTHCORE_HTTP_READ_TIMEOUT", "3s")
	t.Setenv("AUTHCORE_LOG_FORMAT", "pretty")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got := cfg.backendName(); got != "sqlite" {
		t.Fatalf("backendName=%q want=sqlite", got)
	}
	if cfg.ReadTimeout != 3*time.Second {
		t.Fatalf("ReadTimeout=%v", cfg.ReadTimeout)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"both databases": {"AUTHCORE_DATABASE_URL": "postgres://x", "AUTHCORE_SQLITE_PATH": "a.db"},
		"log format":     {"AUTHCORE_LOG_FORMAT": "xml"},
		"pool bounds":    {"AUTHCORE_DB_MAX_CONNS": "2", "AUTHCORE_DB_MIN_CONNS": "5"},
		"bad duration":   {"AUTHCORE_HTTP_READ_TIMEOUT": "fast"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			clearAppEnv(t)
			for k, v := range vars {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected error for %v", vars)
			}
		})
	}
}
