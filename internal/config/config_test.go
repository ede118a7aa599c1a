package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gianverdum/member-registry/internal/database"
	"github.com/gianverdum/member-registry/internal/monitoring"
)

// clearEnv blanks the settings these tests assert on; empty values count as unset
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "PORT", "DB_DRIVER", "DB_HOST", "DATABASE_URL", "REDIS_ADDR",
		"RATE_LIMIT_RPS", "REQUIRE_FULL_NAME", "OTEL_METRICS_EXPORTER", "SERVICE_NAME",
		"ENABLE_OBSERVABILITY", "ENABLE_AUDIT", "DB_RETRY_ATTEMPTS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, database.DriverPostgres, cfg.Database.Driver)
	assert.True(t, cfg.Validation.RequireFullName)
	assert.Equal(t, monitoring.ExporterPrometheus, cfg.Metrics.ExporterType)
	assert.Equal(t, DefaultServiceName, cfg.Metrics.ServiceName)
	assert.Empty(t, cfg.Cache.Addr)
	assert.Zero(t, cfg.RateLimit.RPS)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DB_SQLITE_PATH", "/tmp/members.db")
	t.Setenv("RUN_MIGRATION", "true")
	t.Setenv("REQUIRE_FULL_NAME", "false")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "api-key=secret, tenant=members")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, database.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "/tmp/members.db", cfg.Database.DSN())
	assert.True(t, cfg.Database.RunMigration)
	assert.False(t, cfg.Validation.RequireFullName)
	assert.Equal(t, "localhost:6379", cfg.Cache.Addr)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 2.5, cfg.RateLimit.RPS)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
	assert.Equal(t, map[string]string{"api-key": "secret", "tenant": "members"}, cfg.Metrics.OTLPHeaders)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_InvalidValuesKeepDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_RETRY_ATTEMPTS", "many")
	t.Setenv("ENABLE_AUDIT", "maybe")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, database.DefaultConfig().RetryAttempts, cfg.Database.RetryAttempts)
	assert.True(t, cfg.Audit.Enabled)
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: "8100"
database:
  driver: sqlite
  sqlitePath: members-test.db
  retryDelay: 3s
cache:
  addr: redis:6379
metrics:
  exporter: none
logging:
  level: debug
  format: text
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	clearEnv(t)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "8200")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8200", cfg.Server.Port)
	assert.Equal(t, database.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "members-test.db", cfg.Database.SQLitePath)
	assert.Equal(t, 3*time.Second, cfg.Database.RetryDelay)
	assert.Equal(t, "redis:6379", cfg.Cache.Addr)
	assert.Equal(t, monitoring.ExporterNone, cfg.Metrics.ExporterType)
	assert.Equal(t, "text", cfg.Logging.Format)
	// untouched sections keep their defaults
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = "http" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"postgres without host", func(c *Config) { c.Database.Host = "" }},
		{"sqlite without path", func(c *Config) {
			c.Database.Driver = database.DriverSQLite
			c.Database.SQLitePath = ""
		}},
		{"unknown exporter", func(c *Config) { c.Metrics.ExporterType = "statsd" }},
		{"negative rate", func(c *Config) { c.RateLimit.RPS = -1 }},
	}

	require.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
