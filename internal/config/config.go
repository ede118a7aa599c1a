// Package config loads service configuration from defaults, an optional YAML
// file and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gianverdum/member-registry/internal/audit"
	"github.com/gianverdum/member-registry/internal/cache"
	"github.com/gianverdum/member-registry/internal/database"
	"github.com/gianverdum/member-registry/internal/middleware"
	"github.com/gianverdum/member-registry/internal/monitoring"
)

// DefaultServiceName labels logs, metrics and audit events
const DefaultServiceName = "member-registry"

// Config holds all configuration for the service
type Config struct {
	Server     ServerConfig               `yaml:"server"`
	Database   database.Config            `yaml:"database"`
	Cache      cache.Config               `yaml:"cache"`
	Audit      audit.Config               `yaml:"audit"`
	Metrics    monitoring.Config          `yaml:"metrics"`
	CORS       middleware.CORSConfig      `yaml:"cors"`
	RateLimit  middleware.RateLimitConfig `yaml:"rateLimit"`
	Logging    LoggingConfig              `yaml:"logging"`
	Validation ValidationConfig           `yaml:"validation"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// Addr is the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ValidationConfig toggles optional member validation rules
type ValidationConfig struct {
	RequireFullName bool `yaml:"requireFullName"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database:   database.DefaultConfig(),
		Cache:      cache.Config{TTL: 5 * time.Minute},
		Audit:      audit.Config{Enabled: true},
		Metrics:    monitoring.DefaultConfig(DefaultServiceName),
		CORS:       middleware.DefaultCORSConfig(),
		RateLimit:  middleware.RateLimitConfig{Burst: 20},
		Logging:    LoggingConfig{Level: "info", Format: "json"},
		Validation: ValidationConfig{RequireFullName: true},
	}
}

// Load reads .env (if present), then the YAML file named by CONFIG_FILE (if
// set), then applies environment overrides and validates the result
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnvOrDefault("HOST", c.Server.Host)
	c.Server.Port = getEnvOrDefault("PORT", c.Server.Port)
	c.Server.ReadTimeout = getDurationEnvOrDefault("READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getDurationEnvOrDefault("WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getDurationEnvOrDefault("IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getDurationEnvOrDefault("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	db := &c.Database
	db.Driver = strings.ToLower(getEnvOrDefault("DB_DRIVER", db.Driver))
	db.URL = getEnvOrDefault("DATABASE_URL", db.URL)
	db.Host = getEnvOrDefault("DB_HOST", db.Host)
	db.Port = getEnvOrDefault("DB_PORT", db.Port)
	db.Username = getEnvOrDefault("DB_USER", db.Username)
	db.Password = getEnvOrDefault("DB_PASSWORD", db.Password)
	db.Database = getEnvOrDefault("DB_NAME", db.Database)
	db.SSLMode = getEnvOrDefault("DB_SSLMODE", db.SSLMode)
	db.SQLitePath = getEnvOrDefault("DB_SQLITE_PATH", db.SQLitePath)
	db.MaxOpenConns = getIntEnvOrDefault("DB_MAX_OPEN_CONNS", db.MaxOpenConns)
	db.MaxIdleConns = getIntEnvOrDefault("DB_MAX_IDLE_CONNS", db.MaxIdleConns)
	db.ConnMaxLifetime = getDurationEnvOrDefault("DB_CONN_MAX_LIFETIME", db.ConnMaxLifetime)
	db.ConnMaxIdleTime = getDurationEnvOrDefault("DB_CONN_MAX_IDLE_TIME", db.ConnMaxIdleTime)
	db.ConnectTimeout = getDurationEnvOrDefault("DB_CONNECT_TIMEOUT", db.ConnectTimeout)
	db.RetryAttempts = getIntEnvOrDefault("DB_RETRY_ATTEMPTS", db.RetryAttempts)
	db.RetryDelay = getDurationEnvOrDefault("DB_RETRY_DELAY", db.RetryDelay)
	db.LogLevel = getEnvOrDefault("DB_LOG_LEVEL", db.LogLevel)
	db.RunMigration = getBoolEnvOrDefault("RUN_MIGRATION", db.RunMigration)

	c.Cache.Addr = getEnvOrDefault("REDIS_ADDR", c.Cache.Addr)
	c.Cache.Password = getEnvOrDefault("REDIS_PASSWORD", c.Cache.Password)
	c.Cache.DB = getIntEnvOrDefault("REDIS_DB", c.Cache.DB)
	c.Cache.TTL = getDurationEnvOrDefault("CACHE_TTL", c.Cache.TTL)

	c.Audit.ServiceURL = getEnvOrDefault("AUDIT_SERVICE_URL", c.Audit.ServiceURL)
	c.Audit.Enabled = getBoolEnvOrDefault("ENABLE_AUDIT", c.Audit.Enabled)

	m := &c.Metrics
	m.Enabled = getBoolEnvOrDefault("ENABLE_OBSERVABILITY", m.Enabled)
	m.ServiceName = getEnvOrDefault("SERVICE_NAME", m.ServiceName)
	m.ServiceVersion = getEnvOrDefault("SERVICE_VERSION", m.ServiceVersion)
	m.ExporterType = strings.ToLower(getEnvOrDefault("OTEL_METRICS_EXPORTER", m.ExporterType))
	m.OTLPEndpoint = getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", m.OTLPEndpoint)
	m.OTLPTLSInsecure = getBoolEnvOrDefault("OTEL_EXPORTER_OTLP_INSECURE", m.OTLPTLSInsecure)
	m.ExportInterval = getDurationEnvOrDefault("OTEL_METRIC_EXPORT_INTERVAL", m.ExportInterval)
	if headers := parseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")); len(headers) > 0 {
		m.OTLPHeaders = headers
	}

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		c.CORS.AllowedOrigins = strings.Split(origins, ",")
	}
	c.CORS.MaxAge = getIntEnvOrDefault("CORS_MAX_AGE", c.CORS.MaxAge)

	c.RateLimit.RPS = getFloatEnvOrDefault("RATE_LIMIT_RPS", c.RateLimit.RPS)
	c.RateLimit.Burst = getIntEnvOrDefault("RATE_LIMIT_BURST", c.RateLimit.Burst)

	c.Logging.Level = getEnvOrDefault("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnvOrDefault("LOG_FORMAT", c.Logging.Format)

	c.Validation.RequireFullName = getBoolEnvOrDefault("REQUIRE_FULL_NAME", c.Validation.RequireFullName)
}

// Validate rejects settings the service cannot start with
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port must be set")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid server port %q", c.Server.Port)
	}

	switch c.Database.Driver {
	case database.DriverPostgres:
		if c.Database.URL == "" && c.Database.Host == "" {
			return fmt.Errorf("postgres requires DATABASE_URL or DB_HOST")
		}
	case database.DriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("sqlite requires DB_SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Metrics.Enabled {
		switch c.Metrics.ExporterType {
		case monitoring.ExporterPrometheus, monitoring.ExporterOTLP, monitoring.ExporterNone:
		default:
			return fmt.Errorf("unsupported metrics exporter %q", c.Metrics.ExporterType)
		}
	}

	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	return nil
}

// Helper functions
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		slog.Warn("Ignoring invalid integer setting", "key", key, "value", value)
	}
	return defaultValue
}

func getFloatEnvOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		slog.Warn("Ignoring invalid number setting", "key", key, "value", value)
	}
	return defaultValue
}

func getBoolEnvOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		slog.Warn("Ignoring invalid boolean setting", "key", key, "value", value)
	}
	return defaultValue
}

func getDurationEnvOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		slog.Warn("Ignoring invalid duration setting", "key", key, "value", value)
	}
	return defaultValue
}

// parseHeaders reads "key1=value1,key2=value2"
func parseHeaders(headerStr string) map[string]string {
	headers := make(map[string]string)
	if headerStr == "" {
		return headers
	}

	for _, pair := range strings.Split(headerStr, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) == 2 {
			headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return headers
}
