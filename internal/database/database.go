package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gianverdum/member-registry/internal/models"
)

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds database connection configuration
type Config struct {
	Driver          string        `yaml:"driver"`
	URL             string        `yaml:"url"` // full postgres DSN, overrides the discrete fields
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslMode"`
	SQLitePath      string        `yaml:"sqlitePath"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `yaml:"connMaxIdleTime"`
	ConnectTimeout  time.Duration `yaml:"connectTimeout"`
	RetryAttempts   int           `yaml:"retryAttempts"`
	RetryDelay      time.Duration `yaml:"retryDelay"`
	LogLevel        string        `yaml:"logLevel"`
	RunMigration    bool          `yaml:"runMigration"`
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		Driver:          DriverPostgres,
		Host:            "localhost",
		Port:            "5432",
		Username:        "postgres",
		Password:        "password",
		Database:        "members",
		SSLMode:         "disable",
		SQLitePath:      "members.db",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
		ConnectTimeout:  10 * time.Second,
		RetryAttempts:   10,
		RetryDelay:      2 * time.Second,
		LogLevel:        "warn",
	}
}

// DSN builds the connection string for the configured driver
func (c Config) DSN() string {
	if c.Driver == DriverSQLite {
		return c.SQLitePath
	}
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Host, c.Username, c.Password, c.Database, c.Port, c.SSLMode)
}

// Dialector picks the GORM dialect for the configured driver
func (c Config) Dialector() (gorm.Dialector, error) {
	switch c.Driver {
	case DriverPostgres, "":
		return postgres.Open(c.DSN()), nil
	case DriverSQLite:
		return sqlite.Open(c.DSN()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

// gormLogLevel maps DB_LOG_LEVEL onto GORM's logger levels
func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// Connect opens the database with retries and configures the pool.
// Unique-constraint violations are translated to gorm.ErrDuplicatedKey.
func Connect(ctx context.Context, config Config) (*gorm.DB, error) {
	dialector, err := config.Dialector()
	if err != nil {
		return nil, err
	}

	attempts := config.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		slog.Info("Attempting database connection", "driver", config.Driver, "attempt", attempt, "max_attempts", attempts)

		db, err := open(ctx, dialector, config)
		if err == nil {
			slog.Info("Database connection established successfully",
				"driver", config.Driver,
				"host", config.Host,
				"database", config.Database)
			return db, nil
		}

		lastErr = err
		slog.Warn("Database connection attempt failed", "attempt", attempt, "error", err)
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(config.RetryDelay):
			}
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempts, lastErr)
}

func open(ctx context.Context, dialector gorm.Dialector, config Config) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel(config.LogLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := Ping(ctx, db, config.ConnectTimeout); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Ping checks the connection, bounded by timeout when it is positive
func Ping(ctx context.Context, db *gorm.DB, timeout time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Migrate creates or updates the members table and its indexes
func Migrate(db *gorm.DB) error {
	slog.Info("Running GORM auto-migration")
	if err := db.AutoMigrate(&models.Member{}); err != nil {
		return fmt.Errorf("failed to run auto-migration: %w", err)
	}
	slog.Info("GORM auto-migration completed successfully")
	return nil
}

// Close releases the connection pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
