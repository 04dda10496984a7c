// Package config loads application configuration from environment variables.
// All variables use the LEARN_ prefix.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Cache      CacheConfig
	Log        LogConfig
	SCORM      SCORMConfig
	Data       DataConfig
	Store      StoreConfig
	Debug      DebugConfig
	CoursePath string `env:"LEARN_COURSE_PATH" envDefault:"./courses"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `env:"LEARN_SERVER_PORT"             envDefault:"8080"`
	Host            string        `env:"LEARN_SERVER_HOST"             envDefault:"0.0.0.0"`
	ShutdownTimeout time.Duration `env:"LEARN_SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL means
// no database.
type DatabaseConfig struct {
	URL      string `env:"LEARN_DATABASE_URL"`
	MaxConns int    `env:"LEARN_DATABASE_MAX_CONNS" envDefault:"25"`
	MinConns int    `env:"LEARN_DATABASE_MIN_CONNS" envDefault:"5"`
}

// CacheConfig holds Redis connection settings. An empty URL means no cache.
type CacheConfig struct {
	URL string `env:"LEARN_CACHE_URL"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `env:"LEARN_LOG_LEVEL"  envDefault:"info"`
	Format string `env:"LEARN_LOG_FORMAT" envDefault:"json"`
	File   string `env:"LEARN_LOG_FILE"`
}

// SCORMConfig holds LMS runtime settings.
type SCORMConfig struct {
	Version string `env:"LEARN_SCORM_VERSION" envDefault:"2004"`
	Debug   bool   `env:"LEARN_SCORM_DEBUG"`
	// Runtime is "memory" for the built-in LMS or "none" to run without one.
	Runtime string `env:"LEARN_SCORM_RUNTIME" envDefault:"memory"`
}

// DataConfig holds course-data cache settings.
type DataConfig struct {
	Debounce time.Duration `env:"LEARN_DATA_DEBOUNCE" envDefault:"500ms"`
}

// StoreConfig selects the local fallback store.
type StoreConfig struct {
	Driver     string        `env:"LEARN_STORE_DRIVER"      envDefault:"memory"`
	SQLitePath string        `env:"LEARN_STORE_SQLITE_PATH" envDefault:"pai-scorm.db"`
	SessionTTL time.Duration `env:"LEARN_STORE_SESSION_TTL" envDefault:"24h"`
}

// DebugConfig holds debug sink settings.
type DebugConfig struct {
	Enabled  bool `env:"LEARN_DEBUG_ENABLED"`
	Capacity int  `env:"LEARN_DEBUG_CAPACITY" envDefault:"500"`
}

// Load reads configuration from environment variables with LEARN_ prefix.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Validate checks enumerations and the settings the selected drivers need.
func (c *Config) Validate() error {
	switch c.SCORM.Version {
	case "1.2", "2004":
	default:
		return fmt.Errorf("LEARN_SCORM_VERSION must be '1.2' or '2004', got %q", c.SCORM.Version)
	}

	switch c.SCORM.Runtime {
	case "memory", "none":
	default:
		return fmt.Errorf("LEARN_SCORM_RUNTIME must be 'memory' or 'none', got %q", c.SCORM.Runtime)
	}

	switch c.Store.Driver {
	case "memory":
	case "redis":
		if c.Cache.URL == "" {
			return fmt.Errorf("LEARN_CACHE_URL is required for the redis store")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("LEARN_DATABASE_URL is required for the postgres store")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("LEARN_STORE_SQLITE_PATH is required for the sqlite store")
		}
	default:
		return fmt.Errorf("LEARN_STORE_DRIVER must be one of memory, redis, postgres, sqlite, got %q", c.Store.Driver)
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("LEARN_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	if c.Data.Debounce <= 0 {
		return fmt.Errorf("LEARN_DATA_DEBOUNCE must be positive, got %s", c.Data.Debounce)
	}
	if c.Debug.Capacity <= 0 {
		return fmt.Errorf("LEARN_DEBUG_CAPACITY must be positive, got %d", c.Debug.Capacity)
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
