package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// AppConfig represents the complete application configuration.
type AppConfig struct {
	// Logger: logger component configuration
	Logger LoggerConfig `mapstructure:"logger"`
	// Server: HTTP server configuration
	Server ServerConfig `mapstructure:"server"`
	// Database: where tenants and surveys are persisted
	Database DatabaseConfig `mapstructure:"database"`
	// Cache: survey definition cache
	Cache CacheConfig `mapstructure:"cache"`
	// Audit: routing decision audit trail
	Audit AuditConfig `mapstructure:"audit"`
}

// LoggerConfig defines logging settings.
type LoggerConfig struct {
	// Level: trace, debug, info, warn, warning, error (case-insensitive)
	Level string `mapstructure:"level"`
}

// ServerConfig contains HTTP server parameters.
type ServerConfig struct {
	// Address: address and port where the server will listen (e.g., ":8080").
	Address string `mapstructure:"address"`
	// RequestTimeout: upper bound for handling one request
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// ShutdownTimeout: grace period for in-flight requests on shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	// Driver: memory, postgres or sqlite
	Driver string `mapstructure:"driver"`
	// URL: postgres connection string or sqlite file path
	URL string `mapstructure:"url"`
}

// CacheConfig defines the survey definition cache.
type CacheConfig struct {
	// TTL: lifetime of a cached definition; 0 keeps it until a mutation
	TTL time.Duration `mapstructure:"ttl"`
}

// AuditConfig defines the routing decision audit file.
type AuditConfig struct {
	// File: JSONL file path; empty disables auditing
	File string `mapstructure:"file"`
	// MaxSize: megabytes before rotation (default 100)
	MaxSize int `mapstructure:"max_size"`
	// MaxBackups: rotated files to keep (default 20)
	MaxBackups int `mapstructure:"max_backups"`
}

// Validate checks every section and returns the first error found.
func (c *AppConfig) Validate() error {
	if err := c.Logger.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	return c.Audit.Validate()
}

// Validate checks that the log level is supported.
func (l *LoggerConfig) Validate() error {
	if l.Level == "" {
		return errors.New("logger.level: must be specified")
	}

	valid := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !valid[strings.ToLower(l.Level)] {
		return fmt.Errorf("logger.level: unsupported level '%s'", l.Level)
	}
	return nil
}

// Validate checks the server address and timeouts.
func (s *ServerConfig) Validate() error {
	if s.Address == "" {
		return errors.New("server.address: must be specified")
	}
	if s.RequestTimeout < 0 || s.ShutdownTimeout < 0 {
		return errors.New("server: timeouts cannot be negative")
	}
	return nil
}

// Validate checks that the driver is known and has a URL when it needs one.
func (d *DatabaseConfig) Validate() error {
	switch d.Driver {
	case DriverMemory:
		return nil
	case DriverPostgres, DriverSQLite:
		if d.URL == "" {
			return fmt.Errorf("database.url: must be specified for driver '%s'", d.Driver)
		}
		return nil
	}
	return fmt.Errorf("database.driver: unsupported driver '%s'", d.Driver)
}

// Validate rejects negative TTLs.
func (c *CacheConfig) Validate() error {
	if c.TTL < 0 {
		return errors.New("cache.ttl: cannot be negative")
	}
	return nil
}

// Validate fills rotation defaults.
func (a *AuditConfig) Validate() error {
	if a.MaxSize <= 0 {
		a.MaxSize = 100
	}
	if a.MaxBackups <= 0 {
		a.MaxBackups = 20
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.driver", DriverMemory)
	v.SetDefault("database.url", "")
	v.SetDefault("cache.ttl", time.Duration(0))
	v.SetDefault("audit.file", "")
	v.SetDefault("audit.max_size", 100)
	v.SetDefault("audit.max_backups", 20)
}

// LoadConfig loads configuration using Viper. The YAML file at configPath is
// optional; an empty path uses defaults only. Environment variables such as
// SERVER_ADDRESS or DATABASE_URL override both.
func LoadConfig(configPath string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config AppConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}
