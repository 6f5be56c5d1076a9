package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gogrid/domain/core"
	"gogrid/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Viewer    ViewerConfig
	Grid      GridConfig
	Sync      SyncConfig
	Import    ImportConfig
	Profiling ProfilingConfig
}

// DatabaseConfig holds database connection settings. An empty URL selects
// the in-memory store.
type DatabaseConfig struct {
	URL    string
	Driver string
}

// ServerConfig holds API server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// ViewerConfig holds read-only viewer settings
type ViewerConfig struct {
	Port string
}

// GridConfig holds grid shape and compute settings
type GridConfig struct {
	Rows           int
	DefaultKey     core.GridKey
	ComputeTimeout time.Duration
}

// SyncConfig holds cross-session change feed settings. Postgres follows
// LISTEN/NOTIFY on Channel; SQLite polls every PollInterval.
type SyncConfig struct {
	Enabled      bool
	Channel      string
	MinReconnect time.Duration
	MaxReconnect time.Duration
	PollInterval time.Duration
}

// ImportConfig bounds workbook uploads
type ImportConfig struct {
	MaxConcurrent  int64
	MaxUploadBytes int64
}

// ProfilingConfig holds performance profiling settings
type ProfilingConfig struct {
	Port    string
	Enabled bool
}

// Driver names understood by the storage layer
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database:  *loadDatabaseConfig(),
		Server:    *loadServerConfig(),
		Viewer:    *loadViewerConfig(),
		Sync:      *loadSyncConfig(),
		Import:    *loadImportConfig(),
		Profiling: *loadProfilingConfig(),
	}

	gridConfig, err := loadGridConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load grid configuration")
	}
	config.Grid = *gridConfig

	// An in-process store has no other writers to follow
	if config.Database.Driver == DriverMemory {
		config.Sync.Enabled = false
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadDatabaseConfig() *DatabaseConfig {
	url := getEnvOrDefault("DATABASE_URL", "")
	return &DatabaseConfig{
		URL:    url,
		Driver: getEnvOrDefault("DATABASE_DRIVER", detectDriver(url)),
	}
}

// detectDriver picks a driver from the shape of the connection string
func detectDriver(url string) string {
	switch {
	case url == "":
		return DriverMemory
	case strings.HasPrefix(url, "file:"), strings.HasSuffix(url, ".db"), url == ":memory:":
		return DriverSQLite
	default:
		return DriverPostgres
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "debug"),
	}
}

func loadViewerConfig() *ViewerConfig {
	return &ViewerConfig{
		Port: getEnvOrDefault("VIEWER_PORT", "8090"),
	}
}

func loadGridConfig() (*GridConfig, error) {
	key, err := core.ParseGridKey(getEnvOrDefault("GRID_KEY", core.DefaultGridKey.String()))
	if err != nil {
		return nil, errors.ConfigInvalid(err.Error())
	}

	return &GridConfig{
		Rows:           getEnvIntOrDefault("GRID_ROWS", 10),
		DefaultKey:     key,
		ComputeTimeout: getEnvDurationOrDefault("COMPUTE_TIMEOUT", 5*time.Second),
	}, nil
}

func loadSyncConfig() *SyncConfig {
	return &SyncConfig{
		Enabled:      getEnvBoolOrDefault("SYNC_ENABLED", true),
		Channel:      getEnvOrDefault("SYNC_CHANNEL", "grid_changes"),
		MinReconnect: getEnvDurationOrDefault("SYNC_MIN_RECONNECT", 10*time.Second),
		MaxReconnect: getEnvDurationOrDefault("SYNC_MAX_RECONNECT", time.Minute),
		PollInterval: getEnvDurationOrDefault("SYNC_POLL_INTERVAL", 2*time.Second),
	}
}

func loadImportConfig() *ImportConfig {
	return &ImportConfig{
		MaxConcurrent:  int64(getEnvIntOrDefault("IMPORT_MAX_CONCURRENT", 2)),
		MaxUploadBytes: int64(getEnvIntOrDefault("IMPORT_MAX_UPLOAD_BYTES", 5<<20)),
	}
}

func loadProfilingConfig() *ProfilingConfig {
	return &ProfilingConfig{
		Port:    getEnvOrDefault("PPROF_PORT", "6060"),
		Enabled: getEnvBoolOrDefault("PPROF_ENABLED", false),
	}
}

func validateConfig(config *Config) error {
	switch config.Database.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if config.Database.URL == "" {
			return errors.ConfigInvalid("DATABASE_URL is required for driver " + config.Database.Driver)
		}
	default:
		return errors.ConfigInvalid("unsupported DATABASE_DRIVER " + config.Database.Driver)
	}
	if config.Grid.Rows < 1 {
		return errors.ConfigInvalid("GRID_ROWS must be positive")
	}
	if config.Grid.ComputeTimeout <= 0 {
		return errors.ConfigInvalid("COMPUTE_TIMEOUT must be positive")
	}
	if config.Sync.Enabled && config.Database.Driver == DriverPostgres && config.Sync.Channel == "" {
		return errors.ConfigInvalid("SYNC_CHANNEL is required when sync is enabled")
	}
	if config.Sync.Enabled && config.Database.Driver == DriverSQLite && config.Sync.PollInterval <= 0 {
		return errors.ConfigInvalid("SYNC_POLL_INTERVAL must be positive")
	}
	if config.Import.MaxConcurrent < 1 {
		return errors.ConfigInvalid("IMPORT_MAX_CONCURRENT must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
