// Package config loads NogDB's runtime configuration from environment
// variables, the way the storage core it is grounded on takes its own
// settings from the process environment rather than a config file.
//
// Example:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
package config

import (
	"fmt"
	"os"
	"strings"
)

// Config holds every setting LoadFromEnv reads from the environment.
type Config struct {
	// DataDir is the directory the backing store persists to.
	DataDir string
	// InMemory runs the store entirely in RAM, ignoring DataDir.
	InMemory bool
	// SyncWrites forces an fsync on every commit.
	SyncWrites bool
	// EnableVersion is read from NOGDB_ENABLE_VERSION; no other package
	// reads it, and every Update bumps a record's version whether or not
	// it is set.
	EnableVersion bool
	// LowMemory trims the backing store's in-memory buffers.
	LowMemory bool

	Logging LoggingConfig
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, or ERROR, checked by Validate; no
	// other package reads it.
	Level string
}

// LoadFromEnv reads configuration from the environment, applying
// defaults for anything unset.
//
// Recognized variables:
//
//	NOGDB_DATA_DIR="./data"
//	NOGDB_IN_MEMORY=false
//	NOGDB_SYNC_WRITES=false
//	NOGDB_ENABLE_VERSION=true
//	NOGDB_LOW_MEMORY=false
//	NOGDB_LOG_LEVEL="INFO"
func LoadFromEnv() *Config {
	return &Config{
		DataDir:       getEnv("NOGDB_DATA_DIR", "./data"),
		InMemory:      getEnvBool("NOGDB_IN_MEMORY", false),
		SyncWrites:    getEnvBool("NOGDB_SYNC_WRITES", false),
		EnableVersion: getEnvBool("NOGDB_ENABLE_VERSION", true),
		LowMemory:     getEnvBool("NOGDB_LOW_MEMORY", false),
		Logging: LoggingConfig{
			Level: getEnv("NOGDB_LOG_LEVEL", "INFO"),
		},
	}
}

// Validate checks the configuration for logical errors.
func (c *Config) Validate() error {
	if !c.InMemory && c.DataDir == "" {
		return fmt.Errorf("config: data dir must not be empty unless running in-memory")
	}
	switch strings.ToUpper(c.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("config: invalid log level %q", c.Logging.Level)
	}
	return nil
}

// String returns a representation of the Config safe for logging.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{DataDir: %s, InMemory: %v, SyncWrites: %v, EnableVersion: %v, LowMemory: %v, LogLevel: %s}",
		c.DataDir, c.InMemory, c.SyncWrites, c.EnableVersion, c.LowMemory, c.Logging.Level,
	)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}
