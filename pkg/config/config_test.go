package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NOGDB_DATA_DIR", "NOGDB_IN_MEMORY", "NOGDB_SYNC_WRITES",
		"NOGDB_ENABLE_VERSION", "NOGDB_LOW_MEMORY", "NOGDB_LOG_LEVEL",
	} {
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	cfg := LoadFromEnv()
	require.Equal(t, "./data", cfg.DataDir)
	require.False(t, cfg.InMemory)
	require.False(t, cfg.SyncWrites)
	require.True(t, cfg.EnableVersion)
	require.False(t, cfg.LowMemory)
	require.Equal(t, "INFO", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("NOGDB_DATA_DIR", "/var/lib/nogdb")
	t.Setenv("NOGDB_SYNC_WRITES", "true")
	t.Setenv("NOGDB_ENABLE_VERSION", "false")
	t.Setenv("NOGDB_LOW_MEMORY", "1")
	t.Setenv("NOGDB_LOG_LEVEL", "debug")

	cfg := LoadFromEnv()
	require.Equal(t, "/var/lib/nogdb", cfg.DataDir)
	require.True(t, cfg.SyncWrites)
	require.False(t, cfg.EnableVersion)
	require.True(t, cfg.LowMemory)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsEmptyDataDirUnlessInMemory(t *testing.T) {
	cfg := &Config{DataDir: "", Logging: LoggingConfig{Level: "INFO"}}
	require.Error(t, cfg.Validate())

	cfg.InMemory = true
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := &Config{DataDir: "./data", Logging: LoggingConfig{Level: "TRACE"}}
	require.Error(t, cfg.Validate())
}

func TestConfigStringIncludesFields(t *testing.T) {
	cfg := &Config{DataDir: "./data", Logging: LoggingConfig{Level: "INFO"}}
	s := cfg.String()
	require.Contains(t, s, "./data")
	require.Contains(t, s, "INFO")
}
