package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/config"
)

func clearLoomEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LOOM_ADDR", "LOOM_REUSE_PORT", "LOOM_XHEADERS", "LOOM_MAX_BUFFER_SIZE",
		"LOOM_READ_CHUNK_SIZE", "LOOM_IDLE_CONN_TIMEOUT", "LOOM_WEBSOCKET_PING_INTERVAL",
		"LOOM_PERMESSAGE_DEFLATE", "LOOM_COOKIE_SECRET", "LOOM_JWT_SECRET",
		"DATABASE_URL", "LOOM_ENV", "LOOM_STATIC_ROOT", "LOOM_LOG_LEVEL",
	} {
		os.Unsetenv(k)
	}
}

func TestLoad_DevelopmentDefaults(t *testing.T) {
	clearLoomEnv(t)
	os.Setenv("LOOM_ENV", "development")
	defer clearLoomEnv(t)

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "development", cfg.Environment)
}

func TestLoad_ProductionRequiresSecrets(t *testing.T) {
	clearLoomEnv(t)
	os.Setenv("LOOM_ENV", "production")
	defer clearLoomEnv(t)

	_, err := config.Load("")
	assert.Error(t, err)
}

func TestLoad_ProductionWithSecretsSucceeds(t *testing.T) {
	clearLoomEnv(t)
	os.Setenv("LOOM_ENV", "production")
	os.Setenv("LOOM_COOKIE_SECRET", "s3cret")
	os.Setenv("LOOM_JWT_SECRET", "j3cret")
	defer clearLoomEnv(t)

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Environment)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	clearLoomEnv(t)
	dir := t.TempDir()
	path := dir + "/loom.yaml"
	require.NoError(t, os.WriteFile(path, []byte("addr: \":9999\"\n"), 0o644))

	os.Setenv("LOOM_ADDR", ":7777")
	defer clearLoomEnv(t)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Addr)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	clearLoomEnv(t)
	dir := t.TempDir()
	path := dir + "/loom.yaml"
	require.NoError(t, os.WriteFile(path, []byte("addr: \":9999\"\n"), 0o644))
	defer clearLoomEnv(t)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
}
